package decode

import (
	"strings"
	"unicode"
)

// Case modes for message payload keys.
const (
	CaseSnake = "snake"
	CaseCamel = "camel"
)

// ConvertKeys deep-converts map keys to the given case mode. Keys beginning
// with '@' (protobuf type markers) are never renamed. Values are returned
// as-is; only the key spelling changes.
func ConvertKeys(v any, mode string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[convertKey(k, mode)] = ConvertKeys(inner, mode)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = ConvertKeys(inner, mode)
		}
		return out
	default:
		return v
	}
}

func convertKey(k, mode string) string {
	if strings.HasPrefix(k, "@") {
		return k
	}
	switch mode {
	case CaseCamel:
		return toCamel(k)
	case CaseSnake:
		return toSnake(k)
	default:
		return k
	}
}

func toSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
