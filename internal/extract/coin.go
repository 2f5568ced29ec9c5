package extract

import "regexp"

// Coin is a parsed (amount, denom) pair. Amount stays a decimal string;
// chain amounts overflow int64 routinely.
type Coin struct {
	Amount string
	Denom  string
}

// coinRe matches a single-coin string such as "123uatom" or "42ibc/ABC123".
// Multi-coin lists and decimal amounts do not match.
var coinRe = regexp.MustCompile(`^(\d+)([a-zA-Z/][\w/:-]*)$`)

// ParseCoin parses an amount+denom string. Returns nil when the input is not
// a single well-formed coin.
func ParseCoin(s string) *Coin {
	m := coinRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return &Coin{Amount: m[1], Denom: m[2]}
}
