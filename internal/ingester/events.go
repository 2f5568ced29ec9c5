package ingester

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"cosmoscan/internal/models"
	"cosmoscan/internal/rpc"
)

// NormalizeEvents converts raw ABCI events into their normalized form.
// Attribute keys and values that are canonical base64 of printable text are
// decoded; everything else passes through untouched. Index defaults to true
// when the endpoint omits it.
func NormalizeEvents(events []rpc.Event) []models.ABCIEvent {
	out := make([]models.ABCIEvent, 0, len(events))
	for _, e := range events {
		attrs := make([]models.ABCIEventAttr, 0, len(e.Attributes))
		for _, a := range e.Attributes {
			index := true
			if a.Index != nil {
				index = *a.Index
			}
			attrs = append(attrs, models.ABCIEventAttr{
				Key:   maybeDecodeBase64(a.Key),
				Value: maybeDecodeBase64(a.Value),
				Index: index,
			})
		}
		out = append(out, models.ABCIEvent{Type: e.Type, Attributes: attrs})
	}
	return out
}

// maybeDecodeBase64 replaces s with its decoded form when s is canonical
// base64 (re-encoding reproduces it exactly) and the decoded bytes are
// printable text. Anything else is returned unchanged.
func maybeDecodeBase64(s string) string {
	if s == "" {
		return s
	}
	decoded, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return s
	}
	if base64.StdEncoding.EncodeToString(decoded) != s {
		return s
	}
	text := string(decoded)
	if !utf8.ValidString(text) || !isPrintableText(text) {
		return s
	}
	return text
}

// isPrintableText accepts tab, LF, CR, printable ASCII, and any rune >= 0x80.
func isPrintableText(s string) bool {
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r >= 0x20 && r <= 0x7e:
		case r >= 0x80:
		default:
			return false
		}
	}
	return true
}

// rawLogEntry mirrors one element of the raw_log JSON array. MsgIndex is a
// pointer because single-message logs omit it (meaning index 0).
type rawLogEntry struct {
	MsgIndex *int        `json:"msg_index"`
	Events   []rpc.Event `json:"events"`
}

// ParseRawLog parses the per-tx raw_log JSON into normalized per-message
// log entries. A parse failure yields the empty list.
func ParseRawLog(rawLog string) []models.LogEntry {
	if rawLog == "" {
		return nil
	}
	var entries []rawLogEntry
	if err := json.Unmarshal([]byte(rawLog), &entries); err != nil {
		return nil
	}
	out := make([]models.LogEntry, 0, len(entries))
	for i, ent := range entries {
		idx := i
		if ent.MsgIndex != nil {
			idx = *ent.MsgIndex
		}
		out = append(out, models.LogEntry{
			MsgIndex: idx,
			Events:   NormalizeEvents(ent.Events),
		})
	}
	return out
}

// BuildLogs combines per-message log entries with the tx-level ABCI events,
// which are appended as a final pseudo-entry with MsgIndex -1.
func BuildLogs(rawLog string, txEvents []models.ABCIEvent) []models.LogEntry {
	logs := ParseRawLog(rawLog)
	if len(txEvents) > 0 {
		logs = append(logs, models.LogEntry{MsgIndex: -1, Events: txEvents})
	}
	return logs
}
