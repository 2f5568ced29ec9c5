package models

import (
	"time"
)

// BlockMeta identifies a block within a chain.
type BlockMeta struct {
	ChainID string    `json:"chain_id"`
	Height  uint64    `json:"height"`
	Time    time.Time `json:"time"`
}

// BlockHeader carries the consensus header fields we persist. The raw block
// response (evidence list, raw tx list) is dropped after assembly to keep the
// in-flight window small.
type BlockHeader struct {
	BlockHash       string `json:"block_hash"`
	ProposerAddress string `json:"proposer_address"`
	LastCommitHash  string `json:"last_commit_hash"`
	DataHash        string `json:"data_hash"`
	AppHash         string `json:"app_hash"`
	EvidenceCount   int    `json:"evidence_count"`
	SizeBytes       int    `json:"size_bytes,omitempty"`
}

// ABCIEventAttr is a normalized (key, value) attribute of an ABCI event.
// Historical chains base64-encode both sides on the wire; normalization
// decodes canonical base64 into readable text.
type ABCIEventAttr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Index bool   `json:"index"`
}

// ABCIEvent is a (type, attributes[]) record emitted during block execution.
type ABCIEvent struct {
	Type       string          `json:"type"`
	Attributes []ABCIEventAttr `json:"attributes"`
}

// LogEntry groups the events of one message within a transaction log.
// MsgIndex is -1 for tx-level events appended from the ABCI result.
type LogEntry struct {
	MsgIndex int         `json:"msg_index"`
	Events   []ABCIEvent `json:"events"`
}

// TxResponse is the projection of one per-tx ABCI result.
type TxResponse struct {
	Code      uint32      `json:"code"`
	Codespace string      `json:"codespace,omitempty"`
	Data      string      `json:"data,omitempty"`
	RawLog    string      `json:"raw_log,omitempty"`
	GasWanted int64       `json:"gas_wanted"`
	GasUsed   int64       `json:"gas_used"`
	Events    []ABCIEvent `json:"events"`
	Logs      []LogEntry  `json:"logs"`
	Timestamp time.Time   `json:"timestamp"`
}

// TxRecord is one decoded transaction inside a BlockRecord.
type TxRecord struct {
	Hash      string         `json:"hash"` // uppercase hex sha256 of the raw bytes
	RawBase64 string         `json:"raw_base64"`
	RawHex    string         `json:"raw_hex"`
	Decoded   map[string]any `json:"decoded"`
	Response  TxResponse     `json:"tx_response"`
}

// BlockRecord is the assembled, normalized unit handed to the sink.
type BlockRecord struct {
	Meta   BlockMeta   `json:"meta"`
	Header BlockHeader `json:"block"`
	Txs    []TxRecord  `json:"txs"`
}
