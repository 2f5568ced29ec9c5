package models

import (
	"encoding/json"
	"time"
)

// Row structs mirror the target tables one-to-one. JSONB columns are carried
// as json.RawMessage and passed to the driver as text.

// BlockRow represents the 'core.blocks' table.
type BlockRow struct {
	Height          uint64    `json:"height"`
	BlockHash       string    `json:"block_hash"`
	Time            time.Time `json:"time"`
	ProposerAddress string    `json:"proposer_address"`
	TxCount         int       `json:"tx_count"`
	SizeBytes       int       `json:"size_bytes"`
	LastCommitHash  string    `json:"last_commit_hash"`
	DataHash        string    `json:"data_hash"`
	EvidenceCount   int       `json:"evidence_count"`
	AppHash         string    `json:"app_hash"`
}

// TxRow represents the 'core.transactions' table.
type TxRow struct {
	Height     uint64          `json:"height"`
	TxHash     string          `json:"tx_hash"`
	TxIndex    int             `json:"tx_index"`
	Code       uint32          `json:"code"`
	GasWanted  int64           `json:"gas_wanted"`
	GasUsed    int64           `json:"gas_used"`
	Fee        json.RawMessage `json:"fee,omitempty"`
	Memo       string          `json:"memo,omitempty"`
	Signers    []string        `json:"signers"`
	RawTx      json.RawMessage `json:"raw_tx,omitempty"`
	LogSummary string          `json:"log_summary,omitempty"`
	Time       time.Time       `json:"time"`
}

// MessageRow represents the 'core.messages' table.
type MessageRow struct {
	Height   uint64          `json:"height"`
	TxHash   string          `json:"tx_hash"`
	MsgIndex int             `json:"msg_index"`
	TypeURL  string          `json:"type_url"`
	Value    json.RawMessage `json:"value,omitempty"`
	Signer   string          `json:"signer,omitempty"`
	Time     time.Time       `json:"time"`
}

// EventRow represents the 'core.events' table (hash-partitioned by tx_hash).
// MsgIndex is -1 for tx-scope events.
type EventRow struct {
	Height     uint64          `json:"height"`
	TxHash     string          `json:"tx_hash"`
	MsgIndex   int             `json:"msg_index"`
	EventIndex int             `json:"event_index"`
	EventType  string          `json:"event_type"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
	Time       time.Time       `json:"time"`
}

// EventAttrRow represents the 'core.event_attrs' table (flattened attributes).
type EventAttrRow struct {
	Height     uint64    `json:"height"`
	TxHash     string    `json:"tx_hash"`
	MsgIndex   int       `json:"msg_index"`
	EventIndex int       `json:"event_index"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Time       time.Time `json:"time"`
}

// TransferRow represents the 'bank.transfers' table, derived from
// 'transfer' events.
type TransferRow struct {
	Height   uint64    `json:"height"`
	TxHash   string    `json:"tx_hash"`
	MsgIndex int       `json:"msg_index"`
	FromAddr string    `json:"from_addr"`
	ToAddr   string    `json:"to_addr"`
	Denom    string    `json:"denom"`
	Amount   string    `json:"amount"`
	Time     time.Time `json:"time"`
}

// StakeDelegationRow represents the 'stake.delegation_events' table.
type StakeDelegationRow struct {
	Height           uint64    `json:"height"`
	TxHash           string    `json:"tx_hash"`
	MsgIndex         int       `json:"msg_index"`
	EventType        string    `json:"event_type"`
	DelegatorAddress string    `json:"delegator_address,omitempty"`
	ValidatorSrc     string    `json:"validator_src,omitempty"`
	ValidatorDst     string    `json:"validator_dst,omitempty"`
	Denom            string    `json:"denom,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	Time             time.Time `json:"time"`
}

// StakeDistributionRow represents the 'stake.distribution_events' table.
type StakeDistributionRow struct {
	Height           uint64    `json:"height"`
	TxHash           string    `json:"tx_hash"`
	MsgIndex         int       `json:"msg_index"`
	EventType        string    `json:"event_type"`
	ValidatorAddress string    `json:"validator_address,omitempty"`
	DelegatorAddress string    `json:"delegator_address,omitempty"`
	WithdrawAddress  string    `json:"withdraw_address,omitempty"`
	Denom            string    `json:"denom,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	Time             time.Time `json:"time"`
}

// WasmExecutionRow represents the 'wasm.executions' table, one row per
// MsgExecuteContract regardless of outcome.
type WasmExecutionRow struct {
	Height   uint64          `json:"height"`
	TxHash   string          `json:"tx_hash"`
	MsgIndex int             `json:"msg_index"`
	Contract string          `json:"contract"`
	Sender   string          `json:"sender,omitempty"`
	Msg      json.RawMessage `json:"msg,omitempty"`
	Funds    json.RawMessage `json:"funds,omitempty"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Time     time.Time       `json:"time"`
}

// WasmEventRow represents the 'wasm.events' table, derived from 'wasm' events.
type WasmEventRow struct {
	Height     uint64          `json:"height"`
	TxHash     string          `json:"tx_hash"`
	MsgIndex   int             `json:"msg_index"`
	EventIndex int             `json:"event_index"`
	Contract   string          `json:"contract"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
	Time       time.Time       `json:"time"`
}

// GovProposalRow represents the 'gov.proposals' table. Fields are merged via
// coalescing upsert so later lifecycle updates never erase earlier data.
type GovProposalRow struct {
	ProposalID uint64          `json:"proposal_id"`
	Proposer   string          `json:"proposer,omitempty"`
	Title      string          `json:"title,omitempty"`
	TypeURL    string          `json:"type_url,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Status     string          `json:"status,omitempty"`
	Height     uint64          `json:"height"`
	Time       time.Time       `json:"time"`
}

// GovDepositRow represents the 'gov.deposits' table, one row per coin.
type GovDepositRow struct {
	Height     uint64    `json:"height"`
	TxHash     string    `json:"tx_hash"`
	MsgIndex   int       `json:"msg_index"`
	ProposalID uint64    `json:"proposal_id"`
	Depositor  string    `json:"depositor"`
	Denom      string    `json:"denom"`
	Amount     string    `json:"amount"`
	Time       time.Time `json:"time"`
}

// GovVoteRow represents the 'gov.votes' table. Weight is empty for simple votes.
type GovVoteRow struct {
	Height     uint64    `json:"height"`
	TxHash     string    `json:"tx_hash"`
	MsgIndex   int       `json:"msg_index"`
	ProposalID uint64    `json:"proposal_id"`
	Voter      string    `json:"voter"`
	Option     string    `json:"option"`
	Weight     string    `json:"weight,omitempty"`
	Time       time.Time `json:"time"`
}
