package rpc

import (
	"encoding/json"
	"strconv"
	"time"
)

// Wire shapes for the CometBFT HTTP endpoints we consume. All numeric fields
// arrive as decimal strings.

// ChainStatus is the /status response.
type ChainStatus struct {
	NodeInfo struct {
		Network string `json:"network"`
	} `json:"node_info"`
	SyncInfo struct {
		EarliestBlockHeight string `json:"earliest_block_height"`
		LatestBlockHeight   string `json:"latest_block_height"`
	} `json:"sync_info"`
}

// EarliestHeight returns sync_info.earliest_block_height as an integer.
func (s *ChainStatus) EarliestHeight() (uint64, error) {
	return strconv.ParseUint(s.SyncInfo.EarliestBlockHeight, 10, 64)
}

// LatestHeight returns sync_info.latest_block_height as an integer.
func (s *ChainStatus) LatestHeight() (uint64, error) {
	return strconv.ParseUint(s.SyncInfo.LatestBlockHeight, 10, 64)
}

// BlockResponse is the /block?height=N response.
type BlockResponse struct {
	BlockID struct {
		Hash string `json:"hash"`
	} `json:"block_id"`
	Block struct {
		Header struct {
			ChainID         string    `json:"chain_id"`
			Height          string    `json:"height"`
			Time            time.Time `json:"time"`
			ProposerAddress string    `json:"proposer_address"`
			LastCommitHash  string    `json:"last_commit_hash"`
			DataHash        string    `json:"data_hash"`
			AppHash         string    `json:"app_hash"`
		} `json:"header"`
		Data struct {
			Txs []string `json:"txs"` // base64-encoded raw transactions
		} `json:"data"`
		Evidence struct {
			Evidence []json.RawMessage `json:"evidence"`
		} `json:"evidence"`
		LastCommit json.RawMessage `json:"last_commit"`
	} `json:"block"`
}

// EventAttribute is one (key, value) pair of an ABCI event as it appears on
// the wire. Index is a pointer because older endpoints omit it.
type EventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Index *bool  `json:"index,omitempty"`
}

// Event is a raw ABCI event.
type Event struct {
	Type       string           `json:"type"`
	Attributes []EventAttribute `json:"attributes"`
}

// TxResult is one entry of txs_results in /block_results.
type TxResult struct {
	Code      uint32  `json:"code"`
	Codespace string  `json:"codespace"`
	Data      string  `json:"data"`
	Log       string  `json:"log"`
	Info      string  `json:"info"`
	GasWanted string  `json:"gas_wanted"`
	GasUsed   string  `json:"gas_used"`
	Events    []Event `json:"events"`
}

// BlockResultsResponse is the /block_results?height=N response.
type BlockResultsResponse struct {
	Height                string            `json:"height"`
	TxsResults            []TxResult        `json:"txs_results"`
	BeginBlockEvents      []Event           `json:"begin_block_events"`
	EndBlockEvents        []Event           `json:"end_block_events"`
	FinalizeBlockEvents   []Event           `json:"finalize_block_events"`
	ValidatorUpdates      json.RawMessage `json:"validator_updates"`
	ConsensusParamUpdates json.RawMessage `json:"consensus_param_updates"`
	AppHash               string          `json:"app_hash"`
}
