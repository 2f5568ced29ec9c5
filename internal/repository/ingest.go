package repository

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"cosmoscan/internal/extract"
	"cosmoscan/internal/models"
)

// Per-table insert specs. Conflict targets always include the partition key
// so the unique index is valid on the partitioned parent.
var (
	blocksSpec = tableSpec{
		name: "core.blocks",
		columns: []string{"height", "block_hash", "time", "proposer_address", "tx_count",
			"size_bytes", "last_commit_hash", "data_hash", "evidence_count", "app_hash"},
		casts:    make([]string, 10),
		conflict: "ON CONFLICT (height) DO NOTHING",
		maxRows:  5000,
	}

	txsSpec = tableSpec{
		name: "core.transactions",
		columns: []string{"height", "tx_hash", "tx_index", "code", "gas_wanted", "gas_used",
			"fee", "memo", "signers", "raw_tx", "log_summary", "time"},
		casts:    []string{"", "", "", "", "", "", "jsonb", "", "text[]", "jsonb", "", ""},
		conflict: "ON CONFLICT (height, tx_hash) DO UPDATE SET gas_used = EXCLUDED.gas_used, log_summary = EXCLUDED.log_summary",
		maxRows:  5000,
	}

	messagesSpec = tableSpec{
		name:     "core.messages",
		columns:  []string{"height", "tx_hash", "msg_index", "type_url", "value", "signer", "time"},
		casts:    []string{"", "", "", "", "jsonb", "", ""},
		conflict: "ON CONFLICT (height, tx_hash, msg_index) DO NOTHING",
		maxRows:  5000,
	}

	eventsSpec = tableSpec{
		name:     "core.events",
		columns:  []string{"height", "tx_hash", "msg_index", "event_index", "event_type", "attributes", "time"},
		casts:    []string{"", "", "", "", "", "jsonb", ""},
		conflict: "ON CONFLICT (tx_hash, msg_index, event_index) DO NOTHING",
		maxRows:  10000,
	}

	eventAttrsSpec = tableSpec{
		name:     "core.event_attrs",
		columns:  []string{"height", "tx_hash", "msg_index", "event_index", "key", "value", "time"},
		casts:    make([]string, 7),
		conflict: "ON CONFLICT (height, tx_hash, msg_index, event_index, key) DO NOTHING",
		maxRows:  10000,
	}

	transfersSpec = tableSpec{
		name:     "bank.transfers",
		columns:  []string{"height", "tx_hash", "msg_index", "from_addr", "to_addr", "denom", "amount", "time"},
		casts:    make([]string, 8),
		conflict: "ON CONFLICT (height, tx_hash, msg_index, from_addr, to_addr, denom) DO NOTHING",
		maxRows:  5000,
	}

	stakeDelegSpec = tableSpec{
		name: "stake.delegation_events",
		columns: []string{"height", "tx_hash", "msg_index", "event_type", "delegator_address",
			"validator_src", "validator_dst", "denom", "amount", "time"},
		casts:    make([]string, 10),
		conflict: "ON CONFLICT (height, tx_hash, msg_index, event_type) DO NOTHING",
		maxRows:  5000,
	}

	stakeDistribSpec = tableSpec{
		name: "stake.distribution_events",
		columns: []string{"height", "tx_hash", "msg_index", "event_type", "validator_address",
			"delegator_address", "withdraw_address", "denom", "amount", "time"},
		casts:    make([]string, 10),
		conflict: "ON CONFLICT (height, tx_hash, msg_index, event_type) DO NOTHING",
		maxRows:  5000,
	}

	wasmExecsSpec = tableSpec{
		name:     "wasm.executions",
		columns:  []string{"height", "tx_hash", "msg_index", "contract", "sender", "msg", "funds", "success", "error", "time"},
		casts:    []string{"", "", "", "", "", "jsonb", "jsonb", "", "", ""},
		conflict: "ON CONFLICT (height, tx_hash, msg_index) DO NOTHING",
		maxRows:  5000,
	}

	wasmEventsSpec = tableSpec{
		name:     "wasm.events",
		columns:  []string{"height", "tx_hash", "msg_index", "event_index", "contract", "attributes", "time"},
		casts:    []string{"", "", "", "", "", "jsonb", ""},
		conflict: "ON CONFLICT (height, tx_hash, msg_index, event_index) DO NOTHING",
		maxRows:  5000,
	}

	govProposalsSpec = tableSpec{
		name:    "gov.proposals",
		columns: []string{"proposal_id", "proposer", "title", "type_url", "content", "status", "height", "time"},
		casts:   []string{"", "", "", "", "jsonb", "", "", ""},
		conflict: `ON CONFLICT (proposal_id) DO UPDATE SET
			proposer = COALESCE(NULLIF(EXCLUDED.proposer, ''), gov.proposals.proposer),
			title = COALESCE(NULLIF(EXCLUDED.title, ''), gov.proposals.title),
			type_url = COALESCE(NULLIF(EXCLUDED.type_url, ''), gov.proposals.type_url),
			content = COALESCE(EXCLUDED.content, gov.proposals.content),
			status = COALESCE(NULLIF(EXCLUDED.status, ''), gov.proposals.status)`,
		maxRows: 1000,
	}

	govDepositsSpec = tableSpec{
		name:     "gov.deposits",
		columns:  []string{"height", "tx_hash", "msg_index", "proposal_id", "depositor", "denom", "amount", "time"},
		casts:    make([]string, 8),
		conflict: "ON CONFLICT (height, tx_hash, msg_index, denom) DO NOTHING",
		maxRows:  5000,
	}

	govVotesSpec = tableSpec{
		name:     "gov.votes",
		columns:  []string{"height", "tx_hash", "msg_index", "proposal_id", "voter", "option", "weight", "time"},
		casts:    make([]string, 8),
		conflict: "ON CONFLICT (height, tx_hash, msg_index) DO NOTHING",
		maxRows:  5000,
	}
)

// sanitizeForPG removes Postgres-incompatible bytes from strings:
// null bytes and invalid UTF-8 sequences.
func sanitizeForPG(s string) string {
	s = strings.ReplaceAll(s, "\\u0000", "")
	if strings.ContainsRune(s, 0) {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// sanitizeJSONB prepares a json.RawMessage for a jsonb column. Returns nil
// (SQL NULL) when the payload is empty or not valid JSON after sanitizing.
func sanitizeJSONB(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	s := sanitizeForPG(string(raw))
	if !json.Valid([]byte(s)) {
		return nil
	}
	return s
}

// insertRowSet writes every buffered table of rs through tx in the fixed
// order blocks, transactions, messages, events, attrs, transfers, stake,
// wasm, gov. Returns the total row count sent.
func insertRowSet(ctx context.Context, tx pgx.Tx, rs *extract.RowSet) (int, error) {
	total := 0

	n, err := insertRows(ctx, tx, blocksSpec, blockArgs(rs.Blocks))
	if err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, txsSpec, txArgs(rs.Txs)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, messagesSpec, messageArgs(rs.Messages)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, eventsSpec, eventArgs(rs.Events)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, eventAttrsSpec, eventAttrArgs(rs.EventAttrs)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, transfersSpec, transferArgs(rs.Transfers)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, stakeDelegSpec, stakeDelegArgs(rs.StakeDelegs)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, stakeDistribSpec, stakeDistribArgs(rs.StakeDistribs)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, wasmExecsSpec, wasmExecArgs(rs.WasmExecs)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, wasmEventsSpec, wasmEventArgs(rs.WasmEvents)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, govProposalsSpec, govProposalArgs(rs.GovProposals)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, govDepositsSpec, govDepositArgs(rs.GovDeposits)); err != nil {
		return total, err
	}
	total += n

	if n, err = insertRows(ctx, tx, govVotesSpec, govVoteArgs(rs.GovVotes)); err != nil {
		return total, err
	}
	total += n

	return total, nil
}

func blockArgs(rows []models.BlockRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.BlockHash, r.Time, r.ProposerAddress, r.TxCount,
			r.SizeBytes, r.LastCommitHash, r.DataHash, r.EvidenceCount, r.AppHash}
	}
	return out
}

func txArgs(rows []models.TxRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.TxIndex, r.Code, r.GasWanted, r.GasUsed,
			sanitizeJSONB(r.Fee), sanitizeForPG(r.Memo), r.Signers, sanitizeJSONB(r.RawTx),
			sanitizeForPG(r.LogSummary), r.Time}
	}
	return out
}

func messageArgs(rows []models.MessageRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.TypeURL, sanitizeJSONB(r.Value),
			r.Signer, r.Time}
	}
	return out
}

func eventArgs(rows []models.EventRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.EventIndex, r.EventType,
			sanitizeJSONB(r.Attributes), r.Time}
	}
	return out
}

func eventAttrArgs(rows []models.EventAttrRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.EventIndex, sanitizeForPG(r.Key),
			sanitizeForPG(r.Value), r.Time}
	}
	return out
}

func transferArgs(rows []models.TransferRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.FromAddr, r.ToAddr, r.Denom, r.Amount, r.Time}
	}
	return out
}

func stakeDelegArgs(rows []models.StakeDelegationRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.EventType, r.DelegatorAddress,
			r.ValidatorSrc, r.ValidatorDst, r.Denom, r.Amount, r.Time}
	}
	return out
}

func stakeDistribArgs(rows []models.StakeDistributionRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.EventType, r.ValidatorAddress,
			r.DelegatorAddress, r.WithdrawAddress, r.Denom, r.Amount, r.Time}
	}
	return out
}

func wasmExecArgs(rows []models.WasmExecutionRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.Contract, r.Sender,
			sanitizeJSONB(r.Msg), sanitizeJSONB(r.Funds), r.Success, sanitizeForPG(r.Error), r.Time}
	}
	return out
}

func wasmEventArgs(rows []models.WasmEventRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.EventIndex, r.Contract,
			sanitizeJSONB(r.Attributes), r.Time}
	}
	return out
}

func govProposalArgs(rows []models.GovProposalRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.ProposalID, r.Proposer, sanitizeForPG(r.Title), r.TypeURL,
			sanitizeJSONB(r.Content), r.Status, r.Height, r.Time}
	}
	return out
}

func govDepositArgs(rows []models.GovDepositRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.ProposalID, r.Depositor, r.Denom, r.Amount, r.Time}
	}
	return out
}

func govVoteArgs(rows []models.GovVoteRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Height, r.TxHash, r.MsgIndex, r.ProposalID, r.Voter, r.Option, r.Weight, r.Time}
	}
	return out
}
