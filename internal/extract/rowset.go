package extract

import "cosmoscan/internal/models"

// RowSet holds the rows projected from one or more block records, grouped by
// target table. The postgres sink uses it directly as its per-table buffer.
type RowSet struct {
	Blocks        []models.BlockRow
	Txs           []models.TxRow
	Messages      []models.MessageRow
	Events        []models.EventRow
	EventAttrs    []models.EventAttrRow
	Transfers     []models.TransferRow
	StakeDelegs   []models.StakeDelegationRow
	StakeDistribs []models.StakeDistributionRow
	WasmExecs     []models.WasmExecutionRow
	WasmEvents    []models.WasmEventRow
	GovProposals  []models.GovProposalRow
	GovDeposits   []models.GovDepositRow
	GovVotes      []models.GovVoteRow
}

// Append merges other into s.
func (s *RowSet) Append(other *RowSet) {
	s.Blocks = append(s.Blocks, other.Blocks...)
	s.Txs = append(s.Txs, other.Txs...)
	s.Messages = append(s.Messages, other.Messages...)
	s.Events = append(s.Events, other.Events...)
	s.EventAttrs = append(s.EventAttrs, other.EventAttrs...)
	s.Transfers = append(s.Transfers, other.Transfers...)
	s.StakeDelegs = append(s.StakeDelegs, other.StakeDelegs...)
	s.StakeDistribs = append(s.StakeDistribs, other.StakeDistribs...)
	s.WasmExecs = append(s.WasmExecs, other.WasmExecs...)
	s.WasmEvents = append(s.WasmEvents, other.WasmEvents...)
	s.GovProposals = append(s.GovProposals, other.GovProposals...)
	s.GovDeposits = append(s.GovDeposits, other.GovDeposits...)
	s.GovVotes = append(s.GovVotes, other.GovVotes...)
}

// Reset empties every buffer while keeping capacity.
func (s *RowSet) Reset() {
	s.Blocks = s.Blocks[:0]
	s.Txs = s.Txs[:0]
	s.Messages = s.Messages[:0]
	s.Events = s.Events[:0]
	s.EventAttrs = s.EventAttrs[:0]
	s.Transfers = s.Transfers[:0]
	s.StakeDelegs = s.StakeDelegs[:0]
	s.StakeDistribs = s.StakeDistribs[:0]
	s.WasmExecs = s.WasmExecs[:0]
	s.WasmEvents = s.WasmEvents[:0]
	s.GovProposals = s.GovProposals[:0]
	s.GovDeposits = s.GovDeposits[:0]
	s.GovVotes = s.GovVotes[:0]
}

// Empty reports whether no rows are buffered.
func (s *RowSet) Empty() bool {
	return len(s.Blocks) == 0 && len(s.Txs) == 0 && len(s.Messages) == 0 &&
		len(s.Events) == 0 && len(s.EventAttrs) == 0 && len(s.Transfers) == 0 &&
		len(s.StakeDelegs) == 0 && len(s.StakeDistribs) == 0 &&
		len(s.WasmExecs) == 0 && len(s.WasmEvents) == 0 &&
		len(s.GovProposals) == 0 && len(s.GovDeposits) == 0 && len(s.GovVotes) == 0
}

// HeightBounds returns the [min, max] height across buffered block rows.
func (s *RowSet) HeightBounds() (minH, maxH uint64, ok bool) {
	if len(s.Blocks) == 0 {
		return 0, 0, false
	}
	minH, maxH = s.Blocks[0].Height, s.Blocks[0].Height
	for _, b := range s.Blocks[1:] {
		if b.Height < minH {
			minH = b.Height
		}
		if b.Height > maxH {
			maxH = b.Height
		}
	}
	return minH, maxH, true
}
