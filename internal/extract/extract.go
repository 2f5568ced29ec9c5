package extract

import (
	"encoding/json"
	"strconv"
	"time"

	"cosmoscan/internal/models"
)

const (
	msgExecuteContractURL = "/cosmwasm.wasm.v1.MsgExecuteContract"

	logSummaryMaxLen = 2000
)

// signerFields are the message-level address fields consulted, in order,
// when inferring transaction signers.
var signerFields = []string{
	"signer", "from_address", "delegator_address", "validator_address",
	"authority", "admin", "granter", "grantee", "sender", "creator",
}

var (
	stakeDelegationEvents = map[string]bool{
		"delegate": true, "redelegate": true, "unbond": true, "complete_unbonding": true,
	}
	stakeDistributionEvents = map[string]bool{
		"withdraw_rewards": true, "withdraw_commission": true, "set_withdraw_address": true,
	}
	govDepositURLs = map[string]bool{
		"/cosmos.gov.v1beta1.MsgDeposit": true, "/cosmos.gov.v1.MsgDeposit": true,
	}
	govVoteURLs = map[string]bool{
		"/cosmos.gov.v1beta1.MsgVote": true, "/cosmos.gov.v1.MsgVote": true,
	}
	govVoteWeightedURLs = map[string]bool{
		"/cosmos.gov.v1beta1.MsgVoteWeighted": true, "/cosmos.gov.v1.MsgVoteWeighted": true,
	}
	govSubmitProposalURLs = map[string]bool{
		"/cosmos.gov.v1beta1.MsgSubmitProposal": true, "/cosmos.gov.v1.MsgSubmitProposal": true,
	}
)

// FromRecord projects one assembled block into row sets for every target
// table. A transaction row is emitted for every tx regardless of its code.
func FromRecord(rec *models.BlockRecord) *RowSet {
	out := &RowSet{}
	h := rec.Meta.Height
	t := rec.Meta.Time

	out.Blocks = append(out.Blocks, models.BlockRow{
		Height:          h,
		BlockHash:       rec.Header.BlockHash,
		Time:            t,
		ProposerAddress: rec.Header.ProposerAddress,
		TxCount:         len(rec.Txs),
		SizeBytes:       rec.Header.SizeBytes,
		LastCommitHash:  rec.Header.LastCommitHash,
		DataHash:        rec.Header.DataHash,
		EvidenceCount:   rec.Header.EvidenceCount,
		AppHash:         rec.Header.AppHash,
	})

	for txIndex, tx := range rec.Txs {
		msgs := decodedMessages(tx.Decoded)

		logSummary := ""
		if tx.Response.Code != 0 {
			logSummary = truncate(tx.Response.RawLog, logSummaryMaxLen)
		}

		rawTx, _ := json.Marshal(tx.Decoded)
		out.Txs = append(out.Txs, models.TxRow{
			Height:     h,
			TxHash:     tx.Hash,
			TxIndex:    txIndex,
			Code:       tx.Response.Code,
			GasWanted:  tx.Response.GasWanted,
			GasUsed:    tx.Response.GasUsed,
			Fee:        feeJSON(tx.Decoded),
			Memo:       memoOf(tx.Decoded),
			Signers:    inferSigners(msgs),
			RawTx:      rawTx,
			LogSummary: logSummary,
			Time:       t,
		})

		for msgIndex, msg := range msgs {
			typeURL, _ := msg["@type"].(string)
			value, _ := json.Marshal(msg)
			out.Messages = append(out.Messages, models.MessageRow{
				Height:   h,
				TxHash:   tx.Hash,
				MsgIndex: msgIndex,
				TypeURL:  typeURL,
				Value:    value,
				Signer:   getStr(msg, "signer", "from_address", "delegator_address"),
				Time:     t,
			})

			if typeURL == msgExecuteContractURL {
				execMsg, _ := json.Marshal(msg["msg"])
				funds, _ := json.Marshal(msg["funds"])
				exec := models.WasmExecutionRow{
					Height:   h,
					TxHash:   tx.Hash,
					MsgIndex: msgIndex,
					Contract: getStr(msg, "contract"),
					Sender:   getStr(msg, "sender"),
					Msg:      execMsg,
					Funds:    funds,
					Success:  tx.Response.Code == 0,
					Time:     t,
				}
				if !exec.Success {
					exec.Error = logSummary
				}
				out.WasmExecs = append(out.WasmExecs, exec)
			}

			extractGov(out, rec, tx, msgIndex, typeURL, msg)
		}

		for _, entry := range tx.Response.Logs {
			var msg map[string]any
			if entry.MsgIndex >= 0 && entry.MsgIndex < len(msgs) {
				msg = msgs[entry.MsgIndex]
			}
			for eventIndex, event := range entry.Events {
				extractEvent(out, h, t, tx.Hash, entry.MsgIndex, eventIndex, event, msg)
			}
		}
	}

	return out
}

// extractEvent emits the event row, its flattened attributes, and any derived
// rows (transfers, staking, distribution, wasm).
func extractEvent(out *RowSet, h uint64, t time.Time, txHash string, msgIndex, eventIndex int, event models.ABCIEvent, msg map[string]any) {
	attrsJSON, _ := json.Marshal(event.Attributes)
	out.Events = append(out.Events, models.EventRow{
		Height:     h,
		TxHash:     txHash,
		MsgIndex:   msgIndex,
		EventIndex: eventIndex,
		EventType:  event.Type,
		Attributes: attrsJSON,
		Time:       t,
	})

	attrs := attrMap(event)
	for _, a := range event.Attributes {
		out.EventAttrs = append(out.EventAttrs, models.EventAttrRow{
			Height:     h,
			TxHash:     txHash,
			MsgIndex:   msgIndex,
			EventIndex: eventIndex,
			Key:        a.Key,
			Value:      a.Value,
			Time:       t,
		})
	}

	switch {
	case event.Type == "transfer":
		sender, recipient := attrs["sender"], attrs["recipient"]
		coin := ParseCoin(attrs["amount"])
		if sender != "" && recipient != "" && coin != nil {
			out.Transfers = append(out.Transfers, models.TransferRow{
				Height:   h,
				TxHash:   txHash,
				MsgIndex: msgIndex,
				FromAddr: sender,
				ToAddr:   recipient,
				Denom:    coin.Denom,
				Amount:   coin.Amount,
				Time:     t,
			})
		}

	case stakeDelegationEvents[event.Type]:
		row := models.StakeDelegationRow{
			Height:           h,
			TxHash:           txHash,
			MsgIndex:         msgIndex,
			EventType:        event.Type,
			DelegatorAddress: attrs["delegator"],
			ValidatorSrc:     firstNonEmpty(attrs["source_validator"], attrs["validator"]),
			ValidatorDst:     attrs["destination_validator"],
			Time:             t,
		}
		if msg != nil {
			if row.DelegatorAddress == "" {
				row.DelegatorAddress = getStr(msg, "delegator_address")
			}
			if row.ValidatorSrc == "" {
				row.ValidatorSrc = getStr(msg, "validator_src_address", "source_validator_address", "validator_address")
			}
			if row.ValidatorDst == "" {
				row.ValidatorDst = getStr(msg, "validator_dst_address", "destination_validator_address")
			}
		}
		if coin := ParseCoin(firstNonEmpty(attrs["amount"], attrs["completion_amount"])); coin != nil {
			row.Denom, row.Amount = coin.Denom, coin.Amount
		} else if msg != nil {
			if amt, ok := msg["amount"].(map[string]any); ok {
				row.Denom = getStr(amt, "denom")
				row.Amount = getStr(amt, "amount")
			}
		}
		out.StakeDelegs = append(out.StakeDelegs, row)

	case stakeDistributionEvents[event.Type]:
		row := models.StakeDistributionRow{
			Height:           h,
			TxHash:           txHash,
			MsgIndex:         msgIndex,
			EventType:        event.Type,
			ValidatorAddress: attrs["validator"],
			DelegatorAddress: attrs["delegator"],
			WithdrawAddress:  attrs["withdraw_address"],
			Time:             t,
		}
		if msg != nil {
			if row.ValidatorAddress == "" {
				row.ValidatorAddress = getStr(msg, "validator_address")
			}
			if row.DelegatorAddress == "" {
				row.DelegatorAddress = getStr(msg, "delegator_address")
			}
			if row.WithdrawAddress == "" {
				row.WithdrawAddress = getStr(msg, "withdraw_address")
			}
		}
		if coin := ParseCoin(attrs["amount"]); coin != nil {
			row.Denom, row.Amount = coin.Denom, coin.Amount
		}
		out.StakeDistribs = append(out.StakeDistribs, row)

	case event.Type == "wasm":
		contract := firstNonEmpty(attrs["_contract_address"], attrs["contract_address"])
		if contract != "" {
			out.WasmEvents = append(out.WasmEvents, models.WasmEventRow{
				Height:     h,
				TxHash:     txHash,
				MsgIndex:   msgIndex,
				EventIndex: eventIndex,
				Contract:   contract,
				Attributes: attrsJSON,
				Time:       t,
			})
		}
	}
}

// extractGov emits governance rows for deposit/vote/submit-proposal messages.
func extractGov(out *RowSet, rec *models.BlockRecord, tx models.TxRecord, msgIndex int, typeURL string, msg map[string]any) {
	h := rec.Meta.Height
	t := rec.Meta.Time

	switch {
	case govDepositURLs[typeURL]:
		proposalID, ok := parseProposalID(msg["proposal_id"])
		if !ok {
			return
		}
		depositor := getStr(msg, "depositor")
		for _, c := range coinList(msg["amount"]) {
			out.GovDeposits = append(out.GovDeposits, models.GovDepositRow{
				Height:     h,
				TxHash:     tx.Hash,
				MsgIndex:   msgIndex,
				ProposalID: proposalID,
				Depositor:  depositor,
				Denom:      c.Denom,
				Amount:     c.Amount,
				Time:       t,
			})
		}

	case govVoteURLs[typeURL]:
		proposalID, ok := parseProposalID(msg["proposal_id"])
		if !ok {
			return
		}
		out.GovVotes = append(out.GovVotes, models.GovVoteRow{
			Height:     h,
			TxHash:     tx.Hash,
			MsgIndex:   msgIndex,
			ProposalID: proposalID,
			Voter:      getStr(msg, "voter"),
			Option:     stringify(msg["option"]),
			Time:       t,
		})

	case govVoteWeightedURLs[typeURL]:
		proposalID, ok := parseProposalID(msg["proposal_id"])
		if !ok {
			return
		}
		row := models.GovVoteRow{
			Height:     h,
			TxHash:     tx.Hash,
			MsgIndex:   msgIndex,
			ProposalID: proposalID,
			Voter:      getStr(msg, "voter"),
			Time:       t,
		}
		if opts, ok := msg["options"].([]any); ok && len(opts) > 0 {
			if first, ok := opts[0].(map[string]any); ok {
				row.Option = stringify(first["option"])
				row.Weight = getStr(first, "weight")
			}
		}
		out.GovVotes = append(out.GovVotes, row)

	case govSubmitProposalURLs[typeURL]:
		// The proposal id is assigned by the chain; recover it from the
		// submit_proposal (or proposal) event of this message.
		proposalID, ok := proposalIDFromEvents(tx, msgIndex)
		if !ok {
			return
		}
		row := models.GovProposalRow{
			ProposalID: proposalID,
			Proposer:   getStr(msg, "proposer"),
			Title:      getStr(msg, "title"),
			TypeURL:    typeURL,
			Status:     "PROPOSAL_STATUS_DEPOSIT_PERIOD",
			Height:     h,
			Time:       t,
		}
		if content, ok := msg["content"].(map[string]any); ok {
			row.Content, _ = json.Marshal(content)
			if row.Title == "" {
				row.Title = getStr(content, "title")
			}
		} else if msgsField, ok := msg["messages"].([]any); ok {
			row.Content, _ = json.Marshal(msgsField)
		}
		out.GovProposals = append(out.GovProposals, row)
	}
}

func proposalIDFromEvents(tx models.TxRecord, msgIndex int) (uint64, bool) {
	for _, entry := range tx.Response.Logs {
		if entry.MsgIndex != msgIndex {
			continue
		}
		for _, e := range entry.Events {
			if e.Type != "submit_proposal" && e.Type != "proposal" {
				continue
			}
			if v, ok := attrMap(e)["proposal_id"]; ok {
				if id, err := strconv.ParseUint(v, 10, 64); err == nil {
					return id, true
				}
			}
		}
	}
	return 0, false
}

// --- helpers ---

func decodedMessages(decoded map[string]any) []map[string]any {
	body, ok := decoded["body"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := body["messages"].([]any)
	if !ok {
		return nil
	}
	msgs := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		if mm, ok := m.(map[string]any); ok {
			msgs = append(msgs, mm)
		} else {
			msgs = append(msgs, map[string]any{})
		}
	}
	return msgs
}

func memoOf(decoded map[string]any) string {
	if body, ok := decoded["body"].(map[string]any); ok {
		return getStr(body, "memo")
	}
	return ""
}

func feeJSON(decoded map[string]any) json.RawMessage {
	auth, ok := decoded["auth_info"].(map[string]any)
	if !ok {
		return nil
	}
	fee, ok := auth["fee"]
	if !ok || fee == nil {
		return nil
	}
	bz, err := json.Marshal(fee)
	if err != nil {
		return nil
	}
	return bz
}

// inferSigners walks message address fields in a fixed order, keeping values
// of plausible address length, deduplicated in first-seen order.
func inferSigners(msgs []map[string]any) []string {
	var signers []string
	seen := make(map[string]bool)
	for _, msg := range msgs {
		for _, field := range signerFields {
			v := getStr(msg, field)
			if len(v) >= 10 && !seen[v] {
				seen[v] = true
				signers = append(signers, v)
			}
		}
	}
	return signers
}

// getStr returns the first non-empty string among the given keys, trying the
// camelCase spelling of each key as well (payloads may be in either mode).
func getStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
		if s, ok := m[snakeToCamelKey(k)].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func snakeToCamelKey(k string) string {
	out := make([]byte, 0, len(k))
	upper := false
	for i := 0; i < len(k); i++ {
		c := k[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

func attrMap(e models.ABCIEvent) map[string]string {
	m := make(map[string]string, len(e.Attributes))
	for _, a := range e.Attributes {
		if _, ok := m[a.Key]; !ok {
			m[a.Key] = a.Value
		}
	}
	return m
}

func coinList(v any) []Coin {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	coins := make([]Coin, 0, len(raw))
	for _, c := range raw {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		denom := getStr(m, "denom")
		amount := getStr(m, "amount")
		if denom != "" && amount != "" {
			coins = append(coins, Coin{Denom: denom, Amount: amount})
		}
	}
	return coins
}

func parseProposalID(v any) (uint64, bool) {
	switch id := v.(type) {
	case string:
		n, err := strconv.ParseUint(id, 10, 64)
		return n, err == nil
	case float64:
		return uint64(id), id >= 0
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		bz, _ := json.Marshal(s)
		return string(bz)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
