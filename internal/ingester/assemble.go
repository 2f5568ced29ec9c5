package ingester

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"

	"cosmoscan/internal/models"
	"cosmoscan/internal/rpc"
)

// Assemble composes a raw block, its ABCI results, and the decoded
// transactions (aligned by index with block.data.txs) into a BlockRecord.
// It is a pure function of its inputs.
func Assemble(block *rpc.BlockResponse, results *rpc.BlockResultsResponse, decoded []map[string]any) (*models.BlockRecord, error) {
	header := block.Block.Header
	height, err := strconv.ParseUint(header.Height, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse block height %q: %w", header.Height, err)
	}

	rawTxs := block.Block.Data.Txs
	if len(decoded) != len(rawTxs) {
		return nil, fmt.Errorf("decoded tx count %d != raw tx count %d at height %d", len(decoded), len(rawTxs), height)
	}
	if len(results.TxsResults) != len(rawTxs) {
		log.Printf("[assemble] height %d: %d tx results for %d txs, padding with empty results", height, len(results.TxsResults), len(rawTxs))
	}

	rec := &models.BlockRecord{
		Meta: models.BlockMeta{
			ChainID: header.ChainID,
			Height:  height,
			Time:    header.Time,
		},
		Header: models.BlockHeader{
			BlockHash:       strings.ToUpper(block.BlockID.Hash),
			ProposerAddress: header.ProposerAddress,
			LastCommitHash:  header.LastCommitHash,
			DataHash:        header.DataHash,
			AppHash:         header.AppHash,
			EvidenceCount:   len(block.Block.Evidence.Evidence),
		},
		Txs: make([]models.TxRecord, 0, len(rawTxs)),
	}

	sizeBytes := 0
	for i, b64 := range rawTxs {
		bz, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("tx %d at height %d is not valid base64: %w", i, height, err)
		}
		sizeBytes += len(bz)
		sum := sha256.Sum256(bz)

		res := rpc.TxResult{Code: 0, Events: []rpc.Event{}}
		if i < len(results.TxsResults) {
			res = results.TxsResults[i]
		}
		txEvents := NormalizeEvents(res.Events)

		rec.Txs = append(rec.Txs, models.TxRecord{
			Hash:      strings.ToUpper(hex.EncodeToString(sum[:])),
			RawBase64: b64,
			RawHex:    strings.ToUpper(hex.EncodeToString(bz)),
			Decoded:   decoded[i],
			Response: models.TxResponse{
				Code:      res.Code,
				Codespace: res.Codespace,
				Data:      res.Data,
				RawLog:    res.Log,
				GasWanted: parseInt64(res.GasWanted),
				GasUsed:   parseInt64(res.GasUsed),
				Events:    txEvents,
				Logs:      BuildLogs(res.Log, txEvents),
				Timestamp: header.Time,
			},
		})
	}
	rec.Header.SizeBytes = sizeBytes

	return rec, nil
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
