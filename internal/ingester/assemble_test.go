package ingester

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"cosmoscan/internal/rpc"
)

func makeBlock(height string, txs ...string) *rpc.BlockResponse {
	b := &rpc.BlockResponse{}
	b.BlockID.Hash = "aabb"
	b.Block.Header.ChainID = "testchain-1"
	b.Block.Header.Height = height
	b.Block.Header.Time = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.Block.Header.ProposerAddress = "PROP"
	b.Block.Data.Txs = txs
	return b
}

func TestAssembleHashesAndMeta(t *testing.T) {
	t.Parallel()

	raw := []byte("some raw tx bytes")
	b64 := base64.StdEncoding.EncodeToString(raw)
	block := makeBlock("42", b64)
	results := &rpc.BlockResultsResponse{
		Height: "42",
		TxsResults: []rpc.TxResult{{
			Code:      0,
			GasWanted: "100000",
			GasUsed:   "55000",
		}},
	}

	rec, err := Assemble(block, results, []map[string]any{{"@type": "/cosmos.tx.v1beta1.Tx"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if rec.Meta.Height != 42 || rec.Meta.ChainID != "testchain-1" {
		t.Errorf("meta = %+v", rec.Meta)
	}
	if rec.Header.BlockHash != "AABB" {
		t.Errorf("block hash = %q, want uppercase", rec.Header.BlockHash)
	}
	if rec.Header.SizeBytes != len(raw) {
		t.Errorf("size = %d, want %d", rec.Header.SizeBytes, len(raw))
	}

	sum := sha256.Sum256(raw)
	wantHash := strings.ToUpper(hex.EncodeToString(sum[:]))
	if rec.Txs[0].Hash != wantHash {
		t.Errorf("tx hash = %q, want %q", rec.Txs[0].Hash, wantHash)
	}
	if rec.Txs[0].Response.GasUsed != 55000 {
		t.Errorf("gas used = %d", rec.Txs[0].Response.GasUsed)
	}
	if !rec.Txs[0].Response.Timestamp.Equal(rec.Meta.Time) {
		t.Error("tx timestamp not copied from block time")
	}
}

func TestAssemblePadsMissingResults(t *testing.T) {
	t.Parallel()

	b64 := base64.StdEncoding.EncodeToString([]byte("tx"))
	block := makeBlock("7", b64, b64)
	results := &rpc.BlockResultsResponse{Height: "7", TxsResults: []rpc.TxResult{{Code: 3, Log: "boom"}}}

	rec, err := Assemble(block, results, []map[string]any{{}, {}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if rec.Txs[0].Response.Code != 3 {
		t.Errorf("first tx code = %d", rec.Txs[0].Response.Code)
	}
	if rec.Txs[1].Response.Code != 0 || len(rec.Txs[1].Response.Events) != 0 {
		t.Errorf("padded result = %+v", rec.Txs[1].Response)
	}
}

func TestAssembleRejectsMismatchedDecodes(t *testing.T) {
	t.Parallel()

	block := makeBlock("7", base64.StdEncoding.EncodeToString([]byte("tx")))
	results := &rpc.BlockResultsResponse{Height: "7"}
	if _, err := Assemble(block, results, nil); err == nil {
		t.Fatal("expected error for decoded count mismatch")
	}
}

func TestAssembleRejectsBadHeight(t *testing.T) {
	t.Parallel()

	block := makeBlock("not-a-number")
	if _, err := Assemble(block, &rpc.BlockResultsResponse{}, nil); err == nil {
		t.Fatal("expected error for unparsable height")
	}
}
