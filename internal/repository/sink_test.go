package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmoscan/internal/extract"
	"cosmoscan/internal/models"
)

func blockRecord(height uint64) *models.BlockRecord {
	return &models.BlockRecord{
		Meta: models.BlockMeta{
			ChainID: "testchain-1",
			Height:  height,
			Time:    time.Unix(1700000000, 0).UTC(),
		},
		Header: models.BlockHeader{BlockHash: "AABB"},
	}
}

// flakySink replaces the transaction layer with a scripted failure sequence.
type flakySink struct {
	*PGSink
	failuresLeft int
	flushed      [][]uint64 // heights seen per successful flush
}

func newFlakySink(t *testing.T, mode SinkMode, th Thresholds, failures int) *flakySink {
	t.Helper()
	inner, err := NewPGSink(nil, mode, "test", th)
	if err != nil {
		t.Fatalf("NewPGSink: %v", err)
	}
	f := &flakySink{PGSink: inner, failuresLeft: failures}
	inner.doFlush = func(_ context.Context, rs *extract.RowSet) error {
		if f.failuresLeft > 0 {
			f.failuresLeft--
			return errors.New("lock timeout")
		}
		heights := make([]uint64, len(rs.Blocks))
		for i, b := range rs.Blocks {
			heights[i] = b.Height
		}
		f.flushed = append(f.flushed, heights)
		return nil
	}
	return f
}

func TestWriteRetainsBufferAcrossFlushFailure(t *testing.T) {
	t.Parallel()

	s := newFlakySink(t, ModeBatchInsert, Thresholds{Blocks: 2}, 1)
	ctx := context.Background()

	if err := s.Write(ctx, blockRecord(10)); err != nil {
		t.Fatalf("Write(10): %v", err)
	}
	// Threshold reached, scripted failure: the write must not error and the
	// rows must stay buffered.
	if err := s.Write(ctx, blockRecord(11)); err != nil {
		t.Fatalf("Write(11) after transient flush failure: %v", err)
	}
	if len(s.buf.Blocks) != 2 {
		t.Fatalf("buffered blocks = %d after failed flush, want 2", len(s.buf.Blocks))
	}

	// Next threshold retries the whole buffer.
	if err := s.Write(ctx, blockRecord(12)); err != nil {
		t.Fatalf("Write(12): %v", err)
	}
	if len(s.flushed) != 1 {
		t.Fatalf("successful flushes = %d, want 1", len(s.flushed))
	}
	if got := s.flushed[0]; len(got) != 3 || got[0] != 10 || got[2] != 12 {
		t.Fatalf("flushed heights = %v, want [10 11 12]", got)
	}
	if !s.buf.Empty() {
		t.Fatal("buffer not reset after successful flush")
	}
	if s.flushFailures != 0 {
		t.Fatalf("failure counter = %d after success, want 0", s.flushFailures)
	}
}

func TestWritePropagatesRepeatedFlushFailures(t *testing.T) {
	t.Parallel()

	s := newFlakySink(t, ModeBatchInsert, Thresholds{Blocks: 1}, 100)
	ctx := context.Background()

	var err error
	for h := uint64(1); h <= maxFlushFailures; h++ {
		err = s.Write(ctx, blockRecord(h))
		if h < maxFlushFailures && err != nil {
			t.Fatalf("Write(%d): premature error %v", h, err)
		}
	}
	if err == nil {
		t.Fatalf("no error after %d consecutive flush failures", maxFlushFailures)
	}
	if s.buf.Empty() {
		t.Fatal("buffer was dropped on the propagated failure")
	}
}

func TestBlockAtomicFlushesEveryWrite(t *testing.T) {
	t.Parallel()

	s := newFlakySink(t, ModeBlockAtomic, Thresholds{}, 0)
	ctx := context.Background()

	for h := uint64(20); h < 23; h++ {
		if err := s.Write(ctx, blockRecord(h)); err != nil {
			t.Fatalf("Write(%d): %v", h, err)
		}
	}
	if len(s.flushed) != 3 {
		t.Fatalf("flushes = %d, want one per write", len(s.flushed))
	}
	for i, heights := range s.flushed {
		if len(heights) != 1 || heights[0] != uint64(20+i) {
			t.Fatalf("flush %d carried %v", i, heights)
		}
	}
}

func TestFlushErrorKeepsBufferForExplicitRetry(t *testing.T) {
	t.Parallel()

	s := newFlakySink(t, ModeBatchInsert, Thresholds{Blocks: 100}, 1)
	ctx := context.Background()

	if err := s.Write(ctx, blockRecord(5)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Flush(ctx); err == nil {
		t.Fatal("expected scripted flush error")
	}
	if len(s.buf.Blocks) != 1 {
		t.Fatalf("buffered blocks = %d after failed flush, want 1", len(s.buf.Blocks))
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("retried Flush: %v", err)
	}
	if !s.buf.Empty() {
		t.Fatal("buffer not reset after retried flush")
	}
}
