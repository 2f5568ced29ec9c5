package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"cosmoscan/internal/extract"
	"cosmoscan/internal/models"
)

// SinkMode selects the transaction granularity of the postgres sink.
type SinkMode string

const (
	// ModeBlockAtomic flushes on every write, one transaction per block.
	// After a failed flush the retried transaction carries the held-back
	// blocks as well.
	ModeBlockAtomic SinkMode = "block-atomic"
	// ModeBatchInsert buffers rows across blocks and flushes on thresholds.
	ModeBatchInsert SinkMode = "batch-insert"
)

// Thresholds are the per-table buffer sizes that trigger a flush in
// batch-insert mode.
type Thresholds struct {
	Blocks int
	Txs    int
	Msgs   int
	Events int
	Attrs  int
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Blocks <= 0 {
		t.Blocks = 1000
	}
	if t.Txs <= 0 {
		t.Txs = 2000
	}
	if t.Msgs <= 0 {
		t.Msgs = 5000
	}
	if t.Events <= 0 {
		t.Events = 10000
	}
	if t.Attrs <= 0 {
		t.Attrs = 30000
	}
	return t
}

// maxFlushFailures is the number of consecutive failed flushes tolerated on
// the write path before the error propagates and ends the run. Each failure
// rolls back and keeps the buffered rows for the next attempt.
const maxFlushFailures = 3

// PGSink persists block records into the partitioned schema. Writes arrive
// in ascending height order from a single runner; the sink itself is not
// safe for concurrent use.
type PGSink struct {
	repo       *Repository
	mode       SinkMode
	progressID string
	thresholds Thresholds

	buf           *extract.RowSet
	flushFailures int

	// doFlush is s.flushSet, swappable in tests.
	doFlush func(ctx context.Context, rs *extract.RowSet) error
}

func NewPGSink(repo *Repository, mode SinkMode, progressID string, thresholds Thresholds) (*PGSink, error) {
	switch mode {
	case ModeBlockAtomic, ModeBatchInsert:
	default:
		return nil, fmt.Errorf("unknown sink mode %q", mode)
	}
	if progressID == "" {
		progressID = "default"
	}
	s := &PGSink{
		repo:       repo,
		mode:       mode,
		progressID: progressID,
		thresholds: thresholds.withDefaults(),
		buf:        &extract.RowSet{},
	}
	s.doFlush = s.flushSet
	return s, nil
}

// Write buffers the record's rows and flushes per mode: on every write in
// block-atomic mode, on thresholds in batch-insert mode. A failed flush
// keeps its rows buffered and is retried by the next flush trigger; only
// maxFlushFailures consecutive failures surface as a write error.
func (s *PGSink) Write(ctx context.Context, rec *models.BlockRecord) error {
	s.buf.Append(extract.FromRecord(rec))
	if s.mode != ModeBlockAtomic && !s.thresholdReached() {
		return nil
	}
	if err := s.Flush(ctx); err != nil {
		if s.flushFailures < maxFlushFailures {
			log.Printf("[sink] flush failed (%d/%d), %d blocks stay buffered: %v",
				s.flushFailures, maxFlushFailures, len(s.buf.Blocks), err)
			return nil
		}
		return err
	}
	return nil
}

func (s *PGSink) thresholdReached() bool {
	return len(s.buf.Blocks) >= s.thresholds.Blocks ||
		len(s.buf.Txs) >= s.thresholds.Txs ||
		len(s.buf.Messages) >= s.thresholds.Msgs ||
		len(s.buf.Events) >= s.thresholds.Events ||
		len(s.buf.EventAttrs) >= s.thresholds.Attrs
}

// Flush writes all buffered rows in one transaction. On error the buffers
// are left intact so the next trigger retries the same rows.
func (s *PGSink) Flush(ctx context.Context) error {
	if s.buf.Empty() {
		return nil
	}
	if err := s.doFlush(ctx, s.buf); err != nil {
		s.flushFailures++
		return err
	}
	s.flushFailures = 0
	s.buf.Reset()
	return nil
}

func (s *PGSink) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func (s *PGSink) flushSet(ctx context.Context, rs *extract.RowSet) error {
	minH, maxH, ok := rs.HeightBounds()
	if !ok {
		return nil
	}
	if err := s.repo.EnsureCorePartitions(ctx, minH, maxH); err != nil {
		return err
	}

	start := time.Now()
	var total int
	err := pgx.BeginFunc(ctx, s.repo.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL statement_timeout = '30s'"); err != nil {
			return fmt.Errorf("set statement_timeout: %w", err)
		}
		if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '5s'"); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}

		n, err := insertRowSet(ctx, tx, rs)
		if err != nil {
			return err
		}
		total = n
		return upsertProgress(ctx, tx, s.progressID, maxH)
	})
	if err != nil {
		return fmt.Errorf("flush heights %d-%d: %w", minH, maxH, err)
	}

	log.Printf("[sink] flushed heights %d-%d: %d blocks, %d txs, %d events, %d rows total in %s",
		minH, maxH, len(rs.Blocks), len(rs.Txs), len(rs.Events), total,
		time.Since(start).Round(time.Millisecond))
	return nil
}
