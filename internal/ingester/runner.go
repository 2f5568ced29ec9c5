package ingester

import (
	"context"
	"fmt"
	"log"
	"time"

	"cosmoscan/internal/models"
	"cosmoscan/internal/rpc"
	"cosmoscan/internal/sink"
)

// ChainSource is the RPC surface the runner consumes.
type ChainSource interface {
	Status(ctx context.Context) (*rpc.ChainStatus, error)
	Block(ctx context.Context, height uint64) (*rpc.BlockResponse, error)
	BlockResults(ctx context.Context, height uint64) (*rpc.BlockResultsResponse, error)
}

// TxDecoder is the decoder pool surface the runner consumes.
type TxDecoder interface {
	Submit(ctx context.Context, b64 string) (map[string]any, error)
}

// Config controls the sliding-window range runner.
type Config struct {
	Concurrency         int
	BlockTimeout        time.Duration // per fetch/decode step
	MaxBlockRetries     int
	ProgressEveryBlocks int
	ProgressInterval    time.Duration
	ReportSpeed         bool
}

// Runner drives ordered, concurrent ingestion of a closed height range.
// Heights complete out of order in a bounded window; flushing to the sink is
// strictly ascending, with abandoned heights recorded as skips that advance
// the cursor without emitting a row.
type Runner struct {
	source ChainSource
	dec    TxDecoder
	out    sink.Sink
	cfg    Config

	// Totals across Run invocations, read by the follow loop for logging.
	Processed uint64
	Skipped   uint64
}

func NewRunner(source ChainSource, dec TxDecoder, out sink.Sink, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 48
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 30 * time.Second
	}
	if cfg.ProgressEveryBlocks <= 0 {
		cfg.ProgressEveryBlocks = 1000
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 15 * time.Second
	}
	return &Runner{source: source, dec: dec, out: out, cfg: cfg}
}

// heightResult is one completed fetch+decode+assemble task.
type heightResult struct {
	height uint64
	rec    *models.BlockRecord
	err    error
}

// Run ingests [from, to] inclusive and returns once every height has been
// flushed or abandoned. The sink observes records in strictly ascending
// height order.
func (r *Runner) Run(ctx context.Context, from, to uint64) error {
	if to < from {
		return fmt.Errorf("invalid range [%d, %d]", from, to)
	}

	total := to - from + 1
	done := make(chan heightResult, r.cfg.Concurrency)

	// ready holds assembled blocks keyed by height; a nil value is a skip
	// marker. The window is bounded by concurrency, so the map stays small.
	ready := make(map[uint64]*models.BlockRecord, r.cfg.Concurrency)
	attempts := make(map[uint64]int)
	var retryQueue []uint64

	next := from
	flushNext := from
	inFlight := 0
	processed := uint64(0)

	started := time.Now()
	lastReport := started
	lastReported := uint64(0)

	spawn := func(h uint64) {
		inFlight++
		go func() {
			rec, err := r.fetchOne(ctx, h)
			select {
			case done <- heightResult{height: h, rec: rec, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	for {
		for inFlight < r.cfg.Concurrency && (len(retryQueue) > 0 || next <= to) {
			if len(retryQueue) > 0 {
				h := retryQueue[0]
				retryQueue = retryQueue[1:]
				spawn(h)
				continue
			}
			spawn(next)
			next++
		}

		if inFlight == 0 && next > to && len(retryQueue) == 0 {
			break
		}

		var res heightResult
		select {
		case res = <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		inFlight--

		if res.err != nil {
			attempts[res.height]++
			if attempts[res.height] <= r.cfg.MaxBlockRetries {
				log.Printf("[runner] height %d failed (attempt %d/%d), requeueing: %v",
					res.height, attempts[res.height], r.cfg.MaxBlockRetries, res.err)
				retryQueue = append(retryQueue, res.height)
			} else {
				log.Printf("[runner] giving up on height %d after %d attempts: %v",
					res.height, attempts[res.height], res.err)
				ready[res.height] = nil // skip marker
				r.Skipped++
			}
		} else {
			ready[res.height] = res.rec
		}

		// Flush everything contiguous from the cursor. Skip markers advance
		// the cursor without a write, preserving monotonic height order.
		for {
			rec, ok := ready[flushNext]
			if !ok {
				break
			}
			if rec != nil {
				if err := r.out.Write(ctx, rec); err != nil {
					return fmt.Errorf("sink write at height %d: %w", flushNext, err)
				}
			}
			delete(ready, flushNext)
			delete(attempts, flushNext)
			flushNext++
			processed++
			r.Processed++
		}

		if processed-lastReported >= uint64(r.cfg.ProgressEveryBlocks) || time.Since(lastReport) >= r.cfg.ProgressInterval {
			if processed > lastReported {
				r.reportProgress(processed, total, started)
				lastReport = time.Now()
				lastReported = processed
			}
		}
	}

	if r.cfg.ReportSpeed {
		elapsed := time.Since(started)
		log.Printf("[runner] range [%d, %d] done: %d blocks in %s (%.1f blocks/s)",
			from, to, processed, elapsed.Round(time.Millisecond), float64(processed)/elapsed.Seconds())
	}
	return nil
}

func (r *Runner) reportProgress(processed, total uint64, started time.Time) {
	if !r.cfg.ReportSpeed {
		log.Printf("[runner] progress: %d/%d blocks", processed, total)
		return
	}
	elapsed := time.Since(started).Seconds()
	rate := float64(processed) / elapsed
	remaining := total - processed
	eta := "n/a"
	if rate > 0 {
		eta = (time.Duration(float64(remaining)/rate) * time.Second).Round(time.Second).String()
	}
	log.Printf("[runner] progress: %d/%d blocks (%.1f blocks/s, ETA %s)", processed, total, rate, eta)
}

// fetchOne fetches, decodes, and assembles a single height. Each suspension
// step runs under its own BlockTimeout.
func (r *Runner) fetchOne(ctx context.Context, height uint64) (*models.BlockRecord, error) {
	bctx, cancel := context.WithTimeout(ctx, r.cfg.BlockTimeout)
	block, err := r.source.Block(bctx, height)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch block %d: %w", height, err)
	}

	rctx, cancel := context.WithTimeout(ctx, r.cfg.BlockTimeout)
	results, err := r.source.BlockResults(rctx, height)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch block results %d: %w", height, err)
	}

	decoded := make([]map[string]any, len(block.Block.Data.Txs))
	for i, b64 := range block.Block.Data.Txs {
		dctx, cancel := context.WithTimeout(ctx, r.cfg.BlockTimeout)
		decoded[i], err = r.dec.Submit(dctx, b64)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("decode tx %d at height %d: %w", i, height, err)
		}
	}

	return Assemble(block, results, decoded)
}
