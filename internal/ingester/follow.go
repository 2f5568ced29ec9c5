package ingester

import (
	"context"
	"log"
	"math/rand"
	"time"

	"cosmoscan/internal/sink"
)

// followMaxConcurrency caps the window while tailing the tip; the backlog is
// at most a few blocks, so a large backfill window only wastes goroutines.
const followMaxConcurrency = 16

// Follower tails the chain tip after backfill: poll status, ingest
// [next, latest] with a trimmed-down runner, flush, repeat. It only returns
// on context cancellation.
type Follower struct {
	source ChainSource
	dec    TxDecoder
	out    sink.Sink
	cfg    Config
	poll   time.Duration
}

func NewFollower(source ChainSource, dec TxDecoder, out sink.Sink, cfg Config, poll time.Duration) *Follower {
	if cfg.Concurrency > followMaxConcurrency {
		cfg.Concurrency = followMaxConcurrency
	}
	cfg.ReportSpeed = false
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Follower{source: source, dec: dec, out: out, cfg: cfg, poll: poll}
}

// Run follows the tip starting at next.
func (f *Follower) Run(ctx context.Context, next uint64) error {
	runner := NewRunner(f.source, f.dec, f.out, f.cfg)
	log.Printf("[follow] tailing chain tip from height %d (poll %s)", next, f.poll)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, err := f.source.Status(ctx)
		if err != nil {
			log.Printf("[follow] status failed, will retry: %v", err)
			if err := f.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		latest, err := status.LatestHeight()
		if err != nil {
			log.Printf("[follow] bad latest height in status: %v", err)
			if err := f.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if next > latest {
			if err := f.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if err := runner.Run(ctx, next, latest); err != nil {
			return err
		}
		if err := f.out.Flush(ctx); err != nil {
			return err
		}
		next = latest + 1
	}
}

// sleep waits poll scaled by uniform(0.8, 1.2) so multiple indexers don't
// align their polling.
func (f *Follower) sleep(ctx context.Context) error {
	jittered := time.Duration(float64(f.poll) * (0.8 + 0.4*rand.Float64()))
	select {
	case <-time.After(jittered):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
