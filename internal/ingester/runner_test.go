package ingester

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"cosmoscan/internal/models"
	"cosmoscan/internal/rpc"
)

// fakeSource serves synthetic empty blocks and fails configured heights a
// set number of times.
type fakeSource struct {
	mu       sync.Mutex
	failures map[uint64]int // height -> remaining failures
}

func (f *fakeSource) Status(context.Context) (*rpc.ChainStatus, error) {
	s := &rpc.ChainStatus{}
	s.SyncInfo.EarliestBlockHeight = "1"
	s.SyncInfo.LatestBlockHeight = "1000"
	return s, nil
}

func (f *fakeSource) Block(_ context.Context, height uint64) (*rpc.BlockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[height] > 0 {
		f.failures[height]--
		return nil, errors.New("synthetic fetch failure")
	}
	return makeBlock(strconv.FormatUint(height, 10)), nil
}

func (f *fakeSource) BlockResults(_ context.Context, height uint64) (*rpc.BlockResultsResponse, error) {
	return &rpc.BlockResultsResponse{Height: strconv.FormatUint(height, 10)}, nil
}

type fakeDecoder struct{}

func (fakeDecoder) Submit(context.Context, string) (map[string]any, error) {
	return map[string]any{"@type": "/cosmos.tx.v1beta1.Tx"}, nil
}

// recordingSink records write order.
type recordingSink struct {
	mu      sync.Mutex
	heights []uint64
}

func (s *recordingSink) Write(_ context.Context, rec *models.BlockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heights = append(s.heights, rec.Meta.Height)
	return nil
}

func (s *recordingSink) Flush(context.Context) error { return nil }
func (s *recordingSink) Close(context.Context) error { return nil }

func runnerConfig(concurrency int) Config {
	return Config{
		Concurrency:     concurrency,
		BlockTimeout:    5 * time.Second,
		MaxBlockRetries: 2,
	}
}

func TestRunnerWritesInAscendingOrder(t *testing.T) {
	t.Parallel()

	out := &recordingSink{}
	r := NewRunner(&fakeSource{}, fakeDecoder{}, out, runnerConfig(8))

	if err := r.Run(context.Background(), 10, 59); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.heights) != 50 {
		t.Fatalf("wrote %d blocks, want 50", len(out.heights))
	}
	for i, h := range out.heights {
		if h != uint64(10+i) {
			t.Fatalf("heights[%d] = %d, want %d", i, h, 10+i)
		}
	}
	if r.Processed != 50 || r.Skipped != 0 {
		t.Errorf("processed=%d skipped=%d", r.Processed, r.Skipped)
	}
}

func TestRunnerRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	src := &fakeSource{failures: map[uint64]int{15: 2}}
	out := &recordingSink{}
	r := NewRunner(src, fakeDecoder{}, out, runnerConfig(4))

	if err := r.Run(context.Background(), 10, 20); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.heights) != 11 {
		t.Fatalf("wrote %d blocks, want 11", len(out.heights))
	}
	for i, h := range out.heights {
		if h != uint64(10+i) {
			t.Fatalf("heights[%d] = %d after retry, want %d", i, h, 10+i)
		}
	}
	if r.Skipped != 0 {
		t.Errorf("skipped = %d", r.Skipped)
	}
}

func TestRunnerSkipsAfterRetryExhaustion(t *testing.T) {
	t.Parallel()

	// 2 retries allowed; 10 failures means height 15 is abandoned.
	src := &fakeSource{failures: map[uint64]int{15: 10}}
	out := &recordingSink{}
	r := NewRunner(src, fakeDecoder{}, out, runnerConfig(4))

	if err := r.Run(context.Background(), 10, 20); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.heights) != 10 {
		t.Fatalf("wrote %d blocks, want 10", len(out.heights))
	}
	for _, h := range out.heights {
		if h == 15 {
			t.Fatal("skipped height was written")
		}
	}
	// Order still ascending past the gap.
	for i := 1; i < len(out.heights); i++ {
		if out.heights[i] <= out.heights[i-1] {
			t.Fatalf("order violated: %v", out.heights)
		}
	}
	if r.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", r.Skipped)
	}
}

func TestRunnerRejectsInvertedRange(t *testing.T) {
	t.Parallel()

	r := NewRunner(&fakeSource{}, fakeDecoder{}, &recordingSink{}, runnerConfig(2))
	if err := r.Run(context.Background(), 20, 10); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(&fakeSource{}, fakeDecoder{}, &recordingSink{}, runnerConfig(2))
	if err := r.Run(ctx, 1, 1_000_000); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
