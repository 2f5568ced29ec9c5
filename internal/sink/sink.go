// Package sink defines where assembled block records go. The postgres sink
// lives in internal/repository; this package holds the contract and the
// lightweight stdout/file/null sinks used for debugging and dry runs.
package sink

import (
	"context"

	"cosmoscan/internal/models"
)

// Sink persists block records. Write is called in strictly ascending height
// order by the runner; implementations may buffer across calls. Flush forces
// buffered rows out; Close flushes and releases resources.
type Sink interface {
	Write(ctx context.Context, rec *models.BlockRecord) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// Null discards every record. Useful for benchmarking the fetch/decode path.
type Null struct{}

func (Null) Write(context.Context, *models.BlockRecord) error { return nil }
func (Null) Flush(context.Context) error                      { return nil }
func (Null) Close(context.Context) error                      { return nil }
