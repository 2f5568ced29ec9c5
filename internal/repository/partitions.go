package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const (
	// Range-partitioned tables get one partition per heightStep heights.
	heightStep = uint64(1_000_000)

	// Serializes concurrent partition DDL across indexer instances.
	partitionAdvisoryKey = int64(0x636f736d6f7363) // "cosmosc"

	// core.events is hash-partitioned by tx_hash.
	eventsHashModulus = 16
)

// heightPartitioned lists the tables partitioned by height range.
var heightPartitioned = []string{
	"core.blocks",
	"core.transactions",
	"core.messages",
	"core.event_attrs",
	"bank.transfers",
	"stake.delegation_events",
	"stake.distribution_events",
	"wasm.executions",
	"wasm.events",
}

// partitionCache tracks which (table, startBucket, endBucket) combos have
// already been ensured this process lifetime, avoiding redundant DDL
// round-trips on every flush.
var (
	partitionCacheMu sync.Mutex
	partitionCache   = make(map[string]bool)
)

func partitionCacheKey(table string, start, end uint64) string {
	return fmt.Sprintf("%s:%d:%d", table, start, end)
}

// EnsureCorePartitions creates every height-range partition covering
// [minHeight, maxHeight] for the core tables, plus the hash partitions of
// core.events. DDL runs in its own transaction under an advisory lock so
// concurrent flushes never race on CREATE TABLE.
func (r *Repository) EnsureCorePartitions(ctx context.Context, minHeight, maxHeight uint64) error {
	if maxHeight < minHeight {
		return fmt.Errorf("partition range inverted: %d > %d", minHeight, maxHeight)
	}

	start := (minHeight / heightStep) * heightStep
	end := ((maxHeight / heightStep) + 1) * heightStep

	allCached := true
	partitionCacheMu.Lock()
	for _, table := range heightPartitioned {
		if !partitionCache[partitionCacheKey(table, start, end)] {
			allCached = false
			break
		}
	}
	cachedEvents := partitionCache["core.events:hash"]
	partitionCacheMu.Unlock()
	if allCached && cachedEvents {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", partitionAdvisoryKey); err != nil {
		return fmt.Errorf("acquire partition lock: %w", err)
	}

	if !cachedEvents {
		for i := 0; i < eventsHashModulus; i++ {
			ddl := fmt.Sprintf(
				"CREATE TABLE IF NOT EXISTS %s PARTITION OF core.events FOR VALUES WITH (MODULUS %d, REMAINDER %d)",
				hashPartitionName("core.events", i), eventsHashModulus, i,
			)
			if _, err := tx.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("create events hash partition %d: %w", i, err)
			}
		}
	}

	for _, table := range heightPartitioned {
		for lo := start; lo < end; lo += heightStep {
			ddl := fmt.Sprintf(
				"CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM (%d) TO (%d)",
				rangePartitionName(table, lo), table, lo, lo+heightStep,
			)
			if _, err := tx.Exec(ctx, ddl); err != nil {
				return fmt.Errorf("create partition for %s at %d: %w", table, lo, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	partitionCacheMu.Lock()
	for _, table := range heightPartitioned {
		partitionCache[partitionCacheKey(table, start, end)] = true
	}
	partitionCache["core.events:hash"] = true
	partitionCacheMu.Unlock()
	return nil
}

func rangePartitionName(table string, lo uint64) string {
	schema, name, _ := strings.Cut(table, ".")
	return fmt.Sprintf("%s.%s_p%d", schema, name, lo/heightStep)
}

func hashPartitionName(table string, remainder int) string {
	schema, name, _ := strings.Cut(table, ".")
	return fmt.Sprintf("%s.%s_h%d", schema, name, remainder)
}
