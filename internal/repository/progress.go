package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// LastHeight returns the checkpoint for id, or (0, false) when no row exists.
func (r *Repository) LastHeight(ctx context.Context, id string) (uint64, bool, error) {
	var height uint64
	err := r.db.QueryRow(ctx,
		"SELECT last_height FROM core.indexer_progress WHERE id = $1", id).Scan(&height)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return height, true, nil
}

// upsertProgress advances the checkpoint for id. GREATEST keeps last_height
// monotonic even if a replay flushes an older range.
func upsertProgress(ctx context.Context, tx pgx.Tx, id string, height uint64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO core.indexer_progress (id, last_height, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			last_height = GREATEST(core.indexer_progress.last_height, EXCLUDED.last_height),
			updated_at = EXCLUDED.updated_at`,
		id, height, time.Now().UTC(),
	)
	return err
}
