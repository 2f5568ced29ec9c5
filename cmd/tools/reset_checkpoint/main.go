// Deletes an indexer progress row so the next run starts from the configured
// range instead of resuming. Intended for operator use only.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	progressID := flag.String("id", "default", "progress id to reset")
	flag.Parse()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL is required")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatalf("Unable to parse DB URL: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	cmdTag, err := pool.Exec(ctx, "DELETE FROM core.indexer_progress WHERE id = $1", *progressID)
	if err != nil {
		log.Fatalf("Failed to delete checkpoint: %v", err)
	}

	if cmdTag.RowsAffected() == 0 {
		fmt.Printf("No checkpoint found for %q. It might have already been reset or never existed.\n", *progressID)
	} else {
		fmt.Printf("Deleted checkpoint for %q. The indexer will start from the configured range on next run.\n", *progressID)
	}
}
