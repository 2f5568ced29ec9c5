package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmoscan/internal/config"
	"cosmoscan/internal/decode"
	"cosmoscan/internal/ingester"
	"cosmoscan/internal/repository"
	"cosmoscan/internal/rpc"
	"cosmoscan/internal/sink"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml (optional; env vars override)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("[main] %v", err)
		os.Exit(1)
	}

	log.Printf("[main] cosmoscan indexer starting (commit %s)", BuildCommit)
	log.Printf("[main] rpc: %s, sink: %s, case mode: %s", cfg.Source.RPCURL, cfg.Sink.Kind, cfg.Pipeline.CaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("[main] shutdown requested, exiting")
			return
		}
		log.Printf("[main] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	client, err := rpc.NewClient(rpc.Config{
		BaseURL:       cfg.Source.RPCURL,
		Timeout:       time.Duration(cfg.Source.TimeoutMs) * time.Millisecond,
		RPS:           cfg.Source.RPS,
		Retries:       *cfg.Source.Retries,
		Backoff:       time.Duration(cfg.Source.BackoffMs) * time.Millisecond,
		BackoffJitter: cfg.Source.BackoffJitter,
	})
	if err != nil {
		return fmt.Errorf("rpc client: %w", err)
	}

	var dynamic *decode.DynamicRegistry
	if cfg.Pipeline.DescriptorDir != "" {
		dynamic, err = decode.LoadDescriptorDir(cfg.Pipeline.DescriptorDir)
		if err != nil {
			return fmt.Errorf("load descriptors: %w", err)
		}
	}
	pool := decode.NewPool(decode.NewDecoder(dynamic, cfg.Pipeline.CaseMode), cfg.Pipeline.PoolSize)
	defer pool.Close()

	out, repo, err := buildSink(ctx, cfg)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := out.Close(cctx); err != nil {
			log.Printf("[main] sink close: %v", err)
		}
	}()

	from, to, err := resolveRange(ctx, cfg, client, repo)
	if err != nil {
		return err
	}

	runnerCfg := ingester.Config{
		Concurrency:         cfg.Pipeline.Concurrency,
		BlockTimeout:        time.Duration(cfg.Pipeline.BlockTimeoutMs) * time.Millisecond,
		MaxBlockRetries:     *cfg.Pipeline.MaxBlockRetries,
		ProgressEveryBlocks: cfg.Pipeline.ProgressEveryBlocks,
		ProgressInterval:    time.Duration(cfg.Pipeline.ProgressIntervalSec) * time.Second,
		ReportSpeed:         true,
	}

	next := from
	if from <= to {
		log.Printf("[main] backfilling heights [%d, %d] with concurrency %d", from, to, runnerCfg.Concurrency)
		runner := ingester.NewRunner(client, pool, out, runnerCfg)
		if err := runner.Run(ctx, from, to); err != nil {
			return err
		}
		if err := out.Flush(ctx); err != nil {
			return fmt.Errorf("final flush: %w", err)
		}
		log.Printf("[main] backfill complete: %d blocks written, %d skipped", runner.Processed, runner.Skipped)
		next = to + 1
	}

	if !cfg.Range.Follow {
		return nil
	}

	follower := ingester.NewFollower(client, pool, out, runnerCfg,
		time.Duration(cfg.Range.FollowIntervalMs)*time.Millisecond)
	return follower.Run(ctx, next)
}

// buildSink constructs the configured sink. The repository is returned
// separately so resolveRange can read the checkpoint from it.
func buildSink(ctx context.Context, cfg *config.Config) (sink.Sink, *repository.Repository, error) {
	switch cfg.Sink.Kind {
	case "stdout":
		return sink.NewStdout(cfg.Sink.FlushEvery), nil, nil
	case "file":
		s, err := sink.NewFile(cfg.Sink.OutPath, cfg.Sink.FlushEvery)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "null":
		return sink.Null{}, nil, nil
	case "postgres":
		dbURL := cfg.DatabaseURL()
		log.Printf("[main] connecting to %s", repository.RedactURL(dbURL))
		repo, err := repository.New(ctx, dbURL, cfg.PG.PoolSize)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Ping(ctx); err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("database ping: %w", err)
		}
		s, err := repository.NewPGSink(repo, repository.SinkMode(cfg.PG.Mode), cfg.PG.ProgressID, repository.Thresholds{
			Blocks: cfg.PG.BatchBlocks,
			Txs:    cfg.PG.BatchTxs,
			Msgs:   cfg.PG.BatchMsgs,
			Events: cfg.PG.BatchEvents,
			Attrs:  cfg.PG.BatchAttrs,
		})
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		return s, repo, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}

// resolveRange decides [from, to] from the checkpoint, the explicit range,
// and chain status, in that order of precedence.
func resolveRange(ctx context.Context, cfg *config.Config, client *rpc.Client, repo *repository.Repository) (uint64, uint64, error) {
	status, err := client.Status(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("chain status: %w", err)
	}
	earliest, err := status.EarliestHeight()
	if err != nil {
		return 0, 0, fmt.Errorf("chain status: %w", err)
	}
	latest, err := status.LatestHeight()
	if err != nil {
		return 0, 0, fmt.Errorf("chain status: %w", err)
	}
	log.Printf("[main] chain %s: heights %d-%d available", status.NodeInfo.Network, earliest, latest)

	var from uint64
	resumed := false
	if cfg.Range.Resume && repo != nil {
		last, found, err := repo.LastHeight(ctx, cfg.PG.ProgressID)
		if err != nil {
			return 0, 0, fmt.Errorf("read checkpoint: %w", err)
		}
		if found {
			from = last + 1
			resumed = true
			log.Printf("[main] resuming %q from checkpoint height %d", cfg.PG.ProgressID, last)
		}
	}
	if !resumed {
		if cfg.Range.From > 0 {
			from = cfg.Range.From
		} else {
			from = cfg.Range.FirstBlock
			if earliest > from {
				from = earliest
			}
		}
	}

	to := latest
	if h, ok := cfg.ToHeight(); ok {
		to = h
	}
	if to < from && !cfg.Range.Follow {
		return 0, 0, fmt.Errorf("resolved range inverted: from=%d to=%d", from, to)
	}
	return from, to, nil
}
