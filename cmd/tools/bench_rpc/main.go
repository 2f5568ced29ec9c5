// Measures block and block_results fetch latency against one or more RPC
// endpoints. Useful for picking an endpoint and an rps budget before a
// large backfill.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"cosmoscan/internal/rpc"
)

func main() {
	endpoints := flag.String("endpoints", "", "comma-separated RPC base URLs")
	samples := flag.Int("samples", 10, "blocks fetched per endpoint")
	rps := flag.Float64("rps", 20, "request rate per endpoint")
	flag.Parse()

	if *endpoints == "" {
		log.Fatal("-endpoints is required")
	}

	ctx := context.Background()
	for _, base := range strings.Split(*endpoints, ",") {
		base = strings.TrimSpace(base)
		fmt.Printf("\n========== %s ==========\n", base)
		runBench(ctx, base, *samples, *rps)
	}
}

func runBench(ctx context.Context, base string, samples int, rps float64) {
	client, err := rpc.NewClient(rpc.Config{
		BaseURL: base,
		Timeout: 10 * time.Second,
		RPS:     rps,
		Retries: 1,
		Backoff: 200 * time.Millisecond,
	})
	if err != nil {
		log.Printf("  FAIL: %v", err)
		return
	}

	start := time.Now()
	status, err := client.Status(ctx)
	if err != nil {
		log.Printf("  FAIL: status: %v", err)
		return
	}
	fmt.Printf("  status: %s in %s\n", status.NodeInfo.Network, time.Since(start).Round(time.Millisecond))

	latest, err := status.LatestHeight()
	if err != nil {
		log.Printf("  FAIL: latest height: %v", err)
		return
	}

	var blockTotal, resultsTotal time.Duration
	ok := 0
	for i := 0; i < samples; i++ {
		h := latest - uint64(i)

		t0 := time.Now()
		block, err := client.Block(ctx, h)
		if err != nil {
			log.Printf("  block %d: %v", h, err)
			continue
		}
		blockElapsed := time.Since(t0)

		t0 = time.Now()
		if _, err := client.BlockResults(ctx, h); err != nil {
			log.Printf("  block_results %d: %v", h, err)
			continue
		}
		resultsElapsed := time.Since(t0)

		blockTotal += blockElapsed
		resultsTotal += resultsElapsed
		ok++
		fmt.Printf("  height %d: block %s (%d txs), results %s\n",
			h, blockElapsed.Round(time.Millisecond), len(block.Block.Data.Txs),
			resultsElapsed.Round(time.Millisecond))
	}

	if ok == 0 {
		fmt.Println("  no successful samples")
		return
	}
	fmt.Printf("  avg over %d: block %s, results %s\n", ok,
		(blockTotal / time.Duration(ok)).Round(time.Millisecond),
		(resultsTotal / time.Duration(ok)).Round(time.Millisecond))
}
