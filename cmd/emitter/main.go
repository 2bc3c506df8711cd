// Command emitter periodically submits generated benchmark scores to a
// running controller, standing in for a node's benchmark harness.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rng-ops/meshgate/internal/emitter"
	"github.com/rng-ops/meshgate/pkg/logger"
)

// Default configuration constants.
const (
	defaultBaseURL   = "http://localhost:8000"
	defaultNodeID    = "node-a"
	defaultScoreMean = 0.70
	defaultInterval  = 10 * time.Second
	defaultTimeout   = 5 * time.Second
)

func main() {
	var (
		baseURL   = flag.String("url", defaultBaseURL, "Base URL of the controller")
		nodeID    = flag.String("node", defaultNodeID, "Node ID to submit benchmarks as")
		scoreMean = flag.Float64("mean", defaultScoreMean, "Center of the generated overall score")
		interval  = flag.Duration("interval", defaultInterval, "Delay between submissions")
		count     = flag.Int("count", 0, "Number of submissions to send (0 runs until interrupted)")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Log every submission")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config := &emitter.Config{
		BaseURL:   *baseURL,
		NodeID:    *nodeID,
		ScoreMean: *scoreMean,
		Interval:  *interval,
		Count:     *count,
		Timeout:   *timeout,
		Verbose:   *verbose,
	}

	stats, err := emitter.Run(ctx, config)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Get().Error(ctx, "emitter failed", logger.Error(err))
		os.Exit(1)
	}
	if stats != nil && stats.Failed > 0 {
		os.Exit(1)
	}
}
