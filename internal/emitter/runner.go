package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rng-ops/meshgate/pkg/logger"
)

// Run submits benchmarks on the configured interval until the count is
// reached or the context is cancelled.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if config.NodeID == "" {
		return nil, fmt.Errorf("emitter: node id is required")
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("emitter: interval must be positive")
	}

	log := logger.Get().Named("emitter")
	log.Info(ctx, "benchmark emitter starting",
		logger.String("node_id", config.NodeID),
		logger.String("controller", config.BaseURL),
		logger.Float64("mean", config.ScoreMean),
		logger.Duration("interval", config.Interval),
	)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/v1/benchmarks/%s", config.BaseURL, config.NodeID)

	stats := &Stats{StartTime: time.Now()}
	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for {
		bench := generateBenchmark(config, time.Now())
		stats.Generated++

		if err := submit(ctx, client, url, bench, config, log); err != nil {
			stats.Failed++
			log.Error(ctx, "submission failed",
				logger.String("node_id", config.NodeID),
				logger.Error(err),
			)
		} else {
			stats.Successful++
		}

		if config.Count > 0 && stats.Generated >= config.Count {
			break
		}

		select {
		case <-ctx.Done():
			stats.EndTime = time.Now()
			return stats, ctx.Err()
		case <-ticker.C:
		}
	}

	stats.EndTime = time.Now()
	log.Info(ctx, "benchmark emitter finished",
		logger.Int("generated", stats.Generated),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
	)
	return stats, nil
}

// submit posts one benchmark and validates the receipt.
func submit(ctx context.Context, client *HTTPClient, url string, bench Benchmark, config *Config, log logger.Logger) error {
	resp, err := client.Post(ctx, url, bench)
	if err != nil {
		return fmt.Errorf("post benchmark: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return fmt.Errorf("decode receipt: %w", err)
	}

	if config.Verbose {
		log.Info(ctx, "benchmark submitted",
			logger.String("node_id", bench.NodeID),
			logger.Float64("overall", bench.Scores["overall"]),
			logger.String("submission_id", receipt.SubmissionID),
			logger.Uint64("epoch_id", receipt.EpochID),
		)
	}
	return nil
}
