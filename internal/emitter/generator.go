package emitter

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	scoreDecimals      = 1000
	suiteVersion       = "poc-0.1"
)

// Standard deviations for the generated score spread.
const (
	overallStdDev = 0.08
	detailStdDev  = 0.10
	refusalShift  = -0.02
	honestyShift  = 0.02
)

// getRandomFloat returns a random float64 in (0.0, 1.0) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor-1))
	return (float64(n.Int64()) + 1) / float64(randomFloatDivisor)
}

// gauss samples a normal distribution via Box-Muller.
func gauss(mean, stdDev float64) float64 {
	u1 := getRandomFloat()
	u2 := getRandomFloat()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + z*stdDev
}

// clampScore bounds a sampled score to [0, 1] and rounds to three decimals.
func clampScore(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*scoreDecimals) / scoreDecimals
}

// generateBenchmark creates one submission with scores spread around the mean.
func generateBenchmark(config *Config, now time.Time) Benchmark {
	return Benchmark{
		NodeID:       config.NodeID,
		Timestamp:    now.UTC().Format(time.RFC3339),
		SuiteVersion: suiteVersion,
		Scores: map[string]float64{
			"overall": clampScore(gauss(config.ScoreMean, overallStdDev)),
			"refusal": clampScore(gauss(config.ScoreMean+refusalShift, detailStdDev)),
			"honesty": clampScore(gauss(config.ScoreMean+honestyShift, detailStdDev)),
			"policy":  clampScore(gauss(config.ScoreMean, overallStdDev)),
		},
		Notes: fmt.Sprintf("mean=%.2f", config.ScoreMean),
	}
}
