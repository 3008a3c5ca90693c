package janus

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig shapes the delay between reconnect attempts. Attempts never stop.
type BackoffConfig struct {
	Min        time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// NextBackoffDelay returns the delay before attempt N (1-based). With jitter the delay is
// scaled into [0.5, 1.5) but never drops below Min.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.Min <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.Min) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.Max > 0 && delay > float64(cfg.Max) {
		delay = float64(cfg.Max)
	}
	if cfg.Jitter {
		f := 1.0
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
		if cfg.Max > 0 && delay > float64(cfg.Max) {
			delay = float64(cfg.Max)
		}
	}
	if delay < float64(cfg.Min) {
		delay = float64(cfg.Min)
	}
	return time.Duration(delay)
}
