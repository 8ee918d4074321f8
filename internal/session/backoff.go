package session

import (
	"math"
	"math/rand"
	"time"

	"github.com/quilldev/quill-client/internal/config"
)

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// BackoffFromConfig maps the reconnect section of the client config.
func BackoffFromConfig(r config.Reconnect) BackoffConfig {
	return BackoffConfig{
		InitialDelay: r.InitialDelay(),
		Multiplier:   r.Multiplier,
		MaxDelay:     r.MaxDelay(),
		Jitter:       r.Jitter,
	}
}

// NextBackoffDelay returns the wait before retry N (1-based).
func NextBackoffDelay(cfg BackoffConfig, retry int, rng *rand.Rand) time.Duration {
	if retry <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(retry-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
