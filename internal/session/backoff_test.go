package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/quilldev/quill-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 500 * time.Millisecond}

	require.Equal(t, 100*time.Millisecond, NextBackoffDelay(cfg, 1, nil))
	require.Equal(t, 200*time.Millisecond, NextBackoffDelay(cfg, 2, nil))
	require.Equal(t, 400*time.Millisecond, NextBackoffDelay(cfg, 3, nil))
	require.Equal(t, 500*time.Millisecond, NextBackoffDelay(cfg, 4, nil))
	require.Equal(t, 500*time.Millisecond, NextBackoffDelay(cfg, 10, nil))
}

func TestNextBackoffDelayJitterStaysInRange(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second, Jitter: true}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		d := NextBackoffDelay(cfg, 3, rng)
		require.GreaterOrEqual(t, d, 200*time.Millisecond)
		require.Less(t, d, 600*time.Millisecond)
	}
	require.Equal(t, 200*time.Millisecond, NextBackoffDelay(cfg, 3, nil))
}

func TestNextBackoffDelayDegenerate(t *testing.T) {
	require.Zero(t, NextBackoffDelay(BackoffConfig{}, 3, nil))
	flat := BackoffConfig{InitialDelay: 50 * time.Millisecond, Multiplier: 0.1}
	require.Equal(t, 50*time.Millisecond, NextBackoffDelay(flat, 5, nil))
}

func TestBackoffFromConfig(t *testing.T) {
	cfg := config.Default()
	b := BackoffFromConfig(cfg.Reconnect)
	require.Equal(t, 250*time.Millisecond, b.InitialDelay)
	require.Equal(t, 2.0, b.Multiplier)
	require.Equal(t, 5*time.Second, b.MaxDelay)
	require.False(t, b.Jitter)
}
