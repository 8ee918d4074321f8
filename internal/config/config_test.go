package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "localhost", cfg.Host)
	require.Equal(t, 2069, cfg.Port)
	require.Equal(t, time.Second, cfg.DialTimeout())
	require.Equal(t, time.Second, cfg.KeepAliveInterval())
	require.Zero(t, cfg.TestLineInterval())
	require.Equal(t, WriteErrorIgnore, cfg.WriteErrorPolicy)
	require.Equal(t, 1, cfg.Reconnect.MaxAttempts)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "client.yaml", `
host: example.net
port: 2090
dialTimeoutMillis: 2500
testLineIntervalMillis: 1000
writeErrorPolicy: reconnect
reconnect:
  maxAttempts: 5
  initialDelayMillis: 100
  multiplier: 1.5
  maxDelayMillis: 2000
  jitter: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "example.net", cfg.Host)
	require.Equal(t, 2090, cfg.Port)
	require.Equal(t, 2500*time.Millisecond, cfg.DialTimeout())
	require.Equal(t, time.Second, cfg.TestLineInterval())
	require.Equal(t, WriteErrorReconnect, cfg.WriteErrorPolicy)
	require.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.Reconnect.InitialDelay())
	require.Equal(t, 2*time.Second, cfg.Reconnect.MaxDelay())
	require.True(t, cfg.Reconnect.Jitter)
	// untouched fields fall back to defaults
	require.Equal(t, 256, cfg.WriteQueueSize)
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "client.toml", `
host = "localhost"
port = 2090
keepAliveIntervalMillis = 500

[reconnect]
maxAttempts = 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 2090, cfg.Port)
	require.Equal(t, 500*time.Millisecond, cfg.KeepAliveInterval())
	require.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	require.Equal(t, 2.0, cfg.Reconnect.Multiplier)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"port out of range": "port: 70000\n",
		"bad policy":        "writeErrorPolicy: panic\n",
		"negative timeout":  "dialTimeoutMillis: -1\n",
		"small multiplier":  "reconnect:\n  multiplier: 0.5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "client.yaml", body))
			require.Error(t, err)
			require.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestExampleConfigMatchesDefault(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig("../../config.example.yaml")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestValidateAfterOverrides(t *testing.T) {
	cfg := Default()
	cfg.Port = 70000
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Host = "   "
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Host = "quill.example"
	cfg.Port = 4000
	require.NoError(t, cfg.Validate())
}
