package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// WriteErrorPolicy names what happens when a write fails with an error that
// is not connection-reset class.
type WriteErrorPolicy string

const (
	// WriteErrorIgnore logs the failure and leaves the connection as-is.
	WriteErrorIgnore WriteErrorPolicy = "ignore"
	// WriteErrorReconnect treats any write failure like a reset.
	WriteErrorReconnect WriteErrorPolicy = "reconnect"
)

// Reconnect holds the reconnect backoff settings.
type Reconnect struct {
	MaxAttempts        int     `yaml:"maxAttempts" toml:"maxAttempts"`
	InitialDelayMillis int     `yaml:"initialDelayMillis" toml:"initialDelayMillis"`
	Multiplier         float64 `yaml:"multiplier" toml:"multiplier"`
	MaxDelayMillis     int     `yaml:"maxDelayMillis" toml:"maxDelayMillis"`
	Jitter             bool    `yaml:"jitter" toml:"jitter"`
}

// Config holds the client configuration, loaded from a YAML or TOML file.
type Config struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`

	DialTimeoutMillis       int `yaml:"dialTimeoutMillis" toml:"dialTimeoutMillis"`
	WriteTimeoutMillis      int `yaml:"writeTimeoutMillis" toml:"writeTimeoutMillis"`
	KeepAliveIntervalMillis int `yaml:"keepAliveIntervalMillis" toml:"keepAliveIntervalMillis"`
	// Zero disables the periodic "test" line.
	TestLineIntervalMillis int `yaml:"testLineIntervalMillis" toml:"testLineIntervalMillis"`

	WriteQueueSize   int              `yaml:"writeQueueSize" toml:"writeQueueSize"`
	MaxFragmentBytes int              `yaml:"maxFragmentBytes" toml:"maxFragmentBytes"`
	WriteErrorPolicy WriteErrorPolicy `yaml:"writeErrorPolicy" toml:"writeErrorPolicy"`
	LogLevel         string           `yaml:"logLevel" toml:"logLevel"`

	Reconnect Reconnect `yaml:"reconnect" toml:"reconnect"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DialTimeout returns the dial timeout as a time.Duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMillis) * time.Millisecond
}

// WriteTimeout returns the per-write deadline as a time.Duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMillis) * time.Millisecond
}

// KeepAliveInterval returns the keep-alive cadence as a time.Duration.
func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveIntervalMillis) * time.Millisecond
}

// TestLineInterval returns the test line cadence as a time.Duration.
func (c *Config) TestLineInterval() time.Duration {
	return time.Duration(c.TestLineIntervalMillis) * time.Millisecond
}

// InitialDelay returns the delay before the second reconnect attempt.
func (r Reconnect) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMillis) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r Reconnect) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMillis) * time.Millisecond
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 2069
	}
	if c.DialTimeoutMillis == 0 {
		c.DialTimeoutMillis = 1000
	}
	if c.WriteTimeoutMillis == 0 {
		c.WriteTimeoutMillis = 5000
	}
	if c.KeepAliveIntervalMillis == 0 {
		c.KeepAliveIntervalMillis = 1000
	}
	if c.WriteQueueSize == 0 {
		c.WriteQueueSize = 256
	}
	if c.MaxFragmentBytes == 0 {
		c.MaxFragmentBytes = 64 * 1024
	}
	if c.WriteErrorPolicy == "" {
		c.WriteErrorPolicy = WriteErrorIgnore
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 1
	}
	if c.Reconnect.InitialDelayMillis == 0 {
		c.Reconnect.InitialDelayMillis = 250
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = 2.0
	}
	if c.Reconnect.MaxDelayMillis == 0 {
		c.Reconnect.MaxDelayMillis = 5000
	}
}

// Validate checks the configuration. LoadConfig calls it; callers that
// change fields afterwards must call it again.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if c.DialTimeoutMillis < 0 {
		return fmt.Errorf("dialTimeoutMillis cannot be negative")
	}
	if c.WriteTimeoutMillis < 0 {
		return fmt.Errorf("writeTimeoutMillis cannot be negative")
	}
	if c.KeepAliveIntervalMillis < 0 {
		return fmt.Errorf("keepAliveIntervalMillis cannot be negative")
	}
	if c.TestLineIntervalMillis < 0 {
		return fmt.Errorf("testLineIntervalMillis cannot be negative")
	}
	if c.WriteQueueSize < 0 {
		return fmt.Errorf("writeQueueSize cannot be negative")
	}
	if c.MaxFragmentBytes < 0 {
		return fmt.Errorf("maxFragmentBytes cannot be negative")
	}

	switch c.WriteErrorPolicy {
	case WriteErrorIgnore, WriteErrorReconnect:
	default:
		return fmt.Errorf("writeErrorPolicy must be %q or %q, got %q", WriteErrorIgnore, WriteErrorReconnect, c.WriteErrorPolicy)
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.maxAttempts cannot be negative")
	}
	if c.Reconnect.Multiplier < 1.0 {
		return fmt.Errorf("reconnect.multiplier must be at least 1.0")
	}
	if c.Reconnect.InitialDelayMillis < 0 || c.Reconnect.MaxDelayMillis < 0 {
		return fmt.Errorf("reconnect delays cannot be negative")
	}
	return nil
}

// LoadConfig reads the configuration from the given file path, unmarshals it,
// fills in defaults and performs validation. Files ending in ".toml" are
// parsed as TOML, everything else as YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal toml from %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal yaml from %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
