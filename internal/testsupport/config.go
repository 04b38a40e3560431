package testsupport

import (
	"path/filepath"
	"testing"

	"hush/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The model defaults to identity so tests never need an external binary.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "jobs")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Model.Mode = "identity"
	cfg.Model.Command = ""

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithModelMode overrides the predictor mode on the test config.
func WithModelMode(mode, command string) ConfigOption {
	return func(c *config.Config) {
		c.Model.Mode = mode
		c.Model.Command = command
	}
}

// WithTTL overrides job retention on the test config.
func WithTTL(ttlSeconds, sweepSeconds int) ConfigOption {
	return func(c *config.Config) {
		c.Jobs.TTLSeconds = ttlSeconds
		c.Jobs.SweepIntervalSeconds = sweepSeconds
	}
}
