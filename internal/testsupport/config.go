package testsupport

import (
	"path/filepath"
	"testing"

	"reel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Sora.BaseURL = "http://sora.test.invalid"
	cfg.Sora.APIKey = "test"
	cfg.Billing.BaseURL = "http://store.test.invalid"
	cfg.Billing.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSoraBaseURL points the generation endpoint at the provided URL,
// typically an httptest server.
func WithSoraBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sora.BaseURL = url
	}
}

// WithBillingBaseURL points the storefront endpoint at the provided URL.
func WithBillingBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Billing.BaseURL = url
	}
}

// WithGenerationTiming overrides the poll schedule, in seconds.
func WithGenerationTiming(initial, poll, maxWait int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Generation.InitialDelaySeconds = initial
		cfg.Generation.PollIntervalSeconds = poll
		cfg.Generation.MaxWaitSeconds = maxWait
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
