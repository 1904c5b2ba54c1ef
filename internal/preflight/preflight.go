package preflight

import (
	"context"

	"reel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks for optional services are only run when the service is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Data and log directories (always checked)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	// Generation service (always checked; the daemon is useless without it)
	results = append(results, CheckEndpoint(ctx, "Sora API", cfg.Sora.BaseURL, "/health", cfg.Sora.APIKey))

	// Storefront (when configured)
	if cfg.Billing.BaseURL != "" {
		results = append(results, CheckEndpoint(ctx, "Storefront API", cfg.Billing.BaseURL, "/products", cfg.Billing.APIKey))
	}

	return results
}
