package preflight

import (
	"context"
	"strings"

	"reel/internal/config"
)

// CheckSoraFromConfig evaluates generation service status from config and connectivity.
func CheckSoraFromConfig(cfg *config.Config) Result {
	const name = "Sora API"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Sora.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing URL"}
	}
	if strings.TrimSpace(cfg.Sora.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckEndpoint(context.Background(), name, cfg.Sora.BaseURL, "/health", cfg.Sora.APIKey)
}

// CheckStorefrontFromConfig evaluates storefront status from config and connectivity.
func CheckStorefrontFromConfig(cfg *config.Config) Result {
	const name = "Storefront API"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Billing.BaseURL) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Billing.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckEndpoint(context.Background(), name, cfg.Billing.BaseURL, "/products", cfg.Billing.APIKey)
}
