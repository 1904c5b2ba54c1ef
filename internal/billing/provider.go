package billing

import (
	"context"
	"log/slog"
	"strings"

	"reel/internal/config"
	"reel/internal/services"
)

// Provider abstracts the platform billing surface: catalog fetch,
// purchase execution, entitlement queries, and the long-lived
// transaction update stream. The reconciler depends only on this
// interface so tests can drive it with a fake.
type Provider interface {
	Products(ctx context.Context) ([]Product, error)
	Purchase(ctx context.Context, productID string) (PurchaseResult, error)
	CurrentEntitlements(ctx context.Context) ([]Transaction, error)
	TransactionUpdates(ctx context.Context) (<-chan Transaction, error)
}

// NewProvider selects the storefront-backed provider when a base URL is
// configured and a disabled stand-in otherwise, so daemons without
// billing configured still start.
func NewProvider(cfg *config.Config, logger *slog.Logger) Provider {
	if strings.TrimSpace(cfg.Billing.BaseURL) == "" {
		return disabledProvider{}
	}
	return NewStorefront(cfg, logger)
}

type disabledProvider struct{}

func (disabledProvider) configurationError(operation string) error {
	return services.Wrap(services.ErrConfiguration, "billing", operation, "storefront base url not configured", nil)
}

func (d disabledProvider) Products(context.Context) ([]Product, error) {
	return nil, d.configurationError("products")
}

func (d disabledProvider) Purchase(context.Context, string) (PurchaseResult, error) {
	return PurchaseResult{}, d.configurationError("purchase")
}

func (d disabledProvider) CurrentEntitlements(context.Context) ([]Transaction, error) {
	return nil, d.configurationError("entitlements")
}

func (d disabledProvider) TransactionUpdates(context.Context) (<-chan Transaction, error) {
	return nil, d.configurationError("updates")
}
