package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"reel/internal/clock"
	"reel/internal/config"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/services"
	"reel/internal/store"
)

// Reconciler translates storefront purchase events into ledger
// mutations. Pack transactions apply at most once per transaction id;
// the subscription grant is keyed on the inactive-to-active transition
// instead, so redeliveries of the same activation are no-ops.
type Reconciler struct {
	provider       Provider
	accounts       *ledger.Store
	kv             store.KV
	clk            clock.Clock
	notifier       notifications.Service
	rewardInterval time.Duration
	logger         *slog.Logger

	mu            sync.Mutex
	catalog       []Product
	catalogLoaded bool
	listening     bool
}

// NewReconciler constructs a reconciler with the default notifier and
// system clock.
func NewReconciler(cfg *config.Config, provider Provider, accounts *ledger.Store, kv store.KV, logger *slog.Logger) *Reconciler {
	return NewReconcilerWithOptions(cfg, provider, accounts, kv, logger, notifications.NewService(cfg), clock.System())
}

// NewReconcilerWithOptions constructs a reconciler with explicit
// collaborators (used in tests).
func NewReconcilerWithOptions(cfg *config.Config, provider Provider, accounts *ledger.Store, kv store.KV, logger *slog.Logger, notifier notifications.Service, clk clock.Clock) *Reconciler {
	if clk == nil {
		clk = clock.System()
	}
	return &Reconciler{
		provider:       provider,
		accounts:       accounts,
		kv:             kv,
		clk:            clk,
		notifier:       notifier,
		rewardInterval: cfg.Rewards.Interval(),
		logger:         logging.NewComponentLogger(logger, "billing"),
	}
}

// LoadCatalog fetches product definitions once; repeated calls return
// the cached catalog. Transport failures surface as errors without
// caching anything.
func (r *Reconciler) LoadCatalog(ctx context.Context) ([]Product, error) {
	r.mu.Lock()
	if r.catalogLoaded {
		catalog := r.catalog
		r.mu.Unlock()
		return catalog, nil
	}
	r.mu.Unlock()

	products, err := r.provider.Products(ctx)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransport, "billing", "load_catalog", "catalog fetch failed", err)
	}

	r.mu.Lock()
	r.catalog = products
	r.catalogLoaded = true
	r.mu.Unlock()
	return products, nil
}

// Purchase runs the storefront flow for a product. Credit packs require
// an already-active subscription; that rule is enforced here, before
// any network call.
func (r *Reconciler) Purchase(ctx context.Context, productID string) (PurchaseResult, error) {
	account, signedIn := r.accounts.Snapshot()
	if !signedIn {
		return PurchaseResult{}, services.Wrap(services.ErrValidation, "billing", "purchase", "sign in required", nil)
	}
	if IsCreditPack(productID) && !account.SubscriptionActive {
		return PurchaseResult{}, services.Wrap(services.ErrRejected, "billing", "purchase",
			"credit packs require an active subscription", nil)
	}
	if !IsCreditPack(productID) && !IsSubscription(productID) {
		return PurchaseResult{}, services.Wrap(services.ErrValidation, "billing", "purchase",
			fmt.Sprintf("unknown product %q", productID), nil)
	}

	result, err := r.provider.Purchase(ctx, productID)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return PurchaseResult{}, err
		}
		return PurchaseResult{}, services.Wrap(services.ErrTransport, "billing", "purchase", "purchase call failed", err)
	}

	switch result.Outcome {
	case OutcomeSuccess:
		if result.Transaction == nil {
			return result, services.Wrap(services.ErrUnverified, "billing", "purchase",
				"storefront reported success without a transaction", nil)
		}
		if err := r.ApplyTransaction(ctx, *result.Transaction); err != nil {
			return result, err
		}
		return result, nil
	case OutcomePending:
		r.logger.Info("purchase awaiting validation", logging.String(logging.FieldProduct, productID))
		return result, nil
	case OutcomeCancelled:
		return result, nil
	case OutcomeUnverified:
		return result, services.Wrap(services.ErrUnverified, "billing", "purchase",
			"purchase could not be verified", nil)
	default:
		return result, services.Wrap(services.ErrUnverified, "billing", "purchase",
			fmt.Sprintf("unknown purchase outcome %q", result.Outcome), nil)
	}
}

// ApplyTransaction applies one verified transaction to the ledger.
// Safe to call with the same transaction any number of times.
func (r *Reconciler) ApplyTransaction(ctx context.Context, txn Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, signedIn := r.accounts.Snapshot()
	if !signedIn {
		return services.Wrap(services.ErrValidation, "billing", "apply_transaction", "sign in required", nil)
	}

	if IsSubscription(txn.ProductID) {
		return r.applySubscriptionLocked(ctx, account, txn)
	}
	return r.applyPackLocked(ctx, account, txn)
}

func (r *Reconciler) applySubscriptionLocked(ctx context.Context, account ledger.Account, txn Transaction) error {
	now := r.clk.Now()
	if txn.Revoked() || txn.Expired(now) {
		if !account.SubscriptionActive {
			return nil
		}
		if _, err := r.accounts.SetSubscriptionActive(ctx, false); err != nil {
			return err
		}
		r.logger.Info("subscription deactivated",
			logging.String(logging.FieldIdentity, account.Identity),
			logging.Bool("revoked", txn.Revoked()))
		return nil
	}

	if account.SubscriptionActive {
		return nil
	}
	if _, err := r.accounts.SetSubscriptionActive(ctx, true); err != nil {
		return err
	}
	if _, err := r.accounts.AddCredits(ctx, subscriptionGrant); err != nil {
		return err
	}
	if _, err := r.accounts.SetNextReward(ctx, now.Add(r.rewardInterval)); err != nil {
		return err
	}
	r.logger.Info("subscription activated",
		logging.String(logging.FieldIdentity, account.Identity),
		logging.Int64("credits_granted", subscriptionGrant))
	r.publish(ctx, notifications.EventPurchaseApplied, notifications.Payload{
		"product": txn.ProductID,
		"credits": strconv.FormatInt(subscriptionGrant, 10),
	})
	return nil
}

type processedSet struct {
	IDs []string `json:"processed_ids"`
}

func (p processedSet) contains(id string) bool {
	for _, existing := range p.IDs {
		if existing == id {
			return true
		}
	}
	return false
}

func (r *Reconciler) applyPackLocked(ctx context.Context, account ledger.Account, txn Transaction) error {
	if txn.Revoked() {
		return nil
	}

	key := store.TransactionsKey(account.Identity)
	var processed processedSet
	if _, err := store.GetJSON(ctx, r.kv, key, &processed); err != nil {
		return fmt.Errorf("load processed transactions: %w", err)
	}
	if processed.contains(txn.ID) {
		return nil
	}

	credits, known := CreditsForPack(txn.ProductID)
	if known {
		if _, err := r.accounts.AddCredits(ctx, credits); err != nil {
			return err
		}
	} else {
		r.logger.Warn("transaction for unknown product",
			logging.String(logging.FieldProduct, txn.ProductID),
			logging.String("transaction_id", txn.ID))
	}

	processed.IDs = append(processed.IDs, txn.ID)
	if err := store.PutJSON(ctx, r.kv, key, processed); err != nil {
		return fmt.Errorf("persist processed transactions: %w", err)
	}

	if known {
		r.logger.Info("credit pack applied",
			logging.String(logging.FieldIdentity, account.Identity),
			logging.String(logging.FieldProduct, txn.ProductID),
			logging.Int64("credits_granted", credits))
		r.publish(ctx, notifications.EventPurchaseApplied, notifications.Payload{
			"product": txn.ProductID,
			"credits": strconv.FormatInt(credits, 10),
		})
	}
	return nil
}

// RefreshSubscriptionStatus recomputes the active flag from current
// entitlements. A revoked entitlement forces inactive even when another
// unexpired record exists for the same product.
func (r *Reconciler) RefreshSubscriptionStatus(ctx context.Context) error {
	_, signedIn := r.accounts.Snapshot()
	if !signedIn {
		return services.Wrap(services.ErrValidation, "billing", "refresh_subscription", "sign in required", nil)
	}

	entitlements, err := r.provider.CurrentEntitlements(ctx)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return err
		}
		return services.Wrap(services.ErrTransport, "billing", "refresh_subscription", "entitlement fetch failed", err)
	}

	now := r.clk.Now()
	active := false
	revoked := false
	for _, txn := range entitlements {
		if !IsSubscription(txn.ProductID) {
			continue
		}
		if txn.Revoked() {
			revoked = true
			continue
		}
		if !txn.Expired(now) {
			active = true
		}
	}
	if revoked {
		active = false
	}

	if _, err := r.accounts.SetSubscriptionActive(ctx, active); err != nil {
		return err
	}
	return nil
}

// Sync pulls current entitlements, applies each through the ledger, and
// recomputes the subscription flag. Used at sign-in and on demand.
func (r *Reconciler) Sync(ctx context.Context) error {
	entitlements, err := r.provider.CurrentEntitlements(ctx)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return err
		}
		return services.Wrap(services.ErrTransport, "billing", "sync", "entitlement fetch failed", err)
	}
	for _, txn := range entitlements {
		if err := r.ApplyTransaction(ctx, txn); err != nil {
			return err
		}
	}
	return r.RefreshSubscriptionStatus(ctx)
}

// ListenForTransactionUpdates starts the long-lived update stream.
// Starting twice is a no-op; the stream runs until ctx is cancelled.
func (r *Reconciler) ListenForTransactionUpdates(ctx context.Context) error {
	r.mu.Lock()
	if r.listening {
		r.mu.Unlock()
		return nil
	}
	r.listening = true
	r.mu.Unlock()

	updates, err := r.provider.TransactionUpdates(ctx)
	if err != nil {
		r.mu.Lock()
		r.listening = false
		r.mu.Unlock()
		if errors.Is(err, services.ErrConfiguration) {
			return err
		}
		return services.Wrap(services.ErrTransport, "billing", "listen_updates", "update stream failed", err)
	}

	go func() {
		for txn := range updates {
			if err := r.ApplyTransaction(ctx, txn); err != nil {
				r.logger.Warn("transaction update not applied",
					logging.String("transaction_id", txn.ID),
					logging.Error(err))
			}
		}
		// Stream closed; allow a later restart to attach a fresh stream.
		r.mu.Lock()
		r.listening = false
		r.mu.Unlock()
	}()
	return nil
}

func (r *Reconciler) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		r.logger.Warn("notification failed", logging.Error(err))
	}
}
