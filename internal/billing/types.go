package billing

import "time"

// ProductKind distinguishes the renewing subscription from consumable
// credit packs.
type ProductKind string

const (
	KindSubscription ProductKind = "subscription"
	KindCreditPack   ProductKind = "credit_pack"
)

// Product describes one purchasable item from the storefront catalog.
type Product struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description"`
	Price       string      `json:"price"`
	Kind        ProductKind `json:"kind"`
}

// Transaction is a platform-verified purchase record. RevokedAt set
// means the purchase was refunded or revoked and must not confer any
// entitlement.
type Transaction struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"productId"`
	PurchasedAt time.Time  `json:"purchasedAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// Revoked reports whether the transaction has been revoked upstream.
func (t Transaction) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the transaction's entitlement window has
// lapsed as of now.
func (t Transaction) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// Outcome classifies the result of a purchase attempt.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomePending    Outcome = "pending"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeUnverified Outcome = "unverified"
)

// PurchaseResult is what the storefront reports back for a purchase
// attempt. Transaction is populated only on success.
type PurchaseResult struct {
	Outcome     Outcome      `json:"outcome"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Message     string       `json:"message,omitempty"`
}
