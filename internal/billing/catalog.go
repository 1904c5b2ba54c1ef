package billing

// Storefront product identifiers. The credit amounts a pack grants are
// fixed business terms, not catalog data, so they live here rather than
// in the remote product definitions.
const (
	ProductSubscription = "reel.plus.monthly"
	ProductPackSmall    = "reel.credits.small"
	ProductPackMedium   = "reel.credits.medium"
	ProductPackLarge    = "reel.credits.large"

	subscriptionGrant = 1000
)

var packCredits = map[string]int64{
	ProductPackSmall:  500,
	ProductPackMedium: 1200,
	ProductPackLarge:  2600,
}

// CreditsForPack returns the credit amount a pack product grants.
func CreditsForPack(productID string) (int64, bool) {
	credits, ok := packCredits[productID]
	return credits, ok
}

// IsSubscription reports whether the product id is the subscription.
func IsSubscription(productID string) bool {
	return productID == ProductSubscription
}

// IsCreditPack reports whether the product id is a known credit pack.
func IsCreditPack(productID string) bool {
	_, ok := packCredits[productID]
	return ok
}
