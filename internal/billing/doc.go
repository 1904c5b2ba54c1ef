// Package billing reconciles storefront purchases against the credit
// ledger. It owns the product catalog, the purchase flow, and the
// long-lived transaction update stream; every ledger effect is
// idempotent against redelivery.
package billing
