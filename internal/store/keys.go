package store

// Key layout for the daemon's durable state. Account-scoped keys embed the
// opaque identity so multiple cached accounts can coexist.

// CurrentIdentityKey holds the identity of the last signed-in account.
const CurrentIdentityKey = "session/current"

// AccountKey holds the persisted account snapshot for an identity.
func AccountKey(identity string) string {
	return "account/" + identity
}

// TransactionsKey holds the applied storefront transaction ids for an identity.
func TransactionsKey(identity string) string {
	return "transactions/" + identity
}

// PendingJobKey holds the in-flight generation job snapshot for an identity.
func PendingJobKey(identity string) string {
	return "job/" + identity
}

// LastResultKey holds the most recent resolved video URL or error message for
// an identity.
func LastResultKey(identity string) string {
	return "result/" + identity
}
