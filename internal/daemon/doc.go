// Package daemon coordinates the long-running Reel process.
//
// It wires configuration, the state store, the credit ledger, the generation
// coordinator, the purchase reconciler, and the reward scheduler into a single
// lifecycle with flock-based locking to prevent multiple instances. Starting
// the daemon restores the persisted session, reconciles entitlements, checks
// for due rewards, and resumes any pending generation job before the
// background listeners attach.
//
// Keep orchestration logic here: domain rules live in their respective
// packages while the daemon focuses on startup, shutdown, and delegation.
package daemon
