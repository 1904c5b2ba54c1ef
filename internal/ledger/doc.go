// Package ledger maintains the per-identity credit balance and session
// state. Balances never go negative; every mutation persists a full
// account snapshot so a crash at any point loses at most the in-flight
// call.
package ledger
