// Package services defines shared utilities consumed by the ledger, billing,
// and generation components and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job identifiers, account identities, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent user-facing classifications (validation vs transport vs
//     rejection), surfaced over IPC as stable codes.
//
// Use these helpers when wiring new daemon logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
