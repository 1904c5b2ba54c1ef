// Package generation coordinates the asynchronous video job lifecycle:
// submit, delayed first check, periodic polling, terminal resolution.
// Pending state persists before any network call so jobs survive daemon
// restarts, and the reserved credit cost is debited exactly once, on
// success only.
package generation
