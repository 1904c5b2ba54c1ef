// Package preflight provides readiness checks for the external services
// and filesystem paths that Reel depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures before serving.
//   - The CLI "reel status" command uses individual check functions
//     (CheckEndpoint, CheckDirectoryAccess) to display service health.
//
// Checks for optional features are skipped when the feature is not configured.
package preflight
