// Package config loads, normalizes, and validates reel's TOML configuration.
//
// Load resolves the config path (explicit flag, then the user config dir,
// then a project-local reel.toml), decodes it over Default values, expands
// paths, applies environment fallbacks for credentials, and validates the
// result. Components receive the resulting *Config rather than reading files
// or environment variables themselves.
package config
