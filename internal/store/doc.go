// Package store persists daemon state as a small typed key/value layer
// over SQLite. Components snapshot their state as JSON values keyed per
// identity; the in-memory implementation backs tests.
package store
