// Package notifications pushes daemon events to an ntfy topic. Events
// are grouped into generation, purchase, and error categories, each of
// which can be silenced independently in configuration.
package notifications
