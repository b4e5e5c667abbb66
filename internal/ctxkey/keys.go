// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// Used by the inbound adapter to store and retrieve the logger with
// session_id/tool fields.
type LoggerKey struct{}
