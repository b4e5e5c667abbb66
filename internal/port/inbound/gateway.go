// Package inbound defines the inbound port interfaces for the gateway core.
// Inbound adapters (stdio today) call these interfaces.
package inbound

import (
	"context"
)

// GatewayService is the inbound port for the gateway core.
type GatewayService interface {
	// Run starts the backend connection and serves the client session.
	// Blocks until the context is cancelled or an error occurs.
	// Returns nil on graceful shutdown, error on failure.
	Run(ctx context.Context) error

	// Close gracefully shuts down the gateway and cleans up resources.
	Close() error
}
