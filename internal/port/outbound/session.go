package outbound

import (
	"context"

	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// ClientSession is the outbound port for talking back to the connected
// client: capability flags negotiated at initialize, the two round trips the
// stages suspend on (elicitation, roots listing), and the tools-list-changed
// notification. One session serves one client connection.
//
// Both round trips wait on an external client response with no timeout of
// their own; cancellation policy belongs to the caller's context.
type ClientSession interface {
	// ID identifies the session in logs.
	ID() string

	// Capabilities returns the client capabilities negotiated at
	// initialize. Stages gate themselves off when the relevant
	// capability is absent.
	Capabilities() mcp.ClientCapabilities

	// Elicit asks the client to supply/confirm field values. Blocks until
	// the client responds or ctx is done.
	Elicit(ctx context.Context, params *mcp.ElicitParams) (*mcp.ElicitResult, error)

	// ListRoots fetches the client's allowed resource-prefix URIs. Blocks
	// until the client responds or ctx is done.
	ListRoots(ctx context.Context) (*mcp.ListRootsResult, error)

	// NotifyToolListChanged tells the client the advertised tool list
	// changed and it should re-list.
	NotifyToolListChanged(ctx context.Context) error
}
