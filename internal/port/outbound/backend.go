// Package outbound defines the outbound port interfaces for the gateway
// core: the backend tool provider and the per-session client channel.
package outbound

import (
	"context"
	"encoding/json"

	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// ToolBackend is the outbound port for the upstream tool-providing server.
// Adapters implement this to support different transports (stdio subprocess
// today; the core never touches the wire).
type ToolBackend interface {
	// Start launches the upstream connection and performs the MCP
	// initialize handshake. Must be called before any other method.
	Start(ctx context.Context) error

	// ListTools fetches the backend's full tool list.
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// CallTool forwards a tool call to the backend and returns its result.
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)

	// Forward relays a request for any method the gateway does not
	// intercept (ping, prompts/*, resources/*) and returns the raw result.
	Forward(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)

	// Notify relays a client notification the gateway does not consume
	// itself (cancellations, progress).
	Notify(ctx context.Context, method string, params json.RawMessage) error

	// Close terminates the upstream connection and cleans up resources.
	Close() error
}

// NotificationHandler receives notifications pushed by the backend so the
// gateway can relay them to the client.
type NotificationHandler func(method string, params json.RawMessage)
