// Package proxy contains the core domain logic for the wags gateway: the
// stage interface, the interception chain, and the proxy that composes the
// stages in front of a backend tool provider.
package proxy

import (
	"context"

	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// ToolRequest is a tools/call request flowing through the chain.
// Stages must not mutate a request in place; use Clone before modifying.
type ToolRequest struct {
	// Name is the tool name as sent by the client.
	Name string

	// Arguments holds the call arguments.
	Arguments map[string]any

	// Session is the client session the call arrived on. Nil when no
	// client session is attached (in-process callers); stages that need
	// the client pass through in that case.
	Session outbound.ClientSession
}

// Clone returns a copy of the request with a shallow copy of the arguments
// map, so a stage can overlay values without mutating the original.
func (r *ToolRequest) Clone() *ToolRequest {
	args := make(map[string]any, len(r.Arguments))
	for k, v := range r.Arguments {
		args[k] = v
	}
	return &ToolRequest{Name: r.Name, Arguments: args, Session: r.Session}
}

// ListRequest is a tools/list request flowing through the chain.
type ListRequest struct {
	Session outbound.ClientSession
}

// Notification is a notification flowing through the chain, from either
// direction (client roots changes, backend relays).
type Notification struct {
	Method  string
	Session outbound.ClientSession
}

// Continuation funcs invoke the rest of the chain. A stage may call next
// zero times (short-circuit), once with the same value (pass through), or
// once with a modified value.
type (
	ListToolsFunc func(ctx context.Context, req *ListRequest) ([]mcp.Tool, error)
	CallToolFunc  func(ctx context.Context, req *ToolRequest) (*mcp.CallToolResult, error)
	NotifyFunc    func(ctx context.Context, n *Notification) error
)

// Stage inspects and optionally modifies requests on their way to the
// backend. Stages run in fixed registration order for every call.
type Stage interface {
	ListTools(ctx context.Context, req *ListRequest, next ListToolsFunc) ([]mcp.Tool, error)
	CallTool(ctx context.Context, req *ToolRequest, next CallToolFunc) (*mcp.CallToolResult, error)
	Notify(ctx context.Context, n *Notification, next NotifyFunc) error
}

// Passthrough forwards everything unchanged. Embed it in a stage to inherit
// default behavior for the hooks the stage does not care about.
type Passthrough struct{}

// ListTools forwards the request unchanged.
func (Passthrough) ListTools(ctx context.Context, req *ListRequest, next ListToolsFunc) ([]mcp.Tool, error) {
	return next(ctx, req)
}

// CallTool forwards the request unchanged.
func (Passthrough) CallTool(ctx context.Context, req *ToolRequest, next CallToolFunc) (*mcp.CallToolResult, error) {
	return next(ctx, req)
}

// Notify forwards the notification unchanged.
func (Passthrough) Notify(ctx context.Context, n *Notification, next NotifyFunc) error {
	return next(ctx, n)
}

// Compile-time check that Passthrough implements Stage.
var _ Stage = Passthrough{}
