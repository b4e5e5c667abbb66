package proxy

import (
	"context"

	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// Chain composes an ordered list of stages over terminal handlers.
// Composition wraps back to front so stages execute in registration order.
type Chain struct {
	stages []Stage

	listTools ListToolsFunc
	callTool  CallToolFunc
	notify    NotifyFunc
}

// NewChain builds a chain from stages and the terminal handlers that hit the
// backend. The terminal notify handler may be nil; notifications then stop
// at the end of the chain.
func NewChain(stages []Stage, listTools ListToolsFunc, callTool CallToolFunc, notify NotifyFunc) *Chain {
	if notify == nil {
		notify = func(ctx context.Context, n *Notification) error { return nil }
	}

	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		nextList, nextCall, nextNotify := listTools, callTool, notify
		listTools = func(ctx context.Context, req *ListRequest) ([]mcp.Tool, error) {
			return stage.ListTools(ctx, req, nextList)
		}
		callTool = func(ctx context.Context, req *ToolRequest) (*mcp.CallToolResult, error) {
			return stage.CallTool(ctx, req, nextCall)
		}
		notify = func(ctx context.Context, n *Notification) error {
			return stage.Notify(ctx, n, nextNotify)
		}
	}

	return &Chain{
		stages:    stages,
		listTools: listTools,
		callTool:  callTool,
		notify:    notify,
	}
}

// ListTools runs a tools/list request through the chain.
func (c *Chain) ListTools(ctx context.Context, req *ListRequest) ([]mcp.Tool, error) {
	return c.listTools(ctx, req)
}

// CallTool runs a tools/call request through the chain.
func (c *Chain) CallTool(ctx context.Context, req *ToolRequest) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, req)
}

// Notify runs a notification through the chain.
func (c *Chain) Notify(ctx context.Context, n *Notification) error {
	return c.notify(ctx, n)
}
