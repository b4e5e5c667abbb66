package proxy

import (
	"context"
	"log/slog"

	"github.com/chughtapan/wags-gate/internal/ctxkey"
	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// LoggerFromContext retrieves the request-enriched logger set by the
// inbound adapter. Returns nil if none is attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return nil
}

// Proxy wraps one backend tool provider and applies the stage chain to every
// tools/list, tools/call, and notification. Backend notifications are
// re-dispatched through the same chain so stateful stages observe them.
type Proxy struct {
	backend outbound.ToolBackend
	chain   *Chain
	logger  *slog.Logger
}

// NewProxy builds a proxy whose chain terminates at the backend.
func NewProxy(backend outbound.ToolBackend, stages []Stage, logger *slog.Logger) *Proxy {
	p := &Proxy{backend: backend, logger: logger}
	p.chain = NewChain(stages,
		func(ctx context.Context, req *ListRequest) ([]mcp.Tool, error) {
			return backend.ListTools(ctx)
		},
		func(ctx context.Context, req *ToolRequest) (*mcp.CallToolResult, error) {
			return backend.CallTool(ctx, req.Name, req.Arguments)
		},
		nil,
	)
	return p
}

// ListTools serves a tools/list request for the session.
func (p *Proxy) ListTools(ctx context.Context, sess outbound.ClientSession) ([]mcp.Tool, error) {
	return p.chain.ListTools(ctx, &ListRequest{Session: sess})
}

// CallTool serves a tools/call request for the session.
func (p *Proxy) CallTool(ctx context.Context, sess outbound.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return p.chain.CallTool(ctx, &ToolRequest{Name: name, Arguments: args, Session: sess})
}

// HandleNotification dispatches a notification through the chain. Used for
// client-originated notifications (roots list changes) and for backend
// notifications the adapter relays.
func (p *Proxy) HandleNotification(ctx context.Context, sess outbound.ClientSession, method string) error {
	if err := p.chain.Notify(ctx, &Notification{Method: method, Session: sess}); err != nil {
		logger := LoggerFromContext(ctx)
		if logger == nil {
			logger = p.logger
		}
		logger.Warn("notification dispatch failed", "method", method, "error", err)
		return err
	}
	return nil
}
