// Package roots contains the access-control stage: validation of tool calls
// against the client's declared roots (allowed resource-prefix URIs) using
// simple prefix matching.
package roots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chughtapan/wags-gate/internal/domain/handler"
	"github.com/chughtapan/wags-gate/internal/domain/proxy"
	"github.com/chughtapan/wags-gate/internal/metrics"
	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// ErrAccessDenied marks any denial by the access-control stage.
var ErrAccessDenied = errors.New("access denied")

// NoRootsError is the fail-closed denial: the client advertises roots
// support but has none configured. This is a deliberate default-deny, not a
// pass-through.
type NoRootsError struct{}

// Error implements the error interface.
func (e *NoRootsError) Error() string {
	return "Access denied: No roots configured"
}

// Unwrap returns ErrAccessDenied so errors.Is works.
func (e *NoRootsError) Unwrap() error {
	return ErrAccessDenied
}

// DeniedError names the resource that fell outside every allowed root.
type DeniedError struct {
	Resource string
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("Access denied: %s not in allowed roots", e.Resource)
}

// Unwrap returns ErrAccessDenied so errors.Is works.
func (e *DeniedError) Unwrap() error {
	return ErrAccessDenied
}

// Stage validates tool calls against client-configured roots.
//
// Calls pass through unchanged when no client session is attached, the
// client did not negotiate roots support, or the target handler has no root
// template. Otherwise the stage lazily loads the roots once per session,
// resolves the handler's template against the call arguments, and allows the
// call only when the resolved resource starts with some cached root prefix.
//
// A roots/list_changed notification clears the cache so the next protected
// call repopulates it; the cache is otherwise a pure read-through. The cache
// is mutex-guarded: one stage instance serves one client session, but calls
// on that session may be in flight concurrently.
type Stage struct {
	proxy.Passthrough

	registry *handler.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	roots  []string
	loaded bool
	gen    uint64
}

// NewStage creates the access-control stage.
func NewStage(registry *handler.Registry, m *metrics.Metrics, logger *slog.Logger) *Stage {
	return &Stage{registry: registry, metrics: m, logger: logger}
}

// CallTool implements proxy.Stage.
func (s *Stage) CallTool(ctx context.Context, req *proxy.ToolRequest, next proxy.CallToolFunc) (*mcp.CallToolResult, error) {
	if req.Session == nil {
		return next(ctx, req)
	}
	if req.Session.Capabilities().Roots == nil {
		return next(ctx, req)
	}
	spec, ok := s.registry.Lookup(req.Name)
	if !ok || spec.Template() == nil {
		return next(ctx, req)
	}

	roots, err := s.loadRoots(ctx, req.Session)
	if err != nil {
		return nil, err
	}

	resource, err := spec.Template().Resolve(req.Arguments)
	if err != nil {
		return nil, err
	}

	if len(roots) == 0 {
		s.metrics.RecordRootsDecision("deny")
		return nil, &NoRootsError{}
	}

	for _, root := range roots {
		if strings.HasPrefix(resource, root) {
			s.metrics.RecordRootsDecision("allow")
			return next(ctx, req)
		}
	}

	s.metrics.RecordRootsDecision("deny")
	s.logger.Info("tool call denied by roots",
		"tool", req.Name,
		"resource", resource,
	)
	return nil, &DeniedError{Resource: resource}
}

// Notify implements proxy.Stage. A roots change invalidates the cache.
func (s *Stage) Notify(ctx context.Context, n *proxy.Notification, next proxy.NotifyFunc) error {
	if n.Method == mcp.NotificationRootsListChanged {
		s.mu.Lock()
		s.roots = nil
		s.loaded = false
		s.gen++
		s.mu.Unlock()
		s.logger.Debug("roots cache invalidated")
	}
	return next(ctx, n)
}

// loadRoots returns the cached roots, fetching them from the client on first
// use. A failed listing caches an empty set (which denies closed) rather
// than failing the call outright; the wire error is logged.
func (s *Stage) loadRoots(ctx context.Context, sess outbound.ClientSession) ([]string, error) {
	s.mu.Lock()
	if s.loaded {
		roots := s.roots
		s.mu.Unlock()
		return roots, nil
	}
	gen := s.gen
	s.mu.Unlock()

	// Fetch outside the lock; the round trip can block indefinitely.
	var roots []string
	result, err := sess.ListRoots(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("roots listing failed, treating as no roots", "error", err)
	} else {
		for _, r := range result.Roots {
			roots = append(roots, r.URI)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Commit only if no invalidation landed during the fetch; a stale
	// result must not re-arm the cache past a roots change.
	if !s.loaded && gen == s.gen {
		s.roots = roots
		s.loaded = true
	}
	return roots, nil
}

// Compile-time check that Stage implements proxy.Stage.
var _ proxy.Stage = (*Stage)(nil)
