package elicit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chughtapan/wags-gate/internal/domain/handler"
	"github.com/chughtapan/wags-gate/internal/domain/proxy"
	"github.com/chughtapan/wags-gate/internal/metrics"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// Elicitation outcome errors. Declined and cancelled are distinguished so
// callers can tell "user said no" from "user walked away". Neither is
// retried; the call aborts with no partial merge.
var (
	ErrDeclined  = errors.New("elicitation was declined: cannot proceed with tool call")
	ErrCancelled = errors.New("elicitation was cancelled: cannot proceed with tool call")
)

// elicitMessage is the prompt shown above the combined form.
const elicitMessage = "Please provide the required information"

// Stage collects human-reviewed parameters before a tool call proceeds.
//
// Per call, the stage skips entirely when the call has no client session,
// the client did not negotiate elicitation support, or the target handler
// has no annotated parameters. Otherwise it gathers every annotated
// parameter (caller-supplied values become pre-filled defaults, not final
// values), performs exactly one combined round trip, and on acceptance
// overlays every returned value onto the argument map before forwarding.
type Stage struct {
	proxy.Passthrough

	registry *handler.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewStage creates the elicitation stage.
func NewStage(registry *handler.Registry, m *metrics.Metrics, logger *slog.Logger) *Stage {
	return &Stage{registry: registry, metrics: m, logger: logger}
}

// CallTool implements proxy.Stage.
func (s *Stage) CallTool(ctx context.Context, req *proxy.ToolRequest, next proxy.CallToolFunc) (*mcp.CallToolResult, error) {
	if req.Session == nil {
		return next(ctx, req)
	}
	spec, ok := s.registry.Lookup(req.Name)
	if !ok {
		return next(ctx, req)
	}
	if req.Session.Capabilities().Elicitation == nil {
		return next(ctx, req)
	}
	fields := spec.ElicitParams()
	if len(fields) == 0 {
		return next(ctx, req)
	}

	schema, err := BuildSchema(fields, req.Arguments)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("eliciting parameters",
		"tool", req.Name,
		"fields", len(fields),
		"schema_fp", fmt.Sprintf("%016x", Fingerprint(schema)),
	)

	result, err := req.Session.Elicit(ctx, &mcp.ElicitParams{
		Message:         elicitMessage,
		RequestedSchema: schema,
	})
	if err != nil {
		return nil, fmt.Errorf("elicitation round trip failed: %w", err)
	}

	switch result.Action {
	case mcp.ElicitAccept:
		s.metrics.RecordElicitation("accept")
	case mcp.ElicitDecline:
		s.metrics.RecordElicitation("decline")
		return nil, ErrDeclined
	case mcp.ElicitCancel:
		s.metrics.RecordElicitation("cancel")
		return nil, ErrCancelled
	default:
		return nil, fmt.Errorf("unknown elicitation action %q", result.Action)
	}

	// Overlay returned values onto a copy; accepted values overwrite
	// caller-supplied ones for exactly the annotated fields.
	merged := req.Clone()
	for _, f := range fields {
		if v, ok := result.Content[f.Name]; ok {
			merged.Arguments[f.Name] = v
		}
	}
	return next(ctx, merged)
}

// Compile-time check that Stage implements proxy.Stage.
var _ proxy.Stage = (*Stage)(nil)
