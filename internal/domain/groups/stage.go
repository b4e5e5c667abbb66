package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/chughtapan/wags-gate/internal/domain/handler"
	"github.com/chughtapan/wags-gate/internal/domain/proxy"
	"github.com/chughtapan/wags-gate/internal/metrics"
	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// NotEnabledError reports a call to a tool whose groups are not enabled.
// It carries enough state to tell the caller how to proceed.
type NotEnabledError struct {
	Tool          string
	Groups        []string
	EnabledGroups []string
}

func (e *NotEnabledError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool '%s' not available.", e.Tool)
	if len(e.Groups) > 0 {
		fmt.Fprintf(&b, " Try: enable_tools(groups=%s).", quoteList(e.Groups))
	}
	fmt.Fprintf(&b, " Currently enabled: %s", quoteList(e.EnabledGroups))
	return b.String()
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Stage is the capability-disclosure interceptor. It filters tools/list down
// to enabled groups, serves the enable_tools/disable_tools meta-tools
// locally, and blocks calls to tools outside the enabled set.
type Stage struct {
	proxy.Passthrough

	registry   *handler.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
	metaSchema json.RawMessage

	mu     sync.Mutex
	forest *forest
}

// NewStage builds the group forest, maps handler-tagged tools into it, and
// applies the initially enabled groups. Initial groups obey the same
// visibility and budget rules as enable_tools, in declaration order.
func NewStage(defs []Definition, initial []string, maxTools int, registry *handler.Registry, m *metrics.Metrics, logger *slog.Logger) (*Stage, error) {
	f, err := newForest(defs, maxTools)
	if err != nil {
		return nil, err
	}
	for _, spec := range registry.Specs() {
		if tags := spec.GroupTags(); len(tags) > 0 {
			if err := f.tagTool(spec.Name(), tags); err != nil {
				return nil, err
			}
		}
	}
	// Initial groups are checked for existence and visibility only; the
	// tool budget applies to runtime toggles, not the configured baseline.
	for _, name := range initial {
		if _, ok := f.defs[name]; !ok {
			return nil, fmt.Errorf("unknown initial group %q", name)
		}
		if !f.isVisibleLocked(name) {
			return nil, fmt.Errorf("cannot initially enable %q: parent %q not enabled", name, f.defs[name].Parent)
		}
		f.enabled[name] = struct{}{}
	}

	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"groups": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "Names of the groups to toggle",
			},
		},
		Required: []string{"groups"},
	}
	rawSchema, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal meta-tool schema: %w", err)
	}

	return &Stage{
		registry:   registry,
		metrics:    m,
		logger:     logger,
		metaSchema: rawSchema,
		forest:     f,
	}, nil
}

var _ proxy.Stage = (*Stage)(nil)

// ListTools filters the backend listing to tools in enabled groups and
// prepends the two meta-tools. Tools carrying group names in their metadata
// are folded into the mapping on first sight.
func (s *Stage) ListTools(ctx context.Context, req *proxy.ListRequest, next proxy.ListToolsFunc) ([]mcp.Tool, error) {
	tools, err := next(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tool := range tools {
		if groupNames := tool.MetaGroups(); len(groupNames) > 0 {
			s.forest.discoverLocked(s.normalize(tool.Name), groupNames)
		}
	}

	filtered := make([]mcp.Tool, 0, len(tools)+2)
	filtered = append(filtered, s.metaToolsLocked()...)
	for _, tool := range tools {
		if s.forest.isToolEnabledLocked(s.normalize(tool.Name)) {
			filtered = append(filtered, tool)
		}
	}
	return filtered, nil
}

// CallTool answers meta-tool calls locally and gates every other call on
// the enabled set.
func (s *Stage) CallTool(ctx context.Context, req *proxy.ToolRequest, next proxy.CallToolFunc) (*mcp.CallToolResult, error) {
	switch req.Name {
	case MetaToolEnable:
		return s.handleEnable(ctx, req)
	case MetaToolDisable:
		return s.handleDisable(ctx, req)
	}

	s.mu.Lock()
	name := s.normalize(req.Name)
	enabled := s.forest.isToolEnabledLocked(name)
	var blockErr *NotEnabledError
	if !enabled {
		blockErr = &NotEnabledError{
			Tool:          req.Name,
			Groups:        s.forest.groupsForToolLocked(name),
			EnabledGroups: s.forest.enabledGroupsLocked(),
		}
	}
	s.mu.Unlock()

	if blockErr != nil {
		s.logger.Info("tool call blocked", "tool", req.Name, "groups", blockErr.Groups)
		return nil, blockErr
	}
	return next(ctx, req)
}

func (s *Stage) handleEnable(ctx context.Context, req *proxy.ToolRequest) (*mcp.CallToolResult, error) {
	names, err := groupsArgument(req.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetaToolEnable, err)
	}

	s.mu.Lock()
	result := s.forest.enableLocked(names)
	s.mu.Unlock()

	s.metrics.RecordGroupToggle("enable")
	s.logger.Info("enable_tools",
		"requested", names,
		"enabled", result.Enabled,
		"errors", len(result.Errors))

	if len(result.Enabled) > 0 {
		s.notifyToolListChanged(ctx, req.Session)
	}
	return mcp.StructuredResult(result)
}

func (s *Stage) handleDisable(ctx context.Context, req *proxy.ToolRequest) (*mcp.CallToolResult, error) {
	names, err := groupsArgument(req.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetaToolDisable, err)
	}

	s.mu.Lock()
	result := s.forest.disableLocked(names)
	s.mu.Unlock()

	s.metrics.RecordGroupToggle("disable")
	s.logger.Info("disable_tools",
		"requested", names,
		"disabled", result.Disabled,
		"errors", len(result.Errors))

	if len(result.Disabled) > 0 {
		s.notifyToolListChanged(ctx, req.Session)
	}
	return mcp.StructuredResult(result)
}

func (s *Stage) notifyToolListChanged(ctx context.Context, sess outbound.ClientSession) {
	if sess == nil {
		return
	}
	if err := sess.NotifyToolListChanged(ctx); err != nil {
		s.logger.Warn("tool list change notification failed", "error", err)
	}
}

// EnabledGroups returns a snapshot of the enabled group names.
func (s *Stage) EnabledGroups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.enabledGroupsLocked()
}

// EnabledTools returns a snapshot of the tools in enabled groups.
func (s *Stage) EnabledTools() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.enabledToolsLocked()
}

func (s *Stage) metaToolsLocked() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        MetaToolEnable,
			Description: s.forest.enableToolsDescription(),
			InputSchema: s.metaSchema,
		},
		{
			Name:        MetaToolDisable,
			Description: s.forest.disableToolsDescription(),
			InputSchema: s.metaSchema,
		},
	}
}

// normalize maps a possibly prefixed wire tool name back to the handler
// name the group mapping is keyed by.
func (s *Stage) normalize(name string) string {
	if spec, ok := s.registry.Lookup(name); ok {
		return spec.Name()
	}
	return name
}

// groupsArgument extracts the mandatory "groups" string array argument.
func groupsArgument(args map[string]any) ([]string, error) {
	raw, ok := args["groups"]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		names := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("'groups' element %d is not a string", i)
			}
			names[i] = s
		}
		return names, nil
	default:
		return nil, fmt.Errorf("'groups' must be an array of strings")
	}
}
