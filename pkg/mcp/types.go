// Package mcp provides MCP protocol types and JSON-RPC codec utilities
// for the wags-gate proxy.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP protocol revision the gateway speaks.
const ProtocolVersion = "2025-06-18"

// JSON-RPC method names the gateway dispatches on.
const (
	MethodInitialize = "initialize"
	MethodListTools  = "tools/list"
	MethodCallTool   = "tools/call"
	MethodListRoots  = "roots/list"
	MethodElicit     = "elicitation/create"

	NotificationInitialized      = "notifications/initialized"
	NotificationRootsListChanged = "notifications/roots/list_changed"
	NotificationToolListChanged  = "notifications/tools/list_changed"
)

// GroupsMetaKey is the reserved tool-meta key under which a backend tool may
// self-declare its group membership. Handler-side tags take priority over it.
const GroupsMetaKey = "io.modelcontextprotocol/groups"

// Implementation identifies an MCP client or server.
type Implementation struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

// RootsCapability is present when the client can answer roots/list requests.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ElicitationCapability is present when the client can answer
// elicitation/create requests.
type ElicitationCapability struct{}

// ClientCapabilities holds the subset of negotiated client capabilities the
// gateway cares about. A nil field means the client did not advertise the
// capability and the corresponding stage must pass through.
type ClientCapabilities struct {
	Roots       *RootsCapability       `json:"roots,omitempty"`
	Elicitation *ElicitationCapability `json:"elicitation,omitempty"`
}

// ToolsCapability advertises tool support to the client.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities is what the gateway advertises on initialize.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// InitializeParams is the client's half of the initialize handshake.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the gateway's half of the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Tool represents a tool definition from a tools/list response.
// Fields match the MCP specification 2025-06-18.
type Tool struct {
	// Name is the unique identifier for this tool (required).
	Name string `json:"name"`

	// Title is an optional human-readable display name.
	Title string `json:"title,omitempty"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON Schema for the tool's parameters.
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`

	// OutputSchema is an optional JSON Schema for the tool's output.
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`

	// Meta carries protocol-reserved metadata, including GroupsMetaKey.
	Meta map[string]any `json:"_meta,omitempty"`
}

// MetaGroups extracts the group names a tool self-declares under
// GroupsMetaKey. Returns nil if the key is absent or malformed; individual
// non-string entries are skipped.
func (t Tool) MetaGroups() []string {
	if t.Meta == nil {
		return nil
	}
	raw, ok := t.Meta[GroupsMetaKey]
	if !ok {
		return nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	var groups []string
	for _, e := range entries {
		if s, ok := e.(string); ok {
			groups = append(groups, s)
		}
	}
	return groups
}

// ListToolsResult is the tools/list response payload.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams is the tools/call request payload.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Content is a single content block in a tool result. Only text content is
// produced by the gateway itself; backend results pass through untouched.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the tools/call response payload.
type CallToolResult struct {
	Content           []Content       `json:"content"`
	StructuredContent any             `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
	Meta              map[string]any  `json:"_meta,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

// TextResult builds a successful tool result with a single text block.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult builds a tool-level error result. Policy denials are reported
// in-band so the caller can see the failure and self-correct, rather than as
// protocol-level errors.
func ErrorResult(err error) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

// StructuredResult builds a tool result carrying both structured content and
// its JSON text rendering, mirroring how servers surface typed results.
func StructuredResult(v any) (*CallToolResult, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal structured content: %w", err)
	}
	return &CallToolResult{
		Content:           []Content{{Type: "text", Text: string(text)}},
		StructuredContent: v,
	}, nil
}

// ElicitParams is the elicitation/create request payload. RequestedSchema is
// a flat object schema; the gateway builds it with google/jsonschema-go.
type ElicitParams struct {
	Message         string          `json:"message"`
	RequestedSchema json.RawMessage `json:"requestedSchema"`
}

// ElicitAction is the user's response to an elicitation request.
type ElicitAction string

const (
	// ElicitAccept means the user submitted the form.
	ElicitAccept ElicitAction = "accept"
	// ElicitDecline means the user explicitly said no.
	ElicitDecline ElicitAction = "decline"
	// ElicitCancel means the user dismissed without an explicit choice.
	ElicitCancel ElicitAction = "cancel"
)

// ElicitResult is the elicitation/create response payload. Content is only
// present when Action is ElicitAccept.
type ElicitResult struct {
	Action  ElicitAction   `json:"action"`
	Content map[string]any `json:"content,omitempty"`
}

// Root is a client-declared resource-prefix URI.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// ListRootsResult is the roots/list response payload.
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}
