package elicit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/chughtapan/wags-gate/internal/domain/handler"
	"github.com/chughtapan/wags-gate/internal/domain/proxy"
	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// mockSession scripts the client's elicitation response.
type mockSession struct {
	caps mcp.ClientCapabilities

	elicitResult *mcp.ElicitResult
	elicitErr    error
	elicitCalls  int
	lastParams   *mcp.ElicitParams
}

func (m *mockSession) ID() string { return "test-session" }

func (m *mockSession) Capabilities() mcp.ClientCapabilities { return m.caps }

func (m *mockSession) NotifyToolListChanged(_ context.Context) error { return nil }

func (m *mockSession) ListRoots(_ context.Context) (*mcp.ListRootsResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSession) Elicit(_ context.Context, params *mcp.ElicitParams) (*mcp.ElicitResult, error) {
	m.elicitCalls++
	m.lastParams = params
	if m.elicitErr != nil {
		return nil, m.elicitErr
	}
	return m.elicitResult, nil
}

var _ outbound.ClientSession = (*mockSession)(nil)

func elicitSession(result *mcp.ElicitResult) *mockSession {
	return &mockSession{
		caps:         mcp.ClientCapabilities{Elicitation: &mcp.ElicitationCapability{}},
		elicitResult: result,
	}
}

func newTestStage(t *testing.T) *Stage {
	t.Helper()
	reg, err := handler.NewRegistry([]*handler.Spec{
		handler.NewSpec("send_mail").
			Param("body", handler.String).
			ElicitParam("to", handler.String, "Recipient address").
			ElicitParam("subject", handler.String, "Mail subject"),
		handler.NewSpec("list_mail"),
	})
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}
	return NewStage(reg, nil, slog.Default())
}

func capture(got **proxy.ToolRequest) proxy.CallToolFunc {
	return func(ctx context.Context, req *proxy.ToolRequest) (*mcp.CallToolResult, error) {
		*got = req
		return mcp.TextResult("sent"), nil
	}
}

func TestCallTool_AcceptMergesContent(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := elicitSession(&mcp.ElicitResult{
		Action:  mcp.ElicitAccept,
		Content: map[string]any{"to": "alice@example.com", "subject": "hello"},
	})

	var forwarded *proxy.ToolRequest
	orig := &proxy.ToolRequest{
		Name:      "send_mail",
		Arguments: map[string]any{"body": "hi", "to": "typo@example.com"},
		Session:   sess,
	}
	_, err := stage.CallTool(context.Background(), orig, capture(&forwarded))
	if err != nil {
		t.Fatalf("CallTool() unexpected error: %v", err)
	}

	if sess.elicitCalls != 1 {
		t.Errorf("Elicit called %d times, want exactly 1 round trip", sess.elicitCalls)
	}
	if forwarded == nil {
		t.Fatal("next was not called after acceptance")
	}
	if forwarded.Arguments["to"] != "alice@example.com" {
		t.Errorf("to = %v, want accepted value to overwrite supplied one", forwarded.Arguments["to"])
	}
	if forwarded.Arguments["subject"] != "hello" {
		t.Errorf("subject = %v, want hello", forwarded.Arguments["subject"])
	}
	if forwarded.Arguments["body"] != "hi" {
		t.Errorf("body = %v, want unannotated argument untouched", forwarded.Arguments["body"])
	}
	if orig.Arguments["to"] != "typo@example.com" {
		t.Errorf("original request mutated: to = %v", orig.Arguments["to"])
	}
}

func TestCallTool_SingleRoundTripSchema(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := elicitSession(&mcp.ElicitResult{Action: mcp.ElicitAccept, Content: map[string]any{}})

	var forwarded *proxy.ToolRequest
	_, err := stage.CallTool(context.Background(), &proxy.ToolRequest{
		Name:      "send_mail",
		Arguments: map[string]any{"to": "bob@example.com"},
		Session:   sess,
	}, capture(&forwarded))
	if err != nil {
		t.Fatalf("CallTool() unexpected error: %v", err)
	}

	if sess.lastParams == nil {
		t.Fatal("no elicitation request captured")
	}
	if sess.lastParams.Message != "Please provide the required information" {
		t.Errorf("message = %q", sess.lastParams.Message)
	}

	var schema struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type        string          `json:"type"`
			Description string          `json:"description"`
			Default     json.RawMessage `json:"default"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(sess.lastParams.RequestedSchema, &schema); err != nil {
		t.Fatalf("schema does not parse: %v", err)
	}
	if len(schema.Properties) != 2 {
		t.Fatalf("schema has %d properties, want both annotated fields in one schema", len(schema.Properties))
	}
	// Supplied "to" becomes a default; unsupplied "subject" is required.
	if string(schema.Properties["to"].Default) != `"bob@example.com"` {
		t.Errorf("to default = %s, want pre-filled supplied value", schema.Properties["to"].Default)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "subject" {
		t.Errorf("required = %v, want [subject]", schema.Required)
	}
	if schema.Properties["subject"].Description != "Mail subject" {
		t.Errorf("subject description = %q", schema.Properties["subject"].Description)
	}
}

func TestCallTool_Decline(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := elicitSession(&mcp.ElicitResult{Action: mcp.ElicitDecline})

	var forwarded *proxy.ToolRequest
	_, err := stage.CallTool(context.Background(), &proxy.ToolRequest{
		Name:      "send_mail",
		Arguments: map[string]any{},
		Session:   sess,
	}, capture(&forwarded))
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("CallTool() error = %v, want ErrDeclined", err)
	}
	if forwarded != nil {
		t.Error("next ran after a declined elicitation")
	}
	if sess.elicitCalls != 1 {
		t.Errorf("Elicit called %d times, want 1 (declines are not retried)", sess.elicitCalls)
	}
}

func TestCallTool_Cancel(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := elicitSession(&mcp.ElicitResult{Action: mcp.ElicitCancel})

	var forwarded *proxy.ToolRequest
	_, err := stage.CallTool(context.Background(), &proxy.ToolRequest{
		Name:      "send_mail",
		Arguments: map[string]any{},
		Session:   sess,
	}, capture(&forwarded))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("CallTool() error = %v, want ErrCancelled", err)
	}
	if forwarded != nil {
		t.Error("next ran after a cancelled elicitation")
	}
}

func TestCallTool_UnknownAction(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := elicitSession(&mcp.ElicitResult{Action: mcp.ElicitAction("maybe")})

	var forwarded *proxy.ToolRequest
	_, err := stage.CallTool(context.Background(), &proxy.ToolRequest{
		Name:      "send_mail",
		Arguments: map[string]any{},
		Session:   sess,
	}, capture(&forwarded))
	if err == nil {
		t.Fatal("CallTool() expected error for unknown action")
	}
	if forwarded != nil {
		t.Error("next ran despite unknown elicitation action")
	}
}

func TestCallTool_SkipsWithoutCapability(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := &mockSession{} // no elicitation capability

	var forwarded *proxy.ToolRequest
	_, err := stage.CallTool(context.Background(), &proxy.ToolRequest{
		Name:      "send_mail",
		Arguments: map[string]any{"to": "x"},
		Session:   sess,
	}, capture(&forwarded))
	if err != nil {
		t.Fatalf("CallTool() unexpected error: %v", err)
	}
	if forwarded == nil {
		t.Fatal("next was not called")
	}
	if sess.elicitCalls != 0 {
		t.Errorf("Elicit called %d times without capability, want 0", sess.elicitCalls)
	}
}

func TestCallTool_SkipsUnannotatedTool(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := elicitSession(&mcp.ElicitResult{Action: mcp.ElicitAccept})

	var forwarded *proxy.ToolRequest
	_, err := stage.CallTool(context.Background(), &proxy.ToolRequest{
		Name:      "list_mail",
		Arguments: map[string]any{},
		Session:   sess,
	}, capture(&forwarded))
	if err != nil {
		t.Fatalf("CallTool() unexpected error: %v", err)
	}
	if sess.elicitCalls != 0 {
		t.Errorf("Elicit called %d times for unannotated tool, want 0", sess.elicitCalls)
	}
}

func TestCallTool_RoundTripFailure(t *testing.T) {
	t.Parallel()

	stage := newTestStage(t)
	sess := elicitSession(nil)
	sess.elicitErr = errors.New("client went away")

	var forwarded *proxy.ToolRequest
	_, err := stage.CallTool(context.Background(), &proxy.ToolRequest{
		Name:      "send_mail",
		Arguments: map[string]any{},
		Session:   sess,
	}, capture(&forwarded))
	if err == nil {
		t.Fatal("CallTool() expected error when the round trip fails")
	}
	if forwarded != nil {
		t.Error("next ran despite failed round trip")
	}
}
