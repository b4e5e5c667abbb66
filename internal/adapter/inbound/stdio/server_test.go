package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/chughtapan/wags-gate/internal/domain/elicit"
	"github.com/chughtapan/wags-gate/internal/domain/handler"
	"github.com/chughtapan/wags-gate/internal/domain/proxy"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// fakeBackend is an in-memory upstream.
type fakeBackend struct {
	tools    []mcp.Tool
	lastCall struct {
		name string
		args map[string]any
	}
}

func (f *fakeBackend) Start(_ context.Context) error { return nil }

func (f *fakeBackend) ListTools(_ context.Context) ([]mcp.Tool, error) {
	return f.tools, nil
}

func (f *fakeBackend) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	f.lastCall.name = name
	f.lastCall.args = args
	return mcp.TextResult("done"), nil
}

func (f *fakeBackend) Forward(_ context.Context, method string, _ json.RawMessage) (json.RawMessage, error) {
	if method == "ping" {
		return json.RawMessage(`{}`), nil
	}
	return nil, fmt.Errorf("unsupported method %s", method)
}

func (f *fakeBackend) Notify(_ context.Context, _ string, _ json.RawMessage) error { return nil }

func (f *fakeBackend) Close() error { return nil }

// client drives one server over in-memory pipes, acting as the MCP client.
type client struct {
	t   *testing.T
	in  io.WriteCloser
	out *bufio.Reader

	srv  *Server
	done chan error
}

func startServer(t *testing.T, backend *fakeBackend) *client {
	t.Helper()

	reg, err := handler.NewRegistry([]*handler.Spec{
		handler.NewSpec("send_mail").
			ElicitParam("to", handler.String, "Recipient address"),
	})
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := proxy.NewProxy(backend, []proxy.Stage{elicit.NewStage(reg, nil, logger)}, logger)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	srv := New(p, backend, "test-session", inR, outW, nil, logger)

	c := &client{
		t:    t,
		in:   inW,
		out:  bufio.NewReader(outR),
		srv:  srv,
		done: make(chan error, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { c.done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		inW.Close()
		select {
		case <-c.done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return c
}

func (c *client) send(line string) {
	c.t.Helper()
	if _, err := io.WriteString(c.in, line+"\n"); err != nil {
		c.t.Fatalf("write to server: %v", err)
	}
}

// recv reads one server-to-client message.
func (c *client) recv() map[string]json.RawMessage {
	c.t.Helper()
	line, err := c.out.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read from server: %v", err)
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		c.t.Fatalf("server wrote malformed JSON %q: %v", line, err)
	}
	return msg
}

func (c *client) initialize(caps string) {
	c.t.Helper()
	c.send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":` + caps + `,"clientInfo":{"name":"test","version":"0"}}}`)
	resp := c.recv()
	if string(resp["id"]) != "1" {
		c.t.Fatalf("initialize response id = %s", resp["id"])
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(resp["result"], &result); err != nil {
		c.t.Fatalf("initialize result does not parse: %v", err)
	}
	if result.ServerInfo.Name != "wags-gate" {
		c.t.Errorf("serverInfo.name = %q", result.ServerInfo.Name)
	}
	if result.Capabilities.Tools == nil || !result.Capabilities.Tools.ListChanged {
		c.t.Error("gateway must advertise tools.listChanged")
	}
	c.send(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{tools: []mcp.Tool{{Name: "send_mail"}, {Name: "list_mail"}}}
	c := startServer(t, backend)
	c.initialize(`{}`)

	c.send(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	resp := c.recv()
	if string(resp["id"]) != "2" {
		t.Fatalf("response id = %s", resp["id"])
	}
	var result mcp.ListToolsResult
	if err := json.Unmarshal(resp["result"], &result); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if len(result.Tools) != 2 {
		t.Errorf("tools = %+v", result.Tools)
	}
}

func TestServer_ElicitationRoundTrip(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	c := startServer(t, backend)
	c.initialize(`{"elicitation":{}}`)

	// The call stalls on an elicitation request flowing back to us.
	c.send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"send_mail","arguments":{}}}`)

	elicitReq := c.recv()
	if string(elicitReq["method"]) != `"elicitation/create"` {
		t.Fatalf("expected elicitation/create, got %s", elicitReq["method"])
	}
	var params mcp.ElicitParams
	if err := json.Unmarshal(elicitReq["params"], &params); err != nil {
		t.Fatalf("elicitation params do not parse: %v", err)
	}
	if params.Message != "Please provide the required information" {
		t.Errorf("message = %q", params.Message)
	}

	c.send(`{"jsonrpc":"2.0","id":` + string(elicitReq["id"]) +
		`,"result":{"action":"accept","content":{"to":"alice@example.com"}}}`)

	resp := c.recv()
	if string(resp["id"]) != "2" {
		t.Fatalf("final response id = %s", resp["id"])
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(resp["result"], &result); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if result.IsError {
		t.Fatalf("call failed: %+v", result.Content)
	}
	if backend.lastCall.args["to"] != "alice@example.com" {
		t.Errorf("backend args = %v, want accepted value merged", backend.lastCall.args)
	}
}

func TestServer_DeclineSurfacesInBand(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	c := startServer(t, backend)
	c.initialize(`{"elicitation":{}}`)

	c.send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"send_mail","arguments":{}}}`)
	elicitReq := c.recv()
	c.send(`{"jsonrpc":"2.0","id":` + string(elicitReq["id"]) + `,"result":{"action":"decline"}}`)

	resp := c.recv()
	if _, isErr := resp["error"]; isErr {
		t.Fatal("policy denial surfaced as JSON-RPC error, want in-band tool error")
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(resp["result"], &result); err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	if !result.IsError {
		t.Error("IsError not set on declined call")
	}
	if !strings.Contains(result.Content[0].Text, "elicitation was declined") {
		t.Errorf("text = %q", result.Content[0].Text)
	}
	if backend.lastCall.name != "" {
		t.Error("backend was called despite decline")
	}
}

func TestServer_ForwardsUnknownMethods(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	c := startServer(t, backend)
	c.initialize(`{}`)

	c.send(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	resp := c.recv()
	if string(resp["id"]) != "2" {
		t.Fatalf("response id = %s", resp["id"])
	}
	if string(resp["result"]) != `{}` {
		t.Errorf("result = %s", resp["result"])
	}
}

func TestServer_MalformedLine(t *testing.T) {
	t.Parallel()

	c := startServer(t, &fakeBackend{})
	c.send(`{not json`)
	resp := c.recv()
	var rpcErr struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(resp["error"], &rpcErr); err != nil {
		t.Fatalf("error does not parse: %v", err)
	}
	if rpcErr.Code != mcp.ErrCodeInvalidRequest {
		t.Errorf("code = %d, want %d", rpcErr.Code, mcp.ErrCodeInvalidRequest)
	}
	if string(resp["id"]) != "null" {
		t.Errorf("id = %s, want null", resp["id"])
	}
}
