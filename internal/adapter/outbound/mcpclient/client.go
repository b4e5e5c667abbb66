package mcpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/chughtapan/wags-gate/internal/buildinfo"
	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

const (
	scannerInitBufSize = 256 * 1024
	scannerMaxBufSize  = 1024 * 1024
)

// ErrClosed is returned for calls made after the client shut down.
var ErrClosed = errors.New("upstream client closed")

// UpstreamError is a JSON-RPC error returned by the upstream server.
type UpstreamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
}

// wireMessage is the minimal shape needed to route an incoming line:
// requests and notifications carry a method, responses carry a result or
// error correlated by id.
type wireMessage struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *UpstreamError  `json:"error"`
}

type callResult struct {
	result json.RawMessage
	err    error
}

// Client is the stdio MCP client for the wrapped upstream server. It
// implements outbound.ToolBackend: a single subprocess, one write mutex,
// and a read loop that correlates responses to in-flight calls by id.
type Client struct {
	proc   *process
	logger *slog.Logger

	onNotification outbound.NotificationHandler

	writeMu sync.Mutex
	stdin   io.WriteCloser

	nextID atomic.Int64

	pendingMu sync.Mutex
	pending   map[string]chan callResult

	closed    chan struct{}
	closeOnce sync.Once

	serverInfo mcp.Implementation
}

// New creates a client for the given upstream command. The notification
// handler receives upstream notifications (tool list changes); it may be
// nil.
func New(command string, args []string, onNotification outbound.NotificationHandler, logger *slog.Logger) *Client {
	return &Client{
		proc:           newProcess(command, args...),
		logger:         logger,
		onNotification: onNotification,
		pending:        make(map[string]chan callResult),
		closed:         make(chan struct{}),
	}
}

var _ outbound.ToolBackend = (*Client)(nil)

// Start spawns the upstream subprocess, starts the read loop, and performs
// the MCP initialize handshake.
func (c *Client) Start(ctx context.Context) error {
	stdin, stdout, err := c.proc.start(ctx)
	if err != nil {
		return err
	}
	c.stdin = stdin

	go c.readLoop(stdout)

	initResult, err := c.call(ctx, mcp.MethodInitialize, &mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    mcp.ClientCapabilities{},
		ClientInfo: mcp.Implementation{
			Name:    "wags-gate",
			Version: buildinfo.Version,
		},
	})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize upstream: %w", err)
	}

	var init mcp.InitializeResult
	if err := json.Unmarshal(initResult, &init); err != nil {
		_ = c.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}
	c.serverInfo = init.ServerInfo

	if err := c.notify(mcp.NotificationInitialized, nil); err != nil {
		_ = c.Close()
		return fmt.Errorf("send initialized notification: %w", err)
	}

	c.logger.Info("upstream connected",
		"server", init.ServerInfo.Name,
		"version", init.ServerInfo.Version,
		"protocol", init.ProtocolVersion)
	return nil
}

// ServerInfo returns the upstream server's advertised implementation info.
// Only valid after Start.
func (c *Client) ServerInfo() mcp.Implementation {
	return c.serverInfo
}

// ListTools fetches the upstream tool listing.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	raw, err := c.call(ctx, mcp.MethodListTools, nil)
	if err != nil {
		return nil, err
	}
	var result mcp.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes an upstream tool.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	raw, err := c.call(ctx, mcp.MethodCallTool, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}
	result.Raw = raw
	return &result, nil
}

// Forward sends an arbitrary request upstream and returns the raw result.
// Used for methods the gateway passes through untouched.
func (c *Client) Forward(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	return c.call(ctx, method, params)
}

// Notify relays a client notification upstream.
func (c *Client) Notify(_ context.Context, method string, params json.RawMessage) error {
	if len(params) == 0 {
		return c.notify(method, nil)
	}
	return c.notify(method, params)
}

// Close shuts down the client and fails all in-flight calls.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.proc.close()
	})
	return err
}

// call sends a request and blocks for the correlated response.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	req, err := mcp.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	raw, err := mcp.EncodeMessage(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	key := fmt.Sprintf("%d", id)
	ch := make(chan callResult, 1)
	c.pendingMu.Lock()
	c.pending[key] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, key)
		c.pendingMu.Unlock()
	}()

	if err := c.write(raw); err != nil {
		return nil, fmt.Errorf("write %s request: %w", method, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

// notify sends a notification upstream (no response expected).
func (c *Client) notify(method string, params any) error {
	raw, err := mcp.NewNotificationBytes(method, params)
	if err != nil {
		return err
	}
	return c.write(raw)
}

func (c *Client) write(raw []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	_, err := fmt.Fprintf(c.stdin, "%s\n", raw)
	return err
}

// readLoop pumps upstream stdout: responses are routed to in-flight calls,
// notifications go to the handler, and server-initiated requests are
// rejected with method-not-found.
func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxBufSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Warn("malformed upstream message", "error", err)
			continue
		}

		switch {
		case msg.Method != "" && msg.ID == nil:
			c.handleNotification(msg.Method, msg.Params)
		case msg.Method != "":
			c.rejectRequest(msg.ID, msg.Method)
		default:
			c.routeResponse(&msg)
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-c.closed:
		default:
			c.logger.Error("upstream read failed", "error", err)
		}
	}
	c.failPending()
}

func (c *Client) handleNotification(method string, params json.RawMessage) {
	c.logger.Debug("upstream notification", "method", method)
	if c.onNotification != nil {
		c.onNotification(method, params)
	}
}

// rejectRequest answers an upstream-initiated request. The gateway never
// services upstream requests (sampling etc.), so the answer is always
// method-not-found rather than leaving the upstream hanging.
func (c *Client) rejectRequest(id json.RawMessage, method string) {
	c.logger.Warn("rejecting upstream request", "method", method)
	raw, err := mcp.NewErrorResponseBytes(id, mcp.ErrCodeMethodNotFound, fmt.Sprintf("method not supported: %s", method))
	if err != nil {
		return
	}
	if err := c.write(raw); err != nil {
		c.logger.Warn("failed to reject upstream request", "error", err)
	}
}

func (c *Client) routeResponse(msg *wireMessage) {
	if msg.ID == nil {
		c.logger.Warn("upstream response missing id")
		return
	}
	key := string(msg.ID)

	c.pendingMu.Lock()
	ch, ok := c.pending[key]
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Warn("upstream response with unknown id", "id", key)
		return
	}

	if msg.Error != nil {
		ch <- callResult{err: msg.Error}
		return
	}
	ch <- callResult{result: msg.Result}
}

// failPending unblocks all in-flight calls after the read loop exits.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for key, ch := range c.pending {
		select {
		case ch <- callResult{err: ErrClosed}:
		default:
		}
		delete(c.pending, key)
	}
}
