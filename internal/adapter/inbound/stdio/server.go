// Package stdio provides the inbound stdio transport: it serves the MCP
// client on stdin/stdout, dispatching intercepted methods through the proxy
// chain and relaying everything else to the upstream backend.
package stdio

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
	"github.com/chughtapan/wags-gate/internal/ctxkey"
	"github.com/chughtapan/wags-gate/internal/domain/proxy"
	"github.com/chughtapan/wags-gate/internal/metrics"
	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

const (
	scannerInitBufSize = 256 * 1024
	scannerMaxBufSize  = 1024 * 1024
)

// ErrClientGone is returned for gateway-to-client requests after the client
// connection closed.
var ErrClientGone = errors.New("client connection closed")

// ClientError is a JSON-RPC error the client returned for a
// gateway-initiated request (elicitation, roots listing).
type ClientError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Code, e.Message)
}

// wireMessage is the minimal routing shape for an incoming line.
type wireMessage struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *ClientError    `json:"error"`
}

func (m *wireMessage) isRequest() bool      { return m.Method != "" && m.ID != nil }
func (m *wireMessage) isNotification() bool { return m.Method != "" && m.ID == nil }

// Server serves one MCP client connection over a reader/writer pair
// (stdin/stdout in production). Requests are handled in goroutines so the
// read loop stays free to route the client's responses to gateway-initiated
// elicitation and roots requests.
type Server struct {
	proxy   *proxy.Proxy
	backend outbound.ToolBackend
	metrics *metrics.Metrics
	logger  *slog.Logger

	in  io.Reader
	out io.Writer

	writeMu sync.Mutex

	session *session

	nextID    atomic.Int64
	pendingMu sync.Mutex
	pending   map[string]chan *wireMessage

	closed    chan struct{}
	closeOnce sync.Once

	handlers sync.WaitGroup
}

// New creates a server for one client connection.
func New(p *proxy.Proxy, backend outbound.ToolBackend, sessionID string, in io.Reader, out io.Writer, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		proxy:   p,
		backend: backend,
		metrics: m,
		logger:  logger,
		in:      in,
		out:     out,
		pending: make(map[string]chan *wireMessage),
		closed:  make(chan struct{}),
	}
	s.session = &session{id: sessionID, srv: s}
	return s
}

// Session returns the client session backing this connection.
func (s *Server) Session() outbound.ClientSession {
	return s.session
}

// Run reads the client connection until EOF or context cancellation. It
// blocks; in-flight handlers are drained before returning.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxBufSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		raw := append([]byte(nil), scanner.Bytes()...)
		if len(raw) == 0 {
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("malformed client message", "error", err)
			s.writeError(nil, mcp.ErrCodeInvalidRequest, "invalid JSON-RPC message")
			continue
		}

		s.dispatch(ctx, &msg)
	}

	s.handlers.Wait()

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("client read failed: %w", err)
	}
	return ctx.Err()
}

// Close unblocks pending gateway-to-client requests. Safe to call multiple
// times.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.failPending()
	})
	return nil
}

// dispatch routes one decoded message. Initialize is answered inline so the
// handshake completes before anything else; intercepted requests run in
// goroutines. The session-enriched logger rides the context for the domain
// stages.
func (s *Server) dispatch(ctx context.Context, msg *wireMessage) {
	ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, s.logger.With("session", s.session.ID(), "method", msg.Method))
	switch {
	case msg.isRequest():
		s.dispatchRequest(ctx, msg)
	case msg.isNotification():
		s.dispatchNotification(ctx, msg)
	default:
		s.routeResponse(msg)
	}
}

func (s *Server) dispatchRequest(ctx context.Context, msg *wireMessage) {
	if msg.Method == mcp.MethodInitialize {
		s.handleInitialize(msg)
		return
	}

	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		switch msg.Method {
		case mcp.MethodListTools:
			s.handleListTools(ctx, msg)
		case mcp.MethodCallTool:
			s.handleCallTool(ctx, msg)
		default:
			s.handleForward(ctx, msg)
		}
	}()
}

func (s *Server) dispatchNotification(ctx context.Context, msg *wireMessage) {
	switch msg.Method {
	case mcp.NotificationInitialized:
		s.logger.Debug("client initialized", "session", s.session.ID())
	case mcp.NotificationRootsListChanged:
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.proxy.HandleNotification(ctx, s.session, msg.Method)
		}()
	default:
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			if err := s.backend.Notify(ctx, msg.Method, msg.Params); err != nil {
				s.logger.Warn("forward notification failed", "method", msg.Method, "error", err)
			}
		}()
	}
}

func (s *Server) handleInitialize(msg *wireMessage) {
	var params mcp.InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.writeError(msg.ID, mcp.ErrCodeInvalidParams, "invalid initialize params")
			return
		}
	}
	s.session.setCapabilities(params.Capabilities)

	s.logger.Info("client session started",
		"session", s.session.ID(),
		"client", params.ClientInfo.Name,
		"roots", params.Capabilities.Roots != nil,
		"elicitation", params.Capabilities.Elicitation != nil)

	s.writeResult(msg.ID, &mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: true},
		},
		ServerInfo: mcp.Implementation{
			Name:    "wags-gate",
			Version: buildinfo.Version,
		},
	})
}

func (s *Server) handleListTools(ctx context.Context, msg *wireMessage) {
	tools, err := s.proxy.ListTools(ctx, s.session)
	if err != nil {
		s.logger.Error("tools/list failed", "error", err)
		s.writeError(msg.ID, mcp.ErrCodeInternalError, "tool listing failed")
		return
	}
	s.writeResult(msg.ID, &mcp.ListToolsResult{Tools: tools})
}

// handleCallTool runs a tool call through the chain. Policy and tool
// failures surface as in-band tool errors (IsError results), not JSON-RPC
// errors, so the model sees the actionable message.
func (s *Server) handleCallTool(ctx context.Context, msg *wireMessage) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.writeError(msg.ID, mcp.ErrCodeInvalidParams, "invalid tools/call params")
		return
	}

	result, err := s.proxy.CallTool(ctx, s.session, params.Name, params.Arguments)
	if err != nil {
		s.metrics.RecordToolCall("denied")
		s.logger.Info("tool call rejected", "tool", params.Name, "error", err)
		s.writeResult(msg.ID, mcp.ErrorResult(err))
		return
	}

	if result.IsError {
		s.metrics.RecordToolCall("error")
	} else {
		s.metrics.RecordToolCall("ok")
	}

	// Preserve the upstream's exact result payload when available.
	if len(result.Raw) > 0 {
		s.writeRawResult(msg.ID, result.Raw)
		return
	}
	s.writeResult(msg.ID, result)
}

func (s *Server) handleForward(ctx context.Context, msg *wireMessage) {
	result, err := s.backend.Forward(ctx, msg.Method, msg.Params)
	if err != nil {
		s.logger.Warn("forward failed", "method", msg.Method, "error", err)
		s.writeError(msg.ID, mcp.ErrCodeInternalError, err.Error())
		return
	}
	s.writeRawResult(msg.ID, result)
}

// request sends a gateway-initiated request to the client (elicitation,
// roots listing) and blocks for its response.
func (s *Server) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	req, err := mcp.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	raw, err := mcp.EncodeMessage(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	key := fmt.Sprintf("%d", id)
	ch := make(chan *wireMessage, 1)
	s.pendingMu.Lock()
	s.pending[key] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, key)
		s.pendingMu.Unlock()
	}()

	if err := s.writeLine(raw); err != nil {
		return nil, fmt.Errorf("write %s request: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, ErrClientGone
	}
}

func (s *Server) routeResponse(msg *wireMessage) {
	if msg.ID == nil {
		s.logger.Warn("client response missing id")
		return
	}
	key := string(msg.ID)

	s.pendingMu.Lock()
	ch, ok := s.pending[key]
	s.pendingMu.Unlock()
	if !ok {
		s.logger.Warn("client response with unknown id", "id", key)
		return
	}
	ch <- msg
}

func (s *Server) failPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for key, ch := range s.pending {
		select {
		case ch <- &wireMessage{Error: &ClientError{Code: mcp.ErrCodeInternalError, Message: ErrClientGone.Error()}}:
		default:
		}
		delete(s.pending, key)
	}
}

// RelayNotification pushes an upstream notification through to the client
// verbatim.
func (s *Server) RelayNotification(method string, params json.RawMessage) error {
	var p any
	if len(params) > 0 {
		p = params
	}
	raw, err := mcp.NewNotificationBytes(method, p)
	if err != nil {
		return err
	}
	return s.writeLine(raw)
}

func (s *Server) notifyClient(method string) error {
	raw, err := mcp.NewNotificationBytes(method, nil)
	if err != nil {
		return err
	}
	return s.writeLine(raw)
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	raw, err := mcp.NewResponseBytes(id, result)
	if err != nil {
		s.logger.Error("encode response failed", "error", err)
		s.writeError(id, mcp.ErrCodeInternalError, "response encoding failed")
		return
	}
	if err := s.writeLine(raw); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeRawResult(id json.RawMessage, result json.RawMessage) {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	raw, err := mcp.NewResponseBytes(id, result)
	if err != nil {
		s.logger.Error("encode response failed", "error", err)
		return
	}
	if err := s.writeLine(raw); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	raw, err := mcp.NewErrorResponseBytes(id, code, message)
	if err != nil {
		s.logger.Error("encode error response failed", "error", err)
		return
	}
	if err := s.writeLine(raw); err != nil {
		s.logger.Error("write error response failed", "error", err)
	}
}

func (s *Server) writeLine(raw []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(raw); err != nil {
		return err
	}
	_, err := s.out.Write([]byte("\n"))
	return err
}
