package stdio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chughtapan/wags-gate/internal/port/outbound"
	"github.com/chughtapan/wags-gate/pkg/mcp"
)

// session is the per-connection client channel handed to the interception
// chain. Capabilities are captured from the initialize handshake.
type session struct {
	id  string
	srv *Server

	mu   sync.RWMutex
	caps mcp.ClientCapabilities
}

var _ outbound.ClientSession = (*session)(nil)

func (s *session) ID() string {
	return s.id
}

func (s *session) Capabilities() mcp.ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

func (s *session) setCapabilities(caps mcp.ClientCapabilities) {
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()
}

// Elicit sends an elicitation/create request to the client and blocks for
// the user's response.
func (s *session) Elicit(ctx context.Context, params *mcp.ElicitParams) (*mcp.ElicitResult, error) {
	raw, err := s.srv.request(ctx, mcp.MethodElicit, params)
	if err != nil {
		return nil, err
	}
	var result mcp.ElicitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse elicitation result: %w", err)
	}
	return &result, nil
}

// ListRoots fetches the client's current roots.
func (s *session) ListRoots(ctx context.Context) (*mcp.ListRootsResult, error) {
	raw, err := s.srv.request(ctx, mcp.MethodListRoots, nil)
	if err != nil {
		return nil, err
	}
	var result mcp.ListRootsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse roots/list result: %w", err)
	}
	return &result, nil
}

// NotifyToolListChanged pushes a tools/list_changed notification to the
// client.
func (s *session) NotifyToolListChanged(_ context.Context) error {
	return s.srv.notifyClient(mcp.NotificationToolListChanged)
}
