package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// EncodeMessage serializes a JSON-RPC message to its wire format.
// This delegates to the MCP SDK's jsonrpc package.
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// DecodeMessage deserializes JSON-RPC wire format data into a Message.
// It returns either a *jsonrpc.Request or *jsonrpc.Response based on the
// message content. This delegates to the MCP SDK's jsonrpc package.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	return jsonrpc.DecodeMessage(data)
}

// NewRequest builds a JSON-RPC request with a numeric ID.
func NewRequest(id int64, method string, params any) (*jsonrpc.Request, error) {
	rpcID, err := jsonrpc.MakeID(float64(id))
	if err != nil {
		return nil, fmt.Errorf("make request id: %w", err)
	}
	req := &jsonrpc.Request{ID: rpcID, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}
		req.Params = data
	}
	return req, nil
}

// NewNotificationBytes builds the wire bytes of a JSON-RPC notification
// (a request without an ID). Built by hand so the id field is guaranteed
// absent regardless of codec behavior for zero IDs.
func NewNotificationBytes(method string, params any) ([]byte, error) {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	return json.Marshal(msg)
}

// NewResponseBytes builds the wire bytes of a successful JSON-RPC response.
// The ID is echoed verbatim so the original format (number or string) is
// preserved.
func NewResponseBytes(id json.RawMessage, result any) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal response result: %w", err)
	}
	msg := map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"result":  data,
	}
	return json.Marshal(msg)
}

// JSON-RPC error codes used by the gateway.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// NewErrorResponseBytes builds the wire bytes of a JSON-RPC error response.
// The ID is echoed verbatim; a nil ID becomes JSON null.
func NewErrorResponseBytes(id json.RawMessage, code int, message string) ([]byte, error) {
	if id == nil {
		id = json.RawMessage("null")
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	return json.Marshal(msg)
}
