// Package mcp is a JSON-RPC 2.0 client for MCP tool servers. Responses may
// arrive as plain JSON or as a Server-Sent-Events stream.
package mcp

import "encoding/json"

const (
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is expected to be set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a response. Code is kept raw because some
// servers send strings instead of numeric codes.
type RPCError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// CallToolParams are the params of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ContentItem matches MCP "content" items returned from tools/call.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Tool describes one entry of a tools/list result.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// wellFormed reports whether the envelope is JSON-RPC 2.0 and carries a
// result or an error.
func (r *Response) wellFormed() bool {
	if r == nil || r.JSONRPC != "2.0" {
		return false
	}
	return len(r.Result) > 0 || r.Error != nil
}
