// Package mcptest provides an in-process MCP tool server for tests and local
// development. Tools are plain functions; responses can be framed as JSON,
// as an event stream, or without a content type.
package mcptest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
)

// Mode selects how responses are framed.
type Mode int

const (
	ModeJSON Mode = iota
	ModeSSE
	ModeUnlabeled
)

// ToolFunc handles one tools/call. Returning a *RPCError sends that error
// back verbatim; any other error becomes a -32000 "Tool execution error".
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// RPCError lets a ToolFunc choose the error code sent back.
type RPCError struct {
	Code    any
	Message string
	Data    any
}

func (e *RPCError) Error() string { return e.Message }

// Call is a recorded tools/call.
type Call struct {
	Tool      string
	Arguments map[string]any
}

// Server is an MCP tool server backed by a map of ToolFuncs.
type Server struct {
	mu    sync.Mutex
	tools map[string]ToolFunc
	info  map[string]toolInfo
	mode  Mode
	calls []Call
}

type toolInfo struct {
	description string
	schema      map[string]any
}

func NewServer() *Server {
	return &Server{tools: make(map[string]ToolFunc), info: make(map[string]toolInfo)}
}

// Handle registers fn under name.
func (s *Server) Handle(name string, fn ToolFunc) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[name] = fn
	return s
}

// Describe sets the description and input schema tools/list reports for
// name. A nil schema is listed as a bare object.
func (s *Server) Describe(name, description string, schema map[string]any) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info[name] = toolInfo{description: description, schema: schema}
	return s
}

// SetMode switches response framing.
func (s *Server) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// Calls returns a copy of every tools/call received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many tools/call requests named tool was received.
func (s *Server) CallCount(tool string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Tool == tool {
			n++
		}
	}
	return n
}

// Start serves s on a loopback httptest server. The returned URL is the
// base; the endpoint lives at /mcp.
func (s *Server) Start() *httptest.Server {
	mux := http.NewServeMux()
	mux.Handle("/mcp", s)
	return httptest.NewServer(mux)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON-RPC request", http.StatusBadRequest)
		return
	}

	resp := s.handleDirect(r.Context(), req)

	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()

	b, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch mode {
	case ModeSSE:
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprintf(w, ": stream open\n\n")
		_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", b)
		_, _ = fmt.Fprintf(w, "data: [DONE]\n\n")
	case ModeUnlabeled:
		w.Header()["Content-Type"] = nil
		_, _ = w.Write(b)
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}
}

func (s *Server) handleDirect(ctx context.Context, req jsonrpcRequest) jsonrpcResponse {
	switch req.Method {
	case "initialize":
		return replyResult(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]any{"name": "mcptest", "version": "0.1.0"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return replyError(req.ID, -32601, "Method not found", map[string]any{"method": req.Method})
	}
}

func (s *Server) handleToolsList(req jsonrpcRequest) jsonrpcResponse {
	s.mu.Lock()
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	info := make(map[string]toolInfo, len(s.info))
	for name, ti := range s.info {
		info[name] = ti
	}
	s.mu.Unlock()
	sort.Strings(names)

	list := make([]map[string]any, 0, len(names))
	for _, name := range names {
		entry := map[string]any{"name": name, "inputSchema": map[string]any{"type": "object"}}
		if ti, ok := info[name]; ok {
			if ti.description != "" {
				entry["description"] = ti.description
			}
			if ti.schema != nil {
				entry["inputSchema"] = ti.schema
			}
		}
		list = append(list, entry)
	}
	return replyResult(req.ID, map[string]any{"tools": list})
}

func (s *Server) handleToolsCall(ctx context.Context, req jsonrpcRequest) jsonrpcResponse {
	var p toolsCallParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return replyError(req.ID, -32602, "Invalid params", err.Error())
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Tool: p.Name, Arguments: p.Arguments})
	fn, ok := s.tools[p.Name]
	s.mu.Unlock()

	if !ok {
		return replyError(req.ID, -32602, "Invalid params", map[string]any{
			"reason": "unknown tool",
			"name":   p.Name,
		})
	}

	result, err := fn(ctx, p.Arguments)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			return replyError(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		return replyError(req.ID, -32000, "Tool execution error", err.Error())
	}
	return replyResult(req.ID, result)
}

// TextResult wraps v as an MCP tool result whose single text block holds v
// encoded as JSON.
func TextResult(v any) map[string]any {
	b, _ := json.Marshal(v)
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(b)}},
	}
}

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    any             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func replyResult(id json.RawMessage, result any) jsonrpcResponse {
	return jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  mustMarshalRaw(result),
	}
}

func replyError(id json.RawMessage, code any, message string, data any) jsonrpcResponse {
	resp := jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &jsonrpcError{
			Code:    code,
			Message: message,
		},
	}
	if data != nil {
		resp.Error.Data = mustMarshalRaw(data)
	}
	return resp
}

func mustMarshalRaw(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		// Tool results are built by tests; failing to encode one is a bug there.
		panic(err)
	}
	return json.RawMessage(b)
}
