package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single JSON-RPC call.
const DefaultTimeout = 12 * time.Second

const bodyPreviewLimit = 200

// Client sends JSON-RPC requests to a tool server. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	BaseURL   string
	HTTP      *http.Client
	Timeout   time.Duration
	UserAgent string
	Logger    zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.HTTP = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.UserAgent = ua
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.Logger = l
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:   baseURL,
		HTTP:      &http.Client{},
		Timeout:   DefaultTimeout,
		UserAgent: "ucpchat/0.1.0",
		Logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// ListTools calls tools/list.
func (c *Client) ListTools(ctx context.Context) (*ListToolsResult, error) {
	raw, err := c.Call(ctx, MethodListTools, map[string]any{})
	if err != nil {
		return nil, err
	}
	var out ListToolsResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ToolError{Kind: KindParse, Code: CodeParse, Message: "Invalid tools/list result"}
	}
	return &out, nil
}

// CallTool calls tools/call for the named tool and returns the raw result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	return c.Call(ctx, MethodCallTool, CallToolParams{Name: name, Arguments: args})
}

// Call performs one JSON-RPC request and returns its result. Every failure
// is returned as a *ToolError.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	endpoint, err := NormalizeURL(c.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, &ToolError{Kind: KindNetwork, Code: CodeNetwork, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &ToolError{Kind: KindNetwork, Code: CodeNetwork, Message: "Failed to reach MCP server"}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("User-Agent", c.UserAgent)

	start := time.Now()
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, method, err)
	}

	contentType := resp.Header.Get("Content-Type")
	rpc, err := decodeResponse(contentType, body)
	if err != nil {
		c.Logger.Warn().
			Str("method", method).
			Int("status", resp.StatusCode).
			Str("content_type", contentType).
			Msg("mcp_parse_failed")
		return nil, &ToolError{
			Kind:    KindParse,
			Code:    CodeParse,
			Message: "Invalid JSON-RPC response",
			Data: ParseErrorData{
				Status:      resp.StatusCode,
				ContentType: contentType,
				URL:         endpoint,
				BodyPreview: preview(body, bodyPreviewLimit),
			},
		}
	}

	c.Logger.Debug().
		Str("method", method).
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("mcp_call_completed")

	if rpc.Error != nil {
		return nil, applicationError(rpc.Error)
	}
	return rpc.Result, nil
}

func (c *Client) transportError(ctx context.Context, method string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		c.Logger.Warn().Str("method", method).Msg("mcp_call_timeout")
		return &ToolError{Kind: KindTimeout, Code: CodeTimeout, Message: "MCP request timed out"}
	}
	c.Logger.Warn().Str("method", method).Err(err).Msg("mcp_call_failed")
	return &ToolError{Kind: KindNetwork, Code: CodeNetwork, Message: "Failed to reach MCP server"}
}

// decodeResponse picks a parse strategy by content type. Unlabeled bodies
// are tried as JSON first and then as an event stream.
func decodeResponse(contentType string, body []byte) (*Response, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/event-stream"):
		return parseSSE(body)
	case strings.Contains(ct, "application/json"):
		return parseJSON(body)
	default:
		if resp, err := parseJSON(body); err == nil {
			return resp, nil
		}
		return parseSSE(body)
	}
}

func preview(b []byte, max int) string {
	s := string(b)
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}
