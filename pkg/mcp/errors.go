package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Transport error codes. Application errors carry the code the tool server sent.
const (
	CodeConfig  = "CONFIG_ERROR"
	CodeTimeout = "TIMEOUT"
	CodeParse   = "RPC_PARSE_ERROR"
	CodeNetwork = "NETWORK_ERROR"
)

// ErrorKind classifies a ToolError.
type ErrorKind int

const (
	KindApplication ErrorKind = iota
	KindConfig
	KindTimeout
	KindParse
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindNetwork:
		return "network"
	default:
		return "application"
	}
}

// ToolError is the single error shape every transport and RPC failure is
// normalized into.
type ToolError struct {
	Kind    ErrorKind `json:"-"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return "tool error"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ParseErrorData is attached to RPC_PARSE_ERROR failures for diagnostics.
type ParseErrorData struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
	BodyPreview string `json:"bodyPreview"`
}

// AsToolError extracts a *ToolError from err.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsKind reports whether err is a ToolError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	te, ok := AsToolError(err)
	return ok && te.Kind == kind
}

// FormatError renders err as "CODE: message" for traces and logs.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	if te, ok := AsToolError(err); ok {
		return te.Error()
	}
	return err.Error()
}

func applicationError(rpcErr *RPCError) *ToolError {
	msg := rpcErr.Message
	if msg == "" {
		msg = "RPC error"
	}
	te := &ToolError{
		Kind:    KindApplication,
		Code:    rawCode(rpcErr.Code),
		Message: msg,
	}
	if len(rpcErr.Data) > 0 {
		var data any
		if err := json.Unmarshal(rpcErr.Data, &data); err == nil {
			te.Data = data
		}
	}
	return te
}

// rawCode renders a JSON-RPC error code without altering it: numbers keep
// their literal form, strings are unquoted.
func rawCode(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		return s
	}
	return trimmed
}
