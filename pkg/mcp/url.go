package mcp

import "strings"

// NormalizeURL derives the JSON-RPC endpoint from a configured base URL.
// Whitespace and trailing slashes are trimmed; bases ending in /mcp or
// /api/server are used as-is, anything else gets /mcp appended.
func NormalizeURL(base string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	if trimmed == "" {
		return "", &ToolError{Kind: KindConfig, Code: CodeConfig, Message: "MCP_SERVER_URL is not set"}
	}
	if strings.HasSuffix(trimmed, "/mcp") || strings.HasSuffix(trimmed, "/api/server") {
		return trimmed, nil
	}
	return trimmed + "/mcp", nil
}
