package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var errNoSSEPayload = errors.New("no JSON-RPC payload found in SSE stream")

// parseSSE scans every data: line of an event stream and returns the last
// payload that decodes into a well-formed JSON-RPC envelope. Empty, [DONE]
// and malformed payloads are skipped.
func parseSSE(body []byte) (*Response, error) {
	var last *Response

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var candidate Response
		if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
			continue
		}
		if candidate.wellFormed() {
			last = &candidate
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errNoSSEPayload
	}
	return last, nil
}

// parseJSON decodes a plain JSON-RPC body.
func parseJSON(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 && resp.Error == nil {
		return nil, errors.New("JSON-RPC response has neither result nor error")
	}
	return &resp, nil
}
