package commerce

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// UnwrapToolResult decodes a tools/call result. When the result is MCP
// content (an object with a "content" array, or the bare array), the first
// "text" block holding valid JSON is decoded instead. Anything else is
// returned as decoded from raw. Numbers decode as json.Number so large ids
// keep every digit.
func UnwrapToolResult(raw json.RawMessage) any {
	decoded, err := decodeJSON(raw)
	if err != nil {
		return string(raw)
	}

	var blocks []any
	switch t := decoded.(type) {
	case map[string]any:
		blocks, _ = t["content"].([]any)
	case []any:
		blocks = t
	}

	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok || block["type"] != "text" {
			continue
		}
		text, ok := block["text"].(string)
		if !ok {
			continue
		}
		if inner, err := decodeJSON([]byte(strings.TrimSpace(text))); err == nil {
			return inner
		}
	}
	return decoded
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// lookup walks a dotted path through nested objects.
func lookup(v any, path string) (any, bool) {
	cur := v
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
