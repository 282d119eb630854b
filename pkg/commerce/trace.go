package commerce

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/worldofchami/ucpchat/pkg/mcp"
	"github.com/worldofchami/ucpchat/pkg/models"
)

// PreviewLimit caps trace previews, in characters.
const PreviewLimit = 180

// FallbackTool names the synthetic trace entry written when an unexpected
// failure escapes the orchestrators.
const FallbackTool = "commerce_fallback"

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// ToolCaller invokes a named tool. *mcp.Client satisfies it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

// Recorder accumulates one trace entry per tool invocation made while
// producing a single reply.
type Recorder struct {
	mu      sync.Mutex
	entries []models.ToolTraceEntry
	now     func() time.Time
}

func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Call invokes tool through caller and records the outcome.
func (r *Recorder) Call(ctx context.Context, caller ToolCaller, tool string, args map[string]any) (json.RawMessage, error) {
	start := r.now()
	raw, err := caller.CallTool(ctx, tool, args)
	elapsed := r.now().Sub(start)

	entry := models.ToolTraceEntry{
		Tool:         tool,
		OK:           err == nil,
		DurationMs:   elapsed.Milliseconds(),
		InputPreview: Preview(args),
		At:           start.UTC().Format(isoMillis),
	}
	if err != nil {
		entry.OutputPreview = Preview(mcp.FormatError(err))
	} else {
		entry.OutputPreview = Preview(string(raw))
	}
	r.append(entry)
	return raw, err
}

// RecordFailure appends a failed entry that is not tied to a tool call.
func (r *Recorder) RecordFailure(tool string, input any, err error) {
	r.append(models.ToolTraceEntry{
		Tool:          tool,
		OK:            false,
		InputPreview:  Preview(input),
		OutputPreview: Preview(mcp.FormatError(err)),
		At:            r.now().UTC().Format(isoMillis),
	})
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []models.ToolTraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	out := make([]models.ToolTraceEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Recorder) append(e models.ToolTraceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Preview renders v for a trace: strings verbatim, anything else as JSON,
// truncated to PreviewLimit characters.
func Preview(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case nil:
		s = ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		s = string(b)
	}
	return truncate(s, PreviewLimit)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
