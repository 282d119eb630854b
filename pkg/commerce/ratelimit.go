package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/worldofchami/ucpchat/pkg/store"
)

// Limits are the thresholds of the three rate-limit windows. A zero limit
// disables its window.
type Limits struct {
	PerMinute       int `yaml:"per_minute" validate:"gte=0"`
	PerDay          int `yaml:"per_day" validate:"gte=0"`
	PerConversation int `yaml:"per_conversation" validate:"gte=0"`
	// CountToolTraces makes the conversation window count every assistant
	// message in the conversation that carries a tool trace, whoever sent it.
	CountToolTraces bool `yaml:"count_tool_traces"`
}

// Profiles are the built-in named limit sets.
var Profiles = map[string]Limits{
	"lenient": {PerMinute: 15, PerDay: 200, PerConversation: 50},
	"strict":  {PerMinute: 5, PerDay: 20, PerConversation: 10, CountToolTraces: true},
}

// Window names the limit that denied a request.
type Window string

const (
	WindowMinute       Window = "ip_minute"
	WindowDay          Window = "ip_day"
	WindowConversation Window = "conversation_day"
)

// Counter counts assistant messages; *store.Store satisfies it.
type Counter interface {
	CountAssistantMessages(ctx context.Context, f store.CountFilter) (int64, error)
}

// RateLimiter enforces Limits against persisted assistant messages tagged
// with a caller's IP hash. It keeps no state of its own, so concurrent
// requests may both pass a check that serialized ones would not.
type RateLimiter struct {
	counter Counter
	limits  Limits
	now     func() time.Time
}

func NewRateLimiter(counter Counter, limits Limits, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{counter: counter, limits: limits, now: now}
}

// Allow reports whether another tool-backed reply may be produced. When it
// may not, the denying window is returned.
func (l *RateLimiter) Allow(ctx context.Context, ipHash, conversationID string) (bool, Window, error) {
	now := l.now()

	conversation := store.CountFilter{
		Since:          now.Add(-24 * time.Hour),
		ConversationID: conversationID,
		IPHash:         ipHash,
	}
	if l.limits.CountToolTraces {
		conversation.IPHash = ""
		conversation.WithToolTrace = true
	}

	checks := []struct {
		window Window
		limit  int
		filter store.CountFilter
	}{
		{WindowMinute, l.limits.PerMinute, store.CountFilter{Since: now.Add(-time.Minute), IPHash: ipHash}},
		{WindowDay, l.limits.PerDay, store.CountFilter{Since: now.Add(-24 * time.Hour), IPHash: ipHash}},
		{WindowConversation, l.limits.PerConversation, conversation},
	}
	for _, c := range checks {
		if c.limit <= 0 {
			continue
		}
		n, err := l.counter.CountAssistantMessages(ctx, c.filter)
		if err != nil {
			return false, "", fmt.Errorf("count %s window: %w", c.window, err)
		}
		if n >= int64(c.limit) {
			return false, c.window, nil
		}
	}
	return true, "", nil
}
