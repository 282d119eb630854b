package commerce

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldofchami/ucpchat/pkg/models"
	"github.com/worldofchami/ucpchat/pkg/store"
)

func seedAssistant(t *testing.T, st *store.Store, convID string, meta models.Meta) {
	t.Helper()
	msg := &models.Message{ConversationID: convID, Role: models.RoleAssistant, Content: "x"}
	require.NoError(t, msg.SetMeta(meta))
	require.NoError(t, st.AddMessage(context.Background(), msg))
}

func TestRateLimiterWindows(t *testing.T) {
	clock := newTestClock()
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)
	other, err := st.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)

	limiter := NewRateLimiter(st, Limits{PerMinute: 2, PerDay: 3, PerConversation: 2}, clock.Now)

	allowed, _, err := limiter.Allow(ctx, "ip1", conv.ID)
	require.NoError(t, err)
	assert.True(t, allowed)

	seedAssistant(t, st, conv.ID, models.Meta{IPHash: "ip1"})
	seedAssistant(t, st, other.ID, models.Meta{IPHash: "ip1"})

	allowed, window, err := limiter.Allow(ctx, "ip1", other.ID)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, WindowMinute, window)

	allowed, _, err = limiter.Allow(ctx, "ip2", conv.ID)
	require.NoError(t, err)
	assert.True(t, allowed, "other callers are unaffected")

	clock.Advance(2 * time.Minute)
	allowed, _, err = limiter.Allow(ctx, "ip1", other.ID)
	require.NoError(t, err)
	assert.True(t, allowed, "minute window slides")

	seedAssistant(t, st, conv.ID, models.Meta{IPHash: "ip1"})
	clock.Advance(2 * time.Minute)

	allowed, window, err = limiter.Allow(ctx, "ip1", other.ID)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, WindowDay, window)

	clock.Advance(25 * time.Hour)
	allowed, _, err = limiter.Allow(ctx, "ip1", conv.ID)
	require.NoError(t, err)
	assert.True(t, allowed, "day window slides")
}

func TestRateLimiterConversationWindow(t *testing.T) {
	clock := newTestClock()
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	conv, err := st.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)

	seedAssistant(t, st, conv.ID, models.Meta{IPHash: "ip1"})
	seedAssistant(t, st, conv.ID, models.Meta{IPHash: "ip2", ToolTrace: []models.ToolTraceEntry{{Tool: "search_products"}}})

	lenient := NewRateLimiter(st, Limits{PerConversation: 2}, clock.Now)
	allowed, _, err := lenient.Allow(ctx, "ip1", conv.ID)
	require.NoError(t, err)
	assert.True(t, allowed, "only ip1's own replies count")

	seedAssistant(t, st, conv.ID, models.Meta{IPHash: "ip1"})
	allowed, window, err := lenient.Allow(ctx, "ip1", conv.ID)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, WindowConversation, window)

	strict := NewRateLimiter(st, Limits{PerConversation: 2, CountToolTraces: true}, clock.Now)
	allowed, _, err = strict.Allow(ctx, "ip3", conv.ID)
	require.NoError(t, err)
	assert.True(t, allowed, "one traced reply is under the limit")

	seedAssistant(t, st, conv.ID, models.Meta{ToolTrace: []models.ToolTraceEntry{{Tool: "create_checkout_session"}}})
	allowed, window, err = strict.Allow(ctx, "ip3", conv.ID)
	require.NoError(t, err)
	assert.False(t, allowed, "traced replies count regardless of caller")
	assert.Equal(t, WindowConversation, window)
}

type failingCounter struct{}

func (failingCounter) CountAssistantMessages(context.Context, store.CountFilter) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestRateLimiterPropagatesStoreErrors(t *testing.T) {
	_, _, err := NewRateLimiter(failingCounter{}, Profiles["strict"], nil).Allow(context.Background(), "ip", "c")
	assert.ErrorContains(t, err, "database is locked")
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, Limits{PerMinute: 15, PerDay: 200, PerConversation: 50}, Profiles["lenient"])
	assert.Equal(t, Limits{PerMinute: 5, PerDay: 20, PerConversation: 10, CountToolTraces: true}, Profiles["strict"])
}
