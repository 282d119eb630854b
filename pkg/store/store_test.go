package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldofchami/ucpchat/pkg/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func openTest(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s, err := Open(filepath.Join(t.TempDir(), "chat.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func addMessage(t *testing.T, s *Store, convID, role, content string, meta models.Meta) *models.Message {
	t.Helper()
	msg := &models.Message{ConversationID: convID, Role: role, Content: content}
	require.NoError(t, msg.SetMeta(meta))
	require.NoError(t, s.AddMessage(context.Background(), msg))
	return msg
}

func TestConversationLifecycle(t *testing.T) {
	s, clock := openTest(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTitle, conv.Title)
	assert.Equal(t, "commerce", conv.AgentID)
	assert.Len(t, conv.ID, 36)

	clock.Advance(time.Second)
	addMessage(t, s, conv.ID, models.RoleUser, "hello", models.Meta{})
	clock.Advance(time.Second)
	addMessage(t, s, conv.ID, models.RoleAssistant, "hi", models.Meta{AgentID: "commerce"})

	require.NoError(t, s.UpdateConversationTitle(ctx, conv.ID, "hello"))

	got, err := s.GetConversationWithMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, models.RoleUser, got.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, got.Messages[1].Role)

	meta, err := got.Messages[1].Meta()
	require.NoError(t, err)
	assert.Equal(t, "commerce", meta.AgentID)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	_, err = s.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "messages cascade with their conversation")

	assert.ErrorIs(t, s.DeleteConversation(ctx, conv.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateConversationTitle(ctx, conv.ID, "x"), ErrNotFound)
}

func TestListConversationsNewestFirst(t *testing.T) {
	s, clock := openTest(t)
	ctx := context.Background()

	first, err := s.CreateConversation(ctx, "first", "general")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := s.CreateConversation(ctx, "second", "general")
	require.NoError(t, err)
	addMessage(t, s, first.ID, models.RoleUser, "a", models.Meta{})

	convs, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.Equal(t, first.ID, convs[1].ID)
	assert.Len(t, convs[1].Messages, 1)

	n, err := s.DeleteAllConversations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	convs, err = s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestLatestAssistantMessageWithKey(t *testing.T) {
	s, clock := openTest(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)

	_, err = s.LatestAssistantMessageWithKey(ctx, conv.ID, models.MetaKeyLastSearchResults)
	assert.ErrorIs(t, err, ErrNotFound)

	older := addMessage(t, s, conv.ID, models.RoleAssistant, "old", models.Meta{
		LastSearchResults: []models.NormalizedSearchItem{{Title: "A", Price: "1", VariantID: "a"}},
	})
	clock.Advance(time.Second)
	newer := addMessage(t, s, conv.ID, models.RoleAssistant, "new", models.Meta{
		LastSearchResults: []models.NormalizedSearchItem{{Title: "B", Price: "2", VariantID: "b"}},
	})
	clock.Advance(time.Second)
	addMessage(t, s, conv.ID, models.RoleAssistant, "no cache", models.Meta{Kind: "help"})
	addMessage(t, s, conv.ID, models.RoleUser, "user", models.Meta{})

	got, err := s.LatestAssistantMessageWithKey(ctx, conv.ID, models.MetaKeyLastSearchResults)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.NotEqual(t, older.ID, got.ID)

	other, err := s.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)
	_, err = s.LatestAssistantMessageWithKey(ctx, other.ID, models.MetaKeyLastSearchResults)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountAssistantMessages(t *testing.T) {
	s, clock := openTest(t)
	ctx := context.Background()
	a, err := s.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)
	b, err := s.CreateConversation(ctx, "", "commerce")
	require.NoError(t, err)

	addMessage(t, s, a.ID, models.RoleAssistant, "1", models.Meta{IPHash: "ip1"})
	clock.Advance(2 * time.Minute)
	addMessage(t, s, a.ID, models.RoleAssistant, "2", models.Meta{IPHash: "ip1", ToolTrace: []models.ToolTraceEntry{{Tool: "t"}}})
	addMessage(t, s, b.ID, models.RoleAssistant, "3", models.Meta{IPHash: "ip1"})
	addMessage(t, s, b.ID, models.RoleAssistant, "4", models.Meta{IPHash: "ip2", ToolTrace: []models.ToolTraceEntry{{Tool: "t"}}})
	addMessage(t, s, b.ID, models.RoleUser, "5", models.Meta{IPHash: "ip1"})

	now := clock.Now()
	tests := []struct {
		name   string
		filter CountFilter
		want   int64
	}{
		{"ip in last minute", CountFilter{Since: now.Add(-time.Minute), IPHash: "ip1"}, 2},
		{"ip in last day", CountFilter{Since: now.Add(-24 * time.Hour), IPHash: "ip1"}, 3},
		{"ip in conversation", CountFilter{Since: now.Add(-24 * time.Hour), IPHash: "ip1", ConversationID: b.ID}, 1},
		{"traces in conversation", CountFilter{ConversationID: b.ID, WithToolTrace: true}, 1},
		{"all assistant", CountFilter{}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.CountAssistantMessages(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestConversationForPhone(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()

	first, err := s.ConversationForPhone(ctx, "+15550100", "commerce")
	require.NoError(t, err)
	assert.Equal(t, "+15550100", first.PhoneNumber)
	assert.Equal(t, "commerce", first.AgentID)

	again, err := s.ConversationForPhone(ctx, "+15550100", "general")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := s.ConversationForPhone(ctx, "+15550199", "commerce")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestPruneAndStats(t *testing.T) {
	s, clock := openTest(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Conversations)
	assert.Nil(t, st.OldestConversation)

	var ids []string
	for i := 0; i < 4; i++ {
		c, err := s.CreateConversation(ctx, "", "general")
		require.NoError(t, err)
		addMessage(t, s, c.ID, models.RoleUser, "hi", models.Meta{})
		ids = append(ids, c.ID)
		clock.Advance(24 * time.Hour)
	}

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, st.Conversations)
	assert.EqualValues(t, 4, st.Messages)
	require.NotNil(t, st.OldestConversation)
	assert.True(t, st.OldestConversation.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	n, err := s.PruneOlderThan(ctx, clock.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.PruneExcess(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	convs, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, ids[3], convs[0].ID)
	assert.Equal(t, ids[2], convs[1].ID)

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Messages)
	require.NoError(t, s.Ping(ctx))
}
