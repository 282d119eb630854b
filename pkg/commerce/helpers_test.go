package commerce

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/worldofchami/ucpchat/pkg/mcp"
	"github.com/worldofchami/ucpchat/pkg/mcp/mcptest"
	"github.com/worldofchami/ucpchat/pkg/models"
	"github.com/worldofchami/ucpchat/pkg/store"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	t      *testing.T
	clock  *testClock
	store  *store.Store
	fake   *mcptest.Server
	engine *Engine
	conv   string
}

func testConfig() Config {
	return Config{
		Enabled:      true,
		SearchTool:   "search_products",
		CheckoutTool: "create_checkout_session",
		SearchLimit:  5,
		Limits:       Profiles["lenient"],
		LinkStyle:    LinkMarkdown,
		ParamStyle:   ParamsItem,
	}
}

func newHarness(t *testing.T, cfg Config, opts ...EngineOption) *harness {
	t.Helper()
	clock := newTestClock()

	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fake := mcptest.NewServer()
	srv := fake.Start()
	t.Cleanup(srv.Close)

	conv, err := st.CreateConversation(context.Background(), "", "commerce")
	require.NoError(t, err)

	opts = append([]EngineOption{WithClock(clock.Now)}, opts...)
	client := mcp.NewClient(srv.URL, mcp.WithTimeout(2*time.Second))
	return &harness{
		t:      t,
		clock:  clock,
		store:  st,
		fake:   fake,
		engine: NewEngine(cfg, client, st, opts...),
		conv:   conv.ID,
	}
}

// send runs text through the engine and persists the reply the way the chat
// service does.
func (h *harness) send(text string) Reply {
	return h.sendFrom("ip-hash-1", text)
}

func (h *harness) sendFrom(ipHash, text string) Reply {
	h.t.Helper()
	ctx := context.Background()
	h.clock.Advance(time.Second)

	user := &models.Message{ConversationID: h.conv, Role: models.RoleUser, Content: text}
	require.NoError(h.t, h.store.AddMessage(ctx, user))

	reply := h.engine.Reply(ctx, Request{ConversationID: h.conv, Text: text, IPHash: ipHash})

	msg := &models.Message{ConversationID: h.conv, Role: models.RoleAssistant, Content: reply.Content}
	require.NoError(h.t, msg.SetMeta(reply.Meta))
	require.NoError(h.t, h.store.AddMessage(ctx, msg))
	return reply
}

func hoodieCatalog(context.Context, map[string]any) (any, error) {
	return mcptest.TextResult(map[string]any{
		"products": []any{
			map[string]any{
				"title":    "Classic Hoodie",
				"variants": []any{map[string]any{"id": "v-classic", "price": "49.00", "inventory_quantity": 4}},
			},
			map[string]any{
				"title": "Zip Hoodie",
				"id":    "v-zip",
				"price": map[string]any{"amount": "59.00", "currencyCode": "USD"},
			},
		},
	}), nil
}

func threeItemCatalog(context.Context, map[string]any) (any, error) {
	return map[string]any{"products": []any{
		map[string]any{"title": "A", "price": "1"},
		map[string]any{"title": "B", "price": "2"},
		map[string]any{"title": "C", "price": "3"},
	}}, nil
}

func checkoutAt(url string) mcptest.ToolFunc {
	return func(context.Context, map[string]any) (any, error) {
		return map[string]any{"url": url, "id": "cs_test_1"}, nil
	}
}
