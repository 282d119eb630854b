package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/worldofchami/ucpchat/pkg/models"
)

// MaxSearchItems is the most items kept from one search.
const MaxSearchItems = 5

// NoPrice is shown when a product carries no usable price.
const NoPrice = "—"

// search runs the search tool and builds the reply. Tool failures become a
// tools-unavailable reply; they never escape.
func (e *Engine) search(ctx context.Context, rec *Recorder, cmd *SearchCommand) Reply {
	query := NormalizeQuery(cmd.Query)
	if query == "" {
		query = strings.TrimSpace(cmd.Query)
	}

	limit := e.cfg.SearchLimit
	if limit <= 0 || limit > MaxSearchItems {
		limit = MaxSearchItems
	}

	raw, err := rec.Call(ctx, e.tools, e.cfg.SearchTool, map[string]any{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		e.logger.Warn().
			Str("tool", e.cfg.SearchTool).
			Str("error", redactToolError(err)).
			Msg("commerce_search_failed")
		return Reply{Kind: KindToolsUnavailable, Content: MsgToolsUnavailable}
	}

	items := NormalizeProducts(UnwrapToolResult(raw))
	if len(items) == 0 {
		return Reply{Kind: KindNoMatches, Content: fmt.Sprintf(MsgNoMatches, query)}
	}

	reply := Reply{Kind: KindSearchResults, Content: FormatListing(query, items)}
	reply.Meta.LastSearchResults = items
	return reply
}

// NormalizeProducts converts a search payload of unknown shape into at most
// MaxSearchItems canonical items.
func NormalizeProducts(payload any) []models.NormalizedSearchItem {
	products := productList(payload)
	if len(products) > MaxSearchItems {
		products = products[:MaxSearchItems]
	}

	items := make([]models.NormalizedSearchItem, 0, len(products))
	for i, p := range products {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, normalizeProduct(m, i))
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

func productList(payload any) []any {
	if arr, ok := payload.([]any); ok {
		return arr
	}
	for _, path := range []string{"products", "result.products", "offers"} {
		if v, ok := lookup(payload, path); ok {
			if arr, ok := v.([]any); ok {
				return arr
			}
		}
	}
	return nil
}

func normalizeProduct(p map[string]any, i int) models.NormalizedSearchItem {
	item := models.NormalizedSearchItem{
		Title: stringField(p, "title", "name"),
	}
	if item.Title == "" {
		item.Title = fmt.Sprintf("Item %d", i+1)
	}

	variant := firstVariant(p)

	item.Price = priceString(variant["price"])
	if item.Price == "" {
		item.Price = priceString(p["price"])
	}
	if item.Price == "" {
		item.Price = NoPrice
	}

	item.VariantID = stringField(variant, "id", "variantId")
	if item.VariantID == "" {
		item.VariantID = stringField(p, "variantId", "id")
	}
	if item.VariantID == "" {
		item.VariantID = fmt.Sprintf("variant-%d", i+1)
	}

	item.Available = availability(variant)
	if item.Available == nil {
		item.Available = availability(p)
	}
	return item
}

func firstVariant(p map[string]any) map[string]any {
	var list []any
	switch v := p["variants"].(type) {
	case []any:
		list = v
	case map[string]any:
		// GraphQL connection shape: {"nodes": [...]} or {"edges": [{"node": ...}]}.
		if nodes, ok := v["nodes"].([]any); ok {
			list = nodes
		} else if edges, ok := v["edges"].([]any); ok && len(edges) > 0 {
			if edge, ok := edges[0].(map[string]any); ok {
				list = []any{edge["node"]}
			}
		}
	}
	if len(list) == 0 {
		return map[string]any{}
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return first
}

func priceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		return priceString(t["amount"])
	}
	return ""
}

func quantity(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		q, err := t.Float64()
		return q, err == nil
	case float64:
		return t, true
	}
	return 0, false
}

func availability(m map[string]any) *bool {
	for _, k := range []string{"inventory_quantity", "inventoryQuantity"} {
		if q, ok := quantity(m[k]); ok {
			avail := q > 0
			return &avail
		}
	}
	for _, k := range []string{"available", "availableForSale"} {
		if b, ok := m[k].(bool); ok {
			return &b
		}
	}
	return nil
}

// FormatListing renders numbered search results followed by a checkout hint.
func FormatListing(query string, items []models.NormalizedSearchItem) string {
	return ListItems(query, items) + "\n\nReply \"checkout <number>\" to buy one, for example \"checkout 1 qty 2\"."
}

// ListItems renders numbered search results.
func ListItems(query string, items []models.NormalizedSearchItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what I found for %q:\n", query)
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s — $%s", i+1, it.Title, it.Price)
		if it.Available != nil {
			if *it.Available {
				b.WriteString(" — in stock")
			} else {
				b.WriteString(" — out of stock")
			}
		}
	}
	return b.String()
}
