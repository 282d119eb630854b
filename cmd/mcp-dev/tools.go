package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/worldofchami/ucpchat/pkg/mcp/mcptest"
)

type variant struct {
	ID                string `json:"id"`
	Price             string `json:"price"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

type product struct {
	Title    string    `json:"title"`
	Tags     []string  `json:"-"`
	Variants []variant `json:"variants"`
}

var defaultCatalog = []product{
	{Title: "Classic Pullover Hoodie", Tags: []string{"hoodie", "hoodies", "sweatshirt"}, Variants: []variant{{ID: "gid://shopify/ProductVariant/1001", Price: "49.00", InventoryQuantity: 12}}},
	{Title: "Zip-Up Fleece Hoodie", Tags: []string{"hoodie", "hoodies", "fleece"}, Variants: []variant{{ID: "gid://shopify/ProductVariant/1002", Price: "64.00", InventoryQuantity: 0}}},
	{Title: "Organic Cotton Hoodie", Tags: []string{"hoodie", "hoodies", "organic", "cotton"}, Variants: []variant{{ID: "gid://shopify/ProductVariant/1003", Price: "72.50", InventoryQuantity: 4}}},
	{Title: "Everyday Crew T-Shirt", Tags: []string{"tee", "tees", "t-shirt", "shirt", "cotton"}, Variants: []variant{{ID: "gid://shopify/ProductVariant/2001", Price: "22.00", InventoryQuantity: 40}}},
	{Title: "Merino Beanie", Tags: []string{"hat", "beanie", "wool"}, Variants: []variant{{ID: "gid://shopify/ProductVariant/3001", Price: "28.00", InventoryQuantity: 9}}},
	{Title: "Canvas Tote Bag", Tags: []string{"bag", "tote", "canvas"}, Variants: []variant{{ID: "gid://shopify/ProductVariant/4001", Price: "18.00", InventoryQuantity: 25}}},
}

func newToolServer(catalog []product, checkoutBase string, sse bool, logger zerolog.Logger) *mcptest.Server {
	s := mcptest.NewServer().
		Handle("search_products", searchHandler(catalog, logger)).
		Describe("search_products", "Search the catalog by keyword.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer", "minimum": 1},
			},
			"required": []string{"query"},
		}).
		Handle("create_checkout_session", checkoutHandler(catalog, checkoutBase, logger)).
		Describe("create_checkout_session", "Create a Stripe test-mode checkout session for one line item.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"variantId": map[string]any{"type": "string"},
				"quantity":  map[string]any{"type": "integer", "minimum": 1},
				"items":     map[string]any{"type": "array"},
			},
		})
	if sse {
		s.SetMode(mcptest.ModeSSE)
	}
	return s
}

func searchHandler(catalog []product, logger zerolog.Logger) mcptest.ToolFunc {
	return func(_ context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		query = strings.ToLower(strings.TrimSpace(query))
		if query == "" {
			return nil, &mcptest.RPCError{Code: -32602, Message: "query is required"}
		}
		limit := 5
		if n, ok := args["limit"].(float64); ok && n >= 1 {
			limit = int(n)
		}

		var out []product
		for _, p := range catalog {
			if matches(p, query) {
				out = append(out, p)
			}
			if len(out) == limit {
				break
			}
		}
		logger.Info().Str("tool", "search_products").Int("results", len(out)).Msg("tool_call")
		return mcptest.TextResult(map[string]any{"products": out}), nil
	}
}

func matches(p product, query string) bool {
	title := strings.ToLower(p.Title)
	for _, word := range strings.Fields(query) {
		if strings.Contains(title, word) {
			return true
		}
		for _, tag := range p.Tags {
			if tag == word {
				return true
			}
		}
	}
	return false
}

// checkoutHandler accepts a flat line item, an items array, or an
// {item: {...}} wrapper.
func checkoutHandler(catalog []product, base string, logger zerolog.Logger) mcptest.ToolFunc {
	byVariant := make(map[string]product, len(catalog))
	for _, p := range catalog {
		for _, v := range p.Variants {
			byVariant[v.ID] = p
		}
	}
	return func(_ context.Context, args map[string]any) (any, error) {
		line := args
		if items, ok := args["items"].([]any); ok && len(items) > 0 {
			line, _ = items[0].(map[string]any)
		} else if item, ok := args["item"].(map[string]any); ok {
			line = item
		}
		variantID, _ := line["variantId"].(string)
		if variantID == "" {
			variantID, _ = line["id"].(string)
		}
		p, ok := byVariant[variantID]
		if !ok {
			return nil, &mcptest.RPCError{Code: "UNKNOWN_VARIANT", Message: fmt.Sprintf("unknown variant %q", variantID)}
		}
		if p.Variants[0].InventoryQuantity <= 0 {
			return nil, &mcptest.RPCError{Code: "OUT_OF_STOCK", Message: p.Title + " is out of stock"}
		}

		session := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		logger.Info().Str("tool", "create_checkout_session").Str("variant_id", variantID).Msg("tool_call")
		return mcptest.TextResult(map[string]any{
			"id":  session,
			"url": strings.TrimRight(base, "/") + "/" + session,
		}), nil
	}
}
