package commerce

import (
	"context"
	"fmt"

	"github.com/nlpodyssey/openai-agents-go/agents"
)

type catalogSearchParams struct {
	Query string `json:"query"`
}

// CatalogTool exposes the search tool to a model agent. Results are
// normalized and listed the same way as command searches, but are not cached
// for checkout.
func CatalogTool(caller ToolCaller, searchTool string) agents.FunctionTool {
	return agents.NewFunctionTool(
		"search_catalog",
		"Search the product catalog. Returns up to 5 numbered products with price and stock.",
		func(ctx context.Context, params catalogSearchParams) (string, error) {
			query := NormalizeQuery(params.Query)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			raw, err := caller.CallTool(ctx, searchTool, map[string]any{
				"query": query,
				"limit": MaxSearchItems,
			})
			if err != nil {
				return "", fmt.Errorf("search catalog: %w", err)
			}
			items := NormalizeProducts(UnwrapToolResult(raw))
			if len(items) == 0 {
				return fmt.Sprintf(MsgNoMatches, query), nil
			}
			return ListItems(query, items), nil
		},
	)
}
