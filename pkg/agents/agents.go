// Package agents holds the assistant personas a conversation can be bound to.
package agents

import "strings"

const (
	General     = "general"
	Sales       = "sales"
	Support     = "support"
	Engineering = "engineering"
	Exec        = "exec"
	Commerce    = "commerce"
)

// Agent is a named system-prompt profile.
type Agent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"-"`
	// CatalogTool lets the agent search the product catalog on its own.
	CatalogTool bool `json:"-"`
}

var registry = map[string]Agent{
	General: {
		ID:     General,
		Name:   "General Assistant",
		Prompt: "You are a helpful, friendly assistant. Provide clear and concise responses.",
	},
	Sales: {
		ID:          Sales,
		Name:        "Sales Agent",
		Prompt:      "You are a sales professional. Ask discovery questions to understand customer needs, focus on value propositions, and be concise. Help identify pain points and propose solutions. When the customer asks about products, use the search_catalog tool and quote only what it returns.",
		CatalogTool: true,
	},
	Support: {
		ID:     Support,
		Name:   "Support Agent",
		Prompt: "You are a customer support agent. Be empathetic, patient, and solution-oriented. Ask for specific details to reproduce issues, provide clear troubleshooting steps, and ensure the customer feels heard.",
	},
	Engineering: {
		ID:     Engineering,
		Name:   "Engineering Agent",
		Prompt: "You are a technical expert. Provide detailed technical explanations, code examples when relevant, discuss tradeoffs, and help solve complex technical problems. Be precise and thorough.",
	},
	Exec: {
		ID:     Exec,
		Name:   "Executive Assistant",
		Prompt: "You are an executive assistant. Be brief, outcome-focused, and action-oriented. Highlight risks, opportunities, and next steps. Prioritize clarity and decision-making support.",
	},
	Commerce: {
		ID:   Commerce,
		Name: "Commerce",
		Prompt: strings.Join([]string{
			"You are a commerce assistant. Supported commands only:",
			"- search <query>",
			"- checkout <itemNumber> qty <n>",
			"Search must return numbered results 1..N (max 5). Checkout only works for a numbered item from the most recent search results and qty 1-3. Stripe is test mode; never expose secrets or raw data.",
		}, "\n"),
	},
}

// IDs lists the known agent ids in display order.
var IDs = []string{General, Sales, Support, Engineering, Exec, Commerce}

// Get returns the agent for id, falling back to the general agent.
func Get(id string) Agent {
	if a, ok := registry[id]; ok {
		return a
	}
	return registry[General]
}

// Valid reports whether id names a known agent.
func Valid(id string) bool {
	_, ok := registry[id]
	return ok
}

// All returns every agent in display order.
func All() []Agent {
	out := make([]Agent, 0, len(IDs))
	for _, id := range IDs {
		out = append(out, registry[id])
	}
	return out
}
