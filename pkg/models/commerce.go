package models

// NormalizedSearchItem is the canonical shape every product returned by the
// search tool is converted into. Its 1-based position in a result list is
// what checkout commands refer to.
type NormalizedSearchItem struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	VariantID string `json:"variantId"`
	Available *bool  `json:"available,omitempty"`
}

// ToolTraceEntry is one audited tool invocation.
type ToolTraceEntry struct {
	Tool          string `json:"tool"`
	OK            bool   `json:"ok"`
	DurationMs    int64  `json:"durationMs"`
	InputPreview  string `json:"inputPreview"`
	OutputPreview string `json:"outputPreview"`
	At            string `json:"at"`
}

