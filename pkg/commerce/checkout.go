package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/worldofchami/ucpchat/pkg/llm"
	"github.com/worldofchami/ucpchat/pkg/models"
	"github.com/worldofchami/ucpchat/pkg/store"
)

const (
	StatusLine = "✅ Stripe checkout created (test mode)"
	Disclaimer = "Test mode: use card 4242 4242 4242 4242 with any future expiry date and any CVC."
	LinkLabel  = "Open Stripe Checkout"
)

// LinkStyle selects how the checkout link is rendered.
type LinkStyle string

const (
	LinkMarkdown LinkStyle = "markdown"
	LinkHTML     LinkStyle = "html"
)

// ParamStyle selects the argument convention of the checkout tool.
type ParamStyle string

const (
	// ParamsItem sends {title, price, variantId, quantity}.
	ParamsItem ParamStyle = "item"
	// ParamsItems sends {items: [{title, price, variantId, quantity}]}.
	ParamsItems ParamStyle = "items"
)

func (e *Engine) checkout(ctx context.Context, rec *Recorder, conversationID string, cmd *CheckoutCommand) (Reply, error) {
	items, err := e.lastSearchResults(ctx, conversationID)
	if err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return Reply{Kind: KindNoSearch, Content: MsgNoSearch}, nil
	}
	if cmd.ItemNumber < 1 || cmd.ItemNumber > len(items) {
		return Reply{Kind: KindInvalidItem, Content: fmt.Sprintf(MsgInvalidItem, len(items))}, nil
	}

	item := items[cmd.ItemNumber-1]
	qty := ClampQty(cmd.Qty)

	raw, err := rec.Call(ctx, e.tools, e.cfg.CheckoutTool, CheckoutArgs(e.cfg.ParamStyle, item, qty))
	if err != nil {
		e.logger.Warn().
			Str("tool", e.cfg.CheckoutTool).
			Str("error", redactToolError(err)).
			Msg("commerce_checkout_failed")
		return Reply{Kind: KindCheckoutUnavailable, Content: MsgCheckoutUnavailable}, nil
	}

	url := ExtractCheckoutURL(raw)
	if url == "" {
		rec.RecordFailure(e.cfg.CheckoutTool, "extract checkout url", errors.New("checkout url missing from tool result"))
		return Reply{Kind: KindMissingURL, Content: MsgMissingURL}, nil
	}

	draft := e.phraseConfirmation(ctx, conversationID, item, qty, url)
	return Reply{
		Kind:    KindCheckoutCreated,
		Content: ComposeConfirmation(draft, url, item, qty, e.cfg.LinkStyle),
	}, nil
}

// lastSearchResults reads the cached list from the newest assistant message
// that carries one. A missing cache is an empty list, not an error.
func (e *Engine) lastSearchResults(ctx context.Context, conversationID string) ([]models.NormalizedSearchItem, error) {
	msg, err := e.store.LatestAssistantMessageWithKey(ctx, conversationID, models.MetaKeyLastSearchResults)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last search results: %w", err)
	}
	meta, err := msg.Meta()
	if err != nil {
		return nil, fmt.Errorf("decode message %s metadata: %w", msg.ID, err)
	}
	return meta.LastSearchResults, nil
}

// phraseConfirmation asks the model for a short confirmation. Any failure
// yields "", which makes the synthesized message win.
func (e *Engine) phraseConfirmation(ctx context.Context, conversationID string, item models.NormalizedSearchItem, qty int, url string) string {
	if e.completer == nil {
		return ""
	}
	link := CanonicalLink(e.cfg.LinkStyle, url)
	out, err := e.completer.Complete(ctx, conversationID, []llm.Message{
		{Role: llm.RoleSystem, Content: "You confirm checkout sessions for a shop assistant. Reply in one or two short, friendly sentences. Include this link exactly once and do not invent other links: " + link},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Item: %s, price $%s, quantity %d.", item.Title, item.Price, qty)},
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("commerce_confirmation_failed")
		return ""
	}
	return out.Content
}

// CheckoutArgs builds the checkout tool arguments for style.
func CheckoutArgs(style ParamStyle, item models.NormalizedSearchItem, qty int) map[string]any {
	line := map[string]any{
		"title":     item.Title,
		"price":     item.Price,
		"variantId": item.VariantID,
		"quantity":  ClampQty(qty),
	}
	if style == ParamsItems {
		return map[string]any{"items": []any{line}}
	}
	return line
}

var urlKeys = []string{"url", "checkoutUrl", "checkout_url"}

// ExtractCheckoutURL checks the unwrapped tool result, then its nested
// "result" object, then the raw payload for a URL. Only values starting
// with "http" are accepted.
func ExtractCheckoutURL(raw json.RawMessage) string {
	payload := UnwrapToolResult(raw)
	if u := urlField(payload); u != "" {
		return u
	}
	if nested, ok := lookup(payload, "result"); ok {
		if u := urlField(nested); u != "" {
			return u
		}
	}
	if direct, err := decodeJSON(raw); err == nil {
		return urlField(direct)
	}
	return ""
}

func urlField(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range urlKeys {
		if s, ok := m[k].(string); ok {
			s = strings.TrimSpace(s)
			if strings.HasPrefix(s, "http") {
				return s
			}
		}
	}
	return ""
}

// CanonicalLink renders url in the configured style.
func CanonicalLink(style LinkStyle, url string) string {
	if style == LinkHTML {
		return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, html.EscapeString(url), LinkLabel)
	}
	return fmt.Sprintf("[%s](%s)", LinkLabel, url)
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// ComposeConfirmation assembles the final checkout message. The result
// starts with StatusLine, contains the canonical link exactly once and ends
// with Disclaimer whatever draft holds. A draft that never mentions url is
// discarded.
func ComposeConfirmation(draft, url string, item models.NormalizedSearchItem, qty int, style LinkStyle) string {
	body := ""
	if strings.Contains(draft, url) {
		body = stripConfirmation(draft, url)
	}
	if body == "" {
		body = fmt.Sprintf("Your checkout for %s (qty %d) is ready.", item.Title, ClampQty(qty))
	}
	return strings.Join([]string{StatusLine, body, CanonicalLink(style, url), Disclaimer}, "\n\n")
}

// linkMark stands in for a removed rendering of the checkout url.
const linkMark = "\x00"

// Stripped drafts shorter than minDraftWords words give way to the
// synthesized body.
const minDraftWords = 3

// stripConfirmation removes every sentence that renders url along with any
// status or disclaimer lines the model echoed. It returns "" when too little
// of the draft survives.
func stripConfirmation(draft, url string) string {
	quoted := regexp.QuoteMeta(url)
	escaped := regexp.QuoteMeta(html.EscapeString(url))
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?is)<a\s[^>]*href=["']?(?:` + quoted + `|` + escaped + `)[^>]*>.*?</a>`),
		regexp.MustCompile(`\[[^\]]*\]\(\s*<?(?:` + quoted + `|` + escaped + `)[^)]*\)`),
		regexp.MustCompile(`<?(?:` + quoted + `|` + escaped + `)>?`),
	}
	out := draft
	for _, re := range patterns {
		out = re.ReplaceAllString(out, linkMark)
	}

	var kept []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, linkMark) {
			line = dropMarkedSentences(line)
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, "Stripe checkout created"),
			strings.Contains(trimmed, "4242 4242"),
			strings.HasPrefix(strings.ToLower(trimmed), "test mode"):
			continue
		case trimmed != "" && strings.Trim(trimmed, " :-*>()[]") == "":
			continue
		}
		kept = append(kept, strings.TrimRight(line, " "))
	}
	out = strings.TrimSpace(blankRunRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n"))
	if len(strings.Fields(out)) < minDraftWords {
		return ""
	}
	return out
}

// dropMarkedSentences keeps only the sentences of line without linkMark.
func dropMarkedSentences(line string) string {
	var kept []string
	for _, s := range sentences(line) {
		if s = strings.TrimSpace(s); s != "" && !strings.Contains(s, linkMark) {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

// sentences splits line after runs of '.', '!' or '?' that are followed by
// whitespace or the end of the line, so "49.00" stays whole.
func sentences(line string) []string {
	var out []string
	start := 0
	for i := 0; i < len(line); i++ {
		if !strings.ContainsRune(".!?", rune(line[i])) {
			continue
		}
		j := i + 1
		for j < len(line) && strings.ContainsRune(".!?", rune(line[j])) {
			j++
		}
		if j == len(line) || line[j] == ' ' || line[j] == '\t' {
			out = append(out, line[start:j])
			start = j
		}
		i = j - 1
	}
	if start < len(line) {
		out = append(out, line[start:])
	}
	return out
}
