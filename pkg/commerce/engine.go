// Package commerce turns chat text into product searches and checkout
// sessions on an external tool server. Every outcome, including failures,
// is a Reply that the caller persists as an assistant message.
package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldofchami/ucpchat/pkg/llm"
	"github.com/worldofchami/ucpchat/pkg/logging"
	"github.com/worldofchami/ucpchat/pkg/mcp"
	"github.com/worldofchami/ucpchat/pkg/models"
)

// ReplyKind classifies a Reply.
type ReplyKind string

const (
	KindDisabled            ReplyKind = "commerce_disabled"
	KindHelp                ReplyKind = "commerce_help"
	KindRateLimited         ReplyKind = "rate_limited"
	KindSearchResults       ReplyKind = "search_results"
	KindNoMatches           ReplyKind = "no_matches"
	KindToolsUnavailable    ReplyKind = "tools_unavailable"
	KindNoSearch            ReplyKind = "no_search"
	KindInvalidItem         ReplyKind = "invalid_item"
	KindCheckoutUnavailable ReplyKind = "checkout_unavailable"
	KindMissingURL          ReplyKind = "checkout_missing_url"
	KindCheckoutCreated     ReplyKind = "checkout_created"
	KindFallback            ReplyKind = "commerce_fallback"
)

const (
	MsgDisabled            = "Commerce features are currently disabled."
	MsgHelp                = "I can help you shop. Try \"search hoodies\" to find products, then \"checkout 1\" (add \"qty 2\" for more than one) to buy one of the results."
	MsgRateLimited         = "You're sending commerce requests too quickly. Please wait a moment and try again."
	MsgNoMatches           = "No products found for %q. Try a different search."
	MsgToolsUnavailable    = "Commerce tools are unavailable right now. Please try again shortly."
	MsgNoSearch            = "Please run a search first (for example \"search hoodies\"), then choose an item number."
	MsgInvalidItem         = "Invalid item number. Choose an item between 1 and %d."
	MsgCheckoutUnavailable = "Checkout is unavailable right now. Please try again shortly."
	MsgMissingURL          = "The checkout tool did not return a checkout link. Please try again."
	MsgFallback            = "Something went wrong while handling that request. Please try again."
)

// Reply is the assistant message produced for one commerce request. Meta
// holds the metadata the caller stores with it.
type Reply struct {
	Kind    ReplyKind
	Content string
	Meta    models.Meta
}

// Config holds per-deployment commerce settings.
type Config struct {
	Enabled      bool
	SearchTool   string
	CheckoutTool string
	SearchLimit  int
	Limits       Limits
	LinkStyle    LinkStyle
	ParamStyle   ParamStyle
}

// Store is the message history the engine reads.
type Store interface {
	Counter
	LatestAssistantMessageWithKey(ctx context.Context, conversationID, key string) (*models.Message, error)
}

// Request is one inbound chat message addressed to the commerce agent.
type Request struct {
	ConversationID string
	Text           string
	IPHash         string
}

type Engine struct {
	cfg       Config
	tools     ToolCaller
	store     Store
	limiter   *RateLimiter
	completer llm.Completer
	logger    zerolog.Logger
	now       func() time.Time
}

type EngineOption func(*Engine)

// WithCompleter sets the model used to phrase checkout confirmations.
func WithCompleter(c llm.Completer) EngineOption {
	return func(e *Engine) { e.completer = c }
}

func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(cfg Config, tools ToolCaller, st Store, opts ...EngineOption) *Engine {
	if cfg.SearchTool == "" {
		cfg.SearchTool = "search_products"
	}
	if cfg.CheckoutTool == "" {
		cfg.CheckoutTool = "create_checkout_session"
	}
	if cfg.LinkStyle == "" {
		cfg.LinkStyle = LinkMarkdown
	}
	if cfg.ParamStyle == "" {
		cfg.ParamStyle = ParamsItem
	}
	e := &Engine{
		cfg:    cfg,
		tools:  tools,
		store:  st,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.limiter = NewRateLimiter(st, cfg.Limits, e.now)
	return e
}

// Enabled reports whether commerce is switched on.
func (e *Engine) Enabled() bool { return e.cfg.Enabled }

// Reply handles one request. It never fails: unexpected errors and panics
// become a fallback reply with a commerce_fallback trace entry.
func (e *Engine) Reply(ctx context.Context, req Request) (reply Reply) {
	if !e.cfg.Enabled {
		return e.finish(Reply{Kind: KindDisabled, Content: MsgDisabled}, nil, nil)
	}

	rec := NewRecorder(e.now)
	var cmd Command
	// counted is set once the limiter has recorded this request.
	var counted bool

	defer func() {
		if p := recover(); p != nil {
			reply = e.fallback(rec, cmd, req, fmt.Errorf("panic: %v", p), counted)
		}
	}()

	cmd = ParseCommand(req.Text)
	if cmd == nil {
		return e.finish(Reply{Kind: KindHelp, Content: MsgHelp}, nil, nil)
	}

	allowed, window, err := e.limiter.Allow(ctx, req.IPHash, req.ConversationID)
	if err != nil {
		return e.fallback(rec, cmd, req, err, false)
	}
	if !allowed {
		e.logger.Info().
			Str("conversation_id", req.ConversationID).
			Str("window", string(window)).
			Msg("commerce_rate_limited")
		return e.finish(Reply{Kind: KindRateLimited, Content: MsgRateLimited}, cmd, nil)
	}
	counted = true

	switch c := cmd.(type) {
	case *SearchCommand:
		reply = e.search(ctx, rec, c)
	case *CheckoutCommand:
		reply, err = e.checkout(ctx, rec, req.ConversationID, c)
		if err != nil {
			return e.fallback(rec, cmd, req, err, counted)
		}
	}

	reply.Meta.IPHash = req.IPHash
	e.logger.Info().
		Str("conversation_id", req.ConversationID).
		Str("kind", string(reply.Kind)).
		Int("tool_calls", len(rec.Entries())).
		Msg("commerce_reply")
	return e.finish(reply, cmd, rec)
}

// fallback builds the commerce_fallback reply. A request the limiter already
// admitted keeps its ip hash.
func (e *Engine) fallback(rec *Recorder, cmd Command, req Request, err error, counted bool) Reply {
	e.logger.Error().
		Str("conversation_id", req.ConversationID).
		Str("error", logging.Redact("error", err.Error())).
		Msg("commerce_fallback")
	rec.RecordFailure(FallbackTool, req.Text, err)
	r := Reply{Kind: KindFallback, Content: MsgFallback}
	if counted {
		r.Meta.IPHash = req.IPHash
	}
	return e.finish(r, cmd, rec)
}

func (e *Engine) finish(r Reply, cmd Command, rec *Recorder) Reply {
	r.Meta.Kind = string(r.Kind)
	if cmd != nil {
		r.Meta.Command = cmd.Meta()
	}
	if rec != nil {
		r.Meta.ToolTrace = rec.Entries()
	}
	return r
}

func redactToolError(err error) string {
	return logging.Redact("error", mcp.FormatError(err))
}
