// Package llm is the chat-completion collaborator. The production
// implementation runs an openai-agents-go agent per call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/rs/zerolog"

	"github.com/worldofchami/ucpchat/pkg/models"
)

const (
	RoleSystem    = "system"
	RoleUser      = models.RoleUser
	RoleAssistant = models.RoleAssistant
)

// DefaultTimeout bounds one completion.
const DefaultTimeout = 30 * time.Second

var (
	ErrTimeout       = errors.New("chat completion timed out")
	ErrEmptyResponse = errors.New("chat completion returned no content")
	ErrNotConfigured = errors.New("chat completion provider is not configured")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Completion struct {
	Content string
	Model   string
	Usage   *models.Usage
}

// Completer produces the next assistant turn for a conversation. System
// messages become the instructions; the rest is the history, oldest first.
type Completer interface {
	Complete(ctx context.Context, conversationID string, messages []Message) (*Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, conversationID string, messages []Message) (*Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, conversationID string, messages []Message) (*Completion, error) {
	return f(ctx, conversationID, messages)
}

// AgentCompleter runs a single-turn agent for every completion.
type AgentCompleter struct {
	name       string
	model      string
	timeout    time.Duration
	configured bool
	tools      []agents.Tool
	logger     zerolog.Logger
}

type AgentOption func(*AgentCompleter)

func WithTimeout(d time.Duration) AgentOption {
	return func(a *AgentCompleter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) AgentOption {
	return func(a *AgentCompleter) { a.logger = l }
}

// NewAgentCompleter returns a completer for model. The provider reads its
// key from OPENAI_API_KEY; an empty apiKey makes every call fail with
// ErrNotConfigured.
func NewAgentCompleter(apiKey, model string, opts ...AgentOption) *AgentCompleter {
	a := &AgentCompleter{
		name:       "ChatAssistant",
		model:      model,
		timeout:    DefaultTimeout,
		configured: strings.TrimSpace(apiKey) != "",
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// WithTools returns a copy of a whose agent can call tools.
func (a *AgentCompleter) WithTools(name string, tools ...agents.Tool) *AgentCompleter {
	cp := *a
	cp.name = name
	cp.tools = append([]agents.Tool(nil), tools...)
	return &cp
}

func (a *AgentCompleter) Model() string { return a.model }

func (a *AgentCompleter) Complete(ctx context.Context, conversationID string, messages []Message) (*Completion, error) {
	if !a.configured {
		return nil, ErrNotConfigured
	}

	instructions, prompt := BuildPrompt(messages)
	agent := agents.New(a.name).
		WithInstructions(instructions).
		WithModel(a.model)
	if len(a.tools) > 0 {
		agent = agent.WithTools(a.tools...)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	result, err := agents.Run(ctx, agent, prompt)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("run agent: %w", err)
	}

	out, _ := result.FinalOutput.(string)
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, ErrEmptyResponse
	}

	a.logger.Debug().
		Str("conversation_id", conversationID).
		Str("model", a.model).
		Int("message_count", len(messages)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("completion_succeeded")

	return &Completion{Content: out, Model: a.model}, nil
}

// BuildPrompt splits messages into agent instructions and a single prompt:
// the newest user turn followed by the earlier history.
func BuildPrompt(messages []Message) (string, string) {
	var system []string
	var turns []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	instructions := strings.TrimSpace(strings.Join(system, "\n\n"))

	last := -1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return instructions, historyContext(turns)
	}

	prompt := turns[last].Content
	earlier := append(append([]Message(nil), turns[:last]...), turns[last+1:]...)
	if len(earlier) > 0 {
		prompt += "\n\n" + historyContext(earlier)
	}
	return instructions, prompt
}

func historyContext(turns []Message) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== Recent Conversation History ===\n")
	for _, m := range turns {
		role := "User"
		if m.Role == RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("=== End of History ===")
	return b.String()
}
