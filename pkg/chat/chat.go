// Package chat turns an inbound message into a persisted assistant reply.
// Commerce conversations go through the commerce engine; every other agent
// is answered by the completion model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldofchami/ucpchat/pkg/agents"
	"github.com/worldofchami/ucpchat/pkg/commerce"
	"github.com/worldofchami/ucpchat/pkg/llm"
	"github.com/worldofchami/ucpchat/pkg/models"
	"github.com/worldofchami/ucpchat/pkg/utils"
)

// Apology replaces the assistant reply when the completion model fails.
const Apology = "I apologize, but I'm having trouble connecting to my AI service right now. Please try again later."

const (
	KindChat             = "chat"
	KindCompletionFailed = "completion_failed"
	KindStored           = "stored"
)

const (
	titleLimit          = 40
	defaultHistoryLimit = 20
)

var ErrInvalidRole = errors.New("role must be user or assistant")

// Store is the persistence the service needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ConversationForPhone(ctx context.Context, phone, agentID string) (*models.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Replier produces commerce replies.
type Replier interface {
	Reply(ctx context.Context, req commerce.Request) commerce.Reply
}

// Input is one message posted to a conversation.
type Input struct {
	ConversationID string
	Role           string
	Content        string
	IPHash         string
	RequestID      string
}

type Service struct {
	store        Store
	completer    llm.Completer
	catalog      llm.Completer
	commerce     Replier
	historyLimit int
	logger       zerolog.Logger
}

type Option func(*Service)

// WithCommerce routes commerce conversations to r.
func WithCommerce(r Replier) Option {
	return func(s *Service) { s.commerce = r }
}

// WithCatalogCompleter sets the completer used by agents that may search
// the catalog themselves.
func WithCatalogCompleter(c llm.Completer) Option {
	return func(s *Service) { s.catalog = c }
}

func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(st Store, completer llm.Completer, opts ...Option) *Service {
	s := &Service{
		store:        st,
		completer:    completer,
		historyLimit: defaultHistoryLimit,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Send stores in and returns the message the caller should see. Assistant
// input is stored as-is and echoed back; user input gets a generated reply.
// Only storage failures and unknown conversations are errors.
func (s *Service) Send(ctx context.Context, in Input) (*models.Message, error) {
	if in.Role != models.RoleUser && in.Role != models.RoleAssistant {
		return nil, ErrInvalidRole
	}

	conv, err := s.store.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}

	posted := &models.Message{ConversationID: conv.ID, Role: in.Role, Content: in.Content}
	if in.Role == models.RoleAssistant {
		if err := posted.SetMeta(models.Meta{AgentID: conv.AgentID, Kind: KindStored, RequestID: in.RequestID}); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}
	if err := s.store.AddMessage(ctx, posted); err != nil {
		return nil, err
	}
	if in.Role == models.RoleAssistant {
		return posted, nil
	}

	if conv.Title == models.DefaultTitle {
		if title := DeriveTitle(in.Content); title != "" {
			if err := s.store.UpdateConversationTitle(ctx, conv.ID, title); err != nil {
				s.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("update_title_failed")
			}
		}
	}

	start := time.Now()
	agent := agents.Get(conv.AgentID)

	var content string
	var meta models.Meta
	if agent.ID == agents.Commerce {
		content, meta = s.commerceReply(ctx, conv, in)
	} else {
		content, meta = s.modelReply(ctx, conv, agent)
	}
	meta.AgentID = agent.ID
	meta.RequestID = in.RequestID

	reply := &models.Message{ConversationID: conv.ID, Role: models.RoleAssistant, Content: content}
	if err := reply.SetMeta(meta); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := s.store.AddMessage(ctx, reply); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", in.RequestID).
		Str("conversation_id", conv.ID).
		Str("agent_id", agent.ID).
		Str("kind", meta.Kind).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("reply_created")
	return reply, nil
}

// HandleSMS answers body from phone in that number's conversation.
// Commerce rate limits apply per phone number.
func (s *Service) HandleSMS(ctx context.Context, phone, body, agentID string) (*models.Message, error) {
	conv, err := s.store.ConversationForPhone(ctx, phone, agentID)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, Input{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        body,
		IPHash:         utils.HashIP(phone),
	})
}

func (s *Service) commerceReply(ctx context.Context, conv *models.Conversation, in Input) (string, models.Meta) {
	if s.commerce == nil {
		return commerce.MsgDisabled, models.Meta{Kind: string(commerce.KindDisabled)}
	}
	r := s.commerce.Reply(ctx, commerce.Request{
		ConversationID: conv.ID,
		Text:           in.Content,
		IPHash:         in.IPHash,
	})
	return r.Content, r.Meta
}

func (s *Service) modelReply(ctx context.Context, conv *models.Conversation, agent agents.Agent) (string, models.Meta) {
	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("load_history_failed")
		return Apology, models.Meta{Kind: KindCompletionFailed}
	}
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: agent.Prompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	completer := s.completer
	if agent.CatalogTool && s.catalog != nil {
		completer = s.catalog
	}
	if completer == nil {
		return Apology, models.Meta{Kind: KindCompletionFailed}
	}

	out, err := completer.Complete(ctx, conv.ID, messages)
	if err != nil {
		s.logger.Warn().
			Str("conversation_id", conv.ID).
			Str("agent_id", agent.ID).
			Bool("timeout", errors.Is(err, llm.ErrTimeout)).
			Err(err).
			Msg("completion_failed")
		return Apology, models.Meta{Kind: KindCompletionFailed}
	}
	return out.Content, models.Meta{Kind: KindChat, Model: out.Model, Usage: out.Usage}
}

// DeriveTitle builds a conversation title from the first user message.
func DeriveTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	r := []rune(content)
	if len(r) > titleLimit {
		return string(r[:titleLimit-3]) + "..."
	}
	return content
}
