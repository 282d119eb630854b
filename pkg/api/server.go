// Package api is the HTTP surface of the chat server.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/worldofchami/ucpchat/pkg/chat"
	"github.com/worldofchami/ucpchat/pkg/mcp"
	"github.com/worldofchami/ucpchat/pkg/models"
	"github.com/worldofchami/ucpchat/pkg/sms"
)

// Store is the conversation storage behind the CRUD routes.
type Store interface {
	Ping(ctx context.Context) error
	CreateConversation(ctx context.Context, title, agentID string) (*models.Conversation, error)
	GetConversationWithMessages(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	DeleteAllConversations(ctx context.Context) (int64, error)
}

// Chat answers posted messages.
type Chat interface {
	Send(ctx context.Context, in chat.Input) (*models.Message, error)
	HandleSMS(ctx context.Context, phone, body, agentID string) (*models.Message, error)
}

// ToolLister lists the tool server's tools.
type ToolLister interface {
	ListTools(ctx context.Context) (*mcp.ListToolsResult, error)
}

type Server struct {
	store  Store
	chat   Chat
	logger zerolog.Logger

	commerceEnabled bool
	tools           ToolLister

	sms        sms.Sender
	smsAgentID string

	configErr error
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCommerce enables the commerce health check against tools.
func WithCommerce(enabled bool, tools ToolLister) Option {
	return func(s *Server) {
		s.commerceEnabled = enabled
		s.tools = tools
	}
}

// WithSMS mounts the Twilio webhook. Replies are sent through sender and
// new phone conversations are bound to agentID.
func WithSMS(sender sms.Sender, agentID string) Option {
	return func(s *Server) {
		s.sms = sender
		s.smsAgentID = agentID
	}
}

// WithConfigError makes the health check report err.
func WithConfigError(err error) Option {
	return func(s *Server) { s.configErr = err }
}

func New(st Store, c Chat, opts ...Option) *Server {
	s := &Server{store: st, chat: c, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "Not found")
	})

	r.Route("/api", func(r chi.Router) {
		r.With(s.logRoute("health_check")).Get("/health", s.handleHealth)
		r.With(s.logRoute("commerce_health")).Get("/commerce/health", s.handleCommerceHealth)

		r.Route("/conversations", func(r chi.Router) {
			r.With(s.logRoute("create_conversation")).Post("/", s.handleCreateConversation)
			r.With(s.logRoute("list_conversations")).Get("/", s.handleListConversations)
			r.With(s.logRoute("clear_all_conversations")).Delete("/", s.handleDeleteAllConversations)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(validID)
				r.With(s.logRoute("get_conversation")).Get("/", s.handleGetConversation)
				r.With(s.logRoute("delete_conversation")).Delete("/", s.handleDeleteConversation)
				r.With(s.logRoute("create_message")).Post("/messages", s.handleCreateMessage)
			})
		})
	})

	r.With(s.logRoute("twilio_webhook")).Post("/twilio/webhook", s.handleTwilioWebhook)
	return r
}
