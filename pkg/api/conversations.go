package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/worldofchami/ucpchat/pkg/agents"
	"github.com/worldofchami/ucpchat/pkg/chat"
	"github.com/worldofchami/ucpchat/pkg/models"
	"github.com/worldofchami/ucpchat/pkg/store"
	"github.com/worldofchami/ucpchat/pkg/utils"
)

type createConversationRequest struct {
	Title   string `json:"title" validate:"max=200"`
	AgentID string `json:"agentId" validate:"omitempty,agent_id"`
}

type sendMessageRequest struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,min=1,max=10000"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if derr := decodeBody(w, r, &req, true); derr != nil {
		writeError(w, r, derr.status, derr.code, derr.message)
		return
	}
	if req.AgentID == "" {
		req.AgentID = agents.General
	}

	conv, err := s.store.CreateConversation(r.Context(), req.Title, req.AgentID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	for i := range convs {
		if convs[i].Messages == nil {
			convs[i].Messages = []models.Message{}
		}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleDeleteAllConversations(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.DeleteAllConversations(r.Context()); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "All conversations cleared"})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversationWithMessages(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "Conversation not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteConversation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "Conversation not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})
}

// handleCreateMessage stores the posted message and returns the assistant
// reply. Commerce failures still produce a 201 with an explanatory reply.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if derr := decodeBody(w, r, &req, false); derr != nil {
		writeError(w, r, derr.status, derr.code, derr.message)
		return
	}

	msg, err := s.chat.Send(r.Context(), chat.Input{
		ConversationID: chi.URLParam(r, "id"),
		Role:           req.Role,
		Content:        req.Content,
		IPHash:         utils.HashIP(utils.ClientIP(r)),
		RequestID:      RequestIDFrom(r.Context()),
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "Conversation not found")
		return
	}
	if errors.Is(err, chat.ErrInvalidRole) {
		writeError(w, r, http.StatusBadRequest, CodeValidation, `role must be "user" or "assistant"`)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().
		Str("request_id", RequestIDFrom(r.Context())).
		Err(err).
		Msg("request_failed")
	writeError(w, r, http.StatusInternalServerError, CodeInternal, "Internal server error")
}
