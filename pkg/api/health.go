package api

import (
	"net/http"

	"github.com/worldofchami/ucpchat/pkg/logging"
	"github.com/worldofchami/ucpchat/pkg/mcp"
)

type healthResponse struct {
	OK        bool   `json:"ok"`
	DB        bool   `json:"db"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFrom(r.Context())
	if s.configErr != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Error:     "Environment validation failed",
			RequestID: requestID,
		})
		return
	}

	dbOK := s.store.Ping(r.Context()) == nil
	writeJSON(w, http.StatusOK, healthResponse{OK: true, DB: dbOK, RequestID: requestID})
}

type commerceHealthResponse struct {
	OK       bool   `json:"ok"`
	MCP      *bool  `json:"mcp,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleCommerceHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if !s.commerceEnabled || s.tools == nil {
		writeJSON(w, http.StatusOK, commerceHealthResponse{Disabled: true})
		return
	}

	ok := true
	if _, err := s.tools.ListTools(r.Context()); err != nil {
		ok = false
		msg := logging.Redact("error", mcp.FormatError(err))
		s.logger.Warn().
			Str("request_id", RequestIDFrom(r.Context())).
			Str("error", msg).
			Msg("commerce_health_failed")
		writeJSON(w, http.StatusOK, commerceHealthResponse{MCP: &ok, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, commerceHealthResponse{OK: true, MCP: &ok})
}
