package api

import (
	"net/http"

	"github.com/worldofchami/ucpchat/pkg/sms"
)

// handleTwilioWebhook answers an inbound SMS in the sender's conversation
// and sends the reply back before acknowledging.
func (s *Server) handleTwilioWebhook(w http.ResponseWriter, r *http.Request) {
	if s.sms == nil {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "Not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	from := sms.FormatPhoneNumber(r.FormValue("From"))
	body := r.FormValue("Body")
	if from == "" || body == "" {
		http.Error(w, "Missing From or Body", http.StatusBadRequest)
		return
	}

	requestID := RequestIDFrom(r.Context())
	reply, err := s.chat.HandleSMS(r.Context(), from, body, s.smsAgentID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	if err := s.sms.Send(r.Context(), from, reply.Content); err != nil {
		s.logger.Error().
			Str("request_id", requestID).
			Str("conversation_id", reply.ConversationID).
			Err(err).
			Msg("sms_send_failed")
		http.Error(w, "Failed to send reply", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<Response></Response>"))
}
