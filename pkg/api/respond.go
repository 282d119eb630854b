package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/worldofchami/ucpchat/pkg/agents"
)

// MaxBodySize caps JSON request bodies.
const MaxBodySize = 10 * 1024

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidID       = "INVALID_ID"
	CodeNotFound        = "NOT_FOUND"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternal        = "INTERNAL_ERROR"
)

type errorBody struct {
	OK    bool        `json:"ok"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{
		Error: errorDetail{Code: code, Message: message, RequestID: RequestIDFrom(r.Context())},
	})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	_ = v.RegisterValidation("agent_id", func(fl validator.FieldLevel) bool {
		return agents.Valid(fl.Field().String())
	})
	return v
}

// fieldMessages maps field and tag to the message shown to callers.
var fieldMessages = map[string]string{
	"role.required":    `role must be "user" or "assistant"`,
	"role.oneof":       `role must be "user" or "assistant"`,
	"content.required": "Content cannot be empty",
	"content.min":      "Content cannot be empty",
	"content.max":      "Content too long (max 10000 characters)",
	"title.max":        "Title too long",
	"agentId.agent_id": "Unknown agent",
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	e := verrs[0]
	if msg, ok := fieldMessages[e.Field()+"."+e.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", e.Field())
}

type decodeError struct {
	status  int
	code    string
	message string
}

// decodeBody strictly decodes one JSON object into dst and validates it.
// An empty body is accepted when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) *decodeError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &decodeError{http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large"}
		case errors.Is(err, io.EOF) && allowEmpty:
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			return &decodeError{http.StatusBadRequest, CodeValidation, "Unrecognized field " + strings.TrimPrefix(err.Error(), "json: unknown field ")}
		default:
			return &decodeError{http.StatusBadRequest, CodeValidation, "Invalid JSON"}
		}
	}
	if dec.More() {
		return &decodeError{http.StatusBadRequest, CodeValidation, "Invalid JSON"}
	}
	if err := validate.Struct(dst); err != nil {
		return &decodeError{http.StatusBadRequest, CodeValidation, validationMessage(err)}
	}
	return nil
}

// validID rejects non-UUID {id} path parameters.
func validID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validate.Var(chi.URLParam(r, "id"), "required,uuid"); err != nil {
			writeError(w, r, http.StatusBadRequest, CodeInvalidID, "Invalid UUID format")
			return
		}
		next.ServeHTTP(w, r)
	})
}
