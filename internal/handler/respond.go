package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pavelanni/assessor/internal/catalog"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
)

const maxBodyBytes = 1 << 20

// apiError is the JSON body of every failed request.
type apiError struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Fields  []catalog.FieldError `json:"fields,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
	msgID  string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{errUnauthorized, http.StatusUnauthorized, "unauthorized", "ErrUnauthorized"},
	{model.ErrAttemptLimitExceeded, http.StatusConflict, "attempt_limit_exceeded", "ErrAttemptLimitExceeded"},
	{model.ErrQuizClosed, http.StatusConflict, "quiz_closed", "ErrQuizClosed"},
	{model.ErrInvalidAttemptState, http.StatusConflict, "invalid_attempt_state", "ErrInvalidAttemptState"},
	{model.ErrConflict, http.StatusConflict, "conflict", "ErrConflict"},
	{model.ErrQuizNotYetAvailable, http.StatusForbidden, "quiz_not_yet_available", "ErrQuizNotYetAvailable"},
	{model.ErrNotEnrolled, http.StatusForbidden, "not_enrolled", "ErrNotEnrolled"},
	{model.ErrQuestionNotFound, http.StatusBadRequest, "question_not_found", "ErrQuestionNotFound"},
	{model.ErrDuplicateAnswer, http.StatusBadRequest, "duplicate_answer", "ErrDuplicateAnswer"},
	{model.ErrInvalidInput, http.StatusBadRequest, "invalid_input", "ErrInvalidInput"},
	{model.ErrNotFound, http.StatusNotFound, "not_found", "ErrNotFound"},
	{model.ErrNoQuestions, http.StatusUnprocessableEntity, "no_questions", "ErrNoQuestions"},
}

// writeError maps err to a status and a localized body. Unknown errors are
// logged and reported as 500 without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		body := apiError{Code: m.code, Message: appI18n.T(r.Context(), m.msgID)}
		var ve *catalog.ValidationError
		if errors.As(err, &ve) {
			body.Fields = ve.Fields
		}
		if m.status != http.StatusUnauthorized {
			slog.Debug("request rejected", "path", r.URL.Path, "code", m.code, "error", err)
		}
		writeJSON(w, m.status, body)
		return
	}

	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, apiError{
		Code:    "internal",
		Message: appI18n.T(r.Context(), "ErrInternal"),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", model.ErrInvalidInput, err)
	}
	return nil
}
