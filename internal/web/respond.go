package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/glowly/internal/agent"
	"github.com/vbonduro/glowly/internal/llm"
	"github.com/vbonduro/glowly/internal/service"
	"github.com/vbonduro/glowly/internal/workflow"
)

const maxJSONBody = 60 * 1024 * 1024 // photos travel as data URLs

// retryMessage is shown when the assistant could not finish an exchange.
const retryMessage = "The assistant could not complete this request. Please try again."

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// statusFor maps service errors onto HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidPhoto),
		errors.Is(err, service.ErrMissingUID),
		errors.Is(err, workflow.ErrNoPhotos):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrScanNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		return http.StatusBadGateway, retryMessage
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, retryMessage
	case errors.Is(err, llm.ErrMissingCredentials):
		return http.StatusServiceUnavailable, "chat model is not configured"
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Warn(op+" rejected", "error", err)
	}
	writeError(w, status, msg)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
