package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vbonduro/glowly/internal/conversation"
	"github.com/vbonduro/glowly/internal/domain"
	"github.com/vbonduro/glowly/internal/service"
	"github.com/vbonduro/glowly/internal/workflow"
)

type chatTurnRequest struct {
	UID           string              `json:"uid"`
	ChatID        string              `json:"chat_id"`
	Message       string              `json:"message"`
	History       []conversation.Turn `json:"history"`
	PhotoDataURLs []string            `json:"photo_data_urls"`
	Country       string              `json:"country"`
}

type chatTurnResponse struct {
	Reply   string              `json:"reply"`
	History []conversation.Turn `json:"history"`
}

type workflowRequest struct {
	UID           string   `json:"uid"`
	ChatID        string   `json:"chat_id"`
	PhotoDataURLs []string `json:"photo_data_urls"`
	Country       string   `json:"country"`
}

type workflowResponse struct {
	Success      bool                `json:"success"`
	Verification string              `json:"verification,omitempty"`
	Analysis     string              `json:"analysis,omitempty"`
	Ratings      *workflow.Ratings   `json:"ratings"`
	Shopping     string              `json:"shopping,omitempty"`
	Products     []workflow.Product  `json:"products"`
	History      []conversation.Turn `json:"history"`
	Error        string              `json:"error,omitempty"`
}

type stepPayload struct {
	Step    workflow.Step       `json:"step"`
	Reply   string              `json:"reply"`
	History []conversation.Turn `json:"history"`
}

type storeMessageRequest struct {
	ChatID   string               `json:"chat_id"`
	UID      string               `json:"uid"`
	Messages []domain.ChatMessage `json:"messages"`
}

func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request) {
	var req chatTurnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.service.ChatTurn(r.Context(), service.ChatRequest{
		UID:     req.UID,
		ChatID:  req.ChatID,
		Message: req.Message,
		History: req.History,
		Photos:  req.PhotoDataURLs,
		Country: req.Country,
	})
	if err != nil {
		s.fail(w, "chat turn", err)
		return
	}
	writeJSON(w, http.StatusOK, chatTurnResponse{Reply: reply.Reply, History: reply.History})
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.RunWorkflow(r.Context(), req.toService(), nil)
	var verr *workflow.VerificationError
	switch {
	case errors.As(err, &verr):
		body := newWorkflowResponse(res)
		body.Error = verr.Error()
		writeJSON(w, http.StatusOK, body)
	case err != nil:
		s.fail(w, "workflow", err)
	default:
		body := newWorkflowResponse(res)
		body.Success = true
		writeJSON(w, http.StatusOK, body)
	}
}

// handleWorkflowStream runs the workflow and reports each step as an SSE
// "step" event as soon as it completes. The stream ends with a "done" event
// carrying the full result, or an "error" event.
func (s *Server) handleWorkflowStream(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.PhotoDataURLs) == 0 {
		writeError(w, http.StatusBadRequest, workflow.ErrNoPhotos.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	send := func(event string, v any) {
		if r.Context().Err() != nil {
			return
		}
		if err := writeEvent(w, event, v); err != nil {
			s.logger.Error("write sse event failed", "event", event, "error", err)
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
	if canFlush {
		flusher.Flush()
	}

	res, err := s.service.RunWorkflow(r.Context(), req.toService(), func(ev workflow.StepEvent) {
		send("step", stepPayload{Step: ev.Step, Reply: ev.Reply, History: ev.History})
	})

	var verr *workflow.VerificationError
	switch {
	case errors.As(err, &verr):
		body := newWorkflowResponse(res)
		body.Error = verr.Error()
		send("done", body)
	case err != nil:
		_, msg := statusFor(err)
		s.logger.Error("workflow stream failed", "error", err)
		send("error", errorBody{Error: msg})
	default:
		body := newWorkflowResponse(res)
		body.Success = true
		send("done", body)
	}
}

func (s *Server) handleStoreMessage(w http.ResponseWriter, r *http.Request) {
	var req storeMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ChatID) == "" {
		writeError(w, http.StatusBadRequest, "chat_id required")
		return
	}

	if err := s.service.StoreMessages(r.Context(), req.ChatID, req.UID, req.Messages); err != nil {
		s.fail(w, "store messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message stored"})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	msgs, err := s.service.GetMessages(r.Context(), q.Get("uid"), q.Get("chat_id"))
	if err != nil {
		s.fail(w, "get messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.ChatMessage{"messages": msgs})
}

func (req workflowRequest) toService() service.WorkflowRequest {
	return service.WorkflowRequest{
		UID:     req.UID,
		ChatID:  req.ChatID,
		Photos:  req.PhotoDataURLs,
		Country: req.Country,
	}
}

func newWorkflowResponse(res *workflow.Result) workflowResponse {
	if res == nil {
		return workflowResponse{History: []conversation.Turn{}, Products: []workflow.Product{}}
	}
	body := workflowResponse{
		Verification: res.Verification,
		Analysis:     res.Analysis,
		Ratings:      res.Ratings,
		Shopping:     res.Shopping,
		Products:     res.Products,
		History:      res.History,
	}
	if body.Products == nil {
		body.Products = []workflow.Product{}
	}
	if body.History == nil {
		body.History = []conversation.Turn{}
	}
	return body
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
