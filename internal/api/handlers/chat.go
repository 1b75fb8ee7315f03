package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentdesk/internal/orchestrator"
	"github.com/agentoven/agentdesk/internal/store"
	"github.com/agentoven/agentdesk/pkg/middleware"
)

const maxChatBodyBytes = 1 << 20

var errEmptyMessage = errors.New("message is required and must be a non-empty string")

type chatRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"sessionId"`
	AgentID   string  `json:"agentId"`
}

// decodeTurn parses and validates a chat body. A missing, non-string or
// blank message is a validation error.
func decodeTurn(w http.ResponseWriter, r *http.Request) (orchestrator.TurnRequest, error) {
	var body chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&body); err != nil {
		return orchestrator.TurnRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	if body.Message == nil || strings.TrimSpace(*body.Message) == "" {
		return orchestrator.TurnRequest{}, errEmptyMessage
	}
	return orchestrator.TurnRequest{
		Message:   strings.TrimSpace(*body.Message),
		UserID:    middleware.GetUserID(r.Context()),
		SessionID: strings.TrimSpace(body.SessionID),
		AgentID:   strings.TrimSpace(body.AgentID),
	}, nil
}

const msgForeignSession = "session belongs to another user"

// foreignSession answers 403 when req continues a session owned by someone
// else, before any stream headers go out. Lookup failures are left to the
// orchestrator.
func (h *Handlers) foreignSession(w http.ResponseWriter, r *http.Request, req orchestrator.TurnRequest) bool {
	if req.SessionID == "" {
		return false
	}
	if err := orchestrator.CheckOwner(r.Context(), h.Store, req.SessionID, req.UserID); errors.Is(err, store.ErrForeignSession) {
		respondError(w, http.StatusForbidden, "forbidden", msgForeignSession)
		return true
	}
	return false
}

// Chat answers one message.
// POST /chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTurn(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res := h.Turns.HandleTurn(r.Context(), req)
	if res.Execution != nil && errors.Is(res.Execution.Err, store.ErrForeignSession) {
		respondError(w, http.StatusForbidden, "forbidden", msgForeignSession)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: res.Success, Data: turnView(res)})
}

// ChatStream answers one message over server-sent events: one "delta" event
// per text chunk, then a "done" event carrying the same payload as /chat.
// POST /chat/stream
func (h *Handlers) ChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTurn(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if h.foreignSession(w, r, req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	res := h.Turns.StreamTurn(r.Context(), req, func(delta string) error {
		if err := writeEvent(w, "delta", map[string]string{"text": delta}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err := writeEvent(w, "done", envelope{Success: res.Success, Data: turnView(res)}); err != nil {
		log.Debug().Err(err).Str("session", res.SessionID).Msg("client gone before done event")
		return
	}
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
