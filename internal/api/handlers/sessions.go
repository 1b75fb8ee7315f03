package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentdesk/internal/store"
	"github.com/agentoven/agentdesk/pkg/middleware"
	"github.com/agentoven/agentdesk/pkg/models"
)

// ListSessions returns the caller's sessions, most recent first.
// GET /sessions?limit=
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultSessionListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.Store.ListSessions(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		log.Error().Err(err).Msg("list sessions failed")
		respondError(w, http.StatusInternalServerError, "store_error", "Could not load sessions")
		return
	}

	out := make([]sessionData, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessionView(&sessions[i]))
	}
	respondOK(w, out)
}

// GetSession returns one session owned by the caller.
// GET /sessions/{sessionId}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	respondOK(w, sessionView(sess))
}

type turnItem struct {
	AgentID       string    `json:"agentId"`
	UserMessage   string    `json:"userMessage"`
	AgentResponse string    `json:"agentResponse"`
	Timestamp     time.Time `json:"timestamp"`
}

// SessionMessages returns the recent successful exchanges of a session.
// GET /sessions/{sessionId}/messages?limit=
func (h *Handlers) SessionMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	limit := store.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	turns, err := h.Store.FetchHistory(r.Context(), sess.ID, limit)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("fetch history failed")
		respondError(w, http.StatusInternalServerError, "store_error", "Could not load messages")
		return
	}

	out := make([]turnItem, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnItem{
			AgentID:       t.AgentID,
			UserMessage:   t.UserMessage,
			AgentResponse: t.AgentResponse,
			Timestamp:     t.Timestamp,
		})
	}
	respondOK(w, out)
}

// ownedSession loads the session named in the path and enforces that the
// caller owns it. It writes the error response itself.
func (h *Handlers) ownedSession(w http.ResponseWriter, r *http.Request) (*models.ConversationSession, bool) {
	id := chi.URLParam(r, "sessionId")

	sess, err := h.Store.GetSession(r.Context(), id)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, "not_found", nf.Error())
			return nil, false
		}
		log.Error().Err(err).Str("session", id).Msg("get session failed")
		respondError(w, http.StatusInternalServerError, "store_error", "Could not load session")
		return nil, false
	}
	if sess.UserID != middleware.GetUserID(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden", msgForeignSession)
		return nil, false
	}
	return sess, true
}
