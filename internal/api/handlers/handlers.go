// Package handlers implements the HTTP endpoints of the chat surface.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentoven/agentdesk/internal/orchestrator"
	"github.com/agentoven/agentdesk/internal/providers"
	"github.com/agentoven/agentdesk/internal/store"
	"github.com/agentoven/agentdesk/pkg/models"
)

// Turns runs chat turns.
type Turns interface {
	HandleTurn(ctx context.Context, req orchestrator.TurnRequest) *models.TurnResult
	StreamTurn(ctx context.Context, req orchestrator.TurnRequest, onDelta providers.DeltaFunc) *models.TurnResult
}

// AgentCatalog lists the configured agents.
type AgentCatalog interface {
	List() []models.AgentDescriptor
	Default() models.AgentDescriptor
	ModelBindingFor(id string) (models.ModelBinding, error)
}

// Handlers holds the dependencies of every endpoint.
type Handlers struct {
	Turns  Turns
	Store  store.Gateway
	Agents AgentCatalog
}

// New creates a new Handlers instance with all dependencies.
func New(t Turns, gw store.Gateway, agents AgentCatalog) *Handlers {
	return &Handlers{Turns: t, Store: gw, Agents: agents}
}

// ── Wire types ──────────────────────────────────────────────

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type turnMetadata struct {
	Model         string          `json:"model"`
	Provider      models.Provider `json:"provider"`
	ExecutionTime int64           `json:"executionTime"`
	TokensUsed    int64           `json:"tokensUsed"`
	Timestamp     time.Time       `json:"timestamp"`
}

type turnData struct {
	SessionID string          `json:"sessionId"`
	Agent     models.AgentRef `json:"agent"`
	Response  string          `json:"response"`
	Metadata  turnMetadata    `json:"metadata"`
}

func turnView(res *models.TurnResult) turnData {
	return turnData{
		SessionID: res.SessionID,
		Agent:     res.Agent,
		Response:  res.Response,
		Metadata: turnMetadata{
			Model:         res.Metadata.Model,
			Provider:      res.Metadata.Provider,
			ExecutionTime: res.Metadata.ExecutionTimeMs,
			TokensUsed:    res.Metadata.TotalTokens,
			Timestamp:     res.Metadata.Timestamp,
		},
	}
}

type sessionData struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	LastAgentID  string    `json:"lastAgentId"`
	MessageCount int       `json:"messageCount"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func sessionView(s *models.ConversationSession) sessionData {
	return sessionData{
		ID:           s.ID,
		UserID:       s.UserID,
		LastAgentID:  s.LastAgentID,
		MessageCount: s.MessageCount,
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ── Helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondOK(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Success: false, Error: code, Message: message})
}
