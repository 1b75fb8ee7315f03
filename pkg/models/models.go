// Package models holds the shared domain types of the agentdesk orchestration core.
//
// Types here are plain data: the registry, router, executor, store gateway and
// orchestrator all exchange these shapes, and the HTTP layer serializes them.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ── Agents ──────────────────────────────────────────────────

// AgentDescriptor is one named persona. Immutable after registry construction
// and always looked up by ID.
type AgentDescriptor struct {
	ID             string   `json:"id" yaml:"id"`
	DisplayName    string   `json:"name" yaml:"name"`
	CapabilityTags []string `json:"capabilities" yaml:"capabilities"`
	SystemPrompt   string   `json:"-" yaml:"system_prompt"`
}

// AgentRef is the short agent identity returned to callers.
type AgentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref returns the caller-facing identity of the descriptor.
func (a AgentDescriptor) Ref() AgentRef {
	return AgentRef{ID: a.ID, Name: a.DisplayName}
}

// ── Providers ───────────────────────────────────────────────

// Provider identifies a model-serving backend. The set is closed.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Providers lists every supported provider in a stable order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic}
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// ParseProvider converts a config string into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// ModelBinding pins an agent to exactly one provider and model.
type ModelBinding struct {
	Provider  Provider `json:"provider" yaml:"provider"`
	ModelName string   `json:"model" yaml:"model"`
}

// ── Conversation ────────────────────────────────────────────

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the ordered conversation sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StoredTurn is one persisted exchange, as read back for history.
type StoredTurn struct {
	AgentID       string    `json:"agent_id"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Timestamp     time.Time `json:"timestamp"`
}

// ── Usage ───────────────────────────────────────────────────

// TokenUsage is the normalized token accounting of one provider call.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// NewTokenUsage builds a TokenUsage whose total is always prompt + completion.
func NewTokenUsage(prompt, completion int64) TokenUsage {
	return TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// ── Execution ───────────────────────────────────────────────

// ExecutionResult is what the executor returns for every dispatch, successful
// or not. Err keeps the typed cause for errors.Is / errors.As.
type ExecutionResult struct {
	Success         bool       `json:"success"`
	AgentID         string     `json:"agent_id"`
	AgentName       string     `json:"agent_name,omitempty"`
	Response        string     `json:"response"`
	Provider        Provider   `json:"provider,omitempty"`
	Model           string     `json:"model,omitempty"`
	Usage           TokenUsage `json:"usage"`
	ExecutionTimeMs int64      `json:"execution_time_ms"`
	Timestamp       time.Time  `json:"timestamp"`
	Error           string     `json:"error,omitempty"`
	Err             error      `json:"-"`
}

// ExecutionRecord is the append-only audit row written once per turn.
type ExecutionRecord struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	SessionID        string    `json:"session_id" db:"session_id"`
	AgentID          string    `json:"agent_id" db:"agent_id"`
	AgentName        string    `json:"agent_name" db:"agent_name"`
	UserMessage      string    `json:"user_message" db:"user_message"`
	AgentResponse    string    `json:"agent_response" db:"agent_response"`
	Provider         Provider  `json:"provider" db:"provider"`
	ModelName        string    `json:"model_name" db:"model_name"`
	PromptTokens     int64     `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens" db:"total_tokens"`
	ExecutionTimeMs  int64     `json:"execution_time_ms" db:"execution_time_ms"`
	Success          bool      `json:"success" db:"success"`
	Error            string    `json:"error,omitempty" db:"error"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
}

// Turn converts a record into the history read-model.
func (r *ExecutionRecord) Turn() StoredTurn {
	return StoredTurn{
		AgentID:       r.AgentID,
		UserMessage:   r.UserMessage,
		AgentResponse: r.AgentResponse,
		Timestamp:     r.Timestamp,
	}
}

// ── Sessions ────────────────────────────────────────────────

// DefaultSessionTitle is the title given to a session on its first turn.
const DefaultSessionTitle = "New conversation"

// ConversationSession is the aggregate state of one conversation.
// Only the store gateway writes it.
type ConversationSession struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	LastAgentID  string    `json:"last_agent_id" db:"last_agent_id"`
	MessageCount int       `json:"message_count" db:"message_count"`
	Title        string    `json:"title" db:"title"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ── Turns ───────────────────────────────────────────────────

// TurnMetadata is the diagnostic block attached to every turn result.
type TurnMetadata struct {
	Provider        Provider  `json:"provider,omitempty"`
	Model           string    `json:"model,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	TotalTokens     int64     `json:"total_tokens"`
	Timestamp       time.Time `json:"timestamp"`
}

// PersistReport carries the outcome of the best-effort persistence stage.
// It never changes the primary result.
type PersistReport struct {
	LogErr     error `json:"-"`
	SessionErr error `json:"-"`
}

// OK reports whether both writes succeeded.
func (p PersistReport) OK() bool {
	return p.LogErr == nil && p.SessionErr == nil
}

// Err joins both write errors, or returns nil.
func (p PersistReport) Err() error {
	return errors.Join(p.LogErr, p.SessionErr)
}

// TurnResult is the answer object for one user turn. It is always well formed,
// including when dispatch failed.
type TurnResult struct {
	Success     bool          `json:"success"`
	SessionID   string        `json:"session_id"`
	Agent       AgentRef      `json:"agent"`
	Response    string        `json:"response"`
	Metadata    TurnMetadata  `json:"metadata"`
	Persistence PersistReport `json:"-"`

	// Execution is the underlying dispatch result, kept for diagnostics.
	Execution *ExecutionResult `json:"-"`
}
