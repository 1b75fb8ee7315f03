// Package store is the persistence gateway for execution records and
// conversation sessions.
//
// The gateway is the only writer of both. Execution records are append-only;
// session upserts are atomic create-or-increment on the store side, so two
// concurrent turns on one session never lose a message count.
package store

import (
	"context"
	"errors"

	"github.com/agentoven/agentdesk/pkg/models"
)

const (
	// DefaultHistoryLimit is used when FetchHistory is called with limit <= 0.
	DefaultHistoryLimit = 10

	// DefaultSessionListLimit is used when ListSessions is called with limit <= 0.
	DefaultSessionListLimit = 20
)

// Gateway is the storage contract the orchestrator and HTTP layer depend on.
type Gateway interface {
	// FetchHistory returns the last limit successful turns of a session,
	// oldest first. An unknown session yields an empty slice.
	FetchHistory(ctx context.Context, sessionID string, limit int) ([]models.StoredTurn, error)

	// AppendExecution writes one execution record. A missing ID or timestamp
	// is filled in on rec.
	AppendExecution(ctx context.Context, rec *models.ExecutionRecord) error

	// UpsertSession creates the session with a message count of 1, or
	// overwrites its last agent and increments the count by exactly 1. An
	// empty lastAgentID leaves the stored last agent unchanged. A session
	// owned by another user is left untouched and ErrForeignSession returned.
	UpsertSession(ctx context.Context, sessionID, userID, lastAgentID string) error

	// GetSession returns a session or *ErrNotFound.
	GetSession(ctx context.Context, id string) (*models.ConversationSession, error)

	// ListSessions returns a user's sessions, most recently updated first.
	ListSessions(ctx context.Context, userID string, limit int) ([]models.ConversationSession, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ErrForeignSession is returned when a write names a session that belongs
// to a different user.
var ErrForeignSession = errors.New("session belongs to another user")

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

func historyLimit(n int) int {
	if n <= 0 {
		return DefaultHistoryLimit
	}
	return n
}

func sessionListLimit(n int) int {
	if n <= 0 {
		return DefaultSessionListLimit
	}
	return n
}
