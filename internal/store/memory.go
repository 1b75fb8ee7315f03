package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentoven/agentdesk/pkg/models"
)

// MemoryStore is a Gateway backed by in-process maps. Data is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	executions map[string][]models.ExecutionRecord // by session id, append order
	sessions   map[string]*models.ConversationSession

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string][]models.ExecutionRecord),
		sessions:   make(map[string]*models.ConversationSession),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) FetchHistory(_ context.Context, sessionID string, limit int) ([]models.StoredTurn, error) {
	limit = historyLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.executions[sessionID]
	turns := make([]models.StoredTurn, 0, limit)
	// Walk backwards collecting successes, then reverse into oldest-first.
	for i := len(recs) - 1; i >= 0 && len(turns) < limit; i-- {
		if recs[i].Success {
			turns = append(turns, recs[i].Turn())
		}
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (m *MemoryStore) AppendExecution(_ context.Context, rec *models.ExecutionRecord) error {
	fillRecord(rec, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[rec.SessionID] = append(m.executions[rec.SessionID], *rec)
	return nil
}

func (m *MemoryStore) UpsertSession(_ context.Context, sessionID, userID, lastAgentID string) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		if s.UserID != userID {
			return ErrForeignSession
		}
		if lastAgentID != "" {
			s.LastAgentID = lastAgentID
		}
		s.MessageCount++
		s.UpdatedAt = now
		return nil
	}
	m.sessions[sessionID] = &models.ConversationSession{
		ID:           sessionID,
		UserID:       userID,
		LastAgentID:  lastAgentID,
		MessageCount: 1,
		Title:        models.DefaultSessionTitle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "session", Key: id}
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListSessions(_ context.Context, userID string, limit int) ([]models.ConversationSession, error) {
	limit = sessionListLimit(limit)

	m.mu.RLock()
	out := make([]models.ConversationSession, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fillRecord assigns an id and timestamp when the caller left them empty.
func fillRecord(rec *models.ExecutionRecord, now func() time.Time) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now()
	}
}
