package store

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentoven/agentdesk/pkg/models"
)

type historyEntry struct {
	limit int
	turns []models.StoredTurn
}

// CachedGateway wraps a Gateway with an LRU cache of recent history reads.
// A session's entry is dropped whenever an execution is appended to it, and a
// read that overlapped any append is returned but not cached, so a cached read
// never misses a turn written through this gateway.
type CachedGateway struct {
	Gateway
	history *lru.Cache[string, historyEntry]

	mu      sync.Mutex
	appends uint64 // bumped after every append, guarded by mu
}

// NewCachedGateway caches FetchHistory results for up to size sessions.
func NewCachedGateway(next Gateway, size int) (*CachedGateway, error) {
	c, err := lru.New[string, historyEntry](size)
	if err != nil {
		return nil, fmt.Errorf("history cache: %w", err)
	}
	return &CachedGateway{Gateway: next, history: c}, nil
}

func (c *CachedGateway) FetchHistory(ctx context.Context, sessionID string, limit int) ([]models.StoredTurn, error) {
	limit = historyLimit(limit)
	if e, ok := c.history.Get(sessionID); ok && e.limit == limit {
		return append([]models.StoredTurn(nil), e.turns...), nil
	}

	c.mu.Lock()
	gen := c.appends
	c.mu.Unlock()

	turns, err := c.Gateway.FetchHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.appends == gen {
		c.history.Add(sessionID, historyEntry{limit: limit, turns: append([]models.StoredTurn(nil), turns...)})
	}
	c.mu.Unlock()
	return turns, nil
}

func (c *CachedGateway) AppendExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	err := c.Gateway.AppendExecution(ctx, rec)

	c.mu.Lock()
	c.appends++
	c.history.Remove(rec.SessionID)
	c.mu.Unlock()
	return err
}

// Len reports the number of cached sessions.
func (c *CachedGateway) Len() int { return c.history.Len() }
