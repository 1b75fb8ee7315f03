package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentdesk/pkg/models"
)

// PostgresStore is a Gateway backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to connURL, verifies the connection and creates
// the tables if they don't exist.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("postgres store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS agentdesk_executions (
			seq               BIGSERIAL PRIMARY KEY,
			id                TEXT NOT NULL UNIQUE,
			user_id           TEXT NOT NULL,
			session_id        TEXT NOT NULL,
			agent_id          TEXT NOT NULL,
			agent_name        TEXT NOT NULL DEFAULT '',
			user_message      TEXT NOT NULL,
			agent_response    TEXT NOT NULL DEFAULT '',
			provider          TEXT NOT NULL DEFAULT '',
			model_name        TEXT NOT NULL DEFAULT '',
			prompt_tokens     BIGINT NOT NULL DEFAULT 0,
			completion_tokens BIGINT NOT NULL DEFAULT 0,
			total_tokens      BIGINT NOT NULL DEFAULT 0,
			execution_time_ms BIGINT NOT NULL DEFAULT 0,
			success           BOOLEAN NOT NULL DEFAULT FALSE,
			error             TEXT NOT NULL DEFAULT '',
			timestamp         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agentdesk_exec_session ON agentdesk_executions (session_id, success, seq);

		CREATE TABLE IF NOT EXISTS agentdesk_sessions (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			last_agent_id TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 1,
			title         TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agentdesk_sessions_user ON agentdesk_sessions (user_id, updated_at DESC);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) FetchHistory(ctx context.Context, sessionID string, limit int) ([]models.StoredTurn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT agent_id, user_message, agent_response, timestamp FROM (
			SELECT seq, agent_id, user_message, agent_response, timestamp
			FROM agentdesk_executions
			WHERE session_id = $1 AND success
			ORDER BY seq DESC
			LIMIT $2
		) recent ORDER BY seq ASC`, sessionID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	turns := make([]models.StoredTurn, 0)
	for rows.Next() {
		var t models.StoredTurn
		if err := rows.Scan(&t.AgentID, &t.UserMessage, &t.AgentResponse, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *PostgresStore) AppendExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	fillRecord(rec, s.now)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agentdesk_executions (
			id, user_id, session_id, agent_id, agent_name, user_message, agent_response,
			provider, model_name, prompt_tokens, completion_tokens, total_tokens,
			execution_time_ms, success, error, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		rec.ID, rec.UserID, rec.SessionID, rec.AgentID, rec.AgentName, rec.UserMessage, rec.AgentResponse,
		string(rec.Provider), rec.ModelName, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.ExecutionTimeMs, rec.Success, rec.Error, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertSession(ctx context.Context, sessionID, userID, lastAgentID string) error {
	now := s.now()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO agentdesk_sessions (id, user_id, last_agent_id, message_count, title, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			last_agent_id = COALESCE(NULLIF(EXCLUDED.last_agent_id, ''), agentdesk_sessions.last_agent_id),
			message_count = agentdesk_sessions.message_count + 1,
			updated_at    = EXCLUDED.updated_at
		WHERE agentdesk_sessions.user_id = EXCLUDED.user_id`,
		sessionID, userID, lastAgentID, models.DefaultSessionTitle, now,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrForeignSession
	}
	return nil
}

const pgSessionColumns = `id, user_id, last_agent_id, message_count, title, created_at, updated_at`

func scanPGSession(row pgx.Row) (*models.ConversationSession, error) {
	var sess models.ConversationSession
	err := row.Scan(&sess.ID, &sess.UserID, &sess.LastAgentID, &sess.MessageCount, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.ConversationSession, error) {
	sess, err := scanPGSession(s.pool.QueryRow(ctx, `SELECT `+pgSessionColumns+` FROM agentdesk_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "session", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string, limit int) ([]models.ConversationSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgSessionColumns+` FROM agentdesk_sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC, id ASC
		LIMIT $2`, userID, sessionListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]models.ConversationSession, 0)
	for rows.Next() {
		sess, err := scanPGSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}
