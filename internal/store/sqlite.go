package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentdesk/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Gateway backed by a single SQLite file.
// Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// One connection serializes writers; the upsert stays atomic either way.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("sqlite store initialized")
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlite %q: %w", p, err)
		}
	}

	ddl := `
		CREATE TABLE IF NOT EXISTS agentdesk_executions (
			seq               INTEGER PRIMARY KEY AUTOINCREMENT,
			id                TEXT NOT NULL UNIQUE,
			user_id           TEXT NOT NULL,
			session_id        TEXT NOT NULL,
			agent_id          TEXT NOT NULL,
			agent_name        TEXT NOT NULL DEFAULT '',
			user_message      TEXT NOT NULL,
			agent_response    TEXT NOT NULL DEFAULT '',
			provider          TEXT NOT NULL DEFAULT '',
			model_name        TEXT NOT NULL DEFAULT '',
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens      INTEGER NOT NULL DEFAULT 0,
			execution_time_ms INTEGER NOT NULL DEFAULT 0,
			success           INTEGER NOT NULL DEFAULT 0,
			error             TEXT NOT NULL DEFAULT '',
			timestamp         INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agentdesk_exec_session ON agentdesk_executions (session_id, success, seq);

		CREATE TABLE IF NOT EXISTS agentdesk_sessions (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			last_agent_id TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 1,
			title         TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agentdesk_sessions_user ON agentdesk_sessions (user_id, updated_at);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) FetchHistory(ctx context.Context, sessionID string, limit int) ([]models.StoredTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, user_message, agent_response, timestamp FROM (
			SELECT seq, agent_id, user_message, agent_response, timestamp
			FROM agentdesk_executions
			WHERE session_id = ? AND success = 1
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC`, sessionID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	turns := make([]models.StoredTurn, 0)
	for rows.Next() {
		var (
			t  models.StoredTurn
			ts int64
		)
		if err := rows.Scan(&t.AgentID, &t.UserMessage, &t.AgentResponse, &ts); err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		t.Timestamp = time.Unix(0, ts).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) AppendExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	fillRecord(rec, s.now)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agentdesk_executions (
			id, user_id, session_id, agent_id, agent_name, user_message, agent_response,
			provider, model_name, prompt_tokens, completion_tokens, total_tokens,
			execution_time_ms, success, error, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.SessionID, rec.AgentID, rec.AgentName, rec.UserMessage, rec.AgentResponse,
		string(rec.Provider), rec.ModelName, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.ExecutionTimeMs, rec.Success, rec.Error, rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertSession(ctx context.Context, sessionID, userID, lastAgentID string) error {
	now := s.now().UnixNano()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agentdesk_sessions (id, user_id, last_agent_id, message_count, title, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_agent_id = COALESCE(NULLIF(excluded.last_agent_id, ''), agentdesk_sessions.last_agent_id),
			message_count = agentdesk_sessions.message_count + 1,
			updated_at    = excluded.updated_at
		WHERE agentdesk_sessions.user_id = excluded.user_id`,
		sessionID, userID, lastAgentID, models.DefaultSessionTitle, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrForeignSession
	}
	return nil
}

const sqliteSessionColumns = `id, user_id, last_agent_id, message_count, title, created_at, updated_at`

func scanSQLiteSession(sc interface{ Scan(...any) error }) (*models.ConversationSession, error) {
	var (
		sess             models.ConversationSession
		created, updated int64
	)
	if err := sc.Scan(&sess.ID, &sess.UserID, &sess.LastAgentID, &sess.MessageCount, &sess.Title, &created, &updated); err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	sess.UpdatedAt = time.Unix(0, updated).UTC()
	return &sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.ConversationSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteSessionColumns+` FROM agentdesk_sessions WHERE id = ?`, id)
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "session", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, limit int) ([]models.ConversationSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteSessionColumns+` FROM agentdesk_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC, id ASC
		LIMIT ?`, userID, sessionListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]models.ConversationSession, 0)
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}
