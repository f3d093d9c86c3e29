package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"relay/internal/domain"
)

// Store is the durable log behind the in-memory context. It is append-only;
// the router never reads it on the hot path.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS context_entries (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn_idx BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_context_entries_session_created ON context_entries(session_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS dispatches (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			capability TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			error_kind TEXT,
			error_msg TEXT,
			output TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_session_created ON dispatches(session_id, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveEntry(ctx context.Context, sessionID string, entry domain.ContextEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO context_entries(session_id, turn_idx, role, content, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, entry.Turn, string(entry.Role), entry.Content, entry.Payload, entry.Timestamp)
	return err
}

func (s *Store) SaveDispatch(ctx context.Context, sessionID string, result domain.DispatchResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dispatches(session_id, capability, success, error_kind, error_msg, output, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sessionID, result.Capability, result.Success, string(result.ErrorKind), result.ErrorMsg, result.Output, result.Duration.Milliseconds())
	return err
}

// RecentEntries returns the last limit entries for a session in
// chronological order. Serves the inspection API, not dispatch.
func (s *Store) RecentEntries(ctx context.Context, sessionID string, limit int) ([]domain.ContextEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT turn_idx, role, content, COALESCE(payload, 'null'::jsonb), created_at
		FROM context_entries
		WHERE session_id=$1
		ORDER BY id DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContextEntry
	for rows.Next() {
		var entry domain.ContextEntry
		var role string
		if err := rows.Scan(&entry.Turn, &role, &entry.Content, &entry.Payload, &entry.Timestamp); err != nil {
			return nil, err
		}
		entry.Role = domain.Role(role)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
