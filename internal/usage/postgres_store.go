package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const schema = `
	CREATE TABLE IF NOT EXISTS insight_attempts (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		request_id  TEXT NOT NULL,
		provider    TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		latency_ms  BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS insight_attempts_created_at_idx ON insight_attempts (created_at);
`

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the attempt table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate insight_attempts: %w", err)
	}
	return nil
}

func (s *PostgresStore) LogAttempt(ctx context.Context, log *AttemptLog) error {
	query := `
		INSERT INTO insight_attempts (request_id, provider, outcome, latency_ms)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		log.RequestID, log.Provider, log.Outcome, log.LatencyMs,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log attempt: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetAttempts(ctx context.Context, from, to time.Time) ([]*AttemptLog, error) {
	query := `
		SELECT id, request_id, provider, outcome, latency_ms, created_at
		FROM insight_attempts
		WHERE created_at BETWEEN $1 AND $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var logs []*AttemptLog
	for rows.Next() {
		var l AttemptLog
		err := rows.Scan(&l.ID, &l.RequestID, &l.Provider, &l.Outcome, &l.LatencyMs, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return logs, nil
}

func (s *PostgresStore) CountByOutcome(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM insight_attempts
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY outcome
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attempt count: %w", err)
		}
		counts[outcome] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempt counts: %w", err)
	}

	return counts, nil
}
