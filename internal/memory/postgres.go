package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation logs in PostgreSQL. Turn embeddings can
// be stored alongside the text so a future deployment can push similarity
// search into pgvector instead of the in-process index.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(1536),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_client_created ON conversation_turns (client_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, clientID string, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (id, client_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		turn.ID,
		clientID,
		string(turn.Role),
		turn.Text,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, clientID string, n int) ([]Turn, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, role, content, created_at
		 FROM conversation_turns WHERE client_id=$1 ORDER BY created_at DESC LIMIT $2`,
		clientID,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	items := make([]Turn, 0, n)
	for rows.Next() {
		var t Turn
		var role string
		if err := rows.Scan(&t.ID, &role, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = Role(role)
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Reset(ctx context.Context, clientID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns WHERE client_id=$1`, clientID); err != nil {
		return fmt.Errorf("reset client: %w", err)
	}
	return nil
}

func (s *PostgresStore) Sweep(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	rows, err := s.pool.Query(ctx,
		`SELECT client_id FROM conversation_turns
		 GROUP BY client_id HAVING max(created_at) < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale clients: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stale client: %w", err)
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale clients: %w", err)
	}
	if len(stale) == 0 {
		return nil, nil
	}

	// Guard the delete with the same cutoff so a session revived between the
	// two statements is not torn down mid-conversation.
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns
		 WHERE client_id = ANY($1)
		   AND client_id IN (
			SELECT client_id FROM conversation_turns
			GROUP BY client_id HAVING max(created_at) < $2
		   )`, stale, cutoff); err != nil {
		return nil, fmt.Errorf("delete stale clients: %w", err)
	}
	return stale, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
