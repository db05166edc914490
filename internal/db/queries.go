package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// GetValue returns the stored JSON document for key
func (q *Queries) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := q.Pool.QueryRow(ctx,
		"SELECT value::text FROM editor_state WHERE key = $1",
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// PutValue inserts or replaces the JSON document for key
func (q *Queries) PutValue(ctx context.Context, key string, value []byte) error {
	_, err := q.Pool.Exec(ctx,
		`INSERT INTO editor_state (key, value, updated_at) VALUES ($1, $2::json, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, string(value),
	)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}
