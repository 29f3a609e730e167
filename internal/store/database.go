package store

import (
	"context"
	"fmt"

	"twin-assistant-backend/internal/db"
)

// DatabaseStore stores exchanges in PostgreSQL
type DatabaseStore struct {
	db *db.DB
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// Record inserts one exchange
func (ds *DatabaseStore) Record(ctx context.Context, e Exchange) error {
	if e.ID == "" {
		return fmt.Errorf("exchange id is required")
	}

	query := `
		INSERT INTO agent_exchanges (id, mode, turns, prompt, reply, status, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := ds.db.ExecContext(ctx, query, e.ID, e.Mode, e.Turns, e.Prompt, e.Reply, e.Status, e.DurationMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}

	return nil
}

// Recent returns the newest exchanges first
func (ds *DatabaseStore) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, mode, turns, prompt, reply, status, duration_ms, created_at
		FROM agent_exchanges
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := ds.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.Mode, &e.Turns, &e.Prompt, &e.Reply, &e.Status, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}

	return out, nil
}
