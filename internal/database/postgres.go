package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbradar/internal/model"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS radar_events (
	id TEXT PRIMARY KEY,
	level VARCHAR(10) NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS radar_events_created_at_idx ON radar_events (created_at DESC);`

// PostgresRepository stores the radar event log in PostgreSQL.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository opens a connection pool and verifies it with a ping.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Migrate creates the event table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// LogEvent inserts one event. Re-inserting the same ID is a no-op.
func (r *PostgresRepository) LogEvent(ctx context.Context, event model.Event) error {
	const insert = `
INSERT INTO radar_events (id, level, message, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, insert, event.ID, string(event.Level), event.Message, event.At); err != nil {
		return fmt.Errorf("postgres: log event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events first.
func (r *PostgresRepository) RecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	const query = `
SELECT id, level, message, created_at
FROM radar_events
ORDER BY created_at DESC
LIMIT $1`
	rows, err := r.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Event, error) {
		var (
			e     model.Event
			level string
		)
		err := row.Scan(&e.ID, &level, &e.Message, &e.At)
		e.Level = model.EventLevel(level)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events: %w", err)
	}
	return events, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

var _ Repository = (*PostgresRepository)(nil)
