package database

import (
	"context"

	"arbradar/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	Migrate(ctx context.Context) error
	LogEvent(ctx context.Context, event model.Event) error
	RecentEvents(ctx context.Context, limit int) ([]model.Event, error)
}
