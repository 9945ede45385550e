package events

import (
	"context"
	"log/slog"
	"time"

	"arbradar/internal/database"
	"arbradar/internal/model"
)

const repositoryWriteTimeout = 3 * time.Second

// RepositorySink persists events through a database repository.
type RepositorySink struct {
	repo   database.Repository
	logger *slog.Logger
}

func NewRepositorySink(repo database.Repository, logger *slog.Logger) *RepositorySink {
	return &RepositorySink{repo: repo, logger: logger.With("component", "event_store")}
}

func (s *RepositorySink) Emit(event model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), repositoryWriteTimeout)
	defer cancel()
	if err := s.repo.LogEvent(ctx, event); err != nil {
		s.logger.Error("Failed to store event", "event_id", event.ID, "error", err)
	}
}
