// Package session is the boundary between user intents and the scan
// controller: it rejects unsupported operations and persists user settings.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"arbradar/internal/model"
	"arbradar/internal/radar"
)

// ErrScanUnsupported is returned when scanning is requested in a mode with no
// functioning venue clients.
var ErrScanUnsupported = errors.New("scanning is not supported in this mode")

// Controller is the part of the scan controller a session drives.
type Controller interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
	Operational() bool
	Mode() string
	RefreshPairs(ctx context.Context) error
	SetFilters(ctx context.Context, f model.FilterSettings) error
	Filters() model.FilterSettings
}

// Persister stores the user-owned settings.
type Persister interface {
	Persist(filters model.FilterSettings, favorites []string) error
}

// Discard is a Persister that keeps nothing.
var Discard Persister = discard{}

type discard struct{}

func (discard) Persist(model.FilterSettings, []string) error { return nil }

type Session struct {
	logger    *slog.Logger
	ctrl      Controller
	favorites *radar.Favorites
	store     Persister
}

// New creates a session. A nil store is replaced with Discard.
func New(logger *slog.Logger, ctrl Controller, favorites *radar.Favorites, store Persister) *Session {
	if store == nil {
		store = Discard
	}
	return &Session{
		logger:    logger.With("component", "session"),
		ctrl:      ctrl,
		favorites: favorites,
		store:     store,
	}
}

// Start begins scanning unless the active mode cannot scan.
func (s *Session) Start(ctx context.Context) error {
	if !s.ctrl.Operational() {
		return fmt.Errorf("%w: %s", ErrScanUnsupported, s.ctrl.Mode())
	}
	s.ctrl.Start(ctx)
	return nil
}

func (s *Session) Stop() {
	s.ctrl.Stop()
}

func (s *Session) RefreshPairs(ctx context.Context) error {
	return s.ctrl.RefreshPairs(ctx)
}

// ApplyFilters hands the settings to the controller and persists the settings
// it accepted.
// Switching to a mode that cannot scan stops a running scan.
func (s *Session) ApplyFilters(ctx context.Context, f model.FilterSettings) error {
	if err := s.ctrl.SetFilters(ctx, f); err != nil {
		return err
	}
	if s.ctrl.Running() && !s.ctrl.Operational() {
		s.ctrl.Stop()
		s.logger.Warn("Scan stopped, mode cannot scan", "mode", s.ctrl.Mode())
	}
	s.persist(s.ctrl.Filters())
	return nil
}

// ToggleFavorite flips a pair's favorite state, republishes and persists.
func (s *Session) ToggleFavorite(ctx context.Context, pair string) (bool, error) {
	starred := s.favorites.Toggle(pair)
	f := s.ctrl.Filters()
	if err := s.ctrl.SetFilters(ctx, f); err != nil {
		return starred, err
	}
	s.persist(s.ctrl.Filters())
	return starred, nil
}

func (s *Session) persist(f model.FilterSettings) {
	if err := s.store.Persist(f, s.favorites.List()); err != nil {
		s.logger.Error("Failed to save settings", "error", err)
	}
}
