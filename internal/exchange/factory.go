package exchange

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"arbradar/internal/model"
	"arbradar/internal/simulator"
)

// ErrUnknownMode is returned for a data source mode without a client implementation.
var ErrUnknownMode = errors.New("unknown data source mode")

// NewClient creates a venue client for the given data source mode.
func NewClient(mode, venue string, sim *simulator.Simulator, logger *slog.Logger) (VenueClient, error) {
	switch mode {
	case model.ModeSimulator:
		return NewSimulatedClient(venue, sim), nil
	case model.ModeLive:
		return NewLiveClient(venue, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

// ParseMode maps a data source name to a known mode, ignoring case and
// surrounding space. Empty or unknown names fall back to the Simulator.
func ParseMode(name string) string {
	name = strings.TrimSpace(name)
	for _, mode := range []string{model.ModeSimulator, model.ModeLive} {
		if strings.EqualFold(name, mode) {
			return mode
		}
	}
	return model.ModeSimulator
}

// Operational reports whether a mode has functioning venue clients.
func Operational(mode string) bool {
	return mode == model.ModeSimulator
}
