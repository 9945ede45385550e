package exchange

import (
	"context"

	"arbradar/internal/model"
)

// VenueClient defines the uniform interface for every venue feed, synthetic or live.
type VenueClient interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	ListPairs(ctx context.Context) ([]string, error)
	// GetBestQuotes returns the current quote for each requested pair the venue knows.
	GetBestQuotes(ctx context.Context, pairs []string) (map[string]model.Quote, error)
	Status() model.VenueStatus
}
