package exchange

import (
	"context"
	"log/slog"
	"time"

	"arbradar/internal/model"
)

// LiveClient is the placeholder for a real exchange integration. It never
// connects: the status is always Disconnected and no quotes are served.
type LiveClient struct {
	name   string
	logger *slog.Logger
	status model.VenueStatus
}

// NewLiveClient creates a disconnected live client.
func NewLiveClient(name string, logger *slog.Logger) *LiveClient {
	c := &LiveClient{name: name, logger: logger.With("component", "live_client", "venue", name)}
	c.reset()
	return c
}

func (c *LiveClient) reset() {
	c.status = model.VenueStatus{
		Venue:     c.name,
		State:     model.Disconnected,
		ChangedAt: time.Now(),
	}
}

func (c *LiveClient) Name() string {
	return c.name
}

func (c *LiveClient) Connect(ctx context.Context) error {
	c.logger.Info("LiveClient: live feed not available, staying disconnected")
	c.reset()
	return nil
}

func (c *LiveClient) Disconnect() error {
	c.reset()
	return nil
}

func (c *LiveClient) ListPairs(ctx context.Context) ([]string, error) {
	return []string{}, nil
}

func (c *LiveClient) GetBestQuotes(ctx context.Context, pairs []string) (map[string]model.Quote, error) {
	return map[string]model.Quote{}, nil
}

func (c *LiveClient) Status() model.VenueStatus {
	return c.status
}
