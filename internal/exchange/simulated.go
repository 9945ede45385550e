package exchange

import (
	"context"

	"arbradar/internal/model"
	"arbradar/internal/simulator"
)

// SimulatedClient serves one venue of the shared market simulator.
type SimulatedClient struct {
	name string
	sim  *simulator.Simulator
}

// NewSimulatedClient creates a client for the named simulator venue.
func NewSimulatedClient(name string, sim *simulator.Simulator) *SimulatedClient {
	return &SimulatedClient{name: name, sim: sim}
}

func (c *SimulatedClient) Name() string {
	return c.name
}

func (c *SimulatedClient) Connect(ctx context.Context) error {
	return nil
}

func (c *SimulatedClient) Disconnect() error {
	return nil
}

func (c *SimulatedClient) ListPairs(ctx context.Context) ([]string, error) {
	return c.sim.Pairs(), nil
}

func (c *SimulatedClient) GetBestQuotes(ctx context.Context, pairs []string) (map[string]model.Quote, error) {
	quotes := make(map[string]model.Quote, len(pairs))
	for _, pair := range pairs {
		if q, ok := c.sim.Quote(pair, c.name); ok {
			quotes[pair] = q
		}
	}
	return quotes, nil
}

func (c *SimulatedClient) Status() model.VenueStatus {
	return c.sim.Statuses()[c.name]
}
