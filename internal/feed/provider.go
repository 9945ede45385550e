// Package feed merges per-venue quotes into one snapshot per tick.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"arbradar/internal/exchange"
	"arbradar/internal/model"
	"arbradar/internal/simulator"
)

// Provider owns one venue client per venue for the active data source mode.
// It is not safe for concurrent use.
type Provider struct {
	logger  *slog.Logger
	sim     *simulator.Simulator
	venues  []string
	mode    string
	epoch   uint64
	clients map[string]exchange.VenueClient
	pairs   []string
	now     func() time.Time

	newClient func(mode, venue string) (exchange.VenueClient, error)
}

// NewProvider creates a provider in the given mode.
func NewProvider(ctx context.Context, logger *slog.Logger, sim *simulator.Simulator, mode string) (*Provider, error) {
	p := &Provider{
		logger: logger.With("component", "feed_provider"),
		sim:    sim,
		venues: sim.Venues(),
		now:    time.Now,
	}
	p.newClient = func(mode, venue string) (exchange.VenueClient, error) {
		return exchange.NewClient(mode, venue, sim, p.logger)
	}
	if err := p.SetMode(ctx, mode); err != nil {
		return nil, err
	}
	return p, nil
}

// Mode returns the active data source mode.
func (p *Provider) Mode() string {
	return p.mode
}

// Venues returns venue names in routing order.
func (p *Provider) Venues() []string {
	return slices.Clone(p.venues)
}

// Pairs returns the discoverable pairs.
func (p *Provider) Pairs() []string {
	return slices.Clone(p.pairs)
}

// SetMode rebuilds the client set. Every call starts a new mode epoch, so a
// consumer can tell a switch happened even when it lands on the same mode.
func (p *Provider) SetMode(ctx context.Context, mode string) error {
	clients := make(map[string]exchange.VenueClient, len(p.venues))
	for _, venue := range p.venues {
		c, err := p.newClient(mode, venue)
		if err != nil {
			return fmt.Errorf("feed provider: build %s client: %w", venue, err)
		}
		clients[venue] = c
	}

	// The old set stays live until every new client is connected.
	for i, venue := range p.venues {
		if err := clients[venue].Connect(ctx); err != nil {
			for _, done := range p.venues[:i] {
				_ = clients[done].Disconnect()
			}
			return fmt.Errorf("feed provider: connect %s: %w", venue, err)
		}
	}
	for name, c := range p.clients {
		if err := c.Disconnect(); err != nil {
			p.logger.Warn("Failed to disconnect client", "venue", name, "error", err)
		}
	}

	p.clients = clients
	p.mode = mode
	p.epoch++
	p.pairs = nil
	p.logger.Info("Data source mode set", "mode", mode, "epoch", p.epoch)

	if exchange.Operational(mode) {
		if _, err := p.RefreshPairs(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RefreshPairs recomputes the pairs listed by every venue, sorted.
func (p *Provider) RefreshPairs(ctx context.Context) ([]string, error) {
	if !exchange.Operational(p.mode) {
		p.pairs = nil
		return []string{}, nil
	}

	var common map[string]struct{}
	for _, venue := range p.venues {
		listed, err := p.clients[venue].ListPairs(ctx)
		if err != nil {
			return nil, fmt.Errorf("feed provider: list %s pairs: %w", venue, err)
		}
		set := make(map[string]struct{}, len(listed))
		for _, pair := range listed {
			if common == nil {
				set[pair] = struct{}{}
			} else if _, ok := common[pair]; ok {
				set[pair] = struct{}{}
			}
		}
		common = set
	}

	p.pairs = slices.Sorted(maps.Keys(common))
	return slices.Clone(p.pairs), nil
}

// ResetUniverse draws a new simulated pair universe and rediscovers pairs.
func (p *Provider) ResetUniverse(ctx context.Context) ([]string, error) {
	if exchange.Operational(p.mode) {
		p.sim.GeneratePairs()
	}
	return p.RefreshPairs(ctx)
}

// Tick advances the simulator when active and merges both venues' quotes.
func (p *Provider) Tick(ctx context.Context) (model.Snapshot, error) {
	snap := model.Snapshot{
		Quotes:    make(map[string]map[string]model.Quote, len(p.pairs)),
		Statuses:  make(map[string]model.VenueStatus, len(p.clients)),
		Venues:    slices.Clone(p.venues),
		PairCount: len(p.pairs),
		Mode:      p.mode,
		ModeEpoch: p.epoch,
		TakenAt:   p.now(),
	}

	if exchange.Operational(p.mode) {
		p.sim.Tick()
		for _, venue := range p.venues {
			quotes, err := p.clients[venue].GetBestQuotes(ctx, p.pairs)
			if err != nil {
				return model.Snapshot{}, fmt.Errorf("feed provider: %s quotes: %w", venue, err)
			}
			for pair, q := range quotes {
				if snap.Quotes[pair] == nil {
					snap.Quotes[pair] = make(map[string]model.Quote, len(p.venues))
				}
				snap.Quotes[pair][venue] = q
			}
		}
	}

	for name, c := range p.clients {
		snap.Statuses[name] = c.Status()
	}
	return snap, nil
}
