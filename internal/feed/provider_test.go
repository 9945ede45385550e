package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbradar/internal/exchange"
	"arbradar/internal/model"
	"arbradar/internal/simulator"
)

func newTestProvider(t *testing.T, mode string) *Provider {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim := simulator.New(logger, simulator.WithSeed(42))
	p, err := NewProvider(context.Background(), logger, sim, mode)
	require.NoError(t, err)
	return p
}

func TestProvider_SimulatorTick(t *testing.T) {
	p := newTestProvider(t, model.ModeSimulator)

	pairs := p.Pairs()
	require.NotEmpty(t, pairs)
	assert.True(t, slices.IsSorted(pairs))

	snap, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ModeSimulator, snap.Mode)
	assert.Equal(t, len(pairs), snap.PairCount)
	assert.Equal(t, []string{simulator.VenueBinance, simulator.VenuePoloniex}, snap.Venues)
	assert.Len(t, snap.Quotes, len(pairs))
	for pair, byVenue := range snap.Quotes {
		assert.Len(t, byVenue, 2, pair)
		for venue, q := range byVenue {
			assert.Equal(t, venue, q.Venue)
			assert.Equal(t, pair, q.Pair)
		}
	}
	assert.Len(t, snap.Statuses, 2)
}

func TestProvider_LiveMode(t *testing.T) {
	p := newTestProvider(t, model.ModeLive)
	assert.Empty(t, p.Pairs())

	snap, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Quotes)
	assert.Zero(t, snap.PairCount)
	for _, st := range snap.Statuses {
		assert.Equal(t, model.Disconnected, st.State)
	}
}

func TestProvider_ModeEpochChangesOnEverySwitch(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, model.ModeSimulator)

	first, err := p.Tick(ctx)
	require.NoError(t, err)

	require.NoError(t, p.SetMode(ctx, model.ModeLive))
	require.NoError(t, p.SetMode(ctx, model.ModeSimulator))

	second, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Mode, second.Mode)
	assert.NotEqual(t, first.ModeEpoch, second.ModeEpoch)
	assert.NotEmpty(t, p.Pairs(), "returning to simulator recomputes pairs")
}

func TestProvider_SetModeUnknownKeepsState(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, model.ModeSimulator)
	epoch := p.epoch

	err := p.SetMode(ctx, "Paper")
	require.Error(t, err)
	assert.Equal(t, model.ModeSimulator, p.Mode())
	assert.Equal(t, epoch, p.epoch)
}

func TestProvider_ResetUniverse(t *testing.T) {
	p := newTestProvider(t, model.ModeSimulator)

	pairs, err := p.ResetUniverse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.Pairs(), pairs)
	assert.ElementsMatch(t, p.sim.Pairs(), pairs)
}

type stubClient struct {
	exchange.VenueClient
	connectErr  error
	disconnects int
}

func (c *stubClient) Connect(ctx context.Context) error { return c.connectErr }

func (c *stubClient) Disconnect() error {
	c.disconnects++
	return nil
}

func TestProvider_SetModeConnectFailureKeepsOldClients(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t, model.ModeSimulator)
	old := map[string]exchange.VenueClient{
		simulator.VenueBinance:  &stubClient{},
		simulator.VenuePoloniex: &stubClient{},
	}
	p.clients = old
	epoch := p.epoch

	fresh := map[string]*stubClient{
		simulator.VenueBinance:  {},
		simulator.VenuePoloniex: {connectErr: errors.New("handshake refused")},
	}
	p.newClient = func(mode, venue string) (exchange.VenueClient, error) {
		return fresh[venue], nil
	}

	err := p.SetMode(ctx, model.ModeLive)
	require.ErrorContains(t, err, "handshake refused")
	assert.Equal(t, model.ModeSimulator, p.Mode())
	assert.Equal(t, epoch, p.epoch)
	assert.Equal(t, old, p.clients)
	for venue, c := range old {
		assert.Zero(t, c.(*stubClient).disconnects, venue)
	}
	assert.Equal(t, 1, fresh[simulator.VenueBinance].disconnects, "connected part of the new set is released")
}
