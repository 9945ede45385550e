// Package simulator produces a synthetic two-venue market: a random pair
// universe, drifting prices and intermittent venue connectivity faults.
package simulator

import (
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"arbradar/internal/model"
)

// Default venue names, in routing order.
const (
	VenueBinance  = "Binance"
	VenuePoloniex = "Poloniex"
)

var (
	baseAssets = []string{
		"BTC", "ETH", "SOL", "XRP", "ADA", "DOT", "AVAX",
		"MATIC", "LTC", "LINK", "ATOM", "NEAR", "APT", "SUI",
	}
	quoteAssets       = []string{"USDT", "USD", "BTC", "ETH"}
	leveragedSuffixes = []string{"UP", "DOWN"}
)

const (
	minPairs         = 220
	maxPairs         = 380
	leveragedChance  = 0.12
	priceDriftPct    = 0.6
	volumeDriftPct   = 0.8
	minBasePrice     = 0.01
	minVolume        = 500.0
	connectedJitter  = 0.18
	degradedJitter   = 0.35
	minSpreadPct     = 0.05
	maxSpreadPct     = 0.2
	minSpreadAbs     = 0.0005
	degradedLatency  = 2.5
	offlineLatency   = 5.0
	initialPriceLow  = 0.5
	initialPriceHigh = 60000.0
	initialVolLow    = 10_000.0
	initialVolHigh   = 1_000_000.0
)

// VenueSpec names a simulated venue and its baseline feed latency.
type VenueSpec struct {
	Name    string
	Latency time.Duration
}

// DefaultVenues are the two simulated venues.
var DefaultVenues = []VenueSpec{
	{Name: VenueBinance, Latency: 120 * time.Millisecond},
	{Name: VenuePoloniex, Latency: 180 * time.Millisecond},
}

type pairState struct {
	basePrice  float64
	volume24h  float64
	lastUpdate time.Time
}

type quoteKey struct {
	pair  string
	venue string
}

// Simulator owns the pair universe, per-pair price state, the last quote per
// (pair, venue) and the connectivity state of every venue. It is not safe for
// concurrent use; callers serialize access.
type Simulator struct {
	logger   *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
	venues   []VenueSpec
	pairs    []string
	state    map[string]*pairState
	quotes   map[quoteKey]model.Quote
	statuses map[string]model.VenueStatus
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSeed makes the random stream reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// WithVenues replaces the simulated venue set.
func WithVenues(venues ...VenueSpec) Option {
	return func(s *Simulator) {
		s.venues = slices.Clone(venues)
	}
}

// New creates a Simulator with a freshly generated pair universe and every
// venue connected.
func New(logger *slog.Logger, opts ...Option) *Simulator {
	s := &Simulator{
		logger: logger.With("component", "simulator"),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		now:    time.Now,
		venues: slices.Clone(DefaultVenues),
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.now()
	s.statuses = make(map[string]model.VenueStatus, len(s.venues))
	for _, v := range s.venues {
		s.statuses[v.Name] = model.VenueStatus{
			Venue:     v.Name,
			State:     model.Connected,
			Latency:   v.Latency,
			ChangedAt: now,
		}
	}
	s.GeneratePairs()
	return s
}

// Venues returns the simulated venue names in routing order.
func (s *Simulator) Venues() []string {
	names := make([]string, 0, len(s.venues))
	for _, v := range s.venues {
		names = append(names, v.Name)
	}
	return names
}

// GeneratePairs draws a new pair universe and discards all per-pair state,
// including cached quotes. Every pair is seeded with an initial quote per venue.
func (s *Simulator) GeneratePairs() []string {
	s.pairs = s.drawPairs()
	now := s.now()
	s.state = make(map[string]*pairState, len(s.pairs))
	s.quotes = make(map[quoteKey]model.Quote, len(s.pairs)*len(s.venues))
	for _, pair := range s.pairs {
		st := &pairState{
			basePrice:  s.uniform(initialPriceLow, initialPriceHigh),
			volume24h:  s.uniform(initialVolLow, initialVolHigh),
			lastUpdate: now,
		}
		s.state[pair] = st
		for _, v := range s.venues {
			s.quotes[quoteKey{pair, v.Name}] = s.makeQuote(v.Name, pair, st, now, connectedJitter)
		}
	}
	s.logger.Info("Pair universe generated", "pairs", len(s.pairs))
	return slices.Clone(s.pairs)
}

// universeSize is the number of distinct pairs the asset pools can produce.
func universeSize() int {
	plain := 0
	for _, b := range baseAssets {
		for _, q := range quoteAssets {
			if b != q {
				plain++
			}
		}
	}
	return plain * (1 + len(leveragedSuffixes))
}

func (s *Simulator) drawPairs() []string {
	total := minPairs + s.rng.IntN(maxPairs-minPairs+1)
	// The pools cannot fill the drawn count, so cap it to keep the loop finite.
	total = min(total, universeSize())

	seen := make(map[string]struct{}, total)
	pairs := make([]string, 0, total)
	for len(pairs) < total {
		base := baseAssets[s.rng.IntN(len(baseAssets))]
		quote := quoteAssets[s.rng.IntN(len(quoteAssets))]
		if base == quote {
			continue
		}
		if s.rng.Float64() < leveragedChance {
			base += leveragedSuffixes[s.rng.IntN(len(leveragedSuffixes))]
		}
		pair := base + "/" + quote
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs
}

// Tick advances connectivity, then drifts every pair and synthesizes a quote
// per venue. A disconnected venue keeps serving its previous quote.
func (s *Simulator) Tick() {
	now := s.now()
	s.stepStatuses(now)
	s.tickPrices(now)
}

func (s *Simulator) tickPrices(now time.Time) {
	for _, pair := range s.pairs {
		st := s.state[pair]
		st.basePrice = max(minBasePrice, st.basePrice*(1+s.uniform(-priceDriftPct, priceDriftPct)/100))
		st.volume24h = max(minVolume, st.volume24h*(1+s.uniform(-volumeDriftPct, volumeDriftPct)/100))
		st.lastUpdate = now

		for _, v := range s.venues {
			switch s.statuses[v.Name].State {
			case model.Disconnected:
				continue
			case model.Degraded:
				s.quotes[quoteKey{pair, v.Name}] = s.makeQuote(v.Name, pair, st, now, degradedJitter)
			default:
				s.quotes[quoteKey{pair, v.Name}] = s.makeQuote(v.Name, pair, st, now, connectedJitter)
			}
		}
	}
}

func (s *Simulator) makeQuote(venue, pair string, st *pairState, now time.Time, jitter float64) model.Quote {
	bias := 1 + s.uniform(-jitter, jitter)/100
	mid := st.basePrice * bias
	spread := max(minSpreadAbs, s.uniform(minSpreadPct, maxSpreadPct)/100)
	return model.Quote{
		Venue:     venue,
		Pair:      pair,
		Bid:       mid * (1 - spread),
		Ask:       mid * (1 + spread),
		Volume24h: st.volume24h * s.uniform(0.7, 1.3),
		Timestamp: now,
	}
}

func (s *Simulator) stepStatuses(now time.Time) {
	for _, v := range s.venues {
		cur := s.statuses[v.Name]
		next := nextState(cur.State, s.rng.Float64())

		status := model.VenueStatus{
			Venue:     v.Name,
			State:     next,
			Latency:   latencyFor(v.Latency, next),
			ChangedAt: cur.ChangedAt,
		}
		if next != cur.State {
			status.ChangedAt = now
			s.logger.Debug("Venue state changed", "venue", v.Name, "from", cur.State, "to", next)
		}
		s.statuses[v.Name] = status
	}
}

// nextState applies one transition check using a single draw compared against
// cumulative thresholds.
func nextState(cur model.ConnState, roll float64) model.ConnState {
	switch {
	case cur == model.Connected && roll < 0.02:
		return model.Degraded
	case cur == model.Degraded && roll < 0.04:
		return model.Disconnected
	case cur == model.Degraded && roll < 0.18:
		return model.Connected
	case cur == model.Disconnected && roll < 0.12:
		return model.Connected
	}
	return cur
}

func latencyFor(base time.Duration, state model.ConnState) time.Duration {
	switch state {
	case model.Degraded:
		return time.Duration(float64(base) * degradedLatency)
	case model.Disconnected:
		return time.Duration(float64(base) * offlineLatency)
	}
	return base
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// Pairs returns a copy of the current pair universe.
func (s *Simulator) Pairs() []string {
	return slices.Clone(s.pairs)
}

// Statuses returns a copy of every venue's connectivity state.
func (s *Simulator) Statuses() map[string]model.VenueStatus {
	return maps.Clone(s.statuses)
}

// Quote returns the latest quote a venue published for a pair.
func (s *Simulator) Quote(pair, venue string) (model.Quote, bool) {
	q, ok := s.quotes[quoteKey{pair, venue}]
	return q, ok
}
