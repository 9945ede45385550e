package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"arbradar/internal/events"
	"arbradar/internal/exchange"
	"arbradar/internal/model"
	"arbradar/internal/radar"
)

// FeedProvider supplies one merged snapshot per tick.
type FeedProvider interface {
	Tick(ctx context.Context) (model.Snapshot, error)
	Mode() string
	SetMode(ctx context.Context, mode string) error
	ResetUniverse(ctx context.Context) ([]string, error)
}

// RowSink receives the published rows after every tick or republish.
type RowSink interface {
	UpdateRows(rows []model.OpportunityRow)
}

// UpdateListener receives the aggregate status of every publish.
type UpdateListener interface {
	OnUpdate(update Update)
}

// ListenerFunc adapts a function to UpdateListener.
type ListenerFunc func(Update)

func (f ListenerFunc) OnUpdate(u Update) { f(u) }

// FavoriteChecker answers whether the user starred a pair.
type FavoriteChecker interface {
	IsFavorite(pair string) bool
}

// Health is the aggregate feed health reported with every update.
type Health struct {
	Mode     string
	LastTick time.Time
	// QuoteAge is the age of the freshest quote per venue.
	QuoteAge map[string]time.Duration
}

// Update is the per-publish status report.
type Update struct {
	Latency     time.Duration
	PairCount   int
	SignalCount int
	Statuses    map[string]model.VenueStatus
	Health      Health
}

func (u Update) LatencySeconds() float64 {
	return u.Latency.Seconds()
}

// Dependencies are the optional collaborators of a Controller. Nil fields are
// replaced with no-op implementations.
type Dependencies struct {
	Rows      RowSink
	Listener  UpdateListener
	Events    events.Sink
	Favorites FavoriteChecker
	Clock     func() time.Time
}

type noRows struct{}

func (noRows) UpdateRows([]model.OpportunityRow) {}

type noListener struct{}

func (noListener) OnUpdate(Update) {}

type noFavorites struct{}

func (noFavorites) IsFavorite(string) bool { return false }

// Controller drives the scan loop. Ticks, filter changes and pair refreshes
// are serialized by one mutex so they never overlap.
type Controller struct {
	logger    *slog.Logger
	provider  FeedProvider
	rowSink   RowSink
	listener  UpdateListener
	events    events.Sink
	favorites FavoriteChecker
	now       func() time.Time

	mu        sync.Mutex
	filters   model.FilterSettings
	lastRows  []model.OpportunityRow
	published []model.OpportunityRow
	previous  []model.OpportunityRow
	statuses  map[string]model.VenueStatus
	states    map[string]model.ConnState
	alertedAt map[string]time.Time
	epoch     uint64
	epochSeen bool
	pairCount int
	health    Health
	lastTick  time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	reset  chan time.Duration
}

// NewController creates a stopped controller. The data source in filters is
// replaced with the provider's active mode.
func NewController(logger *slog.Logger, provider FeedProvider, filters model.FilterSettings, deps Dependencies) *Controller {
	filters.DataSource = provider.Mode()
	c := &Controller{
		logger:    logger.With("component", "arbitrage_controller"),
		provider:  provider,
		rowSink:   deps.Rows,
		listener:  deps.Listener,
		events:    deps.Events,
		favorites: deps.Favorites,
		now:       deps.Clock,
		filters:   filters,
		statuses:  make(map[string]model.VenueStatus),
		states:    make(map[string]model.ConnState),
		alertedAt: make(map[string]time.Time),
	}
	if c.rowSink == nil {
		c.rowSink = noRows{}
	}
	if c.listener == nil {
		c.listener = noListener{}
	}
	if c.events == nil {
		c.events = events.Discard
	}
	if c.favorites == nil {
		c.favorites = noFavorites{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.lastTick = c.now()
	return c
}

func (c *Controller) emit(level model.EventLevel, msg string) {
	c.events.Emit(model.NewEvent(level, msg, c.now()))
}

// Tick runs one scan step. Any failure, including a panic, abandons the tick,
// is reported as an ERROR event and returned; the loop keeps running.
func (c *Controller) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportTick(ctx)
}

// scheduledTick is the timer's Tick. It does nothing once ctx is cancelled,
// including when the scan stopped while it waited for the lock.
func (c *Controller) scheduledTick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_ = c.reportTick(ctx)
}

func (c *Controller) reportTick(ctx context.Context) error {
	if err := c.safeTick(ctx); err != nil {
		c.logger.Error("Tick failed", "error", err)
		c.emit(model.LevelError, "Tick failed: "+err.Error())
		return err
	}
	return nil
}

func (c *Controller) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.tick(ctx)
}

func (c *Controller) tick(ctx context.Context) error {
	snap, err := c.provider.Tick(ctx)
	if err != nil {
		return fmt.Errorf("provider tick: %w", err)
	}
	now := c.now()

	rows := make([]model.OpportunityRow, 0, len(snap.Quotes))
	for _, pair := range slices.Sorted(maps.Keys(snap.Quotes)) {
		quotes := snap.Quotes[pair]
		if !quotedByAll(quotes, snap.Venues) {
			continue
		}
		row, err := c.buildRow(pair, quotes, snap, now)
		if err != nil {
			return fmt.Errorf("pair %s: %w", pair, err)
		}
		rows = append(rows, row)
	}

	if !c.epochSeen || snap.ModeEpoch != c.epoch {
		c.epoch = snap.ModeEpoch
		c.epochSeen = true
		clear(c.alertedAt)
	}
	c.logStatusChanges(snap)

	c.lastRows = rows
	c.statuses = maps.Clone(snap.Statuses)
	c.pairCount = snap.PairCount
	c.health = Health{
		Mode:     snap.Mode,
		LastTick: now,
		QuoteAge: quoteAges(snap, now),
	}
	latency := now.Sub(c.lastTick)
	c.lastTick = now

	published := c.publish(latency)
	c.alert(published, now)
	return nil
}

func quotedByAll(quotes map[string]model.Quote, venues []string) bool {
	if len(venues) == 0 {
		return false
	}
	for _, v := range venues {
		if _, ok := quotes[v]; !ok {
			return false
		}
	}
	return true
}

func (c *Controller) buildRow(pair string, quotes map[string]model.Quote, snap model.Snapshot, now time.Time) (model.OpportunityRow, error) {
	buy, sell, err := Route(snap.Venues, quotes)
	if err != nil {
		return model.OpportunityRow{}, err
	}

	row := model.OpportunityRow{
		Pair:       pair,
		BuyVenue:   buy.Venue,
		BuyPrice:   buy.Price,
		SellVenue:  sell.Venue,
		SellPrice:  sell.Price,
		ProfitPct:  ProfitPct(buy.Price, sell.Price),
		Spread:     sell.Price - buy.Price,
		Venues:     make(map[string]model.VenuePrices, len(snap.Venues)),
		DataSource: snap.Mode,
	}
	for i, v := range snap.Venues {
		q := quotes[v]
		row.Venues[v] = model.VenuePrices{Bid: q.Bid, Ask: q.Ask}
		if i == 0 || q.Volume24h < row.Volume24h {
			row.Volume24h = q.Volume24h
		}
		if q.Timestamp.After(row.UpdatedAt) {
			row.UpdatedAt = q.Timestamp
		}
	}
	row.Age = now.Sub(row.UpdatedAt)
	return row, nil
}

// assess stamps the settings-dependent fields of a row.
func (c *Controller) assess(row model.OpportunityRow) model.OpportunityRow {
	row.Flags = Flags(row, c.statuses, c.filters)
	row.Quality = Label(row.Flags)
	row.Favorite = c.favorites.IsFavorite(row.Pair)
	return row
}

func (c *Controller) isSignal(row model.OpportunityRow) bool {
	return IsSignal(row, c.statuses, c.filters)
}

func (c *Controller) logStatusChanges(snap model.Snapshot) {
	for _, venue := range snap.Venues {
		st, ok := snap.Statuses[venue]
		if !ok {
			continue
		}
		prev, seen := c.states[venue]
		c.states[venue] = st.State
		if seen && prev != st.State {
			c.emit(model.LevelInfo, fmt.Sprintf("%s status: %s -> %s", venue, prev, st.State))
		}
	}
}

func quoteAges(snap model.Snapshot, now time.Time) map[string]time.Duration {
	latest := make(map[string]time.Time, len(snap.Venues))
	for _, quotes := range snap.Quotes {
		for venue, q := range quotes {
			if q.Timestamp.After(latest[venue]) {
				latest[venue] = q.Timestamp
			}
		}
	}
	ages := make(map[string]time.Duration, len(latest))
	for venue, ts := range latest {
		ages[venue] = now.Sub(ts)
	}
	return ages
}

// publish re-runs the filter pipeline over the last computed rows and
// delivers the result. Callers hold c.mu.
func (c *Controller) publish(latency time.Duration) []model.OpportunityRow {
	assessed := make([]model.OpportunityRow, len(c.lastRows))
	for i, r := range c.lastRows {
		assessed[i] = c.assess(r)
	}
	out := ApplyFilters(assessed, c.filters, c.isSignal)

	c.previous = c.published
	c.published = out

	signals := 0
	for _, r := range out {
		if c.isSignal(r) {
			signals++
		}
	}

	c.rowSink.UpdateRows(slices.Clone(out))
	c.listener.OnUpdate(Update{
		Latency:     latency,
		PairCount:   c.pairCount,
		SignalCount: signals,
		Statuses:    maps.Clone(c.statuses),
		Health: Health{
			Mode:     c.health.Mode,
			LastTick: c.health.LastTick,
			QuoteAge: maps.Clone(c.health.QuoteAge),
		},
	})
	return out
}

// alert emits one SIGNAL event per pair per cooldown window.
func (c *Controller) alert(rows []model.OpportunityRow, now time.Time) {
	cooldown := c.filters.Cooldown()
	for _, r := range rows {
		if !c.isSignal(r) {
			continue
		}
		if last, ok := c.alertedAt[r.Pair]; ok && now.Sub(last) < cooldown {
			continue
		}
		c.alertedAt[r.Pair] = now
		c.emit(model.LevelSignal, radar.SignalText(r))
	}
}

// SetFilters applies new settings and immediately republishes the last rows
// with zero latency. The data source is normalized with exchange.ParseMode,
// so an unknown name selects the Simulator. A different data source switches
// the provider mode first; if that fails nothing changes.
func (c *Controller) SetFilters(ctx context.Context, f model.FilterSettings) error {
	f.DataSource = exchange.ParseMode(f.DataSource)

	c.mu.Lock()
	old := c.filters
	if f.DataSource != c.provider.Mode() {
		if err := c.provider.SetMode(ctx, f.DataSource); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("switch data source: %w", err)
		}
		clear(c.alertedAt)
		c.lastRows = nil
		c.pairCount = 0
		c.emit(model.LevelInfo, "Data source: "+f.DataSource)
	}
	c.filters = f
	c.publish(0)
	c.mu.Unlock()

	if old.TickInterval() != f.TickInterval() {
		c.resetTimer(f.TickInterval())
	}
	return nil
}

// Filters returns the active settings.
func (c *Controller) Filters() model.FilterSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// RefreshPairs draws a new pair universe and clears rows and alert cooldowns.
func (c *Controller) RefreshPairs(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pairs, err := c.provider.ResetUniverse(ctx)
	if err != nil {
		c.emit(model.LevelError, "Pair refresh failed: "+err.Error())
		return fmt.Errorf("refresh pairs: %w", err)
	}
	clear(c.alertedAt)
	c.lastRows = nil
	c.pairCount = len(pairs)
	c.emit(model.LevelInfo, fmt.Sprintf("Pairs refreshed: %d", len(pairs)))
	c.publish(0)
	return nil
}

// Start begins periodic ticking. Starting a running controller does nothing.
func (c *Controller) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return
	}

	c.mu.Lock()
	interval := c.filters.TickInterval()
	c.lastTick = c.now()
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	reset := make(chan time.Duration, 1)
	c.cancel = cancel
	c.done = done
	c.reset = reset
	c.emit(model.LevelInfo, "START scanning")
	c.logger.Info("Scan started", "interval", interval)
	go func() {
		defer close(done)
		c.run(runCtx, interval, reset)
	}()
}

// Stop halts ticking and waits for a tick in progress to finish, so no tick
// runs after it returns. The last completed tick stays queryable. Stopping a
// stopped controller does nothing. Stop must not be called from a sink or
// listener, since those run inside a tick.
func (c *Controller) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.reset = nil
	c.emit(model.LevelInfo, "STOP scanning")
	c.logger.Info("Scan stopped")
}

// Running reports whether the timer is active.
func (c *Controller) Running() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.cancel != nil
}

func (c *Controller) run(ctx context.Context, interval time.Duration, reset <-chan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-reset:
			ticker.Reset(d)
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.scheduledTick(ctx)
		}
	}
}

func (c *Controller) resetTimer(interval time.Duration) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.reset == nil {
		return
	}
	select {
	case <-c.reset:
	default:
	}
	c.reset <- interval
}

// Rows returns the last published rows.
func (c *Controller) Rows() []model.OpportunityRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.published)
}

// PreviousRows returns the rows published before the last ones.
func (c *Controller) PreviousRows() []model.OpportunityRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.previous)
}

// Statuses returns the venue statuses of the last tick.
func (c *Controller) Statuses() map[string]model.VenueStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.statuses)
}

func (c *Controller) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider.Mode()
}

// Operational reports whether the active mode can be scanned.
func (c *Controller) Operational() bool {
	return exchange.Operational(c.Mode())
}
