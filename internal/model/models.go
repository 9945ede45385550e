package model

import (
	"maps"
	"slices"
	"time"
)

// Data source modes.
const (
	ModeSimulator = "Simulator"
	ModeLive      = "Live"
)

// ConnState is the connectivity state of a venue feed.
type ConnState string

const (
	Connected    ConnState = "Connected"
	Degraded     ConnState = "Degraded"
	Disconnected ConnState = "Disconnected"
)

// Quote is one venue's top of book for one pair. Never mutated after creation.
type Quote struct {
	Venue     string
	Pair      string
	Bid       float64
	Ask       float64
	Volume24h float64
	Timestamp time.Time
}

// VenueStatus describes the connectivity of a single venue.
type VenueStatus struct {
	Venue     string
	State     ConnState
	Latency   time.Duration
	ChangedAt time.Time
}

// QualityFlag marks a data quality concern on an opportunity row.
type QualityFlag string

const (
	FlagStale      QualityFlag = "Stale"
	FlagLowVol     QualityFlag = "LowVol"
	FlagSuspicious QualityFlag = "Suspicious"
)

// QualityOK is the label of a row without quality flags.
const QualityOK = "OK"

// VenuePrices holds the raw bid/ask a venue quoted for a row's pair.
type VenuePrices struct {
	Bid float64
	Ask float64
}

// OpportunityRow is the computed cross-venue route for one pair on one tick.
type OpportunityRow struct {
	Pair       string
	BuyVenue   string
	BuyPrice   float64
	SellVenue  string
	SellPrice  float64
	ProfitPct  float64
	Volume24h  float64
	Age        time.Duration
	Spread     float64
	Quality    string
	Flags      []QualityFlag
	Venues     map[string]VenuePrices
	Favorite   bool
	DataSource string
	UpdatedAt  time.Time
}

// HasFlag reports whether the row carries the given quality flag.
func (r OpportunityRow) HasFlag(flag QualityFlag) bool {
	return slices.Contains(r.Flags, flag)
}

// Equal reports whether two rows carry identical values.
func (r OpportunityRow) Equal(o OpportunityRow) bool {
	return r.Pair == o.Pair &&
		r.BuyVenue == o.BuyVenue &&
		r.BuyPrice == o.BuyPrice &&
		r.SellVenue == o.SellVenue &&
		r.SellPrice == o.SellPrice &&
		r.ProfitPct == o.ProfitPct &&
		r.Volume24h == o.Volume24h &&
		r.Age == o.Age &&
		r.Spread == o.Spread &&
		r.Quality == o.Quality &&
		slices.Equal(r.Flags, o.Flags) &&
		maps.Equal(r.Venues, o.Venues) &&
		r.Favorite == o.Favorite &&
		r.DataSource == o.DataSource &&
		r.UpdatedAt.Equal(o.UpdatedAt)
}

// Snapshot is the merged per-tick view assembled by the feed provider.
type Snapshot struct {
	// Quotes maps pair -> venue -> quote.
	Quotes   map[string]map[string]Quote
	Statuses map[string]VenueStatus
	// Venues lists venue names in routing order.
	Venues    []string
	PairCount int
	Mode      string
	// ModeEpoch changes on every mode switch, even back to a previous mode.
	ModeEpoch uint64
	TakenAt   time.Time
}
