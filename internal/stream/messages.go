package stream

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"arbradar/internal/arbitrage"
	"arbradar/internal/model"
	"arbradar/internal/radar"
)

// Outbound envelope types.
const (
	TypeRows   = "rows"
	TypeUpdate = "update"
	TypeEvent  = "event"
	TypeError  = "error"
)

// Inbound actions.
const (
	ActionStart    = "start"
	ActionStop     = "stop"
	ActionRefresh  = "refresh"
	ActionFilters  = "filters"
	ActionFavorite = "favorite"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// command is a user intent sent by a client.
type command struct {
	Action  string                `json:"action"`
	Filters *model.FilterSettings `json:"filters,omitempty"`
	Pair    string                `json:"pair,omitempty"`
}

type rowView struct {
	Index      int               `json:"index"`
	Pair       string            `json:"pair"`
	BuyVenue   string            `json:"buy_venue"`
	BuyPrice   float64           `json:"buy_price"`
	BuyText    string            `json:"buy_text"`
	SellVenue  string            `json:"sell_venue"`
	SellPrice  float64           `json:"sell_price"`
	SellText   string            `json:"sell_text"`
	ProfitPct  float64           `json:"profit_pct"`
	ProfitText string            `json:"profit_text"`
	Volume24h  float64           `json:"volume_24h"`
	VolumeText string            `json:"volume_text"`
	AgeSec     float64           `json:"age_sec"`
	Spread     float64           `json:"spread"`
	Quality    string            `json:"quality"`
	Flags      []string          `json:"flags"`
	Venues     map[string]bidAsk `json:"venues"`
	Favorite   bool              `json:"favorite"`
	DataSource string            `json:"data_source"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type bidAsk struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

type rowsPayload struct {
	Reset bool      `json:"reset"`
	Rows  []rowView `json:"rows"`
}

type statusView struct {
	Venue     string    `json:"venue"`
	State     string    `json:"state"`
	LatencyMS int64     `json:"latency_ms"`
	ChangedAt time.Time `json:"changed_at"`
}

type updatePayload struct {
	LatencySec  float64            `json:"latency_sec"`
	PairCount   int                `json:"pair_count"`
	SignalCount int                `json:"signal_count"`
	Statuses    []statusView       `json:"statuses"`
	Mode        string             `json:"mode"`
	LastTick    time.Time          `json:"last_tick"`
	QuoteAgeSec map[string]float64 `json:"quote_age_sec"`
}

type errorPayload struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

func toRowView(i int, r model.OpportunityRow) rowView {
	v := rowView{
		Index:      i,
		Pair:       r.Pair,
		BuyVenue:   r.BuyVenue,
		BuyPrice:   r.BuyPrice,
		BuyText:    radar.FormatPrice(r.BuyPrice),
		SellVenue:  r.SellVenue,
		SellPrice:  r.SellPrice,
		SellText:   radar.FormatPrice(r.SellPrice),
		ProfitPct:  r.ProfitPct,
		ProfitText: radar.FormatPct(r.ProfitPct),
		Volume24h:  r.Volume24h,
		VolumeText: radar.FormatVolume(r.Volume24h),
		AgeSec:     r.Age.Seconds(),
		Spread:     r.Spread,
		Quality:    r.Quality,
		Flags:      make([]string, 0, len(r.Flags)),
		Venues:     make(map[string]bidAsk, len(r.Venues)),
		Favorite:   r.Favorite,
		DataSource: r.DataSource,
		UpdatedAt:  r.UpdatedAt,
	}
	for _, f := range r.Flags {
		v.Flags = append(v.Flags, string(f))
	}
	for name, p := range r.Venues {
		v.Venues[name] = bidAsk{Bid: p.Bid, Ask: p.Ask}
	}
	return v
}

func rowsMessage(rows []model.OpportunityRow, change radar.Change) ([]byte, error) {
	p := rowsPayload{Reset: change.Reset, Rows: []rowView{}}
	if change.Reset {
		for i, r := range rows {
			p.Rows = append(p.Rows, toRowView(i, r))
		}
	} else {
		for _, i := range change.Changed {
			p.Rows = append(p.Rows, toRowView(i, rows[i]))
		}
	}
	return json.Marshal(envelope{Type: TypeRows, Payload: p})
}

func updateMessage(u arbitrage.Update) ([]byte, error) {
	p := updatePayload{
		LatencySec:  u.LatencySeconds(),
		PairCount:   u.PairCount,
		SignalCount: u.SignalCount,
		Statuses:    make([]statusView, 0, len(u.Statuses)),
		Mode:        u.Health.Mode,
		LastTick:    u.Health.LastTick,
		QuoteAgeSec: make(map[string]float64, len(u.Health.QuoteAge)),
	}
	for _, name := range slices.Sorted(maps.Keys(u.Statuses)) {
		st := u.Statuses[name]
		p.Statuses = append(p.Statuses, statusView{
			Venue:     name,
			State:     string(st.State),
			LatencyMS: st.Latency.Milliseconds(),
			ChangedAt: st.ChangedAt,
		})
	}
	for venue, age := range u.Health.QuoteAge {
		p.QuoteAgeSec[venue] = age.Seconds()
	}
	return json.Marshal(envelope{Type: TypeUpdate, Payload: p})
}

func eventMessage(e model.Event) ([]byte, error) {
	return json.Marshal(envelope{Type: TypeEvent, Payload: e})
}

func errorMessage(action string, err error) ([]byte, error) {
	return json.Marshal(envelope{Type: TypeError, Payload: errorPayload{Action: action, Message: err.Error()}})
}
