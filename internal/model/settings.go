package model

import "time"

const (
	DefaultTopN                = 50
	DefaultMinProfitPct        = 0.5
	DefaultMinVolume           = 100_000.0
	DefaultCooldownSec         = 5
	DefaultMaxProfitSuspicious = 5.0
	DefaultStaleSec            = 3
	DefaultUpdateIntervalMS    = 500
)

// FilterSettings is the user-controlled scanner configuration.
// Any combination of values is accepted.
type FilterSettings struct {
	// TopN limits the published rows after ranking. Zero or negative means no limit.
	TopN                int     `mapstructure:"top_n" json:"top_n"`
	MinProfitPct        float64 `mapstructure:"min_profit_pct" json:"min_profit_pct"`
	MinVolume           float64 `mapstructure:"min_volume" json:"min_volume"`
	OnlyUSDT            bool    `mapstructure:"only_usdt" json:"only_usdt"`
	ExcludeLeveraged    bool    `mapstructure:"exclude_leveraged" json:"exclude_leveraged"`
	ShowOnlySignals     bool    `mapstructure:"show_only_signals" json:"show_only_signals"`
	ShowFavoritesOnly   bool    `mapstructure:"show_favorites_only" json:"show_favorites_only"`
	CooldownSec         int     `mapstructure:"cooldown_sec" json:"cooldown_sec"`
	MaxProfitSuspicious float64 `mapstructure:"max_profit_suspicious" json:"max_profit_suspicious"`
	StaleSec            int     `mapstructure:"stale_sec" json:"stale_sec"`
	UpdateIntervalMS    int     `mapstructure:"update_interval_ms" json:"update_interval_ms"`
	DataSource          string  `mapstructure:"data_source" json:"data_source"`
}

// DefaultFilterSettings returns the settings used when nothing is configured.
func DefaultFilterSettings() FilterSettings {
	return FilterSettings{
		TopN:                DefaultTopN,
		MinProfitPct:        DefaultMinProfitPct,
		MinVolume:           DefaultMinVolume,
		CooldownSec:         DefaultCooldownSec,
		MaxProfitSuspicious: DefaultMaxProfitSuspicious,
		StaleSec:            DefaultStaleSec,
		UpdateIntervalMS:    DefaultUpdateIntervalMS,
		DataSource:          ModeSimulator,
	}
}

func (f FilterSettings) Cooldown() time.Duration {
	return time.Duration(f.CooldownSec) * time.Second
}

func (f FilterSettings) StaleAfter() time.Duration {
	return time.Duration(f.StaleSec) * time.Second
}

// TickInterval returns the scan period, falling back to the default for
// non-positive values.
func (f FilterSettings) TickInterval() time.Duration {
	if f.UpdateIntervalMS <= 0 {
		return DefaultUpdateIntervalMS * time.Millisecond
	}
	return time.Duration(f.UpdateIntervalMS) * time.Millisecond
}
