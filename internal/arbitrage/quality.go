package arbitrage

import (
	"arbradar/internal/model"
)

// Flags derives the quality flags of a row, always in Stale, LowVol,
// Suspicious order.
func Flags(row model.OpportunityRow, statuses map[string]model.VenueStatus, f model.FilterSettings) []model.QualityFlag {
	var flags []model.QualityFlag
	if row.Age > f.StaleAfter() || routeDisconnected(row, statuses) {
		flags = append(flags, model.FlagStale)
	}
	if row.Volume24h < f.MinVolume {
		flags = append(flags, model.FlagLowVol)
	}
	if row.ProfitPct > f.MaxProfitSuspicious {
		flags = append(flags, model.FlagSuspicious)
	}
	return flags
}

// Label collapses flags into the single quality label shown for a row.
func Label(flags []model.QualityFlag) string {
	if len(flags) == 0 {
		return model.QualityOK
	}
	for _, want := range []model.QualityFlag{model.FlagSuspicious, model.FlagStale, model.FlagLowVol} {
		for _, f := range flags {
			if f == want {
				return string(want)
			}
		}
	}
	return string(flags[0])
}

// IsSignal reports whether a row is worth alerting on: profitable enough and
// routed through venues that are not disconnected.
func IsSignal(row model.OpportunityRow, statuses map[string]model.VenueStatus, f model.FilterSettings) bool {
	return row.ProfitPct >= f.MinProfitPct && !routeDisconnected(row, statuses)
}

func routeDisconnected(row model.OpportunityRow, statuses map[string]model.VenueStatus) bool {
	return statuses[row.BuyVenue].State == model.Disconnected ||
		statuses[row.SellVenue].State == model.Disconnected
}
