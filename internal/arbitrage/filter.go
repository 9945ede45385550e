package arbitrage

import (
	"cmp"
	"slices"
	"strings"

	"arbradar/internal/model"
)

// ApplyFilters runs the filter/rank pipeline over rows without modifying them.
// signal decides which rows count as signals for ShowOnlySignals.
func ApplyFilters(rows []model.OpportunityRow, f model.FilterSettings, signal func(model.OpportunityRow) bool) []model.OpportunityRow {
	out := preFilter(rows, f)
	if f.ShowOnlySignals {
		out = slices.DeleteFunc(out, func(r model.OpportunityRow) bool { return !signal(r) })
	}
	if f.ShowFavoritesOnly {
		out = slices.DeleteFunc(out, func(r model.OpportunityRow) bool { return !r.Favorite })
	}
	out = rankTopN(out, f.TopN)
	sortByPair(out)
	return out
}

// preFilter returns a new slice with the rows passing volume and pair filters.
func preFilter(rows []model.OpportunityRow, f model.FilterSettings) []model.OpportunityRow {
	out := make([]model.OpportunityRow, 0, len(rows))
	for _, r := range rows {
		if r.Volume24h < f.MinVolume {
			continue
		}
		base, quote := splitPair(r.Pair)
		if f.OnlyUSDT && quote != "USDT" {
			continue
		}
		if f.ExcludeLeveraged && isLeveraged(base) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// rankTopN orders rows by profit, best first, and keeps the first n.
// n <= 0 keeps everything.
func rankTopN(rows []model.OpportunityRow, n int) []model.OpportunityRow {
	slices.SortStableFunc(rows, func(a, b model.OpportunityRow) int {
		return cmp.Compare(b.ProfitPct, a.ProfitPct)
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// sortByPair puts rows in display order.
func sortByPair(rows []model.OpportunityRow) {
	slices.SortStableFunc(rows, func(a, b model.OpportunityRow) int {
		return strings.Compare(a.Pair, b.Pair)
	})
}

func splitPair(pair string) (base, quote string) {
	base, quote, _ = strings.Cut(pair, "/")
	return base, quote
}

func isLeveraged(base string) bool {
	return strings.HasSuffix(base, "UP") || strings.HasSuffix(base, "DOWN")
}
