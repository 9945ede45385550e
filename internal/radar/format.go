// Package radar holds the presentation-facing state of the arbitrage radar:
// the published row table, the favorites set and display formatting.
package radar

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"arbradar/internal/model"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders a price with thousands separators and 4 decimals.
func FormatPrice(v float64) string {
	return printer.Sprintf("%.4f", v)
}

func FormatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FormatVolume abbreviates thousands and millions.
func FormatVolume(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fm", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	}
	return fmt.Sprintf("%.0f", v)
}

// NormalizePair returns the canonical BASE/QUOTE form of a pair.
func NormalizePair(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), "-", "/"))
}

// SignalText is the alert line for a signal row.
func SignalText(row model.OpportunityRow) string {
	return fmt.Sprintf("SIGNAL %s: Buy %s %s → Sell %s %s | %+.2f%%",
		row.Pair,
		row.BuyVenue, FormatPrice(row.BuyPrice),
		row.SellVenue, FormatPrice(row.SellPrice),
		row.ProfitPct,
	)
}
