// Package arbitrage turns merged venue quotes into ranked, quality-annotated
// opportunity rows and a throttled stream of alert events.
package arbitrage

import (
	"errors"
	"fmt"
	"math"

	"arbradar/internal/model"
)

// ErrMalformedQuote is returned when a quote cannot be priced.
var ErrMalformedQuote = errors.New("malformed quote")

// Leg is one side of a route: where to trade and at what price.
type Leg struct {
	Venue string
	Price float64
}

// Route picks the buy and sell legs for one pair. venues is the routing order
// and every venue must have a quote. The buy leg starts at the first venue and
// moves to a later venue only on a strictly lower ask; the sell leg starts at
// the last venue and moves to an earlier venue only on a strictly higher bid.
// Both legs may land on the same venue.
func Route(venues []string, quotes map[string]model.Quote) (buy, sell Leg, err error) {
	if len(venues) == 0 {
		return Leg{}, Leg{}, fmt.Errorf("%w: no venues", ErrMalformedQuote)
	}
	for _, v := range venues {
		q, ok := quotes[v]
		if !ok {
			return Leg{}, Leg{}, fmt.Errorf("%w: missing %s", ErrMalformedQuote, v)
		}
		if err := validateQuote(q); err != nil {
			return Leg{}, Leg{}, err
		}
	}

	first := venues[0]
	buy = Leg{Venue: first, Price: quotes[first].Ask}
	for _, v := range venues[1:] {
		if ask := quotes[v].Ask; ask < buy.Price {
			buy = Leg{Venue: v, Price: ask}
		}
	}

	last := venues[len(venues)-1]
	sell = Leg{Venue: last, Price: quotes[last].Bid}
	for i := len(venues) - 2; i >= 0; i-- {
		if bid := quotes[venues[i]].Bid; bid > sell.Price {
			sell = Leg{Venue: venues[i], Price: bid}
		}
	}
	return buy, sell, nil
}

func validateQuote(q model.Quote) error {
	if !(q.Bid > 0) || !(q.Ask > 0) || math.IsInf(q.Bid, 0) || math.IsInf(q.Ask, 0) {
		return fmt.Errorf("%w: %s@%s bid=%v ask=%v", ErrMalformedQuote, q.Pair, q.Venue, q.Bid, q.Ask)
	}
	return nil
}

// ProfitPct is the signed percentage gain of buying at buy and selling at sell.
func ProfitPct(buy, sell float64) float64 {
	return (sell - buy) / buy * 100
}
