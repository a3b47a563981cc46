// Package strategy defines the trait-like Strategy contract and the
// Context snapshot the aggregator builds for every market event, and hosts
// the three concrete strategies this core ships. Grounded on the teacher's
// Strategy interface/BaseStrategy composition in this same file's prior
// form, generalized from "exactly one Signal per call" to "zero, one, or
// many", which this project's strategies require.
package strategy

import "github.com/stuartoffabean/polymarket-bot/internal/domain"

// Context is the read-only snapshot a strategy evaluates. It is built fresh
// per event and passed by value so a strategy cannot mutate shared
// aggregator state.
type Context struct {
	Bankroll   float64
	Positions  []domain.Position
	Prices     map[string]float64 // token_id -> last price
	Books      map[string]domain.OrderBook
	SpotPrices map[string]float64 // symbol -> last price
	Event      domain.MarketData
}

// HasPosition reports whether a nonzero position already exists for market_id.
func (c Context) HasPosition(marketID string) bool {
	for _, p := range c.Positions {
		if p.MarketID == marketID && p.Size > 0 {
			return true
		}
	}
	return false
}

// Strategy is a pluggable capability that turns a Context into zero, one, or
// many Signals. Evaluate MUST be pure with respect to ctx: no hidden I/O, no
// mutation, and SHOULD be fast since it runs on the aggregator's consumer.
type Strategy interface {
	Name() string
	Enabled() bool
	Evaluate(ctx Context) []domain.Signal
}

// Base composes the stable name/enabled fields every strategy needs,
// matching the teacher's BaseStrategy composition pattern.
type Base struct {
	name    string
	enabled bool
}

func NewBase(name string, enabled bool) Base {
	return Base{name: name, enabled: enabled}
}

func (b Base) Name() string    { return b.name }
func (b Base) Enabled() bool   { return b.enabled }
