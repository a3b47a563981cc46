package strategy

import "github.com/stuartoffabean/polymarket-bot/internal/domain"

// IntraMarket is a market whose complete set of outcome token ids this
// strategy tracks for the sum-of-prices arbitrage check.
type IntraMarket struct {
	MarketID string
	TokenIDs []string
}

// IntraArb buys every outcome of a market when their prices sum to less than
// 1 minus a margin — a risk-free-on-paper arbitrage across a single market's
// own outcome tokens. Grounded on the upstream strategy/intra_arb.rs this
// spec was distilled from.
type IntraArb struct {
	Base

	Markets        []IntraMarket
	MinMargin      float64 // default 0.02
	MaxPositionPct float64 // default 0.05
}

// NewIntraArb builds the strategy with the spec's documented defaults.
func NewIntraArb(markets []IntraMarket) *IntraArb {
	return &IntraArb{
		Base:           NewBase("intra_arb", true),
		Markets:        markets,
		MinMargin:      0.02,
		MaxPositionPct: 0.05,
	}
}

func (s *IntraArb) Evaluate(ctx Context) []domain.Signal {
	var signals []domain.Signal

	for _, market := range s.Markets {
		prices := make([]float64, 0, len(market.TokenIDs))
		complete := true
		sum := 0.0
		for _, tokenID := range market.TokenIDs {
			price, ok := ctx.Prices[tokenID]
			if !ok {
				complete = false
				break
			}
			prices = append(prices, price)
			sum += price
		}
		if !complete || sum >= 1-s.MinMargin {
			continue
		}

		confidence := 1 - sum
		if confidence > 1 {
			confidence = 1
		}

		sizeBudget := s.MaxPositionPct * ctx.Bankroll
		if alt := 0.10 * ctx.Bankroll; alt < sizeBudget {
			sizeBudget = alt
		}

		for i, tokenID := range market.TokenIDs {
			signals = append(signals, domain.Signal{
				Strategy: s.Name(), MarketID: market.MarketID, TokenID: tokenID,
				Side: domain.Buy, Price: prices[i], Size: sizeBudget * prices[i],
				Confidence: confidence,
			})
		}
	}

	return signals
}
