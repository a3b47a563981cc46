package strategy

import "github.com/stuartoffabean/polymarket-bot/internal/domain"

// LatencyArb trades a threshold market against a faster-moving spot price:
// if spot has already crossed the threshold by enough margin, buy (or
// effectively sell) the YES token ahead of it catching up. Grounded on the
// upstream strategy/latency_arb.rs this spec was distilled from.
type LatencyArb struct {
	Base

	MarketID      string
	YesTokenID    string
	NoTokenID     string
	SpotSymbol    string
	Threshold     float64
	MinEdgePct    float64 // default 0.02
	MaxPositionPct float64 // default 0.05
}

// NewLatencyArb builds the strategy with the spec's documented defaults for
// min edge and max position size.
func NewLatencyArb(marketID, yesTokenID, noTokenID, spotSymbol string, threshold float64) *LatencyArb {
	return &LatencyArb{
		Base:           NewBase("latency_arb:"+marketID, true),
		MarketID:       marketID,
		YesTokenID:     yesTokenID,
		NoTokenID:      noTokenID,
		SpotSymbol:     spotSymbol,
		Threshold:      threshold,
		MinEdgePct:     0.02,
		MaxPositionPct: 0.05,
	}
}

func (s *LatencyArb) Evaluate(ctx Context) []domain.Signal {
	if ctx.HasPosition(s.MarketID) {
		return nil
	}

	spot, haveSpot := ctx.SpotPrices[s.SpotSymbol]
	yes, haveYes := ctx.Prices[s.YesTokenID]
	if !haveSpot || !haveYes || s.Threshold == 0 {
		return nil
	}

	edgeAbove := (spot - s.Threshold) / s.Threshold
	edgeBelow := (s.Threshold - spot) / s.Threshold

	switch {
	case edgeAbove > s.MinEdgePct && yes < 0.90:
		confidence := min95(0.5 + 5*edgeAbove)
		size := domain.KellySize(confidence, yes, ctx.Bankroll, s.MaxPositionPct)
		return suppressBelowOne(domain.Signal{
			Strategy: s.Name(), MarketID: s.MarketID, TokenID: s.YesTokenID,
			Side: domain.Buy, Price: yes, Size: size, Confidence: confidence,
		})
	case edgeBelow > s.MinEdgePct && yes > 0.10:
		noPrice := 1 - yes
		confidence := min95(0.5 + 5*edgeBelow)
		size := domain.KellySize(confidence, noPrice, ctx.Bankroll, s.MaxPositionPct)
		// Selling YES is economically equivalent to buying NO on this venue.
		return suppressBelowOne(domain.Signal{
			Strategy: s.Name(), MarketID: s.MarketID, TokenID: s.YesTokenID,
			Side: domain.Sell, Price: yes, Size: size, Confidence: confidence,
		})
	default:
		return nil
	}
}

func min95(c float64) float64 {
	if c > 0.95 {
		return 0.95
	}
	return c
}

// suppressBelowOne drops signals whose size is at or below the 1.0 floor,
// matching the "signals with size <= 1.0 are suppressed" rule.
func suppressBelowOne(sig domain.Signal) []domain.Signal {
	if sig.Size <= 1.0 {
		return nil
	}
	return []domain.Signal{sig}
}
