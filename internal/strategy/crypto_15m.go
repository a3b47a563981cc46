package strategy

import (
	"fmt"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
	"github.com/stuartoffabean/polymarket-bot/internal/indicators"
)

// IndicatorWeights defines how much each indicator contributes to the
// composite score. compositeScore sums the weights of the indicators that
// actually had data and, when that sum is below 1.0, divides the composite
// by it; a sum of 1.0 or more is left undivided.
type IndicatorWeights struct {
	RSI       float64
	Momentum  float64
	OrderBook float64
}

// DefaultTechnicalMomentumWeights mirrors the weighting this project's
// crypto 15-minute strategy shipped with before the Context/Strategy
// contract changed under it: momentum dominates, RSI and order-book flow
// fill in the rest.
func DefaultTechnicalMomentumWeights() IndicatorWeights {
	return IndicatorWeights{
		RSI:       0.35,
		Momentum:  0.45,
		OrderBook: 0.20,
	}
}

const (
	technicalWarmupPeriods = 20
	technicalHistoryCap    = 120
	technicalMomentumSpan  = 10
	technicalRSISpan       = 14
)

// TechnicalMomentum trades a threshold market off a composite technical
// score computed over a rolling window of the underlying spot price, plus
// the venue order book's bid/ask imbalance when one is available. Grounded
// on this project's prior Crypto15mStrategy (RSI/momentum/order-book
// scoring via internal/indicators), generalized from a single
// up/down/no-trade call into the Strategy interface's zero-or-more Signal
// contract and driven off the aggregator's rolling Context instead of an
// in-process MarketContext.
type TechnicalMomentum struct {
	Base

	MarketID       string
	YesTokenID     string
	SpotSymbol     string
	Weights        IndicatorWeights
	MinConfidence  float64
	MaxPositionPct float64

	history []float64
}

// NewTechnicalMomentum builds the strategy for a single threshold market
// quoted against a single spot symbol, with the shipped default weights, a
// minimum 60% confidence floor, and a 5% max position size.
func NewTechnicalMomentum(marketID, yesTokenID, spotSymbol string) *TechnicalMomentum {
	return &TechnicalMomentum{
		Base:           NewBase(fmt.Sprintf("technical_momentum:%s", marketID), true),
		MarketID:       marketID,
		YesTokenID:     yesTokenID,
		SpotSymbol:     spotSymbol,
		Weights:        DefaultTechnicalMomentumWeights(),
		MinConfidence:  0.60,
		MaxPositionPct: 0.05,
	}
}

// Evaluate only recomputes on the spot tick it tracks; venue price and book
// events update Context's maps (which this strategy also reads) but do not
// by themselves justify a new technical read.
func (s *TechnicalMomentum) Evaluate(ctx Context) []domain.Signal {
	if ctx.Event.Kind != domain.KindSpotTicker || ctx.Event.Symbol != s.SpotSymbol {
		return nil
	}
	if ctx.HasPosition(s.MarketID) {
		return nil
	}

	s.history = append(s.history, ctx.Event.Price)
	if len(s.history) > technicalHistoryCap {
		s.history = s.history[len(s.history)-technicalHistoryCap:]
	}
	if len(s.history) < technicalWarmupPeriods {
		return nil
	}

	yes, haveYes := ctx.Prices[s.YesTokenID]
	if !haveYes {
		return nil
	}

	scores := s.scoreIndicators(ctx.Books[s.YesTokenID])
	composite, weight := s.compositeScore(scores)
	if weight == 0 {
		return nil
	}

	confidence := min95(0.5 + absFloat(composite)/200)
	if confidence < s.MinConfidence {
		return nil
	}

	var side domain.Side
	var price float64
	switch {
	case composite > 20:
		side, price = domain.Buy, yes
	case composite < -20:
		side, price = domain.Sell, yes
	default:
		return nil
	}

	size := domain.KellySize(confidence, price, ctx.Bankroll, s.MaxPositionPct)
	return suppressBelowOne(domain.Signal{
		Strategy: s.Name(), MarketID: s.MarketID, TokenID: s.YesTokenID,
		Side: side, Price: price, Size: size, Confidence: confidence,
	})
}

func (s *TechnicalMomentum) scoreIndicators(book domain.OrderBook) map[string]float64 {
	scores := make(map[string]float64, 3)

	if len(s.history) >= technicalRSISpan+1 {
		rsi := indicators.RSI(s.history, technicalRSISpan)
		scores["rsi"] = indicators.RSIScore(rsi)
	}
	if len(s.history) > technicalMomentumSpan {
		scores["momentum"] = indicators.MomentumScore(s.history, technicalMomentumSpan)
	}

	bidVol, askVol := sumSize(book.Bids), sumSize(book.Asks)
	if bidVol > 0 || askVol > 0 {
		scores["orderbook"] = indicators.OrderBookImbalanceScore(bidVol, askVol)
	}

	return scores
}

func (s *TechnicalMomentum) compositeScore(scores map[string]float64) (composite, totalWeight float64) {
	if v, ok := scores["rsi"]; ok {
		composite += v * s.Weights.RSI
		totalWeight += s.Weights.RSI
	}
	if v, ok := scores["momentum"]; ok {
		composite += v * s.Weights.Momentum
		totalWeight += s.Weights.Momentum
	}
	if v, ok := scores["orderbook"]; ok {
		composite += v * s.Weights.OrderBook
		totalWeight += s.Weights.OrderBook
	}
	if totalWeight > 0 && totalWeight < 1.0 {
		composite /= totalWeight
	}
	return composite, totalWeight
}

func sumSize(levels []domain.BookLevel) float64 {
	var total float64
	for _, l := range levels {
		total += l.Size
	}
	return total
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
