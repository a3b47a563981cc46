package strategy

import (
	"testing"
	"time"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

func risingHistoryCtx(price float64, yesPrice float64) Context {
	return Context{
		Bankroll: 500,
		Prices:   map[string]float64{"yes-tok": yesPrice},
		Books:    map[string]domain.OrderBook{},
		Event:    domain.NewSpotTicker("BTCUSDT", price, time.Now()),
	}
}

func TestTechnicalMomentumStaysSilentDuringWarmup(t *testing.T) {
	s := NewTechnicalMomentum("m1", "yes-tok", "BTCUSDT")
	for i := 0; i < technicalWarmupPeriods-1; i++ {
		sigs := s.Evaluate(risingHistoryCtx(100+float64(i), 0.5))
		if sigs != nil {
			t.Fatalf("got signal during warmup at tick %d, want nil", i)
		}
	}
}

func TestTechnicalMomentumIgnoresNonMatchingEvents(t *testing.T) {
	s := NewTechnicalMomentum("m1", "yes-tok", "BTCUSDT")
	ctx := Context{
		Bankroll: 500,
		Prices:   map[string]float64{"yes-tok": 0.5},
		Event:    domain.NewVenuePrice("m1", "yes-tok", 0.5, time.Now()),
	}
	if sigs := s.Evaluate(ctx); sigs != nil {
		t.Fatalf("got signal for a venue price event, want nil (strategy only reacts to its own spot symbol)")
	}
	if len(s.history) != 0 {
		t.Fatalf("history grew on a non-matching event: %d entries", len(s.history))
	}
}

func TestTechnicalMomentumSkipsWhenPositionExists(t *testing.T) {
	s := NewTechnicalMomentum("m1", "yes-tok", "BTCUSDT")
	for i := 0; i < technicalWarmupPeriods+5; i++ {
		s.Evaluate(risingHistoryCtx(100+float64(i)*2, 0.5))
	}

	ctx := risingHistoryCtx(200, 0.5)
	ctx.Positions = []domain.Position{{MarketID: "m1", TokenID: "yes-tok", Size: 10}}
	if sigs := s.Evaluate(ctx); sigs != nil {
		t.Fatalf("got signal while a position is already open, want nil")
	}
}

func TestTechnicalMomentumProducesBuyOnReboundFromOversold(t *testing.T) {
	s := NewTechnicalMomentum("m1", "yes-tok", "BTCUSDT")
	s.MinConfidence = 0 // isolate the composite-score gate from the confidence floor

	// RSIScore is contrarian (an overbought RSI scores bearish), so a steady
	// uptrend alone never clears the +20 composite gate. A rebound does: 14
	// falling ticks leave RSI oversold (~24.8 at the end, score ~+11.7) while
	// the 10-tick rally that follows pushes momentum to its +30 cap, for a
	// composite of ~22.
	var sigs []domain.Signal
	price := 200.0
	sigs = s.Evaluate(risingHistoryCtx(price, 0.40))
	for i := 0; i < 14; i++ {
		price -= 5
		sigs = s.Evaluate(risingHistoryCtx(price, 0.40))
	}
	for i := 0; i < 10; i++ {
		price += 1.5
		sigs = s.Evaluate(risingHistoryCtx(price, 0.40))
	}

	if len(sigs) != 1 {
		t.Fatalf("got %d signals on the final tick of the rebound, want 1", len(sigs))
	}
	if sigs[0].Side != domain.Buy {
		t.Errorf("Side = %v, want Buy", sigs[0].Side)
	}
	if sigs[0].TokenID != "yes-tok" {
		t.Errorf("TokenID = %q, want yes-tok", sigs[0].TokenID)
	}
}
