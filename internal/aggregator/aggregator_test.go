package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
	"github.com/stuartoffabean/polymarket-bot/internal/strategy"
)

type fixedBankroll struct{ v float64 }

func (f fixedBankroll) Bankroll() float64 { return f.v }

type noPositions struct{}

func (noPositions) GetPositions() ([]domain.Position, error) { return nil, nil }

// recordingStrategy captures the Prices map it observed on every call, to
// check the aggregator applies each event to its state before invoking
// strategies (invariant 10: aggregator determinism).
type recordingStrategy struct {
	strategy.Base
	observed []float64
}

func (r *recordingStrategy) Evaluate(ctx strategy.Context) []domain.Signal {
	r.observed = append(r.observed, ctx.Prices["tok1"])
	return nil
}

func TestAggregatorAppliesEventBeforeInvokingStrategies(t *testing.T) {
	marketBus := bus.New[domain.MarketData](8)
	signalBus := bus.New[domain.Signal](8)
	rec := &recordingStrategy{Base: strategy.NewBase("recorder", true)}

	agg := New(marketBus, signalBus, fixedBankroll{500}, noPositions{}, []strategy.Strategy{rec})

	ctx, cancel := context.WithCancel(context.Background())
	go agg.Run(ctx)

	now := time.Now()
	marketBus.Send(domain.NewVenuePrice("m1", "tok1", 0.40, now))
	marketBus.Send(domain.NewVenuePrice("m1", "tok1", 0.55, now))
	marketBus.Send(domain.NewVenuePrice("m1", "tok1", 0.60, now))

	deadline := time.After(2 * time.Second)
	for len(rec.observed) < 3 {
		select {
		case <-deadline:
			t.Fatalf("strategy observed only %d events after 2s, want 3", len(rec.observed))
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	want := []float64{0.40, 0.55, 0.60}
	for i, w := range want {
		if rec.observed[i] != w {
			t.Errorf("observed[%d] = %v, want %v (event N must see state induced by events 1..N)", i, rec.observed[i], w)
		}
	}
}

func TestAggregatorSkipsDisabledStrategies(t *testing.T) {
	marketBus := bus.New[domain.MarketData](4)
	signalBus := bus.New[domain.Signal](4)
	disabled := &recordingStrategy{Base: strategy.NewBase("disabled", false)}

	agg := New(marketBus, signalBus, fixedBankroll{500}, noPositions{}, []strategy.Strategy{disabled})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	marketBus.Send(domain.NewVenuePrice("m1", "tok1", 0.5, time.Now()))
	time.Sleep(50 * time.Millisecond)

	if len(disabled.observed) != 0 {
		t.Errorf("disabled strategy observed %d events, want 0", len(disabled.observed))
	}
}
