// Package aggregator consumes normalized MarketData off the market bus,
// maintains the last-known price/book/spot-price state, and invokes every
// enabled strategy per event, forwarding returned signals to the signal bus.
// Grounded on the upstream feeds.rs FeedAggregator this spec was distilled
// from, and on the teacher's internal/markets/manager.go consumer-loop shape
// (buffered bus receive -> build context -> fan out to strategies).
package aggregator

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
	"github.com/stuartoffabean/polymarket-bot/internal/strategy"
)

// BankrollReader supplies the current bankroll for context construction.
type BankrollReader interface {
	Bankroll() float64
}

// PositionsReader supplies the currently open positions for context
// construction, closing this project's "empty position list" open question.
type PositionsReader interface {
	GetPositions() ([]domain.Position, error)
}

// Aggregator owns three maps (token price, token order book, spot price)
// behind a single reader/writer lock: writes only happen on this
// component's own consumer goroutine, so the lock exists purely to let
// Context-construction reads (which clone the maps) run safely if ever
// called from elsewhere.
type Aggregator struct {
	marketBus *bus.Bus[domain.MarketData]
	signalBus *bus.Bus[domain.Signal]
	bankroll  BankrollReader
	positions PositionsReader

	mu     sync.RWMutex
	prices map[string]float64
	books  map[string]domain.OrderBook
	spot   map[string]float64

	strategies []strategy.Strategy
}

// New builds an Aggregator wired to its buses and collaborators.
func New(marketBus *bus.Bus[domain.MarketData], signalBus *bus.Bus[domain.Signal], bankroll BankrollReader, positions PositionsReader, strategies []strategy.Strategy) *Aggregator {
	return &Aggregator{
		marketBus:  marketBus,
		signalBus:  signalBus,
		bankroll:   bankroll,
		positions:  positions,
		prices:     make(map[string]float64),
		books:      make(map[string]domain.OrderBook),
		spot:       make(map[string]float64),
		strategies: strategies,
	}
}

// Run is the aggregator's consumer loop: it is the sole subscriber of the
// market bus in this core. Events are processed in arrival order and the
// state maps are updated before strategies see the event, so a strategy
// evaluating event E sees all data from events strictly before E plus E
// itself.
func (a *Aggregator) Run(ctx context.Context) {
	for {
		event, lagged, ok := a.marketBus.Receive(ctx)
		if !ok {
			return
		}
		if lagged > 0 {
			log.Warn().Uint64("lagged", lagged).Str("component", "aggregator").Msg("market bus consumer fell behind")
		}
		a.handleEvent(event)
	}
}

func (a *Aggregator) handleEvent(event domain.MarketData) {
	a.applyEvent(event)
	snapshot := a.buildContext(event)

	for _, s := range a.strategies {
		if !s.Enabled() {
			continue
		}
		for _, sig := range s.Evaluate(snapshot) {
			a.signalBus.Send(sig)
		}
	}
}

func (a *Aggregator) applyEvent(event domain.MarketData) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Kind {
	case domain.KindVenuePrice:
		a.prices[event.TokenID] = event.Price
	case domain.KindVenueBook:
		a.books[event.Book.TokenID] = event.Book
	case domain.KindSpotTicker:
		a.spot[event.Symbol] = event.Price
	}
}

// buildContext clones the three maps under the read lock so strategies
// cannot observe or mutate live aggregator state, then attaches bankroll and
// positions from the respective collaborators.
func (a *Aggregator) buildContext(event domain.MarketData) strategy.Context {
	a.mu.RLock()
	prices := make(map[string]float64, len(a.prices))
	for k, v := range a.prices {
		prices[k] = v
	}
	books := make(map[string]domain.OrderBook, len(a.books))
	for k, v := range a.books {
		books[k] = v
	}
	spot := make(map[string]float64, len(a.spot))
	for k, v := range a.spot {
		spot[k] = v
	}
	a.mu.RUnlock()

	var positions []domain.Position
	if a.positions != nil {
		if p, err := a.positions.GetPositions(); err != nil {
			log.Warn().Err(err).Msg("aggregator: failed to load positions for context")
		} else {
			positions = p
		}
	}

	bankroll := 0.0
	if a.bankroll != nil {
		bankroll = a.bankroll.Bankroll()
	}

	return strategy.Context{
		Bankroll:   bankroll,
		Positions:  positions,
		Prices:     prices,
		Books:      books,
		SpotPrices: spot,
		Event:      event,
	}
}
