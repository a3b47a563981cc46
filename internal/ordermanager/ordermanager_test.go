package ordermanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
	"github.com/stuartoffabean/polymarket-bot/internal/venue"
)

// fakeStore is an in-memory Store for exercising the order manager without
// a real database.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	trades    []domain.Trade
	positions map[[2]string]domain.Position
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    make(map[string]domain.Order),
		positions: make(map[[2]string]domain.Position),
	}
}

func (s *fakeStore) InsertOrder(o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *fakeStore) UpdateOrderStatus(id string, status domain.OrderStatus, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	o.Status = status
	if remoteID != "" {
		o.RemoteID = remoteID
	}
	s.orders[id] = o
	return nil
}

func (s *fakeStore) InsertTrade(t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return nil
}

func (s *fakeStore) GetOpenOrders() ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if !o.Status.IsTerminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPositions() ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) UpsertPosition(p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[[2]string{p.MarketID, p.TokenID}] = p
	return nil
}

func (s *fakeStore) DeletePosition(marketID, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, [2]string{marketID, tokenID})
	return nil
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *fakeStore) tradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

func (s *fakeStore) soleOrder() domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		return o
	}
	return domain.Order{}
}

type fakeRisk struct {
	bankroll float64
	admit    bool
}

func (r fakeRisk) Bankroll() float64 { return r.bankroll }
func (r fakeRisk) CheckSignal(signal domain.Signal, bankroll, totalExposure float64) bool {
	return r.admit
}
func (r fakeRisk) UpdateBankroll(bankroll float64) bool { return true }

type fakeVenue struct {
	result venue.OrderResult
	err    error
}

func (v fakeVenue) PostOrder(tokenID string, price, size float64, side domain.Side, orderType domain.OrderType) (venue.OrderResult, error) {
	return v.result, v.err
}
func (v fakeVenue) CancelAll() (bool, error) { return true, nil }

func testSignal() domain.Signal {
	return domain.Signal{Strategy: "test", MarketID: "m1", TokenID: "tok1", Side: domain.Buy, Price: 0.5, Size: 10, Confidence: 0.8}
}

// Scenario: a signal rejected by the risk gate produces no order and no trade.
func TestHandleSignalRiskRejectionProducesNothing(t *testing.T) {
	store := newFakeStore()
	m := New(nil, store, fakeRisk{bankroll: 500, admit: false}, fakeVenue{})

	m.handleSignal(testSignal())

	if store.orderCount() != 0 {
		t.Errorf("orderCount = %d, want 0 after risk rejection", store.orderCount())
	}
	if store.tradeCount() != 0 {
		t.Errorf("tradeCount = %d, want 0 after risk rejection", store.tradeCount())
	}
}

// Scenario: a signal admitted and accepted by the venue produces exactly
// one order (Open) and one trade.
func TestHandleSignalAcceptedProducesOneOrderAndOneTrade(t *testing.T) {
	store := newFakeStore()
	v := fakeVenue{result: venue.OrderResult{Success: true, RemoteID: "remote-1"}}
	m := New(nil, store, fakeRisk{bankroll: 500, admit: true}, v)

	m.handleSignal(testSignal())

	if store.orderCount() != 1 {
		t.Fatalf("orderCount = %d, want 1", store.orderCount())
	}
	if store.tradeCount() != 1 {
		t.Fatalf("tradeCount = %d, want 1", store.tradeCount())
	}
	order := store.soleOrder()
	if order.Status != domain.Open {
		t.Errorf("order.Status = %v, want Open", order.Status)
	}
	if order.RemoteID != "remote-1" {
		t.Errorf("order.RemoteID = %q, want remote-1", order.RemoteID)
	}

	positions, _ := store.GetPositions()
	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1 after an accepted fill", len(positions))
	}
}

// Scenario F: venue rejects the order (e.g. insufficient funds). Exactly
// one Failed order is recorded and no trade.
func TestHandleSignalVenueRejectionMarksOrderFailed(t *testing.T) {
	store := newFakeStore()
	v := fakeVenue{result: venue.OrderResult{Success: false, ErrorMessage: "insufficient funds"}}
	m := New(nil, store, fakeRisk{bankroll: 500, admit: true}, v)

	m.handleSignal(testSignal())

	if store.orderCount() != 1 {
		t.Fatalf("orderCount = %d, want 1", store.orderCount())
	}
	if store.tradeCount() != 0 {
		t.Errorf("tradeCount = %d, want 0 after a venue rejection", store.tradeCount())
	}
	order := store.soleOrder()
	if order.Status != domain.Failed {
		t.Errorf("order.Status = %v, want Failed", order.Status)
	}

	positions, _ := store.GetPositions()
	if len(positions) != 0 {
		t.Errorf("len(positions) = %d, want 0 after a failed order", len(positions))
	}
}

func TestCancelAllTransitionsOpenOrdersToCancelled(t *testing.T) {
	store := newFakeStore()
	store.orders["o1"] = domain.Order{ID: "o1", Status: domain.Open}
	store.orders["o2"] = domain.Order{ID: "o2", Status: domain.Pending}
	store.orders["o3"] = domain.Order{ID: "o3", Status: domain.Filled}

	m := New(nil, store, fakeRisk{bankroll: 500, admit: true}, fakeVenue{})
	if err := m.CancelAll(); err != nil {
		t.Fatalf("CancelAll() error = %v", err)
	}

	if store.orders["o1"].Status != domain.Cancelled {
		t.Errorf("o1.Status = %v, want Cancelled", store.orders["o1"].Status)
	}
	if store.orders["o2"].Status != domain.Cancelled {
		t.Errorf("o2.Status = %v, want Cancelled", store.orders["o2"].Status)
	}
	if store.orders["o3"].Status != domain.Filled {
		t.Errorf("o3.Status = %v, want unchanged Filled", store.orders["o3"].Status)
	}
}

// Run drains the signal bus until it is closed or the context is cancelled.
func TestRunDrainsSignalBusUntilContextCancelled(t *testing.T) {
	signalBus := bus.New[domain.Signal](4)
	store := newFakeStore()
	v := fakeVenue{result: venue.OrderResult{Success: true, RemoteID: "r"}}
	m := New(signalBus, store, fakeRisk{bankroll: 500, admit: true}, v)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	signalBus.Send(testSignal())
	signalBus.Send(testSignal())

	deadline := time.After(2 * time.Second)
	for store.orderCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("orderCount = %d after 2s, want 2", store.orderCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
