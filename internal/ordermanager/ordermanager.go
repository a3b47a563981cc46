// Package ordermanager turns admitted signals into venue orders: it is the
// sole writer of Order/Trade/Position rows and the sole caller of the
// venue's mutating endpoints. Grounded on the teacher's exec package and
// internal/trading order pipeline (risk gate -> persist -> submit -> record
// fill), adapted to this project's float64 domain model and its
// trade-on-acceptance simplification (see handleSignal below).
package ordermanager

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
	"github.com/stuartoffabean/polymarket-bot/internal/positions"
	"github.com/stuartoffabean/polymarket-bot/internal/venue"
)

// takerFeeRate is charged on every recorded trade, matching the upstream
// source this project's trade-on-acceptance accounting was distilled from.
const takerFeeRate = 0.002

// Store is the subset of persistence the order manager needs.
type Store interface {
	InsertOrder(domain.Order) error
	UpdateOrderStatus(id string, status domain.OrderStatus, remoteID string) error
	InsertTrade(domain.Trade) error
	GetOpenOrders() ([]domain.Order, error)
	GetPositions() ([]domain.Position, error)
	UpsertPosition(domain.Position) error
	DeletePosition(marketID, tokenID string) error
}

// RiskGate is the admission check every signal must pass before becoming an
// order. UpdateBankroll is also called here, on a successful fill, per the
// "bankroll is written by the P&L snapshot loop and by order fills" rule:
// the fee is debited from bankroll the moment the trade is recorded.
type RiskGate interface {
	Bankroll() float64
	CheckSignal(signal domain.Signal, bankroll, totalExposure float64) bool
	UpdateBankroll(bankroll float64) bool
}

// VenueClient is the subset of the venue REST client the order manager submits to.
type VenueClient interface {
	PostOrder(tokenID string, price, size float64, side domain.Side, orderType domain.OrderType) (venue.OrderResult, error)
	CancelAll() (bool, error)
}

// Manager consumes the signal bus and is the only component that mutates
// orders, trades, and positions.
type Manager struct {
	signalBus *bus.Bus[domain.Signal]
	store     Store
	risk      RiskGate
	venue     VenueClient
}

// New builds a Manager wired to its collaborators.
func New(signalBus *bus.Bus[domain.Signal], store Store, risk RiskGate, venue VenueClient) *Manager {
	return &Manager{signalBus: signalBus, store: store, risk: risk, venue: venue}
}

// Run is the order manager's consumer loop: the sole subscriber of the
// signal bus. A lagged receive is logged and the loop continues; signals
// are not replayed.
func (m *Manager) Run(ctx context.Context) {
	for {
		signal, lagged, ok := m.signalBus.Receive(ctx)
		if !ok {
			return
		}
		if lagged > 0 {
			log.Warn().Uint64("lagged", lagged).Str("component", "ordermanager").Msg("signal bus consumer fell behind")
		}
		m.handleSignal(signal)
	}
}

// handleSignal runs one signal through the full admit -> persist -> submit
// -> record pipeline. Every step past admission is best-effort: a failure
// to submit or record never un-persists the order, matching the policy that
// a minted, persisted order is the durable source of truth even when its
// venue leg fails.
func (m *Manager) handleSignal(signal domain.Signal) {
	bankroll := m.risk.Bankroll()
	exposure, err := m.totalExposure()
	if err != nil {
		log.Error().Err(err).Msg("ordermanager: failed to compute total exposure, dropping signal")
		return
	}

	if !m.risk.CheckSignal(signal, bankroll, exposure) {
		log.Info().
			Str("strategy", signal.Strategy).
			Str("market_id", signal.MarketID).
			Float64("price", signal.Price).
			Float64("size", signal.Size).
			Msg("signal rejected by risk gate")
		return
	}

	order := domain.Order{
		ID:        uuid.New().String(),
		MarketID:  signal.MarketID,
		TokenID:   signal.TokenID,
		Side:      signal.Side,
		Price:     signal.Price,
		Size:      signal.Size,
		OrderType: domain.GTC,
		Status:    domain.Pending,
		CreatedAt: time.Now().UTC(),
	}

	// Persisting before submission is the durable commit point: once this
	// succeeds, the order exists regardless of what the venue does next.
	if err := m.store.InsertOrder(order); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("failed to persist order, not submitting")
		return
	}

	result, err := m.venue.PostOrder(order.TokenID, order.Price, order.Size, order.Side, order.OrderType)
	if err != nil || !result.Success {
		if err == nil {
			err = errString(result.ErrorMessage)
		}
		log.Warn().Err(err).Str("order_id", order.ID).Msg("venue rejected order")
		if uerr := m.store.UpdateOrderStatus(order.ID, domain.Failed, ""); uerr != nil {
			log.Error().Err(uerr).Str("order_id", order.ID).Msg("failed to mark order failed")
		}
		return
	}

	if err := m.store.UpdateOrderStatus(order.ID, domain.Open, result.RemoteID); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("failed to mark order open")
	}

	// This core records a trade on venue acceptance rather than on a later
	// fill confirmation; see the package doc comment.
	trade := domain.Trade{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		MarketID:  order.MarketID,
		Side:      order.Side,
		Price:     order.Price,
		Size:      order.Size,
		Fee:       takerFeeRate * order.Price * order.Size,
		Timestamp: time.Now().UTC(),
	}
	if err := m.store.InsertTrade(trade); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("failed to record trade")
	}
	m.risk.UpdateBankroll(bankroll - trade.Fee)

	if err := positions.ApplyFill(m.store, order.MarketID, order.TokenID, order.Side, order.Price, order.Size); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("failed to apply fill to positions")
	}
}

// totalExposure sums notional (size * avg_price) across every open position,
// the input CheckSignal needs to enforce the account-wide exposure cap.
func (m *Manager) totalExposure() (float64, error) {
	open, err := m.store.GetPositions()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range open {
		total += p.Size * p.AvgPrice
	}
	return total, nil
}

// CancelAll cancels every resting order at the venue and transitions every
// locally open order to Cancelled. It is invoked by the kill switch and is
// idempotent: calling it with no open orders is a no-op.
func (m *Manager) CancelAll() error {
	if _, err := m.venue.CancelAll(); err != nil {
		return err
	}

	open, err := m.store.GetOpenOrders()
	if err != nil {
		return err
	}
	for _, o := range open {
		if err := m.store.UpdateOrderStatus(o.ID, domain.Cancelled, ""); err != nil {
			log.Error().Err(err).Str("order_id", o.ID).Msg("failed to mark order cancelled")
		}
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }
