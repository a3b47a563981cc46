// Package controlplane exposes the bot's read-only state and the kill
// switch over plain HTTP/JSON. Grounded on the sibling pack repo
// 0xtitan6-polymarket-mm's internal/api server/handlers shape (net/http
// ServeMux, one handler per route, encoding/json responses), adapted from
// its slog logger to this project's zerolog and from a dashboard snapshot
// to this project's status/positions/trades/orders/pnl/strategies routes.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

// Store is the read surface the control plane reports on.
type Store interface {
	GetPositions() ([]domain.Position, error)
	GetRecentTrades(limit int) ([]domain.Trade, error)
	GetOpenOrders() ([]domain.Order, error)
	GetPnlHistory() ([]domain.PnlSnapshot, error)
}

// RiskGate is the subset of the risk manager the status route and the kill
// route need.
type RiskGate interface {
	Bankroll() float64
	PeakBankroll() float64
	IsActive() bool
	Kill()
}

// CancelAller cancels every resting order at the venue and marks it
// cancelled in persistence; satisfied by *ordermanager.Manager.
type CancelAller interface {
	CancelAll() error
}

// StrategyReporter names and reports the enabled state of every
// registered strategy.
type StrategyReporter interface {
	Name() string
	Enabled() bool
}

// Server runs the control plane's HTTP API.
type Server struct {
	store      Store
	risk       RiskGate
	orders     CancelAller
	strategies []StrategyReporter
	httpServer *http.Server
}

// New builds a Server bound to addr (e.g. ":3001") and wires its routes.
func New(addr string, store Store, risk RiskGate, orders CancelAller, strategies []StrategyReporter) *Server {
	s := &Server{store: store, risk: risk, orders: orders, strategies: strategies}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/pnl", s.handlePnl)
	mux.HandleFunc("/api/strategies", s.handleStrategies)
	mux.HandleFunc("/api/kill", s.handleKill)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Run starts serving and blocks until the server stops or errors. Callers
// typically run it in its own goroutine and call Shutdown on the outer
// context's cancellation.
func (s *Server) Run() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("control plane listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control plane server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("control plane: failed to encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"bankroll":       s.risk.Bankroll(),
		"peak_bankroll":  s.risk.PeakBankroll(),
		"trading_active": s.risk.IsActive(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.GetPositions()
	if err != nil {
		log.Error().Err(err).Msg("control plane: get positions")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, positions)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.GetRecentTrades(100)
	if err != nil {
		log.Error().Err(err).Msg("control plane: get recent trades")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, trades)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.GetOpenOrders()
	if err != nil {
		log.Error().Err(err).Msg("control plane: get open orders")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, orders)
}

func (s *Server) handlePnl(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.GetPnlHistory()
	if err != nil {
		log.Error().Err(err).Msg("control plane: get pnl history")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, history)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]interface{}, 0, len(s.strategies))
	for _, strat := range s.strategies {
		out = append(out, map[string]interface{}{"name": strat.Name(), "enabled": strat.Enabled()})
	}
	writeJSON(w, out)
}

// handleKill is idempotent: killing an already-inactive bot is a no-op
// besides re-issuing CancelAll, which is itself idempotent.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.risk.Kill()
	if err := s.orders.CancelAll(); err != nil {
		log.Error().Err(err).Msg("control plane: cancel-all failed during kill")
		http.Error(w, "kill only partially applied: cancel-all failed", http.StatusInternalServerError)
		return
	}

	log.Warn().Msg("trading killed via control plane")
	writeJSON(w, map[string]string{"status": "killed"})
}
