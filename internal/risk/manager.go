// Package risk is the trading-active gatekeeper: drawdown peak tracking,
// per-signal admission checks, and the sticky kill switch. Grounded on the
// teacher's RWMutex-guarded Manager shape (internal/risk/manager.go,
// risk/manager.go) generalized to the narrower RiskConfig and exact
// admission rules this project's design specifies.
package risk

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

// Config is the immutable set of thresholds the manager enforces.
type Config struct {
	MaxPositionPct   float64
	MaxDrawdownPct   float64
	MinBankroll      float64
	StartingBankroll float64
	MaxExposure      float64
}

// Manager is the risk gate every signal must pass before becoming an order.
// bankroll and peakBankroll are reader/writer-locked (read-mostly: readers
// in CheckSignal and context construction, writer in the P&L snapshot loop
// and UpdateBankroll). tradingActive is a plain atomic boolean.
type Manager struct {
	config Config

	mu           sync.RWMutex
	bankroll     float64
	peakBankroll float64

	tradingActive atomic.Bool
}

// NewManager builds a Manager seeded at the configured starting bankroll,
// with trading active.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		config:       cfg,
		bankroll:     cfg.StartingBankroll,
		peakBankroll: cfg.StartingBankroll,
	}
	m.tradingActive.Store(true)
	return m
}

// Bankroll returns the current bankroll value.
func (m *Manager) Bankroll() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bankroll
}

// UpdateBankroll advances the peak watermark (monotonically non-decreasing)
// and trips the kill switch if bankroll has fallen below the configured
// floor or drawdown limit. Returns whether trading remains admissible.
func (m *Manager) UpdateBankroll(bankroll float64) bool {
	m.mu.Lock()
	m.bankroll = bankroll
	if bankroll > m.peakBankroll {
		m.peakBankroll = bankroll
	}
	peak := m.peakBankroll
	m.mu.Unlock()

	drawdown := 0.0
	if peak > 0 {
		drawdown = (peak - bankroll) / peak
	}

	if bankroll < m.config.MinBankroll || drawdown > m.config.MaxDrawdownPct {
		m.tradingActive.Store(false)
		log.Warn().
			Float64("bankroll", bankroll).
			Float64("peak_bankroll", peak).
			Float64("drawdown", drawdown).
			Msg("risk kill switch tripped")
		return false
	}
	return true
}

// CheckSignal returns whether a signal may be admitted to the order
// manager. It never mutates risk state; admission rejections are logged by
// the caller, not here, matching the error-handling policy's "Admission
// (risk rejection) — signal dropped, logged at info; no state change."
func (m *Manager) CheckSignal(signal domain.Signal, bankroll, totalExposure float64) bool {
	if !m.tradingActive.Load() {
		return false
	}
	if bankroll < m.config.MinBankroll {
		return false
	}

	notional := signal.Size * signal.Price
	if notional > m.config.MaxPositionPct*bankroll {
		return false
	}
	if totalExposure+notional > m.config.MaxExposure {
		return false
	}
	return true
}

// Kill unconditionally sets trading inactive.
func (m *Manager) Kill() {
	m.tradingActive.Store(false)
	log.Warn().Msg("trading killed")
}

// Resume unconditionally re-enables trading. The peak watermark is NOT
// reset: resuming after a drawdown trip does not erase the history that
// drawdown is measured against.
func (m *Manager) Resume() {
	m.tradingActive.Store(true)
	log.Info().Msg("trading resumed")
}

// IsActive reports the current trading-active flag.
func (m *Manager) IsActive() bool {
	return m.tradingActive.Load()
}

// PeakBankroll returns the current non-decreasing watermark.
func (m *Manager) PeakBankroll() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peakBankroll
}
