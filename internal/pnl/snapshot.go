// Package pnl runs the periodic bankroll/P&L snapshot task. Grounded on
// original_source's main.rs snapshot task (a 300-second ticker reading
// bankroll, feeding it back through update_bankroll, and recording a
// (bankroll, pnl_total) row), expressed as this project's own ticker-driven
// component in the teacher's goroutine-per-component style.
package pnl

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const snapshotInterval = 300 * time.Second

// RiskGate is the subset of the risk manager the snapshot loop reads from
// and re-asserts the drawdown check against.
type RiskGate interface {
	Bankroll() float64
	UpdateBankroll(bankroll float64) bool
}

// Store persists the periodic snapshot.
type Store interface {
	RecordPnlSnapshot(bankroll, pnlTotal float64) error
}

// Loop ticks every snapshotInterval, re-running the drawdown check against
// the current bankroll and appending a snapshot row.
type Loop struct {
	risk             RiskGate
	store            Store
	startingBankroll float64
	interval         time.Duration
}

// New builds a snapshot Loop. startingBankroll is the baseline pnl_total is
// measured against.
func New(risk RiskGate, store Store, startingBankroll float64) *Loop {
	return &Loop{risk: risk, store: store, startingBankroll: startingBankroll, interval: snapshotInterval}
}

// Run blocks, ticking until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	bankroll := l.risk.Bankroll()
	l.risk.UpdateBankroll(bankroll)

	pnlTotal := bankroll - l.startingBankroll
	if err := l.store.RecordPnlSnapshot(bankroll, pnlTotal); err != nil {
		log.Error().Err(err).Msg("failed to record pnl snapshot")
		return
	}
	log.Info().Float64("bankroll", bankroll).Float64("pnl_total", pnlTotal).Msg("pnl snapshot recorded")
}
