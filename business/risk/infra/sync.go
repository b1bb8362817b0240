// Package infra hosts the background bankroll-sync task that keeps
// RiskGate's cached balance current.
package infra

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/risk/app"
	"github.com/fd1az/arbitrage-bot/internal/circuitbreaker"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// BalanceSyncer periodically refreshes a RiskGate's bankroll from venue K's
// balance endpoint. A circuit breaker wraps the call so a flapping balance
// endpoint degrades to "keep serving the cached bankroll" instead of
// retrying into a stall - the same role the reference repo gives its
// Ethereum block subscriber's breaker.
type BalanceSyncer struct {
	gate     *app.RiskGate
	source   app.BalanceSource
	interval time.Duration
	logger   logger.LoggerInterface
	breaker  *circuitbreaker.CircuitBreaker[decimal.Decimal]
}

// NewBalanceSyncer builds a syncer that polls source every interval.
func NewBalanceSyncer(gate *app.RiskGate, source app.BalanceSource, interval time.Duration, log logger.LoggerInterface) *BalanceSyncer {
	cfg := circuitbreaker.DefaultConfig("risk-balance-sync")
	return &BalanceSyncer{
		gate:     gate,
		source:   source,
		interval: interval,
		logger:   log,
		breaker:  circuitbreaker.New[decimal.Decimal](cfg),
	}
}

// SyncOnce fetches the balance once and applies it to the gate on success.
// A failure is logged and the cached bankroll is left untouched.
func (s *BalanceSyncer) SyncOnce(ctx context.Context) {
	balance, err := s.breaker.Execute(func() (decimal.Decimal, error) {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.source.Balance(callCtx)
	})
	if err != nil {
		s.logger.Warn(ctx, "bankroll sync failed, retaining cached value", "error", err)
		return
	}
	s.gate.SyncBalance(balance)
	s.logger.Debug(ctx, "bankroll synced", "balance", balance.String())
}

// Run blocks, syncing on s.interval until ctx is cancelled. The risk
// module's Startup runs this as a long-lived background task.
func (s *BalanceSyncer) Run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}
