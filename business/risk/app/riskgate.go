// Package app contains the RiskGate service: the single mutex-guarded
// gatekeeper every trade attempt must clear before the Executor fires a leg.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-bot/business/risk/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arbitrage-bot/business/risk/app"
	meterName  = "github.com/fd1az/arbitrage-bot/business/risk/app"

	balanceCacheFresh = 10 * time.Second
)

type gateMetrics struct {
	rejections  metric.Int64Counter
	killSwitch  metric.Int64Counter
}

// RiskGate enforces per-trade, daily-loss and net-exposure caps around a
// single process-wide RiskState. Every method holds gate.mu, including the
// Executor's BankrollIfFresh freshness check.
type RiskGate struct {
	mu     sync.Mutex
	state  domain.RiskState
	limits domain.Limits
	logger logger.LoggerInterface

	tracer  trace.Tracer
	metrics *gateMetrics

	now func() time.Time
}

// New builds a RiskGate with the given limits and starting bankroll. now
// defaults to time.Now; tests may override it to control daily-reset and
// sync-freshness behavior deterministically.
func New(limits domain.Limits, startingBankroll decimal.Decimal, log logger.LoggerInterface) *RiskGate {
	g := &RiskGate{
		state: domain.RiskState{
			Bankroll:      startingBankroll,
			LastResetDate: domain.TodayUTC(time.Now()),
		},
		limits: limits,
		logger: log,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	if err := g.initMetrics(); err != nil {
		log.Error(context.Background(), "failed to initialize risk gate metrics", "error", err)
	}
	return g
}

func (g *RiskGate) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	g.metrics = &gateMetrics{}
	g.metrics.rejections, err = meter.Int64Counter("risk_gate_rejections_total",
		metric.WithDescription("Trades rejected by the risk gate, by reason"))
	if err != nil {
		return err
	}
	g.metrics.killSwitch, err = meter.Int64Counter("risk_gate_kill_switch_engaged_total",
		metric.WithDescription("Times the kill switch has engaged"))
	return err
}

// CanExecute reports whether a trade costing amount may proceed. It runs the
// daily-reset check first, then evaluates the four rejection conditions in
// order.
func (g *RiskGate) CanExecute(ctx context.Context, amount decimal.Decimal) (bool, domain.RejectionReason) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkDailyResetLocked()

	reason := domain.Evaluate(g.state, g.limits, amount)
	if reason == domain.RejectNone {
		return true, reason
	}

	if reason == domain.RejectDailyLoss {
		g.state.KillSwitch = true
		if g.metrics != nil {
			g.metrics.killSwitch.Add(ctx, 1)
		}
		g.logger.Error(ctx, "daily loss cap breached, kill switch engaged",
			"daily_pnl", g.state.DailyPnl.String(), "bankroll", g.state.Bankroll.String())
	}

	if g.metrics != nil {
		g.metrics.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
	}
	g.logger.Warn(ctx, "risk gate rejected trade", "amount", amount.String(), "reason", string(reason))
	return false, reason
}

// RegisterTrade increases tracked exposure by the trade's total cost
// including fees.
func (g *RiskGate) RegisterTrade(totalCostInclFees decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Exposure = g.state.Exposure.Add(totalCostInclFees)
}

// ClosePosition decreases tracked exposure when a position is unwound or
// resolved.
func (g *RiskGate) ClosePosition(amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Exposure = g.state.Exposure.Sub(amount)
	if g.state.Exposure.IsNegative() {
		g.state.Exposure = decimal.Zero
	}
}

// UpdatePnl adjusts both bankroll and cumulative daily PnL by delta (which
// may be negative).
func (g *RiskGate) UpdatePnl(delta decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Bankroll = g.state.Bankroll.Add(delta)
	g.state.DailyPnl = g.state.DailyPnl.Add(delta)
}

// checkDailyResetLocked zeroes dailyPnl and exposure and advances the reset
// date when the UTC calendar date has rolled over. Caller must hold g.mu.
func (g *RiskGate) checkDailyResetLocked() {
	now := g.now()
	if !domain.ShouldReset(g.state.LastResetDate, now) {
		return
	}
	g.state.DailyPnl = decimal.Zero
	g.state.Exposure = decimal.Zero
	g.state.LastResetDate = domain.TodayUTC(now)
	g.logger.Info(context.Background(), "risk state reset for new UTC day", "date", g.state.LastResetDate)
}

// SyncBalance replaces the cached bankroll with a freshly observed value and
// records the sync time. Called by the background sync task; failure to
// fetch a fresh value means this is simply never called and the cached
// bankroll stands.
func (g *RiskGate) SyncBalance(balance decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Bankroll = balance
	g.state.LastSyncAt = g.now()
}

// BankrollIfFresh returns the cached bankroll and true when the last sync is
// within the 10s freshness window the Executor relies on to skip a
// redundant balance fetch before sizing a trade.
func (g *RiskGate) BankrollIfFresh() (decimal.Decimal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.LastSyncAt.IsZero() || g.now().Sub(g.state.LastSyncAt) > balanceCacheFresh {
		return decimal.Zero, false
	}
	return g.state.Bankroll, true
}

// Snapshot returns a copy of the current risk state for reporting.
func (g *RiskGate) Snapshot() domain.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
