// Package app contains the arbitrage bounded context's application services:
// Detector, Executor and Controller, and the ports they depend on.
package app

import (
	"context"
	"time"

	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	"github.com/shopspring/decimal"
)

// TradeOutcome classifies how an Executor attempt finished.
type TradeOutcome string

const (
	OutcomeFilled  TradeOutcome = "FILLED"
	OutcomePartial TradeOutcome = "PARTIAL"
	OutcomeAborted TradeOutcome = "ABORTED"
)

// TradeReport is a fully-worked record of one execution attempt, independent
// of how it is displayed or persisted.
type TradeReport struct {
	Opportunity domain.Opportunity
	Outcome     TradeOutcome
	FilledSizeK decimal.Decimal
	FilledSizeP decimal.Decimal
	RealizedPnl decimal.Decimal
	UnwoundVia  string
	Timestamp   time.Time
	Detail      string
}

// Reporter surfaces the arbitrage context's runtime state to a display or
// logging sink. The console and TUI reporters are the two infra
// implementations.
type Reporter interface {
	Start(ctx context.Context) error
	Stop() error

	ReportPair(pair marketdomain.MarketPair)
	ReportBook(book marketdomain.OrderBook)
	ReportOpportunity(opp *domain.Opportunity)
	ReportTrade(report TradeReport)
	ReportRiskState(bankroll, dailyPnl, exposure decimal.Decimal, killSwitch bool)
}

// EventLog persists the durable record of matched pairs, opportunities and
// trades for later analysis. A bounded queue absorbs bursts; entries are
// dropped (and counted) rather than blocking the hot path.
type EventLog interface {
	RecordPair(ctx context.Context, pair marketdomain.MarketPair) error
	// RecordOpportunity persists opp together with the Controller's decision
	// (ACCEPTED, REJECTED, NO_BUY or SIGNAL) and a human-readable reason, so
	// the opportunities table alone can reconstruct why every candidate did
	// or didn't trade.
	RecordOpportunity(ctx context.Context, opp domain.Opportunity, decision, reason string) error
	RecordTrade(ctx context.Context, report TradeReport) error
	RecordDailyMetrics(ctx context.Context, date string, bankroll, dailyPnl, exposure decimal.Decimal) error
	Close() error
}
