// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/pkg/ui"
)

// TUIReporter implements Reporter by forwarding events to the already-running
// Bubble Tea program via ui.Send. The program itself is started separately
// by main.go; this adapter only feeds it messages.
type TUIReporter struct {
	started bool
}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

var _ app.Reporter = (*TUIReporter)(nil)

// Start marks the reporter active and announces the config step as done.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.started = true
	ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
	return nil
}

// UpdateStartup sends startup progress to the TUI. It is not part of the
// Reporter interface, and nothing in the module calls it.
func (r *TUIReporter) UpdateStartup(step, status, message string) {
	if !r.started {
		return
	}
	ui.Send(ui.StartupMsg{Step: step, Status: status, Message: message})
}

// ReportPair announces a newly matched cross-venue pair.
func (r *TUIReporter) ReportPair(pair marketdomain.MarketPair) {
	if !r.started {
		return
	}
	ui.Send(ui.PairMsg{Pair: pair})
}

// ReportBook forwards a top-of-book update for a tracked instrument.
func (r *TUIReporter) ReportBook(book marketdomain.OrderBook) {
	if !r.started {
		return
	}
	ui.Send(ui.BookMsg{Book: book})
}

// ReportOpportunity sends a detected opportunity to the TUI.
func (r *TUIReporter) ReportOpportunity(opp *domain.Opportunity) {
	if !r.started {
		return
	}
	ui.Send(ui.OpportunityMsg{Opportunity: opp})
}

// ReportTrade sends an execution attempt's final outcome to the TUI.
func (r *TUIReporter) ReportTrade(report app.TradeReport) {
	if !r.started {
		return
	}
	ui.Send(ui.TradeMsg{
		PairID:     report.Opportunity.PairID,
		Outcome:    string(report.Outcome),
		UnwoundVia: report.UnwoundVia,
		Detail:     report.Detail,
		Timestamp:  report.Timestamp,
	})
}

// ReportRiskState sends the current bankroll, daily P&L and exposure to the TUI.
func (r *TUIReporter) ReportRiskState(bankroll, dailyPnl, exposure decimal.Decimal, killSwitch bool) {
	if !r.started {
		return
	}
	ui.Send(ui.RiskStateMsg{
		Bankroll:   bankroll,
		DailyPnl:   dailyPnl,
		Exposure:   exposure,
		KillSwitch: killSwitch,
	})
}

// Stop marks the reporter inactive.
func (r *TUIReporter) Stop() error {
	r.started = false
	return nil
}
