// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		out: os.Stdout,
	}
}

var _ app.Reporter = (*ConsoleReporter)(nil)

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Arbitrage Bot Started")
	fmt.Fprintln(r.out, "======================")
	return nil
}

// ReportPair announces a newly matched cross-venue pair.
func (r *ConsoleReporter) ReportPair(pair marketdomain.MarketPair) {
	fmt.Fprintf(r.out, "[%s] matched pair %s: %q <-> %q\n",
		time.Now().Format("15:04:05"), pair.ID, pair.EventK.Title, pair.EventP.Title)
}

// ReportBook is a no-op for the console reporter: book updates arrive far
// too often to print one line per tick.
func (r *ConsoleReporter) ReportBook(book marketdomain.OrderBook) {}

// ReportOpportunity outputs a detected opportunity to the console.
func (r *ConsoleReporter) ReportOpportunity(opp *domain.Opportunity) {
	if opp.Kind != domain.KindHard {
		fmt.Fprintf(r.out, "[%s] probabilistic signal on %s: gap=%s\n",
			opp.Timestamp.Format("15:04:05"), opp.PairID, opp.ProbGap.StringFixed(4))
		return
	}

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY DETECTED")
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "Timestamp:      %s\n", opp.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Pair:           %s\n", opp.PairID)
	fmt.Fprintf(r.out, "Direction:      %s\n", opp.Direction.String())
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(r.out, "COSTS")
	fmt.Fprintf(r.out, "  Gross:          %s\n", opp.GrossCost.StringFixed(4))
	fmt.Fprintf(r.out, "  Fees:           %s\n", opp.Fees.StringFixed(4))
	fmt.Fprintf(r.out, "  Net Profit:     %s\n", opp.NetProfit.StringFixed(4))
	fmt.Fprintln(r.out, "================================================================================")
}

// ReportTrade outputs an execution attempt's final outcome.
func (r *ConsoleReporter) ReportTrade(report app.TradeReport) {
	fmt.Fprintf(r.out, "[%s] trade %s -> %s", report.Timestamp.Format("15:04:05"), report.Opportunity.PairID, report.Outcome)
	if report.UnwoundVia != "" {
		fmt.Fprintf(r.out, " (unwound via %s)", report.UnwoundVia)
	}
	if report.Detail != "" {
		fmt.Fprintf(r.out, ": %s", report.Detail)
	}
	fmt.Fprintln(r.out)
}

// ReportRiskState outputs the current bankroll, daily P&L and exposure.
func (r *ConsoleReporter) ReportRiskState(bankroll, dailyPnl, exposure decimal.Decimal, killSwitch bool) {
	status := ""
	if killSwitch {
		status = " [KILL SWITCH ENGAGED]"
	}
	fmt.Fprintf(r.out, "[%s] bankroll=%s dailyPnl=%s exposure=%s%s\n",
		time.Now().Format("15:04:05"), bankroll.StringFixed(2), dailyPnl.StringFixed(2), exposure.StringFixed(2), status)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Arbitrage Bot Stopped")
	return nil
}
