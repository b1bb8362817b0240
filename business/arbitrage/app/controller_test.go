package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
)

// recordedOpportunity captures one RecordOpportunity call for assertion.
type recordedOpportunity struct {
	opp      domain.Opportunity
	decision string
	reason   string
}

type fakeEventLog struct {
	opportunities []recordedOpportunity
}

func (f *fakeEventLog) RecordPair(ctx context.Context, pair marketdomain.MarketPair) error { return nil }
func (f *fakeEventLog) RecordOpportunity(ctx context.Context, opp domain.Opportunity, decision, reason string) error {
	f.opportunities = append(f.opportunities, recordedOpportunity{opp: opp, decision: decision, reason: reason})
	return nil
}
func (f *fakeEventLog) RecordTrade(ctx context.Context, report TradeReport) error { return nil }
func (f *fakeEventLog) RecordDailyMetrics(ctx context.Context, date string, bankroll, dailyPnl, exposure decimal.Decimal) error {
	return nil
}
func (f *fakeEventLog) Close() error { return nil }

var _ EventLog = (*fakeEventLog)(nil)

type fakeReporter struct {
	trades []TradeReport
}

func (f *fakeReporter) Start(ctx context.Context) error { return nil }
func (f *fakeReporter) Stop() error                      { return nil }
func (f *fakeReporter) ReportPair(pair marketdomain.MarketPair)          {}
func (f *fakeReporter) ReportBook(book marketdomain.OrderBook)           {}
func (f *fakeReporter) ReportOpportunity(opp *domain.Opportunity)        {}
func (f *fakeReporter) ReportTrade(report TradeReport)                   { f.trades = append(f.trades, report) }
func (f *fakeReporter) ReportRiskState(bankroll, dailyPnl, exposure decimal.Decimal, killSwitch bool) {
}

var _ Reporter = (*fakeReporter)(nil)

func newTestController(t *testing.T, eventLog EventLog, venueK, venueP marketapp.VenueClient) *Controller {
	t.Helper()
	books := marketapp.NewBookCache(500 * time.Millisecond)
	risk := newTestRiskGate("1000")
	detector := NewDetector(books, DetectorConfig{
		MinProfit: decimal.RequireFromString("0.01"),
		Fees:      testFees(),
	}, newTestLogger())
	executor := NewExecutor(risk, books, venueK, venueP, ExecutorConfig{
		MaxRiskPerTrade:  decimal.RequireFromString("0.01"),
		MinOrderValueUSD: decimal.RequireFromString("1"),
	}, newTestLogger())
	matcher := marketdomain.NewMatcher(0.5)

	return NewController(venueK, venueP, books, matcher, detector, executor, risk,
		&fakeReporter{}, eventLog, ControllerConfig{CooldownSeconds: time.Minute}, newTestLogger())
}

// TestControllerRecordsNoBuyDecision reproduces scenario 2: with all four
// prices at 0.50 the Detector's pre-filter skips the pair, and the Controller
// still evaluates the scenarios and logs NO_BUY with a reason referencing the
// net profit shortfall, without touching the Executor.
func TestControllerRecordsNoBuyDecision(t *testing.T) {
	events := &fakeEventLog{}
	venueK := newFakeVenue(marketdomain.VenueK)
	venueP := newFakeVenue(marketdomain.VenueP)
	c := newTestController(t, events, venueK, venueP)

	tp := &trackedPair{pair: testPair("0.50", "0.50", "0.50", "0.50"), state: StateMonitoring}
	c.evaluatePair(context.Background(), tp)

	if len(events.opportunities) != 1 {
		t.Fatalf("expected exactly one recorded opportunity, got %d", len(events.opportunities))
	}
	got := events.opportunities[0]
	if got.decision != "NO_BUY" {
		t.Errorf("expected decision NO_BUY, got %s", got.decision)
	}
	if len(venueK.placed) != 0 || len(venueP.placed) != 0 {
		t.Error("expected the Executor never to place an order for a non-actionable opportunity")
	}
}

// TestControllerRejectsExtremeProbability reproduces scenario 3: a 0.95
// Kalshi YES ask is outside the [0.10, 0.90] tradability band, so the
// Controller must reject before ever calling the Executor, logging REJECTED
// with the literal "Kalshi YES too high (95.0%)" reason.
func TestControllerRejectsExtremeProbability(t *testing.T) {
	events := &fakeEventLog{}
	venueK := newFakeVenue(marketdomain.VenueK)
	venueP := newFakeVenue(marketdomain.VenueP)
	c := newTestController(t, events, venueK, venueP)

	tp := &trackedPair{pair: testPair("0.95", "0.05", "0.85", "0.20"), state: StateMonitoring}
	c.evaluatePair(context.Background(), tp)

	if len(events.opportunities) != 1 {
		t.Fatalf("expected exactly one recorded opportunity, got %d", len(events.opportunities))
	}
	got := events.opportunities[0]
	if got.decision != "REJECTED" {
		t.Fatalf("expected decision REJECTED, got %s", got.decision)
	}
	if got.reason != "Kalshi YES too high (95.0%)" {
		t.Errorf("expected reason %q, got %q", "Kalshi YES too high (95.0%)", got.reason)
	}
	if len(venueK.placed) != 0 || len(venueP.placed) != 0 {
		t.Error("expected the Executor never to be invoked for a rejected opportunity")
	}
	if tp.state == StateExecuting {
		t.Error("expected pair state not to advance to EXECUTING on rejection")
	}
}

// TestControllerAcceptsAndExecutes covers the accepted path end to end: a
// clear hard-arbitrage candidate within the tradability band should record
// ACCEPTED, invoke the Executor, and leave the pair back in MONITORING with
// a cooldown set.
func TestControllerAcceptsAndExecutes(t *testing.T) {
	events := &fakeEventLog{}
	venueK := newFakeVenue(marketdomain.VenueK)
	venueP := newFakeVenue(marketdomain.VenueP)
	venueK.topBook = flatBook(marketdomain.VenueK, "k-inst", "0.44", "0.55")
	venueP.topBook = flatBook(marketdomain.VenueP, "p-inst", "0.36", "0.63")
	c := newTestController(t, events, venueK, venueP)

	tp := &trackedPair{pair: testPair("0.44", "0.55", "0.36", "0.63"), state: StateMonitoring}
	c.evaluatePair(context.Background(), tp)

	var decisions []string
	for _, o := range events.opportunities {
		decisions = append(decisions, o.decision)
	}
	foundAccepted := false
	for _, d := range decisions {
		if d == "ACCEPTED" {
			foundAccepted = true
		}
	}
	if !foundAccepted {
		t.Fatalf("expected an ACCEPTED decision among %v", decisions)
	}
	if len(venueK.placed) == 0 || len(venueP.placed) == 0 {
		t.Error("expected the Executor to place orders on both legs for an accepted opportunity")
	}
	if tp.state != StateMonitoring {
		t.Errorf("expected pair state back to MONITORING after execution, got %s", tp.state)
	}
}
