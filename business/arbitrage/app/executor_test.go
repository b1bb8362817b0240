package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	riskapp "github.com/fd1az/arbitrage-bot/business/risk/app"
	riskdomain "github.com/fd1az/arbitrage-bot/business/risk/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

func newTestLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func newTestRiskGate(bankroll string) *riskapp.RiskGate {
	limits := riskdomain.Limits{
		MaxRiskPerTrade: decimal.RequireFromString("0.50"),
		MaxDailyLoss:    decimal.RequireFromString("0.50"),
		MaxNetExposure:  decimal.RequireFromString("0.90"),
	}
	return riskapp.New(limits, decimal.RequireFromString(bankroll), newTestLogger())
}

// fakeOrder is the scripted state of one placed order in fakeVenue.
type fakeOrder struct {
	side   marketapp.OrderSide
	status marketapp.OrderStatus
	filled decimal.Decimal
}

// fakeVenue is a hand-scripted VenueClient giving tests deterministic control
// over fills, top-of-book prices and REST-fallback observability - more
// precise than venuesim's auto-fill model for exercising the partial-fill
// unwind and stale-cache REST-fallback paths explicitly.
type fakeVenue struct {
	mu sync.Mutex

	venue marketdomain.Venue

	topBook     marketdomain.OrderBook
	topBookErr  error
	topBookHits int

	orders    map[marketapp.OrderID]*fakeOrder
	nextID    int
	placeErr  error
	cancelled []marketapp.OrderID
	placed    []marketapp.OrderID

	// fillStatus/fillFraction control the terminal state PlaceOrder assigns
	// to new orders, so a test can script a partial fill deterministically
	// instead of racing a background goroutine against the poll loop.
	fillStatus   marketapp.OrderStatus
	fillFraction decimal.Decimal
}

func newFakeVenue(v marketdomain.Venue) *fakeVenue {
	return &fakeVenue{
		venue:        v,
		orders:       make(map[marketapp.OrderID]*fakeOrder),
		fillStatus:   marketapp.OrderFilled,
		fillFraction: decimal.NewFromInt(1),
	}
}

func (f *fakeVenue) Venue() marketdomain.Venue { return f.venue }

func (f *fakeVenue) Discover(ctx context.Context, filter marketapp.DiscoverFilter) ([]marketdomain.MarketEvent, error) {
	return nil, nil
}
func (f *fakeVenue) Refresh(ctx context.Context, instrumentID string) (*marketdomain.MarketEvent, error) {
	return nil, nil
}
func (f *fakeVenue) Subscribe(ctx context.Context, ids []string) (<-chan marketdomain.BookUpdate, error) {
	return nil, nil
}

func (f *fakeVenue) TopOfBook(ctx context.Context, instrumentID string) (*marketdomain.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topBookHits++
	if f.topBookErr != nil {
		return nil, f.topBookErr
	}
	b := f.topBook
	return &b, nil
}

func (f *fakeVenue) Balance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("10000"), nil
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, instrumentID string, side marketapp.OrderSide, size, limitPrice decimal.Decimal) (marketapp.OrderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.nextID++
	id := marketapp.OrderID(fmt.Sprintf("fake-%s-%d", f.venue, f.nextID))
	f.orders[id] = &fakeOrder{side: side, status: f.fillStatus, filled: size.Mul(f.fillFraction)}
	f.placed = append(f.placed, id)
	return id, nil
}

func (f *fakeVenue) QueryOrder(ctx context.Context, id marketapp.OrderID) (marketapp.OrderState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[id]
	if o == nil {
		return marketapp.OrderState{}, nil
	}
	return marketapp.OrderState{OrderID: id, Status: o.status, Filled: o.filled}, nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, id marketapp.OrderID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	if o, ok := f.orders[id]; ok {
		o.status = marketapp.OrderCancelled
	}
	return nil
}

// setOrderResult overrides a placed order's terminal state, used to script
// partial fills after PlaceOrder already ran inside Execute.
func (f *fakeVenue) setOrderResult(id marketapp.OrderID, status marketapp.OrderStatus, filled decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.status = status
		o.filled = filled
	}
}

var _ marketapp.VenueClient = (*fakeVenue)(nil)

func flatBook(venue marketdomain.Venue, instrument, yesPrice, noPrice string) marketdomain.OrderBook {
	return marketdomain.OrderBook{
		Venue: venue, InstrumentID: instrument,
		YesAsks:   []marketdomain.Level{{Price: decimal.RequireFromString(yesPrice), Size: decimal.NewFromInt(1000)}},
		NoAsks:    []marketdomain.Level{{Price: decimal.RequireFromString(noPrice), Size: decimal.NewFromInt(1000)}},
		UpdatedAt: time.Now(),
	}
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:                 "opp-1",
		PairID:             "pair-1",
		Kind:               domain.KindHard,
		Direction:          domain.DirectionYesKNoP,
		GrossCost:          decimal.RequireFromString("0.80"),
		Fees:               decimal.RequireFromString("0.02"),
		NetProfit:          decimal.RequireFromString("0.18"),
		Actionable:         true,
		VenueKInstrumentID: "k-inst",
		VenuePInstrumentID: "p-inst",
	}
}

func TestExecutorFillsBothLegs(t *testing.T) {
	venueK := newFakeVenue(marketdomain.VenueK)
	venueP := newFakeVenue(marketdomain.VenueP)
	venueK.topBook = flatBook(marketdomain.VenueK, "k-inst", "0.44", "0.55")
	venueP.topBook = flatBook(marketdomain.VenueP, "p-inst", "0.36", "0.63")

	books := marketapp.NewBookCache(500 * time.Millisecond)
	risk := newTestRiskGate("1000")
	exec := NewExecutor(risk, books, venueK, venueP, ExecutorConfig{
		MaxRiskPerTrade:  decimal.RequireFromString("0.01"),
		MinOrderValueUSD: decimal.RequireFromString("1"),
	}, newTestLogger())

	report, err := exec.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != OutcomeFilled {
		t.Fatalf("expected OutcomeFilled, got %s (%s)", report.Outcome, report.Detail)
	}
}

// TestExecutorPartialFillUnwindsExcess reproduces scenario 4 from the spec's
// testable-properties section: K fills 10/10, P fills only 3/10. The
// executor must register the matched 3 contracts and unwind the 7-contract
// excess on the K leg.
func TestExecutorPartialFillUnwindsExcess(t *testing.T) {
	venueK := newFakeVenue(marketdomain.VenueK)
	venueP := newFakeVenue(marketdomain.VenueP)
	venueK.topBook = flatBook(marketdomain.VenueK, "k-inst", "0.44", "0.55")
	venueP.topBook = flatBook(marketdomain.VenueP, "p-inst", "0.36", "0.63")

	books := marketapp.NewBookCache(500 * time.Millisecond)
	risk := newTestRiskGate("10000")
	exec := NewExecutor(risk, books, venueK, venueP, ExecutorConfig{
		MaxRiskPerTrade:  decimal.RequireFromString("0.01"),
		MinOrderValueUSD: decimal.RequireFromString("1"),
	}, newTestLogger())

	// K fills completely; P fills only 30% (matches the spec's 10/3 split),
	// scripted up front so Execute's very first poll already observes it -
	// no race against a background goroutine needed.
	venueP.fillStatus = marketapp.OrderPartial
	venueP.fillFraction = decimal.RequireFromString("0.3")

	opp := testOpportunity()
	report, err := exec.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != OutcomePartial {
		t.Fatalf("expected OutcomePartial, got %s (%s)", report.Outcome, report.Detail)
	}
	if report.UnwoundVia != "hedge" {
		t.Fatalf("expected the excess K leg to unwind via the cheaper hedge, got %q", report.UnwoundVia)
	}
}

// TestExecutorFallsBackToRESTOnStaleBook reproduces scenario 5: BookCache has
// no fresh entry, so the executor must fall through to TopOfBook.
func TestExecutorFallsBackToRESTOnStaleBook(t *testing.T) {
	venueK := newFakeVenue(marketdomain.VenueK)
	venueP := newFakeVenue(marketdomain.VenueP)
	venueK.topBook = flatBook(marketdomain.VenueK, "k-inst", "0.44", "0.55")
	venueP.topBook = flatBook(marketdomain.VenueP, "p-inst", "0.36", "0.63")

	books := marketapp.NewBookCache(500 * time.Millisecond) // nothing seeded: always stale/missing
	risk := newTestRiskGate("1000")
	exec := NewExecutor(risk, books, venueK, venueP, ExecutorConfig{
		MaxRiskPerTrade:  decimal.RequireFromString("0.01"),
		MinOrderValueUSD: decimal.RequireFromString("1"),
	}, newTestLogger())

	report, err := exec.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != OutcomeFilled {
		t.Fatalf("expected execution to still succeed via REST fallback, got %s (%s)", report.Outcome, report.Detail)
	}
	if venueK.topBookHits == 0 || venueP.topBookHits == 0 {
		t.Error("expected both legs to fall through to TopOfBook when BookCache has no fresh entry")
	}
}

func TestExecutorAbortsOnInsufficientLiquidity(t *testing.T) {
	venueK := newFakeVenue(marketdomain.VenueK)
	venueP := newFakeVenue(marketdomain.VenueP)
	venueK.topBook = marketdomain.OrderBook{
		Venue: marketdomain.VenueK, InstrumentID: "k-inst",
		YesAsks:   []marketdomain.Level{{Price: decimal.RequireFromString("0.44"), Size: decimal.RequireFromString("0.001")}},
		NoAsks:    []marketdomain.Level{{Price: decimal.RequireFromString("0.55"), Size: decimal.RequireFromString("0.001")}},
		UpdatedAt: time.Now(),
	}
	venueP.topBook = flatBook(marketdomain.VenueP, "p-inst", "0.36", "0.63")

	books := marketapp.NewBookCache(500 * time.Millisecond)
	risk := newTestRiskGate("1000")
	exec := NewExecutor(risk, books, venueK, venueP, ExecutorConfig{
		MaxRiskPerTrade:  decimal.RequireFromString("0.5"),
		MinOrderValueUSD: decimal.RequireFromString("1"),
	}, newTestLogger())

	report, err := exec.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != OutcomeAborted {
		t.Fatalf("expected OutcomeAborted for insufficient liquidity, got %s", report.Outcome)
	}
}

func TestUnwindPicksCheaperOfHedgeAndAggressive(t *testing.T) {
	venueK := newFakeVenue(marketdomain.VenueK)
	books := marketapp.NewBookCache(500 * time.Millisecond)
	risk := newTestRiskGate("1000")
	exec := NewExecutor(risk, books, venueK, venueK, ExecutorConfig{
		MaxRiskPerTrade: decimal.RequireFromString("0.5"),
	}, newTestLogger())

	// Held YES on K; hedge (buy NO) is cheap (0.10) and well within size, so
	// it must beat the 0.99 aggressive-close price.
	book := flatBook(marketdomain.VenueK, "k-inst", "0.90", "0.10")
	id, err := venueK.PlaceOrder(context.Background(), "k-inst", marketapp.SideYes, decimal.NewFromInt(5), decimal.RequireFromString("0.90"))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	venueK.setOrderResult(id, marketapp.OrderPartial, decimal.NewFromInt(5)) // not OrderOpen, so cancel is unavailable

	detail := exec.unwind(context.Background(), venueK, id, marketapp.SideYes, decimal.NewFromInt(5), book)
	if detail != "hedge" {
		t.Errorf("expected unwind to pick the cheaper hedge, got %q", detail)
	}
}

func TestUnwindFallsBackToAggressiveWhenHedgeUnavailable(t *testing.T) {
	venueK := newFakeVenue(marketdomain.VenueK)
	books := marketapp.NewBookCache(500 * time.Millisecond)
	risk := newTestRiskGate("1000")
	exec := NewExecutor(risk, books, venueK, venueK, ExecutorConfig{
		MaxRiskPerTrade: decimal.RequireFromString("0.5"),
	}, newTestLogger())

	// No NO-side liquidity at all: hedge is infeasible regardless of price.
	book := marketdomain.OrderBook{
		Venue: marketdomain.VenueK, InstrumentID: "k-inst",
		YesAsks: []marketdomain.Level{{Price: decimal.RequireFromString("0.90"), Size: decimal.NewFromInt(1000)}},
	}
	id, err := venueK.PlaceOrder(context.Background(), "k-inst", marketapp.SideYes, decimal.NewFromInt(5), decimal.RequireFromString("0.90"))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	venueK.setOrderResult(id, marketapp.OrderPartial, decimal.NewFromInt(5))

	detail := exec.unwind(context.Background(), venueK, id, marketapp.SideYes, decimal.NewFromInt(5), book)
	if detail != "aggressive_close" {
		t.Errorf("expected fallback to aggressive_close, got %q", detail)
	}
}
