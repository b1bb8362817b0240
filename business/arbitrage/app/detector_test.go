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

func testFees() domain.FeeSchedule {
	return domain.FeeSchedule{
		VenuePFlatFee: decimal.RequireFromString("0.001"),
		VenueKRate:    decimal.RequireFromString("0.01"),
	}
}

func testPair(kYes, kNo, pYes, pNo string) marketdomain.MarketPair {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return marketdomain.MarketPair{
		ID: "pair-1",
		EventK: marketdomain.MarketEvent{
			Venue: marketdomain.VenueK, InstrumentID: "k-inst", Ticker: "K-1",
			ResolutionTime: now.Add(time.Hour),
			YesAsk:         decimal.RequireFromString(kYes),
			NoAsk:          decimal.RequireFromString(kNo),
		},
		EventP: marketdomain.MarketEvent{
			Venue: marketdomain.VenueP, InstrumentID: "p-inst", Ticker: "P-1",
			ResolutionTime: now.Add(time.Hour),
			YesAsk:         decimal.RequireFromString(pYes),
			NoAsk:          decimal.RequireFromString(pNo),
			Metadata:       marketdomain.VenueMetadata{YesTokenID: "yes-tok", NoTokenID: "no-tok"},
		},
	}
}

// TestDetectorClearHardArbitrage reproduces the spec's canonical scenario:
// K.yes=0.44, K.no=0.55, P.yes=0.36, P.no=0.63 with feeK=0.01, feeP=0.001 and
// minProfit=0.01. Scenario A (buy NO on K, YES on P) wins with gross=0.91 and
// net profit ~0.0835, clearing MinProfit.
func TestDetectorClearHardArbitrage(t *testing.T) {
	books := marketapp.NewBookCache(500 * time.Millisecond)
	log := newTestLogger()
	d := NewDetector(books, DetectorConfig{
		MinProfit: decimal.RequireFromString("0.01"),
		Fees:      testFees(),
	}, log)

	pair := testPair("0.44", "0.55", "0.36", "0.63")
	hard, _ := d.Detect(context.Background(), pair)

	if hard == nil {
		t.Fatal("expected a hard-arbitrage candidate")
	}
	if !hard.Actionable {
		t.Fatal("expected the opportunity to be actionable, NetProfit should clear MinProfit")
	}
	if hard.Direction != domain.DirectionNoKYesP {
		t.Errorf("expected DirectionNoKYesP, got %s", hard.Direction)
	}
	if !hard.GrossCost.Equal(decimal.RequireFromString("0.91")) {
		t.Errorf("expected gross cost 0.91, got %s", hard.GrossCost)
	}
	wantNet := decimal.RequireFromString("0.0835")
	if hard.NetProfit.Sub(wantNet).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Errorf("expected net profit ~0.0835, got %s", hard.NetProfit)
	}
}

// TestDetectorNoArbitrageSkipsPair reproduces the all-prices-at-0.50 scenario:
// both scenarios' gross cost exceeds the 0.98 pre-filter ceiling, so Detect
// must skip building a hard candidate entirely.
func TestDetectorNoArbitrageSkipsPair(t *testing.T) {
	books := marketapp.NewBookCache(500 * time.Millisecond)
	d := NewDetector(books, DetectorConfig{
		MinProfit: decimal.RequireFromString("0.01"),
		Fees:      testFees(),
	}, newTestLogger())

	pair := testPair("0.50", "0.50", "0.50", "0.50")
	hard, _ := d.Detect(context.Background(), pair)

	if hard != nil {
		t.Fatalf("expected nil hard candidate when both scenarios exceed the pre-filter ceiling, got %+v", hard)
	}
}

// TestDetectorEvaluatedButNotActionable covers the case where both scenarios
// clear the 0.98 pre-filter but neither nets above MinProfit: hard must be
// non-nil (so the Controller can log a NO_BUY decision) with Actionable=false.
func TestDetectorEvaluatedButNotActionable(t *testing.T) {
	books := marketapp.NewBookCache(500 * time.Millisecond)
	d := NewDetector(books, DetectorConfig{
		MinProfit: decimal.RequireFromString("0.01"),
		Fees:      testFees(),
	}, newTestLogger())

	pair := testPair("0.06", "0.95", "0.03", "0.96")
	hard, _ := d.Detect(context.Background(), pair)

	if hard == nil {
		t.Fatal("expected a fully-evaluated opportunity, not a nil pre-filter skip")
	}
	if hard.Actionable {
		t.Fatalf("expected Actionable=false, net profit should not clear MinProfit, got NetProfit=%s", hard.NetProfit)
	}
}

// TestDetectorProbabilisticSignalIsReportOnly checks that a large cross-venue
// yes-ask gap produces a KindProb signal independent of the hard-arbitrage
// outcome, and that it carries the snapshot prices for later EventLog use.
func TestDetectorProbabilisticSignalIsReportOnly(t *testing.T) {
	books := marketapp.NewBookCache(500 * time.Millisecond)
	d := NewDetector(books, DetectorConfig{
		MinProfit:        decimal.RequireFromString("0.01"),
		ProbGapThreshold: decimal.RequireFromString("0.15"),
		Fees:             testFees(),
	}, newTestLogger())

	pair := testPair("0.80", "0.21", "0.40", "0.61")
	_, prob := d.Detect(context.Background(), pair)

	if prob == nil {
		t.Fatal("expected a probabilistic signal for a 0.40 cross-venue yes-ask gap")
	}
	if prob.Kind != domain.KindProb {
		t.Errorf("expected KindProb, got %s", prob.Kind)
	}
	if !prob.KYesAsk.Equal(decimal.RequireFromString("0.80")) {
		t.Errorf("expected the signal to carry the detection-time K yes-ask snapshot, got %s", prob.KYesAsk)
	}
}

// TestDetectorMemoizesWithinCacheTTL verifies that two Detect calls with the
// same rounded prices within CacheTTL return the same cached *Opportunity,
// instead of re-running the cost model.
func TestDetectorMemoizesWithinCacheTTL(t *testing.T) {
	books := marketapp.NewBookCache(500 * time.Millisecond)
	d := NewDetector(books, DetectorConfig{
		MinProfit: decimal.RequireFromString("0.01"),
		CacheTTL:  time.Minute,
		Fees:      testFees(),
	}, newTestLogger())

	pair := testPair("0.44", "0.55", "0.36", "0.63")
	first, _ := d.Detect(context.Background(), pair)
	second, _ := d.Detect(context.Background(), pair)

	if first != second {
		t.Error("expected the second Detect call within CacheTTL to return the memoized Opportunity pointer")
	}
}
