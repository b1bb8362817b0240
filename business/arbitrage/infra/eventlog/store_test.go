package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbitrageapp "github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	arbitragedomain "github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func testOpportunity(id string) arbitragedomain.Opportunity {
	return arbitragedomain.Opportunity{
		ID: id, PairID: "pair-1", Kind: arbitragedomain.KindHard,
		Direction: arbitragedomain.DirectionNoKYesP, Timestamp: time.Now(),
		GrossCost: decimal.RequireFromString("0.91"), AltGrossCost: decimal.RequireFromString("1.07"),
		Fees: decimal.RequireFromString("0.0065"), NetProfit: decimal.RequireFromString("0.0835"),
		Actionable: true,
		KYesAsk:    decimal.RequireFromString("0.44"), KNoAsk: decimal.RequireFromString("0.55"),
		PYesAsk: decimal.RequireFromString("0.36"), PNoAsk: decimal.RequireFromString("0.63"),
	}
}

func TestStoreRecordOpportunityPersistsDecisionAndPrices(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "eventlog.db")
	s, err := Open(dbPath, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	opp := testOpportunity("opp-1")
	if err := s.RecordOpportunity(context.Background(), opp, "ACCEPTED", ""); err != nil {
		t.Fatalf("RecordOpportunity: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopening db: %v", err)
	}
	defer db.Close()

	var decision, kYes, costB string
	row := db.QueryRow(`SELECT decision, k_yes, cost_b FROM opportunities WHERE id = ?`, "opp-1")
	if err := row.Scan(&decision, &kYes, &costB); err != nil {
		t.Fatalf("querying persisted row: %v", err)
	}
	if decision != "ACCEPTED" {
		t.Errorf("expected decision ACCEPTED, got %s", decision)
	}
	if kYes != "0.44" {
		t.Errorf("expected k_yes to carry the Opportunity's own snapshot price 0.44, got %s", kYes)
	}
	if costB != "1.07" {
		t.Errorf("expected cost_b to carry the rejected scenario's gross cost 1.07, got %s", costB)
	}
}

func TestStoreRecordTrade(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "eventlog.db")
	s, err := Open(dbPath, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	report := arbitrageapp.TradeReport{
		Opportunity: testOpportunity("opp-2"),
		Outcome:     arbitrageapp.OutcomeFilled,
		FilledSizeK: decimal.NewFromInt(10),
		FilledSizeP: decimal.NewFromInt(10),
		Timestamp:   time.Now(),
	}
	if err := s.RecordTrade(context.Background(), report); err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopening db: %v", err)
	}
	defer db.Close()

	var strategy, contracts string
	row := db.QueryRow(`SELECT strategy, contracts FROM trades WHERE opp_id = ?`, "opp-2")
	if err := row.Scan(&strategy, &contracts); err != nil {
		t.Fatalf("querying persisted trade: %v", err)
	}
	if strategy != "FILLED" {
		t.Errorf("expected strategy column to carry the outcome FILLED, got %s", strategy)
	}
	if contracts != "10" {
		t.Errorf("expected contracts 10, got %s", contracts)
	}
}

// TestStoreRecordPairDeduplicatesByTickerPair covers a rediscovery that
// assigns a fresh pair ID for an already-recorded (k_ticker, p_ticker)
// combination: the unique index, not the primary key, is what must absorb
// the duplicate.
func TestStoreRecordPairDeduplicatesByTickerPair(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "eventlog.db")
	s, err := Open(dbPath, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	first := marketdomain.MarketPair{
		ID:     "pair-1",
		EventK: marketdomain.MarketEvent{Ticker: "K-1", InstrumentID: "k-inst", Title: "t"},
		EventP: marketdomain.MarketEvent{Ticker: "P-1", InstrumentID: "p-inst", Title: "t"},
	}
	second := first
	second.ID = "pair-2"

	if err := s.RecordPair(context.Background(), first); err != nil {
		t.Fatalf("first RecordPair: %v", err)
	}
	if err := s.RecordPair(context.Background(), second); err != nil {
		t.Fatalf("duplicate-ticker RecordPair should be a no-op, not an error: %v", err)
	}

	var count int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM matched_markets WHERE k_ticker = ? AND p_ticker = ?`, "K-1", "P-1")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row after a duplicate-ticker insert, got %d", count)
	}
}

// TestStoreDropsEntriesWhenQueueFull verifies the bounded-queue contract: a
// slow consumer (or, here, a stopped one) must never block the caller.
// enqueue's non-blocking select/default means a full queue increments the
// dropped counter instead.
func TestStoreDropsEntriesWhenQueueFull(t *testing.T) {
	s := &Store{
		queue:  make(chan entry, 4),
		logger: testLogger(),
		done:   make(chan struct{}),
	}
	// No consumer goroutine is started: every enqueue beyond the buffer's
	// capacity must hit the default branch and increment dropped.
	for i := 0; i < 4; i++ {
		s.enqueue(entry{kind: kindOpportunity, opp: testOpportunity(fmt.Sprintf("opp-%d", i))})
	}
	if s.dropped.Load() != 0 {
		t.Fatalf("expected no drops while under capacity, got %d", s.dropped.Load())
	}

	const overflow = 50
	var wg sync.WaitGroup
	for i := 0; i < overflow; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.enqueue(entry{kind: kindOpportunity, opp: testOpportunity(fmt.Sprintf("overflow-%d", i))})
		}(i)
	}
	wg.Wait()

	if s.dropped.Load() != overflow {
		t.Errorf("expected exactly %d dropped entries once the queue is saturated, got %d", overflow, s.dropped.Load())
	}
}
