// Package eventlog persists matched pairs, opportunities and trades to an
// embedded relational store. Writes go through a bounded queue so a slow
// disk never stalls the detection or execution hot path.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shopspring/decimal"

	arbitrageapp "github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	arbitragedomain "github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

const queueCapacity = 10_000

const schema = `
CREATE TABLE IF NOT EXISTS matched_markets (
	id TEXT PRIMARY KEY,
	k_ticker TEXT NOT NULL,
	p_ticker TEXT NOT NULL,
	title TEXT,
	resolution_time TEXT,
	k_id TEXT,
	p_id TEXT,
	p_title TEXT,
	k_raw TEXT,
	p_raw TEXT,
	UNIQUE(k_ticker, p_ticker)
);
CREATE TABLE IF NOT EXISTS opportunities (
	id TEXT PRIMARY KEY,
	pair_id TEXT,
	ts TEXT,
	k_yes TEXT,
	k_no TEXT,
	p_yes TEXT,
	p_no TEXT,
	cost_a TEXT,
	cost_b TEXT,
	net_profit_best TEXT,
	decision TEXT,
	reason TEXT,
	details_json TEXT
);
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	pair_id TEXT,
	opp_id TEXT,
	contracts TEXT,
	k_cost TEXT,
	p_cost TEXT,
	total_cost TEXT,
	executed_at TEXT,
	strategy TEXT
);
CREATE TABLE IF NOT EXISTS daily_risk_metrics (
	date TEXT PRIMARY KEY,
	daily_pnl TEXT,
	exposure TEXT,
	updated_at TEXT
);
`

type entryKind int

const (
	kindOpportunity entryKind = iota
	kindTrade
	kindDailyMetrics
)

type entry struct {
	kind  entryKind
	opp   arbitragedomain.Opportunity
	trade arbitrageapp.TradeReport

	decision, reason string

	date               string
	dailyPnl, exposure decimal.Decimal
}

// Store is the sqlite-backed EventLog. It satisfies arbitrageapp.EventLog.
type Store struct {
	db     *sql.DB
	queue  chan entry
	logger logger.LoggerInterface
	done   chan struct{}

	dropped atomic.Int64
}

var _ arbitrageapp.EventLog = (*Store)(nil)

// Open opens (creating if absent) the sqlite database at path, applies the
// schema and starts the single consumer writer task.
func Open(path string, log logger.LoggerInterface) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperror.New(apperror.CodePersistenceWriteFailed, apperror.WithCause(err), apperror.WithContext("opening event log database"))
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, apperror.New(apperror.CodePersistenceWriteFailed, apperror.WithCause(err), apperror.WithContext("applying event log schema"))
	}

	s := &Store{db: db, queue: make(chan entry, queueCapacity), logger: log, done: make(chan struct{})}
	go s.run()
	return s, nil
}

func (s *Store) run() {
	for e := range s.queue {
		if err := s.write(e); err != nil {
			s.logger.Warn(context.Background(), "event log write failed", "error", err)
		}
	}
	close(s.done)
}

func (s *Store) enqueue(e entry) {
	select {
	case s.queue <- e:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn(context.Background(), "event log queue full, dropping entry", "total_dropped", n)
	}
}

// RecordPair is the one synchronous write: the Controller calls it during
// discovery for every matched pair that survives filtering.
func (s *Store) RecordPair(ctx context.Context, pair marketdomain.MarketPair) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matched_markets (id, k_ticker, p_ticker, title, resolution_time, k_id, p_id, p_title, k_raw, p_raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(k_ticker, p_ticker) DO NOTHING`,
		pair.ID, pair.EventK.Ticker, pair.EventP.Ticker, pair.EventK.Title,
		pair.EventK.ResolutionTime.Format(time.RFC3339), pair.EventK.InstrumentID, pair.EventP.InstrumentID,
		pair.EventP.Title, rawJSON(pair.EventK), rawJSON(pair.EventP),
	)
	return err
}

// RecordOpportunity enqueues an opportunity, with the caller's decision and
// reason, for asynchronous persistence.
func (s *Store) RecordOpportunity(ctx context.Context, opp arbitragedomain.Opportunity, decision, reason string) error {
	s.enqueue(entry{kind: kindOpportunity, opp: opp, decision: decision, reason: reason})
	return nil
}

// RecordTrade enqueues a trade report for asynchronous persistence.
func (s *Store) RecordTrade(ctx context.Context, report arbitrageapp.TradeReport) error {
	s.enqueue(entry{kind: kindTrade, trade: report})
	return nil
}

// RecordDailyMetrics enqueues the risk snapshot for the given UTC date.
func (s *Store) RecordDailyMetrics(ctx context.Context, date string, bankroll, dailyPnl, exposure decimal.Decimal) error {
	s.enqueue(entry{kind: kindDailyMetrics, date: date, dailyPnl: dailyPnl, exposure: exposure})
	return nil
}

// Close stops accepting new entries and blocks until the consumer drains
// the queue it already holds.
func (s *Store) Close() error {
	close(s.queue)
	<-s.done
	return s.db.Close()
}

func (s *Store) write(e entry) error {
	ctx := context.Background()
	switch e.kind {
	case kindOpportunity:
		return s.writeOpportunity(ctx, e.opp, e.decision, e.reason)
	case kindTrade:
		return s.writeTrade(ctx, e.trade)
	case kindDailyMetrics:
		return s.writeDailyMetrics(ctx, e)
	default:
		return fmt.Errorf("unknown event log entry kind %d", e.kind)
	}
}

func (s *Store) writeOpportunity(ctx context.Context, opp arbitragedomain.Opportunity, decision, reason string) error {
	details, _ := json.Marshal(opp)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (id, pair_id, ts, k_yes, k_no, p_yes, p_no, cost_a, cost_b, net_profit_best, decision, reason, details_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		opp.ID, opp.PairID, opp.Timestamp.Format(time.RFC3339),
		opp.KYesAsk.String(), opp.KNoAsk.String(), opp.PYesAsk.String(), opp.PNoAsk.String(),
		opp.GrossCost.String(), opp.AltGrossCost.String(), opp.NetProfit.String(),
		decision, reason, string(details),
	)
	return err
}

func (s *Store) writeTrade(ctx context.Context, report arbitrageapp.TradeReport) error {
	contracts := report.FilledSizeK
	if report.FilledSizeP.GreaterThan(contracts) {
		contracts = report.FilledSizeP
	}
	totalCost := report.Opportunity.GrossCost.Mul(contracts)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, pair_id, opp_id, contracts, k_cost, p_cost, total_cost, executed_at, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("%s-%d", report.Opportunity.ID, report.Timestamp.UnixNano()),
		report.Opportunity.PairID, report.Opportunity.ID, contracts.String(),
		"", "", totalCost.String(), report.Timestamp.Format(time.RFC3339), string(report.Outcome),
	)
	return err
}

func (s *Store) writeDailyMetrics(ctx context.Context, e entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_risk_metrics (date, daily_pnl, exposure, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET daily_pnl = excluded.daily_pnl, exposure = excluded.exposure, updated_at = excluded.updated_at`,
		e.date, e.dailyPnl.String(), e.exposure.String(), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func rawJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
