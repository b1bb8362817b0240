package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	riskapp "github.com/fd1az/arbitrage-bot/business/risk/app"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// PairState tags a MarketPair's position in the per-pair state machine:
// Discovered -> Subscribed -> Monitoring <-> Detected -> Executing ->
// (Cooldown -> Monitoring) | Expired.
type PairState string

const (
	StateDiscovered PairState = "DISCOVERED"
	StateSubscribed PairState = "SUBSCRIBED"
	StateMonitoring PairState = "MONITORING"
	StateDetected   PairState = "DETECTED"
	StateExecuting  PairState = "EXECUTING"
	StateExpired    PairState = "EXPIRED"
)

const (
	maxHorizon        = 24 * time.Hour
	tradabilityFloor  = "0.10"
	tradabilityCeil   = "0.90"
)

// ControllerConfig holds the discovery and cooldown tunables the Controller
// owns directly.
type ControllerConfig struct {
	Keywords        []string
	CooldownSeconds time.Duration
}

type trackedPair struct {
	pair  marketdomain.MarketPair
	state PairState
}

// Controller owns discovery, subscription fan-out and the hot detection
// path. It runs as a single driving task; the venue stream readers and the
// RiskGate balance-sync tick run alongside it as independent long-lived
// tasks.
type Controller struct {
	venueK   marketapp.VenueClient
	venueP   marketapp.VenueClient
	books    *marketapp.BookCache
	matcher  *marketdomain.Matcher
	detector *Detector
	executor *Executor
	risk     *riskapp.RiskGate
	reporter Reporter
	eventLog EventLog
	cfg      ControllerConfig
	logger   logger.LoggerInterface
	tracer   trace.Tracer

	pairs         map[string]*trackedPair
	cooldownUntil time.Time

	now func() time.Time
}

// NewController wires every collaborator the hot path needs.
func NewController(
	venueK, venueP marketapp.VenueClient,
	books *marketapp.BookCache,
	matcher *marketdomain.Matcher,
	detector *Detector,
	executor *Executor,
	risk *riskapp.RiskGate,
	reporter Reporter,
	eventLog EventLog,
	cfg ControllerConfig,
	log logger.LoggerInterface,
) *Controller {
	return &Controller{
		venueK: venueK, venueP: venueP, books: books, matcher: matcher,
		detector: detector, executor: executor, risk: risk, reporter: reporter,
		eventLog: eventLog, cfg: cfg, logger: log,
		tracer: otel.Tracer(tracerName),
		pairs:  make(map[string]*trackedPair),
		now:    time.Now,
	}
}

// Run loads the bankroll, discovers an initial pair set, subscribes and
// drives the hot path until ctx is cancelled. A failed initial discovery is
// logged and retried after a 5s pause, per the top-level
// "catch, log, wait, continue" policy.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.reporter.Start(ctx); err != nil {
		return fmt.Errorf("starting reporter: %w", err)
	}
	defer c.reporter.Stop()

	if balance, err := c.venueK.Balance(ctx); err == nil {
		c.risk.SyncBalance(balance)
	}

	kUpdates, pUpdates, err := c.discoverAndSubscribe(ctx)
	for err != nil {
		c.logger.Error(ctx, "initial discovery failed, retrying", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
		kUpdates, pUpdates, err = c.discoverAndSubscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-kUpdates:
			if !ok {
				return nil
			}
			c.onBookUpdate(ctx, u)
		case u, ok := <-pUpdates:
			if !ok {
				return nil
			}
			c.onBookUpdate(ctx, u)
		}
	}
}

// discoverAndSubscribe runs one full discovery pass: parallel discover on
// both venues, keyword filter, cross product, Matcher, horizon/expiry drop,
// outcome-token validation, then subscribe to every surviving instrument.
func (c *Controller) discoverAndSubscribe(ctx context.Context) (<-chan marketdomain.BookUpdate, <-chan marketdomain.BookUpdate, error) {
	filter := marketapp.DiscoverFilter{Keywords: c.cfg.Keywords, MaxHorizon: int64(maxHorizon.Seconds())}

	type discoverResult struct {
		events []marketdomain.MarketEvent
		err    error
	}
	kCh := make(chan discoverResult, 1)
	pCh := make(chan discoverResult, 1)
	go func() {
		events, err := c.venueK.Discover(ctx, filter)
		kCh <- discoverResult{events: events, err: err}
	}()
	go func() {
		events, err := c.venueP.Discover(ctx, filter)
		pCh <- discoverResult{events: events, err: err}
	}()
	kr, pr := <-kCh, <-pCh
	if kr.err != nil {
		return nil, nil, fmt.Errorf("discovering venue K markets: %w", kr.err)
	}
	if pr.err != nil {
		return nil, nil, fmt.Errorf("discovering venue P markets: %w", pr.err)
	}

	now := c.now()
	var kIDs, pIDs []string
	for _, ek := range kr.events {
		for _, ep := range pr.events {
			if !c.matcher.Equivalent(ek, ep) {
				continue
			}
			pair := c.matcher.Pair(ek.InstrumentID+"-"+ep.InstrumentID, ek, ep)
			if pair.Expired(now) || ek.ResolutionTime.Sub(now) > maxHorizon {
				continue
			}
			if _, err := c.venueP.TopOfBook(ctx, ep.InstrumentID); err != nil {
				c.logger.Warn(ctx, "dropping pair with invalid venue P token", "pair_id", pair.ID, "error", err)
				continue
			}

			c.pairs[pair.ID] = &trackedPair{pair: pair, state: StateSubscribed}
			c.reporter.ReportPair(pair)
			if c.eventLog != nil {
				_ = c.eventLog.RecordPair(ctx, pair)
			}
			kIDs = append(kIDs, ek.InstrumentID)
			pIDs = append(pIDs, ep.InstrumentID)
		}
	}

	kUpdates, err := c.venueK.Subscribe(ctx, kIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing venue K: %w", err)
	}
	pUpdates, err := c.venueP.Subscribe(ctx, pIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing venue P: %w", err)
	}
	return kUpdates, pUpdates, nil
}

// onBookUpdate is the book-update callback: it must not block. It applies
// the update to BookCache then, unless still on cooldown, schedules
// detection for every active pair as an independent task.
func (c *Controller) onBookUpdate(ctx context.Context, u marketdomain.BookUpdate) {
	c.books.Apply(u)
	c.reporter.ReportBook(marketdomain.OrderBook{
		Venue: u.Venue, InstrumentID: u.InstrumentID, YesAsks: u.YesAsks, NoAsks: u.NoAsks, UpdatedAt: u.ReceivedAt, Seq: u.Seq,
	})

	if c.now().Before(c.cooldownUntil) {
		return
	}

	for _, tp := range c.pairs {
		if tp.state == StateExpired || tp.state == StateExecuting {
			continue
		}
		if tp.pair.Expired(c.now()) {
			tp.state = StateExpired
			c.books.Evict(marketdomain.VenueK, tp.pair.EventK.InstrumentID)
			c.books.Evict(marketdomain.VenueP, tp.pair.EventP.InstrumentID)
			continue
		}
		go c.evaluatePair(ctx, tp)
	}
}

func (c *Controller) evaluatePair(ctx context.Context, tp *trackedPair) {
	hard, prob := c.detector.Detect(ctx, tp.pair)

	if prob != nil {
		c.reporter.ReportOpportunity(prob)
		if c.eventLog != nil {
			reason := fmt.Sprintf("probabilistic signal, gap=%s", prob.ProbGap.String())
			_ = c.eventLog.RecordOpportunity(ctx, *prob, "SIGNAL", reason)
		}
	}

	if hard == nil {
		// The 0.98 pre-filter skipped the pair; the scenarios are still
		// evaluated here so the NO_BUY record below carries a net profit.
		if c.eventLog == nil {
			return
		}
		kYes, kNo := c.detector.legPrices(marketdomain.VenueK, tp.pair.EventK)
		pYes, pNo := c.detector.legPrices(marketdomain.VenueP, tp.pair.EventP)
		a, b, _ := domain.EvaluateScenarios(kYes, kNo, pYes, pNo, c.detector.cfg.Fees)
		best, alt := domain.Best(a, b), a
		if best.Direction == a.Direction {
			alt = b
		}
		hard = c.detector.buildOpportunity(tp.pair, best, alt, false, kYes, kNo, pYes, pNo)
	}

	if !hard.Actionable {
		if c.eventLog != nil {
			reason := fmt.Sprintf("Net Profit %s < %s", hard.NetProfit.StringFixed(3), c.detector.cfg.MinProfit.StringFixed(3))
			_ = c.eventLog.RecordOpportunity(ctx, *hard, "NO_BUY", reason)
		}
		return
	}
	c.reporter.ReportOpportunity(hard)

	if ok, reason := c.tradable(hard); !ok {
		if c.eventLog != nil {
			_ = c.eventLog.RecordOpportunity(ctx, *hard, "REJECTED", reason)
		}
		return
	}
	if c.executor.PairOnCooldown(tp.pair.ID) {
		return
	}

	if c.eventLog != nil {
		_ = c.eventLog.RecordOpportunity(ctx, *hard, "ACCEPTED", "")
	}

	tp.state = StateExecuting
	report, err := c.executor.Execute(ctx, *hard)
	if err != nil {
		c.logger.Error(ctx, "execution error", "pair_id", tp.pair.ID, "error", err)
	}
	c.reporter.ReportTrade(report)
	if c.eventLog != nil {
		_ = c.eventLog.RecordTrade(ctx, report)
	}

	cooldown := c.cfg.CooldownSeconds
	if cooldown == 0 {
		cooldown = 60 * time.Second
	}
	c.cooldownUntil = c.now().Add(cooldown)
	tp.state = StateMonitoring

	snapshot := c.risk.Snapshot()
	c.reporter.ReportRiskState(snapshot.Bankroll, snapshot.DailyPnl, snapshot.Exposure, snapshot.KillSwitch)

	go func() {
		if _, _, err := c.discoverAndSubscribe(ctx); err != nil {
			c.logger.Warn(ctx, "post-execution rediscovery failed", "error", err)
		}
	}()
}

// tradable rejects an opportunity whose four snapshot prices include any
// extreme probability (outside [0.10, 0.90]) where no real arbitrage
// headroom exists. It checks the Opportunity's own detection-time prices,
// not the pair's discovery-time MarketEvent snapshot, since a later book
// tick can move prices well past discovery before a detection fires.
func (c *Controller) tradable(opp *domain.Opportunity) (bool, string) {
	floor := decimal.RequireFromString(tradabilityFloor)
	ceil := decimal.RequireFromString(tradabilityCeil)
	legs := []struct {
		venue, side string
		price       decimal.Decimal
	}{
		{"Kalshi", "YES", opp.KYesAsk},
		{"Kalshi", "NO", opp.KNoAsk},
		{"Polymarket", "YES", opp.PYesAsk},
		{"Polymarket", "NO", opp.PNoAsk},
	}
	for _, leg := range legs {
		if leg.price.LessThan(floor) {
			return false, fmt.Sprintf("%s %s too low (%s%%)", leg.venue, leg.side, leg.price.Mul(decimal.NewFromInt(100)).StringFixed(1))
		}
		if leg.price.GreaterThan(ceil) {
			return false, fmt.Sprintf("%s %s too high (%s%%)", leg.venue, leg.side, leg.price.Mul(decimal.NewFromInt(100)).StringFixed(1))
		}
	}
	return true, ""
}
