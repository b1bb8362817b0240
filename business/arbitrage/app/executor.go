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

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	riskapp "github.com/fd1az/arbitrage-bot/business/risk/app"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// pollDelays is the fill-monitoring backoff schedule: roughly 13s total.
var pollDelays = []time.Duration{
	100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond,
	1 * time.Second, 1 * time.Second, 2 * time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second,
}

const (
	minTopPriceK   = "0.01"
	pairCooldown   = 15 * time.Second
	aggressiveHigh = "0.99"
	aggressiveLow  = "0.01"
)

// ExecutorConfig holds the sizing and liquidity tunables the Executor needs
// that are not already owned by RiskGate.
type ExecutorConfig struct {
	MaxRiskPerTrade  decimal.Decimal // fraction of bankroll, mirrors RiskGate's limit
	MinOrderValueUSD decimal.Decimal // venue P's per-order minimum, default 1.00
}

type executorMetrics struct {
	attempts  metric.Int64Counter
	filled    metric.Int64Counter
	partial   metric.Int64Counter
	aborted   metric.Int64Counter
	unwinds   metric.Int64Counter
	execLatency metric.Float64Histogram
}

// Executor runs the two-leg execution protocol for a hard-arbitrage
// Opportunity: sizing, a parallel pre-trade data fetch, liquidity/balance
// checks, parallel placement, backoff fill polling and, for any leftover
// exposure, the unwind decision engine.
type Executor struct {
	risk   *riskapp.RiskGate
	books  *marketapp.BookCache
	venueK marketapp.VenueClient
	venueP marketapp.VenueClient
	cfg    ExecutorConfig

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *executorMetrics

	mu            sync.Mutex
	pairCooldowns map[string]time.Time

	now func() time.Time
}

// NewExecutor builds an Executor.
func NewExecutor(risk *riskapp.RiskGate, books *marketapp.BookCache, venueK, venueP marketapp.VenueClient, cfg ExecutorConfig, log logger.LoggerInterface) *Executor {
	e := &Executor{
		risk:          risk,
		books:         books,
		venueK:        venueK,
		venueP:        venueP,
		cfg:           cfg,
		logger:        log,
		tracer:        otel.Tracer(tracerName),
		pairCooldowns: make(map[string]time.Time),
		now:           time.Now,
	}
	if err := e.initMetrics(); err != nil {
		log.Error(context.Background(), "failed to initialize executor metrics", "error", err)
	}
	return e
}

func (e *Executor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	e.metrics = &executorMetrics{}
	if e.metrics.attempts, err = meter.Int64Counter("arbitrage_execution_attempts_total"); err != nil {
		return err
	}
	if e.metrics.filled, err = meter.Int64Counter("arbitrage_execution_filled_total"); err != nil {
		return err
	}
	if e.metrics.partial, err = meter.Int64Counter("arbitrage_execution_partial_total"); err != nil {
		return err
	}
	if e.metrics.aborted, err = meter.Int64Counter("arbitrage_execution_aborted_total"); err != nil {
		return err
	}
	if e.metrics.unwinds, err = meter.Int64Counter("arbitrage_execution_unwinds_total"); err != nil {
		return err
	}
	e.metrics.execLatency, err = meter.Float64Histogram("arbitrage_execution_latency_ms", metric.WithUnit("ms"))
	return err
}

// PairOnCooldown reports whether pairID is still within its 15s
// re-execution block.
func (e *Executor) PairOnCooldown(pairID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.pairCooldowns[pairID]
	return ok && e.now().Before(until)
}

func (e *Executor) setPairCooldown(pairID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pairCooldowns[pairID] = e.now().Add(pairCooldown)
}

func legSides(d domain.Direction) (kSide, pSide marketapp.OrderSide) {
	if d == domain.DirectionYesKNoP {
		return marketapp.SideYes, marketapp.SideNo
	}
	return marketapp.SideNo, marketapp.SideYes
}

// Execute runs the full two-leg protocol for opp and always sets the
// per-pair cooldown on return, regardless of outcome.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity) (TradeReport, error) {
	start := e.now()
	ctx, span := e.tracer.Start(ctx, "Execute", trace.WithAttributes(
		attribute.String("pair_id", opp.PairID),
		attribute.String("direction", string(opp.Direction)),
	))
	defer span.End()
	defer e.setPairCooldown(opp.PairID)
	defer func() {
		e.metrics.execLatency.Record(ctx, float64(e.now().Sub(start).Microseconds())/1000.0)
	}()

	e.metrics.attempts.Add(ctx, 1)

	report := TradeReport{Opportunity: opp, Timestamp: start}

	kSide, pSide := legSides(opp.Direction)

	bankroll, fresh := e.risk.BankrollIfFresh()
	if !fresh {
		b, err := e.venueK.Balance(ctx)
		if err != nil {
			return e.abort(report, "bankroll fetch failed: "+err.Error()), nil
		}
		bankroll = b
	}

	// Step 1: sizing.
	contracts, err := e.size(ctx, bankroll, opp)
	if err != nil {
		return e.abort(report, err.Error()), nil
	}

	// Step 2: parallel pre-trade data fetch.
	kBook, pBook, fetchErr := e.fetchBooks(ctx, opp)
	if fetchErr != nil {
		return e.abort(report, fetchErr.Error()), nil
	}

	kPrice := legPrice(kBook, kSide)
	pPrice := legPrice(pBook, pSide)

	// Step 3: liquidity and price check.
	kSize := legSize(kBook, kSide)
	pSize := legSize(pBook, pSide)
	if kSize.LessThan(contracts) || pSize.LessThan(contracts) {
		return e.abort(report, "insufficient top-of-book liquidity"), nil
	}
	if !kPrice.GreaterThan(decimal.Zero) || !pPrice.GreaterThan(decimal.Zero) || kPrice.LessThanOrEqual(decimal.RequireFromString(minTopPriceK)) {
		return e.abort(report, "bad top-of-book price"), nil
	}

	// Step 4: balance and risk check.
	kCost := kPrice.Mul(contracts)
	pCost := pPrice.Mul(contracts)
	totalCost := kCost.Add(pCost).Add(opp.Fees.Mul(contracts))
	if kCost.GreaterThan(bankroll) {
		return e.abort(report, "venue K balance insufficient for K leg"), nil
	}
	ok, reason := e.risk.CanExecute(ctx, totalCost)
	if !ok {
		return e.abort(report, "risk gate rejected: "+string(reason)), nil
	}

	// Step 5: parallel placement.
	kOrderID, pOrderID, placeErr := e.placeOrders(ctx, opp, kSide, pSide, contracts, kPrice, pPrice)
	if placeErr != nil {
		return e.abort(report, placeErr.Error()), nil
	}

	// Step 6: fill monitoring.
	kState, pState := e.pollFills(ctx, kOrderID, pOrderID)

	// Step 7: outcome classification.
	switch {
	case kState.Status == marketapp.OrderFilled && pState.Status == marketapp.OrderFilled:
		e.risk.RegisterTrade(totalCost)
		report.Outcome = OutcomeFilled
		report.FilledSizeK = kState.Filled
		report.FilledSizeP = pState.Filled
		e.metrics.filled.Add(ctx, 1)
		e.logger.Info(ctx, "execution filled both legs", "pair_id", opp.PairID, "contracts", contracts.String())

	case kState.Filled.IsPositive() || pState.Filled.IsPositive():
		matched := decimal.Min(kState.Filled, pState.Filled)
		e.risk.RegisterTrade(matched.Mul(kPrice.Add(pPrice)))
		report.Outcome = OutcomePartial
		report.FilledSizeK = kState.Filled
		report.FilledSizeP = pState.Filled
		e.metrics.partial.Add(ctx, 1)

		if kState.Filled.GreaterThan(matched) {
			detail := e.unwind(ctx, e.venueK, kOrderID, kSide, kState.Filled.Sub(matched), kBook)
			report.UnwoundVia = detail
		}
		if pState.Filled.GreaterThan(matched) {
			detail := e.unwind(ctx, e.venueP, pOrderID, pSide, pState.Filled.Sub(matched), pBook)
			report.UnwoundVia = detail
		}
		if matched.IsZero() {
			e.cancelOutstanding(ctx, e.venueK, kOrderID, kState)
			e.cancelOutstanding(ctx, e.venueP, pOrderID, pState)
		}

	default:
		report.Outcome = OutcomeAborted
		e.metrics.aborted.Add(ctx, 1)
		e.cancelOutstanding(ctx, e.venueK, kOrderID, kState)
		e.cancelOutstanding(ctx, e.venueP, pOrderID, pState)
	}

	return report, nil
}

func (e *Executor) abort(report TradeReport, detail string) TradeReport {
	report.Outcome = OutcomeAborted
	report.Detail = detail
	e.metrics.aborted.Add(context.Background(), 1)
	e.logger.Warn(context.Background(), "execution aborted", "pair_id", report.Opportunity.PairID, "reason", detail)
	return report
}

// size computes the contract count per step 1: floor(maxTotal/unit), then
// bumps to satisfy venue P's minimum order value or aborts.
func (e *Executor) size(ctx context.Context, bankroll decimal.Decimal, opp domain.Opportunity) (decimal.Decimal, error) {
	maxTotal := bankroll.Mul(e.cfg.MaxRiskPerTrade)
	unit := opp.GrossCost
	if !unit.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodeBadPrice, apperror.WithMessage("non-positive unit cost"))
	}

	contracts := maxTotal.Div(unit).Floor()
	if contracts.LessThan(decimal.NewFromInt(1)) {
		return decimal.Zero, apperror.New(apperror.CodeBelowMinOrder, apperror.WithMessage("sized to zero contracts"))
	}

	minValue := e.cfg.MinOrderValueUSD
	if minValue.IsZero() {
		minValue = decimal.NewFromInt(1)
	}
	perUnitP := unit // approximation of venue P's per-contract price for the min-order check
	for contracts.Mul(perUnitP).LessThan(minValue) {
		candidate := contracts.Add(decimal.NewFromInt(1))
		if candidate.Mul(unit).GreaterThan(maxTotal) {
			return decimal.Zero, apperror.New(apperror.CodeBelowMinOrder)
		}
		contracts = candidate
	}

	_ = ctx
	return contracts, nil
}

func (e *Executor) fetchBooks(ctx context.Context, opp domain.Opportunity) (kBook, pBook marketdomain.OrderBook, err error) {
	type result struct {
		book marketdomain.OrderBook
		err  error
	}
	kCh := make(chan result, 1)
	pCh := make(chan result, 1)

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if b, ok := e.books.Get(marketdomain.VenueK, opp.VenueKInstrumentID, e.now()); ok {
			kCh <- result{book: b}
			return
		}
		b, ferr := e.venueK.TopOfBook(fetchCtx, opp.VenueKInstrumentID)
		if ferr != nil {
			kCh <- result{err: ferr}
			return
		}
		kCh <- result{book: *b}
	}()

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if b, ok := e.books.Get(marketdomain.VenueP, opp.VenuePInstrumentID, e.now()); ok {
			pCh <- result{book: b}
			return
		}
		b, ferr := e.venueP.TopOfBook(fetchCtx, opp.VenuePInstrumentID)
		if ferr != nil {
			pCh <- result{err: ferr}
			return
		}
		pCh <- result{book: *b}
	}()

	kr := <-kCh
	pr := <-pCh
	if kr.err != nil {
		return marketdomain.OrderBook{}, marketdomain.OrderBook{}, kr.err
	}
	if pr.err != nil {
		return marketdomain.OrderBook{}, marketdomain.OrderBook{}, pr.err
	}
	return kr.book, pr.book, nil
}

func (e *Executor) placeOrders(ctx context.Context, opp domain.Opportunity, kSide, pSide marketapp.OrderSide, contracts, kPrice, pPrice decimal.Decimal) (marketapp.OrderID, marketapp.OrderID, error) {
	type result struct {
		id  marketapp.OrderID
		err error
	}
	kCh := make(chan result, 1)
	pCh := make(chan result, 1)

	go func() {
		id, err := e.venueK.PlaceOrder(ctx, opp.VenueKInstrumentID, kSide, contracts, kPrice)
		kCh <- result{id: id, err: err}
	}()
	go func() {
		id, err := e.venueP.PlaceOrder(ctx, opp.VenuePInstrumentID, pSide, contracts, pPrice)
		pCh <- result{id: id, err: err}
	}()

	kr := <-kCh
	pr := <-pCh
	if kr.err != nil || pr.err != nil {
		return kr.id, pr.id, apperror.New(apperror.CodeOrderRejected, apperror.WithMessage("one or both legs failed to place"))
	}
	return kr.id, pr.id, nil
}

func (e *Executor) pollFills(ctx context.Context, kID, pID marketapp.OrderID) (marketapp.OrderState, marketapp.OrderState) {
	var kState, pState marketapp.OrderState
	for _, delay := range pollDelays {
		kState, _ = e.venueK.QueryOrder(ctx, kID)
		pState, _ = e.venueP.QueryOrder(ctx, pID)
		if kState.Status == marketapp.OrderFilled && pState.Status == marketapp.OrderFilled {
			break
		}
		select {
		case <-ctx.Done():
			return kState, pState
		case <-time.After(delay):
		}
	}
	return kState, pState
}

func (e *Executor) cancelOutstanding(ctx context.Context, venue marketapp.VenueClient, id marketapp.OrderID, state marketapp.OrderState) {
	if state.Status != marketapp.OrderOpen || id == "" {
		return
	}
	if err := venue.CancelOrder(ctx, id); err != nil {
		e.logger.Warn(ctx, "best-effort cancel of outstanding order failed", "order_id", string(id), "error", err)
	}
}

// unwind evaluates cancel, hedge and aggressive-close for an excess leg
// still held on the originally-bought side, and submits whichever of hedge
// or aggressive-close has the lower absolute cost, falling back to
// aggressive close if the cheaper choice fails to place.
func (e *Executor) unwind(ctx context.Context, venue marketapp.VenueClient, orderID marketapp.OrderID, side marketapp.OrderSide, qty decimal.Decimal, book marketdomain.OrderBook) string {
	e.metrics.unwinds.Add(ctx, 1)

	if state, err := venue.QueryOrder(ctx, orderID); err == nil && state.Status == marketapp.OrderOpen {
		if err := venue.CancelOrder(ctx, orderID); err == nil {
			return "cancel"
		}
	}

	hedgeSide := oppositeSide(side)
	hedgePrice := legPrice(book, hedgeSide)
	hedgeSize := legSize(book, hedgeSide)
	hedgeAvailable := hedgePrice.IsPositive() && hedgeSize.GreaterThanOrEqual(qty)

	aggressivePrice := decimal.RequireFromString(aggressiveHigh)
	if side == marketapp.SideNo {
		aggressivePrice = decimal.RequireFromString(aggressiveLow)
	}

	hedgeCost := hedgePrice.Mul(qty).Abs()
	aggressiveCost := aggressivePrice.Mul(qty).Abs()

	if hedgeAvailable && hedgeCost.LessThanOrEqual(aggressiveCost) {
		if _, err := venue.PlaceOrder(ctx, book.InstrumentID, hedgeSide, qty, hedgePrice); err == nil {
			return "hedge"
		}
	}

	if _, err := venue.PlaceOrder(ctx, book.InstrumentID, hedgeSide, qty, aggressivePrice); err != nil {
		e.logger.Error(ctx, "unwind failed, escalating", "order_id", string(orderID), "error", err)
		return "unwind_failed"
	}
	return "aggressive_close"
}

func oppositeSide(s marketapp.OrderSide) marketapp.OrderSide {
	if s == marketapp.SideYes {
		return marketapp.SideNo
	}
	return marketapp.SideYes
}

func legPrice(book marketdomain.OrderBook, side marketapp.OrderSide) decimal.Decimal {
	if side == marketapp.SideYes {
		return book.BestYesAsk().Price
	}
	return book.BestNoAsk().Price
}

func legSize(book marketdomain.OrderBook, side marketapp.OrderSide) decimal.Decimal {
	if side == marketapp.SideYes {
		return book.BestYesAsk().Size
	}
	return book.BestNoAsk().Size
}
