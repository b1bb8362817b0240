package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	meterName  = "github.com/fd1az/arbitrage-bot/business/arbitrage/app"

	defaultCacheTTL         = 100 * time.Millisecond
	defaultProbGapThreshold = "0.15"
)

// DetectorConfig holds the tunables that govern opportunity detection.
type DetectorConfig struct {
	MinProfit        decimal.Decimal
	ProbGapThreshold decimal.Decimal
	Fees             domain.FeeSchedule
	CacheTTL         time.Duration
}

// detectorMetrics holds OTEL metric instruments for the detector.
type detectorMetrics struct {
	pairsAnalyzed       metric.Int64Counter
	hardOpportunities   metric.Int64Counter
	probOpportunities   metric.Int64Counter
	cacheHits           metric.Int64Counter
	netProfit           metric.Float64Histogram
	detectionLatency    metric.Float64Histogram
}

type cacheKey struct {
	pairID  string
	kYesAsk string
	kNoAsk  string
	pYesAsk string
	pNoAsk  string
}

type cacheValue struct {
	hard      *domain.Opportunity
	prob      *domain.Opportunity
	expiresAt time.Time
}

// Detector computes hard and probabilistic arbitrage opportunities for a
// MarketPair from the freshest books in BookCache, falling back to the
// prices carried in the pair's event snapshots when no fresh book exists.
// Identical-price bursts within CacheTTL are absorbed by a small result
// cache rather than re-run through the cost model.
type Detector struct {
	books *marketapp.BookCache
	cfg   DetectorConfig

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *detectorMetrics

	mu    sync.Mutex
	cache map[cacheKey]cacheValue

	now func() time.Time
}

// NewDetector builds a Detector. Zero-valued CacheTTL/ProbGapThreshold fall
// back to their defaults.
func NewDetector(books *marketapp.BookCache, cfg DetectorConfig, log logger.LoggerInterface) *Detector {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.ProbGapThreshold.IsZero() {
		cfg.ProbGapThreshold = decimal.RequireFromString(defaultProbGapThreshold)
	}

	d := &Detector{
		books:  books,
		cfg:    cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
		cache:  make(map[cacheKey]cacheValue),
		now:    time.Now,
	}
	if err := d.initMetrics(); err != nil {
		log.Error(context.Background(), "failed to initialize detector metrics", "error", err)
	}
	return d
}

func (d *Detector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	d.metrics = &detectorMetrics{}

	if d.metrics.pairsAnalyzed, err = meter.Int64Counter(
		"arbitrage_pairs_analyzed_total",
		metric.WithDescription("Total number of pair detection passes run"),
	); err != nil {
		return err
	}
	if d.metrics.hardOpportunities, err = meter.Int64Counter(
		"arbitrage_hard_opportunities_total",
		metric.WithDescription("Total number of hard-arbitrage opportunities emitted"),
	); err != nil {
		return err
	}
	if d.metrics.probOpportunities, err = meter.Int64Counter(
		"arbitrage_prob_opportunities_total",
		metric.WithDescription("Total number of probabilistic-arbitrage signals emitted"),
	); err != nil {
		return err
	}
	if d.metrics.cacheHits, err = meter.Int64Counter(
		"arbitrage_detector_cache_hits_total",
		metric.WithDescription("Total number of detection passes served from the memoization cache"),
	); err != nil {
		return err
	}
	if d.metrics.netProfit, err = meter.Float64Histogram(
		"arbitrage_net_profit",
		metric.WithDescription("Net profit fraction of the best scenario (can be negative)"),
		metric.WithExplicitBucketBoundaries(-0.2, -0.1, -0.05, 0, 0.01, 0.02, 0.05, 0.1, 0.2),
	); err != nil {
		return err
	}
	if d.metrics.detectionLatency, err = meter.Float64Histogram(
		"arbitrage_detection_latency_ms",
		metric.WithDescription("Time to run one detection pass in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10),
	); err != nil {
		return err
	}
	return nil
}

// Detect runs one detection pass for pair. It returns a hard-arbitrage
// candidate (nil only when the pre-filter skipped the pair entirely; check
// hard.Actionable to tell a trade-worthy opportunity from a fully-evaluated
// one that still missed MinProfit), and a probabilistic-arbitrage signal
// (nil unless the cross-venue yes-ask gap exceeded ProbGapThreshold).
// Probabilistic signals are for reporting only; callers must not hand them
// to an Executor, and must not treat a non-actionable hard candidate as one
// either.
func (d *Detector) Detect(ctx context.Context, pair marketdomain.MarketPair) (hard, prob *domain.Opportunity) {
	start := d.now()
	ctx, span := d.tracer.Start(ctx, "Detect", trace.WithAttributes(
		attribute.String("pair_id", pair.ID),
	))
	defer span.End()

	kYes, kNo := d.legPrices(marketdomain.VenueK, pair.EventK)
	pYes, pNo := d.legPrices(marketdomain.VenueP, pair.EventP)

	key := cacheKey{
		pairID:  pair.ID,
		kYesAsk: kYes.Round(4).String(),
		kNoAsk:  kNo.Round(4).String(),
		pYesAsk: pYes.Round(4).String(),
		pNoAsk:  pNo.Round(4).String(),
	}

	if v, ok := d.lookupCache(key); ok {
		d.metrics.cacheHits.Add(ctx, 1)
		return v.hard, v.prob
	}

	a, b, skip := domain.EvaluateScenarios(kYes, kNo, pYes, pNo, d.cfg.Fees)
	var hardOpp *domain.Opportunity
	if !skip {
		best, alt := domain.Best(a, b), a
		if best.Direction == a.Direction {
			alt = b
		}
		actionable := best.NetProfit.GreaterThan(d.cfg.MinProfit)
		hardOpp = d.buildOpportunity(pair, best, alt, actionable, kYes, kNo, pYes, pNo)
		if actionable {
			d.metrics.hardOpportunities.Add(ctx, 1)
		}
		netFloat, _ := best.NetProfit.Float64()
		d.metrics.netProfit.Record(ctx, netFloat)
	}

	var probOpp *domain.Opportunity
	gap := domain.ProbabilisticGap(kYes, pYes)
	if gap.GreaterThan(d.cfg.ProbGapThreshold) {
		probOpp = &domain.Opportunity{
			ID:        fmt.Sprintf("prob-%s-%d", pair.ID, start.UnixNano()),
			PairID:    pair.ID,
			Kind:      domain.KindProb,
			Timestamp: start,
			ProbGap:   gap,
			KYesAsk:   kYes,
			KNoAsk:    kNo,
			PYesAsk:   pYes,
			PNoAsk:    pNo,
		}
		d.metrics.probOpportunities.Add(ctx, 1)
	}

	d.storeCache(key, hardOpp, probOpp)
	d.metrics.pairsAnalyzed.Add(ctx, 1)
	d.metrics.detectionLatency.Record(ctx, float64(d.now().Sub(start).Microseconds())/1000.0)

	span.SetAttributes(
		attribute.Bool("hard_opportunity", hardOpp != nil && hardOpp.Actionable),
		attribute.Bool("prob_opportunity", probOpp != nil),
	)
	return hardOpp, probOpp
}

func (d *Detector) legPrices(venue marketdomain.Venue, event marketdomain.MarketEvent) (yesAsk, noAsk decimal.Decimal) {
	if book, ok := d.books.Get(venue, event.InstrumentID, d.now()); ok {
		yes := book.BestYesAsk().Price
		no := book.BestNoAsk().Price
		if yes.IsPositive() && no.IsPositive() {
			return yes, no
		}
	}
	return event.YesAsk, event.NoAsk
}

func (d *Detector) buildOpportunity(pair marketdomain.MarketPair, best, alt domain.ScenarioResult, actionable bool, kYes, kNo, pYes, pNo decimal.Decimal) *domain.Opportunity {
	yesToken, noToken := pair.EventP.Metadata.YesTokenID, pair.EventP.Metadata.NoTokenID

	return &domain.Opportunity{
		ID:                 fmt.Sprintf("%s-%d", pair.ID, d.now().UnixNano()),
		PairID:             pair.ID,
		Kind:               domain.KindHard,
		Direction:          best.Direction,
		Timestamp:          d.now(),
		GrossCost:          best.GrossCost,
		Fees:               best.Fees,
		NetProfit:          best.NetProfit,
		AltGrossCost:       alt.GrossCost,
		Actionable:         actionable,
		KYesAsk:            kYes,
		KNoAsk:             kNo,
		PYesAsk:            pYes,
		PNoAsk:             pNo,
		VenuePYesTokenID:   yesToken,
		VenuePNoTokenID:    noToken,
		VenueKInstrumentID: pair.EventK.InstrumentID,
		VenuePInstrumentID: pair.EventP.InstrumentID,
	}
}

func (d *Detector) lookupCache(key cacheKey) (cacheValue, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.cache[key]
	if !ok || d.now().After(v.expiresAt) {
		return cacheValue{}, false
	}
	return v, true
}

func (d *Detector) storeCache(key cacheKey, hard, prob *domain.Opportunity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Bound the cache so a long-lived process does not accumulate an entry
	// per ever-changing price tuple forever; entries expire on their own but
	// a burst of distinct pairs could otherwise grow unboundedly between GCs.
	if len(d.cache) > 4096 {
		d.cache = make(map[cacheKey]cacheValue)
	}
	d.cache[key] = cacheValue{hard: hard, prob: prob, expiresAt: d.now().Add(d.cfg.CacheTTL)}
}
