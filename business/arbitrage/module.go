// Package arbitrage implements the arbitrage bounded context: opportunity
// detection, two-leg execution, and the Controller that drives discovery and
// the hot path across the two venues.
package arbitrage

import (
	"context"

	"github.com/shopspring/decimal"

	arbitrageapp "github.com/fd1az/arbitrage-bot/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/arbitrage-bot/business/arbitrage/di"
	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-bot/business/arbitrage/infra"
	"github.com/fd1az/arbitrage-bot/business/arbitrage/infra/eventlog"
	marketdataDI "github.com/fd1az/arbitrage-bot/business/marketdata/di"
	riskDI "github.com/fd1az/arbitrage-bot/business/risk/di"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers the EventLog, Detector, Executor, Controller
// and Reporter, all as lazy factories per the container's usual convention.
// The EventLog's embedded SQLite store, and its background writer goroutine,
// open when it is first resolved, which happens when the Controller is built.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.EventLog, func(sr di.ServiceRegistry) arbitrageapp.EventLog {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		store, err := eventlog.Open(cfg.Persistence.SQLitePath, log)
		if err != nil {
			panic("failed to open event log: " + err.Error())
		}
		return store
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) arbitrageapp.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.App.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *arbitrageapp.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		books := marketdataDI.GetBookCache(sr)

		detCfg := arbitrageapp.DetectorConfig{
			MinProfit:        cfg.Detection.MinProfitDecimal(),
			ProbGapThreshold: decimal.NewFromFloat(cfg.Detection.ProbSpreadTrigger),
			Fees: domain.FeeSchedule{
				VenuePFlatFee: cfg.VenueP.FlatFeePerShareDecimal(),
				VenueKRate:    cfg.VenueK.TakerFeeRateDecimal(),
			},
			CacheTTL: cfg.Detection.DetectCacheMs,
		}
		return arbitrageapp.NewDetector(books, detCfg, log)
	})

	di.RegisterToken(c, arbitrageDI.Executor, func(sr di.ServiceRegistry) *arbitrageapp.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		books := marketdataDI.GetBookCache(sr)
		risk := riskDI.GetRiskGate(sr)
		venueK := marketdataDI.GetVenueKClient(sr)
		venueP := marketdataDI.GetVenuePClient(sr)

		execCfg := arbitrageapp.ExecutorConfig{
			MaxRiskPerTrade:  cfg.Risk.MaxRiskPerTradeDecimal(),
			MinOrderValueUSD: decimal.NewFromFloat(1),
		}
		return arbitrageapp.NewExecutor(risk, books, venueK, venueP, execCfg, log)
	})

	di.RegisterToken(c, arbitrageDI.Controller, func(sr di.ServiceRegistry) *arbitrageapp.Controller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		venueK := marketdataDI.GetVenueKClient(sr)
		venueP := marketdataDI.GetVenuePClient(sr)
		books := marketdataDI.GetBookCache(sr)
		matcher := marketdataDI.GetMatcher(sr)
		detector := arbitrageDI.GetDetector(sr)
		executor := arbitrageDI.GetExecutor(sr)
		risk := riskDI.GetRiskGate(sr)
		reporter := arbitrageDI.GetReporter(sr)
		eventLog := arbitrageDI.GetEventLog(sr)

		ctrlCfg := arbitrageapp.ControllerConfig{
			Keywords:        cfg.App.Keywords,
			CooldownSeconds: cfg.Detection.CooldownSeconds,
		}
		return arbitrageapp.NewController(venueK, venueP, books, matcher, detector, executor, risk, reporter, eventLog, ctrlCfg, log)
	})

	return nil
}

// Startup launches the Controller's driving loop as a long-lived background
// task. The loop itself performs discovery and the hot path; a per-iteration
// error is logged and retried rather than ever propagated here.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	controller := arbitrageDI.GetController(mono.Services())

	go func() {
		if err := controller.Run(ctx); err != nil {
			log.Error(ctx, "arbitrage controller stopped", "error", err)
		}
	}()

	log.Info(ctx, "arbitrage module started")
	return nil
}
