// Package risk implements the bounded context that guards every trade
// attempt behind bankroll, per-trade, daily-loss and exposure caps.
package risk

import (
	"context"

	"github.com/shopspring/decimal"

	marketdataDI "github.com/fd1az/arbitrage-bot/business/marketdata/di"
	riskapp "github.com/fd1az/arbitrage-bot/business/risk/app"
	riskDI "github.com/fd1az/arbitrage-bot/business/risk/di"
	"github.com/fd1az/arbitrage-bot/business/risk/domain"
	"github.com/fd1az/arbitrage-bot/business/risk/infra"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the RiskGate.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, riskDI.RiskGate, func(sr di.ServiceRegistry) *riskapp.RiskGate {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		limits := domain.Limits{
			MaxRiskPerTrade: decimal.NewFromFloat(cfg.Risk.MaxRiskPerTrade),
			MaxDailyLoss:    decimal.NewFromFloat(cfg.Risk.MaxDailyLoss),
			MaxNetExposure:  decimal.NewFromFloat(cfg.Risk.MaxNetExposure),
		}
		return riskapp.New(limits, decimal.Zero, log)
	})

	return nil
}

// Startup runs RiskGate's first bankroll sync synchronously (the Controller
// must not start discovery with a zero bankroll) then launches the periodic
// sync task for the remainder of the process lifetime.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	gate := riskDI.GetRiskGate(mono.Services())
	venueK := marketdataDI.GetVenueKClient(mono.Services())

	syncer := infra.NewBalanceSyncer(gate, venueK, cfg.Risk.BalanceSyncSeconds, log)
	syncer.SyncOnce(ctx)

	go syncer.Run(ctx)

	log.Info(ctx, "risk module started", "bankroll", gate.Snapshot().Bankroll.String())
	return nil
}
