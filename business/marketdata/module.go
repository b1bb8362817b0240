// Package marketdata implements the bounded context owning venue connectivity,
// the order-book cache, and cross-venue market equivalence matching.
package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	marketdataDI "github.com/fd1az/arbitrage-bot/business/marketdata/di"
	"github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/business/marketdata/infra/kalshi"
	"github.com/fd1az/arbitrage-bot/business/marketdata/infra/polymarket"
	"github.com/fd1az/arbitrage-bot/business/marketdata/infra/venuesim"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the marketdata bounded context.
type Module struct{}

// RegisterServices registers the venue clients, BookCache and Matcher.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketdataDI.VenueKClient, func(sr di.ServiceRegistry) marketapp.VenueClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.App.SimulationMode {
			return venuesim.New(domain.VenueK, decimal.NewFromInt(1000))
		}

		client, err := kalshi.New(kalshi.Config{
			RESTBaseURL:      cfg.VenueK.RESTBaseURL,
			WebSocketURL:     cfg.VenueK.WebSocketURL,
			RateLimitRPM:     cfg.VenueK.RateLimitRPM,
			RequestTimeout:   cfg.VenueK.RequestTimeout,
			MinOrderValueUSD: decimal.NewFromFloat(1),
		}, log)
		if err != nil {
			panic("failed to create venue K client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, marketdataDI.VenuePClient, func(sr di.ServiceRegistry) marketapp.VenueClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.App.SimulationMode {
			return venuesim.New(domain.VenueP, decimal.NewFromInt(1000))
		}

		client, err := polymarket.New(polymarket.Config{
			RESTBaseURL:      cfg.VenueP.RESTBaseURL,
			WebSocketURL:     cfg.VenueP.WebSocketURL,
			SafeWalletAddr:   cfg.VenueP.SafeWalletAddr,
			RateLimitRPM:     cfg.VenueP.RateLimitRPM,
			RequestTimeout:   cfg.VenueP.RequestTimeout,
			MinOrderValueUSD: decimal.NewFromFloat(1),
		}, log)
		if err != nil {
			panic("failed to create venue P client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, marketdataDI.BookCache, func(sr di.ServiceRegistry) *marketapp.BookCache {
		cfg := sr.Get("config").(*config.Config)
		freshness := cfg.Detection.BookFreshnessMs
		if freshness == 0 {
			freshness = 500 * time.Millisecond
		}
		return marketapp.NewBookCache(freshness)
	})

	di.RegisterToken(c, marketdataDI.Matcher, func(sr di.ServiceRegistry) *domain.Matcher {
		cfg := sr.Get("config").(*config.Config)
		threshold := cfg.Detection.TitleSimilarity
		if threshold == 0 {
			threshold = 0.6
		}
		return domain.NewMatcher(threshold)
	})

	return nil
}

// Startup does not dial out itself; each venue client connects lazily the
// first time the controller calls Subscribe, so a slow or unreachable venue
// at boot never blocks the whole process from starting.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "marketdata module started")
	return nil
}
