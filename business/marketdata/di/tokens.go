// Package di contains dependency injection tokens for the marketdata context.
package di

import (
	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	"github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/internal/di"
)

// DI tokens for the marketdata module.
const (
	VenueKClient = "marketdata.VenueKClient"
	VenuePClient = "marketdata.VenuePClient"
	BookCache    = "marketdata.BookCache"
	Matcher      = "marketdata.Matcher"
)

// GetVenueKClient resolves the venue K VenueClient from the container.
func GetVenueKClient(sr di.ServiceRegistry) marketapp.VenueClient {
	return di.GetToken[marketapp.VenueClient](sr, VenueKClient)
}

// GetVenuePClient resolves the venue P VenueClient from the container.
func GetVenuePClient(sr di.ServiceRegistry) marketapp.VenueClient {
	return di.GetToken[marketapp.VenueClient](sr, VenuePClient)
}

// GetBookCache resolves the shared BookCache from the container.
func GetBookCache(sr di.ServiceRegistry) *marketapp.BookCache {
	return di.GetToken[*marketapp.BookCache](sr, BookCache)
}

// GetMatcher resolves the shared Matcher from the container.
func GetMatcher(sr di.ServiceRegistry) *domain.Matcher {
	return di.GetToken[*domain.Matcher](sr, Matcher)
}
