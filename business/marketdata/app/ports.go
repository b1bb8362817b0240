// Package app wires the marketdata domain types into the VenueClient
// capability set and the BookCache service both venues' stream readers write
// into.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/marketdata/domain"
)

// OrderSide distinguishes which outcome a leg buys.
type OrderSide string

const (
	SideYes OrderSide = "YES"
	SideNo  OrderSide = "NO"
)

// OrderStatus is the terminal-or-pending state VenueClient.QueryOrder reports.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "OPEN"
	OrderFilled    OrderStatus = "FILLED"
	OrderPartial   OrderStatus = "PARTIAL"
	OrderCancelled OrderStatus = "CANCELLED"
)

// OrderState is the result of QueryOrder: terminal fields only, no venue wire
// shapes leak past this boundary.
type OrderState struct {
	OrderID OrderID
	Status  OrderStatus
	Filled  decimal.Decimal // contracts filled so far
}

// OrderID is an opaque venue order identifier.
type OrderID string

// DiscoverFilter narrows VenueClient.Discover to markets worth considering.
type DiscoverFilter struct {
	Keywords      []string
	MaxHorizon    int64 // seconds; drop markets resolving further out than this
}

// VenueClient is the unified capability set both venue adapters (and the
// in-memory venuesim test double) satisfy. Every network call carries its own
// deadline of at most 5s; callers pass a context but implementations clamp it.
type VenueClient interface {
	Venue() domain.Venue

	Discover(ctx context.Context, filter DiscoverFilter) ([]domain.MarketEvent, error)
	Refresh(ctx context.Context, instrumentID string) (*domain.MarketEvent, error)

	// Subscribe starts streaming book updates for ids onto the returned
	// channel. The channel is closed when ctx is cancelled or the connection
	// cannot be re-established.
	Subscribe(ctx context.Context, ids []string) (<-chan domain.BookUpdate, error)

	// TopOfBook is the REST fallback used by the Executor when BookCache is
	// stale or missing an entry.
	TopOfBook(ctx context.Context, instrumentID string) (*domain.OrderBook, error)

	Balance(ctx context.Context) (decimal.Decimal, error)

	PlaceOrder(ctx context.Context, instrumentID string, side OrderSide, size, limitPrice decimal.Decimal) (OrderID, error)
	QueryOrder(ctx context.Context, id OrderID) (OrderState, error)
	CancelOrder(ctx context.Context, id OrderID) error
}
