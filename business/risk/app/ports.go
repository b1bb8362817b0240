package app

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceSource is the minimal capability the background sync task needs:
// anything that can report a USD balance, satisfied structurally by
// marketdata's VenueClient without this package importing it.
type BalanceSource interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
}
