package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level is one (price, size) rung of an order book side.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is the per-instrument top-of-book state BookCache owns exclusively.
// Only the best level of each side matters for detection; deeper levels are
// carried for the rare case an Executor needs to walk the book, but the
// current protocol never does.
type OrderBook struct {
	Venue        Venue
	InstrumentID string
	YesAsks      []Level // venue K naming; for venue P these are the YES token's asks
	NoAsks       []Level // venue K naming; for venue P these are the NO token's asks
	UpdatedAt    time.Time
	Seq          uint64 // monotonically increasing per-instrument sequence
}

// BestYesAsk returns the top of the YES/ask side, or a zero Level if empty.
func (b *OrderBook) BestYesAsk() Level {
	if len(b.YesAsks) == 0 {
		return Level{}
	}
	return b.YesAsks[0]
}

// BestNoAsk returns the top of the NO side, or a zero Level if empty.
func (b *OrderBook) BestNoAsk() Level {
	if len(b.NoAsks) == 0 {
		return Level{}
	}
	return b.NoAsks[0]
}

// Age reports how long ago this book was last updated, relative to now.
func (b *OrderBook) Age(now time.Time) time.Duration {
	return now.Sub(b.UpdatedAt)
}

// BookUpdate is a single delta or snapshot message a venue stream emits for
// one instrument. Deltas carry Seq for per-instrument ordering; a receiver
// discards an update whose Seq does not strictly increase.
type BookUpdate struct {
	Venue        Venue
	InstrumentID string
	Snapshot     bool
	YesAsks      []Level
	NoAsks       []Level
	Seq          uint64
	ReceivedAt   time.Time
}
