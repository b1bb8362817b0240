// Package domain contains the core market-data types shared by both venues:
// MarketEvent, OrderBook, MarketPair and the book-update stream shape.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue identifies one of the two exchanges this bot trades.
type Venue string

const (
	VenueK Venue = "K"
	VenueP Venue = "P"
)

// MarketEvent is an immutable snapshot of one instrument on one venue.
// "Current" per instrument is replaced wholesale on each update, never mutated.
type MarketEvent struct {
	Venue            Venue
	InstrumentID     string
	Ticker           string
	Title            string
	ResolutionTime   time.Time // always UTC
	YesAsk           decimal.Decimal
	NoAsk            decimal.Decimal
	Volume           decimal.Decimal
	ResolutionSource string
	Metadata         VenueMetadata
}

// VenueMetadata carries venue-specific opaque fields a MarketEvent needs to
// round-trip through order placement without the Detector/Executor knowing
// about venue wire formats.
type VenueMetadata struct {
	// YesTokenID / NoTokenID are venue P's opaque outcome-token identifiers.
	// Populated by label when the venue declares outcome labels; falls back
	// to positional order (first two entries) with a recorded warning.
	YesTokenID         string
	NoTokenID          string
	OutcomeTokenByPos  bool // true if YesTokenID/NoTokenID were assigned positionally
	MinOrderValueUSD   decimal.Decimal
	TickSize           decimal.Decimal
}

// Liquid reports whether both sides carry a usable ask (the §3 invariant
// `yes_ask + no_ask >= 1.0` is checked by callers, not here - a violation of
// that invariant is itself a signal, not an error).
func (e *MarketEvent) Liquid() bool {
	return e.YesAsk.IsPositive() && e.NoAsk.IsPositive()
}
