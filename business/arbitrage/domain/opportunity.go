// Package domain contains the core domain types for the arbitrage context:
// the two-leg cost model, opportunity representation and trade direction.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags what variety of opportunity was detected. LAG is reserved for a
// future cross-venue-latency signal and is never emitted today.
type Kind string

const (
	KindHard Kind = "HARD"
	KindProb Kind = "PROB"
	KindLag  Kind = "LAG"
)

// Opportunity is a detected, fully-worked arbitrage signal for one
// MarketPair. Hard-arbitrage opportunities carry everything the Executor
// needs to place both legs without re-deriving anything on the hot path.
type Opportunity struct {
	ID        string
	PairID    string
	Kind      Kind
	Direction Direction
	Timestamp time.Time

	GrossCost decimal.Decimal
	Fees      decimal.Decimal
	NetProfit decimal.Decimal

	// AltGrossCost is the gross cost of the scenario NOT chosen as best, kept
	// so EventLog can persist both scenarios' costs (cost_a/cost_b) rather
	// than only the winning one.
	AltGrossCost decimal.Decimal

	// Actionable is true when a KindHard opportunity's NetProfit cleared the
	// Detector's MinProfit threshold. False marks a fully-evaluated scenario
	// that still isn't worth trading (a NO_BUY decision), as distinct from a
	// nil Opportunity, which means no scenario was evaluated at all.
	Actionable bool

	// ProbGap is set only for KindProb opportunities: |K.yesAsk - P.yesAsk|.
	ProbGap decimal.Decimal

	// KYesAsk, KNoAsk, PYesAsk and PNoAsk are the best-ask prices each leg
	// was evaluated against at detection time, carried forward so callers
	// downstream of the Detector never have to re-read a possibly-since-moved
	// book to know what prices produced this opportunity.
	KYesAsk decimal.Decimal
	KNoAsk  decimal.Decimal
	PYesAsk decimal.Decimal
	PNoAsk  decimal.Decimal

	// Outcome token ids on venue P for the winning direction's YES and NO
	// legs, pre-resolved so the Executor never looks them up on the hot path.
	VenuePYesTokenID string
	VenuePNoTokenID  string

	// Instrument ids as known to each venue's VenueClient.
	VenueKInstrumentID string
	VenuePInstrumentID string
}

// IsProfitable reports whether this is a hard-arbitrage opportunity that
// cleared the Detector's MinProfit threshold at detection time.
func (o *Opportunity) IsProfitable() bool {
	return o.Kind == KindHard && o.Actionable
}
