// Package domain contains the core domain types for the arbitrage context:
// the two-leg cost model, opportunity representation and trade direction.
package domain

import "github.com/shopspring/decimal"

// FeeSchedule holds the per-venue fee terms used by the cost model. Venue P
// charges a flat per-contract fee; venue K charges a rate applied to the
// winning leg's price.
type FeeSchedule struct {
	VenuePFlatFee decimal.Decimal
	VenueKRate    decimal.Decimal
}

// ScenarioResult is the fully-worked cost/profit breakdown for one of the
// two hard-arbitrage scenarios.
type ScenarioResult struct {
	Direction Direction
	GrossCost decimal.Decimal
	Fees      decimal.Decimal
	NetProfit decimal.Decimal
}

var one = decimal.NewFromInt(1)
var preFilterCeiling = decimal.NewFromFloat(0.98)

// EvaluateScenarios computes both hard-arbitrage scenarios from best-ask
// prices on each leg:
//
//   - A: buy YES on P and NO on K. grossA = P.yesAsk + K.noAsk,
//     feesA = feePFlat + K.noAsk*feeKRate, netA = 1 - grossA - feesA.
//   - B: buy NO on P and YES on K. grossB = P.noAsk + K.yesAsk,
//     feesB = feePFlat + K.yesAsk*feeKRate, netB = 1 - grossB - feesB.
//
// skip reports whether min(grossA, grossB) exceeds the 0.98 pre-filter
// ceiling, in which case callers should skip the rest of the evaluation.
func EvaluateScenarios(kYesAsk, kNoAsk, pYesAsk, pNoAsk decimal.Decimal, fees FeeSchedule) (a, b ScenarioResult, skip bool) {
	grossA := pYesAsk.Add(kNoAsk)
	feesA := fees.VenuePFlatFee.Add(kNoAsk.Mul(fees.VenueKRate))
	a = ScenarioResult{
		Direction: DirectionNoKYesP,
		GrossCost: grossA,
		Fees:      feesA,
		NetProfit: one.Sub(grossA).Sub(feesA),
	}

	grossB := pNoAsk.Add(kYesAsk)
	feesB := fees.VenuePFlatFee.Add(kYesAsk.Mul(fees.VenueKRate))
	b = ScenarioResult{
		Direction: DirectionYesKNoP,
		GrossCost: grossB,
		Fees:      feesB,
		NetProfit: one.Sub(grossB).Sub(feesB),
	}

	minGross := grossA
	if grossB.LessThan(minGross) {
		minGross = grossB
	}
	skip = minGross.GreaterThan(preFilterCeiling)
	return a, b, skip
}

// Best returns whichever of a or b has the higher net profit.
func Best(a, b ScenarioResult) ScenarioResult {
	if b.NetProfit.GreaterThan(a.NetProfit) {
		return b
	}
	return a
}

// ProbabilisticGap computes |K.yesAsk - P.yesAsk|, the signal behind the
// reported-only probabilistic-arbitrage path.
func ProbabilisticGap(kYesAsk, pYesAsk decimal.Decimal) decimal.Decimal {
	return kYesAsk.Sub(pYesAsk).Abs()
}
