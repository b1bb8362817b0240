package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEvaluateScenarios(t *testing.T) {
	fees := FeeSchedule{
		VenuePFlatFee: mustDec("0.01"),
		VenueKRate:    mustDec("0.02"),
	}

	tests := []struct {
		name               string
		kYesAsk, kNoAsk    string
		pYesAsk, pNoAsk    string
		wantNetA, wantNetB string
		wantSkip           bool
	}{
		{
			name: "clean_hard_arb_scenario_a",
			// grossA = pYesAsk(0.30) + kNoAsk(0.30) = 0.60
			// feesA  = 0.01 + 0.30*0.02 = 0.016
			// netA   = 1 - 0.60 - 0.016 = 0.384
			pYesAsk: "0.30", kNoAsk: "0.30",
			kYesAsk: "0.75", pNoAsk: "0.75",
			wantNetA: "0.384",
			wantNetB: "-0.525", // 1 - (0.75+0.75) - (0.01+0.75*0.02) = 1-1.50-0.025
			wantSkip: false,
		},
		{
			name:    "breakeven_prices_sum_to_one",
			pYesAsk: "0.50", kNoAsk: "0.50",
			kYesAsk: "0.50", pNoAsk: "0.50",
			wantNetA: "-0.02",
			wantNetB: "-0.02",
			wantSkip: true, // min(gross)=1.00 exceeds the 0.98 pre-filter ceiling
		},
		{
			name:    "gross_exceeds_prefilter_ceiling",
			pYesAsk: "0.55", kNoAsk: "0.55",
			kYesAsk: "0.60", pNoAsk: "0.60",
			wantNetA: "-0.121",
			wantNetB: "-0.222",
			wantSkip: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, skip := EvaluateScenarios(mustDec(tt.kYesAsk), mustDec(tt.kNoAsk), mustDec(tt.pYesAsk), mustDec(tt.pNoAsk), fees)

			if !a.NetProfit.Equal(mustDec(tt.wantNetA)) {
				t.Errorf("netA = %s, want %s", a.NetProfit, tt.wantNetA)
			}
			if !b.NetProfit.Equal(mustDec(tt.wantNetB)) {
				t.Errorf("netB = %s, want %s", b.NetProfit, tt.wantNetB)
			}
			if skip != tt.wantSkip {
				t.Errorf("skip = %v, want %v", skip, tt.wantSkip)
			}
			if a.Direction != DirectionNoKYesP {
				t.Errorf("scenario A direction = %s, want %s", a.Direction, DirectionNoKYesP)
			}
			if b.Direction != DirectionYesKNoP {
				t.Errorf("scenario B direction = %s, want %s", b.Direction, DirectionYesKNoP)
			}
		})
	}
}

func TestBest(t *testing.T) {
	a := ScenarioResult{Direction: DirectionNoKYesP, NetProfit: mustDec("0.05")}
	b := ScenarioResult{Direction: DirectionYesKNoP, NetProfit: mustDec("0.08")}

	got := Best(a, b)
	if got.Direction != DirectionYesKNoP {
		t.Errorf("Best() = %s, want %s", got.Direction, DirectionYesKNoP)
	}

	got = Best(b, a)
	if got.Direction != DirectionYesKNoP {
		t.Errorf("Best() picked scenario with lower net profit: %s", got.Direction)
	}
}

func TestProbabilisticGap(t *testing.T) {
	gap := ProbabilisticGap(mustDec("0.70"), mustDec("0.50"))
	if !gap.Equal(mustDec("0.20")) {
		t.Errorf("ProbabilisticGap = %s, want 0.20", gap)
	}

	gap = ProbabilisticGap(mustDec("0.50"), mustDec("0.70"))
	if !gap.Equal(mustDec("0.20")) {
		t.Errorf("ProbabilisticGap should be symmetric, got %s", gap)
	}
}

// TestFeeConsistency checks the invariant net + gross + fees = 1.0 holds for
// both scenarios over a range of prices, not just the table's fixed cases.
func TestFeeConsistency(t *testing.T) {
	fees := FeeSchedule{VenuePFlatFee: mustDec("0.005"), VenueKRate: mustDec("0.015")}
	prices := []string{"0.10", "0.25", "0.40", "0.55", "0.70", "0.85"}

	for _, kYes := range prices {
		for _, kNo := range prices {
			for _, pYes := range prices {
				pNo := mustDec("1").Sub(mustDec(pYes)).Add(mustDec("0.02")).String() // arbitrary, just needs a value
				a, b, _ := EvaluateScenarios(mustDec(kYes), mustDec(kNo), mustDec(pYes), mustDec(pNo), fees)

				gotA := a.NetProfit.Add(a.GrossCost).Add(a.Fees)
				if !gotA.Equal(mustDec("1")) {
					t.Fatalf("scenario A: netA+grossA+feesA = %s, want 1.0 (kYes=%s kNo=%s pYes=%s pNo=%s)", gotA, kYes, kNo, pYes, pNo)
				}
				gotB := b.NetProfit.Add(b.GrossCost).Add(b.Fees)
				if !gotB.Equal(mustDec("1")) {
					t.Fatalf("scenario B: netB+grossB+feesB = %s, want 1.0 (kYes=%s kNo=%s pYes=%s pNo=%s)", gotB, kYes, kNo, pYes, pNo)
				}
			}
		}
	}
}

// TestScenarioAMonotonicInPYesAsk checks that, holding K's prices fixed,
// increasing P's yes-ask (scenario A's only P-side input) never increases
// scenario A's net profit - the cost model must not reward a higher entry
// price.
func TestScenarioAMonotonicInPYesAsk(t *testing.T) {
	fees := FeeSchedule{VenuePFlatFee: mustDec("0.01"), VenueKRate: mustDec("0.02")}
	kYes, kNo := mustDec("0.50"), mustDec("0.40")

	prevNet := mustDec("1") // net profit can never exceed 1
	for _, pYes := range []string{"0.10", "0.20", "0.30", "0.40", "0.50"} {
		a, _, _ := EvaluateScenarios(kYes, kNo, mustDec(pYes), mustDec("0.50"), fees)
		if a.NetProfit.GreaterThan(prevNet) {
			t.Fatalf("expected netA to be non-increasing as pYesAsk rises, got %s after previous %s at pYesAsk=%s", a.NetProfit, prevNet, pYes)
		}
		prevNet = a.NetProfit
	}
}
