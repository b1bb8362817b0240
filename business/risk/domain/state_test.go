package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLimits() Limits {
	return Limits{
		MaxRiskPerTrade: mustDec("0.10"),
		MaxDailyLoss:    mustDec("0.05"),
		MaxNetExposure:  mustDec("0.50"),
	}
}

func TestEvaluateOrderOfChecks(t *testing.T) {
	// Kill switch takes priority over every other condition, even an
	// otherwise-compliant trade.
	state := RiskState{Bankroll: mustDec("1000"), KillSwitch: true}
	if got := Evaluate(state, testLimits(), mustDec("1")); got != RejectKillSwitch {
		t.Errorf("expected RejectKillSwitch to take priority, got %s", got)
	}

	state = RiskState{Bankroll: mustDec("1000")}
	if got := Evaluate(state, testLimits(), mustDec("101")); got != RejectOverPerTrade {
		t.Errorf("expected RejectOverPerTrade, got %s", got)
	}

	state = RiskState{Bankroll: mustDec("1000"), DailyPnl: mustDec("-60")}
	if got := Evaluate(state, testLimits(), mustDec("10")); got != RejectDailyLoss {
		t.Errorf("expected RejectDailyLoss, got %s", got)
	}

	state = RiskState{Bankroll: mustDec("1000"), Exposure: mustDec("490")}
	if got := Evaluate(state, testLimits(), mustDec("20")); got != RejectOverExposure {
		t.Errorf("expected RejectOverExposure, got %s", got)
	}

	state = RiskState{Bankroll: mustDec("1000"), Exposure: mustDec("100")}
	if got := Evaluate(state, testLimits(), mustDec("50")); got != RejectNone {
		t.Errorf("expected a compliant trade to clear all checks, got %s", got)
	}
}

// TestRiskGateSafetyNeverExceedsMaxNetExposure checks the invariant that no
// accepted trade can push exposure past bankroll*MaxNetExposure, across a
// grid of existing-exposure/candidate-amount combinations.
func TestRiskGateSafetyNeverExceedsMaxNetExposure(t *testing.T) {
	limits := testLimits()
	bankroll := mustDec("1000")
	expCap := bankroll.Mul(limits.MaxNetExposure)

	for _, exposure := range []string{"0", "100", "400", "499"} {
		for _, amount := range []string{"1", "10", "50", "100"} {
			state := RiskState{Bankroll: bankroll, Exposure: mustDec(exposure)}
			reason := Evaluate(state, limits, mustDec(amount))
			if reason == RejectNone {
				after := mustDec(exposure).Add(mustDec(amount))
				if after.GreaterThan(expCap) {
					t.Fatalf("accepted a trade that pushes exposure to %s, past cap %s (exposure=%s amount=%s)", after, expCap, exposure, amount)
				}
			}
		}
	}
}

func TestShouldReset(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if ShouldReset(TodayUTC(now), now) {
		t.Error("expected no reset needed for the same UTC day")
	}
	if !ShouldReset("2026-03-01", now) {
		t.Error("expected a reset once the UTC date has advanced")
	}
}
