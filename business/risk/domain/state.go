// Package domain holds the RiskState type and the pure arithmetic RiskGate
// applies to it. Mutation is the app layer's job; this package only answers
// "what would happen" questions against an immutable snapshot.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskState is the process-wide risk ledger. Every field is guarded by a
// single mutex at the app layer; this struct itself carries no locking.
type RiskState struct {
	Bankroll       decimal.Decimal
	DailyPnl       decimal.Decimal
	Exposure       decimal.Decimal
	KillSwitch     bool
	LastSyncAt     time.Time
	LastResetDate  string // YYYY-MM-DD, UTC
}

// Limits are the fractional caps configured for the bot.
type Limits struct {
	MaxRiskPerTrade decimal.Decimal
	MaxDailyLoss    decimal.Decimal
	MaxNetExposure  decimal.Decimal
}

// RejectionReason names which of canExecute's four conditions fired.
type RejectionReason string

const (
	RejectNone           RejectionReason = ""
	RejectKillSwitch     RejectionReason = "KILL_SWITCH"
	RejectOverPerTrade   RejectionReason = "OVER_PER_TRADE_CAP"
	RejectDailyLoss      RejectionReason = "OVER_DAILY_LOSS_CAP"
	RejectOverExposure   RejectionReason = "OVER_NET_EXPOSURE_CAP"
)

// Evaluate checks amount against state under limits and returns the first
// rejection reason that fires, or RejectNone if the trade may proceed. Order
// matches the component design: kill switch, then per-trade cap, then daily
// loss (which also engages the kill switch as a side effect the caller must
// apply), then net exposure.
func Evaluate(state RiskState, limits Limits, amount decimal.Decimal) RejectionReason {
	if state.KillSwitch {
		return RejectKillSwitch
	}
	if amount.GreaterThan(state.Bankroll.Mul(limits.MaxRiskPerTrade)) {
		return RejectOverPerTrade
	}
	if state.DailyPnl.LessThan(state.Bankroll.Mul(limits.MaxDailyLoss).Neg()) {
		return RejectDailyLoss
	}
	if state.Exposure.Add(amount).GreaterThan(state.Bankroll.Mul(limits.MaxNetExposure)) {
		return RejectOverExposure
	}
	return RejectNone
}

// ShouldReset reports whether the UTC date has advanced past lastResetDate.
func ShouldReset(lastResetDate string, now time.Time) bool {
	today := now.UTC().Format("2006-01-02")
	return lastResetDate != today
}

// TodayUTC returns now's UTC calendar date in the RiskState.LastResetDate format.
func TodayUTC(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
