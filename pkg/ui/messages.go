// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	marketdomain "github.com/fd1az/arbitrage-bot/business/marketdata/domain"
)

// Message types for TUI updates

// PairMsg is sent when a new cross-venue pair is matched.
type PairMsg struct {
	Pair marketdomain.MarketPair
}

// BookMsg is sent when a venue's order book updates for a tracked pair.
type BookMsg struct {
	Book marketdomain.OrderBook
}

// OpportunityMsg is sent when an arbitrage opportunity is detected.
type OpportunityMsg struct {
	Opportunity *domain.Opportunity
}

// TradeMsg is sent when an execution attempt finishes.
type TradeMsg struct {
	PairID     string
	Outcome    string
	UnwoundVia string
	Detail     string
	Timestamp  time.Time
}

// RiskStateMsg is sent when the RiskGate's snapshot changes.
type RiskStateMsg struct {
	Bankroll   decimal.Decimal
	DailyPnl   decimal.Decimal
	Exposure   decimal.Decimal
	KillSwitch bool
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// WelcomeCompleteMsg signals the welcome screen is done (timeout or keypress).
type WelcomeCompleteMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
