// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow represents one pair's freshest top-of-book prices across venues.
type PriceRow struct {
	PairID string
	KYes   decimal.Decimal
	KNo    decimal.Decimal
	PYes   decimal.Decimal
	PNo    decimal.Decimal
}

// RiskState holds the latest bankroll/exposure snapshot for display.
type RiskState struct {
	Bankroll   decimal.Decimal
	DailyPnl   decimal.Decimal
	Exposure   decimal.Decimal
	KillSwitch bool
}

// PricesComponent renders the per-pair book table and current risk state.
type PricesComponent struct {
	rows []PriceRow
	risk *RiskState
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{rows: make([]PriceRow, 0)}
}

// Update replaces the displayed book rows.
func (p *PricesComponent) Update(rows []PriceRow) {
	p.rows = rows
}

// SetRiskState records the latest RiskGate snapshot for display.
func (p *PricesComponent) SetRiskState(state RiskState) {
	p.risk = &state
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var result string
	result = headerStyle.Render("TRACKED PAIRS")
	result += "\n\n"

	if len(p.rows) == 0 {
		result += dimStyle.Render("  Waiting for price data...") + "\n"
	} else {
		result += fmt.Sprintf("  %-24s  %8s  %8s  %8s  %8s\n", "Pair", "K.Yes", "K.No", "P.Yes", "P.No")
		result += dimStyle.Render("  "+strings.Repeat("─", 60)) + "\n"
		for _, row := range p.rows {
			result += fmt.Sprintf("  %-24s  %8s  %8s  %8s  %8s\n",
				truncate(row.PairID, 24),
				row.KYes.StringFixed(2), row.KNo.StringFixed(2),
				row.PYes.StringFixed(2), row.PNo.StringFixed(2),
			)
		}
	}

	result += "\n"
	result += dimStyle.Render("  "+strings.Repeat("─", 60)) + "\n"

	if p.risk != nil {
		r := p.risk
		if r.KillSwitch {
			result += negativeStyle.Render("  KILL SWITCH ENGAGED") + "\n\n"
		} else {
			result += headerStyle.Render("  RISK STATE") + "\n\n"
		}
		result += fmt.Sprintf("  Bankroll:    %s\n", dimStyle.Render("$"+r.Bankroll.StringFixed(2)))

		pnlStyle := positiveStyle
		if r.DailyPnl.IsNegative() {
			pnlStyle = negativeStyle
		}
		result += fmt.Sprintf("  Daily P&L:   %s\n", pnlStyle.Render("$"+r.DailyPnl.StringFixed(2)))
		result += fmt.Sprintf("  Exposure:    %s\n", warnStyle.Render("$"+r.Exposure.StringFixed(2)))
	} else {
		result += dimStyle.Render("  Waiting for risk snapshot...") + "\n"
	}

	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
