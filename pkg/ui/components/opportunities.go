// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	Timestamp  string
	PairID     string
	Kind       string
	Direction  string
	GrossCost  decimal.Decimal
	Fees       decimal.Decimal
	NetProfit  decimal.Decimal
	ProbGap    decimal.Decimal
	Status     string
	Profitable bool
}

// OpportunitiesComponent renders the opportunities list.
type OpportunitiesComponent struct {
	rows       []OpportunityRow
	maxRows    int
	offset     int // For scrolling
	visibleMax int // How many to show at once
	maxHeight  int // Max lines to render
}

// NewOpportunitiesComponent creates a new opportunities component.
func NewOpportunitiesComponent(maxRows int) *OpportunitiesComponent {
	return &OpportunitiesComponent{
		rows:       make([]OpportunityRow, 0),
		maxRows:    maxRows,
		offset:     0,
		visibleMax: 3, // Show max 3 opportunities at once
		maxHeight:  25, // Max lines to render
	}
}

// Add adds a new opportunity to the list.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	o.rows = append([]OpportunityRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
	// Reset scroll to top on new opportunity
	o.offset = 0
}

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = make([]OpportunityRow, 0)
	o.offset = 0
}

// ScrollUp scrolls the list up.
func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown scrolls the list down.
func (o *OpportunitiesComponent) ScrollDown() {
	maxOffset := len(o.rows) - o.visibleMax
	if maxOffset < 0 {
		maxOffset = 0
	}
	if o.offset < maxOffset {
		o.offset++
	}
}

// Count returns the total number of opportunities.
func (o *OpportunitiesComponent) Count() int {
	return len(o.rows)
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	scrollHint := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	var result string
	result = headerStyle.Render("OPPORTUNITIES")

	// Show count and scroll position
	if len(o.rows) > 0 {
		countStr := fmt.Sprintf(" (%d total, ↑↓ scroll)", len(o.rows))
		result += mutedStyle.Render(countStr)
	}
	result += "\n\n"

	if len(o.rows) == 0 {
		result += mutedStyle.Render("  No opportunities detected yet.\n")
		result += mutedStyle.Render("  Monitoring spreads...\n")
		return result
	}

	// Scroll indicator (top)
	if o.offset > 0 {
		result += scrollHint.Render(fmt.Sprintf("  ▲ %d above\n", o.offset))
	}

	// Render visible rows (compact format: 2 lines per opportunity plus a separator)
	end := o.offset + o.visibleMax
	if end > len(o.rows) {
		end = len(o.rows)
	}

	for i := o.offset; i < end; i++ {
		row := o.rows[i]
		icon := "●"
		style := profitStyle
		if !row.Profitable {
			icon = "○"
			style = mutedStyle
		}

		// Line 1: icon [time] Pair | Kind | Direction
		result += fmt.Sprintf("  %s [%s] %s | %s | %s\n",
			style.Render(icon),
			row.Timestamp,
			row.PairID,
			row.Kind,
			row.Direction,
		)

		// Line 2: Gross | Fees | Net
		if row.Kind == "PROB" {
			result += fmt.Sprintf("    Yes-ask gap: %s\n", row.ProbGap.StringFixed(4))
		} else {
			result += fmt.Sprintf("    Gross: %s | Fees: %s | Net: %s\n",
				row.GrossCost.StringFixed(4),
				row.Fees.StringFixed(4),
				style.Render(row.NetProfit.StringFixed(4)),
			)
		}

		// Separator between opportunities
		if i < end-1 {
			result += dimStyle.Render("    ─────────────────────────────────\n")
		}
	}

	// Scroll indicator (bottom)
	if end < len(o.rows) {
		result += scrollHint.Render(fmt.Sprintf("\n  ▼ %d more below\n", len(o.rows)-end))
	}

	return result
}
