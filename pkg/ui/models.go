// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

// StatusModel is a placeholder for the status sub-model.
type StatusModel struct{}

// NewStatusModel creates a new status model.
func NewStatusModel() StatusModel {
	return StatusModel{}
}

// PricesModel is a placeholder for the prices sub-model.
type PricesModel struct{}

// NewPricesModel creates a new prices model.
func NewPricesModel() PricesModel {
	return PricesModel{}
}

// OpportunitiesModel is a placeholder for the opportunities sub-model.
type OpportunitiesModel struct{}

// NewOpportunitiesModel creates a new opportunities model.
func NewOpportunitiesModel() OpportunitiesModel {
	return OpportunitiesModel{}
}

// StatsModel is a placeholder for the stats sub-model.
type StatsModel struct{}

// NewStatsModel creates a new stats model.
func NewStatsModel() StatsModel {
	return StatsModel{}
}
