package polymarket

import "github.com/shopspring/decimal"

// marketDTO is the REST shape of a single Polymarket-style market. Outcome
// labels and token ids are parallel arrays; a market that omits Outcomes
// entirely still carries ClobTokenIds, which is why VenueMetadata records
// whether the yes/no assignment was made by label or fell back to position.
type marketDTO struct {
	ConditionID  string   `json:"condition_id"`
	Slug         string   `json:"slug"`
	Question     string   `json:"question"`
	EndDateISO   string   `json:"end_date_iso"`
	Outcomes     []string `json:"outcomes"`
	OutcomePrices []string `json:"outcome_prices"`
	ClobTokenIds []string `json:"clob_token_ids"`
	Volume       string   `json:"volume"`
	ResolutionSource string `json:"resolution_source"`
	MinOrderSize string   `json:"min_order_size"`
	TickSize     string   `json:"tick_size"`
}

type marketsResponse struct {
	Data []marketDTO `json:"data"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type orderRequest struct {
	TokenID    string `json:"token_id"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	Side       string `json:"side"` // "BUY" | "SELL"
	OrderType  string `json:"order_type"`
	MakerAddr  string `json:"maker_address"`
}

type orderResponse struct {
	OrderID string `json:"orderID"`
}

type orderStatusResponse struct {
	Status      string `json:"status"`
	SizeMatched string `json:"size_matched"`
}

// bookEnvelope is the shape of a `book` channel WS message: a full snapshot
// of one token's resting orders, keyed by side.
type bookEnvelope struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Bids      []priceSize `json:"bids"`
	Asks      []priceSize `json:"asks"`
	Hash      string      `json:"hash"`
}

type priceSize struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
