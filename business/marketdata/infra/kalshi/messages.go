package kalshi

import "github.com/shopspring/decimal"

// marketDTO is the REST shape of a single market, trimmed to the fields the
// matcher and detector need. Kalshi quotes prices in integer cents; callers
// convert to the probability-unit decimal the rest of the bot uses.
type marketDTO struct {
	Ticker           string `json:"ticker"`
	EventTicker      string `json:"event_ticker"`
	Title            string `json:"title"`
	CloseTime        string `json:"close_time"`
	YesAskCents      int64  `json:"yes_ask"`
	NoAskCents       int64  `json:"no_ask"`
	Volume           int64  `json:"volume"`
	ResolutionSource string `json:"settlement_source"`
}

type marketsResponse struct {
	Markets []marketDTO `json:"markets"`
	Cursor  string      `json:"cursor"`
}

type balanceResponse struct {
	BalanceCents int64 `json:"balance"`
}

type orderRequest struct {
	Ticker       string `json:"ticker"`
	Side         string `json:"side"` // "yes" | "no"
	Action       string `json:"action"`
	Count        int64  `json:"count"`
	Type         string `json:"type"` // "limit"
	YesPriceCent int64  `json:"yes_price,omitempty"`
	NoPriceCent  int64  `json:"no_price,omitempty"`
	ClientOrderID string `json:"client_order_id"`
}

type orderResponse struct {
	Order struct {
		OrderID string `json:"order_id"`
	} `json:"order"`
}

type orderStatusResponse struct {
	Order struct {
		OrderID       string `json:"order_id"`
		Status        string `json:"status"`
		FilledCount   int64  `json:"filled_count"`
	} `json:"order"`
}

// wsEnvelope is the outer shape of every message on the ticker channel.
type wsEnvelope struct {
	Type string          `json:"type"`
	Msg  tickerPayload   `json:"msg"`
	Seq  uint64          `json:"seq"`
}

type tickerPayload struct {
	MarketTicker string `json:"market_ticker"`
	YesAskCents  int64  `json:"yes_ask"`
	NoAskCents   int64  `json:"no_ask"`
}

func centsToProbability(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func probabilityToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.New(1, 2)).Round(0).IntPart()
}
