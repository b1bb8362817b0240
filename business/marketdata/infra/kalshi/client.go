// Package kalshi adapts venue K's REST and WebSocket surface to the
// marketdata VenueClient capability set.
package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	"github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/httpclient"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/ratelimit"
	"github.com/fd1az/arbitrage-bot/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/arbitrage-bot/business/marketdata/infra/kalshi"
	meterName  = "github.com/fd1az/arbitrage-bot/business/marketdata/infra/kalshi"

	callDeadline = 5 * time.Second
)

var _ marketapp.VenueClient = (*Client)(nil)

// Config configures the venue K adapter. Credentials are provided via
// environment per the configuration surface; this struct holds only what
// the client itself needs to dial out.
type Config struct {
	RESTBaseURL   string
	WebSocketURL  string
	APIKeyID      string
	APIPrivateKey string // PEM-encoded; the client does not read it and sends requests unsigned
	RateLimitRPM  int
	RequestTimeout time.Duration
	MinOrderValueUSD decimal.Decimal
}

type clientMetrics struct {
	restRequests  metric.Int64Counter
	wsMessages    metric.Int64Counter
	parseErrors   metric.Int64Counter
}

// Client implements marketapp.VenueClient for venue K.
type Client struct {
	cfg     Config
	http    httpclient.Client
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics clientMetrics

	ws        *wsconn.Client
	nextSeq   atomic.Uint64
	subsMu    sync.Mutex
	activeIDs map[string]struct{}
}

// New builds a venue K client. The returned Client dials neither the REST
// nor WS surface until Discover/Subscribe is called.
func New(cfg Config, log logger.LoggerInterface) (*Client, error) {
	httpCli, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(cfg.RESTBaseURL),
		httpclient.WithProviderName("kalshi"),
		httpclient.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err), apperror.WithContext("building venue K http client"))
	}

	m, err := newClientMetrics()
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:       cfg,
		http:      httpCli,
		limiter:   ratelimit.New(cfg.RateLimitRPM),
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		metrics:   m,
		activeIDs: make(map[string]struct{}),
	}, nil
}

func newClientMetrics() (clientMetrics, error) {
	meter := otel.Meter(meterName)
	restRequests, err := meter.Int64Counter("kalshi_rest_requests_total")
	if err != nil {
		return clientMetrics{}, err
	}
	wsMessages, err := meter.Int64Counter("kalshi_ws_messages_total")
	if err != nil {
		return clientMetrics{}, err
	}
	parseErrors, err := meter.Int64Counter("kalshi_parse_errors_total")
	if err != nil {
		return clientMetrics{}, err
	}
	return clientMetrics{restRequests: restRequests, wsMessages: wsMessages, parseErrors: parseErrors}, nil
}

func (c *Client) Venue() domain.Venue { return domain.VenueK }

// Discover lists open markets matching filter, converting each into a
// MarketEvent. Outcome-token ids for venue K are the ticker itself: Kalshi's
// order endpoint takes the market ticker plus a yes/no side, so there is no
// separate positional-fallback ambiguity here (that only applies to venue P).
func (c *Client) Discover(ctx context.Context, filter marketapp.DiscoverFilter) ([]domain.MarketEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "kalshi.discover")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	req := c.http.NewRequest().SetQueryParam("status", "open").SetQueryParam("limit", "200")
	var out marketsResponse
	req.SetResult(&out)
	resp, err := req.Get(ctx, "/trade-api/v2/markets")
	c.metrics.restRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "discover")))
	if err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err), apperror.WithContext("discover"))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("discover status %d", resp.StatusCode)))
	}

	events := make([]domain.MarketEvent, 0, len(out.Markets))
	for _, m := range out.Markets {
		ev, ok := c.toMarketEvent(m)
		if !ok {
			continue
		}
		if !matchesFilter(ev, filter) {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func matchesFilter(ev domain.MarketEvent, filter marketapp.DiscoverFilter) bool {
	if filter.MaxHorizon > 0 {
		if time.Until(ev.ResolutionTime) > time.Duration(filter.MaxHorizon)*time.Second {
			return false
		}
	}
	if len(filter.Keywords) == 0 {
		return true
	}
	for _, kw := range filter.Keywords {
		if containsFold(ev.Title, kw) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return len(substr) == 0 || indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	ls, lsub := toLower(s), toLower(substr)
	for i := 0; i+len(lsub) <= len(ls); i++ {
		if ls[i:i+len(lsub)] == lsub {
			return i
		}
	}
	return -1
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (c *Client) toMarketEvent(m marketDTO) (domain.MarketEvent, bool) {
	closeTime, err := time.Parse(time.RFC3339, m.CloseTime)
	if err != nil {
		return domain.MarketEvent{}, false
	}
	return domain.MarketEvent{
		Venue:            domain.VenueK,
		InstrumentID:     m.Ticker,
		Ticker:           m.Ticker,
		Title:            m.Title,
		ResolutionTime:   closeTime.UTC(),
		YesAsk:           centsToProbability(m.YesAskCents),
		NoAsk:            centsToProbability(m.NoAskCents),
		Volume:           decimal.NewFromInt(m.Volume),
		ResolutionSource: m.ResolutionSource,
		Metadata: domain.VenueMetadata{
			YesTokenID:       m.Ticker,
			NoTokenID:        m.Ticker,
			MinOrderValueUSD: c.cfg.MinOrderValueUSD,
			TickSize:         decimal.New(1, -2),
		},
	}, true
}

// Refresh re-fetches a single instrument by ticker.
func (c *Client) Refresh(ctx context.Context, instrumentID string) (*domain.MarketEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	var out struct {
		Market marketDTO `json:"market"`
	}
	resp, err := c.http.NewRequest().SetResult(&out).Get(ctx, "/trade-api/v2/markets/"+instrumentID)
	c.metrics.restRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "refresh")))
	if err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("refresh status %d", resp.StatusCode)))
	}

	ev, ok := c.toMarketEvent(out.Market)
	if !ok {
		return nil, apperror.New(apperror.CodeBadPrice, apperror.WithContext("unparseable close_time"))
	}
	return &ev, nil
}

// Subscribe opens a new ticker-channel WebSocket and streams book
// updates for ids onto the returned channel.
func (c *Client) Subscribe(ctx context.Context, ids []string) (<-chan domain.BookUpdate, error) {
	out := make(chan domain.BookUpdate, 256)

	conf := wsconn.DefaultConfig(c.cfg.WebSocketURL, "kalshi")
	ws, err := wsconn.New(conf)
	if err != nil {
		return nil, apperror.New(apperror.CodeWebSocketDisconnect, apperror.WithCause(err))
	}
	c.ws = ws

	ws.OnMessage(func(ctx context.Context, msg []byte) {
		c.metrics.wsMessages.Add(ctx, 1)
		update, ok := c.parseTickerMessage(msg)
		if !ok {
			c.metrics.parseErrors.Add(ctx, 1)
			return
		}
		select {
		case out <- update:
		default:
			c.logger.Warn(ctx, "kalshi book update dropped, consumer too slow", "ticker", update.InstrumentID)
		}
	})

	if err := ws.ConnectWithRetry(ctx); err != nil {
		close(out)
		return nil, apperror.New(apperror.CodeWebSocketDisconnect, apperror.WithCause(err))
	}

	c.subsMu.Lock()
	for _, id := range ids {
		c.activeIDs[id] = struct{}{}
	}
	c.subsMu.Unlock()

	sub := map[string]interface{}{
		"cmd": "subscribe",
		"params": map[string]interface{}{
			"channels":       []string{"ticker"},
			"market_tickers": ids,
		},
	}
	if err := ws.SendJSON(ctx, sub); err != nil {
		close(out)
		return nil, apperror.New(apperror.CodeWebSocketDisconnect, apperror.WithCause(err))
	}

	go func() {
		<-ctx.Done()
		_ = ws.Close()
		close(out)
	}()

	return out, nil
}

func (c *Client) parseTickerMessage(raw []byte) (domain.BookUpdate, bool) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type != "ticker" {
		return domain.BookUpdate{}, false
	}
	return domain.BookUpdate{
		Venue:        domain.VenueK,
		InstrumentID: env.Msg.MarketTicker,
		YesAsks:      []domain.Level{{Price: centsToProbability(env.Msg.YesAskCents), Size: decimal.Zero}},
		NoAsks:       []domain.Level{{Price: centsToProbability(env.Msg.NoAskCents), Size: decimal.Zero}},
		Seq:          env.Seq,
		ReceivedAt:   time.Now().UTC(),
	}, true
}

// TopOfBook is the REST fallback the Executor uses when BookCache is stale.
func (c *Client) TopOfBook(ctx context.Context, instrumentID string) (*domain.OrderBook, error) {
	ev, err := c.Refresh(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	return &domain.OrderBook{
		Venue:        domain.VenueK,
		InstrumentID: instrumentID,
		YesAsks:      []domain.Level{{Price: ev.YesAsk}},
		NoAsks:       []domain.Level{{Price: ev.NoAsk}},
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// Balance returns the USD-denominated available cash balance.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	var out balanceResponse
	resp, err := c.http.NewRequest().SetResult(&out).Get(ctx, "/trade-api/v2/portfolio/balance")
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return decimal.Zero, apperror.New(apperror.CodeVenueAuthFailure, apperror.WithContext("balance"))
	}
	if resp.IsError() {
		return decimal.Zero, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("balance status %d", resp.StatusCode)))
	}
	return decimal.New(out.BalanceCents, -2), nil
}

// PlaceOrder submits a limit order for size contracts of side at limitPrice.
func (c *Client) PlaceOrder(ctx context.Context, instrumentID string, side marketapp.OrderSide, size, limitPrice decimal.Decimal) (marketapp.OrderID, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	req := orderRequest{
		Ticker:        instrumentID,
		Action:        "buy",
		Count:         size.IntPart(),
		Type:          "limit",
		ClientOrderID: fmt.Sprintf("arb-%d", c.nextSeq.Add(1)),
	}
	if side == marketapp.SideYes {
		req.Side = "yes"
		req.YesPriceCent = probabilityToCents(limitPrice)
	} else {
		req.Side = "no"
		req.NoPriceCent = probabilityToCents(limitPrice)
	}

	var out orderResponse
	resp, err := c.http.NewRequest().SetBody(req).SetResult(&out).Post(ctx, "/trade-api/v2/portfolio/orders")
	if err != nil {
		return "", apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err), apperror.WithContext("place_order"))
	}
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return "", apperror.New(apperror.CodeVenueAuthFailure, apperror.WithContext("place_order"))
	case resp.StatusCode == 400:
		return "", apperror.New(apperror.CodeOrderRejected, apperror.WithContext(resp.String()))
	case resp.IsError():
		return "", apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("place_order status %d", resp.StatusCode)))
	}
	return marketapp.OrderID(out.Order.OrderID), nil
}

// QueryOrder reports the current fill state of a previously placed order.
func (c *Client) QueryOrder(ctx context.Context, id marketapp.OrderID) (marketapp.OrderState, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return marketapp.OrderState{}, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	var out orderStatusResponse
	resp, err := c.http.NewRequest().SetResult(&out).Get(ctx, "/trade-api/v2/portfolio/orders/"+string(id))
	if err != nil {
		return marketapp.OrderState{}, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.IsError() {
		return marketapp.OrderState{}, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("query_order status %d", resp.StatusCode)))
	}

	return marketapp.OrderState{
		OrderID: id,
		Status:  mapStatus(out.Order.Status),
		Filled:  decimal.NewFromInt(out.Order.FilledCount),
	}, nil
}

func mapStatus(s string) marketapp.OrderStatus {
	switch s {
	case "executed":
		return marketapp.OrderFilled
	case "canceled":
		return marketapp.OrderCancelled
	case "resting":
		return marketapp.OrderOpen
	default:
		return marketapp.OrderPartial
	}
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, id marketapp.OrderID) error {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	resp, err := c.http.NewRequest().Delete(ctx, "/trade-api/v2/portfolio/orders/"+string(id))
	if err != nil {
		return apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("cancel status %d", resp.StatusCode)))
	}
	return nil
}

