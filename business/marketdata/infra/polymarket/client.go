// Package polymarket adapts venue P's REST and WebSocket surface to the
// marketdata VenueClient capability set.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
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
	tracerName = "github.com/fd1az/arbitrage-bot/business/marketdata/infra/polymarket"
	meterName  = "github.com/fd1az/arbitrage-bot/business/marketdata/infra/polymarket"

	callDeadline = 5 * time.Second
)

var _ marketapp.VenueClient = (*Client)(nil)

// Config configures the venue P adapter.
type Config struct {
	RESTBaseURL      string
	WebSocketURL     string
	APIKey           string
	APISecret        string
	APIPassphrase    string
	SafeWalletAddr   string // funding/safe-wallet address, validated at construction
	RateLimitRPM     int
	RequestTimeout   time.Duration
	MinOrderValueUSD decimal.Decimal
}

type clientMetrics struct {
	restRequests          metric.Int64Counter
	wsMessages            metric.Int64Counter
	parseErrors           metric.Int64Counter
	outcomeFallbackTotal  metric.Int64Counter
}

// Client implements marketapp.VenueClient for venue P.
type Client struct {
	cfg        Config
	safeWallet ethcommon.Address
	http       httpclient.Client
	limiter    *ratelimit.Limiter
	logger     logger.LoggerInterface
	tracer     trace.Tracer
	metrics    clientMetrics

	ws *wsconn.Client

	mu          sync.Mutex
	tokenToInst map[string]tokenRef // clob token id -> (instrument, side)
	books       map[string]*instrumentBook
	nextID      atomic.Uint64
}

type tokenRef struct {
	instrumentID string
	isYes        bool
}

type instrumentBook struct {
	yesAsks []domain.Level
	noAsks  []domain.Level
	seq     uint64
}

// New validates cfg (notably the safe-wallet address, which must be a
// well-formed hex address - a malformed one is a configuration error, not a
// transient venue failure) and builds a venue P client.
func New(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if !ethcommon.IsHexAddress(cfg.SafeWalletAddr) {
		return nil, apperror.New(apperror.CodeConfigInvalid, apperror.WithContext("venue P safe_wallet_address is not a valid hex address"))
	}

	httpCli, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(cfg.RESTBaseURL),
		httpclient.WithProviderName("polymarket"),
		httpclient.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err), apperror.WithContext("building venue P http client"))
	}

	m, err := newClientMetrics()
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:         cfg,
		safeWallet:  ethcommon.HexToAddress(cfg.SafeWalletAddr),
		http:        httpCli,
		limiter:     ratelimit.New(cfg.RateLimitRPM),
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		metrics:     m,
		tokenToInst: make(map[string]tokenRef),
		books:       make(map[string]*instrumentBook),
	}, nil
}

func newClientMetrics() (clientMetrics, error) {
	meter := otel.Meter(meterName)
	restRequests, err := meter.Int64Counter("polymarket_rest_requests_total")
	if err != nil {
		return clientMetrics{}, err
	}
	wsMessages, err := meter.Int64Counter("polymarket_ws_messages_total")
	if err != nil {
		return clientMetrics{}, err
	}
	parseErrors, err := meter.Int64Counter("polymarket_parse_errors_total")
	if err != nil {
		return clientMetrics{}, err
	}
	outcomeFallback, err := meter.Int64Counter("polymarket_outcome_token_fallback_total")
	if err != nil {
		return clientMetrics{}, err
	}
	return clientMetrics{
		restRequests:         restRequests,
		wsMessages:           wsMessages,
		parseErrors:          parseErrors,
		outcomeFallbackTotal: outcomeFallback,
	}, nil
}

func (c *Client) Venue() domain.Venue { return domain.VenueP }

// Discover lists active markets matching filter.
func (c *Client) Discover(ctx context.Context, filter marketapp.DiscoverFilter) ([]domain.MarketEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "polymarket.discover")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	var out marketsResponse
	resp, err := c.http.NewRequest().SetQueryParam("active", "true").SetQueryParam("closed", "false").SetResult(&out).Get(ctx, "/markets")
	c.metrics.restRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "discover")))
	if err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err), apperror.WithContext("discover"))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("discover status %d", resp.StatusCode)))
	}

	events := make([]domain.MarketEvent, 0, len(out.Data))
	for _, m := range out.Data {
		ev, ok := c.toMarketEvent(ctx, m)
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
	if filter.MaxHorizon > 0 && time.Until(ev.ResolutionTime) > time.Duration(filter.MaxHorizon)*time.Second {
		return false
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
	if substr == "" {
		return true
	}
	ls, lsub := toLower(s), toLower(substr)
	for i := 0; i+len(lsub) <= len(ls); i++ {
		if ls[i:i+len(lsub)] == lsub {
			return true
		}
	}
	return false
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

// toMarketEvent resolves the yes/no outcome-token assignment by label first;
// when the market declares no recognizable "Yes"/"No" outcome labels it
// falls back to positional assignment (index 0 = yes, index 1 = no) and
// records that fact in VenueMetadata and logs a warning.
func (c *Client) toMarketEvent(ctx context.Context, m marketDTO) (domain.MarketEvent, bool) {
	if len(m.ClobTokenIds) < 2 {
		return domain.MarketEvent{}, false
	}
	endTime, err := time.Parse(time.RFC3339, m.EndDateISO)
	if err != nil {
		return domain.MarketEvent{}, false
	}

	yesIdx, noIdx, byPos := resolveOutcomeIndices(m.Outcomes)
	if byPos {
		c.metrics.outcomeFallbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("market", m.ConditionID)))
		c.logger.Warn(ctx, "outcome token resolved positionally, no recognizable label", "condition_id", m.ConditionID)
	}

	var yesAsk, noAsk decimal.Decimal
	if yesIdx < len(m.OutcomePrices) {
		yesAsk = parseDecimalOrZero(m.OutcomePrices[yesIdx])
	}
	if noIdx < len(m.OutcomePrices) {
		noAsk = parseDecimalOrZero(m.OutcomePrices[noIdx])
	}

	yesToken, noToken := m.ClobTokenIds[yesIdx], m.ClobTokenIds[noIdx]

	c.mu.Lock()
	c.tokenToInst[yesToken] = tokenRef{instrumentID: m.ConditionID, isYes: true}
	c.tokenToInst[noToken] = tokenRef{instrumentID: m.ConditionID, isYes: false}
	c.mu.Unlock()

	return domain.MarketEvent{
		Venue:            domain.VenueP,
		InstrumentID:     m.ConditionID,
		Ticker:           m.Slug,
		Title:            m.Question,
		ResolutionTime:   endTime.UTC(),
		YesAsk:           yesAsk,
		NoAsk:            noAsk,
		Volume:           parseDecimalOrZero(m.Volume),
		ResolutionSource: m.ResolutionSource,
		Metadata: domain.VenueMetadata{
			YesTokenID:        yesToken,
			NoTokenID:         noToken,
			OutcomeTokenByPos: byPos,
			MinOrderValueUSD:  parseDecimalOrZero(m.MinOrderSize),
			TickSize:          parseDecimalOrZero(m.TickSize),
		},
	}, true
}

func resolveOutcomeIndices(outcomes []string) (yesIdx, noIdx int, byPosition bool) {
	if len(outcomes) < 2 {
		return 0, 1, true
	}
	yesIdx, noIdx = -1, -1
	for i, o := range outcomes {
		switch toLower(o) {
		case "yes":
			yesIdx = i
		case "no":
			noIdx = i
		}
	}
	if yesIdx < 0 || noIdx < 0 {
		return 0, 1, true
	}
	return yesIdx, noIdx, false
}

// Refresh re-fetches a single instrument by condition id.
func (c *Client) Refresh(ctx context.Context, instrumentID string) (*domain.MarketEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	var m marketDTO
	resp, err := c.http.NewRequest().SetResult(&m).Get(ctx, "/markets/"+instrumentID)
	c.metrics.restRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "refresh")))
	if err != nil {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("refresh status %d", resp.StatusCode)))
	}
	ev, ok := c.toMarketEvent(ctx, m)
	if !ok {
		return nil, apperror.New(apperror.CodeBadPrice, apperror.WithContext("unparseable market"))
	}
	return &ev, nil
}

// Subscribe opens the per-token book-level WebSocket and streams merged
// top-of-book updates for the instruments owning ids (ids are instrument
// condition ids; both outcome tokens for each are subscribed automatically).
func (c *Client) Subscribe(ctx context.Context, ids []string) (<-chan domain.BookUpdate, error) {
	out := make(chan domain.BookUpdate, 256)

	tokens := make([]string, 0, len(ids)*2)
	c.mu.Lock()
	for token, ref := range c.tokenToInst {
		for _, id := range ids {
			if ref.instrumentID == id {
				tokens = append(tokens, token)
			}
		}
	}
	for _, id := range ids {
		c.books[id] = &instrumentBook{}
	}
	c.mu.Unlock()

	conf := wsconn.DefaultConfig(c.cfg.WebSocketURL, "polymarket")
	ws, err := wsconn.New(conf)
	if err != nil {
		return nil, apperror.New(apperror.CodeWebSocketDisconnect, apperror.WithCause(err))
	}
	c.ws = ws

	ws.OnMessage(func(ctx context.Context, msg []byte) {
		c.metrics.wsMessages.Add(ctx, 1)
		update, ok := c.handleBookMessage(msg)
		if !ok {
			c.metrics.parseErrors.Add(ctx, 1)
			return
		}
		select {
		case out <- update:
		default:
			c.logger.Warn(ctx, "polymarket book update dropped, consumer too slow", "instrument", update.InstrumentID)
		}
	})

	if err := ws.ConnectWithRetry(ctx); err != nil {
		close(out)
		return nil, apperror.New(apperror.CodeWebSocketDisconnect, apperror.WithCause(err))
	}

	sub := map[string]interface{}{
		"type":     "market",
		"assets_ids": tokens,
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

// handleBookMessage merges a single-token book snapshot into that
// instrument's cached opposite side and emits a full two-sided update.
// Venue P publishes one side (one token) per message, never both at once,
// so the adapter must remember the other side to produce a usable
// top-of-book the way venue K's combined ticker stream does natively.
func (c *Client) handleBookMessage(raw []byte) (domain.BookUpdate, bool) {
	var env bookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.EventType != "book" {
		return domain.BookUpdate{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ref, ok := c.tokenToInst[env.AssetID]
	if !ok {
		return domain.BookUpdate{}, false
	}
	book, ok := c.books[ref.instrumentID]
	if !ok {
		book = &instrumentBook{}
		c.books[ref.instrumentID] = book
	}

	asks := toLevels(env.Asks)
	if ref.isYes {
		book.yesAsks = asks
	} else {
		book.noAsks = asks
	}
	book.seq++

	return domain.BookUpdate{
		Venue:        domain.VenueP,
		InstrumentID: ref.instrumentID,
		YesAsks:      append([]domain.Level(nil), book.yesAsks...),
		NoAsks:       append([]domain.Level(nil), book.noAsks...),
		Seq:          book.seq,
		ReceivedAt:   time.Now().UTC(),
	}, true
}

func toLevels(ps []priceSize) []domain.Level {
	levels := make([]domain.Level, 0, len(ps))
	for _, p := range ps {
		levels = append(levels, domain.Level{Price: parseDecimalOrZero(p.Price), Size: parseDecimalOrZero(p.Size)})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price.LessThan(levels[j].Price) })
	return levels
}

// TopOfBook is the REST fallback the Executor uses when BookCache is stale.
func (c *Client) TopOfBook(ctx context.Context, instrumentID string) (*domain.OrderBook, error) {
	ev, err := c.Refresh(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	return &domain.OrderBook{
		Venue:        domain.VenueP,
		InstrumentID: instrumentID,
		YesAsks:      []domain.Level{{Price: ev.YesAsk}},
		NoAsks:       []domain.Level{{Price: ev.NoAsk}},
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// Balance returns the available USDC balance held at the safe wallet.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	var out balanceResponse
	resp, err := c.http.NewRequest().
		SetQueryParam("address", c.safeWallet.Hex()).
		SetResult(&out).
		Get(ctx, "/balance")
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return decimal.Zero, apperror.New(apperror.CodeVenueAuthFailure, apperror.WithContext("balance"))
	}
	if resp.IsError() {
		return decimal.Zero, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("balance status %d", resp.StatusCode)))
	}
	return parseDecimalOrZero(out.Balance), nil
}

// PlaceOrder submits a limit order for size shares of the named outcome's
// token at limitPrice. instrumentID must match a condition id previously
// seen via Discover/Refresh so the token-id mapping is resolvable.
func (c *Client) PlaceOrder(ctx context.Context, instrumentID string, side marketapp.OrderSide, size, limitPrice decimal.Decimal) (marketapp.OrderID, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	token, err := c.tokenFor(instrumentID, side)
	if err != nil {
		return "", err
	}

	req := orderRequest{
		TokenID:   token,
		Price:     limitPrice.String(),
		Size:      size.String(),
		Side:      "BUY",
		OrderType: "GTC",
		MakerAddr: c.safeWallet.Hex(),
	}

	var out orderResponse
	resp, reqErr := c.http.NewRequest().SetBody(req).SetResult(&out).Post(ctx, "/order")
	if reqErr != nil {
		return "", apperror.New(apperror.CodeVenueTransient, apperror.WithCause(reqErr), apperror.WithContext("place_order"))
	}
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return "", apperror.New(apperror.CodeVenueAuthFailure, apperror.WithContext("place_order"))
	case resp.StatusCode == 400:
		return "", apperror.New(apperror.CodeOrderRejected, apperror.WithContext(resp.String()))
	case resp.IsError():
		return "", apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("place_order status %d", resp.StatusCode)))
	}
	return marketapp.OrderID(out.OrderID), nil
}

func (c *Client) tokenFor(instrumentID string, side marketapp.OrderSide) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, ref := range c.tokenToInst {
		if ref.instrumentID != instrumentID {
			continue
		}
		if (side == marketapp.SideYes) == ref.isYes {
			return token, nil
		}
	}
	return "", apperror.New(apperror.CodeNoEquivalentMarket, apperror.WithContext("no outcome token cached for "+instrumentID))
}

// QueryOrder reports the current fill state of a previously placed order.
func (c *Client) QueryOrder(ctx context.Context, id marketapp.OrderID) (marketapp.OrderState, error) {
	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return marketapp.OrderState{}, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}

	var out orderStatusResponse
	resp, err := c.http.NewRequest().SetResult(&out).Get(ctx, "/order/"+string(id))
	if err != nil {
		return marketapp.OrderState{}, apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.IsError() {
		return marketapp.OrderState{}, apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("query_order status %d", resp.StatusCode)))
	}

	return marketapp.OrderState{
		OrderID: id,
		Status:  mapStatus(out.Status),
		Filled:  parseDecimalOrZero(out.SizeMatched),
	}, nil
}

func mapStatus(s string) marketapp.OrderStatus {
	switch s {
	case "matched", "filled":
		return marketapp.OrderFilled
	case "cancelled":
		return marketapp.OrderCancelled
	case "live":
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

	resp, err := c.http.NewRequest().Delete(ctx, "/order/"+string(id))
	if err != nil {
		return apperror.New(apperror.CodeVenueTransient, apperror.WithCause(err))
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeVenueTransient, apperror.WithContext(fmt.Sprintf("cancel status %d", resp.StatusCode)))
	}
	return nil
}
