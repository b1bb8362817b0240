// Package venuesim is an in-memory VenueClient implementation used by
// simulation mode to run the Detector/Executor/Controller without talking
// to a real venue.
package venuesim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	marketapp "github.com/fd1az/arbitrage-bot/business/marketdata/app"
	"github.com/fd1az/arbitrage-bot/business/marketdata/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
)

var _ marketapp.VenueClient = (*Client)(nil)

// Client is a scriptable, concurrency-safe fake venue. Callers seed it with
// events via Seed/PushUpdate and drive orders through PlaceOrder exactly as
// the Executor would.
type Client struct {
	venue domain.Venue

	mu      sync.RWMutex
	events  map[string]domain.MarketEvent
	orders  map[marketapp.OrderID]*simOrder
	balance decimal.Decimal

	subs   []chan domain.BookUpdate
	nextID atomic.Uint64

	// FailNextOrder, when non-empty, makes the next PlaceOrder call return
	// this error instead of succeeding, which lets a caller script a
	// rejected leg.
	FailNextOrder error
	// AutoFill, when true (the default), marks every placed order FILLED
	// immediately; tests can set it false to script partial/slow fills.
	AutoFill bool
}

type simOrder struct {
	id         marketapp.OrderID
	instrument string
	side       marketapp.OrderSide
	size       decimal.Decimal
	limitPrice decimal.Decimal
	status     marketapp.OrderStatus
	filled     decimal.Decimal
}

// New builds a simulated client for the given venue tag, starting with the
// given USD balance.
func New(venue domain.Venue, startingBalance decimal.Decimal) *Client {
	return &Client{
		venue:    venue,
		events:   make(map[string]domain.MarketEvent),
		orders:   make(map[marketapp.OrderID]*simOrder),
		balance:  startingBalance,
		AutoFill: true,
	}
}

func (c *Client) Venue() domain.Venue { return c.venue }

// Seed installs or replaces a market event the simulator will serve from
// Discover/Refresh.
func (c *Client) Seed(ev domain.MarketEvent) {
	ev.Venue = c.venue
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[ev.InstrumentID] = ev
}

// PushUpdate fans a book delta out to every active Subscribe channel.
func (c *Client) PushUpdate(u domain.BookUpdate) {
	u.Venue = c.venue
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (c *Client) Discover(ctx context.Context, filter marketapp.DiscoverFilter) ([]domain.MarketEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.MarketEvent, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev)
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, instrumentID string) (*domain.MarketEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ev, ok := c.events[instrumentID]
	if !ok {
		return nil, apperror.New(apperror.CodeNoEquivalentMarket, apperror.WithContext(instrumentID))
	}
	return &ev, nil
}

func (c *Client) Subscribe(ctx context.Context, ids []string) (<-chan domain.BookUpdate, error) {
	ch := make(chan domain.BookUpdate, 64)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (c *Client) TopOfBook(ctx context.Context, instrumentID string) (*domain.OrderBook, error) {
	ev, err := c.Refresh(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	return &domain.OrderBook{
		Venue:        c.venue,
		InstrumentID: instrumentID,
		YesAsks:      []domain.Level{{Price: ev.YesAsk, Size: decimal.NewFromInt(1000)}},
		NoAsks:       []domain.Level{{Price: ev.NoAsk, Size: decimal.NewFromInt(1000)}},
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balance, nil
}

// SetBalance lets a test directly control the simulated bankroll.
func (c *Client) SetBalance(b decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = b
}

func (c *Client) PlaceOrder(ctx context.Context, instrumentID string, side marketapp.OrderSide, size, limitPrice decimal.Decimal) (marketapp.OrderID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailNextOrder != nil {
		err := c.FailNextOrder
		c.FailNextOrder = nil
		return "", err
	}

	id := marketapp.OrderID(fmt.Sprintf("sim-%s-%d", c.venue, c.nextID.Add(1)))
	cost := size.Mul(limitPrice)
	if cost.GreaterThan(c.balance) {
		return "", apperror.New(apperror.CodeBadPrice, apperror.WithContext("simulated balance insufficient"))
	}
	c.balance = c.balance.Sub(cost)

	status := marketapp.OrderOpen
	filled := decimal.Zero
	if c.AutoFill {
		status = marketapp.OrderFilled
		filled = size
	}
	c.orders[id] = &simOrder{
		id:         id,
		instrument: instrumentID,
		side:       side,
		size:       size,
		limitPrice: limitPrice,
		status:     status,
		filled:     filled,
	}
	return id, nil
}

func (c *Client) QueryOrder(ctx context.Context, id marketapp.OrderID) (marketapp.OrderState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[id]
	if !ok {
		return marketapp.OrderState{}, apperror.New(apperror.CodeNoEquivalentMarket, apperror.WithContext(string(id)))
	}
	return marketapp.OrderState{OrderID: id, Status: o.status, Filled: o.filled}, nil
}

// Fill lets a test advance a resting order to filled/partial explicitly.
func (c *Client) Fill(id marketapp.OrderID, filled decimal.Decimal, status marketapp.OrderStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.orders[id]; ok {
		o.filled = filled
		o.status = status
	}
}

func (c *Client) CancelOrder(ctx context.Context, id marketapp.OrderID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return apperror.New(apperror.CodeNoEquivalentMarket, apperror.WithContext(string(id)))
	}
	o.status = marketapp.OrderCancelled
	return nil
}
