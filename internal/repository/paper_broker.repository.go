package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const paperEventBuffer = 1024

var _ BrokerRepository = (*PaperBroker)(nil)

type PaperBrokerInput struct {
	Account string
	Cash    float64
	// Bars serve GetBars, keyed by symbol, ascending
	Bars map[string][]domain.Bar
	// AutoFill fills market orders at the last seen price as soon as they
	// are placed
	AutoFill bool
	Clock    util.Clock
	Log      *zap.SugaredLogger
}

// PaperBroker is an in-process broker. It backs the mock provider and the
// integration tests: bars and quotes are pushed in by the caller, orders
// are filled on request or automatically.
type PaperBroker struct {
	account  string
	autoFill bool
	clock    util.Clock
	log      *zap.SugaredLogger

	mu        sync.Mutex
	cash      decimal.Decimal
	bars      map[string][]domain.Bar
	prices    map[string]decimal.Decimal
	orders    map[string]*domain.Order
	positions map[string]domain.Position
	fills     []domain.Trade
	streams   []*paperMarketStream
	events    chan domain.OrderEvent
	closed    bool
}

func NewPaperBroker(in PaperBrokerInput) *PaperBroker {
	clock := in.Clock
	if clock == nil {
		clock = util.NewClock()
	}
	log := in.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	bars := map[string][]domain.Bar{}
	prices := map[string]decimal.Decimal{}
	for symbol, b := range in.Bars {
		bars[symbol] = b
		if len(b) > 0 {
			prices[symbol] = decimal.NewFromFloat(b[len(b)-1].Close)
		}
	}
	return &PaperBroker{
		account:   in.Account,
		autoFill:  in.AutoFill,
		clock:     clock,
		log:       log,
		cash:      decimal.NewFromFloat(in.Cash),
		bars:      bars,
		prices:    prices,
		orders:    map[string]*domain.Order{},
		positions: map[string]domain.Position{},
		events:    make(chan domain.OrderEvent, paperEventBuffer),
	}
}

func (b *PaperBroker) GetBars(ctx context.Context, in GetBarsInput) (*BarPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := in.Start
	if in.PageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, in.PageToken)
		if err != nil {
			return nil, fmt.Errorf("invalid page token %q: %w", in.PageToken, err)
		}
		start = t
	}
	out := &BarPage{Bars: []domain.Bar{}}
	for _, bar := range b.bars[in.Symbol] {
		if bar.Timestamp.Before(start) || !bar.Timestamp.Before(in.End) {
			continue
		}
		if in.Limit > 0 && len(out.Bars) == in.Limit {
			out.NextPageToken = bar.Timestamp.Format(time.RFC3339Nano)
			break
		}
		out.Bars = append(out.Bars, bar)
	}
	return out, nil
}

func (b *PaperBroker) GetAccount(ctx context.Context) (*domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	equity := b.cash
	for symbol, p := range b.positions {
		equity = equity.Add(p.Quantity.Mul(b.prices[symbol]))
	}
	return &domain.Account{
		AccountID:   b.account,
		Cash:        b.cash.InexactFloat64(),
		BuyingPower: b.cash.InexactFloat64(),
		Equity:      equity.InexactFloat64(),
	}, nil
}

func (b *PaperBroker) GetFillActivities(ctx context.Context, since time.Time) ([]domain.Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []domain.Trade{}
	for _, t := range b.fills {
		if !t.ExecutedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (b *PaperBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []domain.Position{}
	for _, p := range b.positions {
		if !p.Quantity.IsZero() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, o domain.Order) (*domain.Order, error) {
	if (o.Quantity == nil) == (o.Notional == nil) {
		return nil, fmt.Errorf("%w: order %s needs exactly one of quantity and notional", domain.ErrInvalidParams, o.ClientOrderID)
	}
	b.mu.Lock()
	if _, ok := b.orders[o.ClientOrderID]; ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: duplicate client order id %s", domain.ErrUpstreamPermanent, o.ClientOrderID)
	}
	now := b.clock.Now()
	o.BrokerOrderID = uuid.NewString()
	o.Account = b.account
	o.Status = domain.OrderStatusNew
	o.FilledQty = decimal.Zero
	o.FilledAvgPrice = decimal.Zero
	o.CreatedAt = now
	o.UpdatedAt = now
	stored := o
	b.orders[o.ClientOrderID] = &stored
	b.emitLocked(domain.OrderEventNew, stored)
	price, hasPrice := b.prices[o.Symbol]
	b.mu.Unlock()

	if b.autoFill && o.Type == domain.OrderTypeMarket && hasPrice {
		var qty decimal.Decimal
		if o.Quantity != nil {
			qty = *o.Quantity
		} else {
			qty = o.Notional.Div(price).Round(6)
		}
		if err := b.Fill(ctx, o.ClientOrderID, qty, price); err != nil {
			return nil, err
		}
	}
	out := o
	return &out, nil
}

// Fill executes qty more of the order at price and emits a fill or
// partial_fill event carrying the cumulative view.
func (b *PaperBroker) Fill(ctx context.Context, clientOrderID string, qty, price decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[clientOrderID]
	if !ok {
		return fmt.Errorf("%w: broker order %s", domain.ErrNotFound, clientOrderID)
	}
	if !o.Status.IsOpen() {
		return fmt.Errorf("order %s is %s", clientOrderID, o.Status)
	}

	notional := o.FilledQty.Mul(o.FilledAvgPrice).Add(qty.Mul(price))
	o.FilledQty = o.FilledQty.Add(qty)
	o.FilledAvgPrice = notional.Div(o.FilledQty)
	now := b.clock.Now()
	o.UpdatedAt = now

	event := domain.OrderEventPartialFill
	o.Status = domain.OrderStatusPartiallyFilled
	if o.Quantity == nil || o.FilledQty.GreaterThanOrEqual(*o.Quantity) {
		event = domain.OrderEventFill
		o.Status = domain.OrderStatusFilled
		o.FilledAt = util.TimePointer(now)
	}

	p := b.positions[o.Symbol]
	p.Symbol = o.Symbol
	p.Account = b.account
	trade := domain.Trade{
		ExternalID: uuid.NewString(),
		OrderID:    o.BrokerOrderID,
		Account:    b.account,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: now,
	}
	p.Apply(domain.Trade{Side: o.Side, Quantity: qty, Price: price, Settled: true})
	b.positions[o.Symbol] = p
	b.fills = append(b.fills, trade)
	if o.Side == domain.OrderSideBuy {
		b.cash = b.cash.Sub(qty.Mul(price))
	} else {
		b.cash = b.cash.Add(qty.Mul(price))
	}

	b.emitLocked(event, *o)
	return nil
}

// SetStatus moves an order to a terminal or pending status and emits the
// matching event.
func (b *PaperBroker) SetStatus(clientOrderID string, event domain.OrderEventType, status domain.OrderStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[clientOrderID]
	if !ok {
		return fmt.Errorf("%w: broker order %s", domain.ErrNotFound, clientOrderID)
	}
	o.Status = status
	o.UpdatedAt = b.clock.Now()
	b.emitLocked(event, *o)
	return nil
}

func (b *PaperBroker) emitLocked(event domain.OrderEventType, o domain.Order) {
	if b.closed {
		return
	}
	select {
	case b.events <- domain.OrderEvent{Event: event, Order: o, Timestamp: b.clock.Now()}:
	default:
		b.log.Warnw("paper broker dropped order event", "event", event, "client_order_id", o.ClientOrderID)
	}
}

func (b *PaperBroker) Orders() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (b *PaperBroker) ListOpenOrders(ctx context.Context) ([]domain.Order, error) {
	out := []domain.Order{}
	for _, o := range b.Orders() {
		if o.Status.IsOpen() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *PaperBroker) GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[clientOrderID]
	if !ok {
		return nil, fmt.Errorf("%w: broker order %s", domain.ErrNotFound, clientOrderID)
	}
	out := *o
	return &out, nil
}

func (b *PaperBroker) findByBrokerID(brokerOrderID string) (*domain.Order, bool) {
	for _, o := range b.orders {
		if o.BrokerOrderID == brokerOrderID {
			return o, true
		}
	}
	return nil, false
}

func (b *PaperBroker) ReplaceOrder(ctx context.Context, brokerOrderID string, in ReplaceOrderInput) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.findByBrokerID(brokerOrderID)
	if !ok {
		return nil, fmt.Errorf("%w: broker order %s", domain.ErrNotFound, brokerOrderID)
	}
	if in.Quantity != nil {
		o.Quantity = in.Quantity
	}
	if in.LimitPrice != nil {
		o.LimitPrice = in.LimitPrice
	}
	if in.StopPrice != nil {
		o.StopPrice = in.StopPrice
	}
	if in.TimeInForce != "" {
		o.TimeInForce = in.TimeInForce
	}
	o.UpdatedAt = b.clock.Now()
	b.emitLocked(domain.OrderEventReplaced, *o)
	out := *o
	return &out, nil
}

func (b *PaperBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.findByBrokerID(brokerOrderID)
	if !ok {
		return fmt.Errorf("%w: broker order %s", domain.ErrNotFound, brokerOrderID)
	}
	if o.Status.IsOpen() {
		o.Status = domain.OrderStatusCanceled
		o.UpdatedAt = b.clock.Now()
		b.emitLocked(domain.OrderEventCanceled, *o)
	}
	return nil
}

func (b *PaperBroker) CancelAllOrders(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.Status.IsOpen() {
			o.Status = domain.OrderStatusCanceled
			o.UpdatedAt = b.clock.Now()
			b.emitLocked(domain.OrderEventCanceled, *o)
		}
	}
	return nil
}

func (b *PaperBroker) StreamOrderEvents(ctx context.Context, handler func(domain.OrderEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-b.events:
			if !ok {
				return nil
			}
			handler(e)
		}
	}
}

// PushBar updates the last price and delivers the bar to every stream
// subscribed to its symbol.
func (b *PaperBroker) PushBar(bar domain.Bar) {
	b.mu.Lock()
	b.prices[bar.Symbol] = decimal.NewFromFloat(bar.Close)
	streams := append([]*paperMarketStream{}, b.streams...)
	b.mu.Unlock()
	for _, s := range streams {
		if s.subscribed(bar.Symbol) && s.handlers.OnBar != nil {
			s.handlers.OnBar(domain.StreamBar{Bar: bar})
		}
	}
}

func (b *PaperBroker) PushQuote(q domain.StreamQuote) {
	b.mu.Lock()
	streams := append([]*paperMarketStream{}, b.streams...)
	b.mu.Unlock()
	for _, s := range streams {
		if s.subscribed(q.Symbol) && s.handlers.OnQuote != nil {
			s.handlers.OnQuote(q)
		}
	}
}

// UpstreamSymbols is the union of symbols subscribed on every stream.
func (b *PaperBroker) UpstreamSymbols() []string {
	b.mu.Lock()
	streams := append([]*paperMarketStream{}, b.streams...)
	b.mu.Unlock()
	set := map[string]bool{}
	for _, s := range streams {
		for _, symbol := range s.symbols() {
			set[symbol] = true
		}
	}
	out := make([]string, 0, len(set))
	for symbol := range set {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (b *PaperBroker) NewMarketStream(handlers MarketStreamHandlers) MarketStream {
	s := &paperMarketStream{
		handlers:   handlers,
		set:        map[string]bool{},
		terminated: make(chan error),
	}
	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	return s
}

func (b *PaperBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.streams {
		s.terminate()
	}
	return nil
}

type paperMarketStream struct {
	handlers MarketStreamHandlers

	mu         sync.Mutex
	set        map[string]bool
	terminated chan error
	done       bool
}

func (s *paperMarketStream) Connect(ctx context.Context) error {
	return nil
}

func (s *paperMarketStream) AddSymbols(ctx context.Context, symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, symbol := range symbols {
		s.set[symbol] = true
	}
	return nil
}

func (s *paperMarketStream) RemoveSymbols(ctx context.Context, symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, symbol := range symbols {
		delete(s.set, symbol)
	}
	return nil
}

func (s *paperMarketStream) Terminated() <-chan error {
	return s.terminated
}

func (s *paperMarketStream) subscribed(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set[symbol]
}

func (s *paperMarketStream) symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.set))
	for symbol := range s.set {
		out = append(out, symbol)
	}
	return out
}

func (s *paperMarketStream) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		close(s.terminated)
	}
}
