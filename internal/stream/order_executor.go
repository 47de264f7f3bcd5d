package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/pubsub"
	l1_service "algotrader/internal/service/l1"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderExecutor places broker orders for order requests while the market
// is open and the symbol's hold status allows the side.
type OrderExecutor interface {
	Start(ctx context.Context, symbols []string) error
	Stop()
	SetActive(active bool)
	Active() bool
	// Execute returns a nil order when the request was gated or there was
	// nothing to trade.
	Execute(ctx context.Context, p domain.SignalOrderPayload) (*domain.Order, error)
}

type OrderExecutorInput struct {
	Orders                *pubsub.Bus[domain.SignalOrderPayload]
	OrderExecutionService l1_service.OrderExecutionService
	SymbolHoldService     l1_service.SymbolHoldService
	LedgerService         l1_service.LedgerService
	Account               string
	Log                   *zap.SugaredLogger
}

type orderExecutorHandler struct {
	Orders                *pubsub.Bus[domain.SignalOrderPayload]
	OrderExecutionService l1_service.OrderExecutionService
	SymbolHoldService     l1_service.SymbolHoldService
	LedgerService         l1_service.LedgerService
	Account               string
	Log                   *zap.SugaredLogger

	active atomic.Bool

	mu   sync.Mutex
	subs []*pubsub.Subscriber[domain.SignalOrderPayload]
}

func NewOrderExecutor(in OrderExecutorInput) OrderExecutor {
	if in.Log == nil {
		in.Log = zap.NewNop().Sugar()
	}
	return &orderExecutorHandler{
		Orders:                in.Orders,
		OrderExecutionService: in.OrderExecutionService,
		SymbolHoldService:     in.SymbolHoldService,
		LedgerService:         in.LedgerService,
		Account:               in.Account,
		Log:                   in.Log.With("component", "order_executor"),
	}
}

func (h *orderExecutorHandler) Start(ctx context.Context, symbols []string) error {
	ctx = logger.NewContext(ctx, h.Log)
	subs := []*pubsub.Subscriber[domain.SignalOrderPayload]{}
	for _, symbol := range symbols {
		sub, err := h.Orders.Subscribe(OrderTopic(symbol), 1, func(p domain.SignalOrderPayload) {
			if _, err := h.Execute(ctx, p); err != nil {
				h.Log.Errorw("failed to execute order request", "symbol", p.Symbol, "side", p.Side, "error", err)
			}
		})
		if err != nil {
			for _, s := range subs {
				h.Orders.Unsubscribe(s)
			}
			return fmt.Errorf("failed to subscribe to orders for %s: %w", symbol, err)
		}
		subs = append(subs, sub)
	}
	h.mu.Lock()
	h.subs = append(h.subs, subs...)
	h.mu.Unlock()
	return nil
}

func (h *orderExecutorHandler) Stop() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()
	for _, sub := range subs {
		h.Orders.Unsubscribe(sub)
	}
}

func (h *orderExecutorHandler) SetActive(active bool) {
	h.active.Store(active)
}

func (h *orderExecutorHandler) Active() bool {
	return h.active.Load()
}

func (h *orderExecutorHandler) Execute(ctx context.Context, p domain.SignalOrderPayload) (*domain.Order, error) {
	ctx, log := logger.With(ctx, "symbol", p.Symbol, "side", p.Side)
	if !h.Active() {
		log.Debugw("executor inactive, order request ignored")
		return nil, nil
	}

	price := decimal.NewFromFloat(p.PriceData.Close)
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: no price for %s", domain.ErrInvalidParams, p.Symbol)
	}
	position := h.LedgerService.Position(p.Symbol)

	var qty decimal.Decimal
	switch p.Side {
	case domain.OrderSideBuy:
		if !h.SymbolHoldService.CanBuy(p.Symbol) {
			log.Debugw("buy gated by hold status", "status", h.SymbolHoldService.Status(p.Symbol))
			return nil, nil
		}
		equity := h.LedgerService.Equity(map[string]decimal.Decimal{p.Symbol: price})
		target := equity.Mul(decimal.NewFromFloat(p.Weight))
		qty = target.Sub(position.Mul(price)).Div(price).Floor()
	case domain.OrderSideSell:
		if !h.SymbolHoldService.CanSell(p.Symbol) {
			log.Debugw("sell gated by hold status", "status", h.SymbolHoldService.Status(p.Symbol))
			return nil, nil
		}
		qty = position
	default:
		return nil, fmt.Errorf("%w: order side %q", domain.ErrInvalidParams, p.Side)
	}
	if !qty.IsPositive() {
		log.Debugw("nothing to trade", "position", position.String())
		return nil, nil
	}

	order, err := h.OrderExecutionService.PlaceOrder(ctx, domain.Order{
		ClientOrderID: uuid.NewString(),
		Account:       h.Account,
		Symbol:        p.Symbol,
		Side:          p.Side,
		Type:          domain.OrderTypeMarket,
		TimeInForce:   domain.TimeInForceDay,
		OrderClass:    domain.OrderClassSimple,
		Quantity:      &qty,
	})
	if err != nil {
		return nil, err
	}
	log.Infow("placed order", "client_order_id", order.ClientOrderID, "quantity", qty.String(), "weight", p.Weight)
	return order, nil
}
