package l1_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEventsTopic carries every order event after it has been applied to
// the local order and trade records.
const OrderEventsTopic = "order_events"

type OrderExecutionService interface {
	PlaceOrder(ctx context.Context, o domain.Order) (*domain.Order, error)
	// HandleOrderEvent applies a broker event to the local order. Fills
	// insert a trade for the part not yet recorded; the returned trade is
	// nil otherwise.
	HandleOrderEvent(ctx context.Context, e domain.OrderEvent) (*domain.Trade, error)
	// Run consumes the broker order stream until ctx is done.
	Run(ctx context.Context) error
	UpdateSettledTrades(ctx context.Context) (int64, error)
	UpdateSettledOrders(ctx context.Context) (int, error)
}

type OrderExecutionServiceInput struct {
	Broker          repository.BrokerRepository
	OrderRepository repository.OrderRepository
	TradeRepository repository.TradeRepository
	Events          *pubsub.Bus[domain.OrderEvent]
	Clock           util.Clock
	Account         string
	DaysToSettle    int
}

type orderExecutionServiceHandler struct {
	Broker          repository.BrokerRepository
	OrderRepository repository.OrderRepository
	TradeRepository repository.TradeRepository
	Events          *pubsub.Bus[domain.OrderEvent]
	Clock           util.Clock
	Account         string
	DaysToSettle    int
}

func NewOrderExecutionService(in OrderExecutionServiceInput) OrderExecutionService {
	clock := in.Clock
	if clock == nil {
		clock = util.NewClock()
	}
	return &orderExecutionServiceHandler{
		Broker:          in.Broker,
		OrderRepository: in.OrderRepository,
		TradeRepository: in.TradeRepository,
		Events:          in.Events,
		Clock:           clock,
		Account:         in.Account,
		DaysToSettle:    in.DaysToSettle,
	}
}

func (h *orderExecutionServiceHandler) PlaceOrder(ctx context.Context, o domain.Order) (*domain.Order, error) {
	if (o.Quantity == nil) == (o.Notional == nil) {
		return nil, fmt.Errorf("%w: order for %s needs exactly one of quantity and notional", domain.ErrInvalidParams, o.Symbol)
	}
	if o.ClientOrderID == "" {
		o.ClientOrderID = uuid.NewString()
	}
	if o.Account == "" {
		o.Account = h.Account
	}
	o.Status = domain.OrderStatusPendingNew
	o.FilledQty = decimal.Zero
	o.FilledAvgPrice = decimal.Zero

	local, err := h.OrderRepository.Add(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to record order %s: %w", o.ClientOrderID, err)
	}

	placed, err := h.Broker.PlaceOrder(ctx, *local)
	if err != nil {
		local.Status = domain.OrderStatusRejected
		if _, updateErr := h.OrderRepository.Update(ctx, *local); updateErr != nil {
			logger.FromContext(ctx).Errorw("failed to mark order rejected", "client_order_id", local.ClientOrderID, "error", updateErr)
		}
		return nil, fmt.Errorf("failed to place order %s: %w", local.ClientOrderID, err)
	}

	// the broker may already have streamed events for this order
	current, err := h.OrderRepository.Get(ctx, local.OrderID)
	if err != nil {
		return nil, err
	}
	current.BrokerOrderID = placed.BrokerOrderID
	if current.Status == domain.OrderStatusPendingNew && placed.Status != "" {
		current.Status = placed.Status
	}
	return h.OrderRepository.Update(ctx, *current)
}

func statusForEvent(e domain.OrderEvent) domain.OrderStatus {
	if e.Order.Status != "" {
		return e.Order.Status
	}
	switch e.Event {
	case domain.OrderEventFill:
		return domain.OrderStatusFilled
	case domain.OrderEventPartialFill:
		return domain.OrderStatusPartiallyFilled
	case domain.OrderEventReplaceRejected, domain.OrderEventCancelRejected:
		return ""
	}
	return domain.OrderStatus(e.Event)
}

func (h *orderExecutionServiceHandler) findLocal(ctx context.Context, o domain.Order) (*domain.Order, error) {
	local, err := h.OrderRepository.GetByClientOrderID(ctx, o.ClientOrderID)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || o.BrokerOrderID == "" {
		return nil, err
	}
	return h.OrderRepository.GetByBrokerOrderID(ctx, o.BrokerOrderID)
}

func (h *orderExecutionServiceHandler) HandleOrderEvent(ctx context.Context, e domain.OrderEvent) (*domain.Trade, error) {
	log := logger.FromContext(ctx).With("event", e.Event, "client_order_id", e.Order.ClientOrderID, "symbol", e.Order.Symbol)

	local, err := h.findLocal(ctx, e.Order)
	if err != nil {
		return nil, fmt.Errorf("failed to find local order for %s event: %w", e.Event, err)
	}
	if local.BrokerOrderID == "" {
		local.BrokerOrderID = e.Order.BrokerOrderID
	}
	if status := statusForEvent(e); status != "" && local.Status != domain.OrderStatusFilled {
		local.Status = status
	}

	var trade *domain.Trade
	if e.Event == domain.OrderEventFill || e.Event == domain.OrderEventPartialFill {
		trade, err = h.recordFill(ctx, local, e)
		if err != nil {
			return nil, err
		}
	}
	if trade != nil {
		local.FilledQty = e.Order.FilledQty
		local.FilledAvgPrice = e.Order.FilledAvgPrice
		local.FilledAt = e.Order.FilledAt
		if local.FilledAt == nil && e.Event == domain.OrderEventFill {
			local.FilledAt = util.TimePointer(h.eventTime(e))
		}
	}

	if _, err := h.OrderRepository.Update(ctx, *local); err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", local.ClientOrderID, err)
	}
	log.Infow("applied order event", "status", local.Status, "filled_qty", local.FilledQty.String())

	if h.Events != nil {
		e.Order.Symbol = local.Symbol
		e.Order.Side = local.Side
		if err := h.Events.Publish(OrderEventsTopic, e); err != nil {
			log.Warnw("failed to publish order event", "error", err)
		}
	}
	return trade, nil
}

func (h *orderExecutionServiceHandler) eventTime(e domain.OrderEvent) time.Time {
	if !e.Timestamp.IsZero() {
		return e.Timestamp
	}
	return h.Clock.Now()
}

// recordFill inserts the trade for the difference between the broker's
// cumulative fill and what is already recorded locally.
func (h *orderExecutionServiceHandler) recordFill(ctx context.Context, local *domain.Order, e domain.OrderEvent) (*domain.Trade, error) {
	delta := e.Order.FilledQty.Sub(local.FilledQty)
	if delta.LessThanOrEqual(decimal.Zero) {
		logger.FromContext(ctx).Infow("fill already recorded", "client_order_id", local.ClientOrderID, "filled_qty", e.Order.FilledQty.String())
		return nil, nil
	}
	price := e.Order.FilledQty.Mul(e.Order.FilledAvgPrice).Sub(local.RecordedNotional()).Div(delta)

	executedAt := h.eventTime(e)
	trade, err := h.TradeRepository.Add(ctx, domain.Trade{
		ExternalID:     fmt.Sprintf("%s:%s", local.BrokerOrderID, e.Order.FilledQty.String()),
		OrderID:        local.BrokerOrderID,
		Account:        local.Account,
		Symbol:         local.Symbol,
		Side:           local.Side,
		Quantity:       delta,
		Price:          price,
		ExecutedAt:     executedAt,
		SettlementDate: domain.SettlementDate(executedAt, h.DaysToSettle),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record trade for %s: %w", local.ClientOrderID, err)
	}
	return trade, nil
}

func (h *orderExecutionServiceHandler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	return h.Broker.StreamOrderEvents(ctx, func(e domain.OrderEvent) {
		if _, err := h.HandleOrderEvent(ctx, e); err != nil {
			log.Errorw("failed to handle order event", "event", e.Event, "client_order_id", e.Order.ClientOrderID, "error", err)
		}
	})
}

func (h *orderExecutionServiceHandler) UpdateSettledTrades(ctx context.Context) (int64, error) {
	n, err := h.TradeRepository.MarkSettled(ctx, h.Clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to settle trades: %w", err)
	}
	logger.FromContext(ctx).Infow("settled trades", "count", n)
	return n, nil
}

// UpdateSettledOrders marks filled orders settled once every trade they
// produced has settled.
func (h *orderExecutionServiceHandler) UpdateSettledOrders(ctx context.Context) (int, error) {
	settled := false
	orders, err := h.OrderRepository.List(ctx, repository.OrderListFilter{
		Statuses: []domain.OrderStatus{domain.OrderStatusFilled},
		Settled:  &settled,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled orders: %w", err)
	}

	count := 0
	for _, o := range orders {
		brokerOrderID := o.BrokerOrderID
		trades, err := h.TradeRepository.List(ctx, repository.TradeListFilter{BrokerOrderID: &brokerOrderID})
		if err != nil {
			return count, fmt.Errorf("failed to list trades for %s: %w", o.ClientOrderID, err)
		}
		if len(trades) == 0 {
			continue
		}
		done := true
		for _, t := range trades {
			if !t.Settled {
				done = false
				break
			}
		}
		if !done {
			continue
		}
		o.Settled = true
		if _, err := h.OrderRepository.Update(ctx, o); err != nil {
			return count, fmt.Errorf("failed to settle order %s: %w", o.ClientOrderID, err)
		}
		count++
	}
	logger.FromContext(ctx).Infow("settled orders", "count", count)
	return count, nil
}
