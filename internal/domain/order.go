package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

type OrderClass string

const (
	OrderClassSimple  OrderClass = "simple"
	OrderClassBracket OrderClass = "bracket"
	OrderClassOCO     OrderClass = "oco"
	OrderClassOTO     OrderClass = "oto"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusAccepted        OrderStatus = "accepted"
	OrderStatusPendingNew      OrderStatus = "pending_new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusDoneForDay      OrderStatus = "done_for_day"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusReplaced        OrderStatus = "replaced"
	OrderStatusPendingCancel   OrderStatus = "pending_cancel"
	OrderStatusPendingReplace  OrderStatus = "pending_replace"
	OrderStatusStopped         OrderStatus = "stopped"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusSuspended       OrderStatus = "suspended"
	OrderStatusCalculated      OrderStatus = "calculated"
)

var OpenOrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusAccepted,
	OrderStatusPendingNew,
	OrderStatusPartiallyFilled,
	OrderStatusPendingCancel,
	OrderStatusPendingReplace,
	OrderStatusStopped,
	OrderStatusSuspended,
	OrderStatusCalculated,
}

func (s OrderStatus) IsOpen() bool {
	for _, o := range OpenOrderStatuses {
		if o == s {
			return true
		}
	}
	return false
}

// Order is owned by the order repository once persisted. Money and
// quantities are decimals.
type Order struct {
	OrderID       uuid.UUID   `json:"order_id"`
	ClientOrderID string      `json:"client_order_id"`
	BrokerOrderID string      `json:"broker_order_id"`
	Account       string      `json:"account"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Type          OrderType   `json:"type"`
	TimeInForce   TimeInForce `json:"time_in_force"`
	OrderClass    OrderClass  `json:"order_class"`

	// exactly one of Quantity and Notional is set
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Notional *decimal.Decimal `json:"notional,omitempty"`

	LimitPrice   *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice    *decimal.Decimal `json:"stop_price,omitempty"`
	TrailPrice   *decimal.Decimal `json:"trail_price,omitempty"`
	TrailPercent *decimal.Decimal `json:"trail_percent,omitempty"`

	// bracket legs
	TakeProfitLimitPrice *decimal.Decimal `json:"take_profit_limit_price,omitempty"`
	StopLossStopPrice    *decimal.Decimal `json:"stop_loss_stop_price,omitempty"`

	Status         OrderStatus     `json:"status"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	FilledAt       *time.Time      `json:"filled_at,omitempty"`
	Settled        bool            `json:"settled"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RecordedNotional is what the local trades for this order add up to.
func (o Order) RecordedNotional() decimal.Decimal {
	return o.FilledQty.Mul(o.FilledAvgPrice)
}

type OrderEventType string

const (
	OrderEventNew             OrderEventType = "new"
	OrderEventFill            OrderEventType = "fill"
	OrderEventPartialFill     OrderEventType = "partial_fill"
	OrderEventCanceled        OrderEventType = "canceled"
	OrderEventExpired         OrderEventType = "expired"
	OrderEventDoneForDay      OrderEventType = "done_for_day"
	OrderEventReplaced        OrderEventType = "replaced"
	OrderEventRejected        OrderEventType = "rejected"
	OrderEventPendingNew      OrderEventType = "pending_new"
	OrderEventPendingCancel   OrderEventType = "pending_cancel"
	OrderEventPendingReplace  OrderEventType = "pending_replace"
	OrderEventStopped         OrderEventType = "stopped"
	OrderEventSuspended       OrderEventType = "suspended"
	OrderEventCalculated      OrderEventType = "calculated"
	OrderEventReplaceRejected OrderEventType = "order_replace_rejected"
	OrderEventCancelRejected  OrderEventType = "order_cancel_rejected"
)

func ParseOrderEventType(s string) OrderEventType {
	return OrderEventType(strings.ToLower(s))
}

// OrderEvent is a broker notification about an order. Order carries the
// broker's cumulative view (filled qty, average fill price).
type OrderEvent struct {
	Event     OrderEventType `json:"event"`
	Order     Order          `json:"order"`
	Timestamp time.Time      `json:"timestamp"`
}

type Trade struct {
	TradeID    uuid.UUID `json:"trade_id"`
	ExternalID string    `json:"external_id"`
	// broker order id, a back reference only
	OrderID        string          `json:"order_id"`
	Account        string          `json:"account"`
	Symbol         string          `json:"symbol"`
	Side           OrderSide       `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	ExecutedAt     time.Time       `json:"executed_at"`
	SettlementDate time.Time       `json:"settlement_date"`
	Settled        bool            `json:"settled"`
}

// TradeKey identifies a trade for reconciliation.
type TradeKey struct {
	Symbol         string
	Side           OrderSide
	Settled        bool
	SettlementDate string
	Price          string
	Quantity       string
	ExecutedAt     string
	OrderID        string
}

func (t Trade) Key() TradeKey {
	return TradeKey{
		Symbol:         t.Symbol,
		Side:           t.Side,
		Settled:        t.Settled,
		SettlementDate: t.SettlementDate.UTC().Format("2006-01-02"),
		Price:          t.Price.StringFixed(4),
		Quantity:       t.Quantity.StringFixed(6),
		ExecutedAt:     t.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		OrderID:        t.OrderID,
	}
}

// SettlementDate is executed + daysToSettle with the time of day dropped.
func SettlementDate(executedAt time.Time, daysToSettle int) time.Time {
	t := executedAt.UTC().AddDate(0, 0, daysToSettle)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
