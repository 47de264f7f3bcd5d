package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"algotrader/internal/db/models/postgres/public/model"
	"algotrader/internal/db/models/postgres/public/table"
	"algotrader/internal/domain"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/go-jet/jet/v2/qrm"
	"github.com/google/uuid"
)

type OrderRepository interface {
	Add(ctx context.Context, o domain.Order) (*domain.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetByClientOrderID(ctx context.Context, clientOrderID string) (*domain.Order, error)
	GetByBrokerOrderID(ctx context.Context, brokerOrderID string) (*domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	// Update writes the broker facing fields: broker id, status, fills and
	// settlement.
	Update(ctx context.Context, o domain.Order) (*domain.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type OrderListFilter struct {
	Symbol   *string
	Account  *string
	Statuses []domain.OrderStatus
	Settled  *bool
}

func (f OrderListFilter) matches(o domain.Order) bool {
	if f.Symbol != nil && o.Symbol != *f.Symbol {
		return false
	}
	if f.Account != nil && o.Account != *f.Account {
		return false
	}
	if f.Settled != nil && o.Settled != *f.Settled {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

type orderRepositoryHandler struct {
	Db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return orderRepositoryHandler{Db: db}
}

func (h orderRepositoryHandler) Add(ctx context.Context, o domain.Order) (*domain.Order, error) {
	m := orderToModel(o)
	m.CreatedAt = time.Now().UTC()
	m.ModifiedAt = m.CreatedAt
	query := table.TradeOrder.
		INSERT(table.TradeOrder.MutableColumns).
		MODEL(m).
		RETURNING(table.TradeOrder.AllColumns)

	out := model.TradeOrder{}
	if err := query.QueryContext(ctx, h.Db, &out); err != nil {
		return nil, fmt.Errorf("failed to insert order %s: %w", o.ClientOrderID, err)
	}
	return orderFromModel(out), nil
}

func (h orderRepositoryHandler) get(ctx context.Context, where postgres.BoolExpression) (*domain.Order, error) {
	query := table.TradeOrder.
		SELECT(table.TradeOrder.AllColumns).
		WHERE(where)

	out := model.TradeOrder{}
	err := query.QueryContext(ctx, h.Db, &out)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, fmt.Errorf("%w: order", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return orderFromModel(out), nil
}

func (h orderRepositoryHandler) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return h.get(ctx, table.TradeOrder.TradeOrderID.EQ(postgres.UUID(orderID)))
}

func (h orderRepositoryHandler) GetByClientOrderID(ctx context.Context, clientOrderID string) (*domain.Order, error) {
	return h.get(ctx, table.TradeOrder.ClientOrderID.EQ(postgres.String(clientOrderID)))
}

func (h orderRepositoryHandler) GetByBrokerOrderID(ctx context.Context, brokerOrderID string) (*domain.Order, error) {
	return h.get(ctx, table.TradeOrder.BrokerOrderID.EQ(postgres.String(brokerOrderID)))
}

func (h orderRepositoryHandler) List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error) {
	conditions := []postgres.BoolExpression{postgres.Bool(true)}
	if filter.Symbol != nil {
		conditions = append(conditions, table.TradeOrder.Symbol.EQ(postgres.String(*filter.Symbol)))
	}
	if filter.Account != nil {
		conditions = append(conditions, table.TradeOrder.Account.EQ(postgres.String(*filter.Account)))
	}
	if filter.Settled != nil {
		conditions = append(conditions, table.TradeOrder.Settled.EQ(postgres.Bool(*filter.Settled)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]postgres.Expression, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = postgres.String(string(s))
		}
		conditions = append(conditions, table.TradeOrder.Status.IN(statuses...))
	}

	query := table.TradeOrder.
		SELECT(table.TradeOrder.AllColumns).
		WHERE(postgres.AND(conditions...)).
		ORDER_BY(table.TradeOrder.CreatedAt.ASC())

	result := []model.TradeOrder{}
	if err := query.QueryContext(ctx, h.Db, &result); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	out := make([]domain.Order, len(result))
	for i, m := range result {
		out[i] = *orderFromModel(m)
	}
	return out, nil
}

func (h orderRepositoryHandler) Update(ctx context.Context, o domain.Order) (*domain.Order, error) {
	m := orderToModel(o)
	m.ModifiedAt = time.Now().UTC()
	query := table.TradeOrder.
		UPDATE(postgres.ColumnList{
			table.TradeOrder.BrokerOrderID,
			table.TradeOrder.Status,
			table.TradeOrder.FilledQty,
			table.TradeOrder.FilledAvgPrice,
			table.TradeOrder.FilledAt,
			table.TradeOrder.Settled,
			table.TradeOrder.ModifiedAt,
		}).
		MODEL(m).
		WHERE(table.TradeOrder.TradeOrderID.EQ(postgres.UUID(o.OrderID))).
		RETURNING(table.TradeOrder.AllColumns)

	out := model.TradeOrder{}
	err := query.QueryContext(ctx, h.Db, &out)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, o.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", o.OrderID, err)
	}
	return orderFromModel(out), nil
}

func (h orderRepositoryHandler) Delete(ctx context.Context, orderID uuid.UUID) error {
	query := table.TradeOrder.
		DELETE().
		WHERE(table.TradeOrder.TradeOrderID.EQ(postgres.UUID(orderID)))
	if _, err := query.ExecContext(ctx, h.Db); err != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderID, err)
	}
	return nil
}

func orderToModel(o domain.Order) model.TradeOrder {
	var brokerOrderID *string
	if o.BrokerOrderID != "" {
		id := o.BrokerOrderID
		brokerOrderID = &id
	}
	return model.TradeOrder{
		TradeOrderID:         o.OrderID,
		ClientOrderID:        o.ClientOrderID,
		BrokerOrderID:        brokerOrderID,
		Account:              o.Account,
		Symbol:               o.Symbol,
		Side:                 model.TradeOrderSide(o.Side),
		OrderType:            string(o.Type),
		TimeInForce:          string(o.TimeInForce),
		OrderClass:           string(o.OrderClass),
		Quantity:             o.Quantity,
		Notional:             o.Notional,
		LimitPrice:           o.LimitPrice,
		StopPrice:            o.StopPrice,
		TrailPrice:           o.TrailPrice,
		TrailPercent:         o.TrailPercent,
		TakeProfitLimitPrice: o.TakeProfitLimitPrice,
		StopLossStopPrice:    o.StopLossStopPrice,
		Status:               string(o.Status),
		FilledQty:            o.FilledQty,
		FilledAvgPrice:       o.FilledAvgPrice,
		FilledAt:             o.FilledAt,
		Settled:              o.Settled,
		CreatedAt:            o.CreatedAt,
		ModifiedAt:           o.UpdatedAt,
	}
}

func orderFromModel(m model.TradeOrder) *domain.Order {
	o := &domain.Order{
		OrderID:              m.TradeOrderID,
		ClientOrderID:        m.ClientOrderID,
		Account:              m.Account,
		Symbol:               m.Symbol,
		Side:                 domain.OrderSide(m.Side),
		Type:                 domain.OrderType(m.OrderType),
		TimeInForce:          domain.TimeInForce(m.TimeInForce),
		OrderClass:           domain.OrderClass(m.OrderClass),
		Quantity:             m.Quantity,
		Notional:             m.Notional,
		LimitPrice:           m.LimitPrice,
		StopPrice:            m.StopPrice,
		TrailPrice:           m.TrailPrice,
		TrailPercent:         m.TrailPercent,
		TakeProfitLimitPrice: m.TakeProfitLimitPrice,
		StopLossStopPrice:    m.StopLossStopPrice,
		Status:               domain.OrderStatus(m.Status),
		FilledQty:            m.FilledQty,
		FilledAvgPrice:       m.FilledAvgPrice,
		FilledAt:             m.FilledAt,
		Settled:              m.Settled,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.ModifiedAt,
	}
	if m.BrokerOrderID != nil {
		o.BrokerOrderID = *m.BrokerOrderID
	}
	return o
}
