package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"algotrader/internal/db/models/postgres/public/model"
	"algotrader/internal/db/models/postgres/public/table"
	"algotrader/internal/domain"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/google/uuid"
)

type TradeRepository interface {
	Add(ctx context.Context, t domain.Trade) (*domain.Trade, error)
	List(ctx context.Context, filter TradeListFilter) ([]domain.Trade, error)
	// MarkSettled settles every unsettled trade whose settlement date is on
	// or before asOf and returns how many changed.
	MarkSettled(ctx context.Context, asOf time.Time) (int64, error)
	Delete(ctx context.Context, tradeID uuid.UUID) error
}

type TradeListFilter struct {
	Symbol        *string
	Account       *string
	BrokerOrderID *string
	Settled       *bool
	ExecutedFrom  *time.Time
	ExecutedTo    *time.Time
}

func (f TradeListFilter) matches(t domain.Trade) bool {
	switch {
	case f.Symbol != nil && t.Symbol != *f.Symbol:
		return false
	case f.Account != nil && t.Account != *f.Account:
		return false
	case f.BrokerOrderID != nil && t.OrderID != *f.BrokerOrderID:
		return false
	case f.Settled != nil && t.Settled != *f.Settled:
		return false
	case f.ExecutedFrom != nil && t.ExecutedAt.Before(*f.ExecutedFrom):
		return false
	case f.ExecutedTo != nil && !t.ExecutedAt.Before(*f.ExecutedTo):
		return false
	}
	return true
}

type tradeRepositoryHandler struct {
	Db *sql.DB
}

func NewTradeRepository(db *sql.DB) TradeRepository {
	return tradeRepositoryHandler{Db: db}
}

func (h tradeRepositoryHandler) Add(ctx context.Context, t domain.Trade) (*domain.Trade, error) {
	m := tradeToModel(t)
	m.CreatedAt = time.Now().UTC()
	query := table.Trade.
		INSERT(table.Trade.MutableColumns).
		MODEL(m).
		RETURNING(table.Trade.AllColumns)

	out := model.Trade{}
	if err := query.QueryContext(ctx, h.Db, &out); err != nil {
		return nil, fmt.Errorf("failed to insert trade for order %s: %w", t.OrderID, err)
	}
	return tradeFromModel(out), nil
}

func (h tradeRepositoryHandler) List(ctx context.Context, filter TradeListFilter) ([]domain.Trade, error) {
	conditions := []postgres.BoolExpression{postgres.Bool(true)}
	if filter.Symbol != nil {
		conditions = append(conditions, table.Trade.Symbol.EQ(postgres.String(*filter.Symbol)))
	}
	if filter.Account != nil {
		conditions = append(conditions, table.Trade.Account.EQ(postgres.String(*filter.Account)))
	}
	if filter.BrokerOrderID != nil {
		conditions = append(conditions, table.Trade.BrokerOrderID.EQ(postgres.String(*filter.BrokerOrderID)))
	}
	if filter.Settled != nil {
		conditions = append(conditions, table.Trade.Settled.EQ(postgres.Bool(*filter.Settled)))
	}
	if filter.ExecutedFrom != nil {
		conditions = append(conditions, table.Trade.ExecutedAt.GT_EQ(postgres.TimestampzT(*filter.ExecutedFrom)))
	}
	if filter.ExecutedTo != nil {
		conditions = append(conditions, table.Trade.ExecutedAt.LT(postgres.TimestampzT(*filter.ExecutedTo)))
	}

	query := table.Trade.
		SELECT(table.Trade.AllColumns).
		WHERE(postgres.AND(conditions...)).
		ORDER_BY(table.Trade.ExecutedAt.ASC())

	result := []model.Trade{}
	if err := query.QueryContext(ctx, h.Db, &result); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	out := make([]domain.Trade, len(result))
	for i, m := range result {
		out[i] = *tradeFromModel(m)
	}
	return out, nil
}

func (h tradeRepositoryHandler) MarkSettled(ctx context.Context, asOf time.Time) (int64, error) {
	query := table.Trade.
		UPDATE(table.Trade.Settled).
		SET(postgres.Bool(true)).
		WHERE(postgres.AND(
			table.Trade.Settled.IS_FALSE(),
			table.Trade.SettlementDate.LT_EQ(postgres.DateT(asOf)),
		))

	res, err := query.ExecContext(ctx, h.Db)
	if err != nil {
		return 0, fmt.Errorf("failed to settle trades: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (h tradeRepositoryHandler) Delete(ctx context.Context, tradeID uuid.UUID) error {
	query := table.Trade.
		DELETE().
		WHERE(table.Trade.TradeID.EQ(postgres.UUID(tradeID)))
	if _, err := query.ExecContext(ctx, h.Db); err != nil {
		return fmt.Errorf("failed to delete trade %s: %w", tradeID, err)
	}
	return nil
}

func tradeToModel(t domain.Trade) model.Trade {
	return model.Trade{
		TradeID:        t.TradeID,
		ExternalID:     t.ExternalID,
		BrokerOrderID:  t.OrderID,
		Account:        t.Account,
		Symbol:         t.Symbol,
		Side:           model.TradeOrderSide(t.Side),
		Quantity:       t.Quantity,
		Price:          t.Price,
		ExecutedAt:     t.ExecutedAt,
		SettlementDate: t.SettlementDate,
		Settled:        t.Settled,
	}
}

func tradeFromModel(m model.Trade) *domain.Trade {
	return &domain.Trade{
		TradeID:        m.TradeID,
		ExternalID:     m.ExternalID,
		OrderID:        m.BrokerOrderID,
		Account:        m.Account,
		Symbol:         m.Symbol,
		Side:           domain.OrderSide(m.Side),
		Quantity:       m.Quantity,
		Price:          m.Price,
		ExecutedAt:     m.ExecutedAt.UTC(),
		SettlementDate: m.SettlementDate.UTC(),
		Settled:        m.Settled,
	}
}
