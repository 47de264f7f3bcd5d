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
)

// PositionRepository keeps at most one position per (symbol, account).
type PositionRepository interface {
	Upsert(ctx context.Context, p domain.Position) error
	Get(ctx context.Context, account, symbol string) (*domain.Position, error)
	List(ctx context.Context, account string) ([]domain.Position, error)
	Delete(ctx context.Context, account, symbol string) error
}

type positionRepositoryHandler struct {
	Db *sql.DB
}

func NewPositionRepository(db *sql.DB) PositionRepository {
	return positionRepositoryHandler{Db: db}
}

func (h positionRepositoryHandler) Upsert(ctx context.Context, p domain.Position) error {
	m := model.Position{
		Account:    p.Account,
		Symbol:     p.Symbol,
		Quantity:   p.Quantity,
		AvgPrice:   p.AvgPrice,
		ModifiedAt: time.Now().UTC(),
	}
	query := table.Position.
		INSERT(table.Position.MutableColumns).
		MODEL(m).
		ON_CONFLICT(table.Position.Symbol, table.Position.Account).
		DO_UPDATE(postgres.SET(
			table.Position.Quantity.SET(table.Position.EXCLUDED.Quantity),
			table.Position.AvgPrice.SET(table.Position.EXCLUDED.AvgPrice),
			table.Position.ModifiedAt.SET(table.Position.EXCLUDED.ModifiedAt),
		))
	if _, err := query.ExecContext(ctx, h.Db); err != nil {
		return fmt.Errorf("failed to upsert position %s/%s: %w", p.Account, p.Symbol, err)
	}
	return nil
}

func (h positionRepositoryHandler) Get(ctx context.Context, account, symbol string) (*domain.Position, error) {
	query := table.Position.
		SELECT(table.Position.AllColumns).
		WHERE(postgres.AND(
			table.Position.Account.EQ(postgres.String(account)),
			table.Position.Symbol.EQ(postgres.String(symbol)),
		))

	out := model.Position{}
	err := query.QueryContext(ctx, h.Db, &out)
	if errors.Is(err, qrm.ErrNoRows) {
		return nil, fmt.Errorf("%w: position %s/%s", domain.ErrNotFound, account, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s/%s: %w", account, symbol, err)
	}
	return positionFromModel(out), nil
}

func (h positionRepositoryHandler) List(ctx context.Context, account string) ([]domain.Position, error) {
	query := table.Position.
		SELECT(table.Position.AllColumns).
		WHERE(table.Position.Account.EQ(postgres.String(account))).
		ORDER_BY(table.Position.Symbol.ASC())

	result := []model.Position{}
	if err := query.QueryContext(ctx, h.Db, &result); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	out := make([]domain.Position, len(result))
	for i, m := range result {
		out[i] = *positionFromModel(m)
	}
	return out, nil
}

func (h positionRepositoryHandler) Delete(ctx context.Context, account, symbol string) error {
	query := table.Position.
		DELETE().
		WHERE(postgres.AND(
			table.Position.Account.EQ(postgres.String(account)),
			table.Position.Symbol.EQ(postgres.String(symbol)),
		))
	if _, err := query.ExecContext(ctx, h.Db); err != nil {
		return fmt.Errorf("failed to delete position %s/%s: %w", account, symbol, err)
	}
	return nil
}

func positionFromModel(m model.Position) *domain.Position {
	return &domain.Position{
		Symbol:   m.Symbol,
		Account:  m.Account,
		Quantity: m.Quantity,
		AvgPrice: m.AvgPrice,
	}
}
