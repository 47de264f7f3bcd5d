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

type DataStreamSessionRepository interface {
	Start(ctx context.Context, symbol string, streamType domain.StreamType, at time.Time) (*domain.DataStreamSession, error)
	End(ctx context.Context, sessionID uuid.UUID, at time.Time) error
	ListOpen(ctx context.Context) ([]domain.DataStreamSession, error)
}

type dataStreamSessionRepositoryHandler struct {
	Db *sql.DB
}

func NewDataStreamSessionRepository(db *sql.DB) DataStreamSessionRepository {
	return dataStreamSessionRepositoryHandler{Db: db}
}

func (h dataStreamSessionRepositoryHandler) Start(ctx context.Context, symbol string, streamType domain.StreamType, at time.Time) (*domain.DataStreamSession, error) {
	query := table.DataStreamSession.
		INSERT(table.DataStreamSession.MutableColumns).
		MODEL(model.DataStreamSession{
			Symbol:     symbol,
			StreamType: string(streamType),
			StartedAt:  at.UTC(),
		}).
		RETURNING(table.DataStreamSession.AllColumns)

	out := model.DataStreamSession{}
	if err := query.QueryContext(ctx, h.Db, &out); err != nil {
		return nil, fmt.Errorf("failed to start %s session for %s: %w", streamType, symbol, err)
	}
	return sessionFromModel(out), nil
}

func (h dataStreamSessionRepositoryHandler) End(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	query := table.DataStreamSession.
		UPDATE(table.DataStreamSession.EndedAt).
		SET(postgres.TimestampzT(at.UTC())).
		WHERE(postgres.AND(
			table.DataStreamSession.DataStreamSessionID.EQ(postgres.UUID(sessionID)),
			table.DataStreamSession.EndedAt.IS_NULL(),
		))
	if _, err := query.ExecContext(ctx, h.Db); err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	return nil
}

func (h dataStreamSessionRepositoryHandler) ListOpen(ctx context.Context) ([]domain.DataStreamSession, error) {
	query := table.DataStreamSession.
		SELECT(table.DataStreamSession.AllColumns).
		WHERE(table.DataStreamSession.EndedAt.IS_NULL()).
		ORDER_BY(table.DataStreamSession.StartedAt.ASC())

	result := []model.DataStreamSession{}
	if err := query.QueryContext(ctx, h.Db, &result); err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	out := make([]domain.DataStreamSession, len(result))
	for i, m := range result {
		out[i] = *sessionFromModel(m)
	}
	return out, nil
}

func sessionFromModel(m model.DataStreamSession) *domain.DataStreamSession {
	return &domain.DataStreamSession{
		SessionID:  m.DataStreamSessionID,
		Symbol:     m.Symbol,
		StreamType: domain.StreamType(m.StreamType),
		StartedAt:  m.StartedAt,
		EndedAt:    m.EndedAt,
	}
}
