package l1_service

import (
	"context"
	"testing"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/repository"
	mock_repository "algotrader/internal/repository/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_ledgerServiceHandler_Initialize(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	broker := mock_repository.NewMockBrokerRepository(ctrl)
	trades := repository.NewMemoryTradeRepository()
	positions := repository.NewMemoryPositionRepository()
	at := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

	for _, tr := range []domain.Trade{
		{Account: "paper", Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100), ExecutedAt: at, Settled: true},
		{Account: "paper", Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(110), ExecutedAt: at, Settled: true},
		{Account: "paper", Symbol: "MSFT", Side: domain.OrderSideBuy, Quantity: decimal.NewFromInt(5), Price: decimal.NewFromInt(300), ExecutedAt: at, Settled: false},
	} {
		_, err := trades.Add(ctx, tr)
		require.NoError(t, err)
	}
	require.NoError(t, positions.Upsert(ctx, domain.Position{Account: "paper", Symbol: "GONE", Quantity: decimal.NewFromInt(1)}))
	broker.EXPECT().GetAccount(ctx).Return(&domain.Account{AccountID: "paper", Cash: 5000}, nil)

	handler := NewLedgerService(LedgerServiceInput{
		Broker:             broker,
		TradeRepository:    trades,
		PositionRepository: positions,
		Account:            "paper",
	})
	portfolio, err := handler.Initialize(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL"}, portfolio.HeldSymbols())
	require.True(t, portfolio.Positions["AAPL"].AvgPrice.Equal(decimal.NewFromInt(105)))
	require.True(t, handler.Position("AAPL").Equal(decimal.NewFromInt(20)))
	require.True(t, handler.Position("MSFT").IsZero())

	stored, err := positions.List(ctx, "paper")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "AAPL", stored[0].Symbol)

	equity := handler.Equity(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(120)})
	require.True(t, equity.Equal(decimal.NewFromInt(5000+20*120)))
}
