package l1_service

import (
	"context"
	"strings"
	"testing"
	"time"

	"algotrader/internal/domain"
	mock_repository "algotrader/internal/repository/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testSessionReport() SessionReport {
	day := time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)
	return SessionReport{
		Date:    day,
		Account: domain.Account{AccountID: "paper", Cash: 1000, BuyingPower: 1000, Equity: 2500},
		Positions: []domain.Position{
			{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), AvgPrice: decimal.NewFromInt(150)},
		},
		Trades: []domain.Trade{
			{Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(150), ExecutedAt: day.Add(-5 * time.Hour), SettlementDate: day.AddDate(0, 0, 1)},
		},
		Holds: HoldRoster{"AAPL": domain.HoldSellOnly},
	}
}

func Test_reportServiceHandler_GenerateSessionReport(t *testing.T) {
	handler := NewReportService(nil)

	t.Run("clean session", func(t *testing.T) {
		subject, body, err := handler.GenerateSessionReport(testSessionReport())
		require.NoError(t, err)
		require.Equal(t, "Session report 2024-03-04: 1 trades", subject)
		require.Contains(t, body, "<td>AAPL</td><td>buy</td><td>10</td><td>150.00</td>")
		require.Contains(t, body, "AAPL: SELL_ONLY")
		require.NotContains(t, body, "Position drift")
	})

	t.Run("drift is flagged", func(t *testing.T) {
		in := testSessionReport()
		in.Reconcile = &ReconcileResult{Inserted: 1, ResidualDrift: 1}
		in.Drift = []PositionDrift{{Symbol: "MSFT", Local: decimal.Zero, Broker: decimal.NewFromInt(2)}}
		subject, body, err := handler.GenerateSessionReport(in)
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(subject, "(drift)"))
		require.Contains(t, body, "MSFT: local 0, broker 2")
	})

	t.Run("empty session", func(t *testing.T) {
		_, body, err := handler.GenerateSessionReport(SessionReport{Date: time.Now()})
		require.NoError(t, err)
		require.Contains(t, body, "No trades.")
		require.Contains(t, body, "No positions.")
	})
}

func Test_reportServiceHandler_SendSessionReport(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	emailRepository := mock_repository.NewMockEmailRepository(ctrl)
	handler := NewReportService(emailRepository)

	emailRepository.EXPECT().
		SendEmail(ctx, "ops@example.com", "Session report 2024-03-04: 1 trades", gomock.Any()).
		Return(nil)
	require.NoError(t, handler.SendSessionReport(ctx, "ops@example.com", testSessionReport()))
}
