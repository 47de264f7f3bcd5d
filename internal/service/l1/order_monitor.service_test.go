package l1_service

import (
	"context"
	"testing"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_orderMonitorServiceHandler_Poll(t *testing.T) {
	ctx := context.Background()
	clock := util.NewFakeClock(time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC))
	broker := repository.NewPaperBroker(repository.PaperBrokerInput{Account: "paper", Cash: 10000, Clock: clock})
	orders := repository.NewMemoryOrderRepository()
	trades := repository.NewMemoryTradeRepository()
	execution := NewOrderExecutionService(OrderExecutionServiceInput{
		Broker:          broker,
		OrderRepository: orders,
		TradeRepository: trades,
		Clock:           clock,
		Account:         "paper",
		DaysToSettle:    1,
	})
	monitor := NewOrderMonitorService(OrderMonitorServiceInput{
		Broker:                broker,
		OrderRepository:       orders,
		OrderExecutionService: execution,
		Clock:                 clock,
	})

	qty := decimal.NewFromInt(10)
	placed, err := execution.PlaceOrder(ctx, domain.Order{
		ClientOrderID: "c1",
		Symbol:        "AAPL",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		TimeInForce:   domain.TimeInForceDay,
		Quantity:      &qty,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusNew, placed.Status)

	t.Run("nothing to replay", func(t *testing.T) {
		n, err := monitor.Poll(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("missed fill is replayed", func(t *testing.T) {
		// the order stream is not running, so the fill is only visible by polling
		require.NoError(t, broker.Fill(ctx, "c1", qty, decimal.NewFromInt(25)))

		n, err := monitor.Poll(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		local, err := orders.GetByClientOrderID(ctx, "c1")
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusFilled, local.Status)

		got, err := trades.List(ctx, repository.TradeListFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.True(t, got[0].Price.Equal(decimal.NewFromInt(25)))

		n, err = monitor.Poll(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("bad schedule", func(t *testing.T) {
		err := monitor.Start(ctx, "not a schedule")
		require.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("start and stop", func(t *testing.T) {
		require.NoError(t, monitor.Start(ctx, "@every 1h"))
		monitor.Stop()
		monitor.Stop()
	})
}
