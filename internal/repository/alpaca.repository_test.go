package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"algotrader/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func initializeHandler(t *testing.T) BrokerRepository {
	key, secret := os.Getenv("APCA_API_KEY_ID"), os.Getenv("APCA_API_SECRET_KEY")
	if key == "" || secret == "" {
		t.Skip("APCA_API_KEY_ID and APCA_API_SECRET_KEY are not set")
	}
	return NewAlpacaRepository(AlpacaRepositoryInput{
		APIKey:             key,
		APISecret:          secret,
		BaseURL:            "https://paper-api.alpaca.markets",
		DataURL:            "https://data.alpaca.markets",
		Feed:               "iex",
		Account:            "paper",
		RetryLimit:         3,
		MinRequestInterval: 300 * time.Millisecond,
	})
}

func Test_alpacaRepositoryHandler_GetBars(t *testing.T) {
	handler := initializeHandler(t)
	ctx := context.Background()

	t.Run("pages until exhausted", func(t *testing.T) {
		in := GetBarsInput{
			Symbol: "AAPL",
			Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Limit:  10,
		}
		total := 0
		for {
			page, err := handler.GetBars(ctx, in)
			require.NoError(t, err)
			total += len(page.Bars)
			if page.NextPageToken == "" {
				break
			}
			in.PageToken = page.NextPageToken
		}
		require.Greater(t, total, 30)
	})
}

func Test_alpacaRepositoryHandler_PlaceOrder(t *testing.T) {
	handler := initializeHandler(t)
	ctx := context.Background()
	defer handler.CancelAllOrders(ctx)

	limit := decimal.NewFromInt(1)
	qty := decimal.NewFromInt(1)
	order, err := handler.PlaceOrder(ctx, domain.Order{
		ClientOrderID: uuid.NewString(),
		Symbol:        "AAPL",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		TimeInForce:   domain.TimeInForceDay,
		OrderClass:    domain.OrderClassSimple,
		Quantity:      &qty,
		LimitPrice:    &limit,
	})
	require.NoError(t, err)
	require.NotEmpty(t, order.BrokerOrderID)

	got, err := handler.GetOrderByClientOrderID(ctx, order.ClientOrderID)
	require.NoError(t, err)
	require.Equal(t, order.BrokerOrderID, got.BrokerOrderID)
}
