package repository

import (
	"context"
	"testing"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func paperBars(symbol string, n int) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := []domain.Bar{}
	for i := 0; i < n; i++ {
		out = append(out, domain.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Symbol:    symbol,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100 + float64(i),
			Volume:    1000,
		})
	}
	return out
}

func drainEvents(b *PaperBroker) []domain.OrderEvent {
	out := []domain.OrderEvent{}
	for {
		select {
		case e := <-b.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestPaperBroker_GetBars(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(PaperBrokerInput{Bars: map[string][]domain.Bar{"AAPL": paperBars("AAPL", 25)}})

	in := GetBarsInput{
		Symbol: "AAPL",
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Limit:  10,
	}
	sizes := []int{}
	for {
		page, err := b.GetBars(ctx, in)
		require.NoError(t, err)
		sizes = append(sizes, len(page.Bars))
		if page.NextPageToken == "" {
			break
		}
		in.PageToken = page.NextPageToken
	}
	require.Equal(t, []int{10, 10, 5}, sizes)

	t.Run("unknown symbol is an empty page", func(t *testing.T) {
		page, err := b.GetBars(ctx, GetBarsInput{Symbol: "MSFT", Start: in.Start, End: in.End})
		require.NoError(t, err)
		require.Empty(t, page.Bars)
		require.Empty(t, page.NextPageToken)
	})
}

func TestPaperBroker_Fill(t *testing.T) {
	ctx := context.Background()
	clock := util.NewFakeClock(time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC))
	b := NewPaperBroker(PaperBrokerInput{Account: "paper", Cash: 100000, Clock: clock})

	qty := decimal.NewFromInt(100)
	placed, err := b.PlaceOrder(ctx, domain.Order{
		ClientOrderID: "c1",
		Symbol:        "AAPL",
		Side:          domain.OrderSideBuy,
		Type:          domain.OrderTypeLimit,
		Quantity:      &qty,
	})
	require.NoError(t, err)
	require.NotEmpty(t, placed.BrokerOrderID)

	require.NoError(t, b.Fill(ctx, "c1", decimal.NewFromInt(50), decimal.NewFromInt(100)))
	require.NoError(t, b.Fill(ctx, "c1", decimal.NewFromInt(50), decimal.NewFromInt(102)))

	events := drainEvents(b)
	require.Len(t, events, 3)
	require.Equal(t, domain.OrderEventNew, events[0].Event)
	require.Equal(t, domain.OrderEventPartialFill, events[1].Event)
	require.Equal(t, domain.OrderEventFill, events[2].Event)
	require.True(t, events[2].Order.FilledQty.Equal(decimal.NewFromInt(100)))
	require.True(t, events[2].Order.FilledAvgPrice.Equal(decimal.NewFromInt(101)))

	account, err := b.GetAccount(ctx)
	require.NoError(t, err)
	require.InDelta(t, 100000-10100, account.Cash, 1e-9)

	positions, err := b.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.True(t, positions[0].Quantity.Equal(qty))

	fills, err := b.GetFillActivities(ctx, clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, fills, 2)

	t.Run("filled orders cannot fill again", func(t *testing.T) {
		require.Error(t, b.Fill(ctx, "c1", decimal.NewFromInt(1), decimal.NewFromInt(1)))
	})
}

func TestPaperBroker_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("auto fill market notional order", func(t *testing.T) {
		b := NewPaperBroker(PaperBrokerInput{
			Cash:     1000,
			AutoFill: true,
			Bars:     map[string][]domain.Bar{"AAPL": paperBars("AAPL", 1)},
		})
		notional := decimal.NewFromInt(500)
		_, err := b.PlaceOrder(ctx, domain.Order{
			ClientOrderID: "c1",
			Symbol:        "AAPL",
			Side:          domain.OrderSideBuy,
			Type:          domain.OrderTypeMarket,
			Notional:      &notional,
		})
		require.NoError(t, err)
		got, err := b.GetOrderByClientOrderID(ctx, "c1")
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusFilled, got.Status)
		require.True(t, got.FilledQty.Equal(decimal.NewFromInt(5)))
	})

	t.Run("quantity and notional are exclusive", func(t *testing.T) {
		b := NewPaperBroker(PaperBrokerInput{})
		_, err := b.PlaceOrder(ctx, domain.Order{ClientOrderID: "c1", Symbol: "AAPL"})
		require.ErrorIs(t, err, domain.ErrInvalidParams)
	})

	t.Run("cancel all only touches open orders", func(t *testing.T) {
		b := NewPaperBroker(PaperBrokerInput{})
		qty := decimal.NewFromInt(1)
		for _, id := range []string{"a", "b"} {
			_, err := b.PlaceOrder(ctx, domain.Order{ClientOrderID: id, Symbol: "AAPL", Type: domain.OrderTypeLimit, Quantity: &qty})
			require.NoError(t, err)
		}
		require.NoError(t, b.Fill(ctx, "a", qty, decimal.NewFromInt(10)))
		require.NoError(t, b.CancelAllOrders(ctx))

		open, err := b.ListOpenOrders(ctx)
		require.NoError(t, err)
		require.Empty(t, open)
		a, err := b.GetOrderByClientOrderID(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusFilled, a.Status)
	})
}

func TestPaperBroker_MarketStream(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(PaperBrokerInput{})

	got := []string{}
	stream := b.NewMarketStream(MarketStreamHandlers{
		OnBar: func(bar domain.StreamBar) { got = append(got, bar.Symbol) },
	})
	require.NoError(t, stream.Connect(ctx))
	require.NoError(t, stream.AddSymbols(ctx, "AAPL", "MSFT"))
	require.Equal(t, []string{"AAPL", "MSFT"}, b.UpstreamSymbols())

	b.PushBar(domain.Bar{Symbol: "AAPL", Close: 1})
	b.PushBar(domain.Bar{Symbol: "TSLA", Close: 1})
	require.NoError(t, stream.RemoveSymbols(ctx, "AAPL"))
	b.PushBar(domain.Bar{Symbol: "AAPL", Close: 1})
	b.PushBar(domain.Bar{Symbol: "MSFT", Close: 1})
	require.Equal(t, []string{"AAPL", "MSFT"}, got)

	require.NoError(t, b.Close())
	select {
	case <-stream.Terminated():
	default:
		t.Fatal("stream should be terminated after close")
	}
}
