package stream

import (
	"context"
	"testing"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"
	"algotrader/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubHold struct {
	l1_service.SymbolHoldService
	statuses map[string]domain.SymbolHoldStatus
}

func (s stubHold) Status(symbol string) domain.SymbolHoldStatus {
	if status, ok := s.statuses[symbol]; ok {
		return status
	}
	return domain.HoldStart
}

func (s stubHold) CanBuy(symbol string) bool {
	return s.Status(symbol).CanBuy()
}

func (s stubHold) CanSell(symbol string) bool {
	return s.Status(symbol).CanSell()
}

type testExecutor struct {
	broker   *repository.PaperBroker
	orders   *pubsub.Bus[domain.SignalOrderPayload]
	hold     stubHold
	executor OrderExecutor
}

// newTestExecutor starts with 10000 cash and a settled 10 share AAPL
// position bought at 100.
func newTestExecutor(t *testing.T) testExecutor {
	ctx := context.Background()
	broker := repository.NewPaperBroker(repository.PaperBrokerInput{Account: "paper", Cash: 10000})
	trades := repository.NewMemoryTradeRepository()
	_, err := trades.Add(ctx, domain.Trade{
		Account:    "paper",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Quantity:   decimal.NewFromInt(10),
		Price:      decimal.NewFromInt(100),
		ExecutedAt: testStart,
		Settled:    true,
	})
	require.NoError(t, err)

	ledger := l1_service.NewLedgerService(l1_service.LedgerServiceInput{
		Broker:             broker,
		TradeRepository:    trades,
		PositionRepository: repository.NewMemoryPositionRepository(),
		Account:            "paper",
	})
	_, err = ledger.Initialize(ctx)
	require.NoError(t, err)

	execution := l1_service.NewOrderExecutionService(l1_service.OrderExecutionServiceInput{
		Broker:          broker,
		OrderRepository: repository.NewMemoryOrderRepository(),
		TradeRepository: trades,
		Clock:           util.NewFakeClock(testStart),
		Account:         "paper",
		DaysToSettle:    1,
	})

	orders := pubsub.NewBus[domain.SignalOrderPayload](nil)
	t.Cleanup(func() { require.NoError(t, orders.Shutdown(ctx)) })
	hold := stubHold{statuses: map[string]domain.SymbolHoldStatus{}}
	return testExecutor{
		broker: broker,
		orders: orders,
		hold:   hold,
		executor: NewOrderExecutor(OrderExecutorInput{
			Orders:                orders,
			OrderExecutionService: execution,
			SymbolHoldService:     hold,
			LedgerService:         ledger,
			Account:               "paper",
		}),
	}
}

func orderRequest(symbol string, side domain.OrderSide, weight, price float64) domain.SignalOrderPayload {
	return domain.SignalOrderPayload{
		Symbol: symbol,
		Side:   side,
		Weight: weight,
		PriceData: domain.EnrichedBar{
			Bar: domain.Bar{Symbol: symbol, Timestamp: testStart, Close: price},
		},
	}
}

func Test_orderExecutorHandler_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive executor places nothing", func(t *testing.T) {
		e := newTestExecutor(t)
		order, err := e.executor.Execute(ctx, orderRequest("AAPL", domain.OrderSideBuy, 0.5, 100))
		require.NoError(t, err)
		require.Nil(t, order)
		require.Empty(t, e.broker.Orders())
	})

	t.Run("buy sizes towards the target weight", func(t *testing.T) {
		e := newTestExecutor(t)
		e.executor.SetActive(true)
		order, err := e.executor.Execute(ctx, orderRequest("AAPL", domain.OrderSideBuy, 0.5, 100))
		require.NoError(t, err)
		require.NotNil(t, order)
		// equity 11000, target 5500, held 1000
		require.True(t, decimal.NewFromInt(45).Equal(*order.Quantity), order.Quantity.String())
		require.Equal(t, domain.OrderTypeMarket, order.Type)
		require.Equal(t, domain.TimeInForceDay, order.TimeInForce)
		require.NotEmpty(t, order.ClientOrderID)
		require.Len(t, e.broker.Orders(), 1)
	})

	t.Run("sell closes the settled position", func(t *testing.T) {
		e := newTestExecutor(t)
		e.executor.SetActive(true)
		order, err := e.executor.Execute(ctx, orderRequest("AAPL", domain.OrderSideSell, 0, 120))
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(10).Equal(*order.Quantity))
		require.Equal(t, domain.OrderSideSell, order.Side)
	})

	t.Run("hold status gates each side", func(t *testing.T) {
		e := newTestExecutor(t)
		e.executor.SetActive(true)
		e.hold.statuses["AAPL"] = domain.HoldSellOnly
		order, err := e.executor.Execute(ctx, orderRequest("AAPL", domain.OrderSideBuy, 0.5, 100))
		require.NoError(t, err)
		require.Nil(t, order)

		e.hold.statuses["AAPL"] = domain.HoldBuyOnly
		order, err = e.executor.Execute(ctx, orderRequest("AAPL", domain.OrderSideSell, 0, 100))
		require.NoError(t, err)
		require.Nil(t, order)
		require.Empty(t, e.broker.Orders())
	})

	t.Run("nothing to trade", func(t *testing.T) {
		e := newTestExecutor(t)
		e.executor.SetActive(true)
		order, err := e.executor.Execute(ctx, orderRequest("AAPL", domain.OrderSideBuy, 0.05, 100))
		require.NoError(t, err)
		require.Nil(t, order)
		order, err = e.executor.Execute(ctx, orderRequest("MSFT", domain.OrderSideSell, 0, 50))
		require.NoError(t, err)
		require.Nil(t, order)
	})

	t.Run("missing price", func(t *testing.T) {
		e := newTestExecutor(t)
		e.executor.SetActive(true)
		_, err := e.executor.Execute(ctx, orderRequest("AAPL", domain.OrderSideBuy, 0.5, 0))
		require.ErrorIs(t, err, domain.ErrInvalidParams)
	})
}

func Test_orderPipeline(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(t)
	e.executor.SetActive(true)
	require.NoError(t, e.executor.Start(ctx, []string{"AAPL", "MSFT"}))
	t.Cleanup(e.executor.Stop)

	portfolios := strategy.NewPortfolioStrategyRegistry(t.TempDir())
	equal, err := strategy.BuildPortfolioStrategy("EqualWeightSignalPortfolio", map[string]any{})
	require.NoError(t, err)
	portfolios.Register(equal)

	roster := NewRoster(nil)
	t.Cleanup(func() { require.NoError(t, roster.Shutdown(ctx)) })
	generator := NewOrderGenerator(OrderGeneratorInput{
		Roster:   roster,
		Registry: portfolios,
		Orders:   e.orders,
	})
	require.NoError(t, generator.Start())
	t.Cleanup(generator.Stop)

	payload := func(symbol string, entry, exit domain.Signal, price float64) domain.SignalDataPayload {
		return domain.SignalDataPayload{
			Symbol:  symbol,
			Signals: map[string]domain.Signal{domain.ColEntrySignal: entry, domain.ColExitSignal: exit},
			PriceData: domain.EnrichedBar{
				Bar: domain.Bar{Symbol: symbol, Timestamp: testStart, Close: price},
			},
		}
	}
	require.NoError(t, roster.Update(payload("MSFT", domain.SignalBuy, domain.SignalHold, 50)))

	require.Eventually(t, func() bool {
		for _, o := range e.broker.Orders() {
			if o.Symbol == "MSFT" && o.Side == domain.OrderSideBuy {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_orderGeneratorHandler_Handle(t *testing.T) {
	ctx := context.Background()
	portfolios := strategy.NewPortfolioStrategyRegistry(t.TempDir())
	equal, err := strategy.BuildPortfolioStrategy("EqualWeightSignalPortfolio", map[string]any{})
	require.NoError(t, err)
	portfolios.Register(equal)

	orders := pubsub.NewBus[domain.SignalOrderPayload](nil)
	t.Cleanup(func() { require.NoError(t, orders.Shutdown(ctx)) })
	published := make(chan domain.SignalOrderPayload, 8)
	for _, symbol := range []string{"AAPL", "GOOG", "MSFT"} {
		_, err := orders.Subscribe(OrderTopic(symbol), 0, func(p domain.SignalOrderPayload) { published <- p })
		require.NoError(t, err)
	}

	generator := NewOrderGenerator(OrderGeneratorInput{Roster: NewRoster(nil), Registry: portfolios, Orders: orders})
	bar := func(symbol string, price float64) domain.EnrichedBar {
		return domain.EnrichedBar{Bar: domain.Bar{Symbol: symbol, Timestamp: testStart, Close: price}}
	}
	snapshot := RosterSnapshot{
		"AAPL": {Symbol: "AAPL", Signals: map[string]domain.Signal{domain.ColEntrySignal: domain.SignalBuy, domain.ColExitSignal: domain.SignalHold}, PriceData: bar("AAPL", 100)},
		"GOOG": {Symbol: "GOOG", Signals: map[string]domain.Signal{domain.ColEntrySignal: domain.SignalHold, domain.ColExitSignal: domain.SignalSell}, PriceData: bar("GOOG", 90)},
		"MSFT": {Symbol: "MSFT", Signals: map[string]domain.Signal{domain.ColEntrySignal: domain.SignalHold, domain.ColExitSignal: domain.SignalHold}, PriceData: bar("MSFT", 50)},
	}
	out, err := generator.Handle(snapshot)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "AAPL", out[0].Symbol)
	require.Equal(t, domain.OrderSideBuy, out[0].Side)
	require.Greater(t, out[0].Weight, 0.0)
	require.Equal(t, "GOOG", out[1].Symbol)
	require.Equal(t, domain.OrderSideSell, out[1].Side)

	got := map[string]domain.OrderSide{}
	for i := 0; i < 2; i++ {
		p := receive(t, published)
		got[p.Symbol] = p.Side
	}
	require.Equal(t, map[string]domain.OrderSide{"AAPL": domain.OrderSideBuy, "GOOG": domain.OrderSideSell}, got)

	t.Run("no active portfolio strategy", func(t *testing.T) {
		empty := NewOrderGenerator(OrderGeneratorInput{
			Roster:   NewRoster(nil),
			Registry: strategy.NewPortfolioStrategyRegistry(t.TempDir()),
			Orders:   orders,
		})
		_, err := empty.Handle(snapshot)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
