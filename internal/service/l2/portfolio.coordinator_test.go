package l2_service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"algotrader/internal/domain"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"

	"github.com/stretchr/testify/require"
)

func Test_buildAssetMatrix(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	frame := func(symbol string, days []int, closes []float64) *domain.Frame {
		ts := []time.Time{}
		for _, d := range days {
			ts = append(ts, day(d))
		}
		f := domain.NewFrame(symbol, ts)
		require.NoError(t, f.SetColumn(domain.ColClose, closes))
		return f
	}
	aapl := frame("AAPL", []int{1, 2, 3}, []float64{10, 11, 12})
	msft := frame("MSFT", []int{2, 3, 4}, []float64{20, 21, 22})
	aaplSignals := domain.NewSignalFrame(aapl)
	aaplSignals.Entry[1] = domain.SignalBuy
	msftSignals := domain.NewSignalFrame(msft)
	msftSignals.Exit[2] = domain.SignalSell

	assets, err := buildAssetMatrix(
		map[string]*domain.Frame{"AAPL": aapl, "MSFT": msft},
		map[string]*domain.SignalFrame{"AAPL": aaplSignals, "MSFT": msftSignals},
	)
	require.NoError(t, err)
	require.Equal(t, []time.Time{day(1), day(2), day(3), day(4)}, assets.Matrix.Timestamps)
	require.Equal(t, []string{"AAPL", "MSFT"}, assets.Matrix.Columns())

	closes, _ := assets.Matrix.Column("AAPL")
	require.Equal(t, []float64{10, 11, 12}, closes[:3])
	require.True(t, domain.IsUnavailable(closes[3]))
	closes, _ = assets.Matrix.Column("MSFT")
	require.True(t, domain.IsUnavailable(closes[0]))

	require.Equal(t, []domain.Signal{domain.SignalHold, domain.SignalBuy, domain.SignalHold, domain.SignalHold}, assets.Signals["AAPL"].Entry)
	require.Equal(t, []domain.Signal{domain.SignalHold, domain.SignalHold, domain.SignalHold, domain.SignalSell}, assets.Signals["MSFT"].Exit)
}

func Test_portfolioCoordinatorHandler(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, "AAPL", "MSFT")
	p.prepare(t, testTrain)
	p.prepare(t, testWindow.Test())

	classes := []string{"EqualWeightSignalPortfolio", "InverseVolatilityPortfolio"}
	handler := NewPortfolioCoordinator(PortfolioCoordinatorInput{
		StageDataService:    p.data,
		WatchlistRepository: p.watchlist,
		Classes:             classes,
		Optimization:        testOptimize,
		Backtest:            testBacktest,
	})

	t.Run("needs recommended strategies", func(t *testing.T) {
		result, err := handler.Optimize(ctx, testTrain)
		require.NoError(t, err)
		require.Len(t, result.Failed, 2)
		require.ErrorIs(t, result.Err(), domain.ErrEmptyFrame)
	})

	_, err := p.signalOptimization("Bollinger").Run(ctx, testTrain)
	require.NoError(t, err)
	_, err = p.signalTesting("Bollinger").Run(ctx, testWindow)
	require.NoError(t, err)
	_, _, err = p.evaluation("Bollinger").Run(ctx)
	require.NoError(t, err)

	result, err := handler.Optimize(ctx, testTrain)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	require.Len(t, result.Completed, 2)

	result, err = handler.Test(ctx, testWindow)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	require.Len(t, result.Completed, 2)

	for _, class := range classes {
		results, err := readWindowResults(p.data, l1_service.PathKey{Stage: domain.StagePortfolioOptimization, Symbol: PortfolioSymbol, Strategy: class})
		require.NoError(t, err)
		window := results[testWindow.ID()]
		require.NotNil(t, window.Optimization)
		require.NotNil(t, window.Test)
		require.Equal(t, PortfolioSymbol, window.Test.Meta.Symbol)
		require.Contains(t, window.Test.Metrics, domain.MetricNumTrades)
	}

	t.Run("registry loads optimized params", func(t *testing.T) {
		root := filepath.Join(p.data.BaseDir(), string(domain.StagePortfolioOptimization), PortfolioSymbol)
		registry := strategy.NewPortfolioStrategyRegistry(root)
		require.NoError(t, registry.Load("InverseVolatilityPortfolio"))
		s, err := registry.Active()
		require.NoError(t, err)
		require.Equal(t, "InverseVolatilityPortfolio", s.Class())
	})

	t.Run("rerun is skipped", func(t *testing.T) {
		result, err := handler.Test(ctx, testWindow)
		require.NoError(t, err)
		require.Len(t, result.Skipped, 2)
	})
}
