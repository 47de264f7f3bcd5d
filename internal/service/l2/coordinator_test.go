package l2_service

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"algotrader/internal/calculator"
	"algotrader/internal/domain"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"

	"github.com/stretchr/testify/require"
)

var (
	testTrain = domain.DateRange{
		Start: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	testWindow = domain.Window{
		TrainStart: testTrain.Start,
		TrainEnd:   testTrain.End,
		TestStart:  testTrain.End,
		TestEnd:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	testBacktest = BacktestSettings{InitialBalance: 10000, TransactionCost: 0.001, MinLot: 1, Leverage: 1}
	testOptimize = OptimizationSettings{
		NTrials:    3,
		Seed:       7,
		Objectives: []string{domain.MetricTotalReturn},
		Directions: []domain.Direction{domain.DirectionMaximize},
		MaxWorkers: 2,
	}
)

func dailyBars(symbol string, from, to time.Time, phase float64) []domain.Bar {
	bars := []domain.Bar{}
	for i, day := 0, from; day.Before(to); i, day = i+1, day.AddDate(0, 0, 1) {
		base := 100 + 0.03*float64(i) + 10*math.Sin(float64(i)/11+phase)
		bars = append(bars, domain.Bar{
			Timestamp: day,
			Symbol:    symbol,
			Open:      base - 0.4,
			High:      base + 1.2,
			Low:       base - 1.2,
			Close:     base + 0.3*math.Cos(float64(i)),
			Volume:    2e6 + 3e5*math.Sin(float64(i)/4),
			NumTrades: 1500,
			Vwap:      base,
		})
	}
	return bars
}

type testPipeline struct {
	data      l1_service.StageDataService
	broker    *repository.PaperBroker
	watchlist repository.WatchlistRepository
}

func newTestPipeline(t *testing.T, symbols ...string) testPipeline {
	bars := map[string][]domain.Bar{}
	for i, symbol := range symbols {
		bars[symbol] = dailyBars(symbol, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), testWindow.TestEnd, float64(i))
	}
	return testPipeline{
		data:      l1_service.NewStageDataService(t.TempDir()),
		broker:    repository.NewPaperBroker(repository.PaperBrokerInput{Account: "paper", Bars: bars}),
		watchlist: repository.NewMemoryWatchlistRepository(symbols...),
	}
}

func (p testPipeline) prepare(t *testing.T, r domain.DateRange) {
	ctx := context.Background()
	ingest := NewDataIngestCoordinator(DataIngestCoordinatorInput{
		StageDataService:         p.data,
		WatchlistRepository:      p.watchlist,
		HistoricalDataRepository: p.broker,
		WarmupDays:               300,
		PageSize:                 250,
	})
	result, err := ingest.Run(ctx, r)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	fe := NewFeatureEngineeringCoordinator(FeatureEngineeringCoordinatorInput{
		StageDataService:    p.data,
		WatchlistRepository: p.watchlist,
		FeatureEngineer:     calculator.NewFeatureEngineer(),
		PageSize:            250,
	})
	result, err = fe.Run(ctx, r)
	require.NoError(t, err)
	require.NoError(t, result.Err())
}

func (p testPipeline) signalOptimization(strategies ...string) SignalOptimizationCoordinator {
	return NewSignalOptimizationCoordinator(SignalOptimizationCoordinatorInput{
		StageDataService:    p.data,
		WatchlistRepository: p.watchlist,
		Strategies:          strategies,
		Optimization:        testOptimize,
		Backtest:            testBacktest,
	})
}

func (p testPipeline) signalTesting(strategies ...string) SignalTestingCoordinator {
	return NewSignalTestingCoordinator(SignalTestingCoordinatorInput{
		StageDataService:    p.data,
		WatchlistRepository: p.watchlist,
		Strategies:          strategies,
		Backtest:            testBacktest,
	})
}

func (p testPipeline) evaluation(strategies ...string) EvaluationCoordinator {
	return NewEvaluationCoordinator(EvaluationCoordinatorInput{
		StageDataService:    p.data,
		WatchlistRepository: p.watchlist,
		Strategies:          strategies,
		Metric:              domain.MetricTotalReturn,
		ViabilityThreshold:  0.75,
	})
}

func (p testPipeline) windowResults(t *testing.T, symbol, name string) map[string]domain.WindowResult {
	out, err := readWindowResults(p.data, l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: symbol, Strategy: name})
	require.NoError(t, err)
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func Test_resolveWatchlist(t *testing.T) {
	ctx := context.Background()

	symbols, err := resolveWatchlist(ctx, repository.NewMemoryWatchlistRepository("MSFT", "AAPL"))
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	_, err = resolveWatchlist(ctx, repository.NewMemoryWatchlistRepository())
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func Test_loadStageFrame(t *testing.T) {
	p := newTestPipeline(t, "AAPL")
	p.prepare(t, testTrain)

	t.Run("trims warm up rows", func(t *testing.T) {
		f, err := loadStageFrame(p.data, domain.StageSignalOptimization, "AAPL", testTrain)
		require.NoError(t, err)
		require.Equal(t, 365, f.Len())
		require.Equal(t, testTrain.Start, f.Timestamps[0])
		require.True(t, f.HasColumn("sma_20"))
	})

	t.Run("missing predecessor", func(t *testing.T) {
		_, err := loadStageFrame(p.data, domain.StageSignalOptimization, "AAPL", testWindow.Test())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("error markers land in the stage directory", func(t *testing.T) {
		key := l1_service.PathKey{Stage: domain.StageSignalTesting, Symbol: "AAPL", Strategy: "Bollinger", WindowID: "w"}
		result := domain.NewStageResult(domain.StageSignalTesting)
		recordFailure(context.Background(), p.data, result, key, "Bollinger", domain.ErrEmptyFrame)
		require.True(t, p.data.HasError(key))
		require.True(t, fileExists(filepath.Join(p.data.GetDirectory(key), "Bollinger.error.csv")))
		require.ErrorIs(t, result.Err(), domain.ErrEmptyFrame)
	})
}
