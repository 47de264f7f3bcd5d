package l2_service

import (
	"context"
	"fmt"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"
)

type SignalTestingCoordinator interface {
	Run(ctx context.Context, w domain.Window) (*domain.StageResult, error)
}

type SignalTestingCoordinatorInput struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	Strategies          []string
	Backtest            BacktestSettings
}

type signalTestingCoordinatorHandler struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	Strategies          []string
	Backtest            BacktestSettings
}

func NewSignalTestingCoordinator(in SignalTestingCoordinatorInput) SignalTestingCoordinator {
	return signalTestingCoordinatorHandler(in)
}

// Run backtests the train window's best params of every (symbol, strategy)
// on the test window and merges the outcome under <window id>.test.
func (h signalTestingCoordinatorHandler) Run(ctx context.Context, w domain.Window) (*domain.StageResult, error) {
	result := domain.NewStageResult(domain.StageSignalTesting)
	symbols, err := resolveWatchlist(ctx, h.WatchlistRepository)
	if err != nil {
		return nil, err
	}

	for _, symbol := range symbols {
		var frame *domain.Frame
		var frameErr error
		for _, name := range h.Strategies {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			key := l1_service.PathKey{Stage: domain.StageSignalTesting, Symbol: symbol, Strategy: name, WindowID: w.ID()}
			if skipDone(ctx, h.StageDataService, result, key) {
				continue
			}
			if frame == nil && frameErr == nil {
				frame, frameErr = loadStageFrame(h.StageDataService, domain.StageSignalTesting, symbol, w.Test())
			}
			if frameErr != nil {
				recordFailure(ctx, h.StageDataService, result, key, name, frameErr)
				continue
			}
			if err := h.test(ctx, key, frame, w); err != nil {
				recordFailure(ctx, h.StageDataService, result, key, name, err)
				continue
			}
			result.Complete(key.String())
		}
	}
	return result, nil
}

func (h signalTestingCoordinatorHandler) test(ctx context.Context, key l1_service.PathKey, frame *domain.Frame, w domain.Window) error {
	start := time.Now()
	resultsKey := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: key.Symbol, Strategy: key.Strategy}
	results, err := readWindowResults(h.StageDataService, resultsKey)
	if err != nil {
		return err
	}
	trained, ok := results[w.ID()]
	if !ok || trained.Optimization == nil {
		return fmt.Errorf("%w: no optimization of %s for %s in window %s", domain.ErrNotFound, key.Strategy, key.Symbol, w.ID())
	}

	template, err := strategy.GetTemplate(key.Strategy)
	if err != nil {
		return err
	}
	params := template.FilterAcceptedParams(trained.Optimization.BestParams)
	s, err := template.Build(params)
	if err != nil {
		return fmt.Errorf("failed to build %s from best params: %w", key.Strategy, err)
	}
	metrics, err := backtestSignals(s, frame, h.Backtest)
	if err != nil {
		return fmt.Errorf("failed to backtest %s for %s: %w", key.Strategy, key.Symbol, err)
	}

	test := &domain.TestResult{
		Strategy: key.Strategy,
		Params:   params,
		Meta: domain.TestMeta{
			Symbol:      key.Symbol,
			TrainWindow: w.Train().Info(),
			TestWindow:  w.Test().Info(),
			RunTimeSec:  time.Since(start).Seconds(),
			HashID:      s.HashID(),
		},
		Metrics: metrics,
	}
	patch := map[string]domain.WindowResult{
		w.ID(): {Test: test, Window: w.Train().Info()},
	}
	if err := h.StageDataService.MergeJSON(resultsKey, optimizationResultName, patch); err != nil {
		return fmt.Errorf("failed to write test result: %w", err)
	}
	logger.FromContext(ctx).Infow("tested strategy", "symbol", key.Symbol, "strategy", key.Strategy, "window", w.ID(), "metrics", metrics)
	return h.StageDataService.MarkStageDone(key)
}
