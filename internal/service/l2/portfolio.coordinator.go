package l2_service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"algotrader/internal/calculator"
	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/optimizer"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"
)

type PortfolioCoordinator interface {
	Optimize(ctx context.Context, train domain.DateRange) (*domain.StageResult, error)
	Test(ctx context.Context, w domain.Window) (*domain.StageResult, error)
}

type PortfolioCoordinatorInput struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	// Classes are the portfolio strategies to optimize
	Classes      []string
	Optimization OptimizationSettings
	Backtest     BacktestSettings
}

type portfolioCoordinatorHandler struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	Classes             []string
	Optimization        OptimizationSettings
	Backtest            BacktestSettings
}

func NewPortfolioCoordinator(in PortfolioCoordinatorInput) PortfolioCoordinator {
	return portfolioCoordinatorHandler(in)
}

// assetMatrix is the portfolio stage input: one close column per symbol on
// the union of their timestamps, plus each symbol's recommended strategy
// signals realigned onto the matrix rows.
type assetMatrix struct {
	Matrix  *domain.Frame
	Signals map[string]*domain.SignalFrame
}

// Optimize searches every portfolio class on the train range. Results go to
// portfolio_optimization/portfolio/<class>/optimization_result.json.
func (h portfolioCoordinatorHandler) Optimize(ctx context.Context, train domain.DateRange) (*domain.StageResult, error) {
	result := domain.NewStageResult(domain.StagePortfolioOptimization)
	pending := h.pending(ctx, result, domain.StagePortfolioOptimization, train.ID())
	if len(pending) == 0 {
		return result, nil
	}

	assets, err := h.loadAssets(ctx, domain.StagePortfolioOptimization, train)
	if err != nil {
		h.failAll(ctx, result, domain.StagePortfolioOptimization, train.ID(), pending, err)
		return result, nil
	}

	for _, class := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		key := l1_service.PathKey{Stage: domain.StagePortfolioOptimization, Symbol: PortfolioSymbol, Strategy: class, WindowID: train.ID()}
		if err := h.optimize(ctx, key, assets, train); err != nil {
			recordFailure(ctx, h.StageDataService, result, key, class, err)
			continue
		}
		result.Complete(key.String())
	}
	return result, nil
}

func (h portfolioCoordinatorHandler) optimize(ctx context.Context, key l1_service.PathKey, assets *assetMatrix, train domain.DateRange) error {
	resultsKey := l1_service.PathKey{Stage: domain.StagePortfolioOptimization, Symbol: PortfolioSymbol, Strategy: key.Strategy}
	existing, err := readWindowResults(h.StageDataService, resultsKey)
	if err != nil {
		return err
	}
	if r, ok := existing[train.ID()]; ok && r.Optimization != nil {
		return h.StageDataService.MarkStageDone(key)
	}

	space, err := strategy.PortfolioSpace(key.Strategy)
	if err != nil {
		return err
	}
	class := key.Strategy
	best, err := optimizer.Run(ctx, optimizer.RunInput{
		Strategy: class,
		Symbol:   PortfolioSymbol,
		Space:    space,
		Objective: func(ctx context.Context, params map[string]any) (domain.Metrics, error) {
			s, err := strategy.BuildPortfolioStrategy(class, params)
			if err != nil {
				return nil, err
			}
			return h.backtest(s, assets)
		},
		Objectives: h.Optimization.Objectives,
		Directions: h.Optimization.Directions,
		NTrials:    h.Optimization.NTrials,
		Seed:       h.Optimization.Seed,
		Window:     train,
	})
	if err != nil {
		return fmt.Errorf("failed to optimize portfolio %s: %w", class, err)
	}
	built, err := strategy.BuildPortfolioStrategy(class, best.BestParams)
	if err != nil {
		return err
	}
	best.Meta.HashID = built.HashID()

	patch := map[string]domain.WindowResult{
		train.ID(): {Optimization: best, Window: train.Info()},
	}
	if err := h.StageDataService.MergeJSON(resultsKey, optimizationResultName, patch); err != nil {
		return fmt.Errorf("failed to write portfolio optimization result: %w", err)
	}
	logger.FromContext(ctx).Infow("optimized portfolio", "class", class, "window", train.ID(), "best_value", float64(best.BestValue))
	return h.StageDataService.MarkStageDone(key)
}

// Test replays the train window's best params of every class on the test
// range and merges the outcome under <window id>.test.
func (h portfolioCoordinatorHandler) Test(ctx context.Context, w domain.Window) (*domain.StageResult, error) {
	result := domain.NewStageResult(domain.StagePortfolioTesting)
	pending := h.pending(ctx, result, domain.StagePortfolioTesting, w.ID())
	if len(pending) == 0 {
		return result, nil
	}

	assets, err := h.loadAssets(ctx, domain.StagePortfolioTesting, w.Test())
	if err != nil {
		h.failAll(ctx, result, domain.StagePortfolioTesting, w.ID(), pending, err)
		return result, nil
	}

	for _, class := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		key := l1_service.PathKey{Stage: domain.StagePortfolioTesting, Symbol: PortfolioSymbol, Strategy: class, WindowID: w.ID()}
		if err := h.test(ctx, key, assets, w); err != nil {
			recordFailure(ctx, h.StageDataService, result, key, class, err)
			continue
		}
		result.Complete(key.String())
	}
	return result, nil
}

func (h portfolioCoordinatorHandler) test(ctx context.Context, key l1_service.PathKey, assets *assetMatrix, w domain.Window) error {
	start := time.Now()
	resultsKey := l1_service.PathKey{Stage: domain.StagePortfolioOptimization, Symbol: PortfolioSymbol, Strategy: key.Strategy}
	results, err := readWindowResults(h.StageDataService, resultsKey)
	if err != nil {
		return err
	}
	trained, ok := results[w.ID()]
	if !ok || trained.Optimization == nil {
		return fmt.Errorf("%w: no portfolio optimization of %s in window %s", domain.ErrNotFound, key.Strategy, w.ID())
	}

	s, err := strategy.BuildPortfolioStrategy(key.Strategy, trained.Optimization.BestParams)
	if err != nil {
		return err
	}
	metrics, err := h.backtest(s, assets)
	if err != nil {
		return fmt.Errorf("failed to backtest portfolio %s: %w", key.Strategy, err)
	}

	test := &domain.TestResult{
		Strategy: key.Strategy,
		Params:   trained.Optimization.BestParams,
		Meta: domain.TestMeta{
			Symbol:      PortfolioSymbol,
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
		return fmt.Errorf("failed to write portfolio test result: %w", err)
	}
	logger.FromContext(ctx).Infow("tested portfolio", "class", key.Strategy, "window", w.ID(), "metrics", metrics)
	return h.StageDataService.MarkStageDone(key)
}

func (h portfolioCoordinatorHandler) backtest(s strategy.PortfolioStrategy, assets *assetMatrix) (domain.Metrics, error) {
	bt, err := calculator.RunPortfolioBacktest(calculator.PortfolioBacktestInput{
		Strategy:        s,
		Matrix:          assets.Matrix,
		Signals:         assets.Signals,
		InitialBalance:  h.Backtest.InitialBalance,
		TransactionCost: h.Backtest.TransactionCost,
		MinLot:          h.Backtest.MinLot,
		Leverage:        h.Backtest.Leverage,
		Slippage:        h.Backtest.Slippage,
	})
	if err != nil {
		return nil, err
	}
	return bt.Metrics, nil
}

func (h portfolioCoordinatorHandler) pending(ctx context.Context, result *domain.StageResult, stage domain.Stage, windowID string) []string {
	out := []string{}
	for _, class := range h.Classes {
		key := l1_service.PathKey{Stage: stage, Symbol: PortfolioSymbol, Strategy: class, WindowID: windowID}
		if !skipDone(ctx, h.StageDataService, result, key) {
			out = append(out, class)
		}
	}
	return out
}

func (h portfolioCoordinatorHandler) failAll(ctx context.Context, result *domain.StageResult, stage domain.Stage, windowID string, classes []string, cause error) {
	for _, class := range classes {
		key := l1_service.PathKey{Stage: stage, Symbol: PortfolioSymbol, Strategy: class, WindowID: windowID}
		recordFailure(ctx, h.StageDataService, result, key, class, cause)
	}
}

// loadAssets builds the asset matrix for r. Symbols without features or
// without a recommended strategy are left out.
func (h portfolioCoordinatorHandler) loadAssets(ctx context.Context, stage domain.Stage, r domain.DateRange) (*assetMatrix, error) {
	log := logger.FromContext(ctx)
	symbols, err := resolveWatchlist(ctx, h.WatchlistRepository)
	if err != nil {
		return nil, err
	}

	frames := map[string]*domain.Frame{}
	signals := map[string]*domain.SignalFrame{}
	for _, symbol := range symbols {
		frame, err := loadStageFrame(h.StageDataService, stage, symbol, r)
		if err != nil {
			log.Warnw("leaving symbol out of asset matrix", "symbol", symbol, "error", err)
			continue
		}
		s, err := h.recommendedStrategy(symbol)
		if err != nil {
			log.Warnw("leaving symbol out of asset matrix", "symbol", symbol, "error", err)
			continue
		}
		sf, err := s.GenerateSignals(frame)
		if err != nil {
			log.Warnw("leaving symbol out of asset matrix", "symbol", symbol, "error", err)
			continue
		}
		frames[symbol] = frame
		signals[symbol] = sf
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no symbol has features and a recommended strategy in %s", domain.ErrEmptyFrame, r.ID())
	}
	return buildAssetMatrix(frames, signals)
}

func (h portfolioCoordinatorHandler) recommendedStrategy(symbol string) (strategy.Strategy, error) {
	summary := domain.StrategySummary{}
	key := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: symbol}
	if err := h.StageDataService.ReadJSON(key, strategySummaryName, &summary); err != nil {
		return nil, err
	}
	if summary.RecommendedStrategy == "" {
		return nil, errors.New("no recommended strategy")
	}
	template, err := strategy.GetTemplate(summary.RecommendedStrategy)
	if err != nil {
		return nil, err
	}
	return template.Build(template.FilterAcceptedParams(summary.BestParams))
}

func buildAssetMatrix(frames map[string]*domain.Frame, signals map[string]*domain.SignalFrame) (*assetMatrix, error) {
	seen := map[time.Time]bool{}
	timestamps := []time.Time{}
	for _, f := range frames {
		for _, ts := range f.Timestamps {
			if !seen[ts] {
				seen[ts] = true
				timestamps = append(timestamps, ts)
			}
		}
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
	row := make(map[time.Time]int, len(timestamps))
	for i, ts := range timestamps {
		row[ts] = i
	}

	symbols := make([]string, 0, len(frames))
	for symbol := range frames {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	matrix := domain.NewFrame("", timestamps)
	aligned := map[string]*domain.SignalFrame{}
	for _, symbol := range symbols {
		f := frames[symbol]
		closes, _ := f.Column(domain.ColClose)
		col := make([]float64, len(timestamps))
		for i := range col {
			col[i] = domain.Unavailable
		}
		sf := domain.NewSignalFrame(matrix)
		for i, ts := range f.Timestamps {
			j := row[ts]
			col[j] = closes[i]
			sf.Entry[j] = signals[symbol].Entry[i]
			sf.Exit[j] = signals[symbol].Exit[i]
		}
		if err := matrix.SetColumn(symbol, col); err != nil {
			return nil, err
		}
		aligned[symbol] = sf
	}
	return &assetMatrix{Matrix: matrix, Signals: aligned}, nil
}
