package l2_service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"algotrader/internal/calculator"
	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/optimizer"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"

	"golang.org/x/sync/errgroup"
)

type SignalOptimizationCoordinator interface {
	Run(ctx context.Context, train domain.DateRange) (*domain.StageResult, error)
}

type OptimizationSettings struct {
	NTrials    int
	Seed       int64
	Objectives []string
	Directions []domain.Direction
	MaxWorkers int
}

type SignalOptimizationCoordinatorInput struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	Strategies          []string
	Optimization        OptimizationSettings
	Backtest            BacktestSettings
}

type signalOptimizationCoordinatorHandler struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	Strategies          []string
	Optimization        OptimizationSettings
	Backtest            BacktestSettings
}

func NewSignalOptimizationCoordinator(in SignalOptimizationCoordinatorInput) SignalOptimizationCoordinator {
	return signalOptimizationCoordinatorHandler(in)
}

// Run optimizes every (symbol, strategy) on the train range and merges the
// result into signal_optimization/<symbol>/<strategy>/optimization_result.json
// under the window id. Strategies of one symbol run on bounded workers.
func (h signalOptimizationCoordinatorHandler) Run(ctx context.Context, train domain.DateRange) (*domain.StageResult, error) {
	result := domain.NewStageResult(domain.StageSignalOptimization)
	symbols, err := resolveWatchlist(ctx, h.WatchlistRepository)
	if err != nil {
		return nil, err
	}
	for _, name := range h.Strategies {
		if _, err := strategy.GetTemplate(name); err != nil {
			return nil, err
		}
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pending := []string{}
		for _, name := range h.Strategies {
			key := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: symbol, Strategy: name, WindowID: train.ID()}
			if !skipDone(ctx, h.StageDataService, result, key) {
				pending = append(pending, name)
			}
		}
		if len(pending) == 0 {
			continue
		}

		frame, err := loadStageFrame(h.StageDataService, domain.StageSignalOptimization, symbol, train)
		if err != nil {
			for _, name := range pending {
				key := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: symbol, Strategy: name, WindowID: train.ID()}
				recordFailure(ctx, h.StageDataService, result, key, name, err)
			}
			continue
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(max(h.Optimization.MaxWorkers, 1))
		for _, name := range pending {
			group.Go(func() error {
				key := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: symbol, Strategy: name, WindowID: train.ID()}
				if err := h.optimize(groupCtx, key, frame, train); err != nil {
					if groupCtx.Err() != nil {
						return groupCtx.Err()
					}
					recordFailure(groupCtx, h.StageDataService, result, key, name, err)
					return nil
				}
				result.Complete(key.String())
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (h signalOptimizationCoordinatorHandler) optimize(ctx context.Context, key l1_service.PathKey, frame *domain.Frame, train domain.DateRange) error {
	ctx, log := logger.With(ctx, "symbol", key.Symbol, "strategy", key.Strategy, "window", train.ID())
	resultsKey := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: key.Symbol, Strategy: key.Strategy}

	existing, err := readWindowResults(h.StageDataService, resultsKey)
	if err != nil {
		return err
	}
	if r, ok := existing[train.ID()]; ok && r.Optimization != nil {
		log.Infow("window already optimized")
		return h.StageDataService.MarkStageDone(key)
	}

	template, err := strategy.GetTemplate(key.Strategy)
	if err != nil {
		return err
	}
	best, err := optimizer.Run(ctx, optimizer.RunInput{
		Strategy:   key.Strategy,
		Symbol:     key.Symbol,
		Space:      template.Space(),
		Objective:  signalObjective(template, frame, h.Backtest),
		Objectives: h.Optimization.Objectives,
		Directions: h.Optimization.Directions,
		NTrials:    h.Optimization.NTrials,
		Seed:       h.Optimization.Seed,
		Window:     train,
	})
	if err != nil {
		return fmt.Errorf("failed to optimize %s for %s: %w", key.Strategy, key.Symbol, err)
	}

	built, err := template.Build(template.FilterAcceptedParams(best.BestParams))
	if err != nil {
		return fmt.Errorf("best params of %s do not build: %w", key.Strategy, err)
	}
	best.Meta.HashID = built.HashID()
	if len(best.Metrics) == 0 {
		return fmt.Errorf("optimization of %s for %s produced no metrics", key.Strategy, key.Symbol)
	}

	patch := map[string]domain.WindowResult{
		train.ID(): {Optimization: best, Window: train.Info()},
	}
	if err := h.StageDataService.MergeJSON(resultsKey, optimizationResultName, patch); err != nil {
		return fmt.Errorf("failed to write optimization result: %w", err)
	}
	log.Infow("optimized strategy", "best_value", float64(best.BestValue), "trials", best.Meta.NTrials, "run_time_sec", best.Meta.RunTimeSec)
	return h.StageDataService.MarkStageDone(key)
}

// signalObjective builds the candidate, generates its signals on frame and
// backtests them.
func signalObjective(template strategy.Template, frame *domain.Frame, settings BacktestSettings) optimizer.Objective {
	return func(ctx context.Context, params map[string]any) (domain.Metrics, error) {
		s, err := template.Build(template.FilterAcceptedParams(params))
		if err != nil {
			return nil, err
		}
		return backtestSignals(s, frame, settings)
	}
}

func backtestSignals(s strategy.Strategy, frame *domain.Frame, settings BacktestSettings) (domain.Metrics, error) {
	signals, err := s.GenerateSignals(frame)
	if err != nil {
		return nil, err
	}
	bt, err := calculator.RunSignalBacktest(calculator.SignalBacktestInput{
		Signals:         signals,
		InitialBalance:  settings.InitialBalance,
		TransactionCost: settings.TransactionCost,
	})
	if err != nil {
		return nil, err
	}
	return bt.Metrics, nil
}

const optimizationResultName = "optimization_result"

func readWindowResults(stageData l1_service.StageDataService, key l1_service.PathKey) (map[string]domain.WindowResult, error) {
	out := map[string]domain.WindowResult{}
	err := stageData.ReadJSON(key, optimizationResultName, &out)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
