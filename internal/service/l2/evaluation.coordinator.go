package l2_service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"algotrader/internal/calculator"
	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
)

const (
	evaluationResultName = "evaluation_result"
	strategySummaryName  = "strategy_summary"
	GlobalSummaryName    = "global_summary"
)

type EvaluationCoordinator interface {
	Run(ctx context.Context) (*domain.StageResult, domain.GlobalSummary, error)
}

type EvaluationCoordinatorInput struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	Strategies          []string
	Metric              string
	ViabilityThreshold  float64
}

type evaluationCoordinatorHandler struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	Strategies          []string
	Metric              string
	ViabilityThreshold  float64
}

func NewEvaluationCoordinator(in EvaluationCoordinatorInput) EvaluationCoordinator {
	return evaluationCoordinatorHandler(in)
}

// Run evaluates every (symbol, strategy) across its windows, picks each
// symbol's recommended strategy and writes global_summary.json. It always
// recomputes since new windows change the outcome.
func (h evaluationCoordinatorHandler) Run(ctx context.Context) (*domain.StageResult, domain.GlobalSummary, error) {
	result := domain.NewStageResult(domain.StageEvaluation)
	symbols, err := resolveWatchlist(ctx, h.WatchlistRepository)
	if err != nil {
		return nil, nil, err
	}

	global := domain.GlobalSummary{}
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, nil, err
		}
		evaluations := map[string]*domain.CrossWindowEvaluation{}
		for _, name := range h.Strategies {
			key := l1_service.PathKey{Stage: domain.StageEvaluation, Symbol: symbol, Strategy: name}
			evaluation, err := h.evaluate(ctx, symbol, name)
			if err != nil {
				recordFailure(ctx, h.StageDataService, result, key, name, err)
				continue
			}
			if err := h.StageDataService.MarkStageDone(key); err != nil {
				return result, nil, err
			}
			evaluations[name] = evaluation
			result.Complete(key.String())
		}
		if len(evaluations) == 0 {
			continue
		}

		summary := summarizeSymbol(symbol, evaluations, h.ViabilityThreshold)
		summaryKey := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: symbol}
		if err := h.StageDataService.WriteJSON(summaryKey, strategySummaryName, summary); err != nil {
			recordFailure(ctx, h.StageDataService, result, l1_service.PathKey{Stage: domain.StageEvaluation, Symbol: symbol}, symbol, err)
			continue
		}
		global[symbol] = summary
	}

	if err := h.StageDataService.WriteJSON(l1_service.PathKey{Stage: domain.StageSignalOptimization}, GlobalSummaryName, global); err != nil {
		return result, nil, fmt.Errorf("failed to write global summary: %w", err)
	}
	return result, global, nil
}

func (h evaluationCoordinatorHandler) evaluate(ctx context.Context, symbol, name string) (*domain.CrossWindowEvaluation, error) {
	key := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: symbol, Strategy: name}
	results, err := readWindowResults(h.StageDataService, key)
	if err != nil {
		return nil, err
	}

	samples := []calculator.WindowSample{}
	for id, r := range results {
		if r.Optimization == nil {
			continue
		}
		metrics := r.Optimization.Metrics
		if r.Test != nil {
			metrics = r.Test.Metrics
		} else {
			logger.FromContext(ctx).Warnw("window has no test result, using in-sample metrics", "symbol", symbol, "strategy", name, "window", id)
		}
		samples = append(samples, calculator.WindowSample{
			WindowID:   id,
			Metrics:    metrics,
			BestParams: r.Optimization.BestParams,
		})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no optimized windows for %s %s", domain.ErrNotFound, symbol, name)
	}

	evaluation, err := calculator.EvaluateCrossWindow(calculator.EvaluateCrossWindowInput{
		Strategy:           name,
		Windows:            samples,
		Metric:             h.Metric,
		ViabilityThreshold: h.ViabilityThreshold,
	})
	if err != nil {
		return nil, err
	}
	if err := h.StageDataService.WriteJSON(key, evaluationResultName, evaluation); err != nil {
		return nil, fmt.Errorf("failed to write evaluation result: %w", err)
	}
	return evaluation, nil
}

// summarizeSymbol recommends the strategy with the highest viability score,
// then the highest param consistency, then the first name.
func summarizeSymbol(symbol string, evaluations map[string]*domain.CrossWindowEvaluation, threshold float64) domain.StrategySummary {
	names := make([]string, 0, len(evaluations))
	for name := range evaluations {
		names = append(names, name)
	}
	sort.Strings(names)

	rank := func(v domain.Metric) float64 {
		if math.IsNaN(float64(v)) {
			return math.Inf(-1)
		}
		return float64(v)
	}

	summary := domain.StrategySummary{
		Symbol:     symbol,
		Strategies: map[string]domain.StrategyScore{},
	}
	best := ""
	for _, name := range names {
		e := evaluations[name]
		summary.Strategies[name] = domain.StrategyScore{
			ViabilityScore:   e.ViabilityScore,
			IsViable:         e.IsViable,
			ParamConsistency: e.ParamConsistency,
			NWindows:         e.NWindows,
		}
		if best == "" {
			best = name
			continue
		}
		b := evaluations[best]
		if rank(e.ViabilityScore) > rank(b.ViabilityScore) ||
			(rank(e.ViabilityScore) == rank(b.ViabilityScore) && rank(e.ParamConsistency) > rank(b.ParamConsistency)) {
			best = name
		}
	}

	chosen := evaluations[best]
	summary.RecommendedStrategy = best
	summary.IsViable = chosen.IsViable
	summary.ViabilityScore = chosen.ViabilityScore
	summary.ParamConsistency = chosen.ParamConsistency
	summary.BestParams = chosen.MostCommonBestParams
	if chosen.IsViable {
		summary.Rationale = fmt.Sprintf("%s has the highest %s viability score (%.4f)", best, chosen.MetricType, float64(chosen.ViabilityScore))
	} else {
		summary.Rationale = fmt.Sprintf("no strategy reached the viability threshold %.2f; %s scored highest", threshold, best)
	}
	return summary
}
