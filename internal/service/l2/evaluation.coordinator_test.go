package l2_service

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"algotrader/internal/domain"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"
	"algotrader/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func Test_summarizeSymbol(t *testing.T) {
	evaluation := func(score, consistency float64, viable bool) *domain.CrossWindowEvaluation {
		return &domain.CrossWindowEvaluation{
			MetricType:           domain.MetricTotalReturn,
			ViabilityScore:       domain.Metric(score),
			ParamConsistency:     domain.Metric(consistency),
			IsViable:             viable,
			NWindows:             3,
			MostCommonBestParams: map[string]any{"score": score},
		}
	}

	t.Run("highest viability score wins", func(t *testing.T) {
		summary := summarizeSymbol("AAPL", map[string]*domain.CrossWindowEvaluation{
			"Bollinger":    evaluation(0.85, 0.3, true),
			"RSIReversion": evaluation(0.2, 1, false),
		}, 0.75)
		require.Equal(t, "Bollinger", summary.RecommendedStrategy)
		require.True(t, summary.IsViable)
		require.Equal(t, map[string]any{"score": 0.85}, summary.BestParams)
		require.Len(t, summary.Strategies, 2)
		require.Contains(t, summary.Rationale, "highest")
	})

	t.Run("consistency breaks ties", func(t *testing.T) {
		summary := summarizeSymbol("AAPL", map[string]*domain.CrossWindowEvaluation{
			"Bollinger":    evaluation(0.5, 0.3, false),
			"RSIReversion": evaluation(0.5, 0.6, false),
		}, 0.75)
		require.Equal(t, "RSIReversion", summary.RecommendedStrategy)
		require.False(t, summary.IsViable)
		require.Contains(t, summary.Rationale, "no strategy reached the viability threshold 0.75")
	})

	t.Run("missing score ranks last", func(t *testing.T) {
		summary := summarizeSymbol("AAPL", map[string]*domain.CrossWindowEvaluation{
			"Bollinger":    evaluation(math.NaN(), 1, false),
			"RSIReversion": evaluation(-0.4, 0, false),
		}, 0.75)
		require.Equal(t, "RSIReversion", summary.RecommendedStrategy)
	})
}

func Test_evaluationCoordinatorHandler_Run(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, "AAPL")

	windows := []string{"20200101_20210101", "20210101_20220101", "20220101_20230101"}
	for i, total := range []float64{0.8, 0.9, 0.85} {
		key := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: "AAPL", Strategy: "Bollinger"}
		require.NoError(t, p.data.MergeJSON(key, optimizationResultName, map[string]domain.WindowResult{
			windows[i]: {
				Optimization: &domain.OptimizationResult{
					Strategy:   "Bollinger",
					BestParams: map[string]any{"entry_conditions": []any{map[string]any{"BollingerBandsEntryCondition": map[string]any{"close_col": "close"}}}},
					Metrics:    domain.Metrics{domain.MetricTotalReturn: 5},
				},
				Test: &domain.TestResult{
					Strategy: "Bollinger",
					Metrics:  domain.Metrics{domain.MetricTotalReturn: domain.Metric(total)},
				},
			},
		}))
	}
	for i, total := range []float64{0.1, 0.3, 0.2} {
		key := l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: "AAPL", Strategy: "RSIReversion"}
		require.NoError(t, p.data.MergeJSON(key, optimizationResultName, map[string]domain.WindowResult{
			windows[i]: {
				Optimization: &domain.OptimizationResult{
					Strategy:   "RSIReversion",
					BestParams: map[string]any{},
					Metrics:    domain.Metrics{domain.MetricTotalReturn: domain.Metric(total)},
				},
			},
		}))
	}

	handler := p.evaluation("Bollinger", "RSIReversion", "MACDMomentum")
	result, global, err := handler.Run(ctx)
	require.NoError(t, err)
	require.Len(t, result.Completed, 2)
	require.Len(t, result.Failed, 1)
	require.ErrorIs(t, result.Err(), domain.ErrNotFound)

	bollinger := domain.CrossWindowEvaluation{}
	require.NoError(t, p.data.ReadJSON(l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: "AAPL", Strategy: "Bollinger"}, evaluationResultName, &bollinger))
	require.InDelta(t, 0.85, float64(bollinger.ViabilityScore), 1e-9)
	require.True(t, bollinger.IsViable)
	require.Equal(t, 3, bollinger.NWindows)

	rsi := domain.CrossWindowEvaluation{}
	require.NoError(t, p.data.ReadJSON(l1_service.PathKey{Stage: domain.StageSignalOptimization, Symbol: "AAPL", Strategy: "RSIReversion"}, evaluationResultName, &rsi))
	require.InDelta(t, 0.2, float64(rsi.ViabilityScore), 1e-9)
	require.False(t, rsi.IsViable)

	require.Equal(t, "Bollinger", global["AAPL"].RecommendedStrategy)

	onDisk := domain.GlobalSummary{}
	require.NoError(t, util.ReadJSON(filepath.Join(p.data.BaseDir(), string(domain.StageSignalOptimization), "global_summary.json"), &onDisk))
	require.Equal(t, "Bollinger", onDisk["AAPL"].RecommendedStrategy)

	summary := domain.StrategySummary{}
	require.NoError(t, util.ReadJSON(filepath.Join(p.data.BaseDir(), string(domain.StageSignalOptimization), "AAPL", strategy.StrategySummaryFile), &summary))
	if diff := cmp.Diff(global["AAPL"].Strategies, summary.Strategies); diff != "" {
		t.Fatalf("strategy scores differ (-want +got):\n%s", diff)
	}

	t.Run("summaries load into the live registry", func(t *testing.T) {
		registry := strategy.NewSignalStrategyRegistry(filepath.Join(p.data.BaseDir(), string(domain.StageSignalOptimization)), 0.5, 0.5)
		require.NoError(t, registry.Load([]string{"AAPL"}))
		combined, err := registry.Get("AAPL")
		require.NoError(t, err)
		require.Len(t, combined.Members(), 1)
	})
}
