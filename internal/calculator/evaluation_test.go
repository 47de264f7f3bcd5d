package calculator

import (
	"testing"

	"algotrader/internal/domain"

	"github.com/stretchr/testify/require"
)

func samples(values ...float64) []WindowSample {
	out := []WindowSample{}
	ids := []string{"20190101_20191231", "20200101_20201231", "20210101_20211231"}
	for i, v := range values {
		out = append(out, WindowSample{
			WindowID:   ids[i],
			Metrics:    domain.Metrics{domain.MetricTotalReturn: domain.Metric(v)},
			BestParams: map[string]any{"period": 20},
		})
	}
	return out
}

func TestEvaluateCrossWindow(t *testing.T) {
	t.Run("below threshold is not viable", func(t *testing.T) {
		result, err := EvaluateCrossWindow(EvaluateCrossWindowInput{
			Strategy:           "Bollinger",
			Windows:            samples(0.1, 0.3, 0.2),
			Metric:             domain.MetricTotalReturn,
			ViabilityThreshold: 0.75,
		})
		require.NoError(t, err)
		require.InDelta(t, 0.2, float64(result.ViabilityScore), 1e-9)
		require.False(t, result.IsViable)
		require.Equal(t, 3, result.NWindows)
		require.InDelta(t, 0.1, float64(result.Summary[domain.MetricTotalReturn].Min), 1e-9)
		require.InDelta(t, 0.3, float64(result.Summary[domain.MetricTotalReturn].Max), 1e-9)
	})

	t.Run("above threshold is viable", func(t *testing.T) {
		result, err := EvaluateCrossWindow(EvaluateCrossWindowInput{
			Strategy:           "Bollinger",
			Windows:            samples(0.8, 0.9, 0.85),
			Metric:             domain.MetricTotalReturn,
			ViabilityThreshold: 0.75,
		})
		require.NoError(t, err)
		require.InDelta(t, 0.85, float64(result.ViabilityScore), 1e-9)
		require.True(t, result.IsViable)
		require.Equal(t, 1.0, float64(result.ParamConsistency))
	})

	t.Run("modal params and consistency", func(t *testing.T) {
		windows := samples(0.1, 0.2, 0.3)
		windows[0].BestParams = map[string]any{"period": 20, "std": 2.0}
		windows[1].BestParams = map[string]any{"period": 30, "std": 2.0}
		windows[2].BestParams = map[string]any{"period": 20, "std": 2.0}

		result, err := EvaluateCrossWindow(EvaluateCrossWindowInput{
			Strategy: "Bollinger",
			Windows:  windows,
			Metric:   domain.MetricTotalReturn,
		})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"period": 20, "std": 2.0}, result.MostCommonBestParams)
		require.InDelta(t, 2.0/3.0, float64(result.ParamConsistency), 1e-9)
		require.Equal(t, "20190101_20191231", result.WindowParams[0].WindowID)
	})

	t.Run("missing metric is not viable", func(t *testing.T) {
		result, err := EvaluateCrossWindow(EvaluateCrossWindowInput{
			Strategy: "Bollinger",
			Windows:  samples(0.9),
			Metric:   domain.MetricSharpeRatio,
		})
		require.NoError(t, err)
		require.False(t, result.IsViable)
	})

	t.Run("no windows", func(t *testing.T) {
		_, err := EvaluateCrossWindow(EvaluateCrossWindowInput{Strategy: "Bollinger"})
		require.Error(t, err)
	})
}
