package strategy

import (
	"path/filepath"
	"testing"

	"algotrader/internal/domain"
	"algotrader/internal/util"

	"github.com/stretchr/testify/require"
)

func TestSignalStrategyRegistry_Load(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, util.WriteJSONAtomic(filepath.Join(root, "AAPL", StrategySummaryFile), domain.StrategySummary{
		Symbol:              "AAPL",
		RecommendedStrategy: "Bollinger",
		IsViable:            true,
		Strategies: map[string]domain.StrategyScore{
			"Bollinger":    {ViabilityScore: 0.9, IsViable: true},
			"RSIReversion": {ViabilityScore: 0.8, IsViable: true},
			"MACDMomentum": {ViabilityScore: 0.1, IsViable: false},
		},
	}))
	require.NoError(t, util.WriteJSONAtomic(filepath.Join(root, "AAPL", "Bollinger", EvaluationResultFile), domain.CrossWindowEvaluation{
		Strategy: "Bollinger",
		MostCommonBestParams: map[string]any{
			"entry_conditions": []any{map[string]any{"BollingerBandsEntryCondition": map[string]any{"close_col": "close", "lower_col": "bb_lower"}}},
		},
	}))
	require.NoError(t, util.WriteJSONAtomic(filepath.Join(root, "AAPL", "RSIReversion", EvaluationResultFile), domain.CrossWindowEvaluation{
		Strategy:             "RSIReversion",
		MostCommonBestParams: map[string]any{},
	}))

	// GOOG has no viable strategy and falls back to the recommendation
	require.NoError(t, util.WriteJSONAtomic(filepath.Join(root, "GOOG", StrategySummaryFile), domain.StrategySummary{
		Symbol:              "GOOG",
		RecommendedStrategy: "MovingAverageCross",
		BestParams:          map[string]any{},
		Strategies: map[string]domain.StrategyScore{
			"MovingAverageCross": {ViabilityScore: 0.1},
		},
	}))

	registry := NewSignalStrategyRegistry(root, 0.5, 0.5)
	err := registry.Load([]string{"AAPL", "GOOG", "MSFT"})
	require.Error(t, err)
	require.Equal(t, []string{"AAPL", "GOOG"}, registry.Symbols())

	aapl, err := registry.Get("AAPL")
	require.NoError(t, err)
	require.Len(t, aapl.Members(), 2)
	require.Equal(t, 0.9, aapl.Members()[0].Weight)

	goog, err := registry.Get("GOOG")
	require.NoError(t, err)
	require.Len(t, goog.Members(), 1)

	_, err = registry.Get("MSFT")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPortfolioStrategyRegistry(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, util.WriteJSONAtomic(filepath.Join(root, "MomentumRankPortfolio", OptimizationResultFile), map[string]domain.WindowResult{
		"20190101_20191231": {Optimization: &domain.OptimizationResult{BestParams: map[string]any{
			"portfolio_strategy": map[string]any{"MomentumRankPortfolio": map[string]any{"top_n": 1}},
		}}},
		"20200101_20201231": {Optimization: &domain.OptimizationResult{BestParams: map[string]any{
			"portfolio_strategy": map[string]any{"MomentumRankPortfolio": map[string]any{"top_n": 4}},
		}}},
	}))

	registry := NewPortfolioStrategyRegistry(root)
	require.NoError(t, registry.Load("MomentumRankPortfolio"))
	require.NoError(t, registry.Load("EqualWeightSignalPortfolio"))

	active, err := registry.Active()
	require.NoError(t, err)
	require.Equal(t, "MomentumRankPortfolio(lookback=60, top_n=4)", active.Description())

	require.NoError(t, registry.SetActive("EqualWeightSignalPortfolio"))
	require.ErrorIs(t, registry.SetActive("Nope"), domain.ErrNotFound)

	require.NoError(t, registry.Snapshot())
	snapshot := registrySnapshot{}
	require.NoError(t, util.ReadJSON(filepath.Join(root, registrySnapshotFile), &snapshot))
	require.Equal(t, "EqualWeightSignalPortfolio", snapshot.Active)
	require.Len(t, snapshot.Strategies, 2)
}
