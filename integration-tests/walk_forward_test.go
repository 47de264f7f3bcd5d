package integration_tests

import (
	"context"
	"testing"
	"time"

	"algotrader/internal/app"
	"algotrader/internal/domain"
	l1_service "algotrader/internal/service/l1"
	l2_service "algotrader/internal/service/l2"

	"github.com/stretchr/testify/require"
)

func stageNames(outcome app.WindowOutcome) []domain.Stage {
	out := []domain.Stage{}
	for _, s := range outcome.Stages {
		out = append(out, s.Stage)
	}
	return out
}

func TestWalkForward(t *testing.T) {
	ctx := context.Background()
	env := newBacktestEnv(t)
	in := app.WalkForwardInput{
		End:        time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		NTrials:    2,
		WindowSize: 1,
	}

	result, err := env.app.Run(ctx, in)
	require.NoError(t, err)
	for _, w := range result.Windows {
		require.NoError(t, w.Err)
	}
	require.True(t, result.OK())
	require.Len(t, result.Windows, 2)
	require.Equal(t, "20200101_20210101", result.Windows[0].Window.ID())
	require.Equal(t, "20210101_20220101", result.Windows[1].Window.ID())
	require.Equal(t, []domain.Stage{
		domain.StageDataIngest,
		domain.StageFeatureEngineering,
		domain.StageSignalOptimization,
		domain.StageDataIngest,
		domain.StageFeatureEngineering,
		domain.StageSignalTesting,
	}, stageNames(result.Windows[0]))

	// the second train range is the first test range
	require.Empty(t, result.Windows[1].Stages[0].Completed)
	require.Len(t, result.Windows[1].Stages[0].Skipped, len(testSymbols))

	for _, symbol := range testSymbols {
		for _, w := range result.Windows {
			key := l1_service.PathKey{Stage: domain.StageSignalTesting, Symbol: symbol, Strategy: "Bollinger", WindowID: w.Window.ID()}
			require.True(t, env.stageData.IsStageDone(key), key.String())
		}
	}

	t.Run("rerun skips every completed stage", func(t *testing.T) {
		rerun, err := env.app.Run(ctx, in)
		require.NoError(t, err)
		require.True(t, rerun.OK())
		for _, w := range rerun.Windows {
			for _, stage := range w.Stages {
				require.Empty(t, stage.Completed, "%s in %s", stage.Stage, w.Window.ID())
				require.NotEmpty(t, stage.Skipped, "%s in %s", stage.Stage, w.Window.ID())
			}
		}
	})

	t.Run("a cleared stage directory runs again", func(t *testing.T) {
		key := l1_service.PathKey{Stage: domain.StageSignalTesting, Symbol: "MSFT", Strategy: "Bollinger", WindowID: result.Windows[1].Window.ID()}
		require.NoError(t, env.stageData.ClearDirectory(key))
		require.False(t, env.stageData.IsStageDone(key))

		rerun, err := env.app.Run(ctx, in)
		require.NoError(t, err)
		require.True(t, rerun.OK())
		signalTesting := rerun.Windows[1].Stages[5]
		require.Equal(t, []string{key.String()}, signalTesting.Completed)
		require.True(t, env.stageData.IsStageDone(key))
	})

	evaluation, summary, err := env.app.Evaluate(ctx)
	require.NoError(t, err)
	require.NoError(t, evaluation.Err())
	require.Len(t, summary, len(testSymbols))
	for _, symbol := range testSymbols {
		require.Equal(t, "Bollinger", summary[symbol].RecommendedStrategy)
		require.Equal(t, symbol, summary[symbol].Symbol)
	}

	stored := domain.GlobalSummary{}
	require.NoError(t, env.stageData.ReadJSON(l1_service.PathKey{Stage: domain.StageSignalOptimization}, l2_service.GlobalSummaryName, &stored))
	require.Equal(t, summary[testSymbols[0]].RecommendedStrategy, stored[testSymbols[0]].RecommendedStrategy)

	portfolio, err := env.app.RunPortfolio(ctx, in)
	require.NoError(t, err)
	require.True(t, portfolio.OK())
	for _, w := range portfolio.Windows {
		require.Equal(t, []domain.Stage{domain.StagePortfolioOptimization, domain.StagePortfolioTesting}, stageNames(w))
		key := l1_service.PathKey{Stage: domain.StagePortfolioTesting, Symbol: l2_service.PortfolioSymbol, Strategy: env.cfg.Portfolio.Strategy, WindowID: w.Window.ID()}
		require.True(t, env.stageData.IsStageDone(key), key.String())
	}
}

func TestWalkForward_invalidInput(t *testing.T) {
	env := newBacktestEnv(t)
	_, err := env.app.Run(context.Background(), app.WalkForwardInput{End: time.Now(), NTrials: 0, WindowSize: 1})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
