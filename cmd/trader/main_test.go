package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"algotrader/internal/app"
	"algotrader/internal/config"
	"algotrader/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_exitCode(t *testing.T) {
	require.Equal(t, 0, exitCode(nil))
	require.Equal(t, 2, exitCode(fmt.Errorf("%w: bad window", domain.ErrInvalidConfig)))
	require.Equal(t, 1, exitCode(fmt.Errorf("%w: 1 of 3 windows failed", errStageFailed)))
	require.Equal(t, 1, exitCode(errors.New("broker unreachable")))
}

func Test_windowFlags_input(t *testing.T) {
	cfg := config.Default()

	t.Run("flags override config", func(t *testing.T) {
		in, err := windowFlags{end: "2024-12-31", nTrials: 4, window: 2}.input(cfg)
		require.NoError(t, err)
		require.Equal(t, app.WalkForwardInput{
			End:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			NTrials:    4,
			WindowSize: 2,
		}, in)
	})

	t.Run("defaults come from config", func(t *testing.T) {
		in, err := windowFlags{end: "2024-12-31"}.input(cfg)
		require.NoError(t, err)
		require.Equal(t, cfg.WalkForward.NTrials, in.NTrials)
		require.Equal(t, cfg.WalkForward.WindowSize, in.WindowSize)
	})

	t.Run("bad date is a config error", func(t *testing.T) {
		_, err := windowFlags{end: "12/31/2024"}.input(cfg)
		require.Equal(t, 2, exitCode(err))
	})
}

func Test_reportWindows(t *testing.T) {
	log := zap.NewNop().Sugar()
	ok := app.WindowOutcome{}
	failed := app.WindowOutcome{FailedStage: domain.StageSignalTesting, Err: errors.New("no rows")}

	require.NoError(t, reportWindows(log, &app.WalkForwardResult{Windows: []app.WindowOutcome{ok, ok}}))
	err := reportWindows(log, &app.WalkForwardResult{Windows: []app.WindowOutcome{ok, failed}})
	require.ErrorIs(t, err, errStageFailed)
	require.Equal(t, 1, exitCode(err))
}

func Test_rootCmd_flagErrors(t *testing.T) {
	r := &runner{log: zap.NewNop().Sugar()}
	root := r.rootCmd()
	root.SetArgs([]string{"run", "walk-forward", "--trials", "many"})
	err := root.Execute()
	require.Equal(t, 2, exitCode(err))
}

func Test_strategiesCmd(t *testing.T) {
	r := &runner{log: zap.NewNop().Sugar()}
	root := r.rootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"strategies"})
	require.NoError(t, root.Execute())

	require.Contains(t, out.String(), "Bollinger")
	require.Contains(t, out.String(), "BollingerBandsEntryCondition")
	require.Contains(t, out.String(), "StopLossTakeProfitLogic")
	require.Nil(t, r.deps)
}

func Test_resetFlags_key(t *testing.T) {
	t.Run("builds the key", func(t *testing.T) {
		key, err := resetFlags{stage: "signal_testing", symbol: "aapl", strategy: "Bollinger", window: "20200101_20210101"}.key()
		require.NoError(t, err)
		require.Equal(t, domain.StageSignalTesting, key.Stage)
		require.Equal(t, "AAPL", key.Symbol)
		require.Equal(t, "20200101_20210101", key.WindowID)
	})

	t.Run("unknown stage is a config error", func(t *testing.T) {
		_, err := resetFlags{stage: "signal_tuning", symbol: "AAPL"}.key()
		require.Equal(t, 2, exitCode(err))
	})

	t.Run("symbol is required", func(t *testing.T) {
		_, err := resetFlags{stage: "data_ingest"}.key()
		require.ErrorIs(t, err, domain.ErrInvalidConfig)
	})
}

func Test_adminWatchlist(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REPORT_FROM_EMAIL", "")
	dir := t.TempDir()
	watchlist := filepath.Join(dir, "watchlist.txt")
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(watchlist, []byte("AAPL\n"), 0o644))
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(
		"data_dir: %s\nwatchlist_path: %s\nbroker:\n  provider: mock\n", filepath.Join(dir, "data"), watchlist,
	)), 0o644))

	exec := func(args ...string) string {
		r := &runner{log: zap.NewNop().Sugar()}
		root := r.rootCmd()
		out := &bytes.Buffer{}
		root.SetOut(out)
		root.SetArgs(append([]string{"--config", configPath}, args...))
		require.NoError(t, root.Execute())
		return out.String()
	}

	exec("admin", "watchlist", "add", "msft")
	require.Equal(t, "AAPL\nMSFT\n", exec("admin", "watchlist", "list"))
	exec("admin", "watchlist", "remove", "AAPL")
	require.Equal(t, "MSFT\n", exec("admin", "watchlist", "list"))
}
