package integration_tests

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"algotrader/cmd"
	"algotrader/internal/app"
	"algotrader/internal/config"
	"algotrader/internal/domain"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/require"
)

var testSymbols = []string{"AAPL", "MSFT"}

func loadBars(t *testing.T) map[string][]domain.Bar {
	f, err := os.Open("testdata/daily_bars.csv")
	require.NoError(t, err)
	defer f.Close()

	type Row struct {
		Date   string  `csv:"date"`
		Symbol string  `csv:"symbol"`
		Open   float64 `csv:"open"`
		High   float64 `csv:"high"`
		Low    float64 `csv:"low"`
		Close  float64 `csv:"close"`
		Volume float64 `csv:"volume"`
	}
	rows := []Row{}
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))

	out := map[string][]domain.Bar{}
	for _, row := range rows {
		date, err := time.Parse(time.DateOnly, row.Date)
		require.NoError(t, err)
		out[row.Symbol] = append(out[row.Symbol], domain.Bar{
			Timestamp: date,
			Symbol:    row.Symbol,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
			NumTrades: 1500,
			Vwap:      (row.High + row.Low + row.Close) / 3,
		})
	}
	return out
}

type backtestEnv struct {
	cfg       *config.Config
	bars      map[string][]domain.Bar
	stageData l1_service.StageDataService
	app       app.WalkForwardApp
}

func newBacktestEnv(t *testing.T) backtestEnv {
	dir := t.TempDir()
	watchlistPath := filepath.Join(dir, "watchlist.txt")
	require.NoError(t, os.WriteFile(watchlistPath, []byte("# traded\naapl\nMSFT\n"), 0o644))

	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.WatchlistPath = watchlistPath
	cfg.Broker.Provider = "mock"
	cfg.Broker.Account = "paper"
	cfg.PageSize = 250
	cfg.Optimization.NTrials = 3
	cfg.Optimization.Seed = 7
	cfg.Optimization.Objectives = []string{domain.MetricTotalReturn}
	cfg.Optimization.MaxWorkers = 2
	cfg.Portfolio.InitialBalance = 10000
	cfg.Portfolio.TransactionCost = 0.001
	require.NoError(t, cfg.Validate())

	bars := loadBars(t)
	broker := repository.NewPaperBroker(repository.PaperBrokerInput{Account: "paper", Bars: bars})
	stageData := l1_service.NewStageDataService(cfg.DataDir)
	return backtestEnv{
		cfg:       cfg,
		bars:      bars,
		stageData: stageData,
		app:       cmd.NewWalkForwardApp(cfg, stageData, repository.NewFileWatchlistRepository(watchlistPath), broker),
	}
}
