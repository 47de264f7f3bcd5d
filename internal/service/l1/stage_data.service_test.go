package l1_service

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"algotrader/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testBars(symbol string, n int) *domain.Frame {
	bars := make([]domain.Bar, n)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = domain.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Symbol:    symbol,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000 + float64(i),
			NumTrades: 10,
			Vwap:      c,
		}
	}
	return domain.FrameFromBars(symbol, bars)
}

func TestStageDataService_Paths(t *testing.T) {
	h := NewStageDataService("/data")

	t.Run("empty segments are omitted", func(t *testing.T) {
		require.Equal(t, "/data/data_ingest/AAPL", h.GetDirectory(PathKey{Stage: domain.StageDataIngest, Symbol: "AAPL"}))
		require.Equal(t,
			"/data/signal_optimization/AAPL/Bollinger/20200101_20210101",
			h.GetDirectory(PathKey{Stage: domain.StageSignalOptimization, Symbol: "AAPL", Strategy: "Bollinger", WindowID: "20200101_20210101"}),
		)
		require.Equal(t, "/data/evaluation", h.GetDirectory(PathKey{Stage: domain.StageEvaluation}))
	})

	t.Run("file path", func(t *testing.T) {
		require.Equal(t,
			"/data/signal_optimization/AAPL/Bollinger/optimization_result.json",
			h.GetFilePath(PathKey{Stage: domain.StageSignalOptimization, Symbol: "AAPL", Strategy: "Bollinger"}, "optimization_result", "json"),
		)
	})
}

func TestStageDataService_Markers(t *testing.T) {
	h := NewStageDataService(t.TempDir())
	key := PathKey{Stage: domain.StageFeatureEngineering, Symbol: "AAPL", WindowID: "20200101_20210101"}

	t.Run("reads do not create directories", func(t *testing.T) {
		require.False(t, h.IsStageDone(key))
		pages, err := h.ListPages(key, "AAPL")
		require.NoError(t, err)
		require.Empty(t, pages)
		_, err = os.Stat(h.GetDirectory(key))
		require.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("error then done leaves one marker", func(t *testing.T) {
		require.NoError(t, h.WriteError(key, "AAPL", errors.New("boom")))
		require.True(t, h.HasError(key))
		require.False(t, h.IsStageDone(key))

		require.NoError(t, h.MarkStageDone(key))
		require.True(t, h.IsStageDone(key))
		require.False(t, h.HasError(key))
	})

	t.Run("done then error leaves one marker", func(t *testing.T) {
		require.NoError(t, h.WriteError(key, "AAPL", errors.New("again")))
		require.False(t, h.IsStageDone(key))
		require.True(t, h.HasError(key))

		data, err := os.ReadFile(filepath.Join(h.GetDirectory(key), "AAPL.error.csv"))
		require.NoError(t, err)
		require.Contains(t, string(data), "boom")
		require.Contains(t, string(data), "again")
	})

	t.Run("clear directory", func(t *testing.T) {
		require.NoError(t, h.ClearDirectory(key))
		require.False(t, h.HasError(key))
		entries, err := os.ReadDir(h.GetDirectory(key))
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestStageDataService_Pages(t *testing.T) {
	h := NewStageDataService(t.TempDir())
	key := PathKey{Stage: domain.StageDataIngest, Symbol: "AAPL", WindowID: "20200101_20210101"}

	t.Run("pages round trip in order", func(t *testing.T) {
		f := testBars("AAPL", 25)
		require.NoError(t, h.WritePages(key, f, 10))

		pages, err := h.ListPages(key, "AAPL")
		require.NoError(t, err)
		require.Len(t, pages, 3)
		require.Equal(t, "AAPL_page1.csv", filepath.Base(pages[0]))
		require.Equal(t, "AAPL_page3.csv", filepath.Base(pages[2]))

		got, err := h.ReadPages(key, "AAPL")
		require.NoError(t, err)
		require.Equal(t, "AAPL", got.Symbol)
		require.Equal(t, f.Columns(), got.Columns())
		if diff := cmp.Diff(f.Bars(), got.Bars()); diff != "" {
			t.Fatalf("bars mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unavailable values survive", func(t *testing.T) {
		f := testBars("MSFT", 3)
		require.NoError(t, f.SetColumn("sma_20", []float64{math.NaN(), math.NaN(), 101}))
		require.NoError(t, h.WritePage(key, "MSFT", 1, f))

		got, err := h.ReadPages(key, "MSFT")
		require.NoError(t, err)
		col, ok := got.Column("sma_20")
		require.True(t, ok)
		require.True(t, math.IsNaN(col[0]))
		require.Equal(t, 101.0, col[2])
	})

	t.Run("corrupt cell is reported", func(t *testing.T) {
		require.NoError(t, h.WritePage(key, "TSLA", 1, testBars("TSLA", 2)))
		page := filepath.Join(h.GetDirectory(key), "TSLA_page1.csv")
		csv := "timestamp,symbol,close,sma_20\n" +
			"2020-01-02T00:00:00Z,TSLA,100,\n" +
			"2020-01-03T00:00:00Z,TSLA,101,abc\n"
		require.NoError(t, os.WriteFile(page, []byte(csv), 0o644))

		_, err := h.ReadPages(key, "TSLA")
		require.ErrorIs(t, err, strconv.ErrSyntax)
		require.Contains(t, err.Error(), "TSLA_page1.csv")
		require.Contains(t, err.Error(), "row 2 column sma_20")
	})

	t.Run("no pages", func(t *testing.T) {
		_, err := h.ReadPages(key, "GOOG")
		require.ErrorIs(t, err, domain.ErrEmptyFrame)
	})
}

func TestStageDataService_MergeJSON(t *testing.T) {
	h := NewStageDataService(t.TempDir())
	key := PathKey{Stage: domain.StageSignalOptimization, Symbol: "AAPL", Strategy: "Bollinger"}

	t.Run("deep merge keeps siblings", func(t *testing.T) {
		require.NoError(t, h.MergeJSON(key, "optimization_result", map[string]any{
			"w1": map[string]any{"optimization": map[string]any{"best_value": 1.0}},
		}))
		require.NoError(t, h.MergeJSON(key, "optimization_result", map[string]any{
			"w1": map[string]any{"test": map[string]any{"strategy": "Bollinger"}},
		}))

		got := map[string]any{}
		require.NoError(t, h.ReadJSON(key, "optimization_result", &got))
		want := map[string]any{
			"w1": map[string]any{
				"optimization": map[string]any{"best_value": 1.0},
				"test":         map[string]any{"strategy": "Bollinger"},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("merged json mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("concurrent writers do not lose keys", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				require.NoError(t, h.MergeJSON(key, "concurrent", map[string]any{id: true}))
			}(id)
		}
		wg.Wait()

		got := map[string]any{}
		require.NoError(t, h.ReadJSON(key, "concurrent", &got))
		require.Len(t, got, len(ids))
	})

	t.Run("missing file", func(t *testing.T) {
		err := h.ReadJSON(key, "nothing", &map[string]any{})
		require.True(t, errors.Is(err, os.ErrNotExist))
	})
}
