package l2_service

import (
	"context"
	"errors"
	"testing"
	"time"

	"algotrader/internal/calculator"
	"algotrader/internal/domain"
	"algotrader/internal/repository"
	mock_repository "algotrader/internal/repository/mocks"
	l1_service "algotrader/internal/service/l1"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_dataIngestCoordinatorHandler_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("pages bars with warm up history", func(t *testing.T) {
		p := newTestPipeline(t, "AAPL")
		handler := NewDataIngestCoordinator(DataIngestCoordinatorInput{
			StageDataService:         p.data,
			WatchlistRepository:      p.watchlist,
			HistoricalDataRepository: p.broker,
			WarmupDays:               30,
			PageSize:                 100,
		})
		result, err := handler.Run(ctx, testTrain)
		require.NoError(t, err)
		require.NoError(t, result.Err())

		key := l1_service.PathKey{Stage: domain.StageDataIngest, Symbol: "AAPL", WindowID: testTrain.ID()}
		require.Equal(t, []string{key.String()}, result.Completed)
		require.True(t, p.data.IsStageDone(key))

		pages, err := p.data.ListPages(key, "AAPL")
		require.NoError(t, err)
		require.Len(t, pages, 4)

		f, err := p.data.ReadPages(key, "AAPL")
		require.NoError(t, err)
		require.Equal(t, 395, f.Len())
		require.Equal(t, testTrain.Start.AddDate(0, 0, -30), f.Timestamps[0])
		require.NoError(t, f.ValidateMonotonic())

		first, err := p.data.ReadPage(pages[0])
		require.NoError(t, err)
		require.Equal(t, 100, first.Len())
		require.Equal(t, f.Timestamps[0], first.Timestamps[0])
	})

	t.Run("done symbols are skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		bars := mock_repository.NewMockHistoricalDataRepository(ctrl)
		p := newTestPipeline(t, "AAPL")
		key := l1_service.PathKey{Stage: domain.StageDataIngest, Symbol: "AAPL", WindowID: testTrain.ID()}
		require.NoError(t, p.data.MarkStageDone(key))

		handler := NewDataIngestCoordinator(DataIngestCoordinatorInput{
			StageDataService:         p.data,
			WatchlistRepository:      p.watchlist,
			HistoricalDataRepository: bars,
		})
		result, err := handler.Run(ctx, testTrain)
		require.NoError(t, err)
		require.Equal(t, []string{key.String()}, result.Skipped)
		require.Empty(t, result.Completed)
	})

	t.Run("empty responses are still done", func(t *testing.T) {
		p := newTestPipeline(t, "AAPL")
		p.watchlist = repository.NewMemoryWatchlistRepository("NONE")
		handler := NewDataIngestCoordinator(DataIngestCoordinatorInput{
			StageDataService:         p.data,
			WatchlistRepository:      p.watchlist,
			HistoricalDataRepository: p.broker,
			PageSize:                 100,
		})
		result, err := handler.Run(ctx, testTrain)
		require.NoError(t, err)
		require.True(t, result.OK())

		key := l1_service.PathKey{Stage: domain.StageDataIngest, Symbol: "NONE", WindowID: testTrain.ID()}
		require.True(t, p.data.IsStageDone(key))
		require.False(t, p.data.HasError(key))
	})

	t.Run("descending pages are flipped and failures stay per symbol", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mock_repository.NewMockHistoricalDataRepository(ctrl)
		p := newTestPipeline(t)
		p.watchlist = repository.NewMemoryWatchlistRepository("AAPL", "BAD")

		bars := dailyBars("AAPL", testTrain.Start, testTrain.Start.AddDate(0, 0, 4), 0)
		descending := []domain.Bar{bars[3], bars[2], bars[1], bars[0]}
		source.EXPECT().
			GetBars(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, in repository.GetBarsInput) (*repository.BarPage, error) {
				if in.Symbol == "BAD" {
					return nil, errors.New("403 forbidden")
				}
				return &repository.BarPage{Bars: descending}, nil
			}).
			Times(2)

		handler := NewDataIngestCoordinator(DataIngestCoordinatorInput{
			StageDataService:         p.data,
			WatchlistRepository:      p.watchlist,
			HistoricalDataRepository: source,
		})
		result, err := handler.Run(ctx, testTrain)
		require.NoError(t, err)
		require.False(t, result.OK())
		require.Len(t, result.Completed, 1)
		require.Len(t, result.Failed, 1)

		good := l1_service.PathKey{Stage: domain.StageDataIngest, Symbol: "AAPL", WindowID: testTrain.ID()}
		f, err := p.data.ReadPages(good, "AAPL")
		require.NoError(t, err)
		require.Equal(t, []time.Time{bars[0].Timestamp, bars[1].Timestamp, bars[2].Timestamp, bars[3].Timestamp}, f.Timestamps)

		bad := l1_service.PathKey{Stage: domain.StageDataIngest, Symbol: "BAD", WindowID: testTrain.ID()}
		require.True(t, p.data.HasError(bad))
		require.False(t, p.data.IsStageDone(bad))
	})
}

func Test_barPageFrame(t *testing.T) {
	bars := dailyBars("AAPL", testTrain.Start, testTrain.Start.AddDate(0, 0, 3), 0)

	t.Run("duplicate timestamps are rejected", func(t *testing.T) {
		_, err := barPageFrame("AAPL", []domain.Bar{bars[0], bars[1], bars[1], bars[2]})
		require.ErrorIs(t, err, domain.ErrNonMonotonicTimestamp)
	})

	t.Run("foreign symbol is rejected", func(t *testing.T) {
		other := bars[1]
		other.Symbol = "MSFT"
		_, err := barPageFrame("AAPL", []domain.Bar{bars[0], other})
		require.ErrorIs(t, err, domain.ErrInvalidParams)
	})
}

func Test_featureEngineeringCoordinatorHandler_Run(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, "AAPL")
	p.watchlist = repository.NewMemoryWatchlistRepository("AAPL", "MISSING")

	ingest := NewDataIngestCoordinator(DataIngestCoordinatorInput{
		StageDataService:         p.data,
		WatchlistRepository:      repository.NewMemoryWatchlistRepository("AAPL"),
		HistoricalDataRepository: p.broker,
		WarmupDays:               300,
		PageSize:                 200,
	})
	_, err := ingest.Run(ctx, testTrain)
	require.NoError(t, err)

	fe := calculator.NewFeatureEngineer()
	handler := NewFeatureEngineeringCoordinator(FeatureEngineeringCoordinatorInput{
		StageDataService:    p.data,
		WatchlistRepository: p.watchlist,
		FeatureEngineer:     fe,
		PageSize:            200,
	})
	result, err := handler.Run(ctx, testTrain)
	require.NoError(t, err)
	require.Len(t, result.Completed, 1)
	require.Len(t, result.Failed, 1)

	source := l1_service.PathKey{Stage: domain.StageDataIngest, Symbol: "AAPL", WindowID: testTrain.ID()}
	key := l1_service.PathKey{Stage: domain.StageFeatureEngineering, Symbol: "AAPL", WindowID: testTrain.ID()}
	bars, err := p.data.ReadPages(source, "AAPL")
	require.NoError(t, err)
	features, err := p.data.ReadPages(key, "AAPL")
	require.NoError(t, err)
	require.Equal(t, bars.Len(), features.Len())
	require.NoError(t, features.Require(fe.Columns()...))

	missing := l1_service.PathKey{Stage: domain.StageFeatureEngineering, Symbol: "MISSING", WindowID: testTrain.ID()}
	require.True(t, p.data.HasError(missing))

	t.Run("rerun is skipped", func(t *testing.T) {
		p.watchlist = repository.NewMemoryWatchlistRepository("AAPL")
		handler := NewFeatureEngineeringCoordinator(FeatureEngineeringCoordinatorInput{
			StageDataService:    p.data,
			WatchlistRepository: p.watchlist,
			FeatureEngineer:     fe,
			PageSize:            200,
		})
		result, err := handler.Run(ctx, testTrain)
		require.NoError(t, err)
		require.Equal(t, []string{key.String()}, result.Skipped)
	})
}
