package l2_service

import (
	"context"
	"fmt"
	"sort"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
)

type DataIngestCoordinator interface {
	Run(ctx context.Context, r domain.DateRange) (*domain.StageResult, error)
}

type DataIngestCoordinatorInput struct {
	StageDataService         l1_service.StageDataService
	WatchlistRepository      repository.WatchlistRepository
	HistoricalDataRepository repository.HistoricalDataRepository
	// WarmupDays of history are fetched ahead of the range start
	WarmupDays int
	PageSize   int
}

type dataIngestCoordinatorHandler struct {
	StageDataService         l1_service.StageDataService
	WatchlistRepository      repository.WatchlistRepository
	HistoricalDataRepository repository.HistoricalDataRepository
	WarmupDays               int
	PageSize                 int
}

func NewDataIngestCoordinator(in DataIngestCoordinatorInput) DataIngestCoordinator {
	return dataIngestCoordinatorHandler(in)
}

// Run pages bars for every watchlist symbol into
// data_ingest/<symbol>/<range id>/. A symbol with no bars is still done.
func (h dataIngestCoordinatorHandler) Run(ctx context.Context, r domain.DateRange) (*domain.StageResult, error) {
	result := domain.NewStageResult(domain.StageDataIngest)
	symbols, err := resolveWatchlist(ctx, h.WatchlistRepository)
	if err != nil {
		return nil, err
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		key := l1_service.PathKey{Stage: domain.StageDataIngest, Symbol: symbol, WindowID: r.ID()}
		if skipDone(ctx, h.StageDataService, result, key) {
			continue
		}
		if err := h.ingestSymbol(ctx, key, r); err != nil {
			recordFailure(ctx, h.StageDataService, result, key, symbol, err)
			continue
		}
		result.Complete(key.String())
	}
	return result, nil
}

func (h dataIngestCoordinatorHandler) ingestSymbol(ctx context.Context, key l1_service.PathKey, r domain.DateRange) error {
	log := logger.FromContext(ctx)
	if err := h.StageDataService.ClearDirectory(key); err != nil {
		return err
	}

	in := repository.GetBarsInput{
		Symbol: key.Symbol,
		Start:  r.Start.AddDate(0, 0, -h.WarmupDays),
		End:    r.End,
		Limit:  h.PageSize,
	}
	frames := []*domain.Frame{}
	for {
		page, err := h.HistoricalDataRepository.GetBars(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to get bars for %s: %w", key.Symbol, err)
		}
		if len(page.Bars) > 0 {
			f, err := barPageFrame(key.Symbol, page.Bars)
			if err != nil {
				return fmt.Errorf("invalid bar page for %s at token %q: %w", key.Symbol, in.PageToken, err)
			}
			frames = append(frames, f)
		}
		if page.NextPageToken == "" || page.NextPageToken == in.PageToken {
			break
		}
		in.PageToken = page.NextPageToken
	}

	if len(frames) == 0 {
		log.Warnw("no bars returned", "symbol", key.Symbol, "start", in.Start, "end", in.End)
		return h.StageDataService.MarkStageDone(key)
	}

	f, err := domain.ConcatFrames(frames...)
	if err != nil {
		return err
	}
	if err := h.StageDataService.WritePages(key, f, h.PageSize); err != nil {
		return fmt.Errorf("failed to write pages for %s: %w", key.Symbol, err)
	}
	log.Infow("ingested bars", "symbol", key.Symbol, "rows", f.Len(), "range", r.ID())
	return h.StageDataService.MarkStageDone(key)
}

// barPageFrame validates one page, flipping descending pages to ascending.
func barPageFrame(symbol string, bars []domain.Bar) (*domain.Frame, error) {
	sorted := append([]domain.Bar{}, bars...)
	if len(sorted) > 1 && sorted[0].Timestamp.After(sorted[len(sorted)-1].Timestamp) {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
	}
	for _, b := range sorted {
		if b.Symbol != "" && b.Symbol != symbol {
			return nil, fmt.Errorf("%w: bar for %s in page of %s", domain.ErrInvalidParams, b.Symbol, symbol)
		}
	}

	f := domain.FrameFromBars(symbol, sorted)
	f.Rename(domain.StageDataIngest.Info().ColumnRenames)
	if err := f.Require(domain.StageDataIngest.Info().RequiredColumns...); err != nil {
		return nil, err
	}
	if err := f.ValidateMonotonic(); err != nil {
		return nil, err
	}
	return f, nil
}
