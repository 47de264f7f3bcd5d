package l2_service

import (
	"context"
	"fmt"

	"algotrader/internal/calculator"
	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
)

type FeatureEngineeringCoordinator interface {
	Run(ctx context.Context, r domain.DateRange) (*domain.StageResult, error)
}

type FeatureEngineeringCoordinatorInput struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	FeatureEngineer     calculator.FeatureEngineer
	PageSize            int
}

type featureEngineeringCoordinatorHandler struct {
	StageDataService    l1_service.StageDataService
	WatchlistRepository repository.WatchlistRepository
	FeatureEngineer     calculator.FeatureEngineer
	PageSize            int
}

func NewFeatureEngineeringCoordinator(in FeatureEngineeringCoordinatorInput) FeatureEngineeringCoordinator {
	return featureEngineeringCoordinatorHandler(in)
}

func (h featureEngineeringCoordinatorHandler) Run(ctx context.Context, r domain.DateRange) (*domain.StageResult, error) {
	result := domain.NewStageResult(domain.StageFeatureEngineering)
	symbols, err := resolveWatchlist(ctx, h.WatchlistRepository)
	if err != nil {
		return nil, err
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		key := l1_service.PathKey{Stage: domain.StageFeatureEngineering, Symbol: symbol, WindowID: r.ID()}
		if skipDone(ctx, h.StageDataService, result, key) {
			continue
		}
		if err := h.engineerSymbol(ctx, key); err != nil {
			recordFailure(ctx, h.StageDataService, result, key, symbol, err)
			continue
		}
		result.Complete(key.String())
	}
	return result, nil
}

func (h featureEngineeringCoordinatorHandler) engineerSymbol(ctx context.Context, key l1_service.PathKey) error {
	info := key.Stage.Info()
	source := l1_service.PathKey{Stage: info.Predecessor, Symbol: key.Symbol, WindowID: key.WindowID}
	if !h.StageDataService.IsStageDone(source) {
		return fmt.Errorf("%w: %s is not done", domain.ErrNotFound, source)
	}

	bars, err := h.StageDataService.ReadPages(source, key.Symbol)
	if err != nil {
		return err
	}
	bars.Rename(info.ColumnRenames)
	if err := bars.Require(info.RequiredColumns...); err != nil {
		return err
	}

	features, err := h.FeatureEngineer.Engineer(bars)
	if err != nil {
		return fmt.Errorf("failed to engineer features for %s: %w", key.Symbol, err)
	}
	if err := validateFeatures(bars, features, h.FeatureEngineer.Columns()); err != nil {
		return err
	}

	if err := h.StageDataService.ClearDirectory(key); err != nil {
		return err
	}
	if err := h.StageDataService.WritePages(key, features, h.PageSize); err != nil {
		return fmt.Errorf("failed to write features for %s: %w", key.Symbol, err)
	}
	logger.FromContext(ctx).Infow("engineered features", "symbol", key.Symbol, "rows", features.Len(), "lookback", features.Lookback)
	return h.StageDataService.MarkStageDone(key)
}

func validateFeatures(in, out *domain.Frame, columns []string) error {
	if in.Len() != out.Len() {
		return fmt.Errorf("feature frame has %d rows, input has %d", out.Len(), in.Len())
	}
	return out.Require(columns...)
}
