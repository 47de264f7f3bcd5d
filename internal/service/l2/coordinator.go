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

// PortfolioSymbol is the symbol segment of every portfolio stage path.
const PortfolioSymbol = "portfolio"

// BacktestSettings are the account assumptions shared by the signal and
// portfolio stages.
type BacktestSettings struct {
	InitialBalance  float64
	TransactionCost float64
	MinLot          float64
	Leverage        float64
	Slippage        float64
}

func resolveWatchlist(ctx context.Context, watchlistRepository repository.WatchlistRepository) ([]string, error) {
	symbols, err := watchlistRepository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watchlist: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: watchlist is empty", domain.ErrInvalidConfig)
	}
	sorted := append([]string{}, symbols...)
	sort.Strings(sorted)
	return sorted, nil
}

// loadStageFrame reads the feature pages of symbol for r, trimmed to r.
func loadStageFrame(stageData l1_service.StageDataService, stage domain.Stage, symbol string, r domain.DateRange) (*domain.Frame, error) {
	info := stage.Info()
	key := l1_service.PathKey{Stage: info.Predecessor, Symbol: symbol, WindowID: r.ID()}
	if !stageData.IsStageDone(key) {
		return nil, fmt.Errorf("%w: %s has no completed %s", domain.ErrNotFound, symbol, key)
	}
	f, err := stageData.ReadPages(key, symbol)
	if err != nil {
		return nil, err
	}
	f.Rename(info.ColumnRenames)
	if err := f.Require(info.RequiredColumns...); err != nil {
		return nil, err
	}
	trimmed := f.Between(r.Start, r.End)
	if trimmed.Len() < 2 {
		return nil, fmt.Errorf("%w: %s has %d rows in %s", domain.ErrEmptyFrame, symbol, trimmed.Len(), r.ID())
	}
	return trimmed, nil
}

// recordFailure writes the .error marker for key and records the failure.
// The marker write is best effort so one broken directory cannot stop the
// other symbols.
func recordFailure(ctx context.Context, stageData l1_service.StageDataService, result *domain.StageResult, key l1_service.PathKey, name string, cause error) {
	log := logger.FromContext(ctx)
	log.Errorw("stage failed", "stage", key.Stage, "key", key.String(), "error", cause)
	if err := stageData.WriteError(key, name, cause); err != nil {
		log.Errorw("failed to write stage error", "key", key.String(), "error", err)
	}
	result.Fail(key.String(), cause)
}

func skipDone(ctx context.Context, stageData l1_service.StageDataService, result *domain.StageResult, key l1_service.PathKey) bool {
	if !stageData.IsStageDone(key) {
		return false
	}
	logger.FromContext(ctx).Infow("stage already done", "key", key.String())
	result.Skip(key.String())
	return true
}
