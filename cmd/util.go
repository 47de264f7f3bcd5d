package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"algotrader/internal/app"
	"algotrader/internal/calculator"
	"algotrader/internal/config"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
	l2_service "algotrader/internal/service/l2"
	"algotrader/internal/util"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Dependencies is everything the trader commands are built from.
type Dependencies struct {
	Config *config.Config
	Db     *sql.DB
	Log    *zap.SugaredLogger

	Broker                      repository.BrokerRepository
	HistoricalDataRepository    repository.HistoricalDataRepository
	OrderRepository             repository.OrderRepository
	TradeRepository             repository.TradeRepository
	PositionRepository          repository.PositionRepository
	DataStreamSessionRepository repository.DataStreamSessionRepository
	WatchlistRepository         repository.WatchlistRepository
	EmailRepository             repository.EmailRepository

	StageDataService      l1_service.StageDataService
	TradeReconcileService l1_service.TradeReconcileService
	WalkForwardApp        app.WalkForwardApp
}

func CloseDependencies(d *Dependencies) error {
	errs := []error{}
	if d.Broker != nil {
		errs = append(errs, d.Broker.Close())
	}
	if d.Db != nil {
		errs = append(errs, d.Db.Close())
	}
	return errors.Join(errs...)
}

func newBroker(cfg *config.Config, log *zap.SugaredLogger) repository.BrokerRepository {
	if cfg.Broker.Provider == "mock" {
		return repository.NewPaperBroker(repository.PaperBrokerInput{
			Account:  cfg.Broker.Account,
			Cash:     cfg.Portfolio.InitialBalance,
			AutoFill: true,
			Log:      log,
		})
	}
	return repository.NewAlpacaRepository(repository.AlpacaRepositoryInput{
		APIKey:             cfg.Broker.APIKey,
		APISecret:          cfg.Broker.APISecret,
		BaseURL:            cfg.Broker.BaseURL,
		DataURL:            cfg.Broker.DataURL,
		Feed:               cfg.Broker.Feed,
		Account:            cfg.Broker.Account,
		RetryLimit:         cfg.Broker.RetryLimit,
		MinRequestInterval: cfg.Broker.MinRequestInterval,
	})
}

func InitializeDependencies(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Dependencies, error) {
	d := &Dependencies{
		Config: cfg,
		Log:    log,
		Broker: newBroker(cfg, log),
	}

	d.HistoricalDataRepository = d.Broker
	if cfg.Broker.HistoricalSource == "yahoo" {
		d.HistoricalDataRepository = repository.NewYahooRepository(cfg.Broker.MinRequestInterval)
	}

	if cfg.Database.DSN != "" {
		dbConn, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		if err := dbConn.PingContext(ctx); err != nil {
			dbConn.Close()
			return nil, fmt.Errorf("failed to reach db: %w", err)
		}
		d.Db = dbConn
		d.OrderRepository = repository.NewOrderRepository(dbConn)
		d.TradeRepository = repository.NewTradeRepository(dbConn)
		d.PositionRepository = repository.NewPositionRepository(dbConn)
		d.DataStreamSessionRepository = repository.NewDataStreamSessionRepository(dbConn)
	} else {
		log.Warnw("no database configured, live state is kept in memory")
		d.OrderRepository = repository.NewMemoryOrderRepository()
		d.TradeRepository = repository.NewMemoryTradeRepository()
		d.PositionRepository = repository.NewMemoryPositionRepository()
		d.DataStreamSessionRepository = repository.NewMemoryDataStreamSessionRepository()
	}
	d.WatchlistRepository = repository.NewFileWatchlistRepository(cfg.WatchlistPath)
	if cfg.WatchlistSource == "db" && d.Db != nil {
		d.WatchlistRepository = repository.NewWatchlistRepository(d.Db)
	}

	if cfg.Report.FromEmail != "" {
		emailRepository, err := repository.NewEmailRepository(ctx, cfg.Report.Region, cfg.Report.FromEmail)
		if err != nil {
			return nil, fmt.Errorf("failed to create email repository: %w", err)
		}
		d.EmailRepository = emailRepository
	}

	d.StageDataService = l1_service.NewStageDataService(cfg.DataDir)
	d.TradeReconcileService = l1_service.NewTradeReconcileService(l1_service.TradeReconcileServiceInput{
		Broker:          d.Broker,
		TradeRepository: d.TradeRepository,
		Clock:           util.NewClock(),
		Account:         cfg.Broker.Account,
		DaysToSettle:    cfg.Session.DaysToSettle,
	})

	d.WalkForwardApp = NewWalkForwardApp(cfg, d.StageDataService, d.WatchlistRepository, d.HistoricalDataRepository)
	return d, nil
}

// NewWalkForwardApp wires every pipeline coordinator from cfg.
func NewWalkForwardApp(cfg *config.Config, stageData l1_service.StageDataService, watchlist repository.WatchlistRepository, historical repository.HistoricalDataRepository) app.WalkForwardApp {
	optimization := l2_service.OptimizationSettings{
		NTrials:    cfg.Optimization.NTrials,
		Seed:       cfg.Optimization.Seed,
		Objectives: cfg.Optimization.Objectives,
		Directions: cfg.Optimization.Directions,
		MaxWorkers: cfg.Optimization.MaxWorkers,
	}
	backtest := l2_service.BacktestSettings{
		InitialBalance:  cfg.Portfolio.InitialBalance,
		TransactionCost: cfg.Portfolio.TransactionCost,
		MinLot:          cfg.Portfolio.MinLot,
		Leverage:        cfg.Portfolio.Leverage,
		Slippage:        cfg.Portfolio.Slippage,
	}
	return app.NewWalkForwardApp(app.WalkForwardAppInput{
		DataIngestCoordinator: l2_service.NewDataIngestCoordinator(l2_service.DataIngestCoordinatorInput{
			StageDataService:         stageData,
			WatchlistRepository:      watchlist,
			HistoricalDataRepository: historical,
			WarmupDays:               cfg.WarmupDays,
			PageSize:                 cfg.PageSize,
		}),
		FeatureEngineeringCoordinator: l2_service.NewFeatureEngineeringCoordinator(l2_service.FeatureEngineeringCoordinatorInput{
			StageDataService:    stageData,
			WatchlistRepository: watchlist,
			FeatureEngineer:     calculator.NewFeatureEngineer(),
			PageSize:            cfg.PageSize,
		}),
		SignalOptimizationCoordinator: l2_service.NewSignalOptimizationCoordinator(l2_service.SignalOptimizationCoordinatorInput{
			StageDataService:    stageData,
			WatchlistRepository: watchlist,
			Strategies:          cfg.Strategies,
			Optimization:        optimization,
			Backtest:            backtest,
		}),
		SignalTestingCoordinator: l2_service.NewSignalTestingCoordinator(l2_service.SignalTestingCoordinatorInput{
			StageDataService:    stageData,
			WatchlistRepository: watchlist,
			Strategies:          cfg.Strategies,
			Backtest:            backtest,
		}),
		EvaluationCoordinator: l2_service.NewEvaluationCoordinator(l2_service.EvaluationCoordinatorInput{
			StageDataService:    stageData,
			WatchlistRepository: watchlist,
			Strategies:          cfg.Strategies,
			Metric:              cfg.Evaluation.Metric,
			ViabilityThreshold:  cfg.Evaluation.ViabilityThreshold,
		}),
		PortfolioCoordinator: l2_service.NewPortfolioCoordinator(l2_service.PortfolioCoordinatorInput{
			StageDataService:    stageData,
			WatchlistRepository: watchlist,
			Classes:             []string{cfg.Portfolio.Strategy},
			Optimization:        optimization,
			Backtest:            backtest,
		}),
	})
}

// NewLiveSession builds the streaming pipeline for symbols from d.
func (d *Dependencies) NewLiveSession(symbols []string) (*app.LiveSession, error) {
	return app.NewLiveSession(app.LiveSessionInput{
		Config:                      *d.Config,
		Symbols:                     symbols,
		Broker:                      d.Broker,
		OrderRepository:             d.OrderRepository,
		TradeRepository:             d.TradeRepository,
		PositionRepository:          d.PositionRepository,
		DataStreamSessionRepository: d.DataStreamSessionRepository,
		EmailRepository:             d.EmailRepository,
		Log:                         d.Log,
	})
}
