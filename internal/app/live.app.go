package app

import (
	"context"
	"errors"
	"fmt"

	"algotrader/internal/calculator"
	"algotrader/internal/config"
	"algotrader/internal/domain"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/strategy"
	"algotrader/internal/stream"
	"algotrader/internal/util"

	"go.uber.org/zap"
)

type LiveSessionInput struct {
	Config  config.Config
	Symbols []string

	Broker                      repository.BrokerRepository
	OrderRepository             repository.OrderRepository
	TradeRepository             repository.TradeRepository
	PositionRepository          repository.PositionRepository
	DataStreamSessionRepository repository.DataStreamSessionRepository
	// EmailRepository is optional; without it no report is sent
	EmailRepository repository.EmailRepository

	// SignalRegistry and PortfolioRegistry default to registries loaded
	// from the optimization artifacts under the data dir.
	SignalRegistry    *strategy.SignalStrategyRegistry
	PortfolioRegistry *strategy.PortfolioStrategyRegistry

	Clock util.Clock
	Log   *zap.SugaredLogger
}

// LiveSession holds every long-lived component of the streaming pipeline.
type LiveSession struct {
	App      MarketSessionApp
	Roster   *stream.Roster
	Holds    l1_service.SymbolHoldService
	Ledger   l1_service.LedgerService
	Streamer stream.MarketDataStreamer
	Enriched stream.EnrichedStreamer

	orderEvents *pubsub.Bus[domain.OrderEvent]
	holdRosters *pubsub.Bus[l1_service.HoldRoster]
	orders      *pubsub.Bus[domain.SignalOrderPayload]
	broker      repository.BrokerRepository
}

func NewLiveSession(in LiveSessionInput) (*LiveSession, error) {
	if in.Clock == nil {
		in.Clock = util.NewClock()
	}
	if in.Log == nil {
		in.Log = zap.NewNop().Sugar()
	}
	cfg := in.Config
	account := cfg.Broker.Account

	signals := in.SignalRegistry
	portfolios := in.PortfolioRegistry
	if signals == nil || portfolios == nil {
		stageData := l1_service.NewStageDataService(cfg.DataDir)
		if signals == nil {
			signals = strategy.NewSignalStrategyRegistry(
				stageData.GetDirectory(l1_service.PathKey{Stage: domain.StageSignalOptimization}),
				cfg.Combined.BuyThreshold,
				cfg.Combined.SellThreshold,
			)
			if err := signals.Load(in.Symbols); err != nil {
				in.Log.Warnw("some symbols have no usable strategy", "error", err)
			}
		}
		if portfolios == nil {
			portfolios = strategy.NewPortfolioStrategyRegistry(
				stageData.GetDirectory(l1_service.PathKey{Stage: domain.StagePortfolioOptimization, Symbol: "portfolio"}),
			)
			if err := portfolios.Load(cfg.Portfolio.Strategy); err != nil {
				return nil, fmt.Errorf("failed to load portfolio strategy %s: %w", cfg.Portfolio.Strategy, err)
			}
			if err := portfolios.SetActive(cfg.Portfolio.Strategy); err != nil {
				return nil, err
			}
		}
	}

	s := &LiveSession{
		orderEvents: pubsub.NewBus[domain.OrderEvent](in.Log),
		holdRosters: pubsub.NewBus[l1_service.HoldRoster](in.Log),
		orders:      pubsub.NewBus[domain.SignalOrderPayload](in.Log),
		broker:      in.Broker,
	}

	execution := l1_service.NewOrderExecutionService(l1_service.OrderExecutionServiceInput{
		Broker:          in.Broker,
		OrderRepository: in.OrderRepository,
		TradeRepository: in.TradeRepository,
		Events:          s.orderEvents,
		Clock:           in.Clock,
		Account:         account,
		DaysToSettle:    cfg.Session.DaysToSettle,
	})
	s.Holds = l1_service.NewSymbolHoldService(l1_service.SymbolHoldServiceInput{
		OrderRepository:    in.OrderRepository,
		PositionRepository: in.PositionRepository,
		OrderEvents:        s.orderEvents,
		Roster:             s.holdRosters,
		Clock:              in.Clock,
		Account:            account,
		PostFillDelay:      cfg.Session.PostFillDelay(),
		Log:                in.Log,
	})
	s.Ledger = l1_service.NewLedgerService(l1_service.LedgerServiceInput{
		Broker:             in.Broker,
		TradeRepository:    in.TradeRepository,
		PositionRepository: in.PositionRepository,
		Account:            account,
	})
	reconcile := l1_service.NewTradeReconcileService(l1_service.TradeReconcileServiceInput{
		Broker:          in.Broker,
		TradeRepository: in.TradeRepository,
		Clock:           in.Clock,
		Account:         account,
		DaysToSettle:    cfg.Session.DaysToSettle,
	})
	monitor := l1_service.NewOrderMonitorService(l1_service.OrderMonitorServiceInput{
		Broker:                in.Broker,
		OrderRepository:       in.OrderRepository,
		OrderExecutionService: execution,
		Clock:                 in.Clock,
	})
	var report l1_service.ReportService
	if in.EmailRepository != nil {
		report = l1_service.NewReportService(in.EmailRepository)
	}

	s.Streamer = stream.NewMarketDataStreamer(stream.MarketDataStreamerInput{
		Broker:                      in.Broker,
		DataStreamSessionRepository: in.DataStreamSessionRepository,
		Clock:                       in.Clock,
		Log:                         in.Log,
	})
	s.Enriched = stream.NewEnrichedStreamer(stream.EnrichedStreamerInput{
		MarketDataStreamer:       s.Streamer,
		FeatureEngineer:          calculator.NewFeatureEngineer(),
		HistoricalDataRepository: in.Broker,
		WarmupDays:               cfg.Session.WarmupDays,
		Clock:                    in.Clock,
		Log:                      in.Log,
	})
	s.Roster = stream.NewRoster(in.Log)

	s.App = NewMarketSessionApp(MarketSessionAppInput{
		Symbols:               in.Symbols,
		Session:               cfg.Session,
		Account:               account,
		ReportTo:              cfg.Report.ToEmail,
		Broker:                in.Broker,
		TradeRepository:       in.TradeRepository,
		OrderExecutionService: execution,
		SymbolHoldService:     s.Holds,
		TradeReconcileService: reconcile,
		LedgerService:         s.Ledger,
		OrderMonitorService:   monitor,
		ReportService:         report,
		HoldRosters:           s.holdRosters,
		SignalGenerator: stream.NewSignalGenerator(stream.SignalGeneratorInput{
			EnrichedStreamer: s.Enriched,
			Registry:         signals,
			Roster:           s.Roster,
			QueueSize:        cfg.Session.QueueSize,
			Log:              in.Log,
		}),
		OrderGenerator: stream.NewOrderGenerator(stream.OrderGeneratorInput{
			Roster:   s.Roster,
			Registry: portfolios,
			Orders:   s.orders,
			Log:      in.Log,
		}),
		OrderExecutor: stream.NewOrderExecutor(stream.OrderExecutorInput{
			Orders:                s.orders,
			OrderExecutionService: execution,
			SymbolHoldService:     s.Holds,
			LedgerService:         s.Ledger,
			Account:               account,
			Log:                   in.Log,
		}),
		Clock: in.Clock,
		Log:   in.Log,
	})
	return s, nil
}

// Shutdown closes the session, stops the streamers and drains every bus.
func (s *LiveSession) Shutdown(ctx context.Context) error {
	errs := []error{
		s.App.Close(ctx, "shutdown"),
		s.Enriched.Stop(ctx),
		s.Streamer.Stop(ctx),
		s.Roster.Shutdown(ctx),
		s.orders.Shutdown(ctx),
		s.holdRosters.Shutdown(ctx),
		s.orderEvents.Shutdown(ctx),
	}
	if err := s.broker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close broker: %w", err))
	}
	return errors.Join(errs...)
}
