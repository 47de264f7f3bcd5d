package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"algotrader/internal/config"
	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	l1_service "algotrader/internal/service/l1"
	"algotrader/internal/stream"
	"algotrader/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type SessionPhase string

const (
	PhaseIdle      SessionPhase = "idle"
	PhasePremarket SessionPhase = "premarket"
	PhaseOpen      SessionPhase = "open"
	PhaseClosed    SessionPhase = "closed"
)

const defaultReconcileDays = 7

type MarketSessionApp interface {
	// Run schedules premarket, open and close on the session's cron specs
	// and blocks until ctx is done.
	Run(ctx context.Context) error
	Premarket(ctx context.Context) error
	Open(ctx context.Context) error
	// Close deactivates the executor and tears down whatever premarket
	// started. Closing a session that is not running is a no-op.
	Close(ctx context.Context, reason string) error
	Phase() SessionPhase
	Holds() l1_service.HoldRoster
}

type MarketSessionAppInput struct {
	Symbols  []string
	Session  config.Session
	Account  string
	ReportTo string
	// ReconcileDays is how far back premarket and close reconcile trades.
	ReconcileDays int

	Broker                repository.BrokerRepository
	TradeRepository       repository.TradeRepository
	OrderExecutionService l1_service.OrderExecutionService
	SymbolHoldService     l1_service.SymbolHoldService
	TradeReconcileService l1_service.TradeReconcileService
	LedgerService         l1_service.LedgerService
	OrderMonitorService   l1_service.OrderMonitorService
	ReportService         l1_service.ReportService
	HoldRosters           *pubsub.Bus[l1_service.HoldRoster]

	SignalGenerator stream.SignalGenerator
	OrderGenerator  stream.OrderGenerator
	OrderExecutor   stream.OrderExecutor

	Clock util.Clock
	Log   *zap.SugaredLogger
}

type marketSessionAppHandler struct {
	MarketSessionAppInput

	mu    sync.Mutex
	phase SessionPhase
	// undo holds teardown steps for whatever premarket started, in start order
	undo []func(ctx context.Context) error
	// sessionStart is when the current premarket began
	sessionStart time.Time
}

func NewMarketSessionApp(in MarketSessionAppInput) MarketSessionApp {
	if in.Clock == nil {
		in.Clock = util.NewClock()
	}
	if in.Log == nil {
		in.Log = zap.NewNop().Sugar()
	}
	if in.ReconcileDays <= 0 {
		in.ReconcileDays = defaultReconcileDays
	}
	return &marketSessionAppHandler{
		MarketSessionAppInput: in,
		phase:                 PhaseIdle,
	}
}

func (h *marketSessionAppHandler) Phase() SessionPhase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

func (h *marketSessionAppHandler) Holds() l1_service.HoldRoster {
	return h.SymbolHoldService.Snapshot()
}

func (h *marketSessionAppHandler) Run(ctx context.Context) error {
	ctx = logger.NewContext(ctx, h.Log)
	loc, err := time.LoadLocation(h.Session.Timezone)
	if err != nil {
		return fmt.Errorf("%w: unknown session timezone %q: %w", domain.ErrInvalidConfig, h.Session.Timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{"premarket", h.Session.PremarketSchedule, h.Premarket},
		{"open", h.Session.OpenSchedule, h.Open},
		{"close", h.Session.CloseSchedule, func(ctx context.Context) error {
			return h.Close(ctx, "scheduled close")
		}},
	}
	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.schedule, func() {
			if err := job.run(ctx); err != nil {
				h.Log.Errorw("session job failed", "job", job.name, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("%w: bad %s schedule %q: %w", domain.ErrInvalidConfig, job.name, job.schedule, err)
		}
		h.Log.Infow("scheduled session job", "job", job.name, "schedule", job.schedule, "timezone", loc.String())
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	// the parent is gone, teardown still needs a live context
	closeCtx := logger.NewContext(context.Background(), h.Log)
	return h.Close(closeCtx, "shutdown")
}

func (h *marketSessionAppHandler) Premarket(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.phase == PhasePremarket || h.phase == PhaseOpen {
		return nil
	}
	ctx, log := logger.With(ctx, "phase", PhasePremarket)
	h.sessionStart = h.Clock.Now()
	h.undo = nil

	if err := h.premarketLocked(ctx); err != nil {
		log.Errorw("premarket failed, tearing down", "error", err)
		teardownErr := h.teardownLocked(ctx)
		h.phase = PhaseIdle
		return errors.Join(err, teardownErr)
	}
	h.phase = PhasePremarket
	log.Infow("premarket complete", "symbols", h.Symbols)
	return nil
}

func (h *marketSessionAppHandler) premarketLocked(ctx context.Context) error {
	log := logger.FromContext(ctx)

	n, err := h.OrderExecutionService.UpdateSettledTrades(ctx)
	if err != nil {
		return fmt.Errorf("failed to update settled trades: %w", err)
	}
	orders, err := h.OrderExecutionService.UpdateSettledOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to update settled orders: %w", err)
	}
	log.Infow("settled", "trades", n, "orders", orders)

	if err := h.SymbolHoldService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start symbol holds: %w", err)
	}
	h.undo = append(h.undo, func(context.Context) error {
		h.SymbolHoldService.Stop()
		return nil
	})

	if h.HoldRosters != nil {
		sub, err := h.HoldRosters.Subscribe(l1_service.HoldRosterTopic, 1, func(roster l1_service.HoldRoster) {
			h.onHoldRoster(ctx, roster)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to hold roster: %w", err)
		}
		h.undo = append(h.undo, func(context.Context) error {
			h.HoldRosters.Unsubscribe(sub)
			return nil
		})
	}

	if err := h.validate(ctx); err != nil {
		return err
	}

	if _, err := h.LedgerService.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	if h.OrderMonitorService != nil && h.Session.MonitorSchedule != "" {
		if err := h.OrderMonitorService.Start(ctx, h.Session.MonitorSchedule); err != nil {
			return fmt.Errorf("failed to start order monitor: %w", err)
		}
		h.undo = append(h.undo, func(context.Context) error {
			h.OrderMonitorService.Stop()
			return nil
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := h.OrderExecutionService.Run(runCtx); err != nil {
			log.Errorw("order event stream stopped", "error", err)
		}
	}()
	h.undo = append(h.undo, func(ctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("failed to stop order event stream: %w", ctx.Err())
		}
	})

	return h.startPipelineLocked(ctx)
}

// startPipelineLocked wires executor, order generator and signal generator
// in that order so the upstream feed opens last.
func (h *marketSessionAppHandler) startPipelineLocked(ctx context.Context) error {
	if err := h.OrderExecutor.Start(ctx, h.Symbols); err != nil {
		return fmt.Errorf("failed to start order executor: %w", err)
	}
	h.undo = append(h.undo, func(context.Context) error {
		h.OrderExecutor.Stop()
		return nil
	})

	if err := h.OrderGenerator.Start(); err != nil {
		return fmt.Errorf("failed to start order generator: %w", err)
	}
	h.undo = append(h.undo, func(context.Context) error {
		h.OrderGenerator.Stop()
		return nil
	})

	skipped, err := h.SignalGenerator.Start(ctx, h.Symbols)
	if err != nil {
		return fmt.Errorf("failed to start signal generator: %w", err)
	}
	if len(skipped) > 0 {
		logger.FromContext(ctx).Warnw("no strategy registered, symbols will not trade", "symbols", skipped)
	}
	h.undo = append(h.undo, h.SignalGenerator.Stop)
	return nil
}

// validate reconciles recent trades and checks positions. Drift is logged,
// only failures to run the checks are returned.
func (h *marketSessionAppHandler) validate(ctx context.Context) error {
	log := logger.FromContext(ctx)
	if h.TradeReconcileService == nil {
		return nil
	}
	now := h.Clock.Now()
	result, err := h.TradeReconcileService.ReconcileTrades(ctx, now.AddDate(0, 0, -h.ReconcileDays), now)
	if err != nil {
		return fmt.Errorf("failed to reconcile trades: %w", err)
	}
	if err := result.Err(); err != nil {
		log.Warnw("trade reconciliation left drift", "error", err)
	}
	drift, err := h.TradeReconcileService.ValidatePositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate positions: %w", err)
	}
	for _, d := range drift {
		log.Warnw("position drift", "symbol", d.Symbol, "local", d.Local.String(), "broker", d.Broker.String())
	}
	return nil
}

func (h *marketSessionAppHandler) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.phase != PhasePremarket {
		return fmt.Errorf("cannot open market from phase %s", h.phase)
	}
	h.OrderExecutor.SetActive(true)
	h.phase = PhaseOpen
	logger.FromContext(ctx).Infow("market open, order executor active")
	return nil
}

func (h *marketSessionAppHandler) onHoldRoster(ctx context.Context, roster l1_service.HoldRoster) {
	if !roster.AllDone() {
		return
	}
	phase := h.Phase()
	if phase != PhasePremarket && phase != PhaseOpen {
		return
	}
	// closing unsubscribes this handler, so it runs on its own goroutine
	go func() {
		if err := h.Close(ctx, "all symbols done for the day"); err != nil {
			logger.FromContext(ctx).Errorw("forced close failed", "error", err)
		}
	}()
}

func (h *marketSessionAppHandler) Close(ctx context.Context, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.phase != PhasePremarket && h.phase != PhaseOpen {
		return nil
	}
	ctx, log := logger.With(ctx, "phase", PhaseClosed)
	log.Infow("closing market session", "reason", reason)

	h.OrderExecutor.SetActive(false)
	err := h.teardownLocked(ctx)
	if vErr := h.validate(ctx); vErr != nil {
		err = errors.Join(err, vErr)
	}
	if rErr := h.sendReport(ctx); rErr != nil {
		log.Errorw("failed to send session report", "error", rErr)
	}
	h.phase = PhaseClosed
	return err
}

func (h *marketSessionAppHandler) teardownLocked(ctx context.Context) error {
	var errs []error
	for i := len(h.undo) - 1; i >= 0; i-- {
		if err := h.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	h.undo = nil
	return errors.Join(errs...)
}

func (h *marketSessionAppHandler) sendReport(ctx context.Context) error {
	if h.ReportService == nil || h.ReportTo == "" {
		return nil
	}
	account, err := h.Broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	positions, err := h.Broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get positions: %w", err)
	}
	from := h.sessionStart
	trades, err := h.TradeRepository.List(ctx, repository.TradeListFilter{
		Account:      &h.Account,
		ExecutedFrom: &from,
	})
	if err != nil {
		return fmt.Errorf("failed to list session trades: %w", err)
	}
	report := l1_service.SessionReport{
		Date:      h.Clock.Now(),
		Account:   *account,
		Positions: positions,
		Trades:    trades,
		Holds:     h.SymbolHoldService.Snapshot(),
	}
	if h.TradeReconcileService != nil {
		drift, err := h.TradeReconcileService.ValidatePositions(ctx)
		if err == nil {
			report.Drift = drift
		}
	}
	return h.ReportService.SendSessionReport(ctx, h.ReportTo, report)
}
