package l1_service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"go.uber.org/zap"
)

// HoldRosterTopic receives the full symbol -> status snapshot after every
// transition.
const HoldRosterTopic = "hold_roster"

type HoldRoster map[string]domain.SymbolHoldStatus

// AllDone reports whether every symbol is settled or closed for the day.
// An empty roster is never done.
func (r HoldRoster) AllDone() bool {
	if len(r) == 0 {
		return false
	}
	for _, status := range r {
		if !status.IsDone() {
			return false
		}
	}
	return true
}

func (r HoldRoster) Symbols() []string {
	out := make([]string, 0, len(r))
	for symbol := range r {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

type SymbolHoldService interface {
	// Start hydrates the roster and follows order events until Stop.
	Start(ctx context.Context) error
	Stop()
	Hydrate(ctx context.Context) error
	HandleOrderEvent(ctx context.Context, e domain.OrderEvent)
	Status(symbol string) domain.SymbolHoldStatus
	CanBuy(symbol string) bool
	CanSell(symbol string) bool
	Snapshot() HoldRoster
}

type SymbolHoldServiceInput struct {
	OrderRepository    repository.OrderRepository
	PositionRepository repository.PositionRepository
	OrderEvents        *pubsub.Bus[domain.OrderEvent]
	Roster             *pubsub.Bus[HoldRoster]
	Clock              util.Clock
	Account            string
	PostFillDelay      time.Duration
	Log                *zap.SugaredLogger
}

type symbolHoldServiceHandler struct {
	OrderRepository    repository.OrderRepository
	PositionRepository repository.PositionRepository
	OrderEvents        *pubsub.Bus[domain.OrderEvent]
	Roster             *pubsub.Bus[HoldRoster]
	Clock              util.Clock
	Account            string
	PostFillDelay      time.Duration
	log                *zap.SugaredLogger

	mu     sync.Mutex
	states map[string]domain.SymbolHoldStatus
	timers map[string]util.Timer
	sub    *pubsub.Subscriber[domain.OrderEvent]
}

func NewSymbolHoldService(in SymbolHoldServiceInput) SymbolHoldService {
	clock := in.Clock
	if clock == nil {
		clock = util.NewClock()
	}
	log := in.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &symbolHoldServiceHandler{
		OrderRepository:    in.OrderRepository,
		PositionRepository: in.PositionRepository,
		OrderEvents:        in.OrderEvents,
		Roster:             in.Roster,
		Clock:              clock,
		Account:            in.Account,
		PostFillDelay:      in.PostFillDelay,
		log:                log,
		states:             map[string]domain.SymbolHoldStatus{},
		timers:             map[string]util.Timer{},
	}
}

func (h *symbolHoldServiceHandler) Start(ctx context.Context) error {
	if err := h.Hydrate(ctx); err != nil {
		return err
	}
	if h.OrderEvents == nil {
		return nil
	}
	sub, err := h.OrderEvents.Subscribe(OrderEventsTopic, 0, func(e domain.OrderEvent) {
		h.HandleOrderEvent(ctx, e)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to order events: %w", err)
	}
	h.mu.Lock()
	h.sub = sub
	h.mu.Unlock()
	return nil
}

func (h *symbolHoldServiceHandler) Stop() {
	h.mu.Lock()
	sub := h.sub
	h.sub = nil
	for symbol, t := range h.timers {
		t.Stop()
		delete(h.timers, symbol)
	}
	h.mu.Unlock()
	if sub != nil && h.OrderEvents != nil {
		h.OrderEvents.Unsubscribe(sub)
	}
}

// Hydrate rebuilds the roster from persisted state. An open order holds
// everything; an unsettled sell waits for settlement; an unsettled buy is
// sell only, or still in its post fill delay.
func (h *symbolHoldServiceHandler) Hydrate(ctx context.Context) error {
	open, err := h.OrderRepository.List(ctx, repository.OrderListFilter{Statuses: domain.OpenOrderStatuses})
	if err != nil {
		return fmt.Errorf("failed to list open orders: %w", err)
	}
	settled := false
	filled, err := h.OrderRepository.List(ctx, repository.OrderListFilter{
		Statuses: []domain.OrderStatus{domain.OrderStatusFilled},
		Settled:  &settled,
	})
	if err != nil {
		return fmt.Errorf("failed to list unsettled orders: %w", err)
	}
	positions, err := h.PositionRepository.List(ctx, h.Account)
	if err != nil {
		return fmt.Errorf("failed to list positions: %w", err)
	}

	now := h.Clock.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range positions {
		h.setLocked(p.Symbol, domain.HoldStart)
	}
	// oldest first so the latest fill per symbol wins
	sort.Slice(filled, func(i, j int) bool { return filled[i].UpdatedAt.Before(filled[j].UpdatedAt) })
	for _, o := range filled {
		if o.Side == domain.OrderSideSell {
			h.setLocked(o.Symbol, domain.HoldPendingSettlement)
			continue
		}
		if h.states[o.Symbol] == domain.HoldPendingSettlement {
			continue
		}
		remaining := h.PostFillDelay
		if o.FilledAt != nil {
			remaining = o.FilledAt.Add(h.PostFillDelay).Sub(now)
		}
		if remaining > 0 {
			h.startDelayLocked(o.Symbol, remaining)
		} else {
			h.setLocked(o.Symbol, domain.HoldSellOnly)
		}
	}
	for _, o := range open {
		h.setLocked(o.Symbol, domain.HoldAll)
	}
	h.log.Infow("hydrated symbol holds", "roster", h.states)
	h.publishLocked()
	return nil
}

func (h *symbolHoldServiceHandler) hasPosition(ctx context.Context, symbol string) bool {
	p, err := h.PositionRepository.Get(ctx, h.Account, symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.FromContext(ctx).Warnw("failed to read position", "symbol", symbol, "error", err)
		}
		return false
	}
	return p.Quantity.IsPositive()
}

func (h *symbolHoldServiceHandler) HandleOrderEvent(ctx context.Context, e domain.OrderEvent) {
	symbol := e.Order.Symbol
	if symbol == "" {
		return
	}

	var next domain.SymbolHoldStatus
	switch e.Event {
	case domain.OrderEventNew,
		domain.OrderEventPendingNew,
		domain.OrderEventPendingCancel,
		domain.OrderEventPendingReplace,
		domain.OrderEventReplaced,
		domain.OrderEventStopped,
		domain.OrderEventSuspended,
		domain.OrderEventCalculated,
		domain.OrderEventPartialFill,
		domain.OrderEventCancelRejected,
		domain.OrderEventReplaceRejected:
		next = domain.HoldAll
	case domain.OrderEventRejected, domain.OrderEventCanceled, domain.OrderEventExpired:
		next = domain.HoldBuyOnly
		if h.hasPosition(ctx, symbol) {
			next = domain.HoldSellOnly
		}
	case domain.OrderEventFill:
		if e.Order.Side == domain.OrderSideSell {
			next = domain.HoldPendingSettlement
		} else {
			next = domain.HoldPostFillDelay
		}
	case domain.OrderEventDoneForDay:
		next = domain.HoldClosedForDay
	default:
		h.log.Warnw("ignoring unknown order event", "event", e.Event, "symbol", symbol)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if next == domain.HoldPostFillDelay {
		h.startDelayLocked(symbol, h.PostFillDelay)
	} else {
		h.setLocked(symbol, next)
	}
	h.publishLocked()
}

// setLocked moves symbol to status, cancelling any pending post fill timer.
func (h *symbolHoldServiceHandler) setLocked(symbol string, status domain.SymbolHoldStatus) {
	if t, ok := h.timers[symbol]; ok {
		t.Stop()
		delete(h.timers, symbol)
	}
	if prev := h.states[symbol]; prev != status {
		h.log.Infow("symbol hold transition", "symbol", symbol, "from", prev, "to", status)
	}
	h.states[symbol] = status
}

func (h *symbolHoldServiceHandler) startDelayLocked(symbol string, d time.Duration) {
	h.setLocked(symbol, domain.HoldPostFillDelay)
	var timer util.Timer
	timer = h.Clock.AfterFunc(d, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		// a later transition replaced or cancelled this timer
		if h.timers[symbol] != timer {
			return
		}
		delete(h.timers, symbol)
		h.setLocked(symbol, domain.HoldSellOnly)
		h.publishLocked()
	})
	h.timers[symbol] = timer
}

func (h *symbolHoldServiceHandler) publishLocked() {
	if h.Roster == nil {
		return
	}
	snapshot := HoldRoster{}
	for symbol, status := range h.states {
		snapshot[symbol] = status
	}
	if err := h.Roster.Publish(HoldRosterTopic, snapshot); err != nil {
		h.log.Warnw("failed to publish hold roster", "error", err)
	}
}

func (h *symbolHoldServiceHandler) Status(symbol string) domain.SymbolHoldStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	status, ok := h.states[symbol]
	if !ok {
		return domain.HoldStart
	}
	return status
}

func (h *symbolHoldServiceHandler) CanBuy(symbol string) bool {
	return h.Status(symbol).CanBuy()
}

func (h *symbolHoldServiceHandler) CanSell(symbol string) bool {
	return h.Status(symbol).CanSell()
}

func (h *symbolHoldServiceHandler) Snapshot() HoldRoster {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := HoldRoster{}
	for symbol, status := range h.states {
		out[symbol] = status
	}
	return out
}
