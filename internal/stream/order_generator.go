package stream

import (
	"fmt"
	"sync"

	"algotrader/internal/domain"
	"algotrader/internal/pubsub"
	"algotrader/internal/strategy"

	"go.uber.org/zap"
)

func OrderTopic(symbol string) string {
	return "order:" + symbol
}

// OrderGenerator turns roster snapshots into per-symbol order requests
// using the active portfolio strategy.
type OrderGenerator interface {
	Start() error
	Stop()
	Handle(snapshot RosterSnapshot) ([]domain.SignalOrderPayload, error)
}

type OrderGeneratorInput struct {
	Roster   *Roster
	Registry *strategy.PortfolioStrategyRegistry
	Orders   *pubsub.Bus[domain.SignalOrderPayload]
	Log      *zap.SugaredLogger
}

type orderGeneratorHandler struct {
	Roster   *Roster
	Registry *strategy.PortfolioStrategyRegistry
	Orders   *pubsub.Bus[domain.SignalOrderPayload]
	Log      *zap.SugaredLogger

	// order lock, guards buffered
	mu         sync.Mutex
	buffered   *strategy.BufferedPortfolioStrategy
	activeHash string
	sub        *pubsub.Subscriber[RosterSnapshot]
}

func NewOrderGenerator(in OrderGeneratorInput) OrderGenerator {
	if in.Log == nil {
		in.Log = zap.NewNop().Sugar()
	}
	return &orderGeneratorHandler{
		Roster:   in.Roster,
		Registry: in.Registry,
		Orders:   in.Orders,
		Log:      in.Log.With("component", "order_generator"),
	}
}

// Start follows the roster with a latest-only queue: weights are always
// computed from the newest snapshot.
func (h *orderGeneratorHandler) Start() error {
	sub, err := h.Roster.Subscribe(1, func(snapshot RosterSnapshot) {
		if _, err := h.Handle(snapshot); err != nil {
			h.Log.Warnw("failed to generate orders", "symbols", snapshot.Symbols(), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to roster: %w", err)
	}
	h.mu.Lock()
	h.sub = sub
	h.mu.Unlock()
	return nil
}

func (h *orderGeneratorHandler) Stop() {
	h.mu.Lock()
	sub := h.sub
	h.sub = nil
	h.mu.Unlock()
	h.Roster.Unsubscribe(sub)
}

func (h *orderGeneratorHandler) Handle(snapshot RosterSnapshot) ([]domain.SignalOrderPayload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	active, err := h.Registry.Active()
	if err != nil {
		return nil, err
	}
	if h.buffered == nil || h.activeHash != active.HashID() {
		h.buffered = strategy.NewBufferedPortfolioStrategy(active)
		h.activeHash = active.HashID()
		h.Log.Infow("using portfolio strategy", "strategy", active.Description())
	}

	weights, err := h.buffered.Update(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to compute weights: %w", err)
	}

	out := []domain.SignalOrderPayload{}
	for _, symbol := range snapshot.Symbols() {
		payload := snapshot[symbol]
		weight := weights[symbol]
		var side domain.OrderSide
		switch {
		case weight > 0 && payload.Entry() == domain.SignalBuy:
			side = domain.OrderSideBuy
		case payload.Exit() == domain.SignalSell:
			side = domain.OrderSideSell
		default:
			continue
		}
		order := domain.SignalOrderPayload{
			Symbol:    symbol,
			Side:      side,
			Weight:    weight,
			PriceData: payload.PriceData,
		}
		if err := h.Orders.Publish(OrderTopic(symbol), order); err != nil {
			return out, fmt.Errorf("failed to publish order for %s: %w", symbol, err)
		}
		out = append(out, order)
	}
	return out, nil
}
