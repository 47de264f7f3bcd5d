package stream

import (
	"context"
	"fmt"
	"sync"

	"algotrader/internal/domain"
	"algotrader/internal/pubsub"
	"algotrader/internal/strategy"

	"go.uber.org/zap"
)

// SignalGenerator feeds enriched rows through each symbol's combined
// strategy and posts the result to the roster.
type SignalGenerator interface {
	// Start subscribes the symbols that have a registered strategy and
	// returns the ones that were skipped.
	Start(ctx context.Context, symbols []string) ([]string, error)
	Stop(ctx context.Context) error
	Handle(row domain.EnrichedBar) (*domain.SignalDataPayload, error)
}

type SignalGeneratorInput struct {
	EnrichedStreamer EnrichedStreamer
	Registry         *strategy.SignalStrategyRegistry
	Roster           *Roster
	// QueueSize of the enriched subscriptions; buffered strategies need
	// every row, so the default is unbounded
	QueueSize int
	Log       *zap.SugaredLogger
}

type signalGeneratorHandler struct {
	EnrichedStreamer EnrichedStreamer
	Registry         *strategy.SignalStrategyRegistry
	Roster           *Roster
	QueueSize        int
	Log              *zap.SugaredLogger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subsMu sync.Mutex
	subs   []*pubsub.Subscriber[domain.EnrichedBar]
}

func NewSignalGenerator(in SignalGeneratorInput) SignalGenerator {
	if in.Log == nil {
		in.Log = zap.NewNop().Sugar()
	}
	return &signalGeneratorHandler{
		EnrichedStreamer: in.EnrichedStreamer,
		Registry:         in.Registry,
		Roster:           in.Roster,
		QueueSize:        in.QueueSize,
		Log:              in.Log.With("component", "signal_generator"),
		locks:            map[string]*sync.Mutex{},
	}
}

func (h *signalGeneratorHandler) Start(ctx context.Context, symbols []string) ([]string, error) {
	ready, skipped := []string{}, []string{}
	for _, symbol := range symbols {
		if _, err := h.Registry.Get(symbol); err != nil {
			h.Log.Warnw("no signal strategy, symbol not traded", "symbol", symbol)
			skipped = append(skipped, symbol)
			continue
		}
		ready = append(ready, symbol)
	}
	if len(ready) == 0 {
		return skipped, nil
	}

	subs, err := h.EnrichedStreamer.Subscribe(ctx, ready, func(row domain.EnrichedBar) {
		if _, err := h.Handle(row); err != nil {
			h.Log.Warnw("failed to generate signals", "symbol", row.Symbol, "timestamp", row.Timestamp, "error", err)
		}
	}, h.QueueSize)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe signal generator: %w", err)
	}

	h.subsMu.Lock()
	h.subs = append(h.subs, values(subs)...)
	h.subsMu.Unlock()
	h.Log.Infow("signal generator started", "symbols", ready)
	return skipped, nil
}

func (h *signalGeneratorHandler) lock(symbol string) *sync.Mutex {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	l, ok := h.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		h.locks[symbol] = l
	}
	return l
}

// Handle runs one row through the symbol's strategy under the symbol's
// signal lock and updates the roster.
func (h *signalGeneratorHandler) Handle(row domain.EnrichedBar) (*domain.SignalDataPayload, error) {
	l := h.lock(row.Symbol)
	l.Lock()
	defer l.Unlock()

	s, err := h.Registry.Get(row.Symbol)
	if err != nil {
		return nil, err
	}
	signals, err := s.Update(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update strategy for %s: %w", row.Symbol, err)
	}
	payload := domain.SignalDataPayload{
		Symbol:    row.Symbol,
		Signals:   signals,
		PriceData: row,
	}
	if err := h.Roster.Update(payload); err != nil {
		return nil, fmt.Errorf("failed to update roster: %w", err)
	}
	return &payload, nil
}

func (h *signalGeneratorHandler) Stop(ctx context.Context) error {
	h.subsMu.Lock()
	subs := h.subs
	h.subs = nil
	h.subsMu.Unlock()
	if len(subs) == 0 {
		return nil
	}
	return h.EnrichedStreamer.Unsubscribe(ctx, subs...)
}
