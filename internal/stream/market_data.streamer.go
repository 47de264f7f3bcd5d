package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"algotrader/internal/domain"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("streamer is stopped")

// MarketDataStreamer fans broker bars and quotes out per symbol. The
// upstream subscription for a symbol exists exactly while it has at least
// one subscriber.
type MarketDataStreamer interface {
	Subscribe(ctx context.Context, symbols []string, handler pubsub.Handler[MarketEvent], queueSize int) (map[string]*pubsub.Subscriber[MarketEvent], error)
	Unsubscribe(ctx context.Context, subs ...*pubsub.Subscriber[MarketEvent]) error
	// Symbols lists the symbols currently open upstream.
	Symbols() []string
	Stop(ctx context.Context) error
}

type MarketDataStreamerInput struct {
	Broker                      repository.BrokerRepository
	DataStreamSessionRepository repository.DataStreamSessionRepository
	Clock                       util.Clock
	Log                         *zap.SugaredLogger
}

type marketDataStreamerHandler struct {
	Broker                      repository.BrokerRepository
	DataStreamSessionRepository repository.DataStreamSessionRepository
	Clock                       util.Clock
	Log                         *zap.SugaredLogger

	bus *pubsub.Bus[MarketEvent]

	mu          sync.Mutex
	stream      repository.MarketStream
	cancel      context.CancelFunc
	refs        map[string][]*pubsub.Subscriber[MarketEvent]
	aggregators map[string]*aggregator
	sessions    map[string][]uuid.UUID
	stopped     bool
}

func NewMarketDataStreamer(in MarketDataStreamerInput) MarketDataStreamer {
	if in.Clock == nil {
		in.Clock = util.NewClock()
	}
	if in.Log == nil {
		in.Log = zap.NewNop().Sugar()
	}
	return &marketDataStreamerHandler{
		Broker:                      in.Broker,
		DataStreamSessionRepository: in.DataStreamSessionRepository,
		Clock:                       in.Clock,
		Log:                         in.Log.With("component", "market_data_streamer"),
		bus:                         pubsub.NewBus[MarketEvent](in.Log),
		refs:                        map[string][]*pubsub.Subscriber[MarketEvent]{},
		aggregators:                 map[string]*aggregator{},
		sessions:                    map[string][]uuid.UUID{},
	}
}

// connectLocked opens the broker stream on first use. The stream lives on
// its own context so a caller's request context cannot tear it down.
func (h *marketDataStreamerHandler) connectLocked() error {
	if h.stream != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	stream := h.Broker.NewMarketStream(repository.MarketStreamHandlers{
		OnBar:   h.onBar,
		OnQuote: h.onQuote,
	})
	if err := stream.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to connect market stream: %w", err)
	}
	h.stream = stream
	h.cancel = cancel

	go func() {
		select {
		case err := <-stream.Terminated():
			if err != nil {
				h.Log.Errorw("market stream terminated", "error", err)
			}
		case <-ctx.Done():
		}
	}()
	return nil
}

func (h *marketDataStreamerHandler) Subscribe(ctx context.Context, symbols []string, handler pubsub.Handler[MarketEvent], queueSize int) (map[string]*pubsub.Subscriber[MarketEvent], error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrStopped
	}
	if err := h.connectLocked(); err != nil {
		return nil, err
	}

	out := map[string]*pubsub.Subscriber[MarketEvent]{}
	opened := []string{}
	for _, symbol := range symbols {
		if _, ok := out[symbol]; ok {
			continue
		}
		sub, err := h.bus.Subscribe(MarketTopic(symbol), queueSize, handler)
		if err != nil {
			h.rollbackLocked(out)
			return nil, fmt.Errorf("failed to subscribe to %s: %w", symbol, err)
		}
		out[symbol] = sub
		if len(h.refs[symbol]) == 0 {
			opened = append(opened, symbol)
		}
		h.refs[symbol] = append(h.refs[symbol], sub)
	}

	if len(opened) > 0 {
		if err := h.stream.AddSymbols(ctx, opened...); err != nil {
			h.rollbackLocked(out)
			return nil, fmt.Errorf("failed to add upstream symbols %v: %w", opened, err)
		}
	}
	for _, symbol := range opened {
		h.aggregators[symbol] = newAggregator(symbol, h.publish)
		h.startSessionsLocked(ctx, symbol)
	}
	return out, nil
}

func (h *marketDataStreamerHandler) rollbackLocked(subs map[string]*pubsub.Subscriber[MarketEvent]) {
	for symbol, sub := range subs {
		h.bus.Unsubscribe(sub)
		h.refs[symbol] = without(h.refs[symbol], sub)
		if len(h.refs[symbol]) == 0 {
			delete(h.refs, symbol)
		}
	}
}

func (h *marketDataStreamerHandler) startSessionsLocked(ctx context.Context, symbol string) {
	if h.DataStreamSessionRepository == nil {
		return
	}
	for _, streamType := range []domain.StreamType{domain.StreamTypeBars, domain.StreamTypeQuotes} {
		session, err := h.DataStreamSessionRepository.Start(ctx, symbol, streamType, h.Clock.Now())
		if err != nil {
			h.Log.Warnw("failed to record stream session start", "symbol", symbol, "stream_type", streamType, "error", err)
			continue
		}
		h.sessions[symbol] = append(h.sessions[symbol], session.SessionID)
	}
}

func (h *marketDataStreamerHandler) endSessionsLocked(ctx context.Context, symbol string) {
	if h.DataStreamSessionRepository == nil {
		return
	}
	for _, id := range h.sessions[symbol] {
		if err := h.DataStreamSessionRepository.End(ctx, id, h.Clock.Now()); err != nil {
			h.Log.Warnw("failed to record stream session end", "symbol", symbol, "session_id", id, "error", err)
		}
	}
	delete(h.sessions, symbol)
}

// Unsubscribe removes the given subscribers. A symbol whose last subscriber
// goes away is dropped upstream.
func (h *marketDataStreamerHandler) Unsubscribe(ctx context.Context, subs ...*pubsub.Subscriber[MarketEvent]) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := []string{}
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		symbol := strings.TrimPrefix(sub.Topic(), MarketTopic(""))
		refs := h.refs[symbol]
		remaining := without(refs, sub)
		if len(remaining) == len(refs) {
			continue
		}
		h.bus.Unsubscribe(sub)
		if len(remaining) > 0 {
			h.refs[symbol] = remaining
			continue
		}
		delete(h.refs, symbol)
		closed = append(closed, symbol)
	}
	if len(closed) == 0 {
		return nil
	}

	var err error
	if h.stream != nil {
		if rmErr := h.stream.RemoveSymbols(ctx, closed...); rmErr != nil {
			err = fmt.Errorf("failed to remove upstream symbols %v: %w", closed, rmErr)
		}
	}
	for _, symbol := range closed {
		if agg, ok := h.aggregators[symbol]; ok {
			agg.close()
			delete(h.aggregators, symbol)
		}
		h.endSessionsLocked(ctx, symbol)
	}
	return err
}

func (h *marketDataStreamerHandler) Symbols() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.refs))
	for symbol := range h.refs {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Stop closes every subscription and the broker stream. Calling it again
// is a no-op.
func (h *marketDataStreamerHandler) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true

	symbols := make([]string, 0, len(h.refs))
	for symbol := range h.refs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	errs := []error{}
	if h.stream != nil && len(symbols) > 0 {
		if err := h.stream.RemoveSymbols(ctx, symbols...); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove upstream symbols: %w", err))
		}
	}
	for _, symbol := range symbols {
		if agg, ok := h.aggregators[symbol]; ok {
			agg.close()
		}
		h.endSessionsLocked(ctx, symbol)
	}
	h.refs = map[string][]*pubsub.Subscriber[MarketEvent]{}
	h.aggregators = map[string]*aggregator{}
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()

	if err := h.bus.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	h.Log.Infow("market data streamer stopped", "symbols", symbols)
	return errors.Join(errs...)
}

func (h *marketDataStreamerHandler) aggregator(symbol string) (*aggregator, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	agg, ok := h.aggregators[symbol]
	return agg, ok
}

func (h *marketDataStreamerHandler) onBar(b domain.StreamBar) {
	agg, ok := h.aggregator(b.Symbol)
	if !ok {
		return
	}
	agg.bar(b.Bar)
}

func (h *marketDataStreamerHandler) onQuote(q domain.StreamQuote) {
	agg, ok := h.aggregator(q.Symbol)
	if !ok {
		return
	}
	agg.quote(q)
}

func (h *marketDataStreamerHandler) publish(event MarketEvent) {
	if err := h.bus.Publish(MarketTopic(event.Symbol), event); err != nil && !errors.Is(err, pubsub.ErrShutdown) {
		h.Log.Warnw("failed to publish market event", "symbol", event.Symbol, "error", err)
	}
}

func without[T comparable](items []T, item T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it != item {
			out = append(out, it)
		}
	}
	return out
}
