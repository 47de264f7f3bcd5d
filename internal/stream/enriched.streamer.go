package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"algotrader/internal/calculator"
	"algotrader/internal/domain"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"go.uber.org/zap"
)

// lookbackMultiple sizes the enrichment ring relative to the feature
// engineer's max lookback.
const lookbackMultiple = 3

func EnrichedTopic(symbol string) string {
	return "enriched:" + symbol
}

// EnrichedStreamer turns raw bars into feature rows. Each symbol keeps a
// ring of recent bars; every new bar re-runs the feature engineer over the
// ring and the newest row is published.
type EnrichedStreamer interface {
	Subscribe(ctx context.Context, symbols []string, handler pubsub.Handler[domain.EnrichedBar], queueSize int) (map[string]*pubsub.Subscriber[domain.EnrichedBar], error)
	Unsubscribe(ctx context.Context, subs ...*pubsub.Subscriber[domain.EnrichedBar]) error
	Stop(ctx context.Context) error
}

type EnrichedStreamerInput struct {
	MarketDataStreamer MarketDataStreamer
	FeatureEngineer    calculator.FeatureEngineer
	// HistoricalDataRepository seeds the ring when set
	HistoricalDataRepository repository.HistoricalDataRepository
	WarmupDays               int
	// RingSize defaults to three times the feature engineer's lookback
	RingSize int
	Clock    util.Clock
	Log      *zap.SugaredLogger
}

type enrichedStreamerHandler struct {
	MarketDataStreamer       MarketDataStreamer
	FeatureEngineer          calculator.FeatureEngineer
	HistoricalDataRepository repository.HistoricalDataRepository
	WarmupDays               int
	RingSize                 int
	Clock                    util.Clock
	Log                      *zap.SugaredLogger

	bus *pubsub.Bus[domain.EnrichedBar]

	mu      sync.Mutex
	symbols map[string]*enrichedSymbol
	stopped bool
}

type enrichedSymbol struct {
	symbol string
	raw    *pubsub.Subscriber[MarketEvent]
	refs   []*pubsub.Subscriber[domain.EnrichedBar]

	// enrichment lock, guards ring
	mu   sync.Mutex
	ring []domain.Bar
}

func NewEnrichedStreamer(in EnrichedStreamerInput) EnrichedStreamer {
	if in.RingSize <= 0 {
		in.RingSize = lookbackMultiple * in.FeatureEngineer.MaxLookback()
	}
	if in.Clock == nil {
		in.Clock = util.NewClock()
	}
	if in.Log == nil {
		in.Log = zap.NewNop().Sugar()
	}
	return &enrichedStreamerHandler{
		MarketDataStreamer:       in.MarketDataStreamer,
		FeatureEngineer:          in.FeatureEngineer,
		HistoricalDataRepository: in.HistoricalDataRepository,
		WarmupDays:               in.WarmupDays,
		RingSize:                 in.RingSize,
		Clock:                    in.Clock,
		Log:                      in.Log.With("component", "enriched_streamer"),
		bus:                      pubsub.NewBus[domain.EnrichedBar](in.Log),
		symbols:                  map[string]*enrichedSymbol{},
	}
}

func (h *enrichedStreamerHandler) Subscribe(ctx context.Context, symbols []string, handler pubsub.Handler[domain.EnrichedBar], queueSize int) (map[string]*pubsub.Subscriber[domain.EnrichedBar], error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrStopped
	}

	out := map[string]*pubsub.Subscriber[domain.EnrichedBar]{}
	for _, symbol := range symbols {
		if _, ok := out[symbol]; ok {
			continue
		}
		state, err := h.openLocked(ctx, symbol)
		if err != nil {
			h.unsubscribeLocked(ctx, values(out))
			return nil, err
		}
		sub, err := h.bus.Subscribe(EnrichedTopic(symbol), queueSize, handler)
		if err != nil {
			h.unsubscribeLocked(ctx, values(out))
			return nil, fmt.Errorf("failed to subscribe to enriched %s: %w", symbol, err)
		}
		state.refs = append(state.refs, sub)
		out[symbol] = sub
	}
	return out, nil
}

// openLocked returns the symbol's state, creating it and subscribing to the
// raw stream for the first subscriber.
func (h *enrichedStreamerHandler) openLocked(ctx context.Context, symbol string) (*enrichedSymbol, error) {
	if state, ok := h.symbols[symbol]; ok {
		return state, nil
	}
	state := &enrichedSymbol{symbol: symbol}
	seed, err := h.warmUp(ctx, symbol)
	if err != nil {
		h.Log.Warnw("enrichment warm up failed, starting cold", "symbol", symbol, "error", err)
	}
	state.ring = seed

	// every bar matters to the indicators so the raw hop is unbounded
	raw, err := h.MarketDataStreamer.Subscribe(ctx, []string{symbol}, func(e MarketEvent) {
		h.handle(state, e)
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to raw %s: %w", symbol, err)
	}
	state.raw = raw[symbol]
	h.symbols[symbol] = state
	return state, nil
}

func (h *enrichedStreamerHandler) warmUp(ctx context.Context, symbol string) ([]domain.Bar, error) {
	if h.HistoricalDataRepository == nil || h.WarmupDays <= 0 {
		return nil, nil
	}
	end := h.Clock.Now()
	in := repository.GetBarsInput{
		Symbol: symbol,
		Start:  end.AddDate(0, 0, -h.WarmupDays),
		End:    end,
		Limit:  h.RingSize,
	}
	bars := []domain.Bar{}
	for {
		page, err := h.HistoricalDataRepository.GetBars(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to get warm up bars for %s: %w", symbol, err)
		}
		bars = append(bars, page.Bars...)
		if page.NextPageToken == "" || page.NextPageToken == in.PageToken {
			break
		}
		in.PageToken = page.NextPageToken
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	deduped := bars[:0]
	for _, b := range bars {
		if n := len(deduped); n > 0 && !b.Timestamp.After(deduped[n-1].Timestamp) {
			continue
		}
		deduped = append(deduped, b)
	}
	if len(deduped) > h.RingSize {
		deduped = deduped[len(deduped)-h.RingSize:]
	}
	h.Log.Infow("seeded enrichment ring", "symbol", symbol, "bars", len(deduped))
	return deduped, nil
}

func (h *enrichedStreamerHandler) handle(state *enrichedSymbol, e MarketEvent) {
	if e.Type != domain.StreamTypeBars || e.Bar == nil {
		return
	}
	row, ok, err := state.enrich(*e.Bar, h.FeatureEngineer, h.RingSize)
	if err != nil {
		h.Log.Warnw("failed to enrich bar", "symbol", state.symbol, "timestamp", e.Bar.Timestamp, "error", err)
		return
	}
	if !ok {
		return
	}
	if err := h.bus.Publish(EnrichedTopic(state.symbol), row); err != nil && !errors.Is(err, pubsub.ErrShutdown) {
		h.Log.Warnw("failed to publish enriched bar", "symbol", state.symbol, "error", err)
	}
}

// enrich appends the bar to the ring and engineers the newest row. Bars not
// newer than the ring's last one are ignored.
func (s *enrichedSymbol) enrich(bar domain.Bar, fe calculator.FeatureEngineer, size int) (domain.EnrichedBar, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.ring); n > 0 && !bar.Timestamp.After(s.ring[n-1].Timestamp) {
		return domain.EnrichedBar{}, false, nil
	}
	s.ring = append(s.ring, bar)
	if len(s.ring) > size {
		s.ring = append(s.ring[:0], s.ring[len(s.ring)-size:]...)
	}

	f, err := fe.Engineer(domain.FrameFromBars(s.symbol, s.ring))
	if err != nil {
		return domain.EnrichedBar{}, false, err
	}
	return f.EnrichedBar(f.Len() - 1), true, nil
}

func (h *enrichedStreamerHandler) Unsubscribe(ctx context.Context, subs ...*pubsub.Subscriber[domain.EnrichedBar]) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unsubscribeLocked(ctx, subs)
}

func (h *enrichedStreamerHandler) unsubscribeLocked(ctx context.Context, subs []*pubsub.Subscriber[domain.EnrichedBar]) error {
	raws := []*pubsub.Subscriber[MarketEvent]{}
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		symbol := strings.TrimPrefix(sub.Topic(), EnrichedTopic(""))
		state, ok := h.symbols[symbol]
		if !ok {
			continue
		}
		remaining := without(state.refs, sub)
		if len(remaining) == len(state.refs) {
			continue
		}
		h.bus.Unsubscribe(sub)
		state.refs = remaining
		if len(remaining) == 0 {
			delete(h.symbols, symbol)
			raws = append(raws, state.raw)
		}
	}
	if len(raws) == 0 {
		return nil
	}
	return h.MarketDataStreamer.Unsubscribe(ctx, raws...)
}

func (h *enrichedStreamerHandler) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	raws := []*pubsub.Subscriber[MarketEvent]{}
	for _, state := range h.symbols {
		raws = append(raws, state.raw)
	}
	h.symbols = map[string]*enrichedSymbol{}
	h.mu.Unlock()

	errs := []error{}
	if len(raws) > 0 {
		if err := h.MarketDataStreamer.Unsubscribe(ctx, raws...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.bus.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
