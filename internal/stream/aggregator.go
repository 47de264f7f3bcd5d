package stream

import (
	"math"
	"sync"
	"time"

	"algotrader/internal/domain"
)

// MarketEvent is one normalized broker event for a symbol. Exactly one of
// Bar and Quote is set, matching Type.
type MarketEvent struct {
	Type   domain.StreamType
	Symbol string
	Bar    *domain.Bar
	Quote  *domain.StreamQuote
}

func MarketTopic(symbol string) string {
	return "market:" + symbol
}

// aggregator sits between the broker callbacks and the bus for one symbol.
// It drops out of order, duplicate and malformed events. Accepted events are
// emitted under the lock, so they reach the bus in acceptance order even when
// callbacks for the symbol run concurrently. emit must not block.
type aggregator struct {
	symbol string
	emit   func(MarketEvent)

	mu        sync.Mutex
	lastBar   time.Time
	lastQuote time.Time
	closed    bool
}

func newAggregator(symbol string, emit func(MarketEvent)) *aggregator {
	return &aggregator{symbol: symbol, emit: emit}
}

func (a *aggregator) bar(b domain.Bar) bool {
	if b.Symbol != a.symbol || !validBar(b) {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || !b.Timestamp.After(a.lastBar) {
		return false
	}
	a.lastBar = b.Timestamp
	if b.Vwap == 0 {
		b.Vwap = (b.High + b.Low + b.Close) / 3
	}
	a.emit(MarketEvent{Type: domain.StreamTypeBars, Symbol: a.symbol, Bar: &b})
	return true
}

func (a *aggregator) quote(q domain.StreamQuote) bool {
	if q.Symbol != a.symbol || q.BidPrice <= 0 || q.AskPrice <= 0 || q.AskPrice < q.BidPrice {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || q.Timestamp.Before(a.lastQuote) {
		return false
	}
	a.lastQuote = q.Timestamp
	a.emit(MarketEvent{Type: domain.StreamTypeQuotes, Symbol: a.symbol, Quote: &q})
	return true
}

func (a *aggregator) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func validBar(b domain.Bar) bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return b.Close > 0 && b.High >= b.Low && !b.Timestamp.IsZero()
}
