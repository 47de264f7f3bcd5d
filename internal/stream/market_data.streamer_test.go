package stream

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/pubsub"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func testBars(symbol string, from time.Time, n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		base := 100 + 0.05*float64(i) + 5*math.Sin(float64(i)/7)
		bars[i] = domain.Bar{
			Timestamp: from.AddDate(0, 0, i),
			Symbol:    symbol,
			Open:      base - 0.5,
			High:      base + 1,
			Low:       base - 1,
			Close:     base,
			Volume:    1e6 + 1e5*math.Cos(float64(i)/3),
			NumTrades: 900,
			Vwap:      base,
		}
	}
	return bars
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func requireSilent[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected event %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

type testStreamer struct {
	broker   *repository.PaperBroker
	sessions repository.DataStreamSessionRepository
	streamer MarketDataStreamer
}

func newTestStreamer(t *testing.T, bars map[string][]domain.Bar) testStreamer {
	broker := repository.NewPaperBroker(repository.PaperBrokerInput{Account: "paper", Cash: 10000, Bars: bars})
	sessions := repository.NewMemoryDataStreamSessionRepository()
	streamer := NewMarketDataStreamer(MarketDataStreamerInput{
		Broker:                      broker,
		DataStreamSessionRepository: sessions,
		Clock:                       util.NewFakeClock(testStart),
	})
	t.Cleanup(func() {
		require.NoError(t, streamer.Stop(context.Background()))
	})
	return testStreamer{broker: broker, sessions: sessions, streamer: streamer}
}

func (s testStreamer) openSessions(t *testing.T) int {
	open, err := s.sessions.ListOpen(context.Background())
	require.NoError(t, err)
	return len(open)
}

func Test_marketDataStreamerHandler_refCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStreamer(t, nil)
	noop := func(MarketEvent) {}

	first, err := s.streamer.Subscribe(ctx, []string{"AAPL", "GOOG"}, noop, 1)
	require.NoError(t, err)
	second, err := s.streamer.Subscribe(ctx, []string{"AAPL", "GOOG"}, noop, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "GOOG"}, s.broker.UpstreamSymbols())
	require.Equal(t, 4, s.openSessions(t))

	require.NoError(t, s.streamer.Unsubscribe(ctx, first["AAPL"], second["GOOG"]))
	require.Equal(t, []string{"AAPL", "GOOG"}, s.broker.UpstreamSymbols())

	require.NoError(t, s.streamer.Unsubscribe(ctx, second["AAPL"]))
	require.Equal(t, []string{"GOOG"}, s.broker.UpstreamSymbols())
	require.Equal(t, []string{"GOOG"}, s.streamer.Symbols())
	require.Equal(t, 2, s.openSessions(t))

	t.Run("repeated unsubscribe is ignored", func(t *testing.T) {
		require.NoError(t, s.streamer.Unsubscribe(ctx, second["AAPL"], nil))
		require.Equal(t, []string{"GOOG"}, s.broker.UpstreamSymbols())
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		require.NoError(t, s.streamer.Stop(ctx))
		require.NoError(t, s.streamer.Stop(ctx))
		require.Empty(t, s.broker.UpstreamSymbols())
		require.Equal(t, 0, s.openSessions(t))

		_, err := s.streamer.Subscribe(ctx, []string{"AAPL"}, noop, 1)
		require.ErrorIs(t, err, ErrStopped)
	})
}

func Test_marketDataStreamerHandler_upstreamMatchesSubscribers(t *testing.T) {
	ctx := context.Background()
	s := newTestStreamer(t, nil)
	symbols := []string{"AAPL", "GOOG", "MSFT"}

	live := map[string][]*pubsub.Subscriber[MarketEvent]{}
	steps := []struct {
		subscribe []string
		drop      map[string]int
	}{
		{subscribe: []string{"AAPL"}},
		{subscribe: []string{"AAPL", "MSFT"}},
		{drop: map[string]int{"AAPL": 1}},
		{subscribe: []string{"GOOG", "MSFT"}},
		{drop: map[string]int{"MSFT": 2, "AAPL": 1}},
		{drop: map[string]int{"GOOG": 1}},
	}
	for _, step := range steps {
		if len(step.subscribe) > 0 {
			subs, err := s.streamer.Subscribe(ctx, step.subscribe, func(MarketEvent) {}, 0)
			require.NoError(t, err)
			for symbol, sub := range subs {
				live[symbol] = append(live[symbol], sub)
			}
		}
		for symbol, n := range step.drop {
			require.NoError(t, s.streamer.Unsubscribe(ctx, live[symbol][:n]...))
			live[symbol] = live[symbol][n:]
		}

		expected := []string{}
		for _, symbol := range symbols {
			if len(live[symbol]) > 0 {
				expected = append(expected, symbol)
			}
		}
		require.Equal(t, expected, s.broker.UpstreamSymbols())
		require.Equal(t, expected, s.streamer.Symbols())
	}
}

func Test_marketDataStreamerHandler_delivery(t *testing.T) {
	ctx := context.Background()
	s := newTestStreamer(t, nil)
	events := make(chan MarketEvent, 16)
	_, err := s.streamer.Subscribe(ctx, []string{"AAPL"}, func(e MarketEvent) { events <- e }, 0)
	require.NoError(t, err)

	bars := testBars("AAPL", testStart, 2)
	bars[0].Vwap = 0
	s.broker.PushBar(bars[0])
	got := receive(t, events)
	require.Equal(t, domain.StreamTypeBars, got.Type)
	require.InDelta(t, (bars[0].High+bars[0].Low+bars[0].Close)/3, got.Bar.Vwap, 1e-9)

	// duplicate bar
	s.broker.PushBar(bars[0])
	s.broker.PushQuote(domain.StreamQuote{Symbol: "AAPL", BidPrice: 101, AskPrice: 100, Timestamp: testStart})
	s.broker.PushBar(testBars("GOOG", testStart, 1)[0])
	requireSilent(t, events)

	s.broker.PushQuote(domain.StreamQuote{Symbol: "AAPL", BidPrice: 100, AskPrice: 100.1, Timestamp: testStart})
	got = receive(t, events)
	require.Equal(t, domain.StreamTypeQuotes, got.Type)
	require.InDelta(t, 100.05, got.Quote.Mid(), 1e-9)

	s.broker.PushBar(bars[1])
	got = receive(t, events)
	require.Equal(t, bars[1].Timestamp, got.Bar.Timestamp)
}

func Test_aggregator(t *testing.T) {
	bar := testBars("AAPL", testStart, 1)[0]

	t.Run("bars", func(t *testing.T) {
		for _, tc := range []struct {
			name  string
			edit  func(b *domain.Bar)
			valid bool
		}{
			{name: "valid", edit: func(b *domain.Bar) {}, valid: true},
			{name: "foreign symbol", edit: func(b *domain.Bar) { b.Symbol = "GOOG" }},
			{name: "high below low", edit: func(b *domain.Bar) { b.High = b.Low - 1 }},
			{name: "zero close", edit: func(b *domain.Bar) { b.Close = 0 }},
			{name: "nan volume", edit: func(b *domain.Bar) { b.Volume = math.NaN() }},
		} {
			t.Run(tc.name, func(t *testing.T) {
				b := bar
				tc.edit(&b)
				emitted := 0
				ok := newAggregator("AAPL", func(MarketEvent) { emitted++ }).bar(b)
				require.Equal(t, tc.valid, ok)
				require.Equal(t, tc.valid, emitted == 1)
			})
		}
	})

	t.Run("stale quotes and closed aggregators", func(t *testing.T) {
		a := newAggregator("AAPL", func(MarketEvent) {})
		q := domain.StreamQuote{Symbol: "AAPL", BidPrice: 10, AskPrice: 10.1, Timestamp: testStart}
		require.True(t, a.quote(q))
		q.Timestamp = testStart.Add(-time.Second)
		require.False(t, a.quote(q))

		a.close()
		require.False(t, a.bar(bar))
	})

	t.Run("concurrent callbacks emit in acceptance order", func(t *testing.T) {
		bars := testBars("AAPL", testStart, 200)
		emitted := []time.Time{}
		a := newAggregator("AAPL", func(e MarketEvent) {
			emitted = append(emitted, e.Bar.Timestamp)
		})

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(offset int) {
				defer wg.Done()
				for i := offset; i < len(bars); i += 4 {
					a.bar(bars[i])
				}
			}(w)
		}
		wg.Wait()

		require.NotEmpty(t, emitted)
		for i := 1; i < len(emitted); i++ {
			require.True(t, emitted[i].After(emitted[i-1]), "event %d out of order", i)
		}
	})
}
