package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []int
}

func (c *collector) add(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, v)
}

func (c *collector) values() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.got))
	copy(out, c.got)
	return out
}

func TestBus_Publish(t *testing.T) {
	t.Run("unbounded queue delivers in publish order", func(t *testing.T) {
		bus := NewBus[int](nil)
		c := &collector{}
		_, err := bus.Subscribe("bars:AAPL", 0, c.add)
		require.NoError(t, err)

		expected := []int{}
		for i := 0; i < 1000; i++ {
			require.NoError(t, bus.Publish("bars:AAPL", i))
			expected = append(expected, i)
		}
		require.NoError(t, bus.Shutdown(context.Background()))
		require.Equal(t, expected, c.values())
	})

	t.Run("latest only queue keeps newest entries in order", func(t *testing.T) {
		bus := NewBus[int](nil)
		release := make(chan struct{})
		started := make(chan struct{}, 1)
		c := &collector{}
		sub, err := bus.Subscribe("roster", 1, func(v int) {
			if v == 0 {
				started <- struct{}{}
				<-release
			}
			c.add(v)
		})
		require.NoError(t, err)

		require.NoError(t, bus.Publish("roster", 0))
		<-started
		for i := 1; i <= 5; i++ {
			require.NoError(t, bus.Publish("roster", i))
		}
		close(release)
		require.NoError(t, bus.Shutdown(context.Background()))

		require.Equal(t, []int{0, 5}, c.values())
		require.Equal(t, int64(4), sub.Dropped())
	})

	t.Run("only subscribers of the topic receive", func(t *testing.T) {
		bus := NewBus[int](nil)
		aapl, goog := &collector{}, &collector{}
		_, err := bus.Subscribe("bars:AAPL", 0, aapl.add)
		require.NoError(t, err)
		_, err = bus.Subscribe("bars:GOOG", 0, goog.add)
		require.NoError(t, err)

		require.NoError(t, bus.Publish("bars:AAPL", 1))
		require.NoError(t, bus.Publish("bars:GOOG", 2))
		require.NoError(t, bus.Shutdown(context.Background()))

		require.Equal(t, []int{1}, aapl.values())
		require.Equal(t, []int{2}, goog.values())
	})
}

func TestBus_Shutdown(t *testing.T) {
	t.Run("publish after shutdown fails", func(t *testing.T) {
		bus := NewBus[int](nil)
		require.NoError(t, bus.Shutdown(context.Background()))
		require.ErrorIs(t, bus.Publish("x", 1), ErrShutdown)

		_, err := bus.Subscribe("x", 0, func(int) {})
		require.ErrorIs(t, err, ErrShutdown)

		// idempotent
		require.NoError(t, bus.Shutdown(context.Background()))
	})

	t.Run("consumers terminate", func(t *testing.T) {
		bus := NewBus[int](nil)
		sub, err := bus.Subscribe("x", 0, func(int) {})
		require.NoError(t, err)
		require.NoError(t, bus.Shutdown(context.Background()))

		select {
		case <-sub.Done():
		case <-time.After(time.Second):
			t.Fatal("consumer did not exit")
		}
	})

	t.Run("times out on a stuck handler", func(t *testing.T) {
		bus := NewBus[int](nil)
		block := make(chan struct{})
		defer close(block)
		_, err := bus.Subscribe("x", 0, func(int) { <-block })
		require.NoError(t, err)
		require.NoError(t, bus.Publish("x", 1))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		require.Error(t, bus.Shutdown(ctx))
	})
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Run("unknown subscriber is a no-op", func(t *testing.T) {
		bus := NewBus[int](nil)
		other := NewBus[int](nil)
		sub, err := other.Subscribe("x", 0, func(int) {})
		require.NoError(t, err)

		bus.Unsubscribe(sub)
		bus.Unsubscribe(nil)
		require.Equal(t, 1, other.SubscriberCount("x"))
	})

	t.Run("stops delivery", func(t *testing.T) {
		bus := NewBus[int](nil)
		c := &collector{}
		sub, err := bus.Subscribe("x", 0, c.add)
		require.NoError(t, err)
		require.NoError(t, bus.Publish("x", 1))

		bus.Unsubscribe(sub)
		<-sub.Done()
		require.NoError(t, bus.Publish("x", 2))
		require.Equal(t, 0, bus.SubscriberCount("x"))
		require.NotContains(t, c.values(), 2)

		// twice is fine
		bus.Unsubscribe(sub)
	})

	t.Run("panicking handler does not kill the consumer", func(t *testing.T) {
		bus := NewBus[int](nil)
		c := &collector{}
		_, err := bus.Subscribe("x", 0, func(v int) {
			if v == 1 {
				panic("boom")
			}
			c.add(v)
		})
		require.NoError(t, err)
		require.NoError(t, bus.Publish("x", 1))
		require.NoError(t, bus.Publish("x", 2))
		require.NoError(t, bus.Shutdown(context.Background()))
		require.Equal(t, []int{2}, c.values())
	})
}
