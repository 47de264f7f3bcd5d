package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var ErrShutdown = errors.New("pubsub: bus is shut down")

type Handler[T any] func(T)

// Bus is an in-process topic bus. Every subscriber owns a queue and a
// consumer goroutine; the bus only indexes subscribers by id.
type Bus[T any] struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscriber[T]
	nextID uint64
	closed bool
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

func NewBus[T any](log *zap.SugaredLogger) *Bus[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bus[T]{
		topics: map[string]map[uint64]*Subscriber[T]{},
		log:    log,
	}
}

// Subscribe registers handler on topic. queueSize > 0 bounds the queue and
// a full queue drops its oldest entry for the newest one; queueSize <= 0
// means unbounded.
func (b *Bus[T]) Subscribe(topic string, queueSize int, handler Handler[T]) (*Subscriber[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrShutdown
	}

	b.nextID++
	s := &Subscriber[T]{
		id:      b.nextID,
		topic:   topic,
		size:    queueSize,
		handler: handler,
		done:    make(chan struct{}),
		log:     b.log,
	}
	s.cond = sync.NewCond(&s.mu)

	subs, ok := b.topics[topic]
	if !ok {
		subs = map[uint64]*Subscriber[T]{}
		b.topics[topic] = subs
	}
	subs[s.id] = s

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		s.consume()
	}()
	return s, nil
}

// Publish enqueues v for every current subscriber of topic. It never blocks
// on a slow subscriber.
func (b *Bus[T]) Publish(topic string, v T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrShutdown
	}
	for _, s := range b.topics[topic] {
		s.push(v)
	}
	return nil
}

// Unsubscribe stops delivery to s and discards anything still queued.
// Unknown or already removed subscribers are ignored.
func (b *Bus[T]) Unsubscribe(s *Subscriber[T]) {
	if s == nil {
		return
	}
	b.mu.Lock()
	subs, ok := b.topics[s.topic]
	if !ok || subs[s.id] != s {
		b.mu.Unlock()
		return
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(b.topics, s.topic)
	}
	b.mu.Unlock()

	s.close(true)
}

func (b *Bus[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Shutdown closes every queue and waits for consumers to drain what they
// already hold. Publishing afterwards fails with ErrShutdown. It must not be
// called from inside a handler.
func (b *Bus[T]) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := []*Subscriber[T]{}
	for _, topicSubs := range b.topics {
		for _, s := range topicSubs {
			subs = append(subs, s)
		}
	}
	b.topics = map[string]map[uint64]*Subscriber[T]{}
	b.mu.Unlock()

	for _, s := range subs {
		s.close(false)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain subscribers: %w", ctx.Err())
	}
}

type Subscriber[T any] struct {
	id      uint64
	topic   string
	size    int
	handler Handler[T]
	log     *zap.SugaredLogger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []T
	closed  bool
	dropped atomic.Int64
	done    chan struct{}
}

func (s *Subscriber[T]) Topic() string {
	return s.topic
}

// Dropped counts entries evicted because the queue was full.
func (s *Subscriber[T]) Dropped() int64 {
	return s.dropped.Load()
}

// Done is closed once the consumer goroutine has exited.
func (s *Subscriber[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber[T]) push(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.size > 0 && len(s.queue) >= s.size {
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.dropped.Add(1)
	}
	s.queue = append(s.queue, v)
	s.cond.Signal()
}

func (s *Subscriber[T]) close(discard bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if discard {
		s.queue = nil
	}
	s.cond.Broadcast()
}

func (s *Subscriber[T]) consume() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.deliver(v)
	}
}

func (s *Subscriber[T]) deliver(v T) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("subscriber handler panicked", "topic", s.topic, "panic", r)
		}
	}()
	s.handler(v)
}
