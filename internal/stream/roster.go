package stream

import (
	"context"
	"sort"
	"sync"

	"algotrader/internal/domain"
	"algotrader/internal/pubsub"

	"go.uber.org/zap"
)

const RosterTopic = "roster"

// RosterSnapshot is the latest signal payload of every symbol.
type RosterSnapshot map[string]domain.SignalDataPayload

func (r RosterSnapshot) Symbols() []string {
	out := make([]string, 0, len(r))
	for symbol := range r {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Roster keeps the latest payload per symbol. Every update publishes the
// full snapshot, so subscribers never need to merge.
type Roster struct {
	bus *pubsub.Bus[RosterSnapshot]

	mu     sync.RWMutex
	latest RosterSnapshot
}

func NewRoster(log *zap.SugaredLogger) *Roster {
	return &Roster{
		bus:    pubsub.NewBus[RosterSnapshot](log),
		latest: RosterSnapshot{},
	}
}

func (r *Roster) Update(p domain.SignalDataPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[p.Symbol] = p
	return r.bus.Publish(RosterTopic, r.snapshotLocked())
}

func (r *Roster) Snapshot() RosterSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Roster) snapshotLocked() RosterSnapshot {
	out := make(RosterSnapshot, len(r.latest))
	for symbol, p := range r.latest {
		out[symbol] = p
	}
	return out
}

func (r *Roster) Subscribe(queueSize int, handler pubsub.Handler[RosterSnapshot]) (*pubsub.Subscriber[RosterSnapshot], error) {
	return r.bus.Subscribe(RosterTopic, queueSize, handler)
}

func (r *Roster) Unsubscribe(sub *pubsub.Subscriber[RosterSnapshot]) {
	r.bus.Unsubscribe(sub)
}

func (r *Roster) SubscriberCount() int {
	return r.bus.SubscriberCount(RosterTopic)
}

func (r *Roster) Shutdown(ctx context.Context) error {
	return r.bus.Shutdown(ctx)
}
