package strategy

import (
	"fmt"

	"algotrader/internal/domain"
)

// BufferedCondition keeps the trailing rows a condition needs and evaluates
// only the newest one.
type BufferedCondition struct {
	condition *Condition
	ring      []domain.EnrichedBar
}

func NewBufferedCondition(c *Condition) *BufferedCondition {
	return &BufferedCondition{
		condition: c,
		ring:      make([]domain.EnrichedBar, 0, c.Lookback()),
	}
}

func (b *BufferedCondition) Condition() *Condition {
	return b.condition
}

func (b *BufferedCondition) Update(row domain.EnrichedBar) (bool, error) {
	b.ring = appendRing(b.ring, row, b.condition.Lookback())
	f, err := domain.FrameFromEnrichedBars(row.Symbol, b.ring)
	if err != nil {
		return false, err
	}
	return b.condition.EvaluateAt(f, f.Len()-1)
}

func appendRing(ring []domain.EnrichedBar, row domain.EnrichedBar, size int) []domain.EnrichedBar {
	if size < 1 {
		size = 1
	}
	ring = append(ring, row)
	if len(ring) > size {
		ring = append(ring[:0], ring[len(ring)-size:]...)
	}
	return ring
}

// BufferedSignalStrategy is the single row path of a SignalStrategy. Stateful
// logic state is carried between updates. Not safe for concurrent use.
type BufferedSignalStrategy struct {
	base    *SignalStrategy
	filters []*BufferedCondition
	trends  []*BufferedCondition
	entries []*BufferedCondition
	exits   []*BufferedCondition
	state   PositionState
}

func NewBufferedSignalStrategy(base *SignalStrategy) *BufferedSignalStrategy {
	wrap := func(conditions []*Condition) []*BufferedCondition {
		out := make([]*BufferedCondition, len(conditions))
		for i, c := range conditions {
			out[i] = NewBufferedCondition(c)
		}
		return out
	}
	return &BufferedSignalStrategy{
		base:    base,
		filters: wrap(base.filters),
		trends:  wrap(base.trends),
		entries: wrap(base.entries),
		exits:   wrap(base.exits),
	}
}

func (b *BufferedSignalStrategy) Base() *SignalStrategy {
	return b.base
}

func (b *BufferedSignalStrategy) Description() string {
	return "Buffered" + b.base.Description()
}

func (b *BufferedSignalStrategy) HashID() string {
	return b.base.HashID()
}

// Update feeds one enriched row and returns that row's entry and exit
// signals.
func (b *BufferedSignalStrategy) Update(row domain.EnrichedBar) (domain.Signal, domain.Signal, error) {
	filter, err := updateAll(b.filters, row, true)
	if err != nil {
		return "", "", err
	}
	trend, err := updateAll(b.trends, row, true)
	if err != nil {
		return "", "", err
	}
	buy, err := updateAll(b.entries, row, false)
	if err != nil {
		return "", "", err
	}
	sell, err := updateAll(b.exits, row, false)
	if err != nil {
		return "", "", err
	}

	entry, exit := domain.SignalHold, domain.SignalHold
	if buy && filter && trend {
		entry = domain.SignalBuy
	}
	if sell {
		exit = domain.SignalSell
	}
	if b.base.stateful != nil {
		entry, exit = b.base.stateful.Step(StepInput{
			Close:  row.Close,
			Entry:  entry,
			Exit:   exit,
			Trend:  trend,
			Filter: filter,
		}, &b.state)
	}
	return entry, exit, nil
}

// updateAll feeds every buffered condition so their rings stay aligned. all
// selects AND over the results, otherwise OR.
func updateAll(conditions []*BufferedCondition, row domain.EnrichedBar, all bool) (bool, error) {
	result := all
	for _, c := range conditions {
		v, err := c.Update(row)
		if err != nil {
			return false, fmt.Errorf("failed to update %s: %w", c.condition.Class(), err)
		}
		if all {
			result = result && v
		} else {
			result = result || v
		}
	}
	return result, nil
}
