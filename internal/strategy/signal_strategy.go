package strategy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"algotrader/internal/domain"
)

// Strategy turns an enriched frame into entry and exit signals.
type Strategy interface {
	RequiredColumns() []string
	GenerateSignals(f *domain.Frame) (*domain.SignalFrame, error)
	Description() string
	HashID() string
}

// SignalStrategy is a single instrument strategy built from condition slots.
type SignalStrategy struct {
	name     string
	filters  []*Condition
	trends   []*Condition
	entries  []*Condition
	exits    []*Condition
	stateful StatefulLogic
}

type SignalStrategyInput struct {
	Name     string
	Filters  []*Condition
	Trends   []*Condition
	Entries  []*Condition
	Exits    []*Condition
	Stateful StatefulLogic
}

func NewSignalStrategy(in SignalStrategyInput) (*SignalStrategy, error) {
	slots := map[Slot][]*Condition{
		SlotFilter: in.Filters,
		SlotTrend:  in.Trends,
		SlotEntry:  in.Entries,
		SlotExit:   in.Exits,
	}
	for slot, conditions := range slots {
		for _, c := range conditions {
			if c.Slot() != slot {
				return nil, fmt.Errorf("%w: %s is a %s condition, not %s", domain.ErrInvalidParams, c.Class(), c.Slot(), slot)
			}
		}
	}
	if len(in.Entries) == 0 && len(in.Exits) == 0 {
		return nil, fmt.Errorf("%w: strategy %s has no entry or exit conditions", domain.ErrInvalidParams, in.Name)
	}
	return &SignalStrategy{
		name:     in.Name,
		filters:  in.Filters,
		trends:   in.Trends,
		entries:  in.Entries,
		exits:    in.Exits,
		stateful: in.Stateful,
	}, nil
}

func (s *SignalStrategy) Name() string {
	return s.name
}

func (s *SignalStrategy) conditions() []*Condition {
	out := []*Condition{}
	out = append(out, s.filters...)
	out = append(out, s.trends...)
	out = append(out, s.entries...)
	out = append(out, s.exits...)
	return out
}

func (s *SignalStrategy) RequiredColumns() []string {
	seen := map[string]bool{}
	if s.stateful != nil {
		seen[domain.ColClose] = true
	}
	for _, c := range s.conditions() {
		for _, col := range c.RequiredColumns() {
			seen[col] = true
		}
	}
	out := make([]string, 0, len(seen))
	for col := range seen {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

// Lookback is the longest condition lookback.
func (s *SignalStrategy) Lookback() int {
	lookback := 1
	for _, c := range s.conditions() {
		lookback = max(lookback, c.Lookback())
	}
	return lookback
}

func (s *SignalStrategy) GenerateSignals(f *domain.Frame) (*domain.SignalFrame, error) {
	if err := f.Require(s.RequiredColumns()...); err != nil {
		return nil, err
	}
	n := f.Len()
	filter, err := andMask(s.filters, f)
	if err != nil {
		return nil, err
	}
	trend, err := andMask(s.trends, f)
	if err != nil {
		return nil, err
	}
	entry, err := firstFiring(s.entries, f, domain.SignalBuy)
	if err != nil {
		return nil, err
	}
	exit, err := firstFiring(s.exits, f, domain.SignalSell)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		if !(filter[i] && trend[i]) {
			entry[i] = domain.SignalHold
		}
	}

	if s.stateful != nil {
		closes, _ := f.Column(domain.ColClose)
		state := &PositionState{}
		for i := 0; i < n; i++ {
			entry[i], exit[i] = s.stateful.Step(StepInput{
				Close:  closes[i],
				Entry:  entry[i],
				Exit:   exit[i],
				Trend:  trend[i],
				Filter: filter[i],
			}, state)
		}
	}

	out := domain.NewSignalFrame(f.Clone())
	out.Entry = entry
	out.Exit = exit
	return out, nil
}

func andMask(conditions []*Condition, f *domain.Frame) ([]bool, error) {
	mask := make([]bool, f.Len())
	for i := range mask {
		mask[i] = true
	}
	for _, c := range conditions {
		values, err := c.Evaluate(f)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			mask[i] = mask[i] && v
		}
	}
	return mask, nil
}

// firstFiring emits signal wherever any condition fires.
func firstFiring(conditions []*Condition, f *domain.Frame, signal domain.Signal) ([]domain.Signal, error) {
	out := make([]domain.Signal, f.Len())
	for i := range out {
		out[i] = domain.SignalHold
	}
	for _, c := range conditions {
		values, err := c.Evaluate(f)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if v && out[i] == domain.SignalHold {
				out[i] = signal
			}
		}
	}
	return out, nil
}

func (s *SignalStrategy) Description() string {
	stateful := "None"
	if s.stateful != nil {
		stateful = s.stateful.Description()
	}
	return "SignalStrategy(" + strings.Join([]string{
		"entry_conditions=" + describeList(s.entries),
		"exit_conditions=" + describeList(s.exits),
		"filter_conditions=" + describeList(s.filters),
		"name='" + s.name + "'",
		"stateful_logic=" + stateful,
		"trend_conditions=" + describeList(s.trends),
	}, ", ") + ")"
}

func (s *SignalStrategy) HashID() string {
	return HashDescription(s.Description())
}

// Params is the strategy in best_params form.
func (s *SignalStrategy) Params() map[string]any {
	out := map[string]any{}
	for slot, conditions := range map[Slot][]*Condition{
		SlotFilter: s.filters,
		SlotTrend:  s.trends,
		SlotEntry:  s.entries,
		SlotExit:   s.exits,
	} {
		list := []any{}
		for _, c := range conditions {
			list = append(list, map[string]any{c.Class(): map[string]any(c.Params())})
		}
		out[slot.ParamsKey()] = list
	}
	if s.stateful != nil {
		out[SlotStateful.ParamsKey()] = map[string]any{s.stateful.Class(): map[string]any(s.stateful.Params())}
	}
	return out
}

// describeList sorts member descriptions so construction order does not
// change the hash.
func describeList(conditions []*Condition) string {
	parts := make([]string, len(conditions))
	for i, c := range conditions {
		parts[i] = c.Description()
	}
	sort.Strings(parts)
	return "[" + strings.Join(parts, ", ") + "]"
}

func HashDescription(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}
