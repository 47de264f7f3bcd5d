package strategy

import (
	"fmt"
	"math"
	"sort"

	"algotrader/internal/domain"
)

type Slot string

const (
	SlotFilter    Slot = "filter"
	SlotTrend     Slot = "trend"
	SlotEntry     Slot = "entry"
	SlotExit      Slot = "exit"
	SlotStateful  Slot = "stateful_logic"
	SlotPortfolio Slot = "portfolio_strategy"
)

// ConditionSlots are the slots that hold lists of conditions.
var ConditionSlots = []Slot{SlotFilter, SlotTrend, SlotEntry, SlotExit}

// ParamsKey is the key a slot's conditions are grouped under in best_params.
func (s Slot) ParamsKey() string {
	switch s {
	case SlotStateful, SlotPortfolio:
		return string(s)
	}
	return string(s) + "_conditions"
}

// series reads frame columns by name; missing values read as unavailable.
type series map[string][]float64

func (s series) at(col string, i int) float64 {
	c, ok := s[col]
	if !ok || i < 0 || i >= len(c) {
		return domain.Unavailable
	}
	return c[i]
}

// firesFn reports whether the condition holds at row i. For filter and trend
// conditions that is the mask value, for entry a BUY and for exit a SELL.
type firesFn func(s series, i int) bool

// Condition is one parameterized rule placed in a slot of a SignalStrategy.
type Condition struct {
	class    string
	slot     Slot
	params   Params
	columns  []string
	lookback int
	fires    firesFn
}

func (c *Condition) Class() string {
	return c.class
}

func (c *Condition) Slot() Slot {
	return c.slot
}

func (c *Condition) Params() Params {
	out := Params{}
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

func (c *Condition) RequiredColumns() []string {
	return append([]string{}, c.columns...)
}

// Lookback is the number of trailing rows, current row included, one
// evaluation reads.
func (c *Condition) Lookback() int {
	return c.lookback
}

func (c *Condition) Description() string {
	return describe(c.class, c.params)
}

func (c *Condition) Evaluate(f *domain.Frame) ([]bool, error) {
	s, err := seriesFor(f, c.columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.class, err)
	}
	out := make([]bool, f.Len())
	for i := range out {
		out[i] = c.fires(s, i)
	}
	return out, nil
}

// EvaluateAt evaluates a single row.
func (c *Condition) EvaluateAt(f *domain.Frame, i int) (bool, error) {
	s, err := seriesFor(f, c.columns)
	if err != nil {
		return false, fmt.Errorf("%s: %w", c.class, err)
	}
	return c.fires(s, i), nil
}

func seriesFor(f *domain.Frame, columns []string) (series, error) {
	if err := f.Require(columns...); err != nil {
		return nil, err
	}
	s := series{}
	for _, name := range columns {
		s[name], _ = f.Column(name)
	}
	return s, nil
}

type conditionDef struct {
	slot  Slot
	specs []ParamSpec
	// build returns the columns read, the lookback and the rule
	build func(p Params) ([]string, int, firesFn, error)
}

// NewCondition builds a condition by class name.
func NewCondition(class string, params Params) (*Condition, error) {
	def, ok := conditionCatalog[class]
	if !ok {
		return nil, fmt.Errorf("%w: condition %s", domain.ErrUnknownStrategy, class)
	}
	resolved, err := resolveParams(class, def.specs, params)
	if err != nil {
		return nil, err
	}
	columns, lookback, fires, err := def.build(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", class, err)
	}
	return &Condition{
		class:    class,
		slot:     def.slot,
		params:   resolved,
		columns:  columns,
		lookback: lookback,
		fires:    fires,
	}, nil
}

// ConditionSpecs returns the parameter space of a condition class.
func ConditionSpecs(class string) ([]ParamSpec, error) {
	def, ok := conditionCatalog[class]
	if !ok {
		return nil, fmt.Errorf("%w: condition %s", domain.ErrUnknownStrategy, class)
	}
	return def.specs, nil
}

func ConditionSlot(class string) (Slot, bool) {
	def, ok := conditionCatalog[class]
	return def.slot, ok
}

func ConditionClasses() []string {
	out := make([]string, 0, len(conditionCatalog))
	for class := range conditionCatalog {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

func strs(p Params, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := p.String(name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// threshold builds a single column comparison against a constant.
func threshold(colParam, valueParam string, fires func(v, limit float64) bool) func(p Params) ([]string, int, firesFn, error) {
	return func(p Params) ([]string, int, firesFn, error) {
		col, err := p.String(colParam)
		if err != nil {
			return nil, 0, nil, err
		}
		limit, err := p.Float(valueParam)
		if err != nil {
			return nil, 0, nil, err
		}
		return []string{col}, 1, func(s series, i int) bool {
			return fires(s.at(col, i), limit)
		}, nil
	}
}

// compare builds a two column comparison on the current row.
func compare(aParam, bParam string, fires func(a, b float64) bool) func(p Params) ([]string, int, firesFn, error) {
	return func(p Params) ([]string, int, firesFn, error) {
		cols, err := strs(p, aParam, bParam)
		if err != nil {
			return nil, 0, nil, err
		}
		return cols, 1, func(s series, i int) bool {
			return fires(s.at(cols[0], i), s.at(cols[1], i))
		}, nil
	}
}

// cross fires on the row where a crosses b, upward when up is set.
func cross(aParam, bParam string, up bool) func(p Params) ([]string, int, firesFn, error) {
	return func(p Params) ([]string, int, firesFn, error) {
		cols, err := strs(p, aParam, bParam)
		if err != nil {
			return nil, 0, nil, err
		}
		return cols, 2, func(s series, i int) bool {
			prevA, prevB := s.at(cols[0], i-1), s.at(cols[1], i-1)
			a, b := s.at(cols[0], i), s.at(cols[1], i)
			if anyNaN(prevA, prevB, a, b) {
				return false
			}
			if up {
				return prevA <= prevB && a > b
			}
			return prevA >= prevB && a < b
		}, nil
	}
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func greater(a, b float64) bool   { return a > b }
func greaterEq(a, b float64) bool { return a >= b }
func less(a, b float64) bool      { return a < b }
func lessEq(a, b float64) bool    { return a <= b }
