package strategy

import (
	"fmt"
	"sort"

	"algotrader/internal/domain"
)

// Template is a named strategy combinator: the condition classes it places in
// each slot. The optimizer searches the parameters of every listed class.
type Template struct {
	Name       string
	Conditions map[Slot][]string
	Stateful   string
}

var templates = map[string]Template{
	"Bollinger": {
		Name: "Bollinger",
		Conditions: map[Slot][]string{
			SlotFilter: {"VolumeFilterCondition"},
			SlotEntry:  {"BollingerBandsEntryCondition"},
			SlotExit:   {"BollingerBandsExitCondition"},
		},
		Stateful: "StopLossTakeProfitLogic",
	},
	"RSIReversion": {
		Name: "RSIReversion",
		Conditions: map[Slot][]string{
			SlotFilter: {"VolatilityFilterCondition"},
			SlotTrend:  {"PriceAboveMATrendCondition"},
			SlotEntry:  {"RSIEntryCondition"},
			SlotExit:   {"RSIExitCondition"},
		},
		Stateful: "PositionStateLogic",
	},
	"MACDMomentum": {
		Name: "MACDMomentum",
		Conditions: map[Slot][]string{
			SlotTrend: {"ADXTrendCondition"},
			SlotEntry: {"MACDCrossEntryCondition", "MomentumEntryCondition"},
			SlotExit:  {"MACDCrossExitCondition"},
		},
		Stateful: "StopLossTakeProfitLogic",
	},
	"MovingAverageCross": {
		Name: "MovingAverageCross",
		Conditions: map[Slot][]string{
			SlotFilter: {"PriceRangeFilterCondition"},
			SlotEntry:  {"MovingAverageCrossEntryCondition"},
			SlotExit:   {"MovingAverageCrossExitCondition"},
		},
		Stateful: "PositionStateLogic",
	},
	"StochasticSwing": {
		Name: "StochasticSwing",
		Conditions: map[Slot][]string{
			SlotFilter: {"ExpressionFilterCondition"},
			SlotTrend:  {"MovingAverageTrendCondition"},
			SlotEntry:  {"StochasticEntryCondition"},
			SlotExit:   {"StochasticExitCondition"},
		},
		Stateful: "StopLossTakeProfitLogic",
	},
}

func GetTemplate(name string) (Template, error) {
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", domain.ErrUnknownStrategy, name)
	}
	return t, nil
}

func TemplateNames() []string {
	out := make([]string, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ClassSpace is one class's searchable parameters within a slot.
type ClassSpace struct {
	Slot   Slot
	Class  string
	Params []ParamSpec
}

// Space lists every class of the template in slot order.
func (t Template) Space() []ClassSpace {
	out := []ClassSpace{}
	for _, slot := range ConditionSlots {
		for _, class := range t.Conditions[slot] {
			specs, _ := ConditionSpecs(class)
			out = append(out, ClassSpace{Slot: slot, Class: class, Params: specs})
		}
	}
	if t.Stateful != "" {
		specs, _ := StatefulSpecs(t.Stateful)
		out = append(out, ClassSpace{Slot: SlotStateful, Class: t.Stateful, Params: specs})
	}
	return out
}

// Accepts reports whether the template builds class into slot.
func (t Template) Accepts(slot Slot, class string) bool {
	if slot == SlotStateful {
		return class == t.Stateful
	}
	for _, c := range t.Conditions[slot] {
		if c == class {
			return true
		}
	}
	return false
}

// FilterAcceptedParams drops slots, classes and parameter names the template
// would not accept from grouped best_params.
func (t Template) FilterAcceptedParams(params map[string]any) map[string]any {
	out := map[string]any{}
	for _, slot := range append(append([]Slot{}, ConditionSlots...), SlotStateful) {
		entries := classEntries(params[slot.ParamsKey()])
		kept := []any{}
		for _, e := range entries {
			if !t.Accepts(slot, e.class) {
				continue
			}
			specs, err := classSpecs(slot, e.class)
			if err != nil {
				continue
			}
			allowed := map[string]bool{}
			for _, s := range specs {
				allowed[s.Name] = true
			}
			p := map[string]any{}
			for k, v := range e.params {
				if allowed[k] {
					p[k] = v
				}
			}
			kept = append(kept, map[string]any{e.class: p})
		}
		if len(kept) == 0 {
			continue
		}
		if slot == SlotStateful {
			out[slot.ParamsKey()] = kept[0]
			continue
		}
		out[slot.ParamsKey()] = kept
	}
	return out
}

// Build instantiates the template from grouped best_params. Classes without
// params in the input are built with their defaults.
func (t Template) Build(params map[string]any) (*SignalStrategy, error) {
	byClass := map[Slot]map[string]Params{}
	for _, slot := range append(append([]Slot{}, ConditionSlots...), SlotStateful) {
		byClass[slot] = map[string]Params{}
		for _, e := range classEntries(params[slot.ParamsKey()]) {
			byClass[slot][e.class] = e.params
		}
	}

	in := SignalStrategyInput{Name: t.Name}
	targets := map[Slot]*[]*Condition{
		SlotFilter: &in.Filters,
		SlotTrend:  &in.Trends,
		SlotEntry:  &in.Entries,
		SlotExit:   &in.Exits,
	}
	for _, slot := range ConditionSlots {
		for _, class := range t.Conditions[slot] {
			c, err := NewCondition(class, byClass[slot][class])
			if err != nil {
				return nil, err
			}
			*targets[slot] = append(*targets[slot], c)
		}
	}
	if t.Stateful != "" {
		logic, err := NewStatefulLogic(t.Stateful, byClass[SlotStateful][t.Stateful])
		if err != nil {
			return nil, err
		}
		in.Stateful = logic
	}
	return NewSignalStrategy(in)
}

func classSpecs(slot Slot, class string) ([]ParamSpec, error) {
	if slot == SlotStateful {
		return StatefulSpecs(class)
	}
	return ConditionSpecs(class)
}

type classEntry struct {
	class  string
	params Params
}

// classEntries reads either a list of {Class: {param: v}} objects or a
// single such object.
func classEntries(raw any) []classEntry {
	out := []classEntry{}
	var add func(v any)
	add = func(v any) {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				add(item)
			}
		case []map[string]any:
			for _, item := range t {
				add(item)
			}
		case map[string]any:
			classes := make([]string, 0, len(t))
			for class := range t {
				classes = append(classes, class)
			}
			sort.Strings(classes)
			for _, class := range classes {
				p := Params{}
				switch inner := t[class].(type) {
				case map[string]any:
					for k, v := range inner {
						p[k] = v
					}
				case Params:
					for k, v := range inner {
						p[k] = v
					}
				}
				out = append(out, classEntry{class: class, params: p})
			}
		}
	}
	add(raw)
	return out
}
