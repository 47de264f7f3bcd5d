package optimizer

import (
	"sort"
	"strings"

	"algotrader/internal/strategy"
)

var slotOrder = []strategy.Slot{
	strategy.SlotStateful,
	strategy.SlotPortfolio,
	strategy.SlotFilter,
	strategy.SlotTrend,
	strategy.SlotEntry,
	strategy.SlotExit,
}

func FlatKey(symbol string, slot strategy.Slot, class, param string) string {
	return symbol + "_" + string(slot) + "_" + class + "_" + param
}

// Regroup turns flat trial params back into grouped best_params:
// "AAPL_entry_X_p" becomes {"entry_conditions": [{"X": {"p": ...}}]}.
// Stateful logic and portfolio strategies group into a single object.
// Keys that do not parse are dropped.
func Regroup(symbol string, flat map[string]any) map[string]any {
	grouped := map[strategy.Slot]map[string]map[string]any{}
	for key, value := range flat {
		rest, ok := strings.CutPrefix(key, symbol+"_")
		if !ok {
			continue
		}
		slot, rest, ok := cutSlot(rest)
		if !ok {
			continue
		}
		class, param, ok := strings.Cut(rest, "_")
		if !ok || class == "" || param == "" {
			continue
		}
		if grouped[slot] == nil {
			grouped[slot] = map[string]map[string]any{}
		}
		if grouped[slot][class] == nil {
			grouped[slot][class] = map[string]any{}
		}
		grouped[slot][class][param] = value
	}

	out := map[string]any{}
	for slot, classes := range grouped {
		names := make([]string, 0, len(classes))
		for class := range classes {
			names = append(names, class)
		}
		sort.Strings(names)

		if slot == strategy.SlotStateful || slot == strategy.SlotPortfolio {
			single := map[string]any{}
			for _, class := range names {
				single[class] = classes[class]
			}
			out[slot.ParamsKey()] = single
			continue
		}
		list := make([]any, 0, len(names))
		for _, class := range names {
			list = append(list, map[string]any{class: classes[class]})
		}
		out[slot.ParamsKey()] = list
	}
	return out
}

func cutSlot(s string) (strategy.Slot, string, bool) {
	for _, slot := range slotOrder {
		if rest, ok := strings.CutPrefix(s, string(slot)+"_"); ok {
			return slot, rest, true
		}
	}
	return "", "", false
}
