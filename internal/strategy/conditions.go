package strategy

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"algotrader/internal/domain"

	"github.com/maja42/goval"
)

var (
	fastMAColumns = []string{"sma_10", "sma_20", "ema_9", "ema_12", "ema_20", "ema_26"}
	slowMAColumns = []string{"sma_50", "sma_100", "sma_200", "ema_50", "ema_100", "ema_200"}
)

var conditionCatalog = map[string]conditionDef{
	// filters
	"VolumeFilterCondition": {
		slot:  SlotFilter,
		specs: []ParamSpec{FloatParam("min_volume", 0, 5_000_000, 50_000, 0)},
		build: func(p Params) ([]string, int, firesFn, error) {
			minVolume, err := p.Float("min_volume")
			if err != nil {
				return nil, 0, nil, err
			}
			return []string{domain.ColVolume}, 1, func(s series, i int) bool {
				return s.at(domain.ColVolume, i) >= minVolume
			}, nil
		},
	},
	"PriceRangeFilterCondition": {
		slot: SlotFilter,
		specs: []ParamSpec{
			FloatParam("min_price", 0, 50, 1, 0),
			FloatParam("max_price", 100, 10_000, 100, 10_000),
		},
		build: func(p Params) ([]string, int, firesFn, error) {
			lo, err := p.Float("min_price")
			if err != nil {
				return nil, 0, nil, err
			}
			hi, err := p.Float("max_price")
			if err != nil {
				return nil, 0, nil, err
			}
			if lo > hi {
				return nil, 0, nil, fmt.Errorf("%w: min_price %v > max_price %v", domain.ErrInvalidParams, lo, hi)
			}
			return []string{domain.ColClose}, 1, func(s series, i int) bool {
				c := s.at(domain.ColClose, i)
				return c >= lo && c <= hi
			}, nil
		},
	},
	"VolatilityFilterCondition": {
		slot: SlotFilter,
		specs: []ParamSpec{
			ColumnParam("volatility_col", "volatility_20", "volatility_10", "volatility_50"),
			FloatParam("max_volatility", 0.005, 0.1, 0.005, 0.05),
		},
		build: threshold("volatility_col", "max_volatility", lessEq),
	},
	"ExpressionFilterCondition": {
		slot: SlotFilter,
		specs: []ParamSpec{
			ColumnParam("expression", "close > sma_200", "close > sma_50", "volume > volume_ma_20", "rsi_14 < 70"),
		},
		build: buildExpressionFilter,
	},

	// trend
	"MovingAverageTrendCondition": {
		slot: SlotTrend,
		specs: []ParamSpec{
			ColumnParam("fast_col", fastMAColumns...),
			ColumnParam("slow_col", slowMAColumns...),
		},
		build: compare("fast_col", "slow_col", greater),
	},
	"ADXTrendCondition": {
		slot: SlotTrend,
		specs: []ParamSpec{
			ColumnParam("adx_col", "adx_14"),
			FloatParam("threshold", 15, 40, 1, 25),
		},
		build: threshold("adx_col", "threshold", greaterEq),
	},
	"PriceAboveMATrendCondition": {
		slot: SlotTrend,
		specs: []ParamSpec{
			ColumnParam("close_col", domain.ColClose),
			ColumnParam("ma_col", slowMAColumns...),
		},
		build: compare("close_col", "ma_col", greater),
	},

	// entry
	"BollingerBandsEntryCondition": {
		slot: SlotEntry,
		specs: []ParamSpec{
			ColumnParam("close_col", domain.ColClose),
			ColumnParam("lower_col", "bb_lower"),
		},
		build: compare("close_col", "lower_col", lessEq),
	},
	"RSIEntryCondition": {
		slot: SlotEntry,
		specs: []ParamSpec{
			ColumnParam("rsi_col", "rsi_14"),
			FloatParam("oversold", 10, 40, 1, 30),
		},
		build: threshold("rsi_col", "oversold", less),
	},
	"MACDCrossEntryCondition": {
		slot: SlotEntry,
		specs: []ParamSpec{
			ColumnParam("macd_col", "macd"),
			ColumnParam("signal_col", "macd_signal"),
		},
		build: cross("macd_col", "signal_col", true),
	},
	"MovingAverageCrossEntryCondition": {
		slot: SlotEntry,
		specs: []ParamSpec{
			ColumnParam("fast_col", fastMAColumns...),
			ColumnParam("slow_col", slowMAColumns...),
		},
		build: cross("fast_col", "slow_col", true),
	},
	"StochasticEntryCondition": {
		slot: SlotEntry,
		specs: []ParamSpec{
			ColumnParam("k_col", "stoch_k"),
			ColumnParam("d_col", "stoch_d"),
			FloatParam("oversold", 10, 30, 1, 20),
		},
		build: stochastic(true),
	},
	"MomentumEntryCondition": {
		slot: SlotEntry,
		specs: []ParamSpec{
			ColumnParam("momentum_col", "roc_10", "momentum_10"),
			FloatParam("threshold", 0, 5, 0.25, 0),
		},
		build: threshold("momentum_col", "threshold", greater),
	},

	// exit
	"BollingerBandsExitCondition": {
		slot: SlotExit,
		specs: []ParamSpec{
			ColumnParam("close_col", domain.ColClose),
			ColumnParam("upper_col", "bb_upper"),
		},
		build: compare("close_col", "upper_col", greaterEq),
	},
	"RSIExitCondition": {
		slot: SlotExit,
		specs: []ParamSpec{
			ColumnParam("rsi_col", "rsi_14"),
			FloatParam("overbought", 60, 90, 1, 70),
		},
		build: threshold("rsi_col", "overbought", greater),
	},
	"MACDCrossExitCondition": {
		slot: SlotExit,
		specs: []ParamSpec{
			ColumnParam("macd_col", "macd"),
			ColumnParam("signal_col", "macd_signal"),
		},
		build: cross("macd_col", "signal_col", false),
	},
	"MovingAverageCrossExitCondition": {
		slot: SlotExit,
		specs: []ParamSpec{
			ColumnParam("fast_col", fastMAColumns...),
			ColumnParam("slow_col", slowMAColumns...),
		},
		build: cross("fast_col", "slow_col", false),
	},
	"StochasticExitCondition": {
		slot: SlotExit,
		specs: []ParamSpec{
			ColumnParam("k_col", "stoch_k"),
			ColumnParam("d_col", "stoch_d"),
			FloatParam("overbought", 70, 90, 1, 80),
		},
		build: stochastic(false),
	},
}

func stochastic(entry bool) func(p Params) ([]string, int, firesFn, error) {
	limitParam := "overbought"
	if entry {
		limitParam = "oversold"
	}
	return func(p Params) ([]string, int, firesFn, error) {
		cols, err := strs(p, "k_col", "d_col")
		if err != nil {
			return nil, 0, nil, err
		}
		limit, err := p.Float(limitParam)
		if err != nil {
			return nil, 0, nil, err
		}
		return cols, 1, func(s series, i int) bool {
			k, d := s.at(cols[0], i), s.at(cols[1], i)
			if entry {
				return k < limit && k > d
			}
			return k > limit && k < d
		}, nil
	}
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

var expressionKeywords = map[string]bool{"true": true, "false": true, "nil": true}

// buildExpressionFilter evaluates a boolean goval expression over the
// current row. Every identifier in the expression is a required column.
func buildExpressionFilter(p Params) ([]string, int, firesFn, error) {
	expression, err := p.String("expression")
	if err != nil {
		return nil, 0, nil, err
	}
	seen := map[string]bool{}
	columns := []string{}
	for _, ident := range identifierPattern.FindAllString(expression, -1) {
		if expressionKeywords[ident] || seen[ident] {
			continue
		}
		seen[ident] = true
		columns = append(columns, ident)
	}
	sort.Strings(columns)

	eval := goval.NewEvaluator()
	fires := func(s series, i int) bool {
		variables := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			v := s.at(col, i)
			if math.IsNaN(v) {
				return false
			}
			variables[col] = v
		}
		result, err := eval.Evaluate(expression, variables, nil)
		if err != nil {
			return false
		}
		b, ok := result.(bool)
		return ok && b
	}

	// reject expressions that do not parse before they reach a backtest
	probe := make(map[string]interface{}, len(columns))
	for _, col := range columns {
		probe[col] = 1.0
	}
	if _, err := eval.Evaluate(expression, probe, nil); err != nil {
		return nil, 0, nil, fmt.Errorf("%w: expression %q: %v", domain.ErrInvalidParams, expression, err)
	}
	return columns, 1, fires, nil
}
