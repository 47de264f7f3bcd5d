package strategy

import (
	"testing"
	"time"

	"algotrader/internal/domain"

	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T, columns map[string][]float64) *domain.Frame {
	n := 0
	for _, col := range columns {
		n = len(col)
	}
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = start.AddDate(0, 0, i)
	}
	f := domain.NewFrame("AAPL", ts)
	for _, name := range []string{domain.ColClose, domain.ColVolume, "bb_lower", "bb_upper", "macd", "macd_signal", "sma_200"} {
		if col, ok := columns[name]; ok {
			require.NoError(t, f.SetColumn(name, col))
		}
	}
	for name, col := range columns {
		if !f.HasColumn(name) {
			require.NoError(t, f.SetColumn(name, col))
		}
	}
	return f
}

func bollingerFrame(t *testing.T) *domain.Frame {
	return testFrame(t, map[string][]float64{
		domain.ColClose:  {100, 95, 97, 104, 110, 103, 94, 96},
		domain.ColVolume: {1e6, 1e6, 1e6, 1e6, 1e6, 1e6, 10, 1e6},
		"bb_lower":       {96, 96, 96, 96, 96, 96, 96, 96},
		"bb_upper":       {108, 108, 108, 108, 108, 108, 108, 108},
	})
}

func TestCondition(t *testing.T) {
	t.Run("unknown class", func(t *testing.T) {
		_, err := NewCondition("NopeCondition", nil)
		require.ErrorIs(t, err, domain.ErrUnknownStrategy)
	})

	t.Run("unknown param", func(t *testing.T) {
		_, err := NewCondition("RSIEntryCondition", Params{"nope": 1})
		require.ErrorIs(t, err, domain.ErrInvalidParams)
	})

	t.Run("json numbers normalize to the declared kind", func(t *testing.T) {
		a, err := NewCondition("RSIEntryCondition", Params{"oversold": 30})
		require.NoError(t, err)
		b, err := NewCondition("RSIEntryCondition", Params{"oversold": 30.0, "rsi_col": "rsi_14"})
		require.NoError(t, err)
		require.Equal(t, a.Description(), b.Description())
		require.Equal(t, "RSIEntryCondition(oversold=30, rsi_col='rsi_14')", a.Description())
	})

	t.Run("missing column", func(t *testing.T) {
		c, err := NewCondition("RSIEntryCondition", nil)
		require.NoError(t, err)
		_, err = c.Evaluate(bollingerFrame(t))
		require.ErrorIs(t, err, domain.ErrMissingInputColumn)
	})

	t.Run("cross fires once", func(t *testing.T) {
		f := testFrame(t, map[string][]float64{
			"macd":        {-1, -0.5, 0.5, 1, 0.2},
			"macd_signal": {0, 0, 0, 0, 0.5},
		})
		entry, err := NewCondition("MACDCrossEntryCondition", nil)
		require.NoError(t, err)
		values, err := entry.Evaluate(f)
		require.NoError(t, err)
		require.Equal(t, []bool{false, false, true, false, false}, values)

		exit, err := NewCondition("MACDCrossExitCondition", nil)
		require.NoError(t, err)
		values, err = exit.Evaluate(f)
		require.NoError(t, err)
		require.Equal(t, []bool{false, false, false, false, true}, values)
	})

	t.Run("expression filter", func(t *testing.T) {
		f := testFrame(t, map[string][]float64{
			domain.ColClose: {100, 300, domain.Unavailable},
			"sma_200":       {200, 200, 200},
		})
		c, err := NewCondition("ExpressionFilterCondition", Params{"expression": "close > sma_200"})
		require.NoError(t, err)
		require.Equal(t, []string{"close", "sma_200"}, c.RequiredColumns())
		values, err := c.Evaluate(f)
		require.NoError(t, err)
		require.Equal(t, []bool{false, true, false}, values)
	})

	t.Run("bad expression", func(t *testing.T) {
		_, err := NewCondition("ExpressionFilterCondition", Params{"expression": "close >"})
		require.ErrorIs(t, err, domain.ErrInvalidParams)
	})
}

func TestSignalStrategy_GenerateSignals(t *testing.T) {
	t.Run("entries only where filter and trend hold", func(t *testing.T) {
		volume, err := NewCondition("VolumeFilterCondition", Params{"min_volume": 1000})
		require.NoError(t, err)
		entry, err := NewCondition("BollingerBandsEntryCondition", nil)
		require.NoError(t, err)
		exit, err := NewCondition("BollingerBandsExitCondition", nil)
		require.NoError(t, err)
		s, err := NewSignalStrategy(SignalStrategyInput{
			Name:    "Bollinger",
			Filters: []*Condition{volume},
			Entries: []*Condition{entry},
			Exits:   []*Condition{exit},
		})
		require.NoError(t, err)

		f := bollingerFrame(t)
		out, err := s.GenerateSignals(f)
		require.NoError(t, err)
		require.Equal(t, f.Len(), out.Len())
		require.Equal(t, []domain.Signal{"HOLD", "BUY", "HOLD", "HOLD", "HOLD", "HOLD", "HOLD", "BUY"}, out.Entry)
		require.Equal(t, []domain.Signal{"HOLD", "HOLD", "HOLD", "HOLD", "SELL", "HOLD", "HOLD", "HOLD"}, out.Exit)
	})

	t.Run("position state suppresses repeated signals", func(t *testing.T) {
		s, err := mustTemplate(t, "Bollinger").Build(map[string]any{
			"filter_conditions": []any{map[string]any{"VolumeFilterCondition": map[string]any{"min_volume": 0.0}}},
			"stateful_logic": map[string]any{"StopLossTakeProfitLogic": map[string]any{
				"stop_loss_pct": 0.5, "take_profit_pct": 0.5, "max_hold_bars": 0.0,
			}},
		})
		require.NoError(t, err)

		out, err := s.GenerateSignals(bollingerFrame(t))
		require.NoError(t, err)
		require.Equal(t, []domain.Signal{"HOLD", "BUY", "HOLD", "HOLD", "HOLD", "HOLD", "BUY", "HOLD"}, out.Entry)
		require.Equal(t, []domain.Signal{"HOLD", "HOLD", "HOLD", "HOLD", "SELL", "HOLD", "HOLD", "HOLD"}, out.Exit)
	})

	t.Run("stop loss forces an exit", func(t *testing.T) {
		s, err := mustTemplate(t, "Bollinger").Build(map[string]any{
			"stateful_logic": map[string]any{"StopLossTakeProfitLogic": map[string]any{
				"stop_loss_pct": 0.02, "take_profit_pct": 0.5,
			}},
		})
		require.NoError(t, err)
		f := testFrame(t, map[string][]float64{
			domain.ColClose:  {95, 92, 93},
			domain.ColVolume: {1e6, 1e6, 1e6},
			"bb_lower":       {96, 90, 90},
			"bb_upper":       {108, 108, 108},
		})
		out, err := s.GenerateSignals(f)
		require.NoError(t, err)
		require.Equal(t, []domain.Signal{"BUY", "HOLD", "HOLD"}, out.Entry)
		require.Equal(t, []domain.Signal{"HOLD", "SELL", "HOLD"}, out.Exit)
	})

	t.Run("missing columns", func(t *testing.T) {
		s, err := mustTemplate(t, "RSIReversion").Build(nil)
		require.NoError(t, err)
		_, err = s.GenerateSignals(bollingerFrame(t))
		require.ErrorIs(t, err, domain.ErrMissingInputColumn)
	})
}

func mustTemplate(t *testing.T, name string) Template {
	tmpl, err := GetTemplate(name)
	require.NoError(t, err)
	return tmpl
}

func TestSignalStrategy_HashID(t *testing.T) {
	t.Run("param order does not matter", func(t *testing.T) {
		a, err := mustTemplate(t, "StochasticSwing").Build(map[string]any{
			"entry_conditions": []any{map[string]any{"StochasticEntryCondition": map[string]any{"oversold": 25, "k_col": "stoch_k"}}},
		})
		require.NoError(t, err)
		b, err := mustTemplate(t, "StochasticSwing").Build(map[string]any{
			"entry_conditions": []any{map[string]any{"StochasticEntryCondition": map[string]any{"k_col": "stoch_k", "oversold": 25.0}}},
		})
		require.NoError(t, err)
		require.Equal(t, a.Description(), b.Description())
		require.Equal(t, a.HashID(), b.HashID())
		require.Len(t, a.HashID(), 64)
	})

	t.Run("different params differ", func(t *testing.T) {
		a, err := mustTemplate(t, "RSIReversion").Build(nil)
		require.NoError(t, err)
		b, err := mustTemplate(t, "RSIReversion").Build(map[string]any{
			"entry_conditions": []any{map[string]any{"RSIEntryCondition": map[string]any{"oversold": 25}}},
		})
		require.NoError(t, err)
		require.NotEqual(t, a.HashID(), b.HashID())
	})
}

func TestTemplate_FilterAcceptedParams(t *testing.T) {
	tmpl := mustTemplate(t, "Bollinger")
	filtered := tmpl.FilterAcceptedParams(map[string]any{
		"entry_conditions": []any{
			map[string]any{"BollingerBandsEntryCondition": map[string]any{"close_col": "close", "bogus": 1}},
			map[string]any{"RSIEntryCondition": map[string]any{"oversold": 30}},
		},
		"trend_conditions": []any{map[string]any{"ADXTrendCondition": map[string]any{"threshold": 20}}},
		"unrelated":        1,
	})
	require.Equal(t, map[string]any{
		"entry_conditions": []any{map[string]any{"BollingerBandsEntryCondition": map[string]any{"close_col": "close"}}},
	}, filtered)

	_, err := tmpl.Build(filtered)
	require.NoError(t, err)

	_, err = GetTemplate("Nope")
	require.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestBufferedSignalStrategy(t *testing.T) {
	for _, name := range []string{"Bollinger", "MACDMomentum"} {
		t.Run(name+" matches the batch path", func(t *testing.T) {
			f := testFrame(t, map[string][]float64{
				domain.ColClose:  {100, 95, 97, 104, 110, 103, 94, 96, 99, 101},
				domain.ColVolume: {1e6, 1e6, 1e6, 1e6, 1e6, 1e6, 1e6, 1e6, 1e6, 1e6},
				"bb_lower":       {96, 96, 96, 96, 96, 96, 96, 96, 96, 96},
				"bb_upper":       {108, 108, 108, 108, 108, 108, 108, 108, 108, 108},
				"macd":           {-1, -0.5, 0.5, 1, 0.2, -0.3, 0.4, 0.6, -0.1, 0.2},
				"macd_signal":    {0, 0, 0, 0, 0.5, 0, 0, 0, 0, 0},
				"adx_14":         {30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
				"roc_10":         {-1, -1, -1, -1, -1, -1, -1, -1, -1, -1},
			})
			s, err := mustTemplate(t, name).Build(nil)
			require.NoError(t, err)
			batch, err := s.GenerateSignals(f)
			require.NoError(t, err)

			buffered := NewBufferedSignalStrategy(s)
			for i := 0; i < f.Len(); i++ {
				entry, exit, err := buffered.Update(f.EnrichedBar(i))
				require.NoError(t, err)
				require.Equal(t, batch.Entry[i], entry, "entry row %d", i)
				require.Equal(t, batch.Exit[i], exit, "exit row %d", i)
			}
		})
	}
}

// voter always emits the given signals for voteRow.
func voter(t *testing.T, entry, exit bool, weight float64) WeightedStrategy {
	lower, upper := "never_lower", "never_upper"
	if entry {
		lower = "always_lower"
	}
	if exit {
		upper = "always_upper"
	}
	entryCondition, err := NewCondition("BollingerBandsEntryCondition", Params{"lower_col": lower})
	require.NoError(t, err)
	exitCondition, err := NewCondition("BollingerBandsExitCondition", Params{"upper_col": upper})
	require.NoError(t, err)
	s, err := NewSignalStrategy(SignalStrategyInput{
		Name:    "voter",
		Entries: []*Condition{entryCondition},
		Exits:   []*Condition{exitCondition},
	})
	require.NoError(t, err)
	return WeightedStrategy{Strategy: NewBufferedSignalStrategy(s), Weight: weight}
}

var voteRow = domain.EnrichedBar{
	Bar: domain.Bar{Symbol: "AAPL", Close: 100, Volume: 1e6, Timestamp: time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)},
	Features: map[string]float64{
		"always_lower": 1e9,
		"never_lower":  0,
		"always_upper": 0,
		"never_upper":  1e9,
	},
}

func TestCombinedWeightedSignalStrategy(t *testing.T) {
	run := func(t *testing.T, members []WeightedStrategy, buy, sell float64) map[string]domain.Signal {
		c, err := NewCombinedWeightedSignalStrategy(members, buy, sell)
		require.NoError(t, err)
		out, err := c.Update(voteRow)
		require.NoError(t, err)
		return out
	}

	t.Run("zero threshold buys on any vote", func(t *testing.T) {
		out := run(t, []WeightedStrategy{voter(t, true, false, 1), voter(t, false, false, 3)}, 0, 1)
		require.Equal(t, domain.SignalBuy, out[domain.ColEntrySignal])
		require.Equal(t, domain.SignalHold, out[domain.ColExitSignal])
	})

	t.Run("zero threshold needs at least one vote", func(t *testing.T) {
		out := run(t, []WeightedStrategy{voter(t, false, false, 1), voter(t, false, false, 3)}, 0, 0)
		require.Equal(t, domain.SignalHold, out[domain.ColEntrySignal])
		require.Equal(t, domain.SignalHold, out[domain.ColExitSignal])
	})

	t.Run("unit threshold needs unanimity", func(t *testing.T) {
		out := run(t, []WeightedStrategy{voter(t, true, true, 1), voter(t, false, true, 1)}, 1, 1)
		require.Equal(t, domain.SignalHold, out[domain.ColEntrySignal])
		require.Equal(t, domain.SignalSell, out[domain.ColExitSignal])
	})

	t.Run("weighted share", func(t *testing.T) {
		out := run(t, []WeightedStrategy{voter(t, true, false, 3), voter(t, false, false, 1)}, 0.75, 0.5)
		require.Equal(t, domain.SignalBuy, out[domain.ColEntrySignal])
	})

	t.Run("batch path votes the same way", func(t *testing.T) {
		c, err := NewCombinedWeightedSignalStrategy([]WeightedStrategy{voter(t, true, false, 1), voter(t, false, false, 1)}, 0.5, 0.5)
		require.NoError(t, err)
		f, err := domain.FrameFromEnrichedBars("AAPL", []domain.EnrichedBar{voteRow})
		require.NoError(t, err)
		out, err := c.GenerateSignals(f)
		require.NoError(t, err)
		require.Equal(t, []domain.Signal{domain.SignalBuy}, out.Entry)
		require.Len(t, c.HashID(), 64)
	})

	t.Run("invalid thresholds", func(t *testing.T) {
		_, err := NewCombinedWeightedSignalStrategy([]WeightedStrategy{voter(t, true, false, 1)}, 1.5, 0.5)
		require.ErrorIs(t, err, domain.ErrInvalidParams)
		_, err = NewCombinedWeightedSignalStrategy([]WeightedStrategy{voter(t, true, false, 1)}, 0.5, -0.1)
		require.ErrorIs(t, err, domain.ErrInvalidParams)
	})
}
