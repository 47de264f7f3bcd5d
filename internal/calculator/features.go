package calculator

import (
	"fmt"
	"math"
	"time"

	"algotrader/internal/domain"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

var FeatureInputColumns = []string{
	"timestamp", domain.ColOpen, domain.ColHigh, domain.ColLow, domain.ColClose,
	domain.ColVolume, domain.ColVwap, domain.ColNumTrades, "symbol",
}

// cumulative indicators (obv, adl) are summed over this many trailing rows
const cumulativeWindow = 200

type FeatureEngineer interface {
	// Engineer returns a new frame with every catalog column appended. The
	// input is not modified and the row count is preserved.
	Engineer(f *domain.Frame) (*domain.Frame, error)
	// MaxLookback is the number of trailing rows any output value depends on.
	MaxLookback() int
	Columns() []string
}

type featureEngineerHandler struct {
	features    []feature
	maxLookback int
}

func NewFeatureEngineer() FeatureEngineer {
	features := featureCatalog()
	lookback := 0
	for _, f := range features {
		lookback = max(lookback, f.history)
	}
	return featureEngineerHandler{
		features:    features,
		maxLookback: lookback,
	}
}

type feature struct {
	names []string
	// history is how many trailing rows (the current one included) a value
	// depends on
	history int
	compute func(in featureInputs) [][]float64
}

type featureInputs struct {
	n      int
	ts     []time.Time
	open   []float64
	high   []float64
	low    []float64
	close  []float64
	volume []float64
	vwap   []float64
}

func (h featureEngineerHandler) MaxLookback() int {
	return h.maxLookback
}

func (h featureEngineerHandler) Columns() []string {
	out := []string{}
	for _, f := range h.features {
		out = append(out, f.names...)
	}
	return out
}

func (h featureEngineerHandler) Engineer(f *domain.Frame) (*domain.Frame, error) {
	if err := f.Require(FeatureInputColumns...); err != nil {
		return nil, err
	}
	if err := f.ValidateMonotonic(); err != nil {
		return nil, err
	}

	out := f.Clone()
	col := func(name string) []float64 {
		c, _ := out.Column(name)
		return c
	}
	in := featureInputs{
		n:      out.Len(),
		ts:     out.Timestamps,
		open:   col(domain.ColOpen),
		high:   col(domain.ColHigh),
		low:    col(domain.ColLow),
		close:  col(domain.ColClose),
		volume: col(domain.ColVolume),
		vwap:   col(domain.ColVwap),
	}

	for _, feat := range h.features {
		values := feat.compute(in)
		if len(values) != len(feat.names) {
			return nil, fmt.Errorf("feature %v produced %d outputs", feat.names, len(values))
		}
		for i, name := range feat.names {
			if err := out.SetColumn(name, values[i]); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", name, err)
			}
		}
	}
	out.Lookback = h.maxLookback
	return out, nil
}

func featureCatalog() []feature {
	features := []feature{
		{names: []string{"pct_return"}, history: 2, compute: func(in featureInputs) [][]float64 {
			return [][]float64{lagged(in.n, func(i int) float64 { return in.close[i]/in.close[i-1] - 1 })}
		}},
		{names: []string{"log_return"}, history: 2, compute: func(in featureInputs) [][]float64 {
			return [][]float64{lagged(in.n, func(i int) float64 { return math.Log(in.close[i] / in.close[i-1]) })}
		}},
	}

	for _, p := range []int{9, 10, 12, 20, 26, 50, 100, 150, 200} {
		period := p
		features = append(features, feature{
			names:   []string{fmt.Sprintf("sma_%d", period)},
			history: period,
			compute: func(in featureInputs) [][]float64 {
				return windowed(in.n, period, 1, func(lo, hi int) [][]float64 {
					return [][]float64{talib.Sma(in.close[lo:hi], period)}
				})
			},
		})
	}
	for _, p := range []int{9, 10, 12, 20, 26, 50, 100, 150, 200} {
		period := p
		features = append(features, feature{
			names:   []string{fmt.Sprintf("ema_%d", period)},
			history: 3 * period,
			compute: func(in featureInputs) [][]float64 {
				return trailing(in.n, 3*period, period, 1, func(lo, hi int) [][]float64 {
					return [][]float64{talib.Ema(in.close[lo:hi], period)}
				})
			},
		})
	}

	features = append(features,
		feature{names: []string{"macd", "macd_signal", "macd_hist"}, history: 3 * (26 + 9), compute: func(in featureInputs) [][]float64 {
			return trailing(in.n, 3*(26+9), 26+9-1, 3, func(lo, hi int) [][]float64 {
				macd, signal, hist := talib.Macd(in.close[lo:hi], 12, 26, 9)
				return [][]float64{macd, signal, hist}
			})
		}},
		feature{names: []string{"rsi_14"}, history: 3 * 15, compute: func(in featureInputs) [][]float64 {
			return trailing(in.n, 3*15, 15, 1, func(lo, hi int) [][]float64 {
				return [][]float64{talib.Rsi(in.close[lo:hi], 14)}
			})
		}},
	)

	for _, p := range []int{10, 20, 50} {
		period := p
		features = append(features, feature{
			names:   []string{fmt.Sprintf("volatility_%d", period)},
			history: period + 1,
			compute: func(in featureInputs) [][]float64 {
				returns := lagged(in.n, func(i int) float64 { return in.close[i]/in.close[i-1] - 1 })
				out := unavailable(in.n)
				for i := period; i < in.n; i++ {
					out[i] = stat.StdDev(returns[i-period+1:i+1], nil)
				}
				return [][]float64{out}
			},
		})
	}

	features = append(features,
		feature{names: []string{"atr_14"}, history: 3 * 15, compute: func(in featureInputs) [][]float64 {
			return trailing(in.n, 3*15, 15, 1, func(lo, hi int) [][]float64 {
				return [][]float64{talib.Atr(in.high[lo:hi], in.low[lo:hi], in.close[lo:hi], 14)}
			})
		}},
		feature{names: []string{"candle_body", "candle_range", "upper_wick", "lower_wick", "body_ratio"}, history: 1, compute: candleFeatures},
	)

	for _, p := range []int{10, 20, 50} {
		period := p
		features = append(features, feature{
			names:   []string{fmt.Sprintf("volume_ma_%d", period)},
			history: period,
			compute: func(in featureInputs) [][]float64 {
				return windowed(in.n, period, 1, func(lo, hi int) [][]float64 {
					return [][]float64{talib.Sma(in.volume[lo:hi], period)}
				})
			},
		})
	}
	for _, p := range []int{10, 20} {
		period := p
		features = append(features, feature{
			names:   []string{fmt.Sprintf("rolling_vwap_%d", period)},
			history: period,
			compute: func(in featureInputs) [][]float64 {
				out := unavailable(in.n)
				var pv, v float64
				for i := 0; i < in.n; i++ {
					pv += in.vwap[i] * in.volume[i]
					v += in.volume[i]
					if i >= period {
						pv -= in.vwap[i-period] * in.volume[i-period]
						v -= in.volume[i-period]
					}
					if i >= period-1 && v > 0 {
						out[i] = pv / v
					}
				}
				return [][]float64{out}
			},
		})
	}

	features = append(features,
		feature{names: []string{"hour", "minute", "day_of_week", "day_of_month", "month"}, history: 1, compute: timeFeatures},
		feature{names: []string{"adx_14"}, history: 3 * 28, compute: func(in featureInputs) [][]float64 {
			return trailing(in.n, 3*28, 28, 1, func(lo, hi int) [][]float64 {
				return [][]float64{talib.Adx(in.high[lo:hi], in.low[lo:hi], in.close[lo:hi], 14)}
			})
		}},
		feature{names: []string{"momentum_10"}, history: 11, compute: func(in featureInputs) [][]float64 {
			return windowed(in.n, 11, 1, func(lo, hi int) [][]float64 {
				return [][]float64{talib.Mom(in.close[lo:hi], 10)}
			})
		}},
		feature{names: []string{"roc_10"}, history: 11, compute: func(in featureInputs) [][]float64 {
			return windowed(in.n, 11, 1, func(lo, hi int) [][]float64 {
				return [][]float64{talib.Roc(in.close[lo:hi], 10)}
			})
		}},
		feature{names: []string{"stoch_k", "stoch_d"}, history: 18, compute: func(in featureInputs) [][]float64 {
			return windowed(in.n, 18, 2, func(lo, hi int) [][]float64 {
				k, d := talib.Stoch(in.high[lo:hi], in.low[lo:hi], in.close[lo:hi], 14, 3, talib.SMA, 3, talib.SMA)
				return [][]float64{k, d}
			})
		}},
		feature{names: []string{"bb_upper", "bb_middle", "bb_lower", "bb_width"}, history: 20, compute: func(in featureInputs) [][]float64 {
			bands := windowed(in.n, 20, 3, func(lo, hi int) [][]float64 {
				upper, middle, lower := talib.BBands(in.close[lo:hi], 20, 2, 2, talib.SMA)
				return [][]float64{upper, middle, lower}
			})
			width := unavailable(in.n)
			for i := range width {
				if !domain.IsUnavailable(bands[1][i]) && bands[1][i] != 0 {
					width[i] = (bands[0][i] - bands[2][i]) / bands[1][i]
				}
			}
			return append(bands, width)
		}},
		feature{names: []string{"gap"}, history: 2, compute: func(in featureInputs) [][]float64 {
			return [][]float64{lagged(in.n, func(i int) float64 { return in.open[i]/in.close[i-1] - 1 })}
		}},
		feature{names: []string{"high_low_ratio"}, history: 1, compute: func(in featureInputs) [][]float64 {
			out := unavailable(in.n)
			for i := range out {
				if in.low[i] != 0 {
					out[i] = in.high[i] / in.low[i]
				}
			}
			return [][]float64{out}
		}},
		feature{names: []string{"obv"}, history: cumulativeWindow + 1, compute: func(in featureInputs) [][]float64 {
			flow := make([]float64, in.n)
			for i := 1; i < in.n; i++ {
				switch {
				case in.close[i] > in.close[i-1]:
					flow[i] = in.volume[i]
				case in.close[i] < in.close[i-1]:
					flow[i] = -in.volume[i]
				}
			}
			return [][]float64{rollingSum(flow, cumulativeWindow, 1)}
		}},
		feature{names: []string{"adl"}, history: cumulativeWindow, compute: func(in featureInputs) [][]float64 {
			flow := make([]float64, in.n)
			for i := 0; i < in.n; i++ {
				rng := in.high[i] - in.low[i]
				if rng == 0 {
					continue
				}
				flow[i] = ((in.close[i] - in.low[i]) - (in.high[i] - in.close[i])) / rng * in.volume[i]
			}
			return [][]float64{rollingSum(flow, cumulativeWindow, 0)}
		}},
	)
	return features
}

func candleFeatures(in featureInputs) [][]float64 {
	body, rng, upper, lower, ratio := make([]float64, in.n), make([]float64, in.n), make([]float64, in.n), make([]float64, in.n), make([]float64, in.n)
	for i := 0; i < in.n; i++ {
		body[i] = in.close[i] - in.open[i]
		rng[i] = in.high[i] - in.low[i]
		upper[i] = in.high[i] - math.Max(in.open[i], in.close[i])
		lower[i] = math.Min(in.open[i], in.close[i]) - in.low[i]
		if rng[i] != 0 {
			ratio[i] = math.Abs(body[i]) / rng[i]
		}
	}
	return [][]float64{body, rng, upper, lower, ratio}
}

func timeFeatures(in featureInputs) [][]float64 {
	hour, minute, dow, dom, month := make([]float64, in.n), make([]float64, in.n), make([]float64, in.n), make([]float64, in.n), make([]float64, in.n)
	for i, t := range in.ts {
		t = t.UTC()
		hour[i] = float64(t.Hour())
		minute[i] = float64(t.Minute())
		// monday = 0
		dow[i] = float64((int(t.Weekday()) + 6) % 7)
		dom[i] = float64(t.Day())
		month[i] = float64(t.Month())
	}
	return [][]float64{hour, minute, dow, dom, month}
}

func unavailable(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = domain.Unavailable
	}
	return out
}

// lagged fills rows 1..n-1 with fn(i); row 0 is unavailable.
func lagged(n int, fn func(i int) float64) []float64 {
	out := unavailable(n)
	for i := 1; i < n; i++ {
		out[i] = fn(i)
	}
	return out
}

// windowed runs a finite-window talib indicator once over the whole series.
// Rows before the first full window are unavailable.
func windowed(n, needed, outputs int, fn func(lo, hi int) [][]float64) [][]float64 {
	return trailing(n, n, needed, outputs, fn)
}

// trailing evaluates a recursive indicator so that the value at row i only
// depends on rows (i-history, i]. needed is the row count required before the
// first value exists. fn must be causal over [lo, hi).
func trailing(n, history, needed, outputs int, fn func(lo, hi int) [][]float64) [][]float64 {
	out := make([][]float64, outputs)
	for j := range out {
		out[j] = unavailable(n)
	}
	if n < needed || n == 0 {
		return out
	}

	prefix := history
	if prefix > n {
		prefix = n
	}
	res := fn(0, prefix)
	for j := range out {
		for i := needed - 1; i < prefix; i++ {
			out[j][i] = res[j][i]
		}
	}
	for i := prefix; i < n; i++ {
		res := fn(i-history+1, i+1)
		for j := range out {
			out[j][i] = res[j][len(res[j])-1]
		}
	}
	return out
}

// rollingSum sums flow over window rows. first is the index of the first
// defined flow; rows before first+window-1 are unavailable.
func rollingSum(flow []float64, window, first int) []float64 {
	out := unavailable(len(flow))
	sum := 0.0
	for i := first; i < len(flow); i++ {
		sum += flow[i]
		if i-window >= first {
			sum -= flow[i-window]
		}
		if i >= first+window-1 {
			out[i] = sum
		}
	}
	return out
}
