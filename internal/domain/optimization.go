package domain

import (
	"encoding/json"
	"math"
	"sort"
)

// Metric is a float that encodes non-finite values as JSON null.
type Metric float64

func (m Metric) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (m *Metric) UnmarshalJSON(b []byte) error {
	var f *float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f == nil {
		*m = Metric(math.NaN())
		return nil
	}
	*m = Metric(*f)
	return nil
}

type Metrics map[string]Metric

func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m[name]
	if !ok || math.IsNaN(float64(v)) {
		return 0, false
	}
	return float64(v), true
}

func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	MetricTotalReturn  = "total_return"
	MetricMeanReturn   = "mean_return"
	MetricVolatility   = "volatility"
	MetricSharpeRatio  = "sharpe_ratio"
	MetricMaxDrawdown  = "max_drawdown"
	MetricSortinoRatio = "sortino_ratio"
	MetricCalmarRatio  = "calmar_ratio"
	MetricWinRate      = "win_rate"
	MetricProfitFactor = "profit_factor"
	MetricNumTrades    = "num_trades"
)

type Direction string

const (
	DirectionMaximize Direction = "MAXIMIZE"
	DirectionMinimize Direction = "MINIMIZE"
)

// Worst is the value reported for a trial whose metric could not be read.
func (d Direction) Worst() float64 {
	if d == DirectionMinimize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// Better reports whether a beats b.
func (d Direction) Better(a, b float64) bool {
	if d == DirectionMinimize {
		return a < b
	}
	return a > b
}

type OptimizationMeta struct {
	RunTimeSec     float64     `json:"run_time_sec"`
	NTrials        int         `json:"n_trials"`
	Symbol         string      `json:"symbol"`
	Direction      []Direction `json:"direction"`
	MultiObjective bool        `json:"multi_objective"`
	Objectives     []string    `json:"objectives"`
	HashID         string      `json:"hash_id,omitempty"`
}

type OptimizationResult struct {
	Strategy   string           `json:"strategy"`
	BestValue  Metric           `json:"best_value"`
	BestValues []Metric         `json:"best_values,omitempty"`
	BestParams map[string]any   `json:"best_params"`
	Meta       OptimizationMeta `json:"meta"`
	Metrics    Metrics          `json:"metrics"`
	Window     WindowInfo       `json:"-"`
}

type TestMeta struct {
	Symbol      string     `json:"symbol"`
	TrainWindow WindowInfo `json:"train_window"`
	TestWindow  WindowInfo `json:"test_window"`
	RunTimeSec  float64    `json:"run_time_sec"`
	HashID      string     `json:"hash_id"`
}

type TestResult struct {
	Strategy string         `json:"strategy"`
	Params   map[string]any `json:"params"`
	Meta     TestMeta       `json:"meta"`
	Metrics  Metrics        `json:"metrics"`
}

// WindowResult is one entry of optimization_result.json, keyed by window id.
type WindowResult struct {
	Optimization *OptimizationResult `json:"optimization,omitempty"`
	Test         *TestResult         `json:"test,omitempty"`
	Window       WindowInfo          `json:"window"`
}

type SummaryStats struct {
	Mean Metric `json:"mean"`
	Std  Metric `json:"std"`
	Min  Metric `json:"min"`
	Max  Metric `json:"max"`
}

type WindowParams struct {
	WindowID   string         `json:"window_id"`
	BestParams map[string]any `json:"best_params"`
}

// CrossWindowEvaluation is the content of evaluation_result.json.
type CrossWindowEvaluation struct {
	Strategy             string                  `json:"strategy"`
	Summary              map[string]SummaryStats `json:"summary"`
	NWindows             int                     `json:"n_windows"`
	MetricType           string                  `json:"metric_type"`
	ViabilityScore       Metric                  `json:"viability_score"`
	IsViable             bool                    `json:"is_viable"`
	MostCommonBestParams map[string]any          `json:"most_common_best_params"`
	ParamConsistency     Metric                  `json:"param_consistency"`
	WindowParams         []WindowParams          `json:"window_params"`
}

type StrategyScore struct {
	ViabilityScore   Metric `json:"viability_score"`
	IsViable         bool   `json:"is_viable"`
	ParamConsistency Metric `json:"param_consistency"`
	NWindows         int    `json:"n_windows"`
}

// StrategySummary is the per-symbol strategy_summary.json.
type StrategySummary struct {
	Symbol              string                   `json:"symbol"`
	RecommendedStrategy string                   `json:"recommended_strategy"`
	IsViable            bool                     `json:"is_viable"`
	ViabilityScore      Metric                   `json:"viability_score"`
	ParamConsistency    Metric                   `json:"param_consistency"`
	BestParams          map[string]any           `json:"best_params"`
	Rationale           string                   `json:"rationale"`
	Strategies          map[string]StrategyScore `json:"strategies"`
}

// GlobalSummary is global_summary.json, keyed by symbol.
type GlobalSummary map[string]StrategySummary
