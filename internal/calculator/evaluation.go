package calculator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"algotrader/internal/domain"

	"github.com/montanaflynn/stats"
)

type WindowSample struct {
	WindowID   string
	Metrics    domain.Metrics
	BestParams map[string]any
}

type EvaluateCrossWindowInput struct {
	Strategy           string
	Windows            []WindowSample
	Metric             string
	ViabilityThreshold float64
}

// EvaluateCrossWindow aggregates one strategy's per-window results.
func EvaluateCrossWindow(in EvaluateCrossWindowInput) (*domain.CrossWindowEvaluation, error) {
	if len(in.Windows) == 0 {
		return nil, fmt.Errorf("no windows to evaluate for %s", in.Strategy)
	}
	windows := make([]WindowSample, len(in.Windows))
	copy(windows, in.Windows)
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].WindowID < windows[j].WindowID
	})

	valuesByMetric := map[string][]float64{}
	for _, w := range windows {
		for _, name := range w.Metrics.Names() {
			if v, ok := w.Metrics.Get(name); ok && !math.IsInf(v, 0) {
				valuesByMetric[name] = append(valuesByMetric[name], v)
			}
		}
	}

	summary := map[string]domain.SummaryStats{}
	for name, values := range valuesByMetric {
		s, err := summarize(values)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize %s: %w", name, err)
		}
		summary[name] = s
	}

	score := math.NaN()
	if s, ok := summary[in.Metric]; ok {
		score = float64(s.Mean)
	}

	modal, consistency, err := mostCommonParams(windows)
	if err != nil {
		return nil, err
	}

	windowParams := make([]domain.WindowParams, 0, len(windows))
	for _, w := range windows {
		windowParams = append(windowParams, domain.WindowParams{
			WindowID:   w.WindowID,
			BestParams: w.BestParams,
		})
	}

	return &domain.CrossWindowEvaluation{
		Strategy:             in.Strategy,
		Summary:              summary,
		NWindows:             len(windows),
		MetricType:           in.Metric,
		ViabilityScore:       domain.Metric(score),
		IsViable:             !math.IsNaN(score) && score >= in.ViabilityThreshold,
		MostCommonBestParams: modal,
		ParamConsistency:     domain.Metric(consistency),
		WindowParams:         windowParams,
	}, nil
}

func summarize(values []float64) (domain.SummaryStats, error) {
	mean, err := stats.Mean(values)
	if err != nil {
		return domain.SummaryStats{}, err
	}
	std, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return domain.SummaryStats{}, err
	}
	min, err := stats.Min(values)
	if err != nil {
		return domain.SummaryStats{}, err
	}
	max, err := stats.Max(values)
	if err != nil {
		return domain.SummaryStats{}, err
	}
	return domain.SummaryStats{
		Mean: domain.Metric(mean),
		Std:  domain.Metric(std),
		Min:  domain.Metric(min),
		Max:  domain.Metric(max),
	}, nil
}

// mostCommonParams picks the modal value of every parameter key, comparing
// values by canonical json. Ties go to the earliest window. consistency is
// the fraction of windows whose params equal the modal set.
func mostCommonParams(windows []WindowSample) (map[string]any, float64, error) {
	type candidate struct {
		value any
		count int
		first int
	}
	byKey := map[string]map[string]*candidate{}
	for i, w := range windows {
		for key, value := range w.BestParams {
			encoded, err := canonicalJSON(value)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to encode param %s: %w", key, err)
			}
			if _, ok := byKey[key]; !ok {
				byKey[key] = map[string]*candidate{}
			}
			c, ok := byKey[key][encoded]
			if !ok {
				c = &candidate{value: value, first: i}
				byKey[key][encoded] = c
			}
			c.count++
		}
	}

	modal := map[string]any{}
	for key, candidates := range byKey {
		var best *candidate
		for _, c := range candidates {
			if best == nil || c.count > best.count || (c.count == best.count && c.first < best.first) {
				best = c
			}
		}
		modal[key] = best.value
	}

	modalEncoded, err := canonicalJSON(modal)
	if err != nil {
		return nil, 0, err
	}
	matches := 0
	for _, w := range windows {
		encoded, err := canonicalJSON(w.BestParams)
		if err != nil {
			return nil, 0, err
		}
		if encoded == modalEncoded {
			matches++
		}
	}
	return modal, float64(matches) / float64(len(windows)), nil
}

// canonicalJSON relies on encoding/json sorting map keys.
func canonicalJSON(v any) (string, error) {
	if m, ok := v.(map[string]any); ok && m == nil {
		v = map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
