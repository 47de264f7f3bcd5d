package strategy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"algotrader/internal/domain"
	"algotrader/internal/util"
)

const (
	StrategySummaryFile    = "strategy_summary.json"
	EvaluationResultFile   = "evaluation_result.json"
	OptimizationResultFile = "optimization_result.json"
	registrySnapshotFile   = "registry_snapshot.json"
)

// SignalStrategyRegistry holds the live combined strategy of every symbol.
type SignalStrategyRegistry struct {
	root          string
	buyThreshold  float64
	sellThreshold float64

	mu         sync.RWMutex
	strategies map[string]*CombinedWeightedSignalStrategy
}

// NewSignalStrategyRegistry reads artifacts below root, the signal
// optimization stage directory.
func NewSignalStrategyRegistry(root string, buyThreshold, sellThreshold float64) *SignalStrategyRegistry {
	return &SignalStrategyRegistry{
		root:          root,
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
		strategies:    map[string]*CombinedWeightedSignalStrategy{},
	}
}

func (r *SignalStrategyRegistry) Register(symbol string, s *CombinedWeightedSignalStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[symbol] = s
}

func (r *SignalStrategyRegistry) Get(symbol string) (*CombinedWeightedSignalStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no signal strategy for %s", domain.ErrNotFound, symbol)
	}
	return s, nil
}

func (r *SignalStrategyRegistry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for symbol := range r.strategies {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Load builds each symbol's combined strategy from its strategy summary.
// Viable strategies vote with their viability score as weight; when none is
// viable the recommended strategy is used alone. Symbols that fail to load
// are reported together and do not stop the others.
func (r *SignalStrategyRegistry) Load(symbols []string) error {
	errs := []error{}
	for _, symbol := range symbols {
		s, err := r.loadSymbol(symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to load strategies for %s: %w", symbol, err))
			continue
		}
		r.Register(symbol, s)
	}
	return errors.Join(errs...)
}

func (r *SignalStrategyRegistry) loadSymbol(symbol string) (*CombinedWeightedSignalStrategy, error) {
	summary := domain.StrategySummary{}
	if err := util.ReadJSON(filepath.Join(r.root, symbol, StrategySummaryFile), &summary); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(summary.Strategies))
	for name, score := range summary.Strategies {
		if score.IsViable {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	members := []WeightedStrategy{}
	for _, name := range names {
		evaluation := domain.CrossWindowEvaluation{}
		path := filepath.Join(r.root, symbol, name, EvaluationResultFile)
		if err := util.ReadJSON(path, &evaluation); err != nil {
			return nil, err
		}
		s, err := buildFromTemplate(name, evaluation.MostCommonBestParams)
		if err != nil {
			return nil, err
		}
		weight := float64(summary.Strategies[name].ViabilityScore)
		if !(weight > 0) {
			weight = 1
		}
		members = append(members, WeightedStrategy{Strategy: NewBufferedSignalStrategy(s), Weight: weight})
	}

	if len(members) == 0 {
		if summary.RecommendedStrategy == "" {
			return nil, fmt.Errorf("%w: no recommended strategy", domain.ErrNotFound)
		}
		s, err := buildFromTemplate(summary.RecommendedStrategy, summary.BestParams)
		if err != nil {
			return nil, err
		}
		members = append(members, WeightedStrategy{Strategy: NewBufferedSignalStrategy(s), Weight: 1})
	}
	return NewCombinedWeightedSignalStrategy(members, r.buyThreshold, r.sellThreshold)
}

func buildFromTemplate(name string, params map[string]any) (*SignalStrategy, error) {
	t, err := GetTemplate(name)
	if err != nil {
		return nil, err
	}
	return t.Build(t.FilterAcceptedParams(params))
}

// PortfolioStrategyRegistry holds the optimized portfolio strategies and the
// one currently used by the live order generator.
type PortfolioStrategyRegistry struct {
	root string

	mu         sync.RWMutex
	strategies map[string]PortfolioStrategy
	active     string

	// serializes snapshot writes; never held together with mu
	snapshotMu sync.Mutex
}

// NewPortfolioStrategyRegistry reads and writes below root, the portfolio
// optimization directory.
func NewPortfolioStrategyRegistry(root string) *PortfolioStrategyRegistry {
	return &PortfolioStrategyRegistry{
		root:       root,
		strategies: map[string]PortfolioStrategy{},
	}
}

func (r *PortfolioStrategyRegistry) Register(s PortfolioStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Class()] = s
	if r.active == "" {
		r.active = s.Class()
	}
}

func (r *PortfolioStrategyRegistry) Get(class string) (PortfolioStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[class]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio strategy %s", domain.ErrNotFound, class)
	}
	return s, nil
}

func (r *PortfolioStrategyRegistry) SetActive(class string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[class]; !ok {
		return fmt.Errorf("%w: portfolio strategy %s", domain.ErrNotFound, class)
	}
	r.active = class
	return nil
}

func (r *PortfolioStrategyRegistry) Active() (PortfolioStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[r.active]
	if !ok {
		return nil, fmt.Errorf("%w: no active portfolio strategy", domain.ErrNotFound)
	}
	return s, nil
}

// Load registers class with the best params of its most recent optimized
// window, or with defaults when it was never optimized.
func (r *PortfolioStrategyRegistry) Load(class string) error {
	results := map[string]domain.WindowResult{}
	path := filepath.Join(r.root, class, OptimizationResultFile)
	err := util.ReadJSON(path, &results)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	windowIDs := make([]string, 0, len(results))
	for id, result := range results {
		if result.Optimization != nil {
			windowIDs = append(windowIDs, id)
		}
	}
	sort.Strings(windowIDs)

	params := map[string]any{}
	if len(windowIDs) > 0 {
		params = results[windowIDs[len(windowIDs)-1]].Optimization.BestParams
	}
	s, err := BuildPortfolioStrategy(class, params)
	if err != nil {
		return err
	}
	r.Register(s)
	return nil
}

type registrySnapshot struct {
	Active     string                      `json:"active"`
	Strategies map[string]snapshotStrategy `json:"strategies"`
}

type snapshotStrategy struct {
	Description string         `json:"description"`
	HashID      string         `json:"hash_id"`
	Params      map[string]any `json:"params"`
}

// Snapshot writes the registry to registry_snapshot.json atomically.
func (r *PortfolioStrategyRegistry) Snapshot() error {
	r.mu.RLock()
	snapshot := registrySnapshot{Active: r.active, Strategies: map[string]snapshotStrategy{}}
	for class, s := range r.strategies {
		snapshot.Strategies[class] = snapshotStrategy{
			Description: s.Description(),
			HashID:      s.HashID(),
			Params:      s.Params(),
		}
	}
	r.mu.RUnlock()

	r.snapshotMu.Lock()
	defer r.snapshotMu.Unlock()
	if err := util.WriteJSONAtomic(filepath.Join(r.root, registrySnapshotFile), snapshot); err != nil {
		return fmt.Errorf("failed to write portfolio registry snapshot: %w", err)
	}
	return nil
}
