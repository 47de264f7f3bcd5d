package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/strategy"
)

const fullResultAttr = "full_result"

// Objective backtests one candidate, given as grouped best_params, and
// returns its metrics.
type Objective func(ctx context.Context, params map[string]any) (domain.Metrics, error)

type RunInput struct {
	Strategy   string
	Symbol     string
	Space      []strategy.ClassSpace
	Objective  Objective
	Objectives []string
	Directions []domain.Direction
	NTrials    int
	Seed       int64
	Window     domain.DateRange
}

type Trial struct {
	Number    int
	Params    map[string]any
	Values    []float64
	UserAttrs map[string]any
	Err       error
}

func (t Trial) metrics() domain.Metrics {
	m, _ := t.UserAttrs[fullResultAttr].(domain.Metrics)
	return m
}

// Run searches the space with a seeded random sampler. Trial 0 evaluates
// every parameter's default. A trial whose metrics cannot be read scores the
// worst value of each direction. Run fails only when no trial produced
// metrics.
func Run(ctx context.Context, in RunInput) (*domain.OptimizationResult, error) {
	log := logger.FromContext(ctx)
	if err := validate(in); err != nil {
		return nil, err
	}
	start := time.Now()
	rng := rand.New(rand.NewSource(in.Seed))

	trials := make([]Trial, 0, in.NTrials)
	for n := 0; n < in.NTrials; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		flat := suggest(rng, in.Symbol, in.Space, n == 0)
		trial := Trial{
			Number:    n,
			Params:    flat,
			UserAttrs: map[string]any{},
		}
		metrics, err := in.Objective(ctx, Regroup(in.Symbol, flat))
		if err != nil {
			log.Warnw("trial failed", "strategy", in.Strategy, "symbol", in.Symbol, "trial", n, "error", err)
			trial.Err = err
		}
		trial.UserAttrs[fullResultAttr] = metrics
		for i, objective := range in.Objectives {
			v, ok := metrics.Get(objective)
			if !ok || math.IsInf(v, 0) {
				if err == nil {
					log.Warnw("objective missing from trial metrics", "strategy", in.Strategy, "symbol", in.Symbol, "trial", n, "objective", objective)
				}
				v = in.Directions[i].Worst()
			}
			trial.Values = append(trial.Values, v)
		}
		trials = append(trials, trial)
	}

	best, ok := bestTrial(trials, in.Directions)
	if !ok {
		return nil, fmt.Errorf("all %d trials of %s for %s failed", len(trials), in.Strategy, in.Symbol)
	}

	result := &domain.OptimizationResult{
		Strategy:   in.Strategy,
		BestValue:  domain.Metric(best.Values[0]),
		BestParams: Regroup(in.Symbol, best.Params),
		Meta: domain.OptimizationMeta{
			RunTimeSec:     time.Since(start).Seconds(),
			NTrials:        len(trials),
			Symbol:         in.Symbol,
			Direction:      in.Directions,
			MultiObjective: len(in.Objectives) > 1,
			Objectives:     in.Objectives,
		},
		Metrics: best.metrics(),
		Window:  in.Window.Info(),
	}
	if len(in.Objectives) > 1 {
		for _, v := range best.Values {
			result.BestValues = append(result.BestValues, domain.Metric(v))
		}
	}
	return result, nil
}

func validate(in RunInput) error {
	if in.Objective == nil {
		return fmt.Errorf("%w: missing objective", domain.ErrInvalidParams)
	}
	if in.NTrials < 1 {
		return fmt.Errorf("%w: n_trials must be >= 1", domain.ErrInvalidParams)
	}
	if len(in.Objectives) == 0 || len(in.Objectives) != len(in.Directions) {
		return fmt.Errorf("%w: %d objectives with %d directions", domain.ErrInvalidParams, len(in.Objectives), len(in.Directions))
	}
	for _, d := range in.Directions {
		if d != domain.DirectionMaximize && d != domain.DirectionMinimize {
			return fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidParams, d)
		}
	}
	return nil
}

// bestTrial picks the best single objective trial, or for several
// objectives the Pareto optimal trial that is best on the first objective.
// Earlier trials win ties.
func bestTrial(trials []Trial, directions []domain.Direction) (Trial, bool) {
	candidates := []Trial{}
	for _, t := range trials {
		if t.Err == nil && t.metrics() != nil {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return Trial{}, false
	}
	if len(directions) > 1 {
		candidates = paretoFront(candidates, directions)
	}
	best := candidates[0]
	for _, t := range candidates[1:] {
		if directions[0].Better(t.Values[0], best.Values[0]) {
			best = t
		}
	}
	return best, true
}

func paretoFront(trials []Trial, directions []domain.Direction) []Trial {
	front := []Trial{}
	for i, a := range trials {
		dominated := false
		for j, b := range trials {
			if i != j && dominates(b, a, directions) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, a)
		}
	}
	return front
}

// dominates reports whether a is no worse than b everywhere and better
// somewhere.
func dominates(a, b Trial, directions []domain.Direction) bool {
	strictly := false
	for k, d := range directions {
		if d.Better(b.Values[k], a.Values[k]) {
			return false
		}
		if d.Better(a.Values[k], b.Values[k]) {
			strictly = true
		}
	}
	return strictly
}

// suggest draws one value per parameter of every class, keyed
// <symbol>_<slot>_<Class>_<param>.
func suggest(rng *rand.Rand, symbol string, space []strategy.ClassSpace, defaults bool) map[string]any {
	out := map[string]any{}
	for _, cs := range space {
		for _, spec := range cs.Params {
			key := FlatKey(symbol, cs.Slot, cs.Class, spec.Name)
			if defaults {
				out[key] = spec.Default
				continue
			}
			out[key] = sample(rng, spec)
		}
	}
	return out
}

func sample(rng *rand.Rand, spec strategy.ParamSpec) any {
	switch spec.Kind {
	case strategy.ParamInt:
		step := math.Max(spec.Step, 1)
		n := int((spec.High - spec.Low) / step)
		return int(spec.Low) + rng.Intn(n+1)*int(step)
	case strategy.ParamFloat:
		if spec.Step > 0 {
			n := int(math.Round((spec.High - spec.Low) / spec.Step))
			v := spec.Low + float64(rng.Intn(n+1))*spec.Step
			return math.Round(v*1e9) / 1e9
		}
		return spec.Low + rng.Float64()*(spec.High-spec.Low)
	default:
		if len(spec.Choices) == 0 {
			return spec.Default
		}
		return spec.Choices[rng.Intn(len(spec.Choices))]
	}
}
