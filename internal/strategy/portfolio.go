package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"algotrader/internal/domain"

	"gonum.org/v1/gonum/stat"
)

// PortfolioStrategy turns an asset matrix (one close column per symbol) into
// target weights.
type PortfolioStrategy interface {
	Class() string
	Params() Params
	// Lookback is the number of trailing matrix rows Weights reads.
	Lookback() int
	Description() string
	HashID() string
	Weights(matrix *domain.Frame, active map[string]bool, i int) map[string]float64
}

type portfolioDef struct {
	specs []ParamSpec
	build func(p Params) (PortfolioStrategy, error)
}

var portfolioCatalog = map[string]portfolioDef{
	"EqualWeightSignalPortfolio": {
		specs: []ParamSpec{FloatParam("max_weight", 0.1, 1, 0.05, 1)},
		build: func(p Params) (PortfolioStrategy, error) {
			maxWeight, err := p.Float("max_weight")
			if err != nil {
				return nil, err
			}
			return equalWeightPortfolio{basePortfolio{"EqualWeightSignalPortfolio", p}, maxWeight}, nil
		},
	},
	"InverseVolatilityPortfolio": {
		specs: []ParamSpec{
			IntParam("lookback", 10, 120, 20),
			FloatParam("max_weight", 0.1, 1, 0.05, 1),
		},
		build: func(p Params) (PortfolioStrategy, error) {
			lookback, err := p.Int("lookback")
			if err != nil {
				return nil, err
			}
			maxWeight, err := p.Float("max_weight")
			if err != nil {
				return nil, err
			}
			if lookback < 2 {
				return nil, fmt.Errorf("%w: lookback must be >= 2", domain.ErrInvalidParams)
			}
			return inverseVolatilityPortfolio{basePortfolio{"InverseVolatilityPortfolio", p}, lookback, maxWeight}, nil
		},
	},
	"MomentumRankPortfolio": {
		specs: []ParamSpec{
			IntParam("lookback", 10, 120, 60),
			IntParam("top_n", 1, 10, 3),
		},
		build: func(p Params) (PortfolioStrategy, error) {
			lookback, err := p.Int("lookback")
			if err != nil {
				return nil, err
			}
			topN, err := p.Int("top_n")
			if err != nil {
				return nil, err
			}
			if lookback < 1 || topN < 1 {
				return nil, fmt.Errorf("%w: lookback and top_n must be >= 1", domain.ErrInvalidParams)
			}
			return momentumRankPortfolio{basePortfolio{"MomentumRankPortfolio", p}, lookback, topN}, nil
		},
	},
}

func NewPortfolioStrategy(class string, params Params) (PortfolioStrategy, error) {
	def, ok := portfolioCatalog[class]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio strategy %s", domain.ErrUnknownStrategy, class)
	}
	resolved, err := resolveParams(class, def.specs, params)
	if err != nil {
		return nil, err
	}
	return def.build(resolved)
}

// PortfolioSpace is the optimizer search space of a portfolio class.
func PortfolioSpace(class string) ([]ClassSpace, error) {
	def, ok := portfolioCatalog[class]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio strategy %s", domain.ErrUnknownStrategy, class)
	}
	return []ClassSpace{{Slot: SlotPortfolio, Class: class, Params: def.specs}}, nil
}

// BuildPortfolioStrategy reads grouped best_params of the form
// {"portfolio_strategy": {Class: {...}}}, ignoring names the class does not
// accept. A class missing from params is built with its defaults.
func BuildPortfolioStrategy(class string, params map[string]any) (PortfolioStrategy, error) {
	def, ok := portfolioCatalog[class]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio strategy %s", domain.ErrUnknownStrategy, class)
	}
	allowed := map[string]bool{}
	for _, s := range def.specs {
		allowed[s.Name] = true
	}
	p := Params{}
	for _, e := range classEntries(params[SlotPortfolio.ParamsKey()]) {
		if e.class != class {
			continue
		}
		for k, v := range e.params {
			if allowed[k] {
				p[k] = v
			}
		}
	}
	return NewPortfolioStrategy(class, p)
}

func PortfolioClasses() []string {
	out := make([]string, 0, len(portfolioCatalog))
	for class := range portfolioCatalog {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

type basePortfolio struct {
	class  string
	params Params
}

func (b basePortfolio) Class() string {
	return b.class
}

func (b basePortfolio) Params() Params {
	out := Params{}
	for k, v := range b.params {
		out[k] = v
	}
	return out
}

func (b basePortfolio) Description() string {
	return describe(b.class, b.params)
}

func (b basePortfolio) HashID() string {
	return HashDescription(b.Description())
}

func activeSymbols(matrix *domain.Frame, active map[string]bool) []string {
	out := []string{}
	for _, symbol := range matrix.Columns() {
		if active[symbol] {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

type equalWeightPortfolio struct {
	basePortfolio
	maxWeight float64
}

func (equalWeightPortfolio) Lookback() int {
	return 1
}

func (p equalWeightPortfolio) Weights(matrix *domain.Frame, active map[string]bool, i int) map[string]float64 {
	symbols := activeSymbols(matrix, active)
	out := map[string]float64{}
	if len(symbols) == 0 {
		return out
	}
	w := math.Min(1/float64(len(symbols)), p.maxWeight)
	for _, symbol := range symbols {
		out[symbol] = w
	}
	return out
}

type inverseVolatilityPortfolio struct {
	basePortfolio
	lookback  int
	maxWeight float64
}

func (p inverseVolatilityPortfolio) Lookback() int {
	return p.lookback + 1
}

func (p inverseVolatilityPortfolio) Weights(matrix *domain.Frame, active map[string]bool, i int) map[string]float64 {
	symbols := activeSymbols(matrix, active)
	out := map[string]float64{}
	if len(symbols) == 0 {
		return out
	}
	inverse := map[string]float64{}
	total := 0.0
	for _, symbol := range symbols {
		col, _ := matrix.Column(symbol)
		returns := trailingReturns(col, i, p.lookback)
		if len(returns) < 2 {
			continue
		}
		vol := stat.StdDev(returns, nil)
		if vol <= 0 || math.IsNaN(vol) {
			continue
		}
		inverse[symbol] = 1 / vol
		total += 1 / vol
	}
	// not enough history for every symbol yet
	if len(inverse) != len(symbols) || total == 0 {
		return equalWeightPortfolio{maxWeight: p.maxWeight}.Weights(matrix, active, i)
	}
	for symbol, inv := range inverse {
		out[symbol] = math.Min(inv/total, p.maxWeight)
	}
	return out
}

type momentumRankPortfolio struct {
	basePortfolio
	lookback int
	topN     int
}

func (p momentumRankPortfolio) Lookback() int {
	return p.lookback + 1
}

func (p momentumRankPortfolio) Weights(matrix *domain.Frame, active map[string]bool, i int) map[string]float64 {
	type ranked struct {
		symbol   string
		momentum float64
	}
	candidates := []ranked{}
	for _, symbol := range activeSymbols(matrix, active) {
		col, _ := matrix.Column(symbol)
		if i-p.lookback < 0 {
			continue
		}
		past, now := col[i-p.lookback], col[i]
		if domain.IsUnavailable(past) || domain.IsUnavailable(now) || past <= 0 {
			continue
		}
		candidates = append(candidates, ranked{symbol, now/past - 1})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].momentum > candidates[b].momentum
	})
	if len(candidates) > p.topN {
		candidates = candidates[:p.topN]
	}
	out := map[string]float64{}
	for _, c := range candidates {
		out[c.symbol] = 1 / float64(len(candidates))
	}
	return out
}

// trailingReturns are the simple returns of col over (i-lookback, i].
func trailingReturns(col []float64, i, lookback int) []float64 {
	out := []float64{}
	for j := max(1, i-lookback+1); j <= i; j++ {
		prev, cur := col[j-1], col[j]
		if domain.IsUnavailable(prev) || domain.IsUnavailable(cur) || prev <= 0 {
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// BufferedPortfolioStrategy is the live path of a portfolio strategy: it
// keeps the trailing roster prices and recomputes weights on each update.
// Not safe for concurrent use.
type BufferedPortfolioStrategy struct {
	strategy PortfolioStrategy
	rows     []rosterRow
	active   map[string]bool
}

type rosterRow struct {
	timestamp time.Time
	closes    map[string]float64
}

func NewBufferedPortfolioStrategy(s PortfolioStrategy) *BufferedPortfolioStrategy {
	return &BufferedPortfolioStrategy{
		strategy: s,
		active:   map[string]bool{},
	}
}

func (b *BufferedPortfolioStrategy) Strategy() PortfolioStrategy {
	return b.strategy
}

// Update records the roster snapshot and returns target weights.
func (b *BufferedPortfolioStrategy) Update(roster map[string]domain.SignalDataPayload) (map[string]float64, error) {
	row := rosterRow{closes: map[string]float64{}}
	for symbol, payload := range roster {
		row.closes[symbol] = payload.PriceData.Close
		if payload.PriceData.Timestamp.After(row.timestamp) {
			row.timestamp = payload.PriceData.Timestamp
		}
		switch {
		case payload.Entry() == domain.SignalBuy:
			b.active[symbol] = true
		case payload.Exit() == domain.SignalSell:
			b.active[symbol] = false
		}
	}
	if n := len(b.rows); n > 0 && !row.timestamp.After(b.rows[n-1].timestamp) {
		// same bar seen again through another symbol's update
		b.rows[n-1] = row
	} else {
		b.rows = append(b.rows, row)
	}
	if size := max(b.strategy.Lookback(), 1); len(b.rows) > size {
		b.rows = append(b.rows[:0], b.rows[len(b.rows)-size:]...)
	}

	matrix, err := b.matrix()
	if err != nil {
		return nil, err
	}
	return b.strategy.Weights(matrix, b.active, matrix.Len()-1), nil
}

func (b *BufferedPortfolioStrategy) matrix() (*domain.Frame, error) {
	symbols := map[string]bool{}
	ts := make([]time.Time, len(b.rows))
	for i, r := range b.rows {
		ts[i] = r.timestamp
		for symbol := range r.closes {
			symbols[symbol] = true
		}
	}
	names := make([]string, 0, len(symbols))
	for symbol := range symbols {
		names = append(names, symbol)
	}
	sort.Strings(names)

	f := domain.NewFrame("", ts)
	for _, symbol := range names {
		col := make([]float64, len(b.rows))
		for i, r := range b.rows {
			v, ok := r.closes[symbol]
			if !ok {
				v = domain.Unavailable
			}
			col[i] = v
		}
		if err := f.SetColumn(symbol, col); err != nil {
			return nil, err
		}
	}
	return f, nil
}
