package calculator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"algotrader/internal/domain"
)

// PortfolioWeigher turns the asset matrix up to row i into target weights.
// active holds the symbols whose own signal strategy is currently long.
type PortfolioWeigher interface {
	Weights(matrix *domain.Frame, active map[string]bool, i int) map[string]float64
}

type PortfolioBacktestInput struct {
	Strategy PortfolioWeigher
	// Matrix has one close column per symbol
	Matrix  *domain.Frame
	Signals map[string]*domain.SignalFrame

	InitialBalance  float64
	TransactionCost float64
	MinLot          float64
	Leverage        float64
	Slippage        float64
}

type Transaction struct {
	Timestamp time.Time        `json:"timestamp"`
	Symbol    string           `json:"symbol"`
	Side      domain.OrderSide `json:"side"`
	Quantity  float64          `json:"quantity"`
	Price     float64          `json:"price"`
	Cost      float64          `json:"cost"`
}

type PortfolioBacktestResult struct {
	Timestamps       []time.Time
	PortfolioValues  []float64
	PortfolioReturns []float64
	Transactions     []Transaction
	Metrics          domain.Metrics
}

type proposedTrade struct {
	symbol   string
	quantity float64
	price    float64
}

// RunPortfolioBacktest rebalances towards the strategy's target weights on
// every bar, trading whole multiples of MinLot and never letting cash go
// below what the leverage bound allows.
func RunPortfolioBacktest(in PortfolioBacktestInput) (*PortfolioBacktestResult, error) {
	if in.Matrix.Len() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows to backtest", domain.ErrEmptyFrame)
	}
	if in.InitialBalance <= 0 {
		return nil, fmt.Errorf("%w: initial balance must be > 0", domain.ErrInvalidParams)
	}
	minLot := in.MinLot
	if minLot <= 0 {
		minLot = 1
	}
	leverage := math.Max(in.Leverage, 1)

	symbols := in.Matrix.Columns()
	sort.Strings(symbols)
	for symbol, sf := range in.Signals {
		if sf.Len() != in.Matrix.Len() {
			return nil, fmt.Errorf("signals for %s have %d rows, matrix has %d", symbol, sf.Len(), in.Matrix.Len())
		}
	}

	cash := in.InitialBalance
	holdings := map[string]float64{}
	active := map[string]bool{}
	out := &PortfolioBacktestResult{
		Timestamps: in.Matrix.Timestamps,
	}

	for i := 0; i < in.Matrix.Len(); i++ {
		prices := map[string]float64{}
		for _, symbol := range symbols {
			col, _ := in.Matrix.Column(symbol)
			if p := col[i]; !domain.IsUnavailable(p) && p > 0 {
				prices[symbol] = p
			}
		}
		equity := cash
		for symbol, qty := range holdings {
			equity += qty * lastPrice(in.Matrix, symbol, i)
		}

		for symbol, sf := range in.Signals {
			if sf.Entry[i] == domain.SignalBuy {
				active[symbol] = true
			}
			if sf.Exit[i] == domain.SignalSell {
				active[symbol] = false
			}
		}

		weights := normalizeWeights(in.Strategy.Weights(in.Matrix, active, i), leverage)
		trades := transitionToTarget(holdings, weights, prices, equity, minLot)

		// sells first so their proceeds can fund buys
		buys := []proposedTrade{}
		for _, t := range trades {
			if t.quantity >= 0 {
				buys = append(buys, t)
				continue
			}
			qty := -t.quantity
			price := t.price * (1 - in.Slippage)
			notional := qty * price
			cost := notional * in.TransactionCost
			cash += notional - cost
			holdings[t.symbol] -= qty
			out.Transactions = append(out.Transactions, Transaction{
				Timestamp: in.Matrix.Timestamps[i], Symbol: t.symbol, Side: domain.OrderSideSell,
				Quantity: qty, Price: price, Cost: cost,
			})
		}

		buyCost := 0.0
		for _, t := range buys {
			buyCost += t.quantity * t.price * (1 + in.Slippage) * (1 + in.TransactionCost)
		}
		budget := cash + (leverage-1)*equity
		scale := 1.0
		if buyCost > budget && buyCost > 0 {
			scale = math.Max(budget, 0) / buyCost
		}
		for _, t := range buys {
			qty := math.Floor(t.quantity*scale/minLot) * minLot
			if qty <= 0 {
				continue
			}
			price := t.price * (1 + in.Slippage)
			notional := qty * price
			cost := notional * in.TransactionCost
			cash -= notional + cost
			holdings[t.symbol] += qty
			out.Transactions = append(out.Transactions, Transaction{
				Timestamp: in.Matrix.Timestamps[i], Symbol: t.symbol, Side: domain.OrderSideBuy,
				Quantity: qty, Price: price, Cost: cost,
			})
		}
		for symbol, qty := range holdings {
			if qty == 0 {
				delete(holdings, symbol)
			}
		}

		value := cash
		for symbol, qty := range holdings {
			value += qty * lastPrice(in.Matrix, symbol, i)
		}
		ret := 0.0
		if i > 0 && out.PortfolioValues[i-1] != 0 {
			ret = value/out.PortfolioValues[i-1] - 1
		}
		out.PortfolioValues = append(out.PortfolioValues, value)
		out.PortfolioReturns = append(out.PortfolioReturns, ret)
	}

	metrics, err := CalculateMetrics(CalculateMetricsInput{
		Values:    out.PortfolioValues,
		NumTrades: len(out.Transactions),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to calculate portfolio metrics: %w", err)
	}
	out.Metrics = metrics
	return out, nil
}

// transitionToTarget diffs current holdings against target weights. Symbols
// without a price on this bar are left alone.
func transitionToTarget(holdings map[string]float64, weights map[string]float64, prices map[string]float64, equity, minLot float64) []proposedTrade {
	symbols := map[string]bool{}
	for symbol := range holdings {
		symbols[symbol] = true
	}
	for symbol := range weights {
		symbols[symbol] = true
	}
	ordered := make([]string, 0, len(symbols))
	for symbol := range symbols {
		ordered = append(ordered, symbol)
	}
	sort.Strings(ordered)

	trades := []proposedTrade{}
	for _, symbol := range ordered {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		target := math.Floor(weights[symbol]*equity/price/minLot) * minLot
		diff := target - holdings[symbol]
		if diff != 0 {
			trades = append(trades, proposedTrade{symbol: symbol, quantity: diff, price: price})
		}
	}
	return trades
}

// normalizeWeights drops negative weights and scales the rest down so they
// never sum past the leverage bound.
func normalizeWeights(weights map[string]float64, leverage float64) map[string]float64 {
	out := map[string]float64{}
	sum := 0.0
	for symbol, w := range weights {
		if w > 0 && !math.IsNaN(w) && !math.IsInf(w, 0) {
			out[symbol] = w
			sum += w
		}
	}
	if sum > leverage {
		for symbol := range out {
			out[symbol] *= leverage / sum
		}
	}
	return out
}

func lastPrice(matrix *domain.Frame, symbol string, i int) float64 {
	col, ok := matrix.Column(symbol)
	if !ok {
		return 0
	}
	for j := i; j >= 0; j-- {
		if p := col[j]; !domain.IsUnavailable(p) && p > 0 {
			return p
		}
	}
	return 0
}
