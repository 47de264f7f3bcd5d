package calculator

import (
	"fmt"

	"algotrader/internal/domain"
)

type SignalBacktestInput struct {
	Signals         *domain.SignalFrame
	InitialBalance  float64
	TransactionCost float64
}

type SignalBacktestResult struct {
	Values       []float64
	TradeReturns []float64
	NumTrades    int
	Metrics      domain.Metrics
}

// RunSignalBacktest replays a long-only signal frame: enter on an entry BUY
// at the bar close, leave on an exit SELL at the bar close. An open position
// is marked to market at the last bar.
func RunSignalBacktest(in SignalBacktestInput) (*SignalBacktestResult, error) {
	if in.Signals == nil || in.Signals.Len() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows to backtest", domain.ErrEmptyFrame)
	}
	closes, ok := in.Signals.Frame.Column(domain.ColClose)
	if !ok {
		return nil, fmt.Errorf("%w: close", domain.ErrMissingInputColumn)
	}
	balance := in.InitialBalance
	if balance == 0 {
		balance = 1
	}

	values := make([]float64, len(closes))
	tradeReturns := []float64{}
	numTrades := 0
	inPosition := false
	equity := balance
	entryEquity := 0.0

	for i := range closes {
		if i > 0 && inPosition && closes[i-1] > 0 {
			equity *= closes[i] / closes[i-1]
		}

		switch {
		case !inPosition && in.Signals.Entry[i] == domain.SignalBuy && closes[i] > 0:
			equity *= 1 - in.TransactionCost
			entryEquity = equity
			inPosition = true
			numTrades++
		case inPosition && in.Signals.Exit[i] == domain.SignalSell:
			equity *= 1 - in.TransactionCost
			tradeReturns = append(tradeReturns, equity/entryEquity-1)
			inPosition = false
		}
		values[i] = equity
	}
	if inPosition {
		tradeReturns = append(tradeReturns, equity/entryEquity-1)
	}

	metrics, err := CalculateMetrics(CalculateMetricsInput{
		Values:       values,
		TradeReturns: tradeReturns,
		NumTrades:    numTrades,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to calculate metrics: %w", err)
	}

	return &SignalBacktestResult{
		Values:       values,
		TradeReturns: tradeReturns,
		NumTrades:    numTrades,
		Metrics:      metrics,
	}, nil
}
