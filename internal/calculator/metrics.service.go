package calculator

import (
	"fmt"
	"math"

	"algotrader/internal/domain"

	"github.com/montanaflynn/stats"
)

const tradingDaysPerYear = 252

type CalculateMetricsInput struct {
	// Values is the equity curve, one value per bar
	Values []float64
	// TradeReturns are the returns of closed round trips. When empty, win
	// rate and profit factor are computed from bar returns.
	TradeReturns   []float64
	NumTrades      int
	PeriodsPerYear float64
}

// CalculateMetrics computes the standard performance metrics of an equity
// curve.
func CalculateMetrics(in CalculateMetricsInput) (domain.Metrics, error) {
	if len(in.Values) < 2 {
		return nil, fmt.Errorf("cannot calculate metrics on < 2 values")
	}
	if in.Values[0] <= 0 {
		return nil, fmt.Errorf("cannot calculate metrics from starting value %f", in.Values[0])
	}
	periods := in.PeriodsPerYear
	if periods == 0 {
		periods = tradingDaysPerYear
	}

	returns := periodReturns(in.Values)
	mean, err := stats.Mean(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean return: %w", err)
	}
	stdev := 0.0
	if len(returns) > 1 {
		stdev, err = stats.StandardDeviationSample(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to compute stdev: %w", err)
		}
	}

	totalReturn := in.Values[len(in.Values)-1]/in.Values[0] - 1
	maxDrawdown := maxDrawdown(in.Values)

	sharpe := 0.0
	if stdev > 0 {
		sharpe = mean / stdev * math.Sqrt(periods)
	}

	sortino := 0.0
	if dd := downsideDeviation(returns); dd > 0 {
		sortino = mean / dd * math.Sqrt(periods)
	}

	calmar := 0.0
	if maxDrawdown < 0 && totalReturn > -1 {
		annualized := math.Pow(1+totalReturn, periods/float64(len(returns))) - 1
		calmar = annualized / math.Abs(maxDrawdown)
	}

	outcomes := in.TradeReturns
	if len(outcomes) == 0 {
		outcomes = returns
	}
	winRate, profitFactor := winRateAndProfitFactor(outcomes)

	return domain.Metrics{
		domain.MetricTotalReturn:  domain.Metric(totalReturn),
		domain.MetricMeanReturn:   domain.Metric(mean),
		domain.MetricVolatility:   domain.Metric(stdev * math.Sqrt(periods)),
		domain.MetricSharpeRatio:  domain.Metric(sharpe),
		domain.MetricMaxDrawdown:  domain.Metric(maxDrawdown),
		domain.MetricSortinoRatio: domain.Metric(sortino),
		domain.MetricCalmarRatio:  domain.Metric(calmar),
		domain.MetricWinRate:      domain.Metric(winRate),
		domain.MetricProfitFactor: domain.Metric(profitFactor),
		domain.MetricNumTrades:    domain.Metric(in.NumTrades),
	}, nil
}

func periodReturns(values []float64) []float64 {
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// maxDrawdown is the worst peak to trough move, as a negative fraction.
func maxDrawdown(values []float64) float64 {
	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			worst = math.Min(worst, v/peak-1)
		}
	}
	return worst
}

func downsideDeviation(returns []float64) float64 {
	sum := 0.0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}

func winRateAndProfitFactor(outcomes []float64) (float64, float64) {
	wins, decided := 0, 0
	grossProfit, grossLoss := 0.0, 0.0
	for _, r := range outcomes {
		switch {
		case r > 0:
			wins++
			decided++
			grossProfit += r
		case r < 0:
			decided++
			grossLoss -= r
		}
	}
	winRate := 0.0
	if decided > 0 {
		winRate = float64(wins) / float64(decided)
	}
	profitFactor := 0.0
	switch {
	case grossLoss > 0:
		profitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		profitFactor = math.Inf(1)
	}
	return winRate, profitFactor
}
