package strategy

import (
	"testing"
	"time"

	"algotrader/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestPortfolioStrategies(t *testing.T) {
	matrix := testFrame(t, map[string][]float64{
		"AAPL": {100, 101, 99, 102, 104, 103},
		"MSFT": {200, 220, 190, 230, 210, 240},
		"GOOG": {50, 50, 51, 52, 53, 55},
	})
	active := map[string]bool{"AAPL": true, "MSFT": true, "GOOG": false}

	t.Run("equal weight caps at max weight", func(t *testing.T) {
		s, err := NewPortfolioStrategy("EqualWeightSignalPortfolio", Params{"max_weight": 0.4})
		require.NoError(t, err)
		require.Equal(t, map[string]float64{"AAPL": 0.4, "MSFT": 0.4}, s.Weights(matrix, active, 5))
	})

	t.Run("inverse volatility favours the calmer symbol", func(t *testing.T) {
		s, err := NewPortfolioStrategy("InverseVolatilityPortfolio", Params{"lookback": 5})
		require.NoError(t, err)
		weights := s.Weights(matrix, active, 5)
		require.Greater(t, weights["AAPL"], weights["MSFT"])
		require.InDelta(t, 1.0, weights["AAPL"]+weights["MSFT"], 1e-9)
	})

	t.Run("momentum rank keeps the top n", func(t *testing.T) {
		s, err := NewPortfolioStrategy("MomentumRankPortfolio", Params{"lookback": 5, "top_n": 1})
		require.NoError(t, err)
		require.Equal(t, map[string]float64{"MSFT": 1}, s.Weights(matrix, active, 5))
	})

	t.Run("build from grouped params", func(t *testing.T) {
		s, err := BuildPortfolioStrategy("MomentumRankPortfolio", map[string]any{
			"portfolio_strategy": map[string]any{"MomentumRankPortfolio": map[string]any{"top_n": 2.0, "other": 1}},
		})
		require.NoError(t, err)
		require.Equal(t, "MomentumRankPortfolio(lookback=60, top_n=2)", s.Description())
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := NewPortfolioStrategy("Nope", nil)
		require.ErrorIs(t, err, domain.ErrUnknownStrategy)
	})
}

func TestBufferedPortfolioStrategy(t *testing.T) {
	s, err := NewPortfolioStrategy("EqualWeightSignalPortfolio", nil)
	require.NoError(t, err)
	b := NewBufferedPortfolioStrategy(s)

	payload := func(symbol string, close float64, day int, entry, exit domain.Signal) domain.SignalDataPayload {
		return domain.SignalDataPayload{
			Symbol:  symbol,
			Signals: map[string]domain.Signal{domain.ColEntrySignal: entry, domain.ColExitSignal: exit},
			PriceData: domain.EnrichedBar{Bar: domain.Bar{
				Symbol: symbol, Close: close, Timestamp: time.Date(2021, 1, day, 15, 0, 0, 0, time.UTC),
			}},
		}
	}

	weights, err := b.Update(map[string]domain.SignalDataPayload{
		"AAPL": payload("AAPL", 100, 4, domain.SignalBuy, domain.SignalHold),
	})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"AAPL": 1}, weights)

	weights, err = b.Update(map[string]domain.SignalDataPayload{
		"AAPL": payload("AAPL", 101, 5, domain.SignalHold, domain.SignalHold),
		"MSFT": payload("MSFT", 200, 5, domain.SignalBuy, domain.SignalHold),
	})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"AAPL": 0.5, "MSFT": 0.5}, weights)

	weights, err = b.Update(map[string]domain.SignalDataPayload{
		"AAPL": payload("AAPL", 102, 6, domain.SignalHold, domain.SignalSell),
		"MSFT": payload("MSFT", 201, 6, domain.SignalHold, domain.SignalHold),
	})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"MSFT": 1}, weights)
}
