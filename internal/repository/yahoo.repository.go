package repository

import (
	"context"
	"fmt"
	"time"

	"algotrader/internal/domain"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"golang.org/x/time/rate"
)

type yahooRepositoryHandler struct {
	limiter *rate.Limiter
}

// NewYahooRepository reads daily bars from the yahoo chart api. Yahoo does
// not report trade counts or vwap, so vwap is the typical price and
// num_trades is 0.
func NewYahooRepository(minRequestInterval time.Duration) HistoricalDataRepository {
	return yahooRepositoryHandler{
		limiter: rate.NewLimiter(rate.Every(minRequestInterval), 1),
	}
}

func (h yahooRepositoryHandler) GetBars(ctx context.Context, in GetBarsInput) (*BarPage, error) {
	start := in.Start
	if in.PageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, in.PageToken)
		if err != nil {
			return nil, fmt.Errorf("invalid page token %q: %w", in.PageToken, err)
		}
		start = t
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamTransient, err)
	}

	end := in.End
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   in.Symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	out := &BarPage{Bars: []domain.Bar{}}
	for iter.Next() {
		b := iter.Bar()
		ts := time.Unix(int64(b.Timestamp), 0).UTC()
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		if in.Limit > 0 && len(out.Bars) == in.Limit {
			out.NextPageToken = ts.Format(time.RFC3339Nano)
			break
		}
		high, low, last := b.High.InexactFloat64(), b.Low.InexactFloat64(), b.Close.InexactFloat64()
		out.Bars = append(out.Bars, domain.Bar{
			Timestamp: ts,
			Symbol:    in.Symbol,
			Open:      b.Open.InexactFloat64(),
			High:      high,
			Low:       low,
			Close:     last,
			Volume:    float64(b.Volume),
			Vwap:      (high + low + last) / 3,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get yahoo bars for %s: %w: %w", in.Symbol, domain.ErrUpstreamTransient, err)
	}
	return out, nil
}
