package repository

import (
	"context"
	"time"

	"algotrader/internal/domain"

	"github.com/shopspring/decimal"
)

type GetBarsInput struct {
	Symbol string
	Start  time.Time
	End    time.Time
	// PageToken is the start timestamp of the next page, empty for the first
	PageToken string
	Limit     int
}

// BarPage is one page of historical bars. NextPageToken is empty on the
// last page. Bars may come back in either order.
type BarPage struct {
	Bars          []domain.Bar
	NextPageToken string
}

// HistoricalDataRepository pages through daily bars.
type HistoricalDataRepository interface {
	GetBars(ctx context.Context, in GetBarsInput) (*BarPage, error)
}

type ReplaceOrderInput struct {
	Quantity      *decimal.Decimal
	LimitPrice    *decimal.Decimal
	StopPrice     *decimal.Decimal
	TimeInForce   domain.TimeInForce
	ClientOrderID string
}

// MarketStream is a live bar and quote subscription. Symbols can be added
// and removed while connected.
type MarketStream interface {
	Connect(ctx context.Context) error
	AddSymbols(ctx context.Context, symbols ...string) error
	RemoveSymbols(ctx context.Context, symbols ...string) error
	// Terminated is closed, or receives an error, when the stream stops
	// for good.
	Terminated() <-chan error
}

type MarketStreamHandlers struct {
	OnBar   func(domain.StreamBar)
	OnQuote func(domain.StreamQuote)
}

// BrokerRepository is the brokerage capability set used by the live
// pipeline.
type BrokerRepository interface {
	HistoricalDataRepository

	GetAccount(ctx context.Context) (*domain.Account, error)
	// GetFillActivities returns fills executed at or after since, as trades.
	GetFillActivities(ctx context.Context, since time.Time) ([]domain.Trade, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)

	PlaceOrder(ctx context.Context, o domain.Order) (*domain.Order, error)
	ListOpenOrders(ctx context.Context) ([]domain.Order, error)
	GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*domain.Order, error)
	ReplaceOrder(ctx context.Context, brokerOrderID string, in ReplaceOrderInput) (*domain.Order, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	CancelAllOrders(ctx context.Context) error

	// StreamOrderEvents delivers order updates until ctx is done.
	StreamOrderEvents(ctx context.Context, handler func(domain.OrderEvent)) error
	NewMarketStream(handlers MarketStreamHandlers) MarketStream

	Close() error
}
