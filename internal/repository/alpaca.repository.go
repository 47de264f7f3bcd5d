package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/logger"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type AlpacaRepositoryInput struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	DataURL    string
	Feed       string
	Account    string
	RetryLimit int
	// MinRequestInterval spaces out every REST call made by this process
	MinRequestInterval time.Duration
}

type alpacaRepositoryHandler struct {
	Client   *alpaca.Client
	MdClient *marketdata.Client

	apiKey    string
	apiSecret string
	feed      string
	account   string
	limiter   *rate.Limiter
}

func NewAlpacaRepository(in AlpacaRepositoryInput) BrokerRepository {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     in.APIKey,
		APISecret:  in.APISecret,
		BaseURL:    in.BaseURL,
		RetryLimit: in.RetryLimit,
	})

	mdClient := marketdata.NewClient(marketdata.ClientOpts{
		BaseURL:    in.DataURL,
		APIKey:     in.APIKey,
		APISecret:  in.APISecret,
		RetryLimit: in.RetryLimit,
	})

	return &alpacaRepositoryHandler{
		Client:    client,
		MdClient:  mdClient,
		apiKey:    in.APIKey,
		apiSecret: in.APISecret,
		feed:      in.Feed,
		account:   in.Account,
		limiter:   rate.NewLimiter(rate.Every(in.MinRequestInterval), 1),
	}
}

func (h *alpacaRepositoryHandler) wait(ctx context.Context) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTransient, err)
	}
	return nil
}

// classify tags broker errors so callers can tell retryable failures apart.
func classify(err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", domain.ErrUpstreamTransient, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrUpstreamPermanent, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamTransient, err)
}

func (h *alpacaRepositoryHandler) GetBars(ctx context.Context, in GetBarsInput) (*BarPage, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	start := in.Start
	if in.PageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, in.PageToken)
		if err != nil {
			return nil, fmt.Errorf("invalid page token %q: %w", in.PageToken, err)
		}
		start = t
	}

	bars, err := h.MdClient.GetBars(in.Symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        in.End,
		TotalLimit: in.Limit,
		Feed:       h.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", in.Symbol, classify(err))
	}

	out := &BarPage{Bars: make([]domain.Bar, len(bars))}
	for i, b := range bars {
		out.Bars[i] = domain.Bar{
			Timestamp: b.Timestamp.UTC(),
			Symbol:    in.Symbol,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
			NumTrades: float64(b.TradeCount),
			Vwap:      b.VWAP,
		}
	}
	if in.Limit > 0 && len(bars) == in.Limit {
		last := bars[len(bars)-1].Timestamp
		out.NextPageToken = last.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano)
	}
	return out, nil
}

func (h *alpacaRepositoryHandler) GetAccount(ctx context.Context) (*domain.Account, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	acct, err := h.Client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", classify(err))
	}
	return &domain.Account{
		AccountID:   acct.ID,
		Cash:        acct.Cash.InexactFloat64(),
		BuyingPower: acct.BuyingPower.InexactFloat64(),
		Equity:      acct.Equity.InexactFloat64(),
	}, nil
}

func (h *alpacaRepositoryHandler) GetFillActivities(ctx context.Context, since time.Time) ([]domain.Trade, error) {
	out := []domain.Trade{}
	pageToken := ""
	for {
		if err := h.wait(ctx); err != nil {
			return nil, err
		}
		activities, err := h.Client.GetAccountActivities(alpaca.GetAccountActivitiesRequest{
			ActivityTypes: []string{"FILL"},
			After:         since,
			Direction:     "asc",
			PageSize:      100,
			PageToken:     pageToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get fill activities: %w", classify(err))
		}
		for _, a := range activities {
			out = append(out, domain.Trade{
				ExternalID: a.ID,
				OrderID:    a.OrderID,
				Account:    h.account,
				Symbol:     a.Symbol,
				Side:       domain.OrderSide(a.Side),
				Quantity:   a.Qty,
				Price:      a.Price,
				ExecutedAt: a.TransactionTime.UTC(),
			})
		}
		if len(activities) < 100 {
			break
		}
		pageToken = activities[len(activities)-1].ID
	}
	return out, nil
}

func (h *alpacaRepositoryHandler) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	positions, err := h.Client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", classify(err))
	}
	out := make([]domain.Position, len(positions))
	for i, p := range positions {
		out[i] = domain.Position{
			Symbol:   p.Symbol,
			Account:  h.account,
			Quantity: p.Qty,
			AvgPrice: p.AvgEntryPrice,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (h *alpacaRepositoryHandler) PlaceOrder(ctx context.Context, o domain.Order) (*domain.Order, error) {
	if (o.Quantity == nil) == (o.Notional == nil) {
		return nil, fmt.Errorf("%w: order %s needs exactly one of quantity and notional", domain.ErrInvalidParams, o.ClientOrderID)
	}
	if err := h.wait(ctx); err != nil {
		return nil, err
	}

	req := alpaca.PlaceOrderRequest{
		Symbol:        o.Symbol,
		Qty:           o.Quantity,
		Notional:      o.Notional,
		Side:          alpaca.Side(o.Side),
		Type:          alpaca.OrderType(o.Type),
		TimeInForce:   alpaca.TimeInForce(o.TimeInForce),
		LimitPrice:    o.LimitPrice,
		StopPrice:     o.StopPrice,
		TrailPrice:    o.TrailPrice,
		TrailPercent:  o.TrailPercent,
		ClientOrderID: o.ClientOrderID,
		OrderClass:    alpaca.OrderClass(o.OrderClass),
	}
	if o.TakeProfitLimitPrice != nil {
		req.TakeProfit = &alpaca.TakeProfit{LimitPrice: o.TakeProfitLimitPrice}
	}
	if o.StopLossStopPrice != nil {
		req.StopLoss = &alpaca.StopLoss{StopPrice: o.StopLossStopPrice}
	}

	order, err := h.Client.PlaceOrder(req)
	if err != nil {
		return nil, fmt.Errorf("order %s %s %s failed: %w", o.Side, o.Symbol, o.ClientOrderID, classify(err))
	}
	out := h.orderFromAlpaca(*order)
	return &out, nil
}

func (h *alpacaRepositoryHandler) ListOpenOrders(ctx context.Context) ([]domain.Order, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	orders, err := h.Client.GetOrders(alpaca.GetOrdersRequest{
		Status: "open",
		Until:  time.Now(),
		Limit:  500,
		Nested: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", classify(err))
	}
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		out[i] = h.orderFromAlpaca(o)
	}
	return out, nil
}

func (h *alpacaRepositoryHandler) GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*domain.Order, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	order, err := h.Client.GetOrderByClientOrderID(clientOrderID)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: broker order %s", domain.ErrNotFound, clientOrderID)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", clientOrderID, classify(err))
	}
	out := h.orderFromAlpaca(*order)
	return &out, nil
}

func (h *alpacaRepositoryHandler) ReplaceOrder(ctx context.Context, brokerOrderID string, in ReplaceOrderInput) (*domain.Order, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	order, err := h.Client.ReplaceOrder(brokerOrderID, alpaca.ReplaceOrderRequest{
		Qty:           in.Quantity,
		LimitPrice:    in.LimitPrice,
		StopPrice:     in.StopPrice,
		TimeInForce:   alpaca.TimeInForce(in.TimeInForce),
		ClientOrderID: in.ClientOrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace order %s: %w", brokerOrderID, classify(err))
	}
	out := h.orderFromAlpaca(*order)
	return &out, nil
}

func (h *alpacaRepositoryHandler) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if err := h.wait(ctx); err != nil {
		return err
	}
	if err := h.Client.CancelOrder(brokerOrderID); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", brokerOrderID, classify(err))
	}
	return nil
}

func (h *alpacaRepositoryHandler) CancelAllOrders(ctx context.Context) error {
	if err := h.wait(ctx); err != nil {
		return err
	}
	if err := h.Client.CancelAllOrders(); err != nil {
		return fmt.Errorf("failed to cancel orders: %w", classify(err))
	}
	logger.FromContext(ctx).Info("cancelled all open orders")
	return nil
}

func (h *alpacaRepositoryHandler) StreamOrderEvents(ctx context.Context, handler func(domain.OrderEvent)) error {
	h.Client.StreamTradeUpdatesInBackground(ctx, func(u alpaca.TradeUpdate) {
		event := domain.OrderEvent{
			Event:     domain.ParseOrderEventType(u.Event),
			Order:     h.orderFromAlpaca(u.Order),
			Timestamp: u.At.UTC(),
		}
		handler(event)
	})
	<-ctx.Done()
	return nil
}

func (h *alpacaRepositoryHandler) Close() error {
	return nil
}

func (h *alpacaRepositoryHandler) orderFromAlpaca(o alpaca.Order) domain.Order {
	out := domain.Order{
		ClientOrderID: o.ClientOrderID,
		BrokerOrderID: o.ID,
		Account:       h.account,
		Symbol:        o.Symbol,
		Side:          domain.OrderSide(o.Side),
		Type:          domain.OrderType(o.Type),
		TimeInForce:   domain.TimeInForce(o.TimeInForce),
		OrderClass:    domain.OrderClass(o.OrderClass),
		Quantity:      o.Qty,
		Notional:      o.Notional,
		LimitPrice:    o.LimitPrice,
		StopPrice:     o.StopPrice,
		TrailPrice:    o.TrailPrice,
		TrailPercent:  o.TrailPercent,
		Status:        domain.OrderStatus(o.Status),
		FilledQty:     o.FilledQty,
		FilledAt:      o.FilledAt,
		CreatedAt:     o.CreatedAt.UTC(),
		UpdatedAt:     o.UpdatedAt.UTC(),
	}
	if o.FilledAvgPrice != nil {
		out.FilledAvgPrice = *o.FilledAvgPrice
	} else {
		out.FilledAvgPrice = decimal.Zero
	}
	return out
}

type alpacaMarketStream struct {
	client   *stream.StocksClient
	handlers MarketStreamHandlers
	log      *zap.SugaredLogger

	mu        sync.Mutex
	connected bool
}

func (h *alpacaRepositoryHandler) NewMarketStream(handlers MarketStreamHandlers) MarketStream {
	client := stream.NewStocksClient(
		h.feed,
		stream.WithCredentials(h.apiKey, h.apiSecret),
		stream.WithReconnectSettings(10, 5*time.Second),
	)
	return &alpacaMarketStream{
		client:   client,
		handlers: handlers,
		log:      zap.S(),
	}
}

func (s *alpacaMarketStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	s.log = logger.FromContext(ctx)
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect market stream: %w", classify(err))
	}
	s.connected = true
	return nil
}

func (s *alpacaMarketStream) onBar(b stream.Bar) {
	if s.handlers.OnBar == nil {
		return
	}
	s.handlers.OnBar(domain.StreamBar{Bar: domain.Bar{
		Timestamp: b.Timestamp.UTC(),
		Symbol:    b.Symbol,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    float64(b.Volume),
		NumTrades: float64(b.TradeCount),
		Vwap:      b.VWAP,
	}})
}

func (s *alpacaMarketStream) onQuote(q stream.Quote) {
	if s.handlers.OnQuote == nil {
		return
	}
	s.handlers.OnQuote(domain.StreamQuote{
		Symbol:    q.Symbol,
		BidPrice:  q.BidPrice,
		BidSize:   float64(q.BidSize),
		AskPrice:  q.AskPrice,
		AskSize:   float64(q.AskSize),
		Timestamp: q.Timestamp.UTC(),
	})
}

func (s *alpacaMarketStream) AddSymbols(ctx context.Context, symbols ...string) error {
	if len(symbols) == 0 {
		return nil
	}
	if err := s.client.SubscribeToBars(s.onBar, symbols...); err != nil {
		return fmt.Errorf("failed to subscribe to bars of %v: %w", symbols, err)
	}
	if err := s.client.SubscribeToQuotes(s.onQuote, symbols...); err != nil {
		return fmt.Errorf("failed to subscribe to quotes of %v: %w", symbols, err)
	}
	s.log.Infow("subscribed upstream", "symbols", symbols)
	return nil
}

func (s *alpacaMarketStream) RemoveSymbols(ctx context.Context, symbols ...string) error {
	if len(symbols) == 0 {
		return nil
	}
	if err := s.client.UnsubscribeFromBars(symbols...); err != nil {
		return fmt.Errorf("failed to unsubscribe from bars of %v: %w", symbols, err)
	}
	if err := s.client.UnsubscribeFromQuotes(symbols...); err != nil {
		return fmt.Errorf("failed to unsubscribe from quotes of %v: %w", symbols, err)
	}
	s.log.Infow("unsubscribed upstream", "symbols", symbols)
	return nil
}

func (s *alpacaMarketStream) Terminated() <-chan error {
	return s.client.Terminated()
}
