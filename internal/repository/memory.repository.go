package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"algotrader/internal/domain"

	"github.com/google/uuid"
)

// The memory handlers back the live pipeline when no database is
// configured, and the integration tests.

type memoryOrderRepositoryHandler struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]domain.Order
}

func NewMemoryOrderRepository() OrderRepository {
	return &memoryOrderRepositoryHandler{orders: map[uuid.UUID]domain.Order{}}
}

func (h *memoryOrderRepositoryHandler) Add(ctx context.Context, o domain.Order) (*domain.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	for _, existing := range h.orders {
		if existing.ClientOrderID == o.ClientOrderID {
			return nil, fmt.Errorf("failed to insert order: duplicate client order id %s", o.ClientOrderID)
		}
	}
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	h.orders[o.OrderID] = o
	return &o, nil
}

func (h *memoryOrderRepositoryHandler) find(match func(domain.Order) bool) (*domain.Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, o := range h.orders {
		if match(o) {
			out := o
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: order", domain.ErrNotFound)
}

func (h *memoryOrderRepositoryHandler) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return h.find(func(o domain.Order) bool { return o.OrderID == orderID })
}

func (h *memoryOrderRepositoryHandler) GetByClientOrderID(ctx context.Context, clientOrderID string) (*domain.Order, error) {
	return h.find(func(o domain.Order) bool { return o.ClientOrderID == clientOrderID })
}

func (h *memoryOrderRepositoryHandler) GetByBrokerOrderID(ctx context.Context, brokerOrderID string) (*domain.Order, error) {
	return h.find(func(o domain.Order) bool { return brokerOrderID != "" && o.BrokerOrderID == brokerOrderID })
}

func (h *memoryOrderRepositoryHandler) List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := []domain.Order{}
	for _, o := range h.orders {
		if filter.matches(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ClientOrderID < out[j].ClientOrderID
	})
	return out, nil
}

func (h *memoryOrderRepositoryHandler) Update(ctx context.Context, o domain.Order) (*domain.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	existing, ok := h.orders[o.OrderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, o.OrderID)
	}
	existing.BrokerOrderID = o.BrokerOrderID
	existing.Status = o.Status
	existing.FilledQty = o.FilledQty
	existing.FilledAvgPrice = o.FilledAvgPrice
	existing.FilledAt = o.FilledAt
	existing.Settled = o.Settled
	existing.UpdatedAt = time.Now().UTC()
	h.orders[o.OrderID] = existing
	return &existing, nil
}

func (h *memoryOrderRepositoryHandler) Delete(ctx context.Context, orderID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.orders, orderID)
	return nil
}

type memoryTradeRepositoryHandler struct {
	mu     sync.RWMutex
	trades []domain.Trade
}

func NewMemoryTradeRepository() TradeRepository {
	return &memoryTradeRepositoryHandler{}
}

func (h *memoryTradeRepositoryHandler) Add(ctx context.Context, t domain.Trade) (*domain.Trade, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t.TradeID == uuid.Nil {
		t.TradeID = uuid.New()
	}
	h.trades = append(h.trades, t)
	return &t, nil
}

func (h *memoryTradeRepositoryHandler) List(ctx context.Context, filter TradeListFilter) ([]domain.Trade, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := []domain.Trade{}
	for _, t := range h.trades {
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out, nil
}

func (h *memoryTradeRepositoryHandler) MarkSettled(ctx context.Context, asOf time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int64
	for i, t := range h.trades {
		if !t.Settled && !t.SettlementDate.After(asOf) {
			h.trades[i].Settled = true
			n++
		}
	}
	return n, nil
}

func (h *memoryTradeRepositoryHandler) Delete(ctx context.Context, tradeID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, t := range h.trades {
		if t.TradeID == tradeID {
			h.trades = append(h.trades[:i], h.trades[i+1:]...)
			return nil
		}
	}
	return nil
}

type memoryPositionRepositoryHandler struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
}

func NewMemoryPositionRepository() PositionRepository {
	return &memoryPositionRepositoryHandler{positions: map[string]domain.Position{}}
}

func positionKey(account, symbol string) string {
	return account + "/" + symbol
}

func (h *memoryPositionRepositoryHandler) Upsert(ctx context.Context, p domain.Position) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.positions[positionKey(p.Account, p.Symbol)] = p
	return nil
}

func (h *memoryPositionRepositoryHandler) Get(ctx context.Context, account, symbol string) (*domain.Position, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.positions[positionKey(account, symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: position %s/%s", domain.ErrNotFound, account, symbol)
	}
	return &p, nil
}

func (h *memoryPositionRepositoryHandler) List(ctx context.Context, account string) ([]domain.Position, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := []domain.Position{}
	for _, p := range h.positions {
		if p.Account == account {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (h *memoryPositionRepositoryHandler) Delete(ctx context.Context, account, symbol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.positions, positionKey(account, symbol))
	return nil
}

type memoryDataStreamSessionRepositoryHandler struct {
	mu       sync.Mutex
	sessions []domain.DataStreamSession
}

func NewMemoryDataStreamSessionRepository() DataStreamSessionRepository {
	return &memoryDataStreamSessionRepositoryHandler{}
}

func (h *memoryDataStreamSessionRepositoryHandler) Start(ctx context.Context, symbol string, streamType domain.StreamType, at time.Time) (*domain.DataStreamSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := domain.DataStreamSession{
		SessionID:  uuid.New(),
		Symbol:     symbol,
		StreamType: streamType,
		StartedAt:  at.UTC(),
	}
	h.sessions = append(h.sessions, s)
	return &s, nil
}

func (h *memoryDataStreamSessionRepositoryHandler) End(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.sessions {
		if s.SessionID == sessionID && s.EndedAt == nil {
			ended := at.UTC()
			h.sessions[i].EndedAt = &ended
		}
	}
	return nil
}

func (h *memoryDataStreamSessionRepositoryHandler) ListOpen(ctx context.Context) ([]domain.DataStreamSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []domain.DataStreamSession{}
	for _, s := range h.sessions {
		if s.EndedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

type memoryWatchlistRepositoryHandler struct {
	mu      sync.Mutex
	symbols []string
}

func NewMemoryWatchlistRepository(symbols ...string) WatchlistRepository {
	h := &memoryWatchlistRepositoryHandler{}
	for _, s := range symbols {
		h.Add(context.Background(), s)
	}
	return h
}

func (h *memoryWatchlistRepositoryHandler) List(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.symbols))
	copy(out, h.symbols)
	return out, nil
}

func (h *memoryWatchlistRepositoryHandler) Add(ctx context.Context, symbol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, s := range h.symbols {
		if s == symbol {
			return nil
		}
	}
	h.symbols = append(h.symbols, symbol)
	return nil
}

func (h *memoryWatchlistRepositoryHandler) Remove(ctx context.Context, symbol string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []string{}
	for _, s := range h.symbols {
		if s != strings.ToUpper(symbol) {
			out = append(out, s)
		}
	}
	h.symbols = out
	return nil
}
