package l1_service

import (
	"context"
	"fmt"
	"sync"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/repository"

	"github.com/shopspring/decimal"
)

// LedgerService keeps the session's view of cash and settled positions.
// Positions are rebuilt from settled local trades and written back to the
// position repository.
type LedgerService interface {
	Initialize(ctx context.Context) (*domain.Portfolio, error)
	Portfolio() *domain.Portfolio
	Position(symbol string) decimal.Decimal
	Equity(prices map[string]decimal.Decimal) decimal.Decimal
}

type LedgerServiceInput struct {
	Broker             repository.BrokerRepository
	TradeRepository    repository.TradeRepository
	PositionRepository repository.PositionRepository
	Account            string
}

type ledgerServiceHandler struct {
	Broker             repository.BrokerRepository
	TradeRepository    repository.TradeRepository
	PositionRepository repository.PositionRepository
	Account            string

	mu        sync.RWMutex
	portfolio *domain.Portfolio
}

func NewLedgerService(in LedgerServiceInput) LedgerService {
	return &ledgerServiceHandler{
		Broker:             in.Broker,
		TradeRepository:    in.TradeRepository,
		PositionRepository: in.PositionRepository,
		Account:            in.Account,
		portfolio:          domain.NewPortfolio(),
	}
}

func (h *ledgerServiceHandler) Initialize(ctx context.Context) (*domain.Portfolio, error) {
	account, err := h.Broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	settled := true
	trades, err := h.TradeRepository.List(ctx, repository.TradeListFilter{Account: &h.Account, Settled: &settled})
	if err != nil {
		return nil, fmt.Errorf("failed to list settled trades: %w", err)
	}
	positions := domain.PositionsFromTrades(h.Account, trades)

	existing, err := h.PositionRepository.List(ctx, h.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	for _, p := range existing {
		if _, ok := positions[p.Symbol]; !ok {
			if err := h.PositionRepository.Delete(ctx, h.Account, p.Symbol); err != nil {
				return nil, fmt.Errorf("failed to delete position %s: %w", p.Symbol, err)
			}
		}
	}
	for _, p := range positions {
		if err := h.PositionRepository.Upsert(ctx, *p); err != nil {
			return nil, fmt.Errorf("failed to upsert position %s: %w", p.Symbol, err)
		}
	}

	portfolio := &domain.Portfolio{
		Positions: positions,
		Cash:      decimal.NewFromFloat(account.Cash),
	}
	h.mu.Lock()
	h.portfolio = portfolio
	h.mu.Unlock()

	logger.FromContext(ctx).Infow("initialized ledger", "cash", portfolio.Cash.String(), "positions", len(positions))
	return portfolio.DeepCopy(), nil
}

func (h *ledgerServiceHandler) Portfolio() *domain.Portfolio {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.portfolio.DeepCopy()
}

func (h *ledgerServiceHandler) Position(symbol string) decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.portfolio.Positions[symbol]
	if !ok {
		return decimal.Zero
	}
	return p.Quantity
}

// Equity values positions at prices, falling back to average cost.
func (h *ledgerServiceHandler) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := h.portfolio.Cash
	for symbol, p := range h.portfolio.Positions {
		price, ok := prices[symbol]
		if !ok {
			price = p.AvgPrice
		}
		total = total.Add(p.Quantity.Mul(price))
	}
	return total
}
