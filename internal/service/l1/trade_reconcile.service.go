package l1_service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"github.com/shopspring/decimal"
)

type TradeReconcileService interface {
	// ReconcileTrades makes the local trades executed in [start, end) match
	// the broker's fill activity, then checks once more for drift.
	ReconcileTrades(ctx context.Context, start, end time.Time) (*ReconcileResult, error)
	// ValidatePositions compares local trade totals with broker positions.
	ValidatePositions(ctx context.Context) ([]PositionDrift, error)
}

type ReconcileResult struct {
	Inserted      int
	Deleted       int
	ResidualDrift int
}

// Err is non-nil when the verification pass still found differences.
func (r ReconcileResult) Err() error {
	if r.ResidualDrift == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d trades still differ after reconciliation", domain.ErrReconciliationDrift, r.ResidualDrift)
}

type PositionDrift struct {
	Symbol string
	Local  decimal.Decimal
	Broker decimal.Decimal
}

type TradeReconcileServiceInput struct {
	Broker          repository.BrokerRepository
	TradeRepository repository.TradeRepository
	Clock           util.Clock
	Account         string
	DaysToSettle    int
}

type tradeReconcileServiceHandler struct {
	Broker          repository.BrokerRepository
	TradeRepository repository.TradeRepository
	Clock           util.Clock
	Account         string
	DaysToSettle    int
}

func NewTradeReconcileService(in TradeReconcileServiceInput) TradeReconcileService {
	clock := in.Clock
	if clock == nil {
		clock = util.NewClock()
	}
	return tradeReconcileServiceHandler{
		Broker:          in.Broker,
		TradeRepository: in.TradeRepository,
		Clock:           clock,
		Account:         in.Account,
		DaysToSettle:    in.DaysToSettle,
	}
}

type tradeDiff struct {
	missing []domain.Trade
	extra   []domain.Trade
}

func (d tradeDiff) size() int {
	return len(d.missing) + len(d.extra)
}

func (h tradeReconcileServiceHandler) upstreamTrades(ctx context.Context, start, end time.Time) ([]domain.Trade, error) {
	fills, err := h.Broker.GetFillActivities(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to get broker fills: %w", err)
	}
	now := h.Clock.Now()
	out := []domain.Trade{}
	for _, t := range fills {
		if t.ExecutedAt.Before(start) || !t.ExecutedAt.Before(end) {
			continue
		}
		t.Account = h.Account
		t.SettlementDate = domain.SettlementDate(t.ExecutedAt, h.DaysToSettle)
		t.Settled = !t.SettlementDate.After(now)
		out = append(out, t)
	}
	return out, nil
}

func (h tradeReconcileServiceHandler) diff(ctx context.Context, start, end time.Time) (*tradeDiff, error) {
	upstream, err := h.upstreamTrades(ctx, start, end)
	if err != nil {
		return nil, err
	}
	local, err := h.TradeRepository.List(ctx, repository.TradeListFilter{
		Account:      &h.Account,
		ExecutedFrom: &start,
		ExecutedTo:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list local trades: %w", err)
	}

	pending := map[domain.TradeKey][]domain.Trade{}
	for _, t := range upstream {
		pending[t.Key()] = append(pending[t.Key()], t)
	}
	out := &tradeDiff{}
	for _, t := range local {
		k := t.Key()
		if len(pending[k]) == 0 {
			// duplicate, or not known upstream
			out.extra = append(out.extra, t)
			continue
		}
		pending[k] = pending[k][1:]
	}
	for _, trades := range pending {
		out.missing = append(out.missing, trades...)
	}
	sort.Slice(out.missing, func(i, j int) bool { return out.missing[i].ExecutedAt.Before(out.missing[j].ExecutedAt) })
	return out, nil
}

func (h tradeReconcileServiceHandler) ReconcileTrades(ctx context.Context, start, end time.Time) (*ReconcileResult, error) {
	log := logger.FromContext(ctx).With("start", start, "end", end)

	d, err := h.diff(ctx, start, end)
	if err != nil {
		return nil, err
	}
	result := &ReconcileResult{}
	for _, t := range d.extra {
		if err := h.TradeRepository.Delete(ctx, t.TradeID); err != nil {
			return nil, fmt.Errorf("failed to delete trade %s: %w", t.TradeID, err)
		}
		result.Deleted++
	}
	for _, t := range d.missing {
		if _, err := h.TradeRepository.Add(ctx, t); err != nil {
			return nil, fmt.Errorf("failed to insert trade %s: %w", t.ExternalID, err)
		}
		result.Inserted++
	}

	verify, err := h.diff(ctx, start, end)
	if err != nil {
		return nil, err
	}
	result.ResidualDrift = verify.size()
	if err := result.Err(); err != nil {
		log.Warnw("trade reconciliation did not converge", "error", err)
	}
	log.Infow("reconciled trades", "inserted", result.Inserted, "deleted", result.Deleted, "residual", result.ResidualDrift)
	return result, nil
}

func (h tradeReconcileServiceHandler) ValidatePositions(ctx context.Context) ([]PositionDrift, error) {
	trades, err := h.TradeRepository.List(ctx, repository.TradeListFilter{Account: &h.Account})
	if err != nil {
		return nil, fmt.Errorf("failed to list local trades: %w", err)
	}
	local := map[string]decimal.Decimal{}
	for _, t := range trades {
		if t.Side == domain.OrderSideBuy {
			local[t.Symbol] = local[t.Symbol].Add(t.Quantity)
		} else {
			local[t.Symbol] = local[t.Symbol].Sub(t.Quantity)
		}
	}

	positions, err := h.Broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get broker positions: %w", err)
	}
	broker := map[string]decimal.Decimal{}
	for _, p := range positions {
		broker[p.Symbol] = p.Quantity
	}

	symbols := map[string]bool{}
	for s := range local {
		symbols[s] = true
	}
	for s := range broker {
		symbols[s] = true
	}
	out := []PositionDrift{}
	for s := range symbols {
		if !local[s].Equal(broker[s]) {
			out = append(out, PositionDrift{Symbol: s, Local: local[s], Broker: broker[s]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	for _, d := range out {
		logger.FromContext(ctx).Warnw("position drift", "symbol", d.Symbol, "local", d.Local.String(), "broker", d.Broker.String())
	}
	return out, nil
}
