package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Position is derived from settled trades. There is at most one per
// (symbol, account).
type Position struct {
	Symbol   string          `json:"symbol"`
	Account  string          `json:"account"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

func (p Position) DeepCopy() *Position {
	return &Position{
		Symbol:   p.Symbol,
		Account:  p.Account,
		Quantity: p.Quantity,
		AvgPrice: p.AvgPrice,
	}
}

// Apply folds a trade into the position. Sells keep the average price.
func (p *Position) Apply(t Trade) {
	switch t.Side {
	case OrderSideBuy:
		total := p.Quantity.Add(t.Quantity)
		if total.IsZero() {
			p.AvgPrice = decimal.Zero
		} else {
			p.AvgPrice = p.Quantity.Mul(p.AvgPrice).Add(t.Quantity.Mul(t.Price)).Div(total)
		}
		p.Quantity = total
	case OrderSideSell:
		p.Quantity = p.Quantity.Sub(t.Quantity)
		if p.Quantity.LessThanOrEqual(decimal.Zero) {
			p.Quantity = decimal.Zero
			p.AvgPrice = decimal.Zero
		}
	}
}

// PositionsFromTrades rebuilds positions for one account from its settled trades.
func PositionsFromTrades(account string, trades []Trade) map[string]*Position {
	positions := map[string]*Position{}
	for _, t := range trades {
		if !t.Settled {
			continue
		}
		p, ok := positions[t.Symbol]
		if !ok {
			p = &Position{Symbol: t.Symbol, Account: account}
			positions[t.Symbol] = p
		}
		p.Apply(t)
	}
	for symbol, p := range positions {
		if p.Quantity.IsZero() {
			delete(positions, symbol)
		}
	}
	return positions
}

type Portfolio struct {
	Positions map[string]*Position
	Cash      decimal.Decimal
}

func NewPortfolio() *Portfolio {
	return &Portfolio{
		Positions: map[string]*Position{},
		Cash:      decimal.Zero,
	}
}

// HeldSymbols is sorted.
func (p Portfolio) HeldSymbols() []string {
	symbols := make([]string, 0, len(p.Positions))
	for symbol := range p.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (p Portfolio) DeepCopy() *Portfolio {
	out := &Portfolio{
		Cash:      p.Cash,
		Positions: map[string]*Position{},
	}
	for symbol, position := range p.Positions {
		out.Positions[symbol] = position.DeepCopy()
	}
	return out
}
