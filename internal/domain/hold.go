package domain

type SymbolHoldStatus string

const (
	HoldStart             SymbolHoldStatus = "START"
	HoldAll               SymbolHoldStatus = "HOLD_ALL"
	HoldSellOnly          SymbolHoldStatus = "SELL_ONLY"
	HoldBuyOnly           SymbolHoldStatus = "BUY_ONLY"
	HoldPostFillDelay     SymbolHoldStatus = "POST_FILL_DELAY"
	HoldPendingSettlement SymbolHoldStatus = "PENDING_SETTLEMENT"
	HoldClosedForDay      SymbolHoldStatus = "CLOSED_FOR_DAY"
)

func (s SymbolHoldStatus) CanBuy() bool {
	return s == HoldStart || s == HoldBuyOnly
}

func (s SymbolHoldStatus) CanSell() bool {
	return s == HoldStart || s == HoldSellOnly
}

// IsDone reports whether nothing more can happen for the symbol today.
func (s SymbolHoldStatus) IsDone() bool {
	return s == HoldPendingSettlement || s == HoldClosedForDay
}
