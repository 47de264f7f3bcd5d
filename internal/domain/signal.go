package domain

import (
	"fmt"
	"sort"
	"time"
)

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

const (
	ColEntrySignal = "ENTRY_SIGNAL"
	ColExitSignal  = "EXIT_SIGNAL"
)

// SignalFrame is a frame with an entry and exit signal per row.
type SignalFrame struct {
	Frame *Frame
	Entry []Signal
	Exit  []Signal
}

func NewSignalFrame(f *Frame) *SignalFrame {
	n := f.Len()
	sf := &SignalFrame{
		Frame: f,
		Entry: make([]Signal, n),
		Exit:  make([]Signal, n),
	}
	for i := 0; i < n; i++ {
		sf.Entry[i] = SignalHold
		sf.Exit[i] = SignalHold
	}
	return sf
}

func (s *SignalFrame) Len() int {
	return len(s.Entry)
}

func (s *SignalFrame) Signals(i int) map[string]Signal {
	return map[string]Signal{
		ColEntrySignal: s.Entry[i],
		ColExitSignal:  s.Exit[i],
	}
}

// EnrichedBar is one bar plus its derived feature columns.
type EnrichedBar struct {
	Bar
	Features map[string]float64 `json:"features"`
}

// Value looks a column up by name, raw bar columns included.
func (e EnrichedBar) Value(name string) (float64, bool) {
	switch name {
	case ColOpen:
		return e.Open, true
	case ColHigh:
		return e.High, true
	case ColLow:
		return e.Low, true
	case ColClose:
		return e.Close, true
	case ColVolume:
		return e.Volume, true
	case ColNumTrades:
		return e.NumTrades, true
	case ColVwap:
		return e.Vwap, true
	}
	v, ok := e.Features[name]
	return v, ok
}

// FrameFromEnrichedBars rebuilds a frame from rows; feature columns are taken
// from the first row.
func FrameFromEnrichedBars(symbol string, rows []EnrichedBar) (*Frame, error) {
	bars := make([]Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.Bar
	}
	f := FrameFromBars(symbol, bars)
	if len(rows) == 0 {
		return f, nil
	}
	names := make([]string, 0, len(rows[0].Features))
	for name := range rows[0].Features {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		col := make([]float64, len(rows))
		for i, r := range rows {
			v, ok := r.Features[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s missing at %s", ErrMissingInputColumn, name, r.Timestamp.Format(time.RFC3339))
			}
			col[i] = v
		}
		if err := f.SetColumn(name, col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// SignalDataPayload is what the signal generator publishes per symbol.
type SignalDataPayload struct {
	Symbol    string            `json:"symbol"`
	Signals   map[string]Signal `json:"signals"`
	PriceData EnrichedBar       `json:"price_data"`
}

func (p SignalDataPayload) Entry() Signal {
	if s, ok := p.Signals[ColEntrySignal]; ok {
		return s
	}
	return SignalHold
}

func (p SignalDataPayload) Exit() Signal {
	if s, ok := p.Signals[ColExitSignal]; ok {
		return s
	}
	return SignalHold
}

// SignalOrderPayload asks the order executor to move a symbol towards a
// portfolio weight.
type SignalOrderPayload struct {
	Symbol    string      `json:"symbol"`
	Side      OrderSide   `json:"side"`
	Weight    float64     `json:"weight"`
	PriceData EnrichedBar `json:"price_data"`
}

// StreamBar and StreamQuote are the normalized broker stream events.
type StreamBar struct {
	Bar
}

type StreamQuote struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	BidSize   float64   `json:"bid_size"`
	AskPrice  float64   `json:"ask_price"`
	AskSize   float64   `json:"ask_size"`
	Timestamp time.Time `json:"timestamp"`
}

func (q StreamQuote) Mid() float64 {
	return (q.BidPrice + q.AskPrice) / 2
}
