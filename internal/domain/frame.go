package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// raw bar columns, in the order they are written to disk
const (
	ColOpen      = "open"
	ColHigh      = "high"
	ColLow       = "low"
	ColClose     = "close"
	ColVolume    = "volume"
	ColNumTrades = "num_trades"
	ColVwap      = "vwap"
)

var BarColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColNumTrades, ColVwap}

// Unavailable marks a value whose window is not filled yet.
var Unavailable = math.NaN()

func IsUnavailable(v float64) bool {
	return math.IsNaN(v)
}

// Bar is a single OHLCV observation.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	NumTrades float64   `json:"num_trades"`
	Vwap      float64   `json:"vwap"`
}

func (b Bar) values() []float64 {
	return []float64{b.Open, b.High, b.Low, b.Close, b.Volume, b.NumTrades, b.Vwap}
}

// Frame is a columnar table of rows for a single symbol (or an asset matrix,
// where each column is a symbol). Columns keep insertion order.
type Frame struct {
	Symbol     string
	Timestamps []time.Time
	// Lookback is the number of rows the producer of this frame needs
	// before every column is available.
	Lookback int

	columns map[string][]float64
	order   []string
}

func NewFrame(symbol string, timestamps []time.Time) *Frame {
	ts := make([]time.Time, len(timestamps))
	copy(ts, timestamps)
	return &Frame{
		Symbol:     symbol,
		Timestamps: ts,
		columns:    map[string][]float64{},
	}
}

func FrameFromBars(symbol string, bars []Bar) *Frame {
	ts := make([]time.Time, len(bars))
	cols := make([][]float64, len(BarColumns))
	for i := range cols {
		cols[i] = make([]float64, len(bars))
	}
	for i, b := range bars {
		ts[i] = b.Timestamp
		for j, v := range b.values() {
			cols[j][i] = v
		}
	}
	f := NewFrame(symbol, ts)
	for j, name := range BarColumns {
		f.columns[name] = cols[j]
		f.order = append(f.order, name)
	}
	return f
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Timestamps)
}

func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.columns[name]
	return c, ok
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// SetColumn adds or replaces a column. The frame keeps the slice it is given.
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != len(f.Timestamps) {
		return fmt.Errorf("column %s has %d rows, frame has %d", name, len(values), len(f.Timestamps))
	}
	if _, ok := f.columns[name]; !ok {
		f.order = append(f.order, name)
	}
	f.columns[name] = values
	return nil
}

// Require checks that every named column is present.
func (f *Frame) Require(names ...string) error {
	for _, name := range names {
		if name == "timestamp" {
			continue
		}
		if name == "symbol" {
			if f.Symbol == "" {
				return fmt.Errorf("%w: symbol", ErrMissingInputColumn)
			}
			continue
		}
		if !f.HasColumn(name) {
			return fmt.Errorf("%w: %s", ErrMissingInputColumn, name)
		}
	}
	return nil
}

// ValidateMonotonic fails unless timestamps are strictly ascending.
func (f *Frame) ValidateMonotonic() error {
	for i := 1; i < len(f.Timestamps); i++ {
		if !f.Timestamps[i].After(f.Timestamps[i-1]) {
			return fmt.Errorf("%w: row %d (%s) is not after row %d (%s)",
				ErrNonMonotonicTimestamp, i, f.Timestamps[i].Format(time.RFC3339), i-1, f.Timestamps[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

func (f *Frame) Clone() *Frame {
	return f.Slice(0, f.Len())
}

// Slice copies rows [lo, hi).
func (f *Frame) Slice(lo, hi int) *Frame {
	if lo < 0 {
		lo = 0
	}
	if hi > f.Len() {
		hi = f.Len()
	}
	if hi < lo {
		hi = lo
	}
	out := NewFrame(f.Symbol, f.Timestamps[lo:hi])
	out.Lookback = f.Lookback
	for _, name := range f.order {
		c := make([]float64, hi-lo)
		copy(c, f.columns[name][lo:hi])
		out.columns[name] = c
		out.order = append(out.order, name)
	}
	return out
}

// Between returns a copy of the rows with start <= timestamp < end.
func (f *Frame) Between(start, end time.Time) *Frame {
	lo := sort.Search(f.Len(), func(i int) bool { return !f.Timestamps[i].Before(start) })
	hi := sort.Search(f.Len(), func(i int) bool { return !f.Timestamps[i].Before(end) })
	return f.Slice(lo, hi)
}

func (f *Frame) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(f.order))
	for _, name := range f.order {
		row[name] = f.columns[name][i]
	}
	return row
}

func (f *Frame) Rename(renames map[string]string) {
	for from, to := range renames {
		c, ok := f.columns[from]
		if !ok || f.HasColumn(to) {
			continue
		}
		delete(f.columns, from)
		f.columns[to] = c
		for i, name := range f.order {
			if name == from {
				f.order[i] = to
			}
		}
	}
}

func (f *Frame) Bar(i int) Bar {
	get := func(name string) float64 {
		if c, ok := f.columns[name]; ok {
			return c[i]
		}
		return Unavailable
	}
	return Bar{
		Timestamp: f.Timestamps[i],
		Symbol:    f.Symbol,
		Open:      get(ColOpen),
		High:      get(ColHigh),
		Low:       get(ColLow),
		Close:     get(ColClose),
		Volume:    get(ColVolume),
		NumTrades: get(ColNumTrades),
		Vwap:      get(ColVwap),
	}
}

func (f *Frame) Bars() []Bar {
	out := make([]Bar, f.Len())
	for i := range out {
		out[i] = f.Bar(i)
	}
	return out
}

// EnrichedBar returns row i with every non-raw column as a feature.
func (f *Frame) EnrichedBar(i int) EnrichedBar {
	features := map[string]float64{}
	for _, name := range f.order {
		if isBarColumn(name) {
			continue
		}
		features[name] = f.columns[name][i]
	}
	return EnrichedBar{Bar: f.Bar(i), Features: features}
}

func isBarColumn(name string) bool {
	for _, c := range BarColumns {
		if c == name {
			return true
		}
	}
	return false
}

// ConcatFrames stitches frames of the same symbol into one ascending frame.
// Frames are ordered by their first timestamp and rows with a timestamp
// already seen are dropped.
func ConcatFrames(frames ...*Frame) (*Frame, error) {
	nonEmpty := []*Frame{}
	for _, f := range frames {
		if f.Len() > 0 {
			nonEmpty = append(nonEmpty, f)
		}
	}
	if len(nonEmpty) == 0 {
		if len(frames) > 0 && frames[0] != nil {
			return frames[0].Clone(), nil
		}
		return nil, ErrEmptyFrame
	}
	sort.SliceStable(nonEmpty, func(i, j int) bool {
		return nonEmpty[i].Timestamps[0].Before(nonEmpty[j].Timestamps[0])
	})

	first := nonEmpty[0]
	out := NewFrame(first.Symbol, nil)
	out.Lookback = first.Lookback
	for _, name := range first.order {
		out.columns[name] = []float64{}
		out.order = append(out.order, name)
	}

	for _, f := range nonEmpty {
		for _, name := range out.order {
			if !f.HasColumn(name) {
				return nil, fmt.Errorf("%w: %s missing from page starting %s", ErrMissingInputColumn, name, f.Timestamps[0].Format(time.RFC3339))
			}
		}
		for i, ts := range f.Timestamps {
			if n := len(out.Timestamps); n > 0 && !ts.After(out.Timestamps[n-1]) {
				continue
			}
			out.Timestamps = append(out.Timestamps, ts)
			for _, name := range out.order {
				out.columns[name] = append(out.columns[name], f.columns[name][i])
			}
		}
	}
	return out, nil
}
