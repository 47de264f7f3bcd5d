package domain

import (
	"time"

	"github.com/google/uuid"
)

type StreamType string

const (
	StreamTypeBars   StreamType = "bars"
	StreamTypeQuotes StreamType = "quotes"
)

// DataStreamSession records how long an upstream market data subscription
// for a symbol was open.
type DataStreamSession struct {
	SessionID  uuid.UUID  `json:"session_id"`
	Symbol     string     `json:"symbol"`
	StreamType StreamType `json:"stream_type"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Account is the broker's view of buying power.
type Account struct {
	AccountID   string  `json:"account_id"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
	Equity      float64 `json:"equity"`
}
