// Package domain defines the core types shared across the papertrade
// platform: orders, trades, bars, and trading signals.
package domain

import "time"

// Direction is the side of an order or trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Offset states whether an order opens a new position or closes an
// existing one.
type Offset string

const (
	OffsetOpen  Offset = "open"
	OffsetClose Offset = "close"
)

// Venue identifies the exchange an instrument trades on.
type Venue string

const (
	VenueSSE  Venue = "SSE"
	VenueSZSE Venue = "SZSE"
)

// OrderKind distinguishes limit orders from stop orders.
type OrderKind string

const (
	OrderKindLimit OrderKind = "limit"
	OrderKindStop  OrderKind = "stop"
)

// OrderStatus is the lifecycle state of an order. Transitions are
// monotonic: submitting → active → filled/cancelled/rejected. Orders in a
// terminal state are never mutated again.
type OrderStatus string

const (
	OrderStatusSubmitting OrderStatus = "submitting"
	OrderStatusActive     OrderStatus = "active"
	OrderStatusFilled     OrderStatus = "filled"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRejected   OrderStatus = "rejected"
)

// IsTerminal reports whether the status is final.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Order is a buy/sell instruction against a simulated account.
type Order struct {
	ID           string      `json:"order_id"`
	AccountID    string      `json:"account_id"`
	Symbol       string      `json:"symbol"`
	Venue        Venue       `json:"venue"`
	Direction    Direction   `json:"direction"`
	Offset       Offset      `json:"offset"`
	Kind         OrderKind   `json:"kind"`
	Price        float64     `json:"price"`
	Volume       int64       `json:"volume"`
	TradedVolume int64       `json:"traded_volume"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Trade is a fill produced by executing an order. Immutable once created.
type Trade struct {
	ID         string    `json:"trade_id"`
	OrderID    string    `json:"order_id"`
	AccountID  string    `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Venue      Venue     `json:"venue"`
	Direction  Direction `json:"direction"`
	Offset     Offset    `json:"offset"`
	Price      float64   `json:"price"`
	Volume     int64     `json:"volume"`
	Commission float64   `json:"commission"`
	Profit     float64   `json:"profit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Bar is a single OHLCV bar of historical market data.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// SignalType is the action a strategy recommends.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
)

// Signal is a trading recommendation emitted by a strategy.
type Signal struct {
	StrategyID string            `json:"strategy_id"`
	Symbol     string            `json:"symbol"`
	Type       SignalType        `json:"type"`
	Price      float64           `json:"price"`
	Strength   float64           `json:"strength"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
