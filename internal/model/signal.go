package model

import "time"

// Action is the side of an order intent.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Reason tags why the strategy issued an order.
type Reason string

const (
	ReasonEntry       Reason = "entry"
	ReasonPartialTrim Reason = "partial-trim"
	ReasonTrendExit   Reason = "trend-exit"
	ReasonStopLoss    Reason = "stop-loss"
)

// OrderIntent is emitted by the strategy and consumed by an execution sink.
type OrderIntent struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Action Action    `json:"action"`
	Size   float64   `json:"size"`
	Price  float64   `json:"price"` // reference close, not a limit
	Reason Reason    `json:"reason"`
}

// OrderStatus follows submit -> {accepted, rejected, canceled} -> {filled, partially-filled, expired}.
type OrderStatus string

const (
	StatusAccepted        OrderStatus = "accepted"
	StatusRejected        OrderStatus = "rejected"
	StatusCanceled        OrderStatus = "canceled"
	StatusPartiallyFilled OrderStatus = "partially-filled"
	StatusFilled          OrderStatus = "filled"
	StatusExpired         OrderStatus = "expired"
)

// Terminal reports whether no further results will follow for the order.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusCanceled, StatusFilled, StatusExpired:
		return true
	}
	return false
}

// OrderResult is reported back by the execution sink.
type OrderResult struct {
	OrderID    string      `json:"order_id"`
	Status     OrderStatus `json:"status"`
	Action     Action      `json:"action"`
	FilledSize float64     `json:"filled_size"` // size of this fill only
	FillPrice  float64     `json:"fill_price"`
	Date       time.Time   `json:"date"`
	Message    string      `json:"message,omitempty"`
}
