package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a simulated order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderExecuted  OrderStatus = "EXECUTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderExecuted || s == OrderCancelled
}

// Order represents a simulated trading order.
type Order struct {
	ID             string           `json:"order_id"`
	Symbol         string           `json:"symbol"`
	Exchange       Exchange         `json:"exchange"`
	Product        ProductType      `json:"product"`
	Action         Action           `json:"action"`
	Type           OrderType        `json:"order_type"`
	Quantity       int              `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	Status         OrderStatus      `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	ExecutedAt     *time.Time       `json:"executed_at,omitempty"`
	ExecutionPrice *decimal.Decimal `json:"execution_price,omitempty"`
	Expiry         *time.Time       `json:"expiry,omitempty"`
	Strike         *decimal.Decimal `json:"strike,omitempty"`
	OptionType     string           `json:"option_type,omitempty"`
	Remarks        string           `json:"remarks,omitempty"`
}

// Segment returns the segment the order settles against.
func (o *Order) Segment() Segment {
	return SegmentFor(o.Product)
}

// TotalAmount returns quantity times the execution price, or times the
// limit price while the order has not executed.
func (o *Order) TotalAmount() decimal.Decimal {
	price := o.Price
	if o.ExecutionPrice != nil {
		price = *o.ExecutionPrice
	}
	return price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// OrderResult is returned by order placement.
type OrderResult struct {
	OrderID        string           `json:"order_id"`
	Status         OrderStatus      `json:"status"`
	ExecutionPrice *decimal.Decimal `json:"execution_price,omitempty"`
	PriceSource    string           `json:"price_source,omitempty"` // quote, submitted
	Message        string           `json:"message"`
}

// Holding represents an aggregated position in one symbol.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Exchange      Exchange        `json:"exchange"`
	Quantity      int             `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Stale         bool            `json:"stale"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Key identifies the holding.
func (h Holding) Key() string {
	return string(h.Exchange) + ":" + h.Symbol
}

// InvestedValue is the cost basis of the position.
func (h Holding) InvestedValue() decimal.Decimal {
	return h.AveragePrice.Mul(decimal.NewFromInt(int64(h.Quantity)))
}

// PortfolioSummary aggregates funds and holdings.
type PortfolioSummary struct {
	Funds              Funds           `json:"funds"`
	HoldingsValue      decimal.Decimal `json:"holdings_value"`
	InvestedValue      decimal.Decimal `json:"invested_value"`
	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
	NetWorth           decimal.Decimal `json:"net_worth"`
	HoldingsCount      int             `json:"holdings_count"`
	PendingOrders      int             `json:"pending_orders"`
	Timestamp          time.Time       `json:"timestamp"`
}
