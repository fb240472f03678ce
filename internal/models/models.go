// Package models provides domain models for the demo trading application.
package models

import (
	"strings"
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO" // F&O
	BFO Exchange = "BFO" // BSE F&O
	MCX Exchange = "MCX" // Commodity
)

// Action represents the side of an order.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ParseAction normalizes user input such as "buy" or "Sell".
func ParseAction(s string) Action {
	return Action(strings.ToUpper(strings.TrimSpace(s)))
}

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ParseOrderType normalizes user input such as "market".
func ParseOrderType(s string) OrderType {
	return OrderType(strings.ToUpper(strings.TrimSpace(s)))
}

// ProductType represents the instrument class an order trades.
type ProductType string

const (
	ProductCash    ProductType = "CASH"
	ProductFutures ProductType = "FUTURES"
	ProductOptions ProductType = "OPTIONS"
)

// ParseProduct normalizes user input, defaulting to cash.
func ParseProduct(s string) ProductType {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ProductCash
	}
	return ProductType(s)
}

// IsDerivative reports whether the product trades in the F&O segment.
func (p ProductType) IsDerivative() bool {
	return p == ProductFutures || p == ProductOptions
}

// Segment is a virtual sub-account bucket with its own balance.
type Segment string

const (
	SegmentCash   Segment = "cash"
	SegmentEquity Segment = "equity"
	SegmentFNO    Segment = "fno"
)

// Segments lists every segment in display order.
func Segments() []Segment {
	return []Segment{SegmentCash, SegmentEquity, SegmentFNO}
}

// ParseSegment normalizes user input, defaulting to cash.
func ParseSegment(s string) Segment {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SegmentCash
	}
	return Segment(s)
}

// Valid reports whether s is a known segment.
func (s Segment) Valid() bool {
	switch s {
	case SegmentCash, SegmentEquity, SegmentFNO:
		return true
	}
	return false
}

// SegmentFor returns the segment an order for the given product settles against.
func SegmentFor(p ProductType) Segment {
	if p.IsDerivative() {
		return SegmentFNO
	}
	return SegmentCash
}

// Instrument represents a tradeable instrument.
type Instrument struct {
	Token      uint32
	Symbol     string
	Name       string
	Exchange   Exchange
	Segment    string
	LotSize    int
	TickSize   float64
	Expiry     time.Time
	Strike     float64
	OptionType string // CE, PE or empty
	InstrType  string
}

// WatchItem is a symbol on the market watch list.
type WatchItem struct {
	Symbol   string    `json:"symbol"`
	Exchange Exchange  `json:"exchange"`
	AddedAt  time.Time `json:"added_at"`
}
