package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxnOrderExecuted    TransactionType = "ORDER_EXECUTED"
	TxnManualCredit     TransactionType = "MANUAL_CREDIT"
	TxnManualDebit      TransactionType = "MANUAL_DEBIT"
	TxnManualAdjustment TransactionType = "MANUAL_ADJUSTMENT"
)

// LedgerEntry is an immutable record of a balance-affecting event.
// Amount is signed: positive for inflows, negative for outflows.
type LedgerEntry struct {
	Seq           int64           `json:"seq"`
	TransactionID string          `json:"transaction_id"`
	Type          TransactionType `json:"transaction_type"`
	OrderID       string          `json:"order_id,omitempty"`
	Symbol        string          `json:"symbol,omitempty"`
	Exchange      Exchange        `json:"exchange,omitempty"`
	Action        Action          `json:"action,omitempty"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Amount        decimal.Decimal `json:"total_amount"`
	Segment       Segment         `json:"segment"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	Remarks       string          `json:"remarks,omitempty"`
}

// IsCredit reports whether the entry increases the segment balance.
func (e LedgerEntry) IsCredit() bool {
	return e.Amount.IsPositive()
}

// Funds holds the current virtual balance of every segment.
type Funds struct {
	Cash      decimal.Decimal `json:"cash_balance"`
	Equity    decimal.Decimal `json:"equity_balance"`
	FNO       decimal.Decimal `json:"fno_balance"`
	Total     decimal.Decimal `json:"total_balance"`
	Seed      decimal.Decimal `json:"seed_cash"`
	UpdatedAt time.Time       `json:"last_updated"`
}

// Balance returns the balance of a segment.
func (f Funds) Balance(s Segment) decimal.Decimal {
	switch s {
	case SegmentCash:
		return f.Cash
	case SegmentEquity:
		return f.Equity
	case SegmentFNO:
		return f.FNO
	}
	return decimal.Zero
}

// WithBalance returns a copy of f with the segment set and Total recomputed.
func (f Funds) WithBalance(s Segment, v decimal.Decimal) Funds {
	switch s {
	case SegmentCash:
		f.Cash = v
	case SegmentEquity:
		f.Equity = v
	case SegmentFNO:
		f.FNO = v
	}
	f.Total = f.Cash.Add(f.Equity).Add(f.FNO)
	return f
}
