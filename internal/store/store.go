// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"demo-trader/internal/models"
)

// DataStore defines the interface for demo account persistence.
// Mutations happen inside WithTx so that an order, its ledger entry, the
// segment balance and the holding are committed together.
type DataStore interface {
	WithTx(ctx context.Context, fn func(tx *Tx) error) error
	View(ctx context.Context, fn func(tx *Tx) error) error
	Close() error
}

// OrderFilter represents filters for querying orders.
type OrderFilter struct {
	Status   models.OrderStatus
	Symbol   string
	Exchange models.Exchange
	Action   models.Action
	From     time.Time
	To       time.Time
	Limit    int
}

// LedgerFilter represents filters for querying ledger entries.
type LedgerFilter struct {
	Segment models.Segment
	Symbol  string
	Type    models.TransactionType
	OrderID string
	From    time.Time
	To      time.Time
	Limit   int
}

// System flag names.
const (
	FlagFundsSeeded     = "funds_seeded"
	FlagWatchlistSeeded = "market_watch_seeded"
)

var _ DataStore = (*SQLiteStore)(nil)
