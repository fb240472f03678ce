package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
	"demo-trader/internal/store"
)

// Ledger entry statuses.
const (
	EntryExecuted  = "EXECUTED"
	EntryCompleted = "COMPLETED"
)

const idTimeLayout = "20060102150405"

// newID returns PREFIX_<yyyymmddhhmmss>_<8 hex chars>.
func newID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", prefix, now.Format(idTimeLayout), uuid.NewString()[:8])
}

func newOrderID(now time.Time) string {
	return newID("DEMO", now)
}

func executionTxnID(orderID string) string {
	return orderID + "_EXEC"
}

// appendEntry persists an immutable ledger entry, filling in the
// transaction id, timestamp and status when they are absent.
func appendEntry(ctx context.Context, tx *store.Tx, e *models.LedgerEntry, now time.Time) error {
	if !e.Segment.Valid() {
		return apperrors.NewValidationError("segment", e.Segment, "unknown segment")
	}
	if e.Amount.IsZero() {
		return apperrors.NewValidationError("amount", e.Amount.String(), "must be non-zero")
	}
	if e.TransactionID == "" {
		e.TransactionID = newID("MANUAL", now)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Status == "" {
		e.Status = EntryCompleted
	}
	return tx.AppendLedger(ctx, e)
}

// post appends e and applies it to its segment balance inside tx. It is the
// only path that changes a balance, so an entry never exists without its
// balance update and vice versa.
func post(ctx context.Context, tx *store.Tx, e *models.LedgerEntry, now time.Time) (decimal.Decimal, error) {
	if err := appendEntry(ctx, tx, e, now); err != nil {
		return decimal.Zero, err
	}
	return applyEntry(ctx, tx, *e)
}

// LedgerQuery filters ledger listings. Zero fields match everything.
type LedgerQuery struct {
	Segment string `json:"segment" form:"segment" validate:"omitempty,oneof=cash equity fno"`
	Symbol  string `json:"symbol" form:"symbol"`
	Type    string `json:"type" form:"type" validate:"omitempty,oneof=ORDER_EXECUTED MANUAL_CREDIT MANUAL_DEBIT MANUAL_ADJUSTMENT"`
	OrderID string `json:"order_id" form:"order_id"`
	Limit   int    `json:"limit" form:"limit" validate:"gte=0,lte=10000"`
}

func (q LedgerQuery) normalize() LedgerQuery {
	q.Segment = strings.ToLower(strings.TrimSpace(q.Segment))
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	q.Type = strings.ToUpper(strings.TrimSpace(q.Type))
	return q
}

func (q LedgerQuery) filter() store.LedgerFilter {
	return store.LedgerFilter{
		Segment: models.Segment(q.Segment),
		Symbol:  q.Symbol,
		Type:    models.TransactionType(q.Type),
		OrderID: q.OrderID,
		Limit:   q.Limit,
	}
}

// Ledger returns ledger entries in chronological order.
func (s *Service) Ledger(ctx context.Context, q LedgerQuery) ([]models.LedgerEntry, error) {
	q = q.normalize()
	if err := s.validateStruct(q); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []models.LedgerEntry
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = tx.ListLedger(ctx, q.filter())
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list ledger")
	}
	return entries, nil
}
