package demo

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
)

// Exportable tables.
const (
	TableOrders   = "orders"
	TableHoldings = "holdings"
	TableLedger   = "ledger"
)

// Tables lists the exportable tables.
func Tables() []string {
	return []string{TableOrders, TableHoldings, TableLedger}
}

type orderRow struct {
	OrderID     string `csv:"order_id"`
	Symbol      string `csv:"symbol"`
	Action      string `csv:"action"`
	Quantity    string `csv:"quantity"`
	Price       string `csv:"price"`
	TotalAmount string `csv:"total_amount"`
	Status      string `csv:"status"`
	Timestamp   string `csv:"timestamp"`
}

type holdingRow struct {
	Symbol        string `csv:"symbol"`
	Exchange      string `csv:"exchange"`
	Quantity      string `csv:"quantity"`
	AveragePrice  string `csv:"average_price"`
	CurrentPrice  string `csv:"current_price"`
	MarketValue   string `csv:"market_value"`
	UnrealizedPnL string `csv:"unrealized_pnl"`
	Stale         string `csv:"stale"`
}

type ledgerRow struct {
	TransactionID string `csv:"transaction_id"`
	Type          string `csv:"transaction_type"`
	OrderID       string `csv:"order_id"`
	Symbol        string `csv:"symbol"`
	Exchange      string `csv:"exchange"`
	Action        string `csv:"action"`
	Quantity      string `csv:"quantity"`
	Price         string `csv:"price"`
	TotalAmount   string `csv:"total_amount"`
	Segment       string `csv:"segment"`
	Status        string `csv:"status"`
	Timestamp     string `csv:"timestamp"`
	Remarks       string `csv:"remarks"`
}

// Export renders a table as CSV text with a header row. Orders are written
// oldest first; the order price is the execution price once executed.
func (s *Service) Export(ctx context.Context, table string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(table)) {
	case TableOrders:
		orders, err := s.Orders(ctx, OrderQuery{})
		if err != nil {
			return "", err
		}
		rows := make([]*orderRow, 0, len(orders))
		for i := len(orders) - 1; i >= 0; i-- {
			rows = append(rows, newOrderRow(orders[i]))
		}
		return marshalCSV(&rows)

	case TableHoldings:
		holdings, err := s.Holdings(ctx)
		if err != nil {
			return "", err
		}
		rows := make([]*holdingRow, 0, len(holdings))
		for _, h := range holdings {
			rows = append(rows, &holdingRow{
				Symbol:        h.Symbol,
				Exchange:      string(h.Exchange),
				Quantity:      strconv.Itoa(h.Quantity),
				AveragePrice:  h.AveragePrice.StringFixed(2),
				CurrentPrice:  h.CurrentPrice.StringFixed(2),
				MarketValue:   h.MarketValue.StringFixed(2),
				UnrealizedPnL: h.UnrealizedPnL.StringFixed(2),
				Stale:         strconv.FormatBool(h.Stale),
			})
		}
		return marshalCSV(&rows)

	case TableLedger:
		entries, err := s.Ledger(ctx, LedgerQuery{})
		if err != nil {
			return "", err
		}
		rows := make([]*ledgerRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, &ledgerRow{
				TransactionID: e.TransactionID,
				Type:          string(e.Type),
				OrderID:       e.OrderID,
				Symbol:        e.Symbol,
				Exchange:      string(e.Exchange),
				Action:        string(e.Action),
				Quantity:      strconv.Itoa(e.Quantity),
				Price:         e.Price.StringFixed(2),
				TotalAmount:   e.Amount.StringFixed(2),
				Segment:       string(e.Segment),
				Status:        e.Status,
				Timestamp:     e.Timestamp.UTC().Format(time.RFC3339),
				Remarks:       e.Remarks,
			})
		}
		return marshalCSV(&rows)
	}

	return "", apperrors.NewValidationError("table", table, "must be one of "+strings.Join(Tables(), ", "))
}

func newOrderRow(o models.Order) *orderRow {
	price := o.Price
	if o.ExecutionPrice != nil {
		price = *o.ExecutionPrice
	}
	return &orderRow{
		OrderID:     o.ID,
		Symbol:      o.Symbol,
		Action:      string(o.Action),
		Quantity:    strconv.Itoa(o.Quantity),
		Price:       price.StringFixed(2),
		TotalAmount: o.TotalAmount().StringFixed(2),
		Status:      string(o.Status),
		Timestamp:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func marshalCSV(rows interface{}) (string, error) {
	out, err := gocsv.MarshalString(rows)
	if err != nil {
		return "", apperrors.Wrap(err, "encode csv")
	}
	return out, nil
}
