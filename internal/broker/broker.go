// Package broker provides market data sources for the demo trading engine:
// last traded prices and instrument metadata such as lot sizes.
package broker

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"demo-trader/internal/models"
)

// QuoteSource returns the last traded price of a symbol.
type QuoteSource interface {
	LTP(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error)
}

// InstrumentLookup resolves an instrument so its lot size can be enforced.
type InstrumentLookup interface {
	Lookup(ctx context.Context, q InstrumentQuery) (*models.Instrument, error)
}

// InstrumentQuery identifies an instrument. Derivative fields are optional.
type InstrumentQuery struct {
	Symbol     string
	Exchange   models.Exchange
	Product    models.ProductType
	Expiry     *time.Time
	Strike     *decimal.Decimal
	OptionType string
}

// Key returns the canonical EXCHANGE:SYMBOL key.
func Key(exchange models.Exchange, symbol string) string {
	return strings.ToUpper(string(exchange)) + ":" + strings.ToUpper(symbol)
}

// QuoteFunc adapts a function to QuoteSource.
type QuoteFunc func(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error)

// LTP calls f.
func (f QuoteFunc) LTP(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error) {
	return f(ctx, exchange, symbol)
}
