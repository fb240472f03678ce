package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
)

// QuoteBook is an in-memory price table used when no live broker is
// configured. Prices are keyed by EXCHANGE:SYMBOL, with a bare SYMBOL entry
// matching any exchange.
type QuoteBook struct {
	prices map[string]decimal.Decimal
	mu     sync.RWMutex
}

// NewQuoteBook creates a quote book seeded with the given prices.
func NewQuoteBook(seed map[string]float64) *QuoteBook {
	qb := &QuoteBook{prices: make(map[string]decimal.Decimal, len(seed))}
	for k, v := range seed {
		qb.prices[strings.ToUpper(k)] = decimal.NewFromFloat(v)
	}
	return qb
}

// UpdatePrice sets the price for a symbol on an exchange.
func (q *QuoteBook) UpdatePrice(exchange models.Exchange, symbol string, price decimal.Decimal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[Key(exchange, symbol)] = price
}

// Remove deletes a price.
func (q *QuoteBook) Remove(exchange models.Exchange, symbol string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.prices, Key(exchange, symbol))
	delete(q.prices, strings.ToUpper(symbol))
}

// LTP returns the stored price.
func (q *QuoteBook) LTP(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if p, ok := q.prices[Key(exchange, symbol)]; ok {
		return p, nil
	}
	if p, ok := q.prices[strings.ToUpper(symbol)]; ok {
		return p, nil
	}
	return decimal.Zero, apperrors.NewDataError("quote", symbol, fmt.Sprintf("no price on %s", exchange), apperrors.ErrQuoteUnavailable)
}

// Len returns the number of stored prices.
func (q *QuoteBook) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.prices)
}

// QuoteChain tries each source in order and returns the first price found.
type QuoteChain []QuoteSource

// LTP returns the first successful quote.
func (c QuoteChain) LTP(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error) {
	lastErr := apperrors.NewDataError("quote", symbol, "no quote source configured", apperrors.ErrQuoteUnavailable)
	for _, src := range c {
		if src == nil {
			continue
		}
		p, err := src.LTP(ctx, exchange, symbol)
		if err == nil && p.IsPositive() {
			return p, nil
		}
		if err != nil {
			lastErr = apperrors.NewDataError("quote", symbol, err.Error(), apperrors.ErrQuoteUnavailable)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return decimal.Zero, lastErr
}
