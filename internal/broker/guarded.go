package broker

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
	"demo-trader/internal/resilience"
)

// GuardedQuotes wraps a QuoteSource with a circuit breaker so a failing
// feed is skipped quickly instead of costing a full timeout per lookup.
type GuardedQuotes struct {
	src QuoteSource
	cb  *resilience.CircuitBreaker
}

// NewGuardedQuotes creates a guarded quote source.
func NewGuardedQuotes(src QuoteSource, cb *resilience.CircuitBreaker) *GuardedQuotes {
	if cb == nil {
		cb = resilience.NewCircuitBreaker("quotes", resilience.DefaultCircuitBreakerConfig())
	}
	return &GuardedQuotes{src: src, cb: cb}
}

// LTP returns the wrapped source's price, or ErrQuoteUnavailable when the
// circuit is open, the call fails or ctx expires.
func (g *GuardedQuotes) LTP(ctx context.Context, exchange models.Exchange, symbol string) (decimal.Decimal, error) {
	p, err := resilience.Call(ctx, g.cb, func(ctx context.Context) (decimal.Decimal, error) {
		return g.src.LTP(ctx, exchange, symbol)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrQuoteUnavailable) {
			return decimal.Zero, err
		}
		return decimal.Zero, apperrors.NewDataError("quote", symbol, err.Error(), apperrors.ErrQuoteUnavailable)
	}
	return p, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedQuotes) Breaker() *resilience.CircuitBreaker {
	return g.cb
}
