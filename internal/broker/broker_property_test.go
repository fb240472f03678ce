package broker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"demo-trader/internal/models"
)

// Property: an exchange-qualified price always wins over a bare symbol price,
// and symbol case never changes which price is returned.
func TestProperty_QuoteBookPrefersExchangePrice(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	exchanges := []models.Exchange{models.NSE, models.BSE, models.NFO, models.BFO, models.MCX}

	properties.Property("exchange price shadows bare symbol price", prop.ForAll(
		func(symbol string, exIdx int, bare, qualified int64) bool {
			ex := exchanges[exIdx]
			qb := NewQuoteBook(map[string]float64{strings.ToLower(symbol): float64(bare)})
			ctx := context.Background()

			p, err := qb.LTP(ctx, ex, symbol)
			if err != nil || !p.Equal(decimal.NewFromInt(bare)) {
				return false
			}

			qb.UpdatePrice(ex, strings.ToLower(symbol), decimal.NewFromInt(qualified))
			p, err = qb.LTP(ctx, ex, strings.ToUpper(symbol))
			if err != nil || !p.Equal(decimal.NewFromInt(qualified)) {
				return false
			}

			other := exchanges[(exIdx+1)%len(exchanges)]
			p, err = qb.LTP(ctx, other, symbol)
			return err == nil && p.Equal(decimal.NewFromInt(bare))
		},
		gen.Identifier(),
		gen.IntRange(0, len(exchanges)-1),
		gen.Int64Range(1, 1000000),
		gen.Int64Range(1, 1000000),
	))

	properties.Property("chain returns the first positive price", prop.ForAll(
		func(first, second int64) bool {
			chain := QuoteChain{
				NewQuoteBook(map[string]float64{"SBIN": float64(first)}),
				NewQuoteBook(map[string]float64{"SBIN": float64(second)}),
			}
			p, err := chain.LTP(context.Background(), models.NSE, "SBIN")
			if err != nil {
				return false
			}
			if first > 0 {
				return p.Equal(decimal.NewFromInt(first))
			}
			return p.Equal(decimal.NewFromInt(second))
		},
		gen.Int64Range(0, 100000),
		gen.Int64Range(1, 100000),
	))

	properties.TestingRun(t)
}
