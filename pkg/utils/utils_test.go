package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIndianCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "₹0.00"},
		{"999", "₹999.00"},
		{"1000", "₹1,000.00"},
		{"100000", "₹1,00,000.00"},
		{"1010000", "₹10,10,000.00"},
		{"12345678.9", "₹1,23,45,678.90"},
		{"-250000.5", "-₹2,50,000.50"},
	}
	for _, tt := range tests {
		got := FormatIndianCurrency(decimal.RequireFromString(tt.in))
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatSignedAmountAndCompact(t *testing.T) {
	assert.Equal(t, "+₹2,60,000.00", FormatSignedAmount(decimal.NewFromInt(260000)))
	assert.Equal(t, "-₹2,50,000.00", FormatSignedAmount(decimal.NewFromInt(-250000)))
	assert.Equal(t, "10.10 L", FormatCompact(decimal.NewFromInt(1010000)))
	assert.Equal(t, "1.50 Cr", FormatCompact(decimal.NewFromInt(15000000)))
	assert.Equal(t, "1,00,000", FormatQuantity(100000))
	assert.Equal(t, "+1.25%", FormatPercent(decimal.RequireFromString("1.25")))
}

func TestMarketStatus(t *testing.T) {
	// Monday 2024-01-15
	at := func(h, m int) time.Time {
		return time.Date(2024, 1, 15, h, m, 0, 0, IndiaLocation)
	}
	assert.Equal(t, MarketClosed, GetMarketStatus(at(9, 19)))
	assert.Equal(t, MarketOpen, GetMarketStatus(at(9, 20)))
	assert.Equal(t, MarketOpen, GetMarketStatus(at(15, 15)))
	assert.Equal(t, MarketClosed, GetMarketStatus(at(15, 16)))

	saturday := time.Date(2024, 1, 13, 11, 0, 0, 0, IndiaLocation)
	assert.Equal(t, MarketWeekend, GetMarketStatus(saturday))
	assert.False(t, IsMarketOpen(saturday))

	next := NextMarketOpen(saturday)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 20, next.Minute())
}

func TestRetryWithResult(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

	calls := 0
	v, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)

	permanent := errors.New("permanent")
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
	calls = 0
	err = Retry(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, BackoffFactor: 2}
	err := Retry(ctx, cfg, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}
