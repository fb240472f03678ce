package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testOrder(id string) *models.Order {
	return &models.Order{
		ID:        id,
		Symbol:    "RELIANCE",
		Exchange:  models.NSE,
		Product:   models.ProductCash,
		Action:    models.ActionBuy,
		Type:      models.OrderTypeLimit,
		Quantity:  10,
		Price:     decimal.RequireFromString("2500.05"),
		Status:    models.OrderPending,
		CreatedAt: time.Now(),
	}
}

func TestSQLiteStore_OrderLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.InsertOrder(ctx, testOrder("DEMO_1"))
	}))

	var got *models.Order
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		var err error
		got, err = tx.GetOrder(ctx, "DEMO_1")
		return err
	}))
	assert.Equal(t, "RELIANCE", got.Symbol)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("2500.05")))
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Nil(t, got.ExecutedAt)
	assert.Nil(t, got.ExecutionPrice)

	now := time.Now()
	price := decimal.RequireFromString("2499.95")
	got.Status = models.OrderExecuted
	got.ExecutedAt = &now
	got.ExecutionPrice = &price
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateOrder(ctx, got)
	}))

	// A second transition out of PENDING is rejected.
	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpdateOrder(ctx, got)
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		var err error
		got, err = tx.GetOrder(ctx, "DEMO_1")
		return err
	}))
	assert.Equal(t, models.OrderExecuted, got.Status)
	require.NotNil(t, got.ExecutionPrice)
	assert.Equal(t, "2499.95", got.ExecutionPrice.String())
	require.NotNil(t, got.ExecutedAt)
}

func TestSQLiteStore_GetOrderNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.View(ctx, func(tx *Tx) error {
		_, err := tx.GetOrder(ctx, "missing")
		return err
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrOrderNotFound))
}

func TestSQLiteStore_ListOrdersFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		for i := 0; i < 3; i++ {
			o := testOrder(fmt.Sprintf("DEMO_%d", i))
			if i == 2 {
				o.Status = models.OrderCancelled
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		all, err := tx.ListOrders(ctx, OrderFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		pending, err := tx.ListOrders(ctx, OrderFilter{Status: models.OrderPending})
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		n, err := tx.CountOrders(ctx, models.OrderCancelled)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	}))
}

func TestSQLiteStore_LedgerAppendAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []models.LedgerEntry{
		{TransactionID: "T1", Type: models.TxnManualCredit, Amount: decimal.NewFromInt(1000), Segment: models.SegmentCash},
		{TransactionID: "T2", Type: models.TxnOrderExecuted, Symbol: "TCS", Amount: decimal.RequireFromString("-350.25"), Segment: models.SegmentCash},
		{TransactionID: "T3", Type: models.TxnManualAdjustment, Amount: decimal.NewFromInt(50), Segment: models.SegmentFNO},
	}
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		for i := range entries {
			entries[i].Timestamp = time.Now()
			entries[i].Status = "COMPLETED"
			if err := tx.AppendLedger(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	}))
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		all, err := tx.ListLedger(ctx, LedgerFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "T1", all[0].TransactionID)
		assert.Equal(t, "-350.25", all[1].Amount.String())

		cash, err := tx.ListLedger(ctx, LedgerFilter{Segment: models.SegmentCash})
		require.NoError(t, err)
		assert.Len(t, cash, 2)

		last, err := tx.ListLedger(ctx, LedgerFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.Equal(t, "T2", last[0].TransactionID)
		assert.Equal(t, "T3", last[1].TransactionID)

		totals, err := tx.LedgerTotals(ctx)
		require.NoError(t, err)
		assert.Equal(t, "649.75", totals[models.SegmentCash].String())
		assert.Equal(t, "50", totals[models.SegmentFNO].String())
		assert.True(t, totals[models.SegmentEquity].IsZero())
		return nil
	}))

	// Transaction ids are unique.
	err := s.WithTx(ctx, func(tx *Tx) error {
		dup := entries[0]
		return tx.AppendLedger(ctx, &dup)
	})
	assert.Error(t, err)
}

func TestSQLiteStore_FundsAndFlagsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		now := time.Now()
		if err := tx.SetSeed(ctx, models.SegmentCash, decimal.NewFromInt(1000000), now); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, models.SegmentCash, decimal.RequireFromString("750000.50"), now); err != nil {
			return err
		}
		return tx.SetFlag(ctx, FlagFundsSeeded, "1000000")
	}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		funds, err := tx.GetFunds(ctx)
		require.NoError(t, err)
		assert.Equal(t, "750000.5", funds.Cash.String())
		assert.True(t, funds.Equity.IsZero())
		assert.Equal(t, "750000.5", funds.Total.String())
		assert.Equal(t, "1000000", funds.Seed.String())

		v, ok, err := tx.GetFlag(ctx, FlagFundsSeeded)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1000000", v)

		_, ok, err = tx.GetFlag(ctx, FlagWatchlistSeeded)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestSQLiteStore_Holdings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.SaveHolding(ctx, models.Holding{
			Symbol: "INFY", Exchange: models.NSE, Quantity: 5,
			AveragePrice: decimal.RequireFromString("1500.333"), UpdatedAt: time.Now(),
		})
	}))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		h, err := tx.GetHolding(ctx, models.NSE, "INFY")
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.Equal(t, 5, h.Quantity)
		assert.Equal(t, "1500.333", h.AveragePrice.String())

		missing, err := tx.GetHolding(ctx, models.BSE, "INFY")
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	}))

	// Saving a zero quantity removes the row.
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.SaveHolding(ctx, models.Holding{Symbol: "INFY", Exchange: models.NSE, Quantity: 0, UpdatedAt: time.Now()})
	}))
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		all, err := tx.ListHoldings(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	}))
}

func TestSQLiteStore_MarketWatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		now := time.Now()
		for _, sym := range []string{"RELIANCE", "TCS", "RELIANCE"} {
			if err := tx.AddToWatch(ctx, models.NSE, sym, now); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		items, err := tx.ListWatch(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 2)

		removed, err := tx.RemoveFromWatch(ctx, models.NSE, "TCS")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = tx.RemoveFromWatch(ctx, models.NSE, "TCS")
		require.NoError(t, err)
		assert.False(t, removed)
		return nil
	}))
}

func TestSQLiteStore_RollbackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertOrder(ctx, testOrder("DEMO_RB")); err != nil {
			return err
		}
		return apperrors.ErrInsufficientFunds
	})
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	err = s.View(ctx, func(tx *Tx) error {
		_, err := tx.GetOrder(ctx, "DEMO_RB")
		return err
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrOrderNotFound))
}

// Property: any decimal amount appended to the ledger reads back exactly and
// the per-segment total equals the exact sum of what was appended.
func TestProperty_LedgerAmountsRoundTripExactly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	expected := decimal.Zero
	var n int

	properties.Property("ledger totals equal the exact sum of appended amounts", prop.ForAll(
		func(units int64, cents int64) bool {
			amount := decimal.New(units*100+cents, -2)
			n++
			e := models.LedgerEntry{
				TransactionID: fmt.Sprintf("P%d", n),
				Type:          models.TxnManualAdjustment,
				Amount:        amount,
				Segment:       models.SegmentEquity,
				Status:        "COMPLETED",
				Timestamp:     time.Now(),
			}
			if err := s.WithTx(ctx, func(tx *Tx) error { return tx.AppendLedger(ctx, &e) }); err != nil {
				t.Logf("append failed: %v", err)
				return false
			}
			expected = expected.Add(amount)

			var total decimal.Decimal
			err := s.View(ctx, func(tx *Tx) error {
				totals, err := tx.LedgerTotals(ctx)
				total = totals[models.SegmentEquity]
				return err
			})
			return err == nil && total.Equal(expected)
		},
		gen.Int64Range(-1000000, 1000000),
		gen.Int64Range(0, 99),
	))

	properties.TestingRun(t)
}

func TestNewSQLiteStore_UnwritablePath(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "dir", "demo.db"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDatabaseError))
	assert.Equal(t, apperrors.KindInternal, apperrors.Kind(err))
}
