package demo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/logging"
	"demo-trader/internal/models"
	"demo-trader/internal/store"
)

// Fill is one execution applied to a position.
type Fill struct {
	Action   models.Action
	Quantity int
	Price    decimal.Decimal
	At       time.Time
}

// ApplyFill returns the position after fill. Buys that add to a long
// position move the average to the volume-weighted mean; sells leave it
// unchanged. A position that reaches zero has a zero average. Selling more
// than is held fails with ErrInsufficientHoldings unless allowShort is set,
// in which case the short side keeps its own volume-weighted average.
func ApplyFill(h models.Holding, f Fill, allowShort bool) (models.Holding, error) {
	if f.Quantity <= 0 {
		return h, apperrors.NewQuantityError(f.Quantity, 1)
	}

	qty := decimal.NewFromInt(int64(f.Quantity))
	held := h.Quantity
	h.UpdatedAt = f.At

	switch f.Action {
	case models.ActionBuy:
		next := held + f.Quantity
		switch {
		case held >= 0:
			h.AveragePrice = vwap(held, h.AveragePrice, f.Quantity, f.Price)
		case next > 0:
			h.AveragePrice = f.Price
		}
		h.Quantity = next

	case models.ActionSell:
		next := held - f.Quantity
		if next < 0 && !allowShort {
			return h, &apperrors.FundsError{
				Segment:   h.Key(),
				Required:  qty.String(),
				Available: decimal.NewFromInt(int64(held)).String(),
				Err:       apperrors.ErrInsufficientHoldings,
			}
		}
		switch {
		case held <= 0:
			h.AveragePrice = vwap(-held, h.AveragePrice, f.Quantity, f.Price)
		case next < 0:
			h.AveragePrice = f.Price
		}
		h.Quantity = next

	default:
		return h, apperrors.NewValidationError("action", f.Action, "must be BUY or SELL")
	}

	if h.Quantity == 0 {
		h.AveragePrice = decimal.Zero
	}
	return h, nil
}

func vwap(oldQty int, oldAvg decimal.Decimal, addQty int, price decimal.Decimal) decimal.Decimal {
	total := oldQty + addQty
	if total == 0 {
		return decimal.Zero
	}
	cost := oldAvg.Mul(decimal.NewFromInt(int64(oldQty))).Add(price.Mul(decimal.NewFromInt(int64(addQty))))
	return cost.Div(decimal.NewFromInt(int64(total)))
}

// Replay rebuilds holdings from executed orders, applied in execution
// order. Non-executed orders are ignored and flat positions are dropped.
// Orders executed at the same instant keep their slice order.
func Replay(orders []models.Order, allowShort bool) ([]models.Holding, error) {
	executed := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == models.OrderExecuted && o.ExecutionPrice != nil {
			executed = append(executed, o)
		}
	}
	sort.SliceStable(executed, func(i, j int) bool {
		return executedAt(executed[i]).Before(executedAt(executed[j]))
	})

	fills := make([]replayFill, 0, len(executed))
	for _, o := range executed {
		fills = append(fills, replayFill{
			ref:      o.ID,
			symbol:   o.Symbol,
			exchange: o.Exchange,
			fill: Fill{
				Action:   o.Action,
				Quantity: o.Quantity,
				Price:    *o.ExecutionPrice,
				At:       executedAt(o),
			},
		})
	}
	return replay(fills, allowShort)
}

// ReplayLedger rebuilds holdings from ORDER_EXECUTED ledger entries in the
// order given. Entries listed by sequence replay exactly as they were posted,
// even when several share a timestamp.
func ReplayLedger(entries []models.LedgerEntry, allowShort bool) ([]models.Holding, error) {
	fills := make([]replayFill, 0, len(entries))
	for _, e := range entries {
		if e.Type != models.TxnOrderExecuted || e.Quantity <= 0 {
			continue
		}
		fills = append(fills, replayFill{
			ref:      e.TransactionID,
			symbol:   e.Symbol,
			exchange: e.Exchange,
			fill: Fill{
				Action:   e.Action,
				Quantity: e.Quantity,
				Price:    e.Price,
				At:       e.Timestamp,
			},
		})
	}
	return replay(fills, allowShort)
}

type replayFill struct {
	ref      string
	symbol   string
	exchange models.Exchange
	fill     Fill
}

func replay(fills []replayFill, allowShort bool) ([]models.Holding, error) {
	positions := make(map[string]models.Holding)
	for _, f := range fills {
		h := models.Holding{Symbol: f.symbol, Exchange: f.exchange}
		if cur, ok := positions[h.Key()]; ok {
			h = cur
		}
		next, err := ApplyFill(h, f.fill, allowShort)
		if err != nil {
			return nil, apperrors.Wrapf(err, "replay %s", f.ref)
		}
		positions[next.Key()] = next
	}

	holdings := make([]models.Holding, 0, len(positions))
	for _, h := range positions {
		if h.Quantity != 0 {
			holdings = append(holdings, h)
		}
	}
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].Symbol != holdings[j].Symbol {
			return holdings[i].Symbol < holdings[j].Symbol
		}
		return holdings[i].Exchange < holdings[j].Exchange
	})
	return holdings, nil
}

func executedAt(o models.Order) time.Time {
	if o.ExecutedAt != nil {
		return *o.ExecutedAt
	}
	return o.CreatedAt
}

// Holdings returns the active positions priced at the live quote. A holding
// whose quote cannot be fetched is priced at its average and marked stale.
func (s *Service) Holdings(ctx context.Context) ([]models.Holding, error) {
	s.mu.RLock()
	var holdings []models.Holding
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		holdings, err = tx.ListHoldings(ctx)
		return err
	})
	s.mu.RUnlock()
	if err != nil {
		return nil, apperrors.Wrap(err, "list holdings")
	}

	s.enrich(ctx, holdings)
	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].MarketValue.GreaterThan(holdings[j].MarketValue)
	})
	return holdings, nil
}

func (s *Service) enrich(ctx context.Context, holdings []models.Holding) {
	var wg sync.WaitGroup
	for i := range holdings {
		wg.Add(1)
		go func(h *models.Holding) {
			defer wg.Done()
			price, err := s.quote(ctx, h.Exchange, h.Symbol)
			if err != nil {
				logging.LogQuoteFallback(s.logger, h.Symbol, h.AveragePrice.String(), "average", err)
				price = h.AveragePrice
				h.Stale = true
			}
			h.CurrentPrice = price
			qty := decimal.NewFromInt(int64(h.Quantity))
			h.MarketValue = price.Mul(qty)
			h.UnrealizedPnL = price.Sub(h.AveragePrice).Mul(qty)
		}(&holdings[i])
	}
	wg.Wait()
}
