package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"demo-trader/internal/broker"
	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/logging"
	"demo-trader/internal/models"
	"demo-trader/internal/security"
	"demo-trader/internal/store"
	"demo-trader/internal/stream"
	"demo-trader/pkg/utils"
)

// Price sources reported in OrderResult.
const (
	PriceFromQuote     = "quote"
	PriceFromSubmitted = "submitted"
	PriceFromLimit     = "limit"
)

// PlaceOrderRequest is a simulated order as submitted by a caller.
type PlaceOrderRequest struct {
	Symbol     string           `json:"symbol" validate:"required,max=64"`
	Exchange   string           `json:"exchange" validate:"required,oneof=NSE BSE NFO BFO MCX"`
	Product    string           `json:"product" validate:"required,oneof=CASH FUTURES OPTIONS"`
	Action     string           `json:"action" validate:"required,oneof=BUY SELL"`
	OrderType  string           `json:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Quantity   int              `json:"quantity"`
	Price      decimal.Decimal  `json:"price"`
	Expiry     *time.Time       `json:"expiry,omitempty"`
	Strike     *decimal.Decimal `json:"strike,omitempty"`
	OptionType string           `json:"option_type,omitempty" validate:"omitempty,oneof=CE PE"`
	Remarks    string           `json:"remarks,omitempty" validate:"max=256"`
}

func (r PlaceOrderRequest) normalize(defaultExchange models.Exchange) PlaceOrderRequest {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Exchange = strings.ToUpper(strings.TrimSpace(r.Exchange))
	if r.Exchange == "" {
		r.Exchange = string(defaultExchange)
	}
	r.Product = string(models.ParseProduct(r.Product))
	r.Action = string(models.ParseAction(r.Action))
	r.OrderType = string(models.ParseOrderType(r.OrderType))
	if r.OrderType == "" {
		r.OrderType = string(models.OrderTypeLimit)
	}
	r.OptionType = strings.ToUpper(strings.TrimSpace(r.OptionType))
	return r
}

func (r PlaceOrderRequest) check() error {
	if r.Quantity <= 0 {
		return apperrors.NewQuantityError(r.Quantity, 1)
	}
	if r.Price.IsNegative() {
		return apperrors.NewValidationError("price", r.Price.String(), "must not be negative")
	}
	if models.OrderType(r.OrderType) == models.OrderTypeLimit && !r.Price.IsPositive() {
		return apperrors.NewValidationError("price", r.Price.String(), "limit orders require a price greater than 0")
	}
	if models.ProductType(r.Product) == models.ProductOptions {
		if r.Expiry == nil || r.Strike == nil || r.OptionType == "" {
			return apperrors.NewValidationError("option", r.Symbol, "options require expiry, strike and option type")
		}
	}
	return nil
}

func (r PlaceOrderRequest) query() broker.InstrumentQuery {
	return broker.InstrumentQuery{
		Symbol:     r.Symbol,
		Exchange:   models.Exchange(r.Exchange),
		Product:    models.ProductType(r.Product),
		Expiry:     r.Expiry,
		Strike:     r.Strike,
		OptionType: r.OptionType,
	}
}

// PlaceOrder validates req and records a pending order. Market orders are
// priced from the live quote, falling back to the submitted price, and
// execute in the same transaction.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.OrderResult, error) {
	req = req.normalize(s.cfg.DefaultExchange)
	result, err := s.placeOrder(ctx, req)
	if err != nil {
		s.metrics.Rejected(apperrors.Kind(err))
		s.audit.LogOrder(ctx, security.AuditOrderRejected, "", req.Symbol, req.Action, map[string]interface{}{
			"quantity":   req.Quantity,
			"order_type": req.OrderType,
			"price":      req.Price.String(),
		}, err)
		s.logger.Warn().Err(err).Str("symbol", req.Symbol).Str("action", req.Action).Msg("Order rejected")
		return nil, err
	}
	return result, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (*models.OrderResult, error) {
	if err := s.access.CheckPermission(ctx, security.OpPlaceOrder); err != nil {
		return nil, err
	}
	if s.cfg.EnforceMarketHours && !utils.IsMarketOpen(s.now()) {
		next := utils.NextMarketOpen(s.now()).In(utils.IndiaLocation)
		return nil, apperrors.Wrapf(apperrors.ErrMarketClosed, "trading hours are 09:20 to 15:15 IST Mon-Fri, next open %s",
			next.Format("Mon 02 Jan 15:04"))
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if err := req.check(); err != nil {
		return nil, err
	}

	inst, err := s.instruments.Lookup(ctx, req.query())
	if err != nil {
		return nil, &apperrors.ValidationError{
			Field:   "symbol",
			Value:   req.Symbol,
			Message: fmt.Sprintf("instrument lookup failed: %v", err),
		}
	}
	lot := inst.LotSize
	if lot <= 0 {
		lot = 1
	}
	if req.Quantity%lot != 0 {
		return nil, apperrors.NewQuantityError(req.Quantity, lot)
	}

	orderType := models.OrderType(req.OrderType)
	price, source := req.Price, PriceFromLimit
	if orderType == models.OrderTypeMarket {
		price, source, err = s.marketPrice(ctx, models.Exchange(req.Exchange), req.Symbol, req.Price)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	order := &models.Order{
		ID:         newOrderID(now),
		Symbol:     req.Symbol,
		Exchange:   models.Exchange(req.Exchange),
		Product:    models.ProductType(req.Product),
		Action:     models.Action(req.Action),
		Type:       orderType,
		Quantity:   req.Quantity,
		Status:     models.OrderPending,
		CreatedAt:  now,
		Expiry:     req.Expiry,
		Strike:     req.Strike,
		OptionType: req.OptionType,
		Remarks:    req.Remarks,
	}
	if orderType == models.OrderTypeLimit {
		order.Price = req.Price
	}

	var fx effects
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := s.checkOrder(ctx, tx, order, price); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		fx.ordered(stream.EventOrderPlaced, *order)
		if orderType == models.OrderTypeMarket {
			return s.execute(ctx, tx, order, price, now, &fx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.commit(fx)

	logger := logging.WithOrderID(s.logger, order.ID)
	logging.LogOrder(logger, order.ID, order.Symbol, string(order.Action), string(models.OrderPending))
	s.metrics.OrderTransition(string(order.Action), string(models.OrderPending))
	s.audit.LogOrder(ctx, security.AuditOrderPlaced, order.ID, order.Symbol, string(order.Action), map[string]interface{}{
		"quantity":   order.Quantity,
		"order_type": string(order.Type),
		"price":      order.Price.String(),
	}, nil)

	result := &models.OrderResult{OrderID: order.ID, Status: order.Status}
	if order.Status == models.OrderExecuted {
		s.executed(ctx, order)
		result.ExecutionPrice = order.ExecutionPrice
		result.PriceSource = source
		result.Message = fmt.Sprintf("Market order executed at %s", utils.FormatIndianCurrency(price))
	} else {
		result.Message = "Limit order placed (pending execution)"
	}
	return result, nil
}

// checkOrder applies the funds and holdings policy to an order about to be
// placed or executed at price.
func (s *Service) checkOrder(ctx context.Context, tx *store.Tx, o *models.Order, price decimal.Decimal) error {
	switch o.Action {
	case models.ActionBuy:
		funds, err := tx.GetFunds(ctx)
		if err != nil {
			return err
		}
		cost := price.Mul(decimal.NewFromInt(int64(o.Quantity)))
		return checkFunds(o.Segment(), funds, cost)
	case models.ActionSell:
		if s.cfg.AllowShort {
			return nil
		}
		h, err := tx.GetHolding(ctx, o.Exchange, o.Symbol)
		if err != nil {
			return err
		}
		held := 0
		if h != nil {
			held = h.Quantity
		}
		if o.Quantity > held {
			return &apperrors.FundsError{
				Segment:   string(o.Exchange) + ":" + o.Symbol,
				Required:  fmt.Sprintf("%d", o.Quantity),
				Available: fmt.Sprintf("%d", held),
				Err:       apperrors.ErrInsufficientHoldings,
			}
		}
	}
	return nil
}

// execute transitions a pending order to executed at price, posting one
// ledger entry and updating the holding. It must run under the write lock.
func (s *Service) execute(ctx context.Context, tx *store.Tx, o *models.Order, price decimal.Decimal, now time.Time, fx *effects) error {
	if o.Status != models.OrderPending {
		return apperrors.NewOrderError(o.ID, o.Symbol, "EXECUTE", "order is "+string(o.Status), apperrors.ErrInvalidState)
	}
	if !price.IsPositive() {
		return apperrors.NewValidationError("execution_price", price.String(), "must be greater than 0")
	}

	current, err := tx.GetHolding(ctx, o.Exchange, o.Symbol)
	if err != nil {
		return err
	}
	holding := models.Holding{Symbol: o.Symbol, Exchange: o.Exchange}
	if current != nil {
		holding = *current
	}
	next, err := ApplyFill(holding, Fill{Action: o.Action, Quantity: o.Quantity, Price: price, At: now}, s.cfg.AllowShort)
	if err != nil {
		return err
	}
	if o.Action == models.ActionBuy {
		funds, err := tx.GetFunds(ctx)
		if err != nil {
			return err
		}
		if err := checkFunds(o.Segment(), funds, price.Mul(decimal.NewFromInt(int64(o.Quantity)))); err != nil {
			return err
		}
	}

	executedAt := now
	execPrice := price
	o.Status = models.OrderExecuted
	o.ExecutedAt = &executedAt
	o.ExecutionPrice = &execPrice
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return err
	}

	amount := o.TotalAmount()
	if o.Action == models.ActionBuy {
		amount = amount.Neg()
	}
	entry := models.LedgerEntry{
		TransactionID: executionTxnID(o.ID),
		Type:          models.TxnOrderExecuted,
		OrderID:       o.ID,
		Symbol:        o.Symbol,
		Exchange:      o.Exchange,
		Action:        o.Action,
		Quantity:      o.Quantity,
		Price:         price,
		Amount:        amount,
		Segment:       o.Segment(),
		Status:        EntryExecuted,
		Timestamp:     now,
		Remarks:       fmt.Sprintf("%s %d %s @ %s", o.Action, o.Quantity, o.Symbol, price.String()),
	}
	balance, err := post(ctx, tx, &entry, now)
	if err != nil {
		return err
	}
	if err := tx.SaveHolding(ctx, next); err != nil {
		return err
	}

	fx.posted(entry, balance)
	fx.ordered(stream.EventOrderExecuted, *o)
	return nil
}

// executed records the logs, metrics and audit trail of a committed execution.
func (s *Service) executed(ctx context.Context, o *models.Order) {
	logger := logging.WithSymbol(logging.WithOrderID(s.logger, o.ID), o.Symbol)
	logging.LogTrade(logger, o.Symbol, string(o.Action), o.Quantity, o.ExecutionPrice.String())
	s.metrics.OrderTransition(string(o.Action), string(models.OrderExecuted))
	s.audit.LogOrder(ctx, security.AuditOrderExecuted, o.ID, o.Symbol, string(o.Action), map[string]interface{}{
		"quantity":        o.Quantity,
		"execution_price": o.ExecutionPrice.String(),
		"amount":          o.TotalAmount().String(),
	}, nil)
}

// ExecuteOrder fills a pending order at price. A zero price resolves from
// the live quote, falling back to the order's limit price.
func (s *Service) ExecuteOrder(ctx context.Context, orderID string, price decimal.Decimal) (*models.Order, error) {
	order, err := s.executeOrder(ctx, orderID, price)
	if err != nil {
		s.metrics.Rejected(apperrors.Kind(err))
		s.audit.LogOrder(ctx, security.AuditOrderExecuted, orderID, "", "", map[string]interface{}{
			"execution_price": price.String(),
		}, err)
		return nil, err
	}
	s.executed(ctx, order)
	return order, nil
}

func (s *Service) executeOrder(ctx context.Context, orderID string, price decimal.Decimal) (*models.Order, error) {
	if err := s.access.CheckPermission(ctx, security.OpExecuteOrder); err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, apperrors.NewValidationError("execution_price", price.String(), "must be greater than 0")
	}

	if price.IsZero() {
		pending, err := s.Order(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if pending.Status != models.OrderPending {
			return nil, apperrors.NewOrderError(orderID, pending.Symbol, "EXECUTE", "order is "+string(pending.Status), apperrors.ErrInvalidState)
		}
		price, _, err = s.marketPrice(ctx, pending.Exchange, pending.Symbol, pending.Price)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var order *models.Order
	var fx effects
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		return s.execute(ctx, tx, order, price, s.now(), &fx)
	})
	if err != nil {
		return nil, err
	}
	s.commit(fx)
	return order, nil
}

// CancelOrder cancels a pending order. It has no funds, ledger or holdings
// effect.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.cancelOrder(ctx, orderID)
	symbol, action := "", ""
	if order != nil {
		symbol, action = order.Symbol, string(order.Action)
	}
	s.audit.LogOrder(ctx, security.AuditOrderCancelled, orderID, symbol, action, nil, err)
	if err != nil {
		s.metrics.Rejected(apperrors.Kind(err))
		return nil, err
	}
	logging.LogOrder(s.logger, order.ID, order.Symbol, action, string(order.Status))
	s.metrics.OrderTransition(action, string(models.OrderCancelled))
	return order, nil
}

func (s *Service) cancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if err := s.access.CheckPermission(ctx, security.OpCancelOrder); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var order *models.Order
	var fx effects
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderPending {
			return apperrors.NewOrderError(orderID, order.Symbol, "CANCEL", "order is "+string(order.Status), apperrors.ErrInvalidState)
		}
		order.Status = models.OrderCancelled
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		fx.ordered(stream.EventOrderCancelled, *order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.commit(fx)
	return order, nil
}

// marketPrice resolves a market price: the live quote when available,
// otherwise fallback when positive.
func (s *Service) marketPrice(ctx context.Context, exchange models.Exchange, symbol string, fallback decimal.Decimal) (decimal.Decimal, string, error) {
	price, err := s.quote(ctx, exchange, symbol)
	if err == nil {
		return price, PriceFromQuote, nil
	}
	if fallback.IsPositive() {
		logging.LogQuoteFallback(s.logger, symbol, fallback.String(), PriceFromSubmitted, err)
		s.metrics.QuoteLookup("fallback", 0)
		return fallback, PriceFromSubmitted, nil
	}
	return decimal.Zero, "", apperrors.NewDataError("quote", symbol, "no live quote and no submitted price", apperrors.ErrQuoteUnavailable)
}

// OrderQuery filters order listings.
type OrderQuery struct {
	Status string `json:"status" form:"status" validate:"omitempty,oneof=PENDING EXECUTED CANCELLED"`
	Symbol string `json:"symbol" form:"symbol"`
	Action string `json:"action" form:"action" validate:"omitempty,oneof=BUY SELL"`
	Limit  int    `json:"limit" form:"limit" validate:"gte=0,lte=10000"`
}

// Orders returns orders, newest first.
func (s *Service) Orders(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	q.Status = strings.ToUpper(strings.TrimSpace(q.Status))
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	q.Action = strings.ToUpper(strings.TrimSpace(q.Action))
	if err := s.validateStruct(q); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []models.Order
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		orders, err = tx.ListOrders(ctx, store.OrderFilter{
			Status: models.OrderStatus(q.Status),
			Symbol: q.Symbol,
			Action: models.Action(q.Action),
			Limit:  q.Limit,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Order returns a single order.
func (s *Service) Order(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var order *models.Order
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
