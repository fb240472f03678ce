// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrValidation           = errors.New("validation failed")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = fmt.Errorf("insufficient holdings: %w", ErrInsufficientFunds)
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidState         = errors.New("invalid order state")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrInstrumentNotFound   = errors.New("instrument not found")
	ErrMarketClosed         = errors.New("market is closed")
	ErrReadOnlyMode         = errors.New("operation blocked: read-only mode enabled")
	ErrDatabaseError        = errors.New("database error")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrNotAuthenticated     = errors.New("not authenticated")
)

// Error kinds surfaced to callers as stable codes.
const (
	KindValidation        = "VALIDATION_ERROR"
	KindInvalidQuantity   = "INVALID_QUANTITY"
	KindInsufficientFunds = "INSUFFICIENT_FUNDS"
	KindOrderNotFound     = "ORDER_NOT_FOUND"
	KindInvalidState      = "INVALID_STATE"
	KindQuoteUnavailable  = "QUOTE_UNAVAILABLE"
	KindMarketClosed      = "MARKET_CLOSED"
	KindReadOnly          = "READ_ONLY"
	KindInternal          = "INTERNAL"
)

// Kind maps an error to its stable code. Unknown errors are INTERNAL.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrOrderNotFound):
		return KindOrderNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrQuoteUnavailable):
		return KindQuoteUnavailable
	case errors.Is(err, ErrMarketClosed):
		return KindMarketClosed
	case errors.Is(err, ErrReadOnlyMode):
		return KindReadOnly
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInstrumentNotFound):
		return KindValidation
	default:
		return KindInternal
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Symbol:  symbol,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap returns the underlying kind, ErrValidation unless set otherwise.
func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewQuantityError creates a ValidationError of the invalid-quantity kind.
func NewQuantityError(quantity, lotSize int) *ValidationError {
	return &ValidationError{
		Field:   "quantity",
		Value:   quantity,
		Message: fmt.Sprintf("must be a positive multiple of lot size %d", lotSize),
		Err:     ErrInvalidQuantity,
	}
}

// FundsError reports a shortfall in a segment.
type FundsError struct {
	Segment   string
	Required  string
	Available string
	Err       error
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("%v in %s: required %s, available %s", e.Err, e.Segment, e.Required, e.Available)
}

func (e *FundsError) Unwrap() error {
	return e.Err
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single import.
func New(text string) error {
	return errors.New(text)
}
