package security

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	apperrors "demo-trader/internal/errors"
)

// OperationType names an action against the demo account.
type OperationType string

const (
	OpRead OperationType = "READ"

	OpPlaceOrder    OperationType = "PLACE_ORDER"
	OpExecuteOrder  OperationType = "EXECUTE_ORDER"
	OpCancelOrder   OperationType = "CANCEL_ORDER"
	OpAdjustFunds   OperationType = "ADJUST_FUNDS"
	OpTransferFunds OperationType = "TRANSFER_FUNDS"
	OpReconcile     OperationType = "RECONCILE"
	OpModifyWatch   OperationType = "MODIFY_WATCHLIST"
)

// writeOps are blocked in read-only mode.
var writeOps = map[OperationType]string{
	OpPlaceOrder:    "place order",
	OpExecuteOrder:  "execute pending order",
	OpCancelOrder:   "cancel order",
	OpAdjustFunds:   "adjust funds",
	OpTransferFunds: "transfer funds between segments",
	OpReconcile:     "reconcile balances and holdings",
	OpModifyWatch:   "modify market watch",
}

// ReadOnlyError is returned for a write attempted in read-only mode.
type ReadOnlyError struct {
	Operation OperationType
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("cannot %s: read-only mode is enabled", Describe(e.Operation))
}

// Unwrap lets callers match apperrors.ErrReadOnlyMode.
func (e *ReadOnlyError) Unwrap() error {
	return apperrors.ErrReadOnlyMode
}

// AccessController gates write operations behind the read-only switch and
// audits every blocked attempt.
type AccessController struct {
	readOnly atomic.Bool
	audit    *AuditLogger
}

// NewAccessController creates a new access controller.
func NewAccessController(readOnly bool, audit *AuditLogger) *AccessController {
	ac := &AccessController{audit: audit}
	ac.readOnly.Store(readOnly)
	return ac
}

// IsReadOnly returns whether read-only mode is enabled.
func (ac *AccessController) IsReadOnly() bool {
	return ac != nil && ac.readOnly.Load()
}

// SetReadOnly sets the read-only mode.
func (ac *AccessController) SetReadOnly(readOnly bool) {
	ac.readOnly.Store(readOnly)
}

// CheckPermission returns a *ReadOnlyError when op writes and the account is read-only.
func (ac *AccessController) CheckPermission(ctx context.Context, op OperationType) error {
	if !ac.IsReadOnly() {
		return nil
	}
	if _, write := writeOps[op]; !write {
		return nil
	}
	ac.audit.LogReadOnlyViolation(ctx, string(op))
	return &ReadOnlyError{Operation: op}
}

// WriteOperations returns every operation blocked in read-only mode, sorted.
func WriteOperations() []OperationType {
	ops := make([]OperationType, 0, len(writeOps))
	for op := range writeOps {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Describe returns a short human-readable name for op.
func Describe(op OperationType) string {
	if d, ok := writeOps[op]; ok {
		return d
	}
	if op == OpRead {
		return "read data"
	}
	return string(op)
}
