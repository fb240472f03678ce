// Package security provides audit logging and read-only controls for the
// demo trading account.
package security

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"demo-trader/internal/logging"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Trading events
	AuditOrderPlaced    AuditEventType = "ORDER_PLACED"
	AuditOrderExecuted  AuditEventType = "ORDER_EXECUTED"
	AuditOrderCancelled AuditEventType = "ORDER_CANCELLED"
	AuditOrderRejected  AuditEventType = "ORDER_REJECTED"

	// Funds events
	AuditFundsSeeded      AuditEventType = "FUNDS_SEEDED"
	AuditFundsAdjusted    AuditEventType = "FUNDS_ADJUSTED"
	AuditFundsTransferred AuditEventType = "FUNDS_TRANSFERRED"
	AuditReconciled       AuditEventType = "RECONCILED"

	// Watch list events
	AuditWatchChanged AuditEventType = "WATCHLIST_CHANGED"

	// Security events
	AuditReadOnlyViolation AuditEventType = "READ_ONLY_VIOLATION"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	Symbol    string                 `json:"symbol,omitempty"`
	OrderID   string                 `json:"order_id,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines.
type AuditLogger struct {
	writer    io.WriteCloser
	mu        sync.Mutex
	sessionID string
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "demo-trader", "audit"),
		MaxSize:    50,
		MaxBackups: 30,
		MaxAge:     365, // Keep audit logs for 1 year
		Compress:   true,
	}
}

// NewAuditLogger creates an audit logger writing to a rotating file.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	// Ensure audit directory exists with restricted permissions
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return NewAuditLoggerWriter(writer), nil
}

// NewAuditLoggerWriter creates an audit logger over any writer.
func NewAuditLoggerWriter(w io.WriteCloser) *AuditLogger {
	return &AuditLogger{
		writer:    w,
		sessionID: uuid.NewString(),
	}
}

// Log logs an audit event. A nil logger discards events.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if al == nil {
		return nil
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = time.Now().UTC()
	event.SessionID = al.sessionID
	if event.RequestID == "" {
		event.RequestID = logging.RequestID(ctx)
	}
	event.ErrorMsg = MaskSensitive(event.ErrorMsg)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}

	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}

	return nil
}

// LogOrder logs an order lifecycle event.
func (al *AuditLogger) LogOrder(ctx context.Context, eventType AuditEventType, orderID, symbol, action string, details map[string]interface{}, err error) error {
	event := AuditEvent{
		EventType: eventType,
		OrderID:   orderID,
		Symbol:    symbol,
		Action:    action,
		Details:   details,
		Success:   err == nil,
	}
	if err != nil {
		event.ErrorMsg = err.Error()
	}
	return al.Log(ctx, event)
}

// LogFunds logs a funds event.
func (al *AuditLogger) LogFunds(ctx context.Context, eventType AuditEventType, details map[string]interface{}, err error) error {
	event := AuditEvent{
		EventType: eventType,
		Details:   details,
		Success:   err == nil,
	}
	if err != nil {
		event.ErrorMsg = err.Error()
	}
	return al.Log(ctx, event)
}

// LogReadOnlyViolation logs an attempt to perform a write operation in read-only mode.
func (al *AuditLogger) LogReadOnlyViolation(ctx context.Context, operation string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditReadOnlyViolation,
		Action:    operation,
		Success:   false,
		ErrorMsg:  "operation blocked: read-only mode enabled",
	})
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	return al.writer.Close()
}
