package security

import (
	"regexp"
	"strings"

	apperrors "demo-trader/internal/errors"
)

var (
	// Trading symbols: upper case letters, digits and the few separators
	// exchanges use (M&M, BAJAJ-AUTO, NIFTY24JAN21000CE).
	symbolPattern = regexp.MustCompile(`^[A-Z0-9&_.-]{1,64}$`)

	orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)

	// Detection only; used when printing configuration.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|access[_-]?token|bearer)[=:\s]+["']?([A-Za-z0-9_\-\.]{16,})["']?`),
		regexp.MustCompile(`[A-Za-z0-9]{32,}`),
	}
)

// ValidateSymbol checks a symbol typed by a user. The symbol is upper-cased
// before matching.
func ValidateSymbol(symbol string) error {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))
	if symbol == "" {
		return apperrors.NewValidationError("symbol", symbol, "symbol cannot be empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return apperrors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	return nil
}

// ValidateOrderID checks the shape of an order identifier.
func ValidateOrderID(orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return apperrors.NewValidationError("order_id", orderID, "order ID cannot be empty")
	}
	if !orderIDPattern.MatchString(orderID) {
		return apperrors.NewValidationError("order_id", orderID, "invalid order ID format")
	}
	return nil
}

// SanitizeText drops control characters from free-form remarks.
func SanitizeText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSensitive masks anything that looks like a key or token inside s.
func MaskSensitive(s string) string {
	for _, pattern := range apiKeyPatterns {
		s = pattern.ReplaceAllStringFunc(s, MaskCredential)
	}
	return s
}
