package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "demo-trader/internal/errors"
	"demo-trader/pkg/utils"
)

// FormatDateTime formats a timestamp in IST.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(utils.IndiaLocation).Format("02-Jan-2006 15:04:05")
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// parseAmount parses a rupee amount as printed by utils.FormatIndianCurrency,
// or as a plain number.
func parseAmount(field, s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("₹", "", ",", "").Replace(strings.TrimSpace(s))
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, apperrors.NewValidationError(field, s, "not a number")
	}
	return d, nil
}

func parseQuantity(s string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperrors.NewValidationError("quantity", s, "not a whole number")
	}
	return qty, nil
}

// parseDate reads a YYYY-MM-DD date as IST midnight.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, utils.IndiaLocation)
	if err != nil {
		return nil, apperrors.NewValidationError(field, s, "expected YYYY-MM-DD")
	}
	return &t, nil
}
