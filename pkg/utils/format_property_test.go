package utils

import (
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

var indianPattern = regexp.MustCompile(`^(\d{1,2},)*\d{1,3}$`)

// Currency formatting uses Indian digit grouping, two decimals and keeps the
// value: stripping the symbol and commas parses back to the rounded amount.
func TestProperty_IndianCurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatIndianCurrency produces valid Indian format", prop.ForAll(
		func(paise int64) bool {
			amount := decimal.New(paise, -2)
			formatted := FormatIndianCurrency(amount)

			prefix := "₹"
			if amount.IsNegative() {
				prefix = "-₹"
			}
			if !strings.HasPrefix(formatted, prefix) {
				t.Logf("Expected %s prefix for %s, got %s", prefix, amount, formatted)
				return false
			}

			parts := strings.Split(strings.TrimPrefix(formatted, prefix), ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("Expected 2 decimal places for %s, got %s", amount, formatted)
				return false
			}
			if !indianPattern.MatchString(parts[0]) {
				t.Logf("Invalid Indian format for %s: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Int64Range(-1e14, 1e14),
	))

	properties.Property("FormatIndianCurrency preserves value", prop.ForAll(
		func(paise int64) bool {
			amount := decimal.New(paise, -2)
			formatted := FormatIndianCurrency(amount)

			raw := strings.NewReplacer("₹", "", ",", "").Replace(formatted)
			parsed, err := decimal.NewFromString(raw)
			if err != nil {
				t.Logf("Cannot parse %s: %v", formatted, err)
				return false
			}
			return parsed.Equal(amount)
		},
		gen.Int64Range(-1e14, 1e14),
	))

	properties.Property("FormatCompact uses correct units", prop.ForAll(
		func(rupees int64) bool {
			amount := decimal.NewFromInt(rupees)
			formatted := FormatCompact(amount)
			abs := amount.Abs()

			switch {
			case abs.GreaterThanOrEqual(decimal.NewFromInt(10000000)):
				return strings.HasSuffix(formatted, " Cr")
			case abs.GreaterThanOrEqual(decimal.NewFromInt(100000)):
				return strings.HasSuffix(formatted, " L")
			default:
				return strings.HasPrefix(formatted, "₹") || strings.HasPrefix(formatted, "-₹")
			}
		},
		gen.Int64Range(-1e10, 1e10),
	))

	properties.Property("FormatSignedAmount marks credits", prop.ForAll(
		func(paise int64) bool {
			amount := decimal.New(paise, -2)
			formatted := FormatSignedAmount(amount)
			switch {
			case amount.IsPositive():
				return strings.HasPrefix(formatted, "+₹")
			case amount.IsNegative():
				return strings.HasPrefix(formatted, "-₹")
			default:
				return formatted == "₹0.00"
			}
		},
		gen.Int64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}
