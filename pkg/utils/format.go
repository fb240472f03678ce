// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatIndianCurrency formats an amount with two decimals and lakh/crore
// digit grouping, e.g. ₹12,34,567.50.
func FormatIndianCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	whole, frac, _ := strings.Cut(amount.StringFixed(2), ".")
	return sign + "₹" + groupIndian(whole) + "." + frac
}

// groupIndian inserts commas after the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return strings.Join(append(groups, tail), ",")
}

// FormatSignedAmount formats a ledger amount with an explicit sign.
func FormatSignedAmount(amount decimal.Decimal) string {
	formatted := FormatIndianCurrency(amount)
	if amount.IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value decimal.Decimal) string {
	sign := ""
	if value.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("%s%s%%", sign, value.StringFixed(2))
}

// FormatQuantity formats a quantity with Indian digit grouping.
func FormatQuantity(qty int64) string {
	if qty < 0 {
		return "-" + groupIndian(fmt.Sprintf("%d", -qty))
	}
	return groupIndian(fmt.Sprintf("%d", qty))
}

// FormatCompact formats an amount in compact form (L/Cr).
func FormatCompact(amount decimal.Decimal) string {
	abs := amount.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(10000000)):
		return amount.Div(decimal.NewFromInt(10000000)).StringFixed(2) + " Cr"
	case abs.GreaterThanOrEqual(decimal.NewFromInt(100000)):
		return amount.Div(decimal.NewFromInt(100000)).StringFixed(2) + " L"
	}
	return FormatIndianCurrency(amount)
}
