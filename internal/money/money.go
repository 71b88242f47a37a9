// Package money holds the best-effort parsers and rounding rules used for
// every currency and rate value in the ledger.
//
// All monetary values use shopspring/decimal, never float64.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for currency amounts.
const Scale int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds x half away from zero to two decimal places.
func Round(x decimal.Decimal) decimal.Decimal {
	return x.Round(Scale)
}

// ParsePercent reads a payout or target percentage typed by a user.
//
// Accepted forms are a fraction ("0.92"), a percentage ("92%") or a bare
// number ("92"). Any value above 1 is taken as percentage points and divided
// by 100; anything else is already a fraction. Empty or unparseable input
// yields zero.
//
// The magnitude test means "1" reads as 100% while "1%" reads as 1.0 as well,
// because the stripped value 1 is not above 1. That ambiguity is kept as-is.
func ParsePercent(input string) decimal.Decimal {
	s := strings.TrimSpace(input)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	n, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if n.GreaterThan(decimal.NewFromInt(1)) {
		return n.Div(hundred)
	}
	return n
}

// ParseAmount reads a free-form currency field. The second result is false
// when the field is blank or not a number.
func ParseAmount(input string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, false
	}
	n, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return n, true
}

// FormatPercent renders a fraction as a two-decimal percentage, e.g. "92.00%".
func FormatPercent(p decimal.Decimal) string {
	return p.Mul(hundred).StringFixed(2) + "%"
}

// Percent returns part/whole*100 rounded to two places, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return Round(part.Div(whole).Mul(hundred))
}
