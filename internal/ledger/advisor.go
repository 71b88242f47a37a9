package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/daybook/internal/money"
)

// Remaining is the profit still needed to reach target, floored at zero.
func Remaining(target, realized decimal.Decimal) decimal.Decimal {
	r := target.Sub(realized)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// SuggestStake sizes the next position so that a single win closes the gap
// between realized P&L and the daily target:
//
//	stake = round2(max(0, target - realized) / payout)
//
// Loss history is deliberately ignored; this is not a martingale doubling
// rule. A payout rate at or below zero yields zero, as does a met target
// while lockAfterTarget is set.
func SuggestStake(target, realized, payout decimal.Decimal, lockAfterTarget bool) decimal.Decimal {
	if payout.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	remaining := Remaining(target, realized)
	if lockAfterTarget && remaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return money.Round(remaining.Div(payout))
}
