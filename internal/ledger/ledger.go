// Package ledger implements the trade ledger of the open trading day and the
// stake advisor that sizes its next position.
//
// A Ledger is working state: it is append-only until Reset and is never
// persisted directly. Closing a day turns it into a summary.DaySummary.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/money"
)

// Params are the advisor inputs resolved for the day.
type Params struct {
	TargetAmount    decimal.Decimal
	Payout          decimal.Decimal
	LockAfterTarget bool
}

// Ledger is the ordered sequence of trades for the open day.
// It is not safe for concurrent use.
type Ledger struct {
	start  decimal.Decimal
	params Params
	trades []model.Trade
}

// New creates an empty ledger for a day starting at start.
func New(start decimal.Decimal, params Params) *Ledger {
	return &Ledger{start: start, params: params}
}

// StartBalance returns the day's starting balance.
func (l *Ledger) StartBalance() decimal.Decimal { return l.start }

// SetStartBalance changes the starting balance. Recorded trades keep the
// balances they were created with.
func (l *Ledger) SetStartBalance(start decimal.Decimal) { l.start = start }

// Params returns the advisor inputs.
func (l *Ledger) Params() Params { return l.params }

// SetParams replaces the advisor inputs used for later suggestions.
func (l *Ledger) SetParams(p Params) { l.params = p }

// SuggestedStake is the advisor's stake for the next trade.
func (l *Ledger) SuggestedStake() decimal.Decimal {
	return SuggestStake(l.params.TargetAmount, l.RealizedPnL(), l.params.Payout, l.params.LockAfterTarget)
}

// RemainingTarget is the profit still needed today.
func (l *Ledger) RemainingTarget() decimal.Decimal {
	return Remaining(l.params.TargetAmount, l.RealizedPnL())
}

// RecordOutcome appends a trade. The stake is override when it is set and
// positive, otherwise the current suggestion. A non-positive effective stake
// leaves the ledger untouched and reports false.
func (l *Ledger) RecordOutcome(result model.Result, override decimal.NullDecimal) (model.Trade, bool) {
	if !result.Valid() {
		return model.Trade{}, false
	}

	stake := l.SuggestedStake()
	if override.Valid && override.Decimal.IsPositive() {
		stake = override.Decimal
	} else if override.Valid {
		// An explicit non-positive stake is rejected rather than replaced.
		return model.Trade{}, false
	}
	if !stake.IsPositive() {
		return model.Trade{}, false
	}

	payout := l.params.Payout
	pnl := stake.Neg()
	if result == model.Win {
		pnl = stake.Mul(payout)
	}
	pnl = money.Round(pnl)

	t := model.Trade{
		Seq:     len(l.trades) + 1,
		Stake:   money.Round(stake),
		Payout:  payout,
		Result:  result,
		PnL:     pnl,
		Balance: money.Round(l.CurrentBalance().Add(pnl)),
	}
	l.trades = append(l.trades, t)
	return t, true
}

// RealizedPnL is the sum of every trade's P&L.
func (l *Ledger) RealizedPnL() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range l.trades {
		sum = sum.Add(t.PnL)
	}
	return sum
}

// CurrentBalance is the start balance plus realized P&L.
func (l *Ledger) CurrentBalance() decimal.Decimal {
	return l.start.Add(l.RealizedPnL())
}

// CycleLossStreak is the total lost by the run of losses ending at the most
// recent trade; zero after a win or with no trades.
func (l *Ledger) CycleLossStreak() decimal.Decimal {
	sum := decimal.Zero
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].Result != model.Loss {
			break
		}
		sum = sum.Add(l.trades[i].PnL.Abs())
	}
	return sum
}

// Wins counts winning trades.
func (l *Ledger) Wins() int { return l.count(model.Win) }

// Losses counts losing trades.
func (l *Ledger) Losses() int { return l.count(model.Loss) }

// Len is the number of trades recorded.
func (l *Ledger) Len() int { return len(l.trades) }

func (l *Ledger) count(r model.Result) int {
	n := 0
	for _, t := range l.trades {
		if t.Result == r {
			n++
		}
	}
	return n
}

// Trades returns a copy of the recorded trades in order.
func (l *Ledger) Trades() []model.Trade {
	out := make([]model.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Seed replaces the ledger contents with previously saved trades, used when
// a closed day is reopened for editing.
func (l *Ledger) Seed(trades []model.Trade) {
	l.trades = make([]model.Trade, len(trades))
	copy(l.trades, trades)
}

// Reset clears the trades and keeps the starting balance.
func (l *Ledger) Reset() {
	l.trades = nil
}
