package summary

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/daybook/internal/ledger"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/money"
)

// Build closes out a day from its trades. The trades are copied, so later
// changes to the caller's slice never reach the summary.
func Build(date string, start decimal.Decimal, trades []model.Trade, target, payout decimal.Decimal) model.DaySummary {
	log := make([]model.Trade, len(trades))
	copy(log, trades)

	pnl := decimal.Zero
	wins, losses := 0, 0
	for _, t := range log {
		pnl = pnl.Add(t.PnL)
		switch t.Result {
		case model.Win:
			wins++
		case model.Loss:
			losses++
		}
	}

	return model.DaySummary{
		Date:         date,
		StartBalance: start,
		EndBalance:   start.Add(pnl),
		PnL:          pnl,
		Trades:       len(log),
		Wins:         wins,
		Losses:       losses,
		WinRate:      money.Percent(decimal.NewFromInt(int64(wins)), decimal.NewFromInt(int64(len(log)))),
		TargetAmount: target,
		Payout:       payout,
		TradesLog:    log,
	}
}

// FromLedger closes out the open ledger for date using its start balance
// and advisor parameters.
func FromLedger(date string, l *ledger.Ledger) model.DaySummary {
	p := l.Params()
	return Build(date, l.StartBalance(), l.Trades(), p.TargetAmount, p.Payout)
}
