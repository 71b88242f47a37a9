package summary

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/atmx/daybook/internal/model"
)

// wireDay is the persisted form of a model.DaySummary.
type wireDay struct {
	Date         string      `json:"date"`
	StartBalance json.Number `json:"startBalance"`
	EndBalance   json.Number `json:"endBalance"`
	PnL          json.Number `json:"pnl"`
	Trades       int         `json:"trades"`
	Wins         int         `json:"wins"`
	Losses       int         `json:"losses"`
	WinRate      json.Number `json:"winRate"`
	TargetAmount json.Number `json:"targetAmount"`
	Payout       json.Number `json:"payout"`
	TradesLog    []wireTrade `json:"tradesLog"`
}

// wireTrade is the persisted form of a model.Trade.
type wireTrade struct {
	Seq     int          `json:"id"`
	Stake   json.Number  `json:"stake"`
	Payout  json.Number  `json:"payout"`
	Result  model.Result `json:"result"`
	PnL     json.Number  `json:"pnl"`
	Balance json.Number  `json:"balance"`
}

func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toWire(s model.DaySummary) wireDay {
	trades := make([]wireTrade, len(s.TradesLog))
	for i, t := range s.TradesLog {
		trades[i] = wireTrade{
			Seq:     t.Seq,
			Stake:   num(t.Stake),
			Payout:  num(t.Payout),
			Result:  t.Result,
			PnL:     num(t.PnL),
			Balance: num(t.Balance),
		}
	}
	return wireDay{
		Date:         s.Date,
		StartBalance: num(s.StartBalance),
		EndBalance:   num(s.EndBalance),
		PnL:          num(s.PnL),
		Trades:       s.Trades,
		Wins:         s.Wins,
		Losses:       s.Losses,
		WinRate:      num(s.WinRate),
		TargetAmount: num(s.TargetAmount),
		Payout:       num(s.Payout),
		TradesLog:    trades,
	}
}
