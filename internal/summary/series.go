package summary

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/daybook/internal/calendar"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/money"
)

// Filter names a quick date-range preset.
type Filter string

const (
	FilterAll   Filter = "all"
	FilterWeek  Filter = "week"
	FilterMonth Filter = "month"
)

// Point is one day in the equity chart.
type Point struct {
	Date       string          `json:"date"` // MM-DD
	PnL        decimal.Decimal `json:"pnl"`
	EndBalance decimal.Decimal `json:"endBalance"`
}

// Totals aggregates a range of days.
type Totals struct {
	Days    int             `json:"days"`
	PnL     decimal.Decimal `json:"pnl"`
	Trades  int             `json:"trades"`
	Wins    int             `json:"wins"`
	Losses  int             `json:"losses"`
	WinRate decimal.Decimal `json:"winRate"`
}

// Bounds resolves a preset into an inclusive from..to range. Week and month
// are anchored on anchor (the trading date); all spans the stored days, or
// just anchor when the store is empty.
func (s Store) Bounds(f Filter, anchor string) (from, to string) {
	switch f {
	case FilterWeek:
		return calendar.WeekRange(anchor)
	case FilterMonth:
		return calendar.MonthRange(anchor)
	}
	dates := s.Dates()
	if len(dates) == 0 {
		return anchor, anchor
	}
	return dates[0], dates[len(dates)-1]
}

// Range returns the days with from <= date <= to in ascending order. A blank
// bound is open.
func (s Store) Range(from, to string) []model.DaySummary {
	var out []model.DaySummary
	for _, day := range s.Sorted() {
		if from != "" && day.Date < from {
			continue
		}
		if to != "" && day.Date > to {
			continue
		}
		out = append(out, day)
	}
	return out
}

// Series returns chart points for the days in from..to.
func (s Store) Series(from, to string) []Point {
	days := s.Range(from, to)
	points := make([]Point, 0, len(days))
	for _, day := range days {
		label := day.Date
		if len(label) >= 10 {
			label = label[5:]
		}
		points = append(points, Point{Date: label, PnL: day.PnL, EndBalance: day.EndBalance})
	}
	return points
}

// Totals aggregates the days in from..to.
func (s Store) Totals(from, to string) Totals {
	t := Totals{PnL: decimal.Zero}
	for _, day := range s.Range(from, to) {
		t.Days++
		t.PnL = t.PnL.Add(day.PnL)
		t.Trades += day.Trades
		t.Wins += day.Wins
		t.Losses += day.Losses
	}
	t.WinRate = money.Percent(decimal.NewFromInt(int64(t.Wins)), decimal.NewFromInt(int64(t.Trades)))
	return t
}
