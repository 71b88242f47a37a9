// Package calendar implements the ISO date arithmetic behind the trading
// calendar: day stepping, Monday-based weeks, month bounds and the 42-cell
// month grid shown by the calendar view.
package calendar

import (
	"time"
)

// Layout is the ISO date format used for every summary key.
const Layout = "2006-01-02"

// GridSize is the number of cells in a month grid (six full weeks).
const GridSize = 42

// Cell is one day in a month grid.
type Cell struct {
	ISO     string `json:"iso"`
	InMonth bool   `json:"in_month"`
	Day     int    `json:"day"`
	Weekday int    `json:"dow"` // 0 = Monday
}

// Parse reads an ISO date as midnight UTC.
func Parse(iso string) (time.Time, error) {
	return time.Parse(Layout, iso)
}

// Format renders t as an ISO date.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Valid reports whether iso is a well-formed calendar date.
func Valid(iso string) bool {
	_, err := Parse(iso)
	return err == nil
}

// Today returns the ISO date of now in now's location.
func Today(now time.Time) string {
	return Format(now)
}

// AddDays steps iso by n days. Malformed input is returned unchanged.
func AddDays(iso string, n int) string {
	t, err := Parse(iso)
	if err != nil {
		return iso
	}
	return Format(t.AddDate(0, 0, n))
}

// mondayIndex maps time.Weekday to 0 = Monday .. 6 = Sunday.
func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the Monday of t's week.
func StartOfWeek(t time.Time) time.Time {
	t = midnight(t)
	return t.AddDate(0, 0, -mondayIndex(t.Weekday()))
}

// EndOfWeek returns the Sunday of t's week.
func EndOfWeek(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 6)
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}

// WeekRange returns the Monday..Sunday bounds of the week containing iso.
func WeekRange(iso string) (from, to string) {
	t, err := Parse(iso)
	if err != nil {
		return iso, iso
	}
	return Format(StartOfWeek(t)), Format(EndOfWeek(t))
}

// MonthRange returns the first..last day bounds of the month containing iso.
func MonthRange(iso string) (from, to string) {
	t, err := Parse(iso)
	if err != nil {
		return iso, iso
	}
	return Format(StartOfMonth(t)), Format(EndOfMonth(t))
}

// MonthGrid lays out the display month as six Monday-aligned weeks. The
// first cell is the Monday on or before the 1st of the month.
func MonthGrid(year int, month time.Month) [GridSize]Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -mondayIndex(first.Weekday()))

	var cells [GridSize]Cell
	for i := range cells {
		day := start.AddDate(0, 0, i)
		cells[i] = Cell{
			ISO:     Format(day),
			InMonth: day.Month() == first.Month(),
			Day:     day.Day(),
			Weekday: mondayIndex(day.Weekday()),
		}
	}
	return cells
}

// ShiftMonth moves a (year, month) pair by n months, for calendar navigation.
func ShiftMonth(year int, month time.Month, n int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return t.Year(), t.Month()
}
