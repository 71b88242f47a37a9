package summary

import "sort"

// RecalcForward re-chains every day after date so that each day starts at
// the previous day's end balance. A later day's own PnL and trade log are
// trusted and never recomputed; only its start and end balances move.
// Days up to and including date are left as they are.
//
// It returns the new store and how many days were rewritten. An absent date
// returns s unchanged with zero rewrites.
func RecalcForward(s Store, date string) (Store, int) {
	dates := s.Dates()
	idx := sort.SearchStrings(dates, date)
	if idx == len(dates) || dates[idx] != date {
		return s, 0
	}
	if idx == len(dates)-1 {
		return s, 0
	}

	m := s.clone(0)
	carry := m[date].EndBalance
	rewritten := 0
	for _, k := range dates[idx+1:] {
		day := m[k]
		day.StartBalance = carry
		day.EndBalance = carry.Add(day.PnL)
		m[k] = day
		carry = day.EndBalance
		rewritten++
	}
	return Store{days: m}, rewritten
}
