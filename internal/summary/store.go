// Package summary builds closed-out day summaries, keeps them in a
// copy-on-write store keyed by ISO date, and re-chains balances forward
// after a day is inserted or edited.
package summary

import (
	"encoding/json"
	"sort"

	"github.com/atmx/daybook/internal/model"
)

// Store maps ISO dates to day summaries. A Store is an immutable value:
// every mutating method returns a new Store and leaves the receiver intact,
// so a snapshot handed to a reader stays valid while the owner moves on.
// The zero value is an empty store.
type Store struct {
	days map[string]model.DaySummary
}

// NewStore builds a store from summaries keyed by their own Date.
func NewStore(days ...model.DaySummary) Store {
	m := make(map[string]model.DaySummary, len(days))
	for _, s := range days {
		m[s.Date] = s.Clone()
	}
	return Store{days: m}
}

func (s Store) clone(extra int) map[string]model.DaySummary {
	m := make(map[string]model.DaySummary, len(s.days)+extra)
	for k, v := range s.days {
		m[k] = v
	}
	return m
}

// Upsert returns a store with sum stored under sum.Date.
func (s Store) Upsert(sum model.DaySummary) Store {
	m := s.clone(1)
	m[sum.Date] = sum.Clone()
	return Store{days: m}
}

// Delete returns a store without date. Deleting an absent date returns s.
func (s Store) Delete(date string) Store {
	if _, ok := s.days[date]; !ok {
		return s
	}
	m := s.clone(0)
	delete(m, date)
	return Store{days: m}
}

// Get returns the summary for date.
func (s Store) Get(date string) (model.DaySummary, bool) {
	sum, ok := s.days[date]
	if !ok {
		return model.DaySummary{}, false
	}
	return sum.Clone(), true
}

// Has reports whether date is present.
func (s Store) Has(date string) bool {
	_, ok := s.days[date]
	return ok
}

// Len is the number of stored days.
func (s Store) Len() int { return len(s.days) }

// All returns every summary in no particular order.
func (s Store) All() []model.DaySummary {
	out := make([]model.DaySummary, 0, len(s.days))
	for _, v := range s.days {
		out = append(out, v.Clone())
	}
	return out
}

// Dates returns the stored dates in ascending order.
func (s Store) Dates() []string {
	keys := make([]string, 0, len(s.days))
	for k := range s.days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sorted returns every summary ordered by date ascending.
func (s Store) Sorted() []model.DaySummary {
	dates := s.Dates()
	out := make([]model.DaySummary, len(dates))
	for i, k := range dates {
		out[i] = s.days[k].Clone()
	}
	return out
}

// Map returns a copy of the underlying mapping.
func (s Store) Map() map[string]model.DaySummary {
	m := make(map[string]model.DaySummary, len(s.days))
	for k, v := range s.days {
		m[k] = v.Clone()
	}
	return m
}

// MarshalJSON encodes the store as a date-keyed object with money written
// as JSON numbers, matching the po_day_summaries_v6 snapshot format.
func (s Store) MarshalJSON() ([]byte, error) {
	out := make(map[string]wireDay, len(s.days))
	for k, v := range s.days {
		out[k] = toWire(v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a date-keyed object. Money may be numbers or
// strings. Keys are authoritative: every summary's Date is set to its key.
func (s *Store) UnmarshalJSON(data []byte) error {
	var m map[string]model.DaySummary
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	days := make(map[string]model.DaySummary, len(m))
	for k, v := range m {
		v.Date = k
		days[k] = v
	}
	s.days = days
	return nil
}
