// Package grid holds the pure logic behind the two-pane monthly summary
// table: the view state reducer, the row layout shared by both panes, the
// footer totals and the vertical scroll synchronisation.
package grid

import (
	"sort"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// SortDir is the direction of the category sort.
type SortDir int

const (
	Unsorted SortDir = iota
	Ascending
	Descending
)

func (d SortDir) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return "none"
	}
}

// ColumnKind distinguishes the sortable columns.
type ColumnKind int

const (
	LabelColumn ColumnKind = iota
	MonthColumn
	TotalColumn
)

// Column identifies a sortable column. Month is set for month columns only.
type Column struct {
	Kind  ColumnKind
	Month domain.Month
}

// ByLabel, ByMonth and ByTotal build columns.
func ByLabel() Column               { return Column{Kind: LabelColumn} }
func ByMonth(m domain.Month) Column { return Column{Kind: MonthColumn, Month: m} }
func ByTotal() Column               { return Column{Kind: TotalColumn} }

func (c Column) String() string {
	switch c.Kind {
	case MonthColumn:
		return string(c.Month)
	case TotalColumn:
		return "total"
	default:
		return "categoria"
	}
}

// Sort is the active sort.
type Sort struct {
	Column Column
	Dir    SortDir
}

// State is the view state of the table. Every transition returns a new
// State and leaves the receiver untouched.
type State struct {
	expanded map[string]struct{}
	sort     Sort
	filter   string
	active   []domain.Month
}

// NewState returns a state with every month active and nothing expanded.
func NewState() State {
	return State{active: domain.AllMonths()}
}

// ToggleCategory flips the expansion of the category with the given key.
func (s State) ToggleCategory(key string) State {
	next := make(map[string]struct{}, len(s.expanded)+1)
	for k := range s.expanded {
		next[k] = struct{}{}
	}
	if _, ok := next[key]; ok {
		delete(next, key)
	} else {
		next[key] = struct{}{}
	}
	s.expanded = next
	return s
}

// IsExpanded reports whether the category with key is expanded.
func (s State) IsExpanded(key string) bool {
	_, ok := s.expanded[key]
	return ok
}

// Expanded returns the expanded keys in lexical order.
func (s State) Expanded() []string {
	out := make([]string, 0, len(s.expanded))
	for k := range s.expanded {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SortBy advances the sort cycle. A column that is not the current sort
// column starts ascending; the current one alternates between ascending
// and descending.
func (s State) SortBy(col Column) State {
	if s.sort.Dir == Unsorted || s.sort.Column != col {
		s.sort = Sort{Column: col, Dir: Ascending}
		return s
	}
	if s.sort.Dir == Ascending {
		s.sort.Dir = Descending
	} else {
		s.sort.Dir = Ascending
	}
	return s
}

// Sort returns the active sort.
func (s State) Sort() Sort { return s.sort }

// FilterByLabel sets the category label filter. Matching is a case
// insensitive substring test.
func (s State) FilterByLabel(text string) State {
	s.filter = text
	return s
}

// Filter returns the label filter.
func (s State) Filter() string { return s.filter }

// ToggleColumn adds or removes a month from the visible columns. Active
// months always stay in calendar order.
func (s State) ToggleColumn(m domain.Month) State {
	if m.Number() == 0 {
		return s
	}
	on := make(map[domain.Month]bool, len(s.active)+1)
	for _, a := range s.active {
		on[a] = true
	}
	on[m] = !on[m]

	next := make([]domain.Month, 0, len(domain.Months))
	for _, candidate := range domain.Months {
		if on[candidate] {
			next = append(next, candidate)
		}
	}
	s.active = next
	return s
}

// ActiveMonths returns a copy of the visible months.
func (s State) ActiveMonths() []domain.Month {
	return append([]domain.Month(nil), s.active...)
}

// IsActive reports whether m is visible.
func (s State) IsActive(m domain.Month) bool {
	for _, a := range s.active {
		if a == m {
			return true
		}
	}
	return false
}

func (s State) matches(label string) bool {
	if s.filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(label), strings.ToLower(s.filter))
}
