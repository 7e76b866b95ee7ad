package grid

import (
	"fmt"
	"sort"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// RowKind tells category rows from subcategory rows.
type RowKind int

const (
	CategoryRow RowKind = iota
	SubcategoryRow
)

// RowRef is one logical row of the table. Both panes render the same
// sequence of RowRefs.
type RowRef struct {
	Key      string
	Kind     RowKind
	Category int
	// Sub is the subcategory index, or -1 for category rows.
	Sub int
}

// LeftRow is a row of the frozen label pane.
type LeftRow struct {
	Key        string
	Label      string
	Depth      int
	Expandable bool
	Expanded   bool
}

// RightRow is a row of the value pane: one cell per active month and the
// row total.
type RightRow struct {
	Key   string
	Cells []decimal.Decimal
	Total decimal.Decimal
}

// FooterRow holds the column totals of the visible category rows.
type FooterRow struct {
	Cells []decimal.Decimal
	Total decimal.Decimal
}

// Table is everything needed to draw one frame.
type Table struct {
	Months []domain.Month
	View   []domain.GroupedRow
	Layout []RowRef
	Left   []LeftRow
	Right  []RightRow
	Footer FooterRow
}

// Build derives a frame from the fetched rows and the view state.
func Build(rows []domain.GroupedRow, s State) Table {
	view := View(rows, s)
	layout := Layout(view, s)
	return Table{
		Months: s.ActiveMonths(),
		View:   view,
		Layout: layout,
		Left:   LeftRows(view, layout, s),
		Right:  RightRows(view, layout, s),
		Footer: Footer(view, s),
	}
}

// View filters the categories by label and then sorts them. Subcategory
// order is never changed. Descending order is the exact reverse of the
// stable ascending order.
func View(rows []domain.GroupedRow, s State) []domain.GroupedRow {
	view := make([]domain.GroupedRow, 0, len(rows))
	for _, r := range rows {
		if s.matches(r.Label) {
			view = append(view, r)
		}
	}
	if s.sort.Dir == Unsorted {
		return view
	}

	active := s.ActiveMonths()
	col := s.sort.Column
	var less func(a, b domain.GroupedRow) bool
	switch col.Kind {
	case LabelColumn:
		c := collate.New(language.Spanish, collate.IgnoreCase)
		less = func(a, b domain.GroupedRow) bool { return c.CompareString(a.Label, b.Label) < 0 }
	case MonthColumn:
		less = func(a, b domain.GroupedRow) bool {
			return a.Months.Get(col.Month).LessThan(b.Months.Get(col.Month))
		}
	case TotalColumn:
		less = func(a, b domain.GroupedRow) bool {
			return RowTotal(a, active).LessThan(RowTotal(b, active))
		}
	}
	sort.SliceStable(view, func(i, j int) bool { return less(view[i], view[j]) })

	if s.sort.Dir == Descending {
		for i, j := 0, len(view)-1; i < j; i, j = i+1, j-1 {
			view[i], view[j] = view[j], view[i]
		}
	}
	return view
}

// Layout returns the ordered logical rows. Subcategories of an expanded
// category follow it directly.
func Layout(view []domain.GroupedRow, s State) []RowRef {
	out := make([]RowRef, 0, len(view))
	for ci, r := range view {
		key := categoryKey(r)
		out = append(out, RowRef{Key: key, Kind: CategoryRow, Category: ci, Sub: -1})
		if !s.IsExpanded(r.Key) {
			continue
		}
		for si := range r.Subcategories {
			out = append(out, RowRef{
				Key:      fmt.Sprintf("%s/sub:%d", key, si),
				Kind:     SubcategoryRow,
				Category: ci,
				Sub:      si,
			})
		}
	}
	return out
}

func categoryKey(r domain.GroupedRow) string {
	return "cat:" + r.Key
}

// LeftRows renders the label pane from the layout.
func LeftRows(view []domain.GroupedRow, layout []RowRef, s State) []LeftRow {
	out := make([]LeftRow, len(layout))
	for i, ref := range layout {
		cat := view[ref.Category]
		if ref.Kind == SubcategoryRow {
			out[i] = LeftRow{Key: ref.Key, Label: cat.Subcategories[ref.Sub].Label, Depth: 1}
			continue
		}
		out[i] = LeftRow{
			Key:        ref.Key,
			Label:      cat.Label,
			Expandable: len(cat.Subcategories) > 0,
			Expanded:   s.IsExpanded(cat.Key),
		}
	}
	return out
}

// RightRows renders the value pane from the layout.
func RightRows(view []domain.GroupedRow, layout []RowRef, s State) []RightRow {
	active := s.ActiveMonths()
	out := make([]RightRow, len(layout))
	for i, ref := range layout {
		values := view[ref.Category].Months
		if ref.Kind == SubcategoryRow {
			values = view[ref.Category].Subcategories[ref.Sub].Months
		}
		cells := make([]decimal.Decimal, len(active))
		for j, m := range active {
			cells[j] = values.Get(m)
		}
		out[i] = RightRow{Key: ref.Key, Cells: cells, Total: values.Sum(active)}
	}
	return out
}

// RowTotal sums the active months of a category row.
func RowTotal(r domain.GroupedRow, active []domain.Month) decimal.Decimal {
	return r.Months.Sum(active)
}

// Footer totals every active month over the category rows of view.
func Footer(view []domain.GroupedRow, s State) FooterRow {
	active := s.ActiveMonths()
	footer := FooterRow{Cells: make([]decimal.Decimal, len(active)), Total: decimal.Zero}
	for j := range footer.Cells {
		footer.Cells[j] = decimal.Zero
	}
	for _, r := range view {
		for j, m := range active {
			footer.Cells[j] = footer.Cells[j].Add(r.Months.Get(m))
		}
		footer.Total = footer.Total.Add(RowTotal(r, active))
	}
	return footer
}
