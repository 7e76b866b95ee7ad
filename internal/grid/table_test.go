package grid

import (
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sampleRows() []domain.GroupedRow {
	return []domain.GroupedRow{
		{
			Key: "hogar", Label: "Hogar",
			Months: domain.MonthValues{domain.Enero: d(100), domain.Febrero: d(-50), domain.Marzo: d(7)},
			Subcategories: []domain.GroupedSubRow{
				{Label: "Luz", Months: domain.MonthValues{domain.Enero: d(60)}},
				{Label: "Agua", Months: domain.MonthValues{domain.Enero: d(40)}},
			},
		},
		{
			Key: "ocio", Label: "Ocio",
			Months: domain.MonthValues{domain.Enero: d(10)},
			Subcategories: []domain.GroupedSubRow{
				{Label: "Cine", Months: domain.MonthValues{domain.Enero: d(10)}},
			},
		},
		{Key: "coche", Label: "Coche", Months: domain.MonthValues{domain.Enero: d(10)}},
		{Key: "banco", Label: "Banco"},
	}
}

func keys(refs []RowRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Key
	}
	return out
}

func labels(rows []domain.GroupedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Label
	}
	return out
}

func TestStateTransitionsDoNotAlias(t *testing.T) {
	s0 := NewState()
	s1 := s0.ToggleCategory("hogar")
	s2 := s1.ToggleCategory("ocio")

	assert.False(t, s0.IsExpanded("hogar"))
	assert.True(t, s1.IsExpanded("hogar"))
	assert.False(t, s1.IsExpanded("ocio"))
	assert.Equal(t, []string{"hogar", "ocio"}, s2.Expanded())

	s3 := s2.ToggleCategory("hogar")
	assert.Equal(t, []string{"ocio"}, s3.Expanded())
	assert.Equal(t, []string{"hogar", "ocio"}, s2.Expanded())
}

func TestSortCycle(t *testing.T) {
	s := NewState()
	assert.Equal(t, Unsorted, s.Sort().Dir)

	s = s.SortBy(ByMonth(domain.Enero))
	assert.Equal(t, Sort{Column: ByMonth(domain.Enero), Dir: Ascending}, s.Sort())
	s = s.SortBy(ByMonth(domain.Enero))
	assert.Equal(t, Descending, s.Sort().Dir)
	s = s.SortBy(ByMonth(domain.Enero))
	assert.Equal(t, Ascending, s.Sort().Dir)

	s = s.SortBy(ByMonth(domain.Enero)).SortBy(ByLabel())
	assert.Equal(t, Sort{Column: ByLabel(), Dir: Ascending}, s.Sort())
}

func TestSortDescendingReversesTies(t *testing.T) {
	rows := sampleRows()
	s := NewState().SortBy(ByMonth(domain.Enero))

	asc := labels(View(rows, s))
	assert.Equal(t, []string{"Banco", "Ocio", "Coche", "Hogar"}, asc)

	desc := labels(View(rows, s.SortBy(ByMonth(domain.Enero))))
	assert.Equal(t, []string{"Hogar", "Coche", "Ocio", "Banco"}, desc)

	// The input is left untouched.
	assert.Equal(t, []string{"Hogar", "Ocio", "Coche", "Banco"}, labels(rows))
}

func TestSortByLabelUsesCollation(t *testing.T) {
	rows := []domain.GroupedRow{{Key: "1", Label: "ocio"}, {Key: "2", Label: "Ñu"}, {Key: "3", Label: "Nómina"}, {Key: "4", Label: "alquiler"}}
	got := labels(View(rows, NewState().SortBy(ByLabel())))
	assert.Equal(t, []string{"alquiler", "Nómina", "Ñu", "ocio"}, got)
}

func TestSortByTotalUsesActiveMonths(t *testing.T) {
	rows := sampleRows()
	s := NewState().ToggleColumn(domain.Marzo).SortBy(ByTotal())
	// Hogar totals 50 without marzo, so it stays the largest.
	got := labels(View(rows, s))
	assert.Equal(t, []string{"Banco", "Ocio", "Coche", "Hogar"}, got)
}

func TestFilterIsCaseInsensitiveAndHidesChildren(t *testing.T) {
	rows := sampleRows()
	s := NewState().ToggleCategory("hogar").ToggleCategory("ocio").FilterByLabel("OC")

	view := View(rows, s)
	assert.Equal(t, []string{"Ocio", "Coche"}, labels(view))
	assert.Equal(t, []string{"cat:ocio", "cat:ocio/sub:0", "cat:coche"}, keys(Layout(view, s)))

	// A subcategory label alone never matches.
	assert.Empty(t, View(rows, NewState().FilterByLabel("luz")))
}

func TestLayoutInterleavesExpandedSubcategories(t *testing.T) {
	rows := sampleRows()
	s := NewState().ToggleCategory("hogar")
	layout := Layout(View(rows, s), s)
	assert.Equal(t, []string{"cat:hogar", "cat:hogar/sub:0", "cat:hogar/sub:1", "cat:ocio", "cat:coche", "cat:banco"}, keys(layout))
}

func TestPanesShareRowOrder(t *testing.T) {
	rows := sampleRows()
	states := []State{
		NewState(),
		NewState().ToggleCategory("hogar"),
		NewState().ToggleCategory("hogar").ToggleCategory("ocio"),
		NewState().ToggleCategory("ocio").SortBy(ByMonth(domain.Enero)).SortBy(ByMonth(domain.Enero)),
		NewState().ToggleCategory("hogar").FilterByLabel("o").ToggleColumn(domain.Enero),
		NewState().ToggleCategory("missing"),
	}
	for _, s := range states {
		table := Build(rows, s)
		require.Len(t, table.Right, len(table.Left))
		for i := range table.Left {
			assert.Equal(t, table.Left[i].Key, table.Right[i].Key)
		}
	}
}

func TestLeftRowsMarkExpansion(t *testing.T) {
	s := NewState().ToggleCategory("hogar")
	table := Build(sampleRows(), s)
	assert.True(t, table.Left[0].Expandable)
	assert.True(t, table.Left[0].Expanded)
	assert.Equal(t, 1, table.Left[1].Depth)
	assert.Equal(t, "Luz", table.Left[1].Label)
	assert.False(t, table.Left[len(table.Left)-1].Expandable)
}

func TestFooterUsesActiveColumnsOnly(t *testing.T) {
	rows := []domain.GroupedRow{{
		Key: "hogar", Label: "Hogar",
		Months: domain.MonthValues{domain.Enero: d(100), domain.Febrero: d(-50), domain.Marzo: d(1000)},
	}}
	s := NewState()
	for _, m := range domain.Months[2:] {
		s = s.ToggleColumn(m)
	}
	require.Equal(t, []domain.Month{domain.Enero, domain.Febrero}, s.ActiveMonths())

	table := Build(rows, s)
	assert.True(t, table.Right[0].Total.Equal(d(50)))
	assert.True(t, table.Footer.Total.Equal(d(50)))
	require.Len(t, table.Footer.Cells, 2)
	assert.True(t, table.Footer.Cells[0].Equal(d(100)))
	assert.True(t, table.Footer.Cells[1].Equal(d(-50)))
}

func TestFooterUsesFilteredRowsOnly(t *testing.T) {
	s := NewState().FilterByLabel("hog")
	footer := Build(sampleRows(), s).Footer
	assert.True(t, footer.Total.Equal(d(57)))
}

func TestToggleColumnKeepsCalendarOrder(t *testing.T) {
	s := NewState().ToggleColumn(domain.Enero).ToggleColumn(domain.Marzo).ToggleColumn(domain.Enero)
	got := s.ActiveMonths()
	assert.Equal(t, domain.Enero, got[0])
	assert.False(t, s.IsActive(domain.Marzo))
	assert.Len(t, got, 11)

	assert.Equal(t, s.ActiveMonths(), s.ToggleColumn("brumario").ActiveMonths())
}
