package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// Labels of the buckets that collect rows without a category or
// subcategory.
const (
	UncategorizedLabel = "Sin categoría"
	NoSubcategoryLabel = "Sin subcategoría"
)

// GroupedTxns aggregates a year of the ledger by category, subcategory and
// month. A non-positive year selects the current one.
func (r *Repository) GroupedTxns(ctx context.Context, schema string, year int) ([]domain.GroupedRow, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return nil, fmt.Errorf("GroupedTxns: %w", err)
	}
	if year <= 0 {
		year = time.Now().Year()
	}

	q := r.query(fmt.Sprintf(`
		SELECT
		  t.id_categoria,
		  COALESCE(c.label, @uncategorized) AS categoria,
		  sc.label AS sub_categoria,
		  EXTRACT(MONTH FROM t.fecha) AS mes,
		  SUM(t.valor) AS total
		FROM %s t
		LEFT JOIN %s c ON c.id = t.id_categoria
		LEFT JOIN %s sc ON sc.id = t.id_subcategoria
		WHERE EXTRACT(YEAR FROM t.fecha) = @year
		GROUP BY 1, 2, 3, 4
		ORDER BY categoria, sub_categoria, mes
	`, s.ref(s.ledger), s.ref(categoriesTable), s.ref(subcategoriesTable)),
		bigquery.QueryParameter{Name: "year", Value: year},
		bigquery.QueryParameter{Name: "uncategorized", Value: UncategorizedLabel},
	)

	rows, err := readAll[GroupedRow](ctx, "GroupedTxns", q)
	if err != nil {
		return nil, err
	}
	return foldGrouped(rows), nil
}

// foldGrouped turns (category, subcategory, month) aggregates into one row
// per category whose months sum all of its subcategories. Categories keep
// the order of their first appearance; rows with an unknown category id
// fall into the uncategorized bucket, keyed by its label.
func foldGrouped(rows []GroupedRow) []domain.GroupedRow {
	out := make([]domain.GroupedRow, 0)
	cats := make(map[string]int)
	subs := make(map[string]map[string]int)

	for _, r := range rows {
		month := domain.MonthOf(time.Month(r.Mes))
		if month == "" {
			continue
		}
		amount := ratToDecimal(r.Total)

		key, label := r.IDCategoria.StringVal, r.Categoria
		if !r.IDCategoria.Valid || label == UncategorizedLabel {
			key, label = UncategorizedLabel, UncategorizedLabel
		}
		i, ok := cats[key]
		if !ok {
			i = len(out)
			cats[key] = i
			subs[key] = make(map[string]int)
			out = append(out, domain.GroupedRow{
				Key:    key,
				Label:  label,
				Months: domain.MonthValues{},
			})
		}
		row := &out[i]
		row.Months[month] = row.Months.Get(month).Add(amount)

		subLabel := NoSubcategoryLabel
		if r.SubCategoria.Valid && r.SubCategoria.StringVal != "" {
			subLabel = r.SubCategoria.StringVal
		}
		j, ok := subs[key][subLabel]
		if !ok {
			j = len(row.Subcategories)
			subs[key][subLabel] = j
			row.Subcategories = append(row.Subcategories, domain.GroupedSubRow{
				Label:  subLabel,
				Months: domain.MonthValues{},
			})
		}
		sub := &row.Subcategories[j]
		sub.Months[month] = sub.Months.Get(month).Add(amount)
	}
	return out
}
