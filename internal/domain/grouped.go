package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MonthValues holds one amount per month. Missing months read as zero.
type MonthValues map[Month]decimal.Decimal

// Get returns the value for m, or zero when absent.
func (v MonthValues) Get(m Month) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return v[m]
}

// Sum adds the values of the given months only.
func (v MonthValues) Sum(months []Month) decimal.Decimal {
	total := decimal.Zero
	for _, m := range months {
		total = total.Add(v.Get(m))
	}
	return total
}

// GroupedSubRow is the per-month aggregate of one subcategory.
type GroupedSubRow struct {
	Label  string
	Months MonthValues
}

// GroupedRow is the per-month aggregate of one category along with its
// subcategory breakdown, as returned by the grouped summary endpoint.
type GroupedRow struct {
	// Key identifies the category across renders. It is the category id
	// when the backend sends one and the label otherwise.
	Key           string
	Label         string
	Months        MonthValues
	Subcategories []GroupedSubRow
}

// UnmarshalJSON decodes the flat wire shape
// {categoria, id_categoria?, enero..diciembre, subcategorias:[...]}.
// Missing or malformed month values decode as zero.
func (r *GroupedRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode grouped row: %w", err)
	}

	var label string
	if v, ok := raw["categoria"]; ok {
		_ = json.Unmarshal(v, &label)
	}
	var id ID
	if v, ok := raw["id_categoria"]; ok {
		_ = id.UnmarshalJSON(v)
	}

	r.Label = label
	r.Key = label
	if !id.IsZero() {
		r.Key = id.String()
	}
	r.Months = decodeMonths(raw)
	r.Subcategories = nil

	subs, ok := raw["subcategorias"]
	if !ok {
		subs, ok = raw["sub_categorias"]
	}
	if !ok {
		return nil
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(subs, &items); err != nil {
		// A null or malformed breakdown leaves the category without children.
		return nil
	}
	for _, item := range items {
		var sub GroupedSubRow
		for _, field := range []string{"sub_categoria", "subcategoria", "label"} {
			if v, ok := item[field]; ok {
				if err := json.Unmarshal(v, &sub.Label); err == nil && sub.Label != "" {
					break
				}
			}
		}
		sub.Months = decodeMonths(item)
		r.Subcategories = append(r.Subcategories, sub)
	}
	return nil
}

// MarshalJSON writes the same flat shape UnmarshalJSON reads.
func (r GroupedRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(Months)+3)
	out["categoria"] = r.Label
	if r.Key != "" && r.Key != r.Label {
		out["id_categoria"] = r.Key
	}
	for _, m := range Months {
		out[string(m)] = r.Months.Get(m)
	}
	subs := make([]map[string]any, 0, len(r.Subcategories))
	for _, s := range r.Subcategories {
		item := make(map[string]any, len(Months)+1)
		item["sub_categoria"] = s.Label
		for _, m := range Months {
			item[string(m)] = s.Months.Get(m)
		}
		subs = append(subs, item)
	}
	out["subcategorias"] = subs
	return json.Marshal(out)
}

func decodeMonths(raw map[string]json.RawMessage) MonthValues {
	values := make(MonthValues, len(Months))
	for _, m := range Months {
		v, ok := raw[string(m)]
		if !ok {
			continue
		}
		var d decimal.Decimal
		if err := d.UnmarshalJSON(v); err != nil {
			continue
		}
		values[m] = d
	}
	return values
}
