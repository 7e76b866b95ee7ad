package bigquery

import "github.com/dvloznov/finance-ledger/internal/domain"

// foldCategories groups category/subcategory join rows into a tree. Rows
// must arrive ordered by category; each category keeps a non-nil
// subcategory slice so it encodes as [].
func foldCategories(rows []CategoryRow) []domain.Category {
	tree := make([]domain.Category, 0)
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.IDCategoria]
		if !ok {
			i = len(tree)
			index[r.IDCategoria] = i
			tree = append(tree, domain.Category{
				Label:         r.Categoria,
				Value:         domain.ID(r.IDCategoria),
				Subcategories: []domain.Subcategory{},
			})
		}
		if !r.IDSubcategoria.Valid {
			continue
		}
		tree[i].Subcategories = append(tree[i].Subcategories, domain.Subcategory{
			Label:      r.SubCategoria.StringVal,
			Value:      domain.ID(r.IDSubcategoria.StringVal),
			CategoryID: domain.ID(r.IDCategoria),
		})
	}
	return tree
}
