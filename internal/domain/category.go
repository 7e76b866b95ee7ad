package domain

// Category is the first level of the classification tree.
type Category struct {
	Label         string        `json:"label"`
	Value         ID            `json:"value"`
	Subcategories []Subcategory `json:"sub_categorias"`
}

// Subcategory always belongs to exactly one category.
type Subcategory struct {
	Label      string `json:"label"`
	Value      ID     `json:"value"`
	CategoryID ID     `json:"id_categoria,omitempty"`
}

// FindCategory returns the category with the given id.
func FindCategory(tree []Category, id ID) (Category, bool) {
	for _, c := range tree {
		if c.Value == id {
			return c, true
		}
	}
	return Category{}, false
}

// FindSubcategory returns the subcategory with the given id and its parent.
func FindSubcategory(tree []Category, id ID) (Subcategory, Category, bool) {
	for _, c := range tree {
		for _, s := range c.Subcategories {
			if s.Value == id {
				if s.CategoryID.IsZero() {
					s.CategoryID = c.Value
				}
				return s, c, true
			}
		}
	}
	return Subcategory{}, Category{}, false
}

// Suggestion is a proposed category for one uncategorized staging row.
type Suggestion struct {
	ID            ID `json:"id"`
	CategoryID    ID `json:"id_categoria"`
	SubcategoryID ID `json:"id_subcategoria,omitempty"`
}
