package categories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

var (
	ErrEmptyLabel          = errors.New("label must not be empty")
	ErrDuplicateLabel      = errors.New("label already exists")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrUnknownSubcategory  = errors.New("unknown subcategory")
	ErrSubcategoryMismatch = errors.New("subcategory does not belong to category")
)

// Validator checks labels and assignments against a category tree. Lookups
// are keyed by id; labels are only compared for uniqueness.
type Validator struct {
	labels     map[string]domain.ID
	categories map[domain.ID]domain.Category
	parents    map[domain.ID]domain.ID
}

// NewValidator indexes tree.
func NewValidator(tree []domain.Category) *Validator {
	v := &Validator{
		labels:     make(map[string]domain.ID, len(tree)),
		categories: make(map[domain.ID]domain.Category, len(tree)),
		parents:    make(map[domain.ID]domain.ID),
	}
	for _, c := range tree {
		v.labels[normalizeLabel(c.Label)] = c.Value
		v.categories[c.Value] = c
		for _, s := range c.Subcategories {
			v.parents[s.Value] = c.Value
		}
	}
	return v
}

// ValidateNewCategory rejects empty labels and labels already used by a
// category other than self (pass "" when creating).
func (v *Validator) ValidateNewCategory(label string, self domain.ID) error {
	norm := normalizeLabel(label)
	if norm == "" {
		return ErrEmptyLabel
	}
	if id, ok := v.labels[norm]; ok && id != self {
		return fmt.Errorf("%w: category %q", ErrDuplicateLabel, strings.TrimSpace(label))
	}
	return nil
}

// ValidateNewSubcategory rejects empty labels, unknown parents and labels
// already used inside the same category by another subcategory.
func (v *Validator) ValidateNewSubcategory(categoryID domain.ID, label string, self domain.ID) error {
	norm := normalizeLabel(label)
	if norm == "" {
		return ErrEmptyLabel
	}
	cat, ok := v.categories[categoryID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	for _, s := range cat.Subcategories {
		if normalizeLabel(s.Label) == norm && s.Value != self {
			return fmt.Errorf("%w: subcategory %q in %q", ErrDuplicateLabel, strings.TrimSpace(label), cat.Label)
		}
	}
	return nil
}

// ValidateAssignment checks that categoryID exists and, when set, that
// subcategoryID belongs to it.
func (v *Validator) ValidateAssignment(categoryID, subcategoryID domain.ID) error {
	if _, ok := v.categories[categoryID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	if subcategoryID.IsZero() {
		return nil
	}
	parent, ok := v.parents[subcategoryID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubcategory, subcategoryID)
	}
	if parent != categoryID {
		return fmt.Errorf("%w: %s is under %s, not %s", ErrSubcategoryMismatch, subcategoryID, parent, categoryID)
	}
	return nil
}

// ParentOf returns the category owning a subcategory.
func (v *Validator) ParentOf(subcategoryID domain.ID) (domain.ID, bool) {
	id, ok := v.parents[subcategoryID]
	return id, ok
}

// normalizeLabel upper-cases and trims a label for comparison.
func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
