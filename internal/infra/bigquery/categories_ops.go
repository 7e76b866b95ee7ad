package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

// ListCategories returns the category tree ordered by label.
func (r *Repository) ListCategories(ctx context.Context, schema string) ([]domain.Category, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		SELECT
		  c.id AS id_categoria,
		  c.label AS categoria,
		  sc.id AS id_subcategoria,
		  sc.label AS sub_categoria
		FROM %s c
		LEFT JOIN %s sc ON sc.id_categoria = c.id
		ORDER BY c.label, c.id, sc.label
	`, s.ref(categoriesTable), s.ref(subcategoriesTable)))

	rows, err := readAll[CategoryRow](ctx, "ListCategories", q)
	if err != nil {
		return nil, err
	}
	return foldCategories(rows), nil
}

// InsertCategory stores a new category under a generated id.
func (r *Repository) InsertCategory(ctx context.Context, schema, label string) (domain.Category, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return domain.Category{}, fmt.Errorf("InsertCategory: %w", err)
	}

	cat := domain.Category{
		Label:         strings.TrimSpace(label),
		Value:         domain.ID(uuid.NewString()),
		Subcategories: []domain.Subcategory{},
	}
	q := r.query(fmt.Sprintf(`
		INSERT %s (id, label) VALUES (@id, @label)
	`, s.ref(categoriesTable)),
		bigquery.QueryParameter{Name: "id", Value: cat.Value.String()},
		bigquery.QueryParameter{Name: "label", Value: cat.Label},
	)
	if _, err := r.runDML(ctx, "InsertCategory", q); err != nil {
		return domain.Category{}, err
	}
	return cat, nil
}

// InsertSubcategory stores a new subcategory of categoryID.
func (r *Repository) InsertSubcategory(ctx context.Context, schema string, categoryID domain.ID, label string) (domain.Subcategory, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return domain.Subcategory{}, fmt.Errorf("InsertSubcategory: %w", err)
	}

	sub := domain.Subcategory{
		Label:      strings.TrimSpace(label),
		Value:      domain.ID(uuid.NewString()),
		CategoryID: categoryID,
	}
	q := r.query(fmt.Sprintf(`
		INSERT %s (id, id_categoria, label) VALUES (@id, @id_categoria, @label)
	`, s.ref(subcategoriesTable)),
		bigquery.QueryParameter{Name: "id", Value: sub.Value.String()},
		bigquery.QueryParameter{Name: "id_categoria", Value: categoryID.String()},
		bigquery.QueryParameter{Name: "label", Value: sub.Label},
	)
	if _, err := r.runDML(ctx, "InsertSubcategory", q); err != nil {
		return domain.Subcategory{}, err
	}
	return sub, nil
}

// UpdateCategory renames a category.
func (r *Repository) UpdateCategory(ctx context.Context, schema string, id domain.ID, label string) error {
	return r.rename(ctx, "UpdateCategory", schema, categoriesTable, id, label)
}

// UpdateSubcategory renames a subcategory.
func (r *Repository) UpdateSubcategory(ctx context.Context, schema string, id domain.ID, label string) error {
	return r.rename(ctx, "UpdateSubcategory", schema, subcategoriesTable, id, label)
}

func (r *Repository) rename(ctx context.Context, op, schema, table string, id domain.ID, label string) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	q := r.query(fmt.Sprintf(`
		UPDATE %s SET label = @label WHERE id = @id
	`, s.ref(table)),
		bigquery.QueryParameter{Name: "id", Value: id.String()},
		bigquery.QueryParameter{Name: "label", Value: strings.TrimSpace(label)},
	)
	n, err := r.runDML(ctx, op, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, id)
	}
	return nil
}

// DeleteCategory removes a category together with its subcategories.
// Transactions keep their dangling ids and show up uncategorized.
func (r *Repository) DeleteCategory(ctx context.Context, schema string, id domain.ID) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	param := bigquery.QueryParameter{Name: "id", Value: id.String()}

	subs := r.query(fmt.Sprintf(`
		DELETE FROM %s WHERE id_categoria = @id
	`, s.ref(subcategoriesTable)), param)
	if _, err := r.runDML(ctx, "DeleteCategory", subs); err != nil {
		return err
	}

	cat := r.query(fmt.Sprintf(`
		DELETE FROM %s WHERE id = @id
	`, s.ref(categoriesTable)), param)
	n, err := r.runDML(ctx, "DeleteCategory", cat)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("DeleteCategory: %w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteSubcategory removes one subcategory.
func (r *Repository) DeleteSubcategory(ctx context.Context, schema string, id domain.ID) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("DeleteSubcategory: %w", err)
	}
	q := r.query(fmt.Sprintf(`
		DELETE FROM %s WHERE id = @id
	`, s.ref(subcategoriesTable)),
		bigquery.QueryParameter{Name: "id", Value: id.String()},
	)
	n, err := r.runDML(ctx, "DeleteSubcategory", q)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("DeleteSubcategory: %w: %s", ErrNotFound, id)
	}
	return nil
}
