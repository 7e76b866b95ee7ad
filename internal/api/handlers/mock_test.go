package handlers

import (
	"context"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// mockStore implements every store interface with overridable functions.
// Unset functions return zero values.
type mockStore struct {
	ListCategoriesFunc    func(ctx context.Context, schema string) ([]domain.Category, error)
	InsertCategoryFunc    func(ctx context.Context, schema, label string) (domain.Category, error)
	InsertSubcategoryFunc func(ctx context.Context, schema string, categoryID domain.ID, label string) (domain.Subcategory, error)
	UpdateCategoryFunc    func(ctx context.Context, schema string, id domain.ID, label string) error
	UpdateSubcategoryFunc func(ctx context.Context, schema string, id domain.ID, label string) error
	DeleteCategoryFunc    func(ctx context.Context, schema string, id domain.ID) error
	DeleteSubcategoryFunc func(ctx context.Context, schema string, id domain.ID) error

	LatestTxnsFunc           func(ctx context.Context, schema string, page, limit int) ([]domain.Transaction, error)
	InsertTxnFunc            func(ctx context.Context, schema string, txn domain.Transaction) (domain.Transaction, error)
	UpdateTxnCategoryFunc    func(ctx context.Context, schema, label string, id, categoryID domain.ID) error
	UpdateTxnSubcategoryFunc func(ctx context.Context, schema, label string, id, subcategoryID domain.ID) error
	DeleteTxnFunc            func(ctx context.Context, schema string, id domain.ID) error
	GroupedTxnsFunc          func(ctx context.Context, schema string, year int) ([]domain.GroupedRow, error)

	LoadStatementFunc  func(ctx context.Context, schema, gcsURI string) (string, error)
	StatementRowsFunc  func(ctx context.Context, schema, table string) ([]domain.StatementRow, error)
	SignedUploadFunc   func(ctx context.Context, schema, filename string) (string, error)
	ListStatementsFunc func(ctx context.Context, schema string) ([]string, error)
	ValidateURIFunc    func(schema, gcsURI string) error

	CreateStatementJoinedFunc func(ctx context.Context, schema, label string) error
	ReconcileTxnsFunc         func(ctx context.Context, schema, label string, matched bool, page, limit int) ([]domain.Transaction, error)
	UncategorizedCountFunc    func(ctx context.Context, schema, label string) (int, error)
	MinMaxDatesFunc           func(ctx context.Context, schema, label string) (domain.DateRange, error)
	DeleteTxnsFunc            func(ctx context.Context, schema, table string, window domain.DateRange) error
	InsertTxnsFunc            func(ctx context.Context, schema, fromTable, toTable string) error
	UncategorizedTxnsFunc     func(ctx context.Context, schema, label string) ([]domain.Transaction, error)
	ApplySuggestionsFunc      func(ctx context.Context, schema, label string, suggestions []domain.Suggestion) (int64, error)
}

func (m *mockStore) ListCategories(ctx context.Context, schema string) ([]domain.Category, error) {
	if m.ListCategoriesFunc != nil {
		return m.ListCategoriesFunc(ctx, schema)
	}
	return nil, nil
}

func (m *mockStore) InsertCategory(ctx context.Context, schema, label string) (domain.Category, error) {
	if m.InsertCategoryFunc != nil {
		return m.InsertCategoryFunc(ctx, schema, label)
	}
	return domain.Category{}, nil
}

func (m *mockStore) InsertSubcategory(ctx context.Context, schema string, categoryID domain.ID, label string) (domain.Subcategory, error) {
	if m.InsertSubcategoryFunc != nil {
		return m.InsertSubcategoryFunc(ctx, schema, categoryID, label)
	}
	return domain.Subcategory{}, nil
}

func (m *mockStore) UpdateCategory(ctx context.Context, schema string, id domain.ID, label string) error {
	if m.UpdateCategoryFunc != nil {
		return m.UpdateCategoryFunc(ctx, schema, id, label)
	}
	return nil
}

func (m *mockStore) UpdateSubcategory(ctx context.Context, schema string, id domain.ID, label string) error {
	if m.UpdateSubcategoryFunc != nil {
		return m.UpdateSubcategoryFunc(ctx, schema, id, label)
	}
	return nil
}

func (m *mockStore) DeleteCategory(ctx context.Context, schema string, id domain.ID) error {
	if m.DeleteCategoryFunc != nil {
		return m.DeleteCategoryFunc(ctx, schema, id)
	}
	return nil
}

func (m *mockStore) DeleteSubcategory(ctx context.Context, schema string, id domain.ID) error {
	if m.DeleteSubcategoryFunc != nil {
		return m.DeleteSubcategoryFunc(ctx, schema, id)
	}
	return nil
}

func (m *mockStore) LatestTxns(ctx context.Context, schema string, page, limit int) ([]domain.Transaction, error) {
	if m.LatestTxnsFunc != nil {
		return m.LatestTxnsFunc(ctx, schema, page, limit)
	}
	return nil, nil
}

func (m *mockStore) InsertTxn(ctx context.Context, schema string, txn domain.Transaction) (domain.Transaction, error) {
	if m.InsertTxnFunc != nil {
		return m.InsertTxnFunc(ctx, schema, txn)
	}
	return txn, nil
}

func (m *mockStore) UpdateTxnCategory(ctx context.Context, schema, label string, id, categoryID domain.ID) error {
	if m.UpdateTxnCategoryFunc != nil {
		return m.UpdateTxnCategoryFunc(ctx, schema, label, id, categoryID)
	}
	return nil
}

func (m *mockStore) UpdateTxnSubcategory(ctx context.Context, schema, label string, id, subcategoryID domain.ID) error {
	if m.UpdateTxnSubcategoryFunc != nil {
		return m.UpdateTxnSubcategoryFunc(ctx, schema, label, id, subcategoryID)
	}
	return nil
}

func (m *mockStore) DeleteTxn(ctx context.Context, schema string, id domain.ID) error {
	if m.DeleteTxnFunc != nil {
		return m.DeleteTxnFunc(ctx, schema, id)
	}
	return nil
}

func (m *mockStore) GroupedTxns(ctx context.Context, schema string, year int) ([]domain.GroupedRow, error) {
	if m.GroupedTxnsFunc != nil {
		return m.GroupedTxnsFunc(ctx, schema, year)
	}
	return nil, nil
}

func (m *mockStore) LoadStatement(ctx context.Context, schema, gcsURI string) (string, error) {
	if m.LoadStatementFunc != nil {
		return m.LoadStatementFunc(ctx, schema, gcsURI)
	}
	return "", nil
}

func (m *mockStore) StatementRows(ctx context.Context, schema, table string) ([]domain.StatementRow, error) {
	if m.StatementRowsFunc != nil {
		return m.StatementRowsFunc(ctx, schema, table)
	}
	return nil, nil
}

func (m *mockStore) SignedUploadURL(ctx context.Context, schema, filename string) (string, error) {
	if m.SignedUploadFunc != nil {
		return m.SignedUploadFunc(ctx, schema, filename)
	}
	return "", nil
}

func (m *mockStore) ListStatements(ctx context.Context, schema string) ([]string, error) {
	if m.ListStatementsFunc != nil {
		return m.ListStatementsFunc(ctx, schema)
	}
	return nil, nil
}

func (m *mockStore) ValidateStatementURI(schema, gcsURI string) error {
	if m.ValidateURIFunc != nil {
		return m.ValidateURIFunc(schema, gcsURI)
	}
	return nil
}

func (m *mockStore) CreateStatementJoined(ctx context.Context, schema, label string) error {
	if m.CreateStatementJoinedFunc != nil {
		return m.CreateStatementJoinedFunc(ctx, schema, label)
	}
	return nil
}

func (m *mockStore) ReconcileTxns(ctx context.Context, schema, label string, matched bool, page, limit int) ([]domain.Transaction, error) {
	if m.ReconcileTxnsFunc != nil {
		return m.ReconcileTxnsFunc(ctx, schema, label, matched, page, limit)
	}
	return nil, nil
}

func (m *mockStore) UncategorizedCount(ctx context.Context, schema, label string) (int, error) {
	if m.UncategorizedCountFunc != nil {
		return m.UncategorizedCountFunc(ctx, schema, label)
	}
	return 0, nil
}

func (m *mockStore) MinMaxDates(ctx context.Context, schema, label string) (domain.DateRange, error) {
	if m.MinMaxDatesFunc != nil {
		return m.MinMaxDatesFunc(ctx, schema, label)
	}
	return domain.DateRange{}, nil
}

func (m *mockStore) DeleteTxns(ctx context.Context, schema, table string, window domain.DateRange) error {
	if m.DeleteTxnsFunc != nil {
		return m.DeleteTxnsFunc(ctx, schema, table, window)
	}
	return nil
}

func (m *mockStore) InsertTxns(ctx context.Context, schema, fromTable, toTable string) error {
	if m.InsertTxnsFunc != nil {
		return m.InsertTxnsFunc(ctx, schema, fromTable, toTable)
	}
	return nil
}

func (m *mockStore) UncategorizedTxns(ctx context.Context, schema, label string) ([]domain.Transaction, error) {
	if m.UncategorizedTxnsFunc != nil {
		return m.UncategorizedTxnsFunc(ctx, schema, label)
	}
	return nil, nil
}

func (m *mockStore) ApplySuggestions(ctx context.Context, schema, label string, suggestions []domain.Suggestion) (int64, error) {
	if m.ApplySuggestionsFunc != nil {
		return m.ApplySuggestionsFunc(ctx, schema, label, suggestions)
	}
	return int64(len(suggestions)), nil
}

type categorizerFunc func(ctx context.Context, tree []domain.Category, txns []domain.Transaction) ([]domain.Suggestion, error)

func (f categorizerFunc) Suggest(ctx context.Context, tree []domain.Category, txns []domain.Transaction) ([]domain.Suggestion, error) {
	return f(ctx, tree, txns)
}
