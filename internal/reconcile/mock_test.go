package reconcile

import (
	"context"
	"io"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/pagination"
)

// MockAPI is a mock implementation of API. Unset functions succeed with
// zero values. Every call is recorded by name.
type MockAPI struct {
	ListStatementsFunc        func(ctx context.Context) ([]string, error)
	StatementRowsFunc         func(ctx context.Context, table string) ([]domain.StatementRow, error)
	GenerateUploadURLFunc     func(ctx context.Context, filename string) (string, error)
	PutObjectFunc             func(ctx context.Context, target, contentType string, body io.Reader) error
	CreateStatementTableFunc  func(ctx context.Context, gcsURI string) (string, error)
	CreateStatementJoinedFunc func(ctx context.Context, table string) error
	MatchedTxnsFunc           func(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error)
	UnmatchedTxnsFunc         func(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error)
	UncategorizedCountFunc    func(ctx context.Context, table string) (int, error)
	MinMaxDatesFunc           func(ctx context.Context, table string) (domain.DateRange, error)
	DeleteTxnsFunc            func(ctx context.Context, table string, r domain.DateRange) error
	InsertTxnsFunc            func(ctx context.Context, fromTable, toTable string) error
	SuggestCategoriesFunc     func(ctx context.Context, table string) ([]domain.Suggestion, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockAPI) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// Calls returns the recorded call names in order.
func (m *MockAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockAPI) ListStatements(ctx context.Context) ([]string, error) {
	m.record("ListStatements")
	if m.ListStatementsFunc != nil {
		return m.ListStatementsFunc(ctx)
	}
	return nil, nil
}

func (m *MockAPI) StatementRows(ctx context.Context, table string) ([]domain.StatementRow, error) {
	m.record("StatementRows")
	if m.StatementRowsFunc != nil {
		return m.StatementRowsFunc(ctx, table)
	}
	return nil, nil
}

func (m *MockAPI) GenerateUploadURL(ctx context.Context, filename string) (string, error) {
	m.record("GenerateUploadURL")
	if m.GenerateUploadURLFunc != nil {
		return m.GenerateUploadURLFunc(ctx, filename)
	}
	return "", nil
}

func (m *MockAPI) PutObject(ctx context.Context, target, contentType string, body io.Reader) error {
	m.record("PutObject")
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, target, contentType, body)
	}
	return nil
}

func (m *MockAPI) CreateStatementTable(ctx context.Context, gcsURI string) (string, error) {
	m.record("CreateStatementTable")
	if m.CreateStatementTableFunc != nil {
		return m.CreateStatementTableFunc(ctx, gcsURI)
	}
	return "", nil
}

func (m *MockAPI) CreateStatementJoined(ctx context.Context, table string) error {
	m.record("CreateStatementJoined")
	if m.CreateStatementJoinedFunc != nil {
		return m.CreateStatementJoinedFunc(ctx, table)
	}
	return nil
}

func (m *MockAPI) MatchedTxns(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error) {
	m.record("MatchedTxns")
	if m.MatchedTxnsFunc != nil {
		return m.MatchedTxnsFunc(ctx, table, cursor)
	}
	return nil, nil
}

func (m *MockAPI) UnmatchedTxns(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error) {
	m.record("UnmatchedTxns")
	if m.UnmatchedTxnsFunc != nil {
		return m.UnmatchedTxnsFunc(ctx, table, cursor)
	}
	return nil, nil
}

func (m *MockAPI) UncategorizedCount(ctx context.Context, table string) (int, error) {
	m.record("UncategorizedCount")
	if m.UncategorizedCountFunc != nil {
		return m.UncategorizedCountFunc(ctx, table)
	}
	return 0, nil
}

func (m *MockAPI) MinMaxDates(ctx context.Context, table string) (domain.DateRange, error) {
	m.record("MinMaxDates")
	if m.MinMaxDatesFunc != nil {
		return m.MinMaxDatesFunc(ctx, table)
	}
	return domain.DateRange{}, nil
}

func (m *MockAPI) DeleteTxns(ctx context.Context, table string, r domain.DateRange) error {
	m.record("DeleteTxns")
	if m.DeleteTxnsFunc != nil {
		return m.DeleteTxnsFunc(ctx, table, r)
	}
	return nil
}

func (m *MockAPI) InsertTxns(ctx context.Context, fromTable, toTable string) error {
	m.record("InsertTxns")
	if m.InsertTxnsFunc != nil {
		return m.InsertTxnsFunc(ctx, fromTable, toTable)
	}
	return nil
}

func (m *MockAPI) SuggestCategories(ctx context.Context, table string) ([]domain.Suggestion, error) {
	m.record("SuggestCategories")
	if m.SuggestCategoriesFunc != nil {
		return m.SuggestCategoriesFunc(ctx, table)
	}
	return nil, nil
}
