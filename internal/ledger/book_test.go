package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/pagination"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAPI is a mock implementation of API backed by an in-memory ledger.
type MockAPI struct {
	Rows                     []domain.Transaction
	UpdateTxnCategoryFunc    func(ctx context.Context, statement string, a domain.TxnAssignment) error
	UpdateTxnSubcategoryFunc func(ctx context.Context, statement string, a domain.TxnAssignment) error
	DeleteTxnFunc            func(ctx context.Context, id domain.ID) error

	pageCalls int
}

func (m *MockAPI) LatestTxns(_ context.Context, cursor pagination.Cursor) ([]domain.Transaction, error) {
	m.pageCalls++
	start := cursor.Page * cursor.Limit
	if start >= len(m.Rows) {
		return nil, nil
	}
	end := start + cursor.Limit
	if end > len(m.Rows) {
		end = len(m.Rows)
	}
	return append([]domain.Transaction(nil), m.Rows[start:end]...), nil
}

func (m *MockAPI) UpdateTxnCategory(ctx context.Context, statement string, a domain.TxnAssignment) error {
	if m.UpdateTxnCategoryFunc != nil {
		return m.UpdateTxnCategoryFunc(ctx, statement, a)
	}
	return nil
}

func (m *MockAPI) UpdateTxnSubcategory(ctx context.Context, statement string, a domain.TxnAssignment) error {
	if m.UpdateTxnSubcategoryFunc != nil {
		return m.UpdateTxnSubcategoryFunc(ctx, statement, a)
	}
	return nil
}

func (m *MockAPI) DeleteTxn(ctx context.Context, id domain.ID) error {
	if m.DeleteTxnFunc != nil {
		return m.DeleteTxnFunc(ctx, id)
	}
	return nil
}

func seed() []domain.Transaction {
	return []domain.Transaction{
		{ID: "1", Description: "mercadona", CategoryID: "c1", Category: "Comida", SubcategoryID: "s1", Subcategory: "Super"},
		{ID: "2", Description: "netflix"},
		{ID: "3", Description: "nomina"},
	}
}

func loaded(t *testing.T, api *MockAPI, limit int) *Book {
	t.Helper()
	b := NewLatest(api, limit, zerolog.Nop())
	require.NoError(t, b.FetchNextPage(context.Background()))
	return b
}

func TestReassignCategoryIsVisibleWhilePending(t *testing.T) {
	api := &MockAPI{Rows: seed()}
	b := loaded(t, api, 10)

	var during []domain.Transaction
	api.UpdateTxnCategoryFunc = func(_ context.Context, statement string, a domain.TxnAssignment) error {
		assert.Empty(t, statement)
		assert.Equal(t, domain.TxnAssignment{ID: "1", Label: "Ocio", Value: "c2"}, a)
		during = b.Rows()
		p, ok := b.Overlay().Get("1", CategoryField)
		assert.True(t, ok)
		assert.Equal(t, Pending, p.State)
		return nil
	}

	require.NoError(t, b.ReassignCategory(context.Background(), "1", domain.Category{Label: "Ocio", Value: "c2"}))
	assert.Equal(t, domain.ID("c2"), during[0].CategoryID)
	assert.Empty(t, during[0].SubcategoryID, "subcategory cleared with category change")

	p, ok := b.Overlay().Get("1", CategoryField)
	require.True(t, ok)
	assert.Equal(t, Confirmed, p.State)
	assert.Equal(t, "Ocio", b.Rows()[0].Category)
	assert.Equal(t, "Comida", b.Stream().Items()[0].Category, "stream cache stays authoritative")
}

func TestReassignRollsBackOnFailure(t *testing.T) {
	api := &MockAPI{Rows: seed()}
	api.UpdateTxnSubcategoryFunc = func(context.Context, string, domain.TxnAssignment) error {
		return errors.New("500")
	}
	b := loaded(t, api, 10)

	err := b.ReassignSubcategory(context.Background(), "1", domain.Subcategory{Label: "Bar", Value: "s9"})
	require.Error(t, err)
	assert.Equal(t, domain.ID("s1"), b.Rows()[0].SubcategoryID)
	assert.Zero(t, b.Overlay().Len())
}

func TestReassignUnknownTransaction(t *testing.T) {
	b := loaded(t, &MockAPI{Rows: seed()}, 10)
	err := b.ReassignCategory(context.Background(), "404", domain.Category{Value: "c1"})
	assert.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestRefreshDropsConfirmedPatches(t *testing.T) {
	api := &MockAPI{Rows: seed()}
	b := loaded(t, api, 2)
	require.NoError(t, b.FetchNextPage(context.Background()))
	require.Len(t, b.Rows(), 3)

	require.NoError(t, b.ReassignCategory(context.Background(), "2", domain.Category{Label: "Ocio", Value: "c2"}))
	// The backend stored the change.
	api.Rows[1].CategoryID, api.Rows[1].Category = "c2", "Ocio"

	calls := api.pageCalls
	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, 2, api.pageCalls-calls, "refetches as many pages as were loaded")
	assert.Zero(t, b.Overlay().Len())
	assert.Equal(t, "Ocio", b.Rows()[1].Category)
	assert.Len(t, b.Rows(), 3)
}

func TestRefreshKeepsPendingPatches(t *testing.T) {
	api := &MockAPI{Rows: seed()}
	b := loaded(t, api, 10)

	seq := b.Overlay().Begin("3", CategoryField, "c5", "Ingresos")
	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, "Ingresos", b.Rows()[2].Category)

	b.Overlay().Rollback("3", CategoryField, seq)
	assert.Empty(t, b.Rows()[2].Category)
}

func TestOverlayIgnoresStaleConfirmation(t *testing.T) {
	o := NewOverlay(zerolog.Nop())
	first := o.Begin("1", CategoryField, "a", "A")
	second := o.Begin("1", CategoryField, "b", "B")

	o.Rollback("1", CategoryField, first)
	p, ok := o.Get("1", CategoryField)
	require.True(t, ok)
	assert.Equal(t, domain.ID("b"), p.Value)

	o.Confirm("1", CategoryField, first)
	p, _ = o.Get("1", CategoryField)
	assert.Equal(t, Pending, p.State)

	o.Confirm("1", CategoryField, second)
	p, _ = o.Get("1", CategoryField)
	assert.Equal(t, Confirmed, p.State)
}

func TestOverlaySubcategoryAfterCategory(t *testing.T) {
	o := NewOverlay(zerolog.Nop())
	o.Begin("1", CategoryField, "c2", "Ocio")
	o.Begin("1", SubcategoryField, "s7", "Cine")

	got := o.Apply(seed())
	assert.Equal(t, domain.ID("c2"), got[0].CategoryID)
	assert.Equal(t, domain.ID("s7"), got[0].SubcategoryID)
}

func TestDeleteInvalidates(t *testing.T) {
	var deleted domain.ID
	api := &MockAPI{Rows: seed(), DeleteTxnFunc: func(_ context.Context, id domain.ID) error {
		deleted = id
		return nil
	}}
	b := loaded(t, api, 10)

	require.NoError(t, b.Delete(context.Background(), "2"))
	assert.Equal(t, domain.ID("2"), deleted)
	assert.Empty(t, b.Rows())
	assert.True(t, b.HasNextPage())
}

func TestStagedBookTargetsStatement(t *testing.T) {
	var got string
	api := &MockAPI{UpdateTxnCategoryFunc: func(_ context.Context, statement string, _ domain.TxnAssignment) error {
		got = statement
		return nil
	}}
	stream := pagination.NewStream[domain.Transaction]("unmatched_txns:enero", 10, func(context.Context, pagination.Cursor) ([]domain.Transaction, error) {
		return seed(), nil
	})
	b := NewBook(api, stream, "enero", zerolog.Nop())
	require.NoError(t, b.FetchNextPage(context.Background()))

	require.NoError(t, b.ReassignCategory(context.Background(), "2", domain.Category{Label: "Ocio", Value: "c2"}))
	assert.Equal(t, "enero", got)
}
