// Package ledger pages through transactions and applies category
// reassignments optimistically.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/apiclient"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/pagination"
	"github.com/rs/zerolog"
)

// LatestKey is the cache key of the latest transactions stream.
const LatestKey = "latests_txns"

// ErrUnknownTransaction is returned for ids that are not loaded.
var ErrUnknownTransaction = errors.New("transaction not loaded")

// API is the transaction part of the backend. statement selects a staging
// table; empty means the ledger.
type API interface {
	LatestTxns(ctx context.Context, cursor pagination.Cursor) ([]domain.Transaction, error)
	UpdateTxnCategory(ctx context.Context, statement string, a domain.TxnAssignment) error
	UpdateTxnSubcategory(ctx context.Context, statement string, a domain.TxnAssignment) error
	DeleteTxn(ctx context.Context, id domain.ID) error
}

var _ API = (*apiclient.Client)(nil)

// Book is a paged list of transactions with an optimistic overlay.
type Book struct {
	api       API
	statement string
	stream    *pagination.Stream[domain.Transaction]
	overlay   *Overlay
	log       zerolog.Logger
}

// NewLatest creates a book over the ledger's latest transactions.
func NewLatest(api API, limit int, log zerolog.Logger) *Book {
	stream := pagination.NewStream[domain.Transaction](LatestKey, limit, api.LatestTxns)
	return NewBook(api, stream, "", log)
}

// NewBook creates a book over an existing stream. statement is the
// staging table the rows belong to, or empty for the ledger.
func NewBook(api API, stream *pagination.Stream[domain.Transaction], statement string, log zerolog.Logger) *Book {
	return &Book{
		api:       api,
		statement: statement,
		stream:    stream,
		overlay:   NewOverlay(log),
		log:       log,
	}
}

// Stream returns the underlying stream.
func (b *Book) Stream() *pagination.Stream[domain.Transaction] { return b.stream }

// Overlay returns the patch overlay.
func (b *Book) Overlay() *Overlay { return b.overlay }

// FetchNextPage loads one more page.
func (b *Book) FetchNextPage(ctx context.Context) error {
	_, err := b.stream.FetchNextPage(ctx)
	return err
}

// HasNextPage reports whether more rows may exist.
func (b *Book) HasNextPage() bool { return b.stream.HasNextPage() }

// Rows returns the loaded rows with local patches applied.
func (b *Book) Rows() []domain.Transaction {
	return b.overlay.Apply(b.stream.Items())
}

func (b *Book) find(id domain.ID) (domain.Transaction, bool) {
	for _, t := range b.Rows() {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Transaction{}, false
}

// ReassignCategory moves a transaction to another category. The change is
// visible in Rows immediately and rolled back if the backend refuses it.
func (b *Book) ReassignCategory(ctx context.Context, id domain.ID, c domain.Category) error {
	if _, ok := b.find(id); !ok {
		return fmt.Errorf("ReassignCategory: %w: %s", ErrUnknownTransaction, id)
	}
	seq := b.overlay.Begin(id, CategoryField, c.Value, c.Label)
	err := b.api.UpdateTxnCategory(ctx, b.statement, domain.TxnAssignment{ID: id, Label: c.Label, Value: c.Value})
	if err != nil {
		b.overlay.Rollback(id, CategoryField, seq)
		return fmt.Errorf("ReassignCategory: %w", err)
	}
	b.overlay.Confirm(id, CategoryField, seq)
	return nil
}

// ReassignSubcategory moves a transaction to another subcategory.
func (b *Book) ReassignSubcategory(ctx context.Context, id domain.ID, s domain.Subcategory) error {
	if _, ok := b.find(id); !ok {
		return fmt.Errorf("ReassignSubcategory: %w: %s", ErrUnknownTransaction, id)
	}
	seq := b.overlay.Begin(id, SubcategoryField, s.Value, s.Label)
	err := b.api.UpdateTxnSubcategory(ctx, b.statement, domain.TxnAssignment{ID: id, Label: s.Label, Value: s.Value})
	if err != nil {
		b.overlay.Rollback(id, SubcategoryField, seq)
		return fmt.Errorf("ReassignSubcategory: %w", err)
	}
	b.overlay.Confirm(id, SubcategoryField, seq)
	return nil
}

// Refresh refetches as many pages as were loaded and reconciles the
// overlay with what the backend returned.
func (b *Book) Refresh(ctx context.Context) error {
	pages := b.stream.PageCount()
	if pages == 0 {
		pages = 1
	}
	b.stream.Invalidate()
	for i := 0; i < pages && b.stream.HasNextPage(); i++ {
		if _, err := b.stream.FetchNextPage(ctx); err != nil {
			return fmt.Errorf("Refresh: %w", err)
		}
	}
	b.overlay.Reconcile(b.stream.Items())
	return nil
}

// Delete removes a transaction and invalidates the loaded pages.
func (b *Book) Delete(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return fmt.Errorf("Delete: %w: empty id", ErrUnknownTransaction)
	}
	if err := b.api.DeleteTxn(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	b.stream.Invalidate()
	return nil
}
