// Package handlers implements the JSON endpoints used by the finance client.
// Every endpoint honours an optional ?schema= parameter selecting the
// dataset (account) it operates on.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/categories"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/pagination"
)

// CategoryStore persists the category tree.
type CategoryStore interface {
	ListCategories(ctx context.Context, schema string) ([]domain.Category, error)
	InsertCategory(ctx context.Context, schema, label string) (domain.Category, error)
	InsertSubcategory(ctx context.Context, schema string, categoryID domain.ID, label string) (domain.Subcategory, error)
	UpdateCategory(ctx context.Context, schema string, id domain.ID, label string) error
	UpdateSubcategory(ctx context.Context, schema string, id domain.ID, label string) error
	DeleteCategory(ctx context.Context, schema string, id domain.ID) error
	DeleteSubcategory(ctx context.Context, schema string, id domain.ID) error
}

// TxnStore persists ledger transactions.
type TxnStore interface {
	LatestTxns(ctx context.Context, schema string, page, limit int) ([]domain.Transaction, error)
	InsertTxn(ctx context.Context, schema string, txn domain.Transaction) (domain.Transaction, error)
	UpdateTxnCategory(ctx context.Context, schema, label string, id, categoryID domain.ID) error
	UpdateTxnSubcategory(ctx context.Context, schema, label string, id, subcategoryID domain.ID) error
	DeleteTxn(ctx context.Context, schema string, id domain.ID) error
	GroupedTxns(ctx context.Context, schema string, year int) ([]domain.GroupedRow, error)
}

// StatementStore loads and reads statement tables.
type StatementStore interface {
	LoadStatement(ctx context.Context, schema, gcsURI string) (string, error)
	StatementRows(ctx context.Context, schema, table string) ([]domain.StatementRow, error)
}

// ReconcileStore builds and reads the staging table of a statement and
// commits it into the ledger.
type ReconcileStore interface {
	CreateStatementJoined(ctx context.Context, schema, label string) error
	ReconcileTxns(ctx context.Context, schema, label string, matched bool, page, limit int) ([]domain.Transaction, error)
	UncategorizedCount(ctx context.Context, schema, label string) (int, error)
	MinMaxDates(ctx context.Context, schema, label string) (domain.DateRange, error)
	DeleteTxns(ctx context.Context, schema, table string, window domain.DateRange) error
	InsertTxns(ctx context.Context, schema, fromTable, toTable string) error
	UncategorizedTxns(ctx context.Context, schema, label string) ([]domain.Transaction, error)
	ApplySuggestions(ctx context.Context, schema, label string, suggestions []domain.Suggestion) (int64, error)
}

// ObjectStore is the bucket statements are uploaded to. Objects are kept
// apart per schema.
type ObjectStore interface {
	SignedUploadURL(ctx context.Context, schema, filename string) (string, error)
	ListStatements(ctx context.Context, schema string) ([]string, error)
	ValidateStatementURI(schema, gcsURI string) error
}

// Categorizer proposes categories for uncategorized transactions.
type Categorizer interface {
	Suggest(ctx context.Context, tree []domain.Category, txns []domain.Transaction) ([]domain.Suggestion, error)
}

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps store and validation errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, infraBQ.ErrInvalidIdentifier),
		errors.Is(err, infraBQ.ErrUnsupportedFormat),
		errors.Is(err, gcsuploader.ErrInvalidSchema),
		errors.Is(err, gcsuploader.ErrForeignObject),
		errors.Is(err, categories.ErrEmptyLabel),
		errors.Is(err, categories.ErrUnknownCategory),
		errors.Is(err, categories.ErrUnknownSubcategory),
		errors.Is(err, categories.ErrSubcategoryMismatch):
		return http.StatusBadRequest
	case errors.Is(err, infraBQ.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, categories.ErrDuplicateLabel):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes it as the response. Client errors carry their
// own message; server errors are reported as msg.
func fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	log.Warn().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, strings.TrimPrefix(err.Error(), errBadRequest.Error()+": "))
}

func schemaOf(r *http.Request) string {
	return r.URL.Query().Get("schema")
}

// required returns a non-empty query parameter.
func required(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", badRequest("%s is required", name)
	}
	return v, nil
}

// cursorOf parses ?page=&limit= with the client's defaults.
func cursorOf(r *http.Request) (pagination.Cursor, error) {
	q := r.URL.Query()
	cursor := pagination.First(0)
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return cursor, badRequest("invalid page %q", s)
		}
		cursor.Page = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxPageLimit {
			return cursor, badRequest("invalid limit %q", s)
		}
		cursor.Limit = n
	}
	if cursor.Page > math.MaxInt/cursor.Limit {
		return cursor, badRequest("page %d out of range", cursor.Page)
	}
	return cursor, nil
}

const maxPageLimit = 1000

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// listOrEmpty keeps nil slices from encoding as null.
func listOrEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
