package handlers

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
)

// ReconcileHandler handles the staging (joined) table endpoints.
// table_name is always a statement label; the staging table is derived
// from it. delete_txns and insert_txns take literal table names.
type ReconcileHandler struct {
	store       ReconcileStore
	categories  CategoryStore
	categorizer Categorizer
}

// NewReconcileHandler creates a new reconcile handler. categorizer may be
// nil, which disables suggestions.
func NewReconcileHandler(store ReconcileStore, cats CategoryStore, categorizer Categorizer) *ReconcileHandler {
	return &ReconcileHandler{store: store, categories: cats, categorizer: categorizer}
}

// CreateStatementJoined handles POST /create_statement_joined?table_name=
func (h *ReconcileHandler) CreateStatementJoined(w http.ResponseWriter, r *http.Request) {
	label, err := required(r, "table_name")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	if err := h.store.CreateStatementJoined(r.Context(), schemaOf(r), label); err != nil {
		fail(w, r, err, "Failed to reconcile statement")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"table_name": domain.JoinedTable(label)})
}

// MatchedTxns handles GET /reconcile_matched_txns?table_name=&page=&limit=
func (h *ReconcileHandler) MatchedTxns(w http.ResponseWriter, r *http.Request) {
	h.reconcileTxns(w, r, true)
}

// UnmatchedTxns handles GET /reconcile_unmatched_txns?table_name=&page=&limit=
func (h *ReconcileHandler) UnmatchedTxns(w http.ResponseWriter, r *http.Request) {
	h.reconcileTxns(w, r, false)
}

func (h *ReconcileHandler) reconcileTxns(w http.ResponseWriter, r *http.Request, matched bool) {
	label, err := required(r, "table_name")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	cursor, err := cursorOf(r)
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}

	txns, err := h.store.ReconcileTxns(r.Context(), schemaOf(r), label, matched, cursor.Page, cursor.Limit)
	if err != nil {
		fail(w, r, err, "Failed to list staged transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, listOrEmpty(txns))
}

// UncategorizedCount handles GET /get_uncategorized_count?table_name=
func (h *ReconcileHandler) UncategorizedCount(w http.ResponseWriter, r *http.Request) {
	label, err := required(r, "table_name")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	n, err := h.store.UncategorizedCount(r.Context(), schemaOf(r), label)
	if err != nil {
		fail(w, r, err, "Failed to count uncategorized transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

// MinMaxDates handles GET /min_and_max_dates?table_name=. An empty staging
// table reports null dates.
func (h *ReconcileHandler) MinMaxDates(w http.ResponseWriter, r *http.Request) {
	label, err := required(r, "table_name")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	window, err := h.store.MinMaxDates(r.Context(), schemaOf(r), label)
	if err != nil {
		fail(w, r, err, "Failed to read date range")
		return
	}
	if !window.Valid() {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{"min_date": nil, "max_date": nil})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, window)
}

// DeleteTxns handles DELETE /delete_txns?table=&from_date=&to_date=
func (h *ReconcileHandler) DeleteTxns(w http.ResponseWriter, r *http.Request) {
	table, err := required(r, "table")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	window, err := dateRangeOf(r)
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	if err := h.store.DeleteTxns(r.Context(), schemaOf(r), table, window); err != nil {
		fail(w, r, err, "Failed to delete transactions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InsertTxns handles POST /insert_txns?from_table=&to_table=
func (h *ReconcileHandler) InsertTxns(w http.ResponseWriter, r *http.Request) {
	from, err := required(r, "from_table")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	to, err := required(r, "to_table")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	if from == to {
		fail(w, r, badRequest("from_table and to_table must differ"), "Invalid request")
		return
	}
	if err := h.store.InsertTxns(r.Context(), schemaOf(r), from, to); err != nil {
		fail(w, r, err, "Failed to insert transactions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SuggestCategories handles POST /suggest_categories?table_name=. It asks
// the categorizer for the uncategorized staging rows and writes back the
// suggestions, which are returned.
func (h *ReconcileHandler) SuggestCategories(w http.ResponseWriter, r *http.Request) {
	if h.categorizer == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Category suggestions are not configured")
		return
	}
	label, err := required(r, "table_name")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	ctx, schema := r.Context(), schemaOf(r)

	txns, err := h.store.UncategorizedTxns(ctx, schema, label)
	if err != nil {
		fail(w, r, err, "Failed to list uncategorized transactions")
		return
	}
	if len(txns) == 0 {
		middleware.WriteJSON(w, http.StatusOK, []domain.Suggestion{})
		return
	}
	tree, err := h.categories.ListCategories(ctx, schema)
	if err != nil {
		fail(w, r, err, "Failed to load categories")
		return
	}

	suggestions, err := h.categorizer.Suggest(ctx, tree, txns)
	if err != nil {
		fail(w, r, err, "Failed to suggest categories")
		return
	}
	applied, err := h.store.ApplySuggestions(ctx, schema, label, suggestions)
	if err != nil {
		fail(w, r, err, "Failed to apply suggestions")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("statement", label).
		Int("uncategorized", len(txns)).
		Int("suggested", len(suggestions)).
		Int64("applied", applied).
		Msg("Applied category suggestions")
	middleware.WriteJSON(w, http.StatusOK, listOrEmpty(suggestions))
}

func dateRangeOf(r *http.Request) (domain.DateRange, error) {
	var window domain.DateRange
	for _, p := range []struct {
		name string
		dst  *civil.Date
	}{{"from_date", &window.From}, {"to_date", &window.To}} {
		s, err := required(r, p.name)
		if err != nil {
			return domain.DateRange{}, err
		}
		d, err := civil.ParseDate(s)
		if err != nil {
			return domain.DateRange{}, badRequest("invalid %s %q", p.name, s)
		}
		*p.dst = d
	}
	if !window.Valid() {
		return domain.DateRange{}, badRequest("from_date must not be after to_date")
	}
	return window, nil
}
