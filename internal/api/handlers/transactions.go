package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/categories"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// TransactionsHandler handles ledger endpoints.
type TransactionsHandler struct {
	store      TxnStore
	categories CategoryStore
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store TxnStore, cats CategoryStore) *TransactionsHandler {
	return &TransactionsHandler{store: store, categories: cats}
}

// LatestTxns handles GET /latests_txns?page=&limit=
func (h *TransactionsHandler) LatestTxns(w http.ResponseWriter, r *http.Request) {
	cursor, err := cursorOf(r)
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	txns, err := h.store.LatestTxns(r.Context(), schemaOf(r), cursor.Page, cursor.Limit)
	if err != nil {
		fail(w, r, err, "Failed to list transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, listOrEmpty(txns))
}

// InsertTxn handles POST /insert_txn
func (h *TransactionsHandler) InsertTxn(w http.ResponseWriter, r *http.Request) {
	var txn domain.Transaction
	if err := decodeBody(r, &txn); err != nil {
		fail(w, r, err, "Invalid request body")
		return
	}
	if !txn.Date.IsValid() {
		fail(w, r, badRequest("fecha is required"), "Invalid transaction")
		return
	}
	txn.Description = strings.TrimSpace(txn.Description)
	if txn.Description == "" {
		fail(w, r, badRequest("descripcion is required"), "Invalid transaction")
		return
	}

	if txn.IsCategorized() {
		v, err := h.validator(r)
		if err != nil {
			fail(w, r, err, "Failed to load categories")
			return
		}
		if err := v.ValidateAssignment(txn.CategoryID, txn.SubcategoryID); err != nil {
			fail(w, r, err, "Invalid transaction")
			return
		}
	} else if !txn.SubcategoryID.IsZero() {
		fail(w, r, badRequest("id_subcategoria requires id_categoria"), "Invalid transaction")
		return
	}

	created, err := h.store.InsertTxn(r.Context(), schemaOf(r), txn)
	if err != nil {
		fail(w, r, err, "Failed to insert transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// UpdateTxnCategory handles PUT /update_txn_category[?table_name=]. The
// body's value is the category id; an empty value clears it.
func (h *TransactionsHandler) UpdateTxnCategory(w http.ResponseWriter, r *http.Request) {
	var a domain.TxnAssignment
	if err := decodeAssignment(r, &a); err != nil {
		fail(w, r, err, "Invalid request body")
		return
	}

	if !a.Value.IsZero() {
		v, err := h.validator(r)
		if err != nil {
			fail(w, r, err, "Failed to load categories")
			return
		}
		if err := v.ValidateAssignment(a.Value, ""); err != nil {
			fail(w, r, err, "Invalid category")
			return
		}
	}

	label := r.URL.Query().Get("table_name")
	if err := h.store.UpdateTxnCategory(r.Context(), schemaOf(r), label, a.ID, a.Value); err != nil {
		fail(w, r, err, "Failed to update transaction category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

// UpdateTxnSubcategory handles PUT /update_txn_subcategory[?table_name=]
func (h *TransactionsHandler) UpdateTxnSubcategory(w http.ResponseWriter, r *http.Request) {
	var a domain.TxnAssignment
	if err := decodeAssignment(r, &a); err != nil {
		fail(w, r, err, "Invalid request body")
		return
	}

	if !a.Value.IsZero() {
		v, err := h.validator(r)
		if err != nil {
			fail(w, r, err, "Failed to load categories")
			return
		}
		if _, ok := v.ParentOf(a.Value); !ok {
			fail(w, r, categories.ErrUnknownSubcategory, "Invalid subcategory")
			return
		}
	}

	label := r.URL.Query().Get("table_name")
	if err := h.store.UpdateTxnSubcategory(r.Context(), schemaOf(r), label, a.ID, a.Value); err != nil {
		fail(w, r, err, "Failed to update transaction subcategory")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}

// DeleteTxn handles DELETE /delete_txn?id=
func (h *TransactionsHandler) DeleteTxn(w http.ResponseWriter, r *http.Request) {
	id, err := required(r, "id")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	if err := h.store.DeleteTxn(r.Context(), schemaOf(r), domain.ID(id)); err != nil {
		fail(w, r, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GroupedTxns handles GET /grouped_txns?year=
func (h *TransactionsHandler) GroupedTxns(w http.ResponseWriter, r *http.Request) {
	year := 0
	if s := r.URL.Query().Get("year"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1900 || n > 9999 {
			fail(w, r, badRequest("invalid year %q", s), "Invalid request")
			return
		}
		year = n
	}

	rows, err := h.store.GroupedTxns(r.Context(), schemaOf(r), year)
	if err != nil {
		fail(w, r, err, "Failed to group transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, listOrEmpty(rows))
}

func (h *TransactionsHandler) validator(r *http.Request) (*categories.Validator, error) {
	tree, err := h.categories.ListCategories(r.Context(), schemaOf(r))
	if err != nil {
		return nil, err
	}
	return categories.NewValidator(tree), nil
}

func decodeAssignment(r *http.Request, a *domain.TxnAssignment) error {
	if err := decodeBody(r, a); err != nil {
		return err
	}
	if a.ID.IsZero() {
		return badRequest("id is required")
	}
	return nil
}
