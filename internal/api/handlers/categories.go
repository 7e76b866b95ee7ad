package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/categories"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// CategoriesHandler handles the category tree endpoints. Labels are
// validated against the current tree before anything is written.
type CategoriesHandler struct {
	store CategoryStore
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(store CategoryStore) *CategoriesHandler {
	return &CategoriesHandler{store: store}
}

func (h *CategoriesHandler) validator(r *http.Request) (*categories.Validator, error) {
	tree, err := h.store.ListCategories(r.Context(), schemaOf(r))
	if err != nil {
		return nil, err
	}
	return categories.NewValidator(tree), nil
}

// ListCategories handles GET /categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.store.ListCategories(r.Context(), schemaOf(r))
	if err != nil {
		fail(w, r, err, "Failed to list categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, listOrEmpty(tree))
}

// InsertCategory handles POST /categories/insert_category
func (h *CategoriesHandler) InsertCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, r, err, "Invalid request body")
		return
	}

	v, err := h.validator(r)
	if err != nil {
		fail(w, r, err, "Failed to load categories")
		return
	}
	if err := v.ValidateNewCategory(req.Label, ""); err != nil {
		fail(w, r, err, "Invalid category")
		return
	}

	cat, err := h.store.InsertCategory(r.Context(), schemaOf(r), req.Label)
	if err != nil {
		fail(w, r, err, "Failed to insert category")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, cat)
}

// InsertSubcategory handles POST /categories/insert_subcategory
func (h *CategoriesHandler) InsertSubcategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label      string    `json:"sub_categoria"`
		CategoryID domain.ID `json:"id_categoria"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, r, err, "Invalid request body")
		return
	}

	v, err := h.validator(r)
	if err != nil {
		fail(w, r, err, "Failed to load categories")
		return
	}
	if err := v.ValidateNewSubcategory(req.CategoryID, req.Label, ""); err != nil {
		fail(w, r, err, "Invalid subcategory")
		return
	}

	sub, err := h.store.InsertSubcategory(r.Context(), schemaOf(r), req.CategoryID, req.Label)
	if err != nil {
		fail(w, r, err, "Failed to insert subcategory")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":            sub.Value,
		"sub_categoria": sub.Label,
		"id_categoria":  sub.CategoryID,
	})
}

// UpdateCategory handles PUT /categories/update_category?value=&label=
func (h *CategoriesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, label, err := renameParams(r)
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}

	v, err := h.validator(r)
	if err != nil {
		fail(w, r, err, "Failed to load categories")
		return
	}
	if err := v.ValidateNewCategory(label, id); err != nil {
		fail(w, r, err, "Invalid category")
		return
	}

	if err := h.store.UpdateCategory(r.Context(), schemaOf(r), id, label); err != nil {
		fail(w, r, err, "Failed to update category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"value": id, "label": strings.TrimSpace(label)})
}

// UpdateSubcategory handles PUT /categories/update_subcategory?value=&label=
func (h *CategoriesHandler) UpdateSubcategory(w http.ResponseWriter, r *http.Request) {
	id, label, err := renameParams(r)
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}

	v, err := h.validator(r)
	if err != nil {
		fail(w, r, err, "Failed to load categories")
		return
	}
	parent, ok := v.ParentOf(id)
	if !ok {
		fail(w, r, categories.ErrUnknownSubcategory, "Invalid subcategory")
		return
	}
	if err := v.ValidateNewSubcategory(parent, label, id); err != nil {
		fail(w, r, err, "Invalid subcategory")
		return
	}

	if err := h.store.UpdateSubcategory(r.Context(), schemaOf(r), id, label); err != nil {
		fail(w, r, err, "Failed to update subcategory")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"value": id, "label": strings.TrimSpace(label)})
}

// DeleteCategory handles DELETE /categories/delete_category?id=
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := required(r, "id")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	if err := h.store.DeleteCategory(r.Context(), schemaOf(r), domain.ID(id)); err != nil {
		fail(w, r, err, "Failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSubcategory handles DELETE /categories/delete_subcategory?id=
func (h *CategoriesHandler) DeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	id, err := required(r, "id")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	if err := h.store.DeleteSubcategory(r.Context(), schemaOf(r), domain.ID(id)); err != nil {
		fail(w, r, err, "Failed to delete subcategory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func renameParams(r *http.Request) (domain.ID, string, error) {
	id, err := required(r, "value")
	if err != nil {
		return "", "", err
	}
	return domain.ID(id), r.URL.Query().Get("label"), nil
}
