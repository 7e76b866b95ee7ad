package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
)

// StatementsHandler handles statement upload and loading endpoints.
type StatementsHandler struct {
	store   StatementStore
	objects ObjectStore
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(store StatementStore, objects ObjectStore) *StatementsHandler {
	return &StatementsHandler{store: store, objects: objects}
}

// ListStatements handles GET /list_statements. Only the statements of
// the requested schema are listed.
func (h *StatementsHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	names, err := h.objects.ListStatements(r.Context(), schemaOf(r))
	if err != nil {
		fail(w, r, err, "Failed to list statements")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, listOrEmpty(names))
}

// StatementRows handles GET /statements?table=
func (h *StatementsHandler) StatementRows(w http.ResponseWriter, r *http.Request) {
	table, err := required(r, "table")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	rows, err := h.store.StatementRows(r.Context(), schemaOf(r), table)
	if err != nil {
		fail(w, r, err, "Failed to read statement")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, listOrEmpty(rows))
}

// GenerateUploadURL handles GET /generate_upload_url?filename=
func (h *StatementsHandler) GenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	filename, err := required(r, "filename")
	if err != nil {
		fail(w, r, err, "Invalid request")
		return
	}
	if strings.ContainsAny(filename, "/\\") {
		fail(w, r, badRequest("filename must not contain a path"), "Invalid request")
		return
	}

	url, err := h.objects.SignedUploadURL(r.Context(), schemaOf(r), filename)
	if err != nil {
		fail(w, r, err, "Failed to generate upload URL")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// CreateStatementTable handles POST /create_statement_table
func (h *StatementsHandler) CreateStatementTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GCSURI string `json:"gcs_uri"`
	}
	if err := decodeBody(r, &req); err != nil {
		fail(w, r, err, "Invalid request body")
		return
	}
	if req.GCSURI == "" {
		fail(w, r, badRequest("gcs_uri is required"), "Invalid request")
		return
	}
	schema := schemaOf(r)
	if err := h.objects.ValidateStatementURI(schema, req.GCSURI); err != nil {
		fail(w, r, badRequest("%v", err), "Invalid request")
		return
	}

	table, err := h.store.LoadStatement(r.Context(), schema, req.GCSURI)
	if err != nil {
		fail(w, r, err, "Failed to create statement table")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"table_name": table})
}
