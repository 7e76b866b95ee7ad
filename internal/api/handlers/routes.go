package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
)

// Deps are the stores and services the endpoints run against.
type Deps struct {
	Categories  CategoryStore
	Txns        TxnStore
	Statements  StatementStore
	Reconcile   ReconcileStore
	Objects     ObjectStore
	Categorizer Categorizer
}

// NewRouter registers every endpoint on a new mux.
func NewRouter(d Deps) *http.ServeMux {
	cats := NewCategoriesHandler(d.Categories)
	txns := NewTransactionsHandler(d.Txns, d.Categories)
	statements := NewStatementsHandler(d.Statements, d.Objects)
	reconcile := NewReconcileHandler(d.Reconcile, d.Categories, d.Categorizer)

	mux := http.NewServeMux()

	// Categories
	mux.HandleFunc("GET /categories", cats.ListCategories)
	mux.HandleFunc("POST /categories/insert_category", cats.InsertCategory)
	mux.HandleFunc("POST /categories/insert_subcategory", cats.InsertSubcategory)
	mux.HandleFunc("PUT /categories/update_category", cats.UpdateCategory)
	mux.HandleFunc("PUT /categories/update_subcategory", cats.UpdateSubcategory)
	mux.HandleFunc("DELETE /categories/delete_category", cats.DeleteCategory)
	mux.HandleFunc("DELETE /categories/delete_subcategory", cats.DeleteSubcategory)

	// Ledger
	mux.HandleFunc("GET /latests_txns", txns.LatestTxns)
	mux.HandleFunc("POST /insert_txn", txns.InsertTxn)
	mux.HandleFunc("PUT /update_txn_category", txns.UpdateTxnCategory)
	mux.HandleFunc("PUT /update_txn_subcategory", txns.UpdateTxnSubcategory)
	mux.HandleFunc("DELETE /delete_txn", txns.DeleteTxn)
	mux.HandleFunc("GET /grouped_txns", txns.GroupedTxns)

	// Statements
	mux.HandleFunc("GET /list_statements", statements.ListStatements)
	mux.HandleFunc("GET /statements", statements.StatementRows)
	mux.HandleFunc("GET /generate_upload_url", statements.GenerateUploadURL)
	mux.HandleFunc("POST /create_statement_table", statements.CreateStatementTable)

	// Reconciliation
	mux.HandleFunc("POST /create_statement_joined", reconcile.CreateStatementJoined)
	mux.HandleFunc("GET /reconcile_matched_txns", reconcile.MatchedTxns)
	mux.HandleFunc("GET /reconcile_unmatched_txns", reconcile.UnmatchedTxns)
	mux.HandleFunc("GET /get_uncategorized_count", reconcile.UncategorizedCount)
	mux.HandleFunc("GET /min_and_max_dates", reconcile.MinMaxDates)
	mux.HandleFunc("DELETE /delete_txns", reconcile.DeleteTxns)
	mux.HandleFunc("POST /insert_txns", reconcile.InsertTxns)
	mux.HandleFunc("POST /suggest_categories", reconcile.SuggestCategories)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}
