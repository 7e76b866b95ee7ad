package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/apiclient"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-ledger/internal/infra/bigquery"
	"github.com/dvloznov/finance-ledger/internal/pagination"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTree = []domain.Category{
	{Label: "Coche", Value: "c1", Subcategories: []domain.Subcategory{
		{Label: "Gasolina", Value: "s1", CategoryID: "c1"},
	}},
	{Label: "Ocio", Value: "c2", Subcategories: []domain.Subcategory{}},
}

func newStore() *mockStore {
	return &mockStore{
		ListCategoriesFunc: func(ctx context.Context, schema string) ([]domain.Category, error) {
			return testTree, nil
		},
	}
}

// serve starts the router and returns a client speaking to it.
func serve(t *testing.T, store *mockStore, categorizer Categorizer, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(NewRouter(Deps{
		Categories:  store,
		Txns:        store,
		Statements:  store,
		Reconcile:   store,
		Objects:     store,
		Categorizer: categorizer,
	}))
	t.Cleanup(srv.Close)

	c, err := apiclient.New(srv.URL, 5*time.Second, opts...)
	require.NoError(t, err)
	return c
}

func apiStatus(t *testing.T, err error) (int, string) {
	t.Helper()
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	return apiErr.StatusCode, apiErr.Message
}

func TestListCategoriesUsesSchema(t *testing.T) {
	store := newStore()
	var gotSchema string
	store.ListCategoriesFunc = func(ctx context.Context, schema string) ([]domain.Category, error) {
		gotSchema = schema
		return testTree, nil
	}
	c := serve(t, store, nil, apiclient.WithSchema("cuenta_b"))

	tree, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cuenta_b", gotSchema)
	require.Len(t, tree, 2)
	assert.Equal(t, "Gasolina", tree[0].Subcategories[0].Label)
	assert.NotNil(t, tree[1].Subcategories)
}

func TestListCategoriesEmptyIsArray(t *testing.T) {
	store := &mockStore{}
	srv := httptest.NewServer(NewRouter(Deps{Categories: store}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/categories")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(body))
}

func TestInsertCategory(t *testing.T) {
	store := newStore()
	store.InsertCategoryFunc = func(ctx context.Context, schema, label string) (domain.Category, error) {
		return domain.Category{Label: label, Value: "c9", Subcategories: []domain.Subcategory{}}, nil
	}
	c := serve(t, store, nil)

	cat, err := c.InsertCategory(context.Background(), "Viajes")
	require.NoError(t, err)
	assert.Equal(t, domain.ID("c9"), cat.Value)

	_, err = c.InsertCategory(context.Background(), " coche ")
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, msg, "label already exists")

	_, err = c.InsertCategory(context.Background(), "  ")
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestInsertSubcategory(t *testing.T) {
	store := newStore()
	store.InsertSubcategoryFunc = func(ctx context.Context, schema string, categoryID domain.ID, label string) (domain.Subcategory, error) {
		return domain.Subcategory{Label: label, Value: "s9", CategoryID: categoryID}, nil
	}
	c := serve(t, store, nil)

	sub, err := c.InsertSubcategory(context.Background(), "c2", "Cine")
	require.NoError(t, err)
	assert.Equal(t, domain.Subcategory{Label: "Cine", Value: "s9", CategoryID: "c2"}, sub)

	_, err = c.InsertSubcategory(context.Background(), "c1", "gasolina")
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusConflict, status)

	_, err = c.InsertSubcategory(context.Background(), "nope", "Cine")
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "unknown category")
}

func TestRenameCategoryAllowsSelf(t *testing.T) {
	store := newStore()
	var renamed string
	store.UpdateCategoryFunc = func(ctx context.Context, schema string, id domain.ID, label string) error {
		renamed = label
		return nil
	}
	store.UpdateSubcategoryFunc = func(ctx context.Context, schema string, id domain.ID, label string) error {
		return fmt.Errorf("UpdateSubcategory: %w: %s", infraBQ.ErrNotFound, id)
	}
	c := serve(t, store, nil)

	require.NoError(t, c.UpdateCategory(context.Background(), "c1", "COCHE"))
	assert.Equal(t, "COCHE", renamed)

	err := c.UpdateCategory(context.Background(), "c1", "Ocio")
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusConflict, status)

	err = c.UpdateSubcategory(context.Background(), "s1", "Diesel")
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	err = c.UpdateSubcategory(context.Background(), "s404", "Diesel")
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeleteCategory(t *testing.T) {
	store := newStore()
	var deleted domain.ID
	store.DeleteCategoryFunc = func(ctx context.Context, schema string, id domain.ID) error {
		deleted = id
		return nil
	}
	c := serve(t, store, nil)

	require.NoError(t, c.DeleteCategory(context.Background(), "c2"))
	assert.Equal(t, domain.ID("c2"), deleted)
}

func TestLatestTxnsPaging(t *testing.T) {
	store := newStore()
	var gotPage, gotLimit int
	store.LatestTxnsFunc = func(ctx context.Context, schema string, page, limit int) ([]domain.Transaction, error) {
		gotPage, gotLimit = page, limit
		return []domain.Transaction{{
			ID:     "t1",
			Date:   civil.Date{Year: 2024, Month: 1, Day: 3},
			Amount: decimal.RequireFromString("-12.50"),
		}}, nil
	}
	c := serve(t, store, nil)

	txns, err := c.LatestTxns(context.Background(), pagination.Cursor{Page: 2, Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 25, gotLimit)
	require.Len(t, txns, 1)
	assert.True(t, decimal.RequireFromString("-12.5").Equal(txns[0].Amount))

	_, err = c.LatestTxns(context.Background(), pagination.Cursor{Page: 0, Limit: 5000})
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLatestTxnsRejectsOverflowingPage(t *testing.T) {
	store := newStore()
	called := false
	store.LatestTxnsFunc = func(ctx context.Context, schema string, page, limit int) ([]domain.Transaction, error) {
		called = true
		return nil, nil
	}
	srv := httptest.NewServer(NewRouter(Deps{Txns: store, Categories: store}))
	defer srv.Close()

	page := strconv.Itoa(math.MaxInt/100 + 1)
	resp, err := http.Get(srv.URL + "/latests_txns?limit=100&page=" + page)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, called)

	resp2, err := http.Get(srv.URL + "/latests_txns?limit=100&page=" + strconv.Itoa(math.MaxInt/100))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.True(t, called)
}

func TestInsertTxnValidation(t *testing.T) {
	store := newStore()
	var stored domain.Transaction
	store.InsertTxnFunc = func(ctx context.Context, schema string, txn domain.Transaction) (domain.Transaction, error) {
		txn.ID = "new"
		stored = txn
		return txn, nil
	}
	c := serve(t, store, nil)
	base := domain.Transaction{
		Date:        civil.Date{Year: 2024, Month: 5, Day: 1},
		Description: " Cena ",
		Amount:      decimal.RequireFromString("-40"),
		CategoryID:  "c1",
	}

	out, err := c.InsertTxn(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, domain.ID("new"), out.ID)
	assert.Equal(t, "Cena", stored.Description)

	bad := base
	bad.SubcategoryID = "s1"
	bad.CategoryID = "c2"
	_, err = c.InsertTxn(context.Background(), bad)
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "does not belong")

	bad = base
	bad.Description = ""
	_, err = c.InsertTxn(context.Background(), bad)
	status, msg = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "descripcion is required", msg)
}

func TestUpdateTxnCategoryTargetsStaging(t *testing.T) {
	store := newStore()
	var gotLabel string
	var gotID, gotCat domain.ID
	store.UpdateTxnCategoryFunc = func(ctx context.Context, schema, label string, id, categoryID domain.ID) error {
		gotLabel, gotID, gotCat = label, id, categoryID
		return nil
	}
	c := serve(t, store, nil)

	err := c.UpdateTxnCategory(context.Background(), "enero_2024", domain.TxnAssignment{ID: "t1", Label: "Ocio", Value: "c2"})
	require.NoError(t, err)
	assert.Equal(t, "enero_2024", gotLabel)
	assert.Equal(t, domain.ID("t1"), gotID)
	assert.Equal(t, domain.ID("c2"), gotCat)

	require.NoError(t, c.UpdateTxnCategory(context.Background(), "", domain.TxnAssignment{ID: "t1", Value: "c1"}))
	assert.Equal(t, "", gotLabel)

	err = c.UpdateTxnCategory(context.Background(), "", domain.TxnAssignment{ID: "t1", Value: "zzz"})
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	err = c.UpdateTxnSubcategory(context.Background(), "", domain.TxnAssignment{ID: "t1", Value: "zzz"})
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGroupedTxnsYear(t *testing.T) {
	store := newStore()
	var gotYear int
	store.GroupedTxnsFunc = func(ctx context.Context, schema string, year int) ([]domain.GroupedRow, error) {
		gotYear = year
		return []domain.GroupedRow{{
			Key:    "c1",
			Label:  "Coche",
			Months: domain.MonthValues{domain.Enero: decimal.RequireFromString("-60")},
			Subcategories: []domain.GroupedSubRow{
				{Label: "Gasolina", Months: domain.MonthValues{domain.Enero: decimal.RequireFromString("-60")}},
			},
		}}, nil
	}
	c := serve(t, store, nil)

	rows, err := c.GroupedTxns(context.Background(), 2023)
	require.NoError(t, err)
	assert.Equal(t, 2023, gotYear)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].Key)
	assert.Equal(t, "-60", rows[0].Months.Get(domain.Enero).String())
	require.Len(t, rows[0].Subcategories, 1)

	_, err = c.GroupedTxns(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, gotYear)
}

func TestStatementsEndpoints(t *testing.T) {
	store := newStore()
	store.ListStatementsFunc = func(ctx context.Context, schema string) ([]string, error) {
		return []string{"statements/enero_2024.csv"}, nil
	}
	store.SignedUploadFunc = func(ctx context.Context, schema, filename string) (string, error) {
		return "https://storage.example/" + filename, nil
	}
	store.LoadStatementFunc = func(ctx context.Context, schema, gcsURI string) (string, error) {
		if !strings.HasSuffix(gcsURI, ".csv") {
			return "", fmt.Errorf("LoadStatement: %w: %q", infraBQ.ErrUnsupportedFormat, ".xlsx")
		}
		return domain.StatementLabel(gcsURI), nil
	}
	store.ValidateURIFunc = func(schema, gcsURI string) error {
		if !strings.HasPrefix(gcsURI, "gs://b/statements/") {
			return errors.New("object is not an uploaded statement")
		}
		return nil
	}
	c := serve(t, store, nil)
	ctx := context.Background()

	names, err := c.ListStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"statements/enero_2024.csv"}, names)

	url, err := c.GenerateUploadURL(ctx, "enero.csv")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/enero.csv", url)

	_, err = c.GenerateUploadURL(ctx, "../etc/passwd")
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	table, err := c.CreateStatementTable(ctx, "gs://b/statements/enero_2024.csv")
	require.NoError(t, err)
	assert.Equal(t, "enero_2024", table)

	_, err = c.CreateStatementTable(ctx, "gs://b/statements/enero_2024.xlsx")
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "unsupported statement format")

	_, err = c.CreateStatementTable(ctx, "gs://b/private/enero.csv")
	status, msg = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "object is not an uploaded statement", msg)
}

func TestStatementsAreScopedBySchema(t *testing.T) {
	objects := map[string][]string{
		"cuenta_a": {"statements/cuenta_a/enero_1a2b3c4d.csv"},
		"cuenta_b": {"statements/cuenta_b/febrero_5e6f7a8b.csv"},
	}
	store := newStore()
	store.ListStatementsFunc = func(ctx context.Context, schema string) ([]string, error) {
		return objects[schema], nil
	}
	store.SignedUploadFunc = func(ctx context.Context, schema, filename string) (string, error) {
		return "https://storage.googleapis.com/b/statements/" + schema + "/" + filename, nil
	}
	store.ValidateURIFunc = func(schema, gcsURI string) error {
		if !strings.HasPrefix(gcsURI, "gs://b/statements/"+schema+"/") {
			return gcsuploader.ErrForeignObject
		}
		return nil
	}
	var loaded []string
	store.LoadStatementFunc = func(ctx context.Context, schema, gcsURI string) (string, error) {
		loaded = append(loaded, schema+":"+gcsURI)
		return domain.StatementLabel(gcsURI), nil
	}
	a := serve(t, store, nil, apiclient.WithSchema("cuenta_a"))
	b := serve(t, store, nil, apiclient.WithSchema("cuenta_b"))
	ctx := context.Background()

	namesA, err := a.ListStatements(ctx)
	require.NoError(t, err)
	namesB, err := b.ListStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"statements/cuenta_a/enero_1a2b3c4d.csv"}, namesA)
	assert.Equal(t, []string{"statements/cuenta_b/febrero_5e6f7a8b.csv"}, namesB)

	url, err := b.GenerateUploadURL(ctx, "marzo.csv")
	require.NoError(t, err)
	assert.Contains(t, url, "/statements/cuenta_b/marzo.csv")

	_, err = a.CreateStatementTable(ctx, "gs://b/statements/cuenta_b/febrero_5e6f7a8b.csv")
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Empty(t, loaded)

	table, err := b.CreateStatementTable(ctx, "gs://b/statements/cuenta_b/febrero_5e6f7a8b.csv")
	require.NoError(t, err)
	assert.Equal(t, "febrero_5e6f7a8b", table)
	assert.Equal(t, []string{"cuenta_b:gs://b/statements/cuenta_b/febrero_5e6f7a8b.csv"}, loaded)
}

func TestInvalidSchemaIsBadRequest(t *testing.T) {
	store := newStore()
	store.ListStatementsFunc = func(ctx context.Context, schema string) ([]string, error) {
		return nil, fmt.Errorf("ListStatements: %w: %q", gcsuploader.ErrInvalidSchema, schema)
	}
	c := serve(t, store, nil, apiclient.WithSchema("a-b"))

	_, err := c.ListStatements(context.Background())
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStoreFailureIsGeneric(t *testing.T) {
	store := newStore()
	store.ListStatementsFunc = func(ctx context.Context, schema string) ([]string, error) {
		return nil, errors.New("storage: bucket doesn't exist")
	}
	c := serve(t, store, nil)

	_, err := c.ListStatements(context.Background())
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to list statements", msg)
}

func TestReconcileEndpoints(t *testing.T) {
	store := newStore()
	var calls []string
	store.CreateStatementJoinedFunc = func(ctx context.Context, schema, label string) error {
		calls = append(calls, "joined:"+label)
		return nil
	}
	store.ReconcileTxnsFunc = func(ctx context.Context, schema, label string, matched bool, page, limit int) ([]domain.Transaction, error) {
		calls = append(calls, fmt.Sprintf("txns:%s:%v:%d:%d", label, matched, page, limit))
		return nil, nil
	}
	store.UncategorizedCountFunc = func(ctx context.Context, schema, label string) (int, error) {
		return 3, nil
	}
	store.DeleteTxnsFunc = func(ctx context.Context, schema, table string, window domain.DateRange) error {
		calls = append(calls, fmt.Sprintf("delete:%s:%s:%s", table, window.From, window.To))
		return nil
	}
	store.InsertTxnsFunc = func(ctx context.Context, schema, fromTable, toTable string) error {
		calls = append(calls, "insert:"+fromTable+">"+toTable)
		return nil
	}
	c := serve(t, store, nil)
	ctx := context.Background()

	require.NoError(t, c.CreateStatementJoined(ctx, "enero"))
	txns, err := c.MatchedTxns(ctx, "enero", pagination.Cursor{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, txns)
	_, err = c.UnmatchedTxns(ctx, "enero", pagination.First(10))
	require.NoError(t, err)

	n, err := c.UncategorizedCount(ctx, "enero")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	window := domain.DateRange{From: civil.Date{Year: 2024, Month: 1, Day: 1}, To: civil.Date{Year: 2024, Month: 1, Day: 31}}
	require.NoError(t, c.DeleteTxns(ctx, "txns", window))
	require.NoError(t, c.InsertTxns(ctx, "enero_joined", "txns"))

	assert.Equal(t, []string{
		"joined:enero",
		"txns:enero:true:1:10",
		"txns:enero:false:0:10",
		"delete:txns:2024-01-01:2024-01-31",
		"insert:enero_joined>txns",
	}, calls)

	err = c.DeleteTxns(ctx, "txns", domain.DateRange{From: window.To, To: window.From})
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	err = c.InsertTxns(ctx, "txns", "txns")
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMinMaxDates(t *testing.T) {
	store := newStore()
	window := domain.DateRange{From: civil.Date{Year: 2024, Month: 2, Day: 1}, To: civil.Date{Year: 2024, Month: 2, Day: 29}}
	store.MinMaxDatesFunc = func(ctx context.Context, schema, label string) (domain.DateRange, error) {
		if label == "vacio" {
			return domain.DateRange{}, nil
		}
		return window, nil
	}
	c := serve(t, store, nil)

	got, err := c.MinMaxDates(context.Background(), "febrero")
	require.NoError(t, err)
	assert.Equal(t, window, got)

	got, err = c.MinMaxDates(context.Background(), "vacio")
	require.NoError(t, err)
	assert.False(t, got.Valid())
}

func TestInvalidIdentifierIsBadRequest(t *testing.T) {
	store := newStore()
	store.UncategorizedCountFunc = func(ctx context.Context, schema, label string) (int, error) {
		return 0, fmt.Errorf("UncategorizedCount: %w: statement %q", infraBQ.ErrInvalidIdentifier, label)
	}
	c := serve(t, store, nil)

	_, err := c.UncategorizedCount(context.Background(), "x;y")
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "invalid identifier")
}

func TestSuggestCategories(t *testing.T) {
	store := newStore()
	store.UncategorizedTxnsFunc = func(ctx context.Context, schema, label string) ([]domain.Transaction, error) {
		return []domain.Transaction{{ID: "t1", Description: "REPSOL"}}, nil
	}
	var applied []domain.Suggestion
	store.ApplySuggestionsFunc = func(ctx context.Context, schema, label string, s []domain.Suggestion) (int64, error) {
		applied = s
		return int64(len(s)), nil
	}
	suggest := categorizerFunc(func(ctx context.Context, tree []domain.Category, txns []domain.Transaction) ([]domain.Suggestion, error) {
		require.Len(t, tree, 2)
		require.Len(t, txns, 1)
		return []domain.Suggestion{{ID: "t1", CategoryID: "c1", SubcategoryID: "s1"}}, nil
	})
	c := serve(t, store, suggest)

	out, err := c.SuggestCategories(context.Background(), "enero")
	require.NoError(t, err)
	assert.Equal(t, []domain.Suggestion{{ID: "t1", CategoryID: "c1", SubcategoryID: "s1"}}, out)
	assert.Equal(t, out, applied)
}

func TestSuggestCategoriesDisabled(t *testing.T) {
	c := serve(t, newStore(), nil)

	_, err := c.SuggestCategories(context.Background(), "enero")
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusNotImplemented, status)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Deps{Categories: newStore()}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/categories", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
