package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/pagination"
)

// DefaultUploadContentType is sent when the statement file reports no type.
const DefaultUploadContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func pageQuery(cursor pagination.Cursor) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(cursor.Page))
	q.Set("limit", strconv.Itoa(cursor.Limit))
	return q
}

func tableQuery(param, table string) url.Values {
	q := url.Values{}
	q.Set(param, table)
	return q
}

// ListCategories returns the category tree of the configured schema.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return out, nil
}

// InsertCategory creates a category and returns it with its new id.
func (c *Client) InsertCategory(ctx context.Context, label string) (domain.Category, error) {
	var out domain.Category
	body := map[string]string{"label": label}
	if err := c.do(ctx, http.MethodPost, "/categories/insert_category", nil, body, &out); err != nil {
		return domain.Category{}, fmt.Errorf("InsertCategory: %w", err)
	}
	return out, nil
}

// InsertSubcategory creates a subcategory under categoryID.
func (c *Client) InsertSubcategory(ctx context.Context, categoryID domain.ID, label string) (domain.Subcategory, error) {
	var out struct {
		ID         domain.ID `json:"id"`
		Label      string    `json:"sub_categoria"`
		CategoryID domain.ID `json:"id_categoria"`
	}
	body := map[string]string{"sub_categoria": label, "id_categoria": categoryID.String()}
	if err := c.do(ctx, http.MethodPost, "/categories/insert_subcategory", nil, body, &out); err != nil {
		return domain.Subcategory{}, fmt.Errorf("InsertSubcategory: %w", err)
	}
	return domain.Subcategory{Label: out.Label, Value: out.ID, CategoryID: out.CategoryID}, nil
}

// UpdateCategory renames a category.
func (c *Client) UpdateCategory(ctx context.Context, id domain.ID, label string) error {
	q := url.Values{}
	q.Set("value", id.String())
	q.Set("label", label)
	if err := c.do(ctx, http.MethodPut, "/categories/update_category", q, nil, nil); err != nil {
		return fmt.Errorf("UpdateCategory: %w", err)
	}
	return nil
}

// UpdateSubcategory renames a subcategory.
func (c *Client) UpdateSubcategory(ctx context.Context, id domain.ID, label string) error {
	q := url.Values{}
	q.Set("value", id.String())
	q.Set("label", label)
	if err := c.do(ctx, http.MethodPut, "/categories/update_subcategory", q, nil, nil); err != nil {
		return fmt.Errorf("UpdateSubcategory: %w", err)
	}
	return nil
}

// DeleteCategory removes a category.
func (c *Client) DeleteCategory(ctx context.Context, id domain.ID) error {
	if err := c.do(ctx, http.MethodDelete, "/categories/delete_category", tableQuery("id", id.String()), nil, nil); err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}

// DeleteSubcategory removes a subcategory.
func (c *Client) DeleteSubcategory(ctx context.Context, id domain.ID) error {
	if err := c.do(ctx, http.MethodDelete, "/categories/delete_subcategory", tableQuery("id", id.String()), nil, nil); err != nil {
		return fmt.Errorf("DeleteSubcategory: %w", err)
	}
	return nil
}

// LatestTxns returns one page of the ledger, newest first.
func (c *Client) LatestTxns(ctx context.Context, cursor pagination.Cursor) ([]domain.Transaction, error) {
	var out []domain.Transaction
	if err := c.do(ctx, http.MethodGet, "/latests_txns", pageQuery(cursor), nil, &out); err != nil {
		return nil, fmt.Errorf("LatestTxns: %w", err)
	}
	return out, nil
}

// InsertTxn records a manually entered transaction.
func (c *Client) InsertTxn(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	var out domain.Transaction
	if err := c.do(ctx, http.MethodPost, "/insert_txn", nil, txn, &out); err != nil {
		return domain.Transaction{}, fmt.Errorf("InsertTxn: %w", err)
	}
	return out, nil
}

// stagingQuery targets a statement's staging table instead of the ledger
// when statement is set.
func stagingQuery(statement string) url.Values {
	if statement == "" {
		return nil
	}
	return tableQuery("table_name", statement)
}

// UpdateTxnCategory reassigns the category of one transaction. An empty
// statement targets the ledger.
func (c *Client) UpdateTxnCategory(ctx context.Context, statement string, a domain.TxnAssignment) error {
	if err := c.do(ctx, http.MethodPut, "/update_txn_category", stagingQuery(statement), a, nil); err != nil {
		return fmt.Errorf("UpdateTxnCategory: %w", err)
	}
	return nil
}

// UpdateTxnSubcategory reassigns the subcategory of one transaction.
func (c *Client) UpdateTxnSubcategory(ctx context.Context, statement string, a domain.TxnAssignment) error {
	if err := c.do(ctx, http.MethodPut, "/update_txn_subcategory", stagingQuery(statement), a, nil); err != nil {
		return fmt.Errorf("UpdateTxnSubcategory: %w", err)
	}
	return nil
}

// DeleteTxn removes one transaction from the ledger.
func (c *Client) DeleteTxn(ctx context.Context, id domain.ID) error {
	if err := c.do(ctx, http.MethodDelete, "/delete_txn", tableQuery("id", id.String()), nil, nil); err != nil {
		return fmt.Errorf("DeleteTxn: %w", err)
	}
	return nil
}

// ListStatements returns the object names of the statements uploaded to
// the configured schema.
func (c *Client) ListStatements(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/list_statements", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("ListStatements: %w", err)
	}
	return out, nil
}

// StatementRows returns the raw rows of a statement table.
func (c *Client) StatementRows(ctx context.Context, table string) ([]domain.StatementRow, error) {
	var out []domain.StatementRow
	if err := c.do(ctx, http.MethodGet, "/statements", tableQuery("table", table), nil, &out); err != nil {
		return nil, fmt.Errorf("StatementRows: %w", err)
	}
	return out, nil
}

// GenerateUploadURL asks for a pre-signed PUT target for filename.
func (c *Client) GenerateUploadURL(ctx context.Context, filename string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/generate_upload_url", tableQuery("filename", filename), nil, &out); err != nil {
		return "", fmt.Errorf("GenerateUploadURL: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("GenerateUploadURL: empty url in response")
	}
	return out.URL, nil
}

// PutObject streams body to a pre-signed target. The target lives outside
// the backend so the schema parameter is not added.
func (c *Client) PutObject(ctx context.Context, target, contentType string, body io.Reader) error {
	if contentType == "" {
		contentType = DefaultUploadContentType
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return fmt.Errorf("PutObject: building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("PutObject: %w", decodeAPIError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CreateStatementTable registers an uploaded object as a statement table
// and returns the table name.
func (c *Client) CreateStatementTable(ctx context.Context, gcsURI string) (string, error) {
	var out struct {
		TableName string `json:"table_name"`
	}
	body := map[string]string{"gcs_uri": gcsURI}
	if err := c.do(ctx, http.MethodPost, "/create_statement_table", nil, body, &out); err != nil {
		return "", fmt.Errorf("CreateStatementTable: %w", err)
	}
	return out.TableName, nil
}

// CreateStatementJoined runs server-side matching for a statement.
func (c *Client) CreateStatementJoined(ctx context.Context, table string) error {
	if err := c.do(ctx, http.MethodPost, "/create_statement_joined", tableQuery("table_name", table), nil, nil); err != nil {
		return fmt.Errorf("CreateStatementJoined: %w", err)
	}
	return nil
}

func (c *Client) reconcilePage(ctx context.Context, path, table string, cursor pagination.Cursor) ([]domain.Transaction, error) {
	q := pageQuery(cursor)
	q.Set("table_name", table)
	var out []domain.Transaction
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchedTxns returns one page of statement rows that matched the ledger.
func (c *Client) MatchedTxns(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error) {
	out, err := c.reconcilePage(ctx, "/reconcile_matched_txns", table, cursor)
	if err != nil {
		return nil, fmt.Errorf("MatchedTxns: %w", err)
	}
	return out, nil
}

// UnmatchedTxns returns one page of statement rows with no ledger match.
func (c *Client) UnmatchedTxns(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error) {
	out, err := c.reconcilePage(ctx, "/reconcile_unmatched_txns", table, cursor)
	if err != nil {
		return nil, fmt.Errorf("UnmatchedTxns: %w", err)
	}
	return out, nil
}

// UncategorizedCount counts rows of a staging table without a category.
func (c *Client) UncategorizedCount(ctx context.Context, table string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_uncategorized_count", tableQuery("table_name", table), nil, &out); err != nil {
		return 0, fmt.Errorf("UncategorizedCount: %w", err)
	}
	return out.Count, nil
}

// MinMaxDates returns the date span of a staging table.
func (c *Client) MinMaxDates(ctx context.Context, table string) (domain.DateRange, error) {
	var out domain.DateRange
	if err := c.do(ctx, http.MethodGet, "/min_and_max_dates", tableQuery("table_name", table), nil, &out); err != nil {
		return domain.DateRange{}, fmt.Errorf("MinMaxDates: %w", err)
	}
	return out, nil
}

// DeleteTxns deletes every row of table dated within r.
func (c *Client) DeleteTxns(ctx context.Context, table string, r domain.DateRange) error {
	q := url.Values{}
	q.Set("table", table)
	q.Set("from_date", r.From.String())
	q.Set("to_date", r.To.String())
	if err := c.do(ctx, http.MethodDelete, "/delete_txns", q, nil, nil); err != nil {
		return fmt.Errorf("DeleteTxns: %w", err)
	}
	return nil
}

// InsertTxns copies every row of fromTable into toTable.
func (c *Client) InsertTxns(ctx context.Context, fromTable, toTable string) error {
	q := url.Values{}
	q.Set("from_table", fromTable)
	q.Set("to_table", toTable)
	if err := c.do(ctx, http.MethodPost, "/insert_txns", q, nil, nil); err != nil {
		return fmt.Errorf("InsertTxns: %w", err)
	}
	return nil
}

// GroupedTxns returns per-month category aggregates for a year. A zero
// year lets the backend pick the current one.
func (c *Client) GroupedTxns(ctx context.Context, year int) ([]domain.GroupedRow, error) {
	q := url.Values{}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	var out []domain.GroupedRow
	if err := c.do(ctx, http.MethodGet, "/grouped_txns", q, nil, &out); err != nil {
		return nil, fmt.Errorf("GroupedTxns: %w", err)
	}
	return out, nil
}

// SuggestCategories asks the backend to categorize uncategorized rows of a
// staging table. It returns the suggestions that were applied.
func (c *Client) SuggestCategories(ctx context.Context, table string) ([]domain.Suggestion, error) {
	var out []domain.Suggestion
	if err := c.do(ctx, http.MethodPost, "/suggest_categories", tableQuery("table_name", table), nil, &out); err != nil {
		return nil, fmt.Errorf("SuggestCategories: %w", err)
	}
	return out, nil
}
