// Package bigquery stores categories, the ledger, statement tables and their
// staging (joined) tables in a BigQuery dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

const (
	categoriesTable    = "categories"
	subcategoriesTable = "subcategories"
	defaultLedgerTable = "txns"
	defaultDataset     = "finance"
)

var (
	// ErrInvalidIdentifier is returned for schema or table names that are
	// not plain identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotFound is returned when a DML statement touched no row.
	ErrNotFound = errors.New("not found")
)

// Options configures a Repository.
type Options struct {
	Project     string
	Dataset     string
	LedgerTable string
	Location    string
}

// Repository is the BigQuery store behind every endpoint. It holds a shared
// client; each call may target another dataset through its schema argument.
type Repository struct {
	client   *bigquery.Client
	project  string
	dataset  string
	ledger   string
	location string
	log      zerolog.Logger
}

// NewRepository creates a Repository with its own BigQuery client.
func NewRepository(ctx context.Context, opts Options, log zerolog.Logger) (*Repository, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("NewRepository: project is required")
	}
	client, err := bigquery.NewClient(ctx, opts.Project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, opts, log), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, opts Options, log zerolog.Logger) *Repository {
	if opts.Dataset == "" {
		opts.Dataset = defaultDataset
	}
	if opts.LedgerTable == "" {
		opts.LedgerTable = defaultLedgerTable
	}
	return &Repository{
		client:   client,
		project:  opts.Project,
		dataset:  opts.Dataset,
		ledger:   opts.LedgerTable,
		location: opts.Location,
		log:      log,
	}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// LedgerTable returns the name of the ledger table.
func (r *Repository) LedgerTable() string { return r.ledger }

// scope is a Repository bound to one dataset.
type scope struct {
	*Repository
	dataset string
}

// scoped resolves the dataset a call targets. An empty schema selects the
// configured dataset.
func (r *Repository) scoped(schema string) (scope, error) {
	if schema == "" {
		return scope{Repository: r, dataset: r.dataset}, nil
	}
	if !domain.ValidTableName(schema) {
		return scope{}, fmt.Errorf("%w: schema %q", ErrInvalidIdentifier, schema)
	}
	return scope{Repository: r, dataset: schema}, nil
}

// table returns the fully qualified, quoted reference of a table.
func (s scope) table(name string) (string, error) {
	if !domain.ValidTableName(name) {
		return "", fmt.Errorf("%w: table %q", ErrInvalidIdentifier, name)
	}
	return s.ref(name), nil
}

// ref quotes a table name that is already known to be valid.
func (s scope) ref(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, name)
}

// staging returns the joined table of a statement label.
func (s scope) staging(label string) (string, error) {
	if !domain.ValidTableName(label) {
		return "", fmt.Errorf("%w: statement %q", ErrInvalidIdentifier, label)
	}
	return s.ref(domain.JoinedTable(label)), nil
}

// txnTable resolves the table a per-transaction update targets: the ledger
// when label is empty, otherwise the statement's staging table.
func (s scope) txnTable(label string) (string, error) {
	if label == "" {
		return s.ref(s.ledger), nil
	}
	return s.staging(label)
}
