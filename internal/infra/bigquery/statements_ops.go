package bigquery

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// ErrUnsupportedFormat is returned for statement objects that cannot be
// loaded as CSV.
var ErrUnsupportedFormat = errors.New("unsupported statement format")

// statementSchema is the column layout of a statement CSV: a header line
// followed by date, description, amount and balance.
var statementSchema = bigquery.Schema{
	{Name: "fecha", Type: bigquery.DateFieldType, Required: true},
	{Name: "descripcion", Type: bigquery.StringFieldType},
	{Name: "valor", Type: bigquery.NumericFieldType, Required: true},
	{Name: "saldo", Type: bigquery.NumericFieldType},
}

// LoadStatement loads a CSV statement object into a table named after its
// label, replacing any previous load, and returns the table name.
func (r *Repository) LoadStatement(ctx context.Context, schema, gcsURI string) (string, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return "", fmt.Errorf("LoadStatement: %w", err)
	}
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", fmt.Errorf("LoadStatement: %w: %q is not a gs:// uri", ErrInvalidIdentifier, gcsURI)
	}
	if ext := strings.ToLower(path.Ext(gcsURI)); ext != ".csv" {
		return "", fmt.Errorf("LoadStatement: %w: %q", ErrUnsupportedFormat, ext)
	}
	label := domain.StatementLabel(gcsURI)
	if !domain.ValidTableName(label) {
		return "", fmt.Errorf("LoadStatement: %w: statement %q", ErrInvalidIdentifier, label)
	}

	ref := bigquery.NewGCSReference(gcsURI)
	ref.SourceFormat = bigquery.CSV
	ref.SkipLeadingRows = 1
	ref.AllowJaggedRows = true
	ref.Schema = statementSchema

	loader := r.client.DatasetInProject(s.project, s.dataset).Table(label).LoaderFrom(ref)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteTruncate
	if r.location != "" {
		loader.Location = r.location
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("LoadStatement: run load: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("LoadStatement: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("LoadStatement: job failed: %w", err)
	}

	r.log.Info().Str("gcs_uri", gcsURI).Str("table", label).Msg("Loaded statement")
	return label, nil
}

// StatementRows returns the raw rows of a statement table in date order.
func (r *Repository) StatementRows(ctx context.Context, schema, table string) ([]domain.StatementRow, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return nil, fmt.Errorf("StatementRows: %w", err)
	}
	ref, err := s.table(table)
	if err != nil {
		return nil, fmt.Errorf("StatementRows: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		SELECT fecha, descripcion, valor, saldo
		FROM %s
		ORDER BY fecha
	`, ref))
	rows, err := readAll[StatementRow](ctx, "StatementRows", q)
	if err != nil {
		return nil, err
	}

	out := make([]domain.StatementRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.StatementRow{
			Date:        row.Fecha,
			Description: row.Descripcion.StringVal,
			Amount:      ratToDecimal(row.Valor),
			Balance:     ratToNullDecimal(row.Saldo),
		})
	}
	return out, nil
}
