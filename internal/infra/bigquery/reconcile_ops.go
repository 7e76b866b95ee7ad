package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// joinedSQL builds the staging table of a statement. Statement and ledger
// rows are paired on (fecha, valor); duplicates within a pair are matched
// in order, so two identical charges on one day match two ledger rows.
// Matched rows keep the ledger id and categories; the rest get a new id.
func joinedSQL(joined, statement, ledger string) string {
	return fmt.Sprintf(`
		CREATE OR REPLACE TABLE %[1]s AS
		WITH s AS (
		  SELECT
		    fecha, descripcion, valor, saldo,
		    ROW_NUMBER() OVER (PARTITION BY fecha, valor ORDER BY descripcion) AS rn
		  FROM %[2]s
		),
		l AS (
		  SELECT
		    id, fecha, valor, id_categoria, id_subcategoria, banco,
		    ROW_NUMBER() OVER (PARTITION BY fecha, valor ORDER BY id) AS rn
		  FROM %[3]s
		  WHERE fecha BETWEEN (SELECT MIN(fecha) FROM %[2]s) AND (SELECT MAX(fecha) FROM %[2]s)
		)
		SELECT
		  COALESCE(l.id, GENERATE_UUID()) AS id,
		  s.fecha,
		  s.descripcion,
		  s.valor,
		  s.saldo,
		  l.id_categoria,
		  l.id_subcategoria,
		  l.banco,
		  l.id IS NOT NULL AS matched
		FROM s
		LEFT JOIN l ON l.fecha = s.fecha AND l.valor = s.valor AND l.rn = s.rn
	`, joined, statement, ledger)
}

// CreateStatementJoined (re)builds the staging table of a statement label.
func (r *Repository) CreateStatementJoined(ctx context.Context, schema, label string) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("CreateStatementJoined: %w", err)
	}
	statement, err := s.table(label)
	if err != nil {
		return fmt.Errorf("CreateStatementJoined: %w", err)
	}
	joined, err := s.staging(label)
	if err != nil {
		return fmt.Errorf("CreateStatementJoined: %w", err)
	}

	if _, err := r.runDML(ctx, "CreateStatementJoined", r.query(joinedSQL(joined, statement, s.ref(s.ledger)))); err != nil {
		return err
	}
	r.log.Info().Str("statement", label).Msg("Built staging table")
	return nil
}

// ReconcileTxns returns one page of the staging rows that did (matched) or
// did not match the ledger.
func (r *Repository) ReconcileTxns(ctx context.Context, schema, label string, matched bool, page, limit int) ([]domain.Transaction, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return nil, fmt.Errorf("ReconcileTxns: %w", err)
	}
	joined, err := s.staging(label)
	if err != nil {
		return nil, fmt.Errorf("ReconcileTxns: %w", err)
	}

	sql := s.selectTxns(joined, "t.matched = @matched", "t.fecha DESC, t.id") + "LIMIT @limit OFFSET @offset"
	params := append(pageParams(page, limit), bigquery.QueryParameter{Name: "matched", Value: matched})

	rows, err := readAll[TxnRow](ctx, "ReconcileTxns", r.query(sql, params...))
	if err != nil {
		return nil, err
	}
	return toTransactions(rows), nil
}

// UncategorizedCount counts staging rows without a category.
func (r *Repository) UncategorizedCount(ctx context.Context, schema, label string) (int, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return 0, fmt.Errorf("UncategorizedCount: %w", err)
	}
	joined, err := s.staging(label)
	if err != nil {
		return 0, fmt.Errorf("UncategorizedCount: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		SELECT COUNT(*) AS count FROM %s WHERE id_categoria IS NULL
	`, joined))
	row, _, err := readOne[countRow](ctx, "UncategorizedCount", q)
	if err != nil {
		return 0, err
	}
	return int(row.Count), nil
}

// MinMaxDates returns the date span of a staging table. An empty table
// yields a zero (invalid) range.
func (r *Repository) MinMaxDates(ctx context.Context, schema, label string) (domain.DateRange, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("MinMaxDates: %w", err)
	}
	joined, err := s.staging(label)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("MinMaxDates: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		SELECT MIN(fecha) AS min_date, MAX(fecha) AS max_date FROM %s
	`, joined))
	row, ok, err := readOne[dateSpanRow](ctx, "MinMaxDates", q)
	if err != nil {
		return domain.DateRange{}, err
	}
	if !ok || !row.MinDate.Valid || !row.MaxDate.Valid {
		return domain.DateRange{}, nil
	}
	return domain.DateRange{From: row.MinDate.Date, To: row.MaxDate.Date}, nil
}

// UncategorizedTxns returns every staging row without a category.
func (r *Repository) UncategorizedTxns(ctx context.Context, schema, label string) ([]domain.Transaction, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return nil, fmt.Errorf("UncategorizedTxns: %w", err)
	}
	joined, err := s.staging(label)
	if err != nil {
		return nil, fmt.Errorf("UncategorizedTxns: %w", err)
	}

	sql := s.selectTxns(joined, "t.id_categoria IS NULL", "t.fecha, t.id")
	rows, err := readAll[TxnRow](ctx, "UncategorizedTxns", r.query(sql))
	if err != nil {
		return nil, err
	}
	return toTransactions(rows), nil
}

// ApplySuggestions writes category suggestions into a staging table in a
// single statement. Rows that were categorized meanwhile are left alone.
func (r *Repository) ApplySuggestions(ctx context.Context, schema, label string, suggestions []domain.Suggestion) (int64, error) {
	if len(suggestions) == 0 {
		return 0, nil
	}
	s, err := r.scoped(schema)
	if err != nil {
		return 0, fmt.Errorf("ApplySuggestions: %w", err)
	}
	joined, err := s.staging(label)
	if err != nil {
		return 0, fmt.Errorf("ApplySuggestions: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		UPDATE %s t
		SET id_categoria = sg.id_categoria, id_subcategoria = sg.id_subcategoria
		FROM UNNEST(@suggestions) sg
		WHERE t.id = sg.id AND t.id_categoria IS NULL
	`, joined),
		bigquery.QueryParameter{Name: "suggestions", Value: suggestionParams(suggestions)},
	)
	return r.runDML(ctx, "ApplySuggestions", q)
}

func suggestionParams(suggestions []domain.Suggestion) []suggestionParam {
	out := make([]suggestionParam, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, suggestionParam{
			ID:             sg.ID.String(),
			IDCategoria:    sg.CategoryID.String(),
			IDSubcategoria: nullString(sg.SubcategoryID),
		})
	}
	return out
}
