package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
)

// txnColumns are the columns shared by the ledger and staging tables.
const txnColumns = "id, fecha, descripcion, valor, saldo, id_categoria, id_subcategoria, banco"

// selectTxns selects the rows of table joined with their category labels.
// where and order are appended verbatim.
func (s scope) selectTxns(table, where, order string) string {
	sql := fmt.Sprintf(`
		SELECT
		  t.id,
		  t.fecha,
		  t.descripcion,
		  t.valor,
		  t.saldo,
		  t.id_categoria,
		  c.label AS categoria,
		  t.id_subcategoria,
		  sc.label AS sub_categoria,
		  t.banco
		FROM %s t
		LEFT JOIN %s c ON c.id = t.id_categoria
		LEFT JOIN %s sc ON sc.id = t.id_subcategoria
	`, table, s.ref(categoriesTable), s.ref(subcategoriesTable))
	if where != "" {
		sql += "WHERE " + where + "\n"
	}
	if order != "" {
		sql += "ORDER BY " + order + "\n"
	}
	return sql
}

// LatestTxns returns one page of the ledger, newest first.
func (r *Repository) LatestTxns(ctx context.Context, schema string, page, limit int) ([]domain.Transaction, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return nil, fmt.Errorf("LatestTxns: %w", err)
	}
	sql := s.selectTxns(s.ref(s.ledger), "", "t.fecha DESC, t.id") + "LIMIT @limit OFFSET @offset"

	rows, err := readAll[TxnRow](ctx, "LatestTxns", r.query(sql, pageParams(page, limit)...))
	if err != nil {
		return nil, err
	}
	return toTransactions(rows), nil
}

// InsertTxn appends a manually entered transaction to the ledger and
// returns it with its generated id.
func (r *Repository) InsertTxn(ctx context.Context, schema string, txn domain.Transaction) (domain.Transaction, error) {
	s, err := r.scoped(schema)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("InsertTxn: %w", err)
	}

	txn.ID = domain.ID(uuid.NewString())
	q := r.query(fmt.Sprintf(`
		INSERT %s (%s)
		VALUES (
		  @id,
		  @fecha,
		  @descripcion,
		  CAST(@valor AS NUMERIC),
		  SAFE_CAST(@saldo AS NUMERIC),
		  @id_categoria,
		  @id_subcategoria,
		  @banco
		)
	`, s.ref(s.ledger), txnColumns),
		bigquery.QueryParameter{Name: "id", Value: txn.ID.String()},
		bigquery.QueryParameter{Name: "fecha", Value: txn.Date},
		bigquery.QueryParameter{Name: "descripcion", Value: txn.Description},
		bigquery.QueryParameter{Name: "valor", Value: txn.Amount.String()},
		bigquery.QueryParameter{Name: "saldo", Value: numericText(txn.Balance)},
		bigquery.QueryParameter{Name: "id_categoria", Value: nullString(txn.CategoryID)},
		bigquery.QueryParameter{Name: "id_subcategoria", Value: nullString(txn.SubcategoryID)},
		bigquery.QueryParameter{Name: "banco", Value: bigquery.NullString{StringVal: txn.Bank, Valid: txn.Bank != ""}},
	)
	if _, err := r.runDML(ctx, "InsertTxn", q); err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

// UpdateTxnCategory sets the category of one transaction and clears its
// subcategory. An empty label targets the ledger, otherwise the staging
// table of that statement.
func (r *Repository) UpdateTxnCategory(ctx context.Context, schema, label string, id, categoryID domain.ID) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("UpdateTxnCategory: %w", err)
	}
	table, err := s.txnTable(label)
	if err != nil {
		return fmt.Errorf("UpdateTxnCategory: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		UPDATE %s
		SET id_categoria = @value, id_subcategoria = NULL
		WHERE id = @id
	`, table),
		bigquery.QueryParameter{Name: "id", Value: id.String()},
		bigquery.QueryParameter{Name: "value", Value: nullString(categoryID)},
	)
	return r.updateOne(ctx, "UpdateTxnCategory", q, id)
}

// UpdateTxnSubcategory sets the subcategory of one transaction.
func (r *Repository) UpdateTxnSubcategory(ctx context.Context, schema, label string, id, subcategoryID domain.ID) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("UpdateTxnSubcategory: %w", err)
	}
	table, err := s.txnTable(label)
	if err != nil {
		return fmt.Errorf("UpdateTxnSubcategory: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		UPDATE %s SET id_subcategoria = @value WHERE id = @id
	`, table),
		bigquery.QueryParameter{Name: "id", Value: id.String()},
		bigquery.QueryParameter{Name: "value", Value: nullString(subcategoryID)},
	)
	return r.updateOne(ctx, "UpdateTxnSubcategory", q, id)
}

// DeleteTxn removes one transaction from the ledger.
func (r *Repository) DeleteTxn(ctx context.Context, schema string, id domain.ID) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("DeleteTxn: %w", err)
	}
	q := r.query(fmt.Sprintf(`
		DELETE FROM %s WHERE id = @id
	`, s.ref(s.ledger)),
		bigquery.QueryParameter{Name: "id", Value: id.String()},
	)
	return r.updateOne(ctx, "DeleteTxn", q, id)
}

func (r *Repository) updateOne(ctx context.Context, op string, q *bigquery.Query, id domain.ID) error {
	n, err := r.runDML(ctx, op, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, id)
	}
	return nil
}

// DeleteTxns deletes every row of table dated within window, both ends
// included.
func (r *Repository) DeleteTxns(ctx context.Context, schema, table string, window domain.DateRange) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("DeleteTxns: %w", err)
	}
	ref, err := s.table(table)
	if err != nil {
		return fmt.Errorf("DeleteTxns: %w", err)
	}
	if !window.Valid() {
		return fmt.Errorf("DeleteTxns: invalid date range %s..%s", window.From, window.To)
	}

	q := r.query(fmt.Sprintf(`
		DELETE FROM %s WHERE fecha BETWEEN @from_date AND @to_date
	`, ref),
		bigquery.QueryParameter{Name: "from_date", Value: window.From},
		bigquery.QueryParameter{Name: "to_date", Value: window.To},
	)
	n, err := r.runDML(ctx, "DeleteTxns", q)
	if err != nil {
		return err
	}
	r.log.Info().Str("table", table).Int64("rows", n).
		Str("from", window.From.String()).Str("to", window.To.String()).
		Msg("Deleted transactions")
	return nil
}

// InsertTxns copies every row of fromTable into toTable.
func (r *Repository) InsertTxns(ctx context.Context, schema, fromTable, toTable string) error {
	s, err := r.scoped(schema)
	if err != nil {
		return fmt.Errorf("InsertTxns: %w", err)
	}
	from, err := s.table(fromTable)
	if err != nil {
		return fmt.Errorf("InsertTxns: %w", err)
	}
	to, err := s.table(toTable)
	if err != nil {
		return fmt.Errorf("InsertTxns: %w", err)
	}

	q := r.query(fmt.Sprintf(`
		INSERT %s (%s)
		SELECT %s FROM %s
	`, to, txnColumns, txnColumns, from))
	n, err := r.runDML(ctx, "InsertTxns", q)
	if err != nil {
		return err
	}
	r.log.Info().Str("from", fromTable).Str("to", toTable).Int64("rows", n).Msg("Copied transactions")
	return nil
}
