package bigquery

import (
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the number of decimal digits of a BigQuery NUMERIC.
const numericScale = 9

// TxnRow is a ledger or staging row joined with its category labels.
type TxnRow struct {
	ID             string              `bigquery:"id"`
	Fecha          civil.Date          `bigquery:"fecha"`
	Descripcion    bigquery.NullString `bigquery:"descripcion"`
	Valor          *big.Rat            `bigquery:"valor"` // NUMERIC
	Saldo          *big.Rat            `bigquery:"saldo"` // NULLABLE NUMERIC
	IDCategoria    bigquery.NullString `bigquery:"id_categoria"`
	Categoria      bigquery.NullString `bigquery:"categoria"`
	IDSubcategoria bigquery.NullString `bigquery:"id_subcategoria"`
	SubCategoria   bigquery.NullString `bigquery:"sub_categoria"`
	Banco          bigquery.NullString `bigquery:"banco"`
}

// Transaction converts the row to its wire form.
func (r TxnRow) Transaction() domain.Transaction {
	return domain.Transaction{
		ID:            domain.ID(r.ID),
		Date:          r.Fecha,
		Description:   r.Descripcion.StringVal,
		Amount:        ratToDecimal(r.Valor),
		Balance:       ratToNullDecimal(r.Saldo),
		CategoryID:    domain.ID(r.IDCategoria.StringVal),
		Category:      r.Categoria.StringVal,
		SubcategoryID: domain.ID(r.IDSubcategoria.StringVal),
		Subcategory:   r.SubCategoria.StringVal,
		Bank:          r.Banco.StringVal,
	}
}

func toTransactions(rows []TxnRow) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Transaction())
	}
	return out
}

// StatementRow is one line of a loaded statement table.
type StatementRow struct {
	Fecha       civil.Date          `bigquery:"fecha"`
	Descripcion bigquery.NullString `bigquery:"descripcion"`
	Valor       *big.Rat            `bigquery:"valor"`
	Saldo       *big.Rat            `bigquery:"saldo"`
}

// CategoryRow is a category joined with one of its subcategories (or none).
type CategoryRow struct {
	IDCategoria    string              `bigquery:"id_categoria"`
	Categoria      string              `bigquery:"categoria"`
	IDSubcategoria bigquery.NullString `bigquery:"id_subcategoria"`
	SubCategoria   bigquery.NullString `bigquery:"sub_categoria"`
}

// GroupedRow is one (category, subcategory, month) aggregate.
type GroupedRow struct {
	IDCategoria  bigquery.NullString `bigquery:"id_categoria"`
	Categoria    string              `bigquery:"categoria"`
	SubCategoria bigquery.NullString `bigquery:"sub_categoria"`
	Mes          int64               `bigquery:"mes"`
	Total        *big.Rat            `bigquery:"total"`
}

type dateSpanRow struct {
	MinDate bigquery.NullDate `bigquery:"min_date"`
	MaxDate bigquery.NullDate `bigquery:"max_date"`
}

type countRow struct {
	Count int64 `bigquery:"count"`
}

// suggestionParam is the STRUCT element of the suggestions array parameter.
type suggestionParam struct {
	ID             string              `bigquery:"id"`
	IDCategoria    string              `bigquery:"id_categoria"`
	IDSubcategoria bigquery.NullString `bigquery:"id_subcategoria"`
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func ratToNullDecimal(r *big.Rat) decimal.NullDecimal {
	if r == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(ratToDecimal(r))
}

func decimalToRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func nullString(id domain.ID) bigquery.NullString {
	return bigquery.NullString{StringVal: id.String(), Valid: !id.IsZero()}
}

// numericText passes a nullable amount as a STRING parameter; queries cast
// it with SAFE_CAST(@x AS NUMERIC).
func numericText(d decimal.NullDecimal) bigquery.NullString {
	if !d.Valid {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: d.Decimal.String(), Valid: true}
}
