package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is derived from the sign of the amount.
type TransactionType int

const (
	Expense TransactionType = iota
	Income
)

func (t TransactionType) String() string {
	if t == Income {
		return "income"
	}
	return "expense"
}

// Transaction is one ledger entry as exchanged with the backend. Statement
// derived rows also carry the running balance.
type Transaction struct {
	ID            ID                  `json:"id"`
	Date          civil.Date          `json:"fecha"`
	Description   string              `json:"descripcion"`
	Amount        decimal.Decimal     `json:"valor"`
	Balance       decimal.NullDecimal `json:"saldo"`
	CategoryID    ID                  `json:"id_categoria,omitempty"`
	Category      string              `json:"categoria,omitempty"`
	SubcategoryID ID                  `json:"id_subcategoria,omitempty"`
	Subcategory   string              `json:"sub_categoria,omitempty"`
	Bank          string              `json:"banco,omitempty"`
}

// Type reports income for positive amounts and expense otherwise.
func (t Transaction) Type() TransactionType {
	if t.Amount.IsPositive() {
		return Income
	}
	return Expense
}

// IsCategorized reports whether the transaction references a category.
// Subcategories stay optional.
func (t Transaction) IsCategorized() bool {
	return !t.CategoryID.IsZero()
}

// TxnAssignment is the body of the category/subcategory reassignment calls.
type TxnAssignment struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
	Value ID     `json:"value"`
}

// StatementRow is a raw row of an uploaded bank statement.
type StatementRow struct {
	Date        civil.Date          `json:"fecha"`
	Description string              `json:"descripcion"`
	Amount      decimal.Decimal     `json:"valor"`
	Balance     decimal.NullDecimal `json:"saldo"`
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From civil.Date `json:"min_date"`
	To   civil.Date `json:"max_date"`
}

// Valid reports whether both ends are set and ordered.
func (r DateRange) Valid() bool {
	return r.From.IsValid() && r.To.IsValid() && !r.To.Before(r.From)
}
