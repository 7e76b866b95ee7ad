package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dvloznov/finance-ledger/internal/apiclient"
	"github.com/dvloznov/finance-ledger/internal/categories"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/format"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/spf13/cobra"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// newClient builds the backend client from the loaded configuration.
func newClient(cmd *cobra.Command) (*apiclient.Client, error) {
	if err := cfg.RequireAPI(); err != nil {
		return nil, err
	}
	log := logger.FromContext(cmd.Context())
	return apiclient.New(cfg.APIURL, cfg.HTTPTimeout,
		apiclient.WithSchema(cfg.Schema),
		apiclient.WithLogger(log),
	)
}

func newCoordinator(cmd *cobra.Command, client *apiclient.Client) *reconcile.Coordinator {
	return reconcile.NewCoordinator(client, reconcile.Options{
		PageLimit:   cfg.PageLimit,
		LedgerTable: cfg.Server.LedgerTable,
		Logger:      logger.FromContext(cmd.Context()),
	})
}

func newCategoryStore(cmd *cobra.Command, client *apiclient.Client) *categories.Store {
	return categories.NewStore(client, cfg.Schema, cfg.StaleTime, logger.FromContext(cmd.Context()))
}

// resolveCategory finds a category by id or, failing that, by label.
func resolveCategory(ctx context.Context, store *categories.Store, arg string) (domain.Category, error) {
	tree, err := store.List(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	if c, ok := domain.FindCategory(tree, domain.ID(arg)); ok {
		return c, nil
	}
	for _, c := range tree {
		if strings.EqualFold(strings.TrimSpace(c.Label), strings.TrimSpace(arg)) {
			return c, nil
		}
	}
	return domain.Category{}, fmt.Errorf("%w: %q", categories.ErrUnknownCategory, arg)
}

// resolveSubcategory finds a subcategory of parent by id or label.
func resolveSubcategory(parent domain.Category, arg string) (domain.Subcategory, error) {
	for _, s := range parent.Subcategories {
		if string(s.Value) == arg || strings.EqualFold(strings.TrimSpace(s.Label), strings.TrimSpace(arg)) {
			if s.CategoryID.IsZero() {
				s.CategoryID = parent.Value
			}
			return s, nil
		}
	}
	return domain.Subcategory{}, fmt.Errorf("%w: %q in %q", categories.ErrUnknownSubcategory, arg, parent.Label)
}

func printTxns(out io.Writer, txns []domain.Transaction) {
	if len(txns) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No transactions."))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("ID"),
		headerStyle.Render("Fecha"),
		headerStyle.Render("Descripción"),
		headerStyle.Render("Valor"),
		headerStyle.Render("Categoría"),
		headerStyle.Render("Subcategoría"))
	for _, t := range txns {
		category := t.Category
		if !t.IsCategorized() {
			category = warningStyle.Render("(sin categoría)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date, t.Description, format.Fixed(t.Amount, 2), category, t.Subcategory)
	}
}

func printStatementRows(out io.Writer, rows []domain.StatementRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("Statement has no rows."))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		headerStyle.Render("Fecha"),
		headerStyle.Render("Descripción"),
		headerStyle.Render("Valor"),
		headerStyle.Render("Saldo"))
	for _, r := range rows {
		balance := ""
		if r.Balance.Valid {
			balance = format.Fixed(r.Balance.Decimal, 2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Date, r.Description, format.Fixed(r.Amount, 2), balance)
	}
}
