package main

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func txnsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "txns",
		Aliases: []string{"transactions"},
		Short:   "Browse and edit ledger transactions",
	}

	cmd.AddCommand(listTxnsCmd())
	cmd.AddCommand(addTxnCmd())
	cmd.AddCommand(setTxnCategoryCmd())
	cmd.AddCommand(deleteTxnCmd())

	return cmd
}

func listTxnsCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			book := ledger.NewLatest(client, cfg.PageLimit, logger.FromContext(cmd.Context()))
			for i := 0; i < pages && book.HasNextPage(); i++ {
				if err := book.FetchNextPage(cmd.Context()); err != nil {
					return fmt.Errorf("failed to get transactions: %w", err)
				}
			}

			printTxns(cmd.OutOrStdout(), book.Rows())
			if book.HasNextPage() {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("More transactions available; use --pages."))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to fetch")
	return cmd
}

func addTxnCmd() *cobra.Command {
	var (
		date        string
		description string
		amount      string
		bank        string
		category    string
		subcategory string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction to the ledger by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			txn, err := parseManualTxn(date, description, amount, bank)
			if err != nil {
				return err
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if category != "" {
				store := newCategoryStore(cmd, client)
				c, err := resolveCategory(ctx, store, category)
				if err != nil {
					return err
				}
				txn.CategoryID, txn.Category = c.Value, c.Label
				if subcategory != "" {
					s, err := resolveSubcategory(c, subcategory)
					if err != nil {
						return err
					}
					txn.SubcategoryID, txn.Subcategory = s.Value, s.Label
				}
				validator, err := store.Validator(ctx)
				if err != nil {
					return err
				}
				if err := validator.ValidateAssignment(txn.CategoryID, txn.SubcategoryID); err != nil {
					return err
				}
			}

			created, err := client.InsertTxn(ctx, txn)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Added transaction "+created.ID.String()))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	f.StringVar(&description, "description", "", "description")
	f.StringVar(&amount, "amount", "", "amount, negative for expenses (1234.56 or 1.234,56)")
	f.StringVar(&bank, "bank", "", "bank name")
	f.StringVar(&category, "category", "", "category id or label")
	f.StringVar(&subcategory, "subcategory", "", "subcategory id or label")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// parseManualTxn validates the fields of a hand-entered transaction.
func parseManualTxn(date, description, amount, bank string) (domain.Transaction, error) {
	d, err := civil.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Transaction{}, fmt.Errorf("description is required")
	}
	value, err := parseAmount(amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		Date:        d,
		Description: description,
		Amount:      value,
		Bank:        strings.TrimSpace(bank),
	}, nil
}

// parseAmount accepts plain decimals and the Spanish "1.234,56" form.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

func setTxnCategoryCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "set-category <txn-id> <category> [subcategory]",
		Short: "Move a ledger transaction to another category",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := domain.ID(args[0])

			book := ledger.NewLatest(client, cfg.PageLimit, logger.FromContext(ctx))
			if err := loadUntil(ctx, book, id, pages); err != nil {
				return err
			}

			store := newCategoryStore(cmd, client)
			c, err := resolveCategory(ctx, store, args[1])
			if err != nil {
				return err
			}
			if err := book.ReassignCategory(ctx, id, c); err != nil {
				return err
			}
			if len(args) == 3 {
				s, err := resolveSubcategory(c, args[2])
				if err != nil {
					return err
				}
				if err := book.ReassignSubcategory(ctx, id, s); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ %s → %s", id, c.Label)))
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "max-pages", 10, "pages of latest transactions to search for the id")
	return cmd
}

// loadUntil pages through the book until id is loaded.
func loadUntil(ctx context.Context, book *ledger.Book, id domain.ID, maxPages int) error {
	for i := 0; i < maxPages && book.HasNextPage(); i++ {
		if err := book.FetchNextPage(ctx); err != nil {
			return err
		}
		for _, t := range book.Rows() {
			if t.ID == id {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s not among the latest %d pages", ledger.ErrUnknownTransaction, id, maxPages)
}

func deleteTxnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <txn-id>",
		Short: "Delete a ledger transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			book := ledger.NewLatest(client, cfg.PageLimit, logger.FromContext(cmd.Context()))
			if err := book.Delete(cmd.Context(), domain.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Deleted transaction "+args[0]))
			return nil
		},
	}
}
