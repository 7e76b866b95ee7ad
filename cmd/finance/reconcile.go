package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/apiclient"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/pagination"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a statement against the ledger",
		Long: `Match the rows of an uploaded statement against the ledger, review the matched
and unmatched rows, fix their categories and commit them into the ledger.`,
	}

	cmd.AddCommand(runReconcileCmd())
	cmd.AddCommand(stagedCmd("matched", "Show staged rows that matched a ledger entry", (*reconcile.Coordinator).FetchMatched, (*reconcile.Coordinator).HasNextMatched))
	cmd.AddCommand(stagedCmd("unmatched", "Show staged rows without a ledger entry", (*reconcile.Coordinator).FetchUnmatched, (*reconcile.Coordinator).HasNextUnmatched))
	cmd.AddCommand(suggestCmd())
	cmd.AddCommand(setStagedCategoryCmd())
	cmd.AddCommand(completeCmd())

	return cmd
}

// selectStatement lists the statements and makes label the selection.
func selectStatement(cmd *cobra.Command, label string) (*apiclient.Client, *reconcile.Coordinator, error) {
	client, err := newClient(cmd)
	if err != nil {
		return nil, nil, err
	}
	coord := newCoordinator(cmd, client)
	coord.ListStatements(cmd.Context())
	coord.Select(label)
	return client, coord, nil
}

func runReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <statement>",
		Short: "Build the staged comparison of a statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, coord, err := selectStatement(cmd, args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := coord.RunReconciliation(ctx, args[0]); err != nil {
				return err
			}
			if err := coord.LoadStaged(ctx); err != nil {
				return fmt.Errorf("failed to load staged rows: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("✓ Reconciliation staged for "+args[0]))
			fmt.Fprintf(out, "  matched:   %d%s\n", len(coord.Matched()), more(coord.HasNextMatched()))
			fmt.Fprintf(out, "  unmatched: %d%s\n", len(coord.Unmatched()), more(coord.HasNextUnmatched()))
			return nil
		},
	}
}

func more(hasNext bool) string {
	if hasNext {
		return "+"
	}
	return ""
}

type fetchFunc func(*reconcile.Coordinator, context.Context, string) ([]domain.Transaction, error)

func stagedCmd(use, short string, fetch fetchFunc, hasNext func(*reconcile.Coordinator) bool) *cobra.Command {
	var (
		all   bool
		pages int
	)

	cmd := &cobra.Command{
		Use:   use + " <statement>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, coord, err := selectStatement(cmd, args[0])
			if err != nil {
				return err
			}

			var rows []domain.Transaction
			for i := 0; all || i < pages; i++ {
				page, err := fetch(coord, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows = append(rows, page...)
				if !hasNext(coord) {
					break
				}
			}

			printTxns(cmd.OutOrStdout(), rows)
			if hasNext(coord) {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("More rows available; use --pages or --all."))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to fetch")
	return cmd
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <statement>",
		Short: "Let the backend propose categories for uncategorized staged rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, coord, err := selectStatement(cmd, args[0])
			if err != nil {
				return err
			}
			n, err := coord.SuggestCategories(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ %d rows categorized", n)))
			return nil
		},
	}
}

func setStagedCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-category <statement> <txn-id> <category> [subcategory]",
		Short: "Assign a category to a staged row",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, coord, err := selectStatement(cmd, args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := domain.ID(args[1])

			stream, err := findStaged(ctx, coord, id)
			if err != nil {
				return err
			}
			book := ledger.NewBook(client, stream, args[0], logger.FromContext(ctx))

			store := newCategoryStore(cmd, client)
			category, err := resolveCategory(ctx, store, args[2])
			if err != nil {
				return err
			}
			if err := book.ReassignCategory(ctx, id, category); err != nil {
				return err
			}
			if len(args) == 4 {
				sub, err := resolveSubcategory(category, args[3])
				if err != nil {
					return err
				}
				if err := book.ReassignSubcategory(ctx, id, sub); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ %s → %s", id, category.Label)))
			return nil
		},
	}
}

// findStaged loads both staged streams until one of them holds id.
func findStaged(ctx context.Context, coord *reconcile.Coordinator, id domain.ID) (*pagination.Stream[domain.Transaction], error) {
	for _, stream := range []*pagination.Stream[domain.Transaction]{coord.MatchedStream(), coord.UnmatchedStream()} {
		if stream == nil {
			return nil, reconcile.ErrNoStatementSelected
		}
		items, err := stream.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range items {
			if t.ID == id {
				return stream, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownTransaction, id)
}

func completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <statement>",
		Short: "Commit the staged rows of a statement into the ledger",
		Long: `Replace the ledger rows in the statement's date window with the staged rows.
Refused while any staged row is still uncategorized.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, coord, err := selectStatement(cmd, args[0])
			if err != nil {
				return err
			}

			err = coord.CompleteReconciliation(cmd.Context(), args[0])
			if errors.Is(err, reconcile.ErrUncategorizedRemaining) {
				return fmt.Errorf("%w; use 'finance reconcile suggest' or 'finance reconcile set-category' first", err)
			}
			var cerr *reconcile.CompletionError
			if errors.As(err, &cerr) && cerr.LedgerWindowCleared {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("The ledger window was cleared but the staged rows were not inserted. Run 'finance reconcile complete' again."))
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Reconciliation completed for "+args[0]))
			return nil
		},
	}
}
