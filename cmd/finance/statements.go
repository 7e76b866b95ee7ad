package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dvloznov/finance-ledger/internal/apiclient"
	"github.com/dvloznov/finance-ledger/internal/reconcile"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

func statementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "List, preview and upload bank statements",
	}

	cmd.AddCommand(listStatementsCmd())
	cmd.AddCommand(showStatementCmd())
	cmd.AddCommand(uploadStatementCmd())

	return cmd
}

func listStatementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			coord := newCoordinator(cmd, client)

			statements := coord.ListStatements(cmd.Context())
			out := cmd.OutOrStdout()
			if len(statements) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No statements found. Use 'finance statements upload' to add one."))
				return nil
			}

			selected, _ := coord.Selected()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "%s\t%s\t%s\n", headerStyle.Render(" "), headerStyle.Render("Statement"), headerStyle.Render("Object"))
			for _, s := range statements {
				marker := " "
				if s.Label == selected.Label {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", marker, s.Label, s.Object)
			}
			return nil
		},
	}
}

func showStatementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [statement]",
		Short: "Preview the rows of a statement",
		Long:  `Show the raw rows of a statement. Without an argument the first listed statement is used.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			coord := newCoordinator(cmd, client)
			coord.ListStatements(cmd.Context())
			if len(args) == 1 {
				coord.Select(args[0])
			}

			rows, err := coord.StatementRows(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load statement rows: %w", err)
			}
			selected, _ := coord.Selected()
			fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render(selected.Label))
			printStatementRows(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func uploadStatementCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a statement file and register it as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if contentType == "" {
				detected, err := detectContentType(path)
				if err != nil {
					return err
				}
				contentType = detected
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open statement: %w", err)
			}
			defer f.Close()

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			coord := newCoordinator(cmd, client)

			st, err := coord.UploadStatement(cmd.Context(), reconcile.StatementFile{
				Name:     filepath.Base(path),
				MIMEType: contentType,
				Body:     f,
			})
			if err != nil {
				var uerr *reconcile.UploadError
				if errors.As(err, &uerr) && uerr.Orphaned() {
					fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("Uploaded object left without a table: "+uerr.GCSURI))
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Uploaded statement %s", st.Label)))
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "content type to upload with (detected from the file when empty)")
	return cmd
}

// detectContentType sniffs the statement file. Unknown binary content
// falls back to the spreadsheet type banks export.
func detectContentType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read statement: %w", err)
	}
	if mtype.Is("application/octet-stream") {
		return apiclient.DefaultUploadContentType, nil
	}
	return mtype.String(), nil
}
