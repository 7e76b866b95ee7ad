package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/format"
	"github.com/dvloznov/finance-ledger/internal/grid"
	"github.com/dvloznov/finance-ledger/internal/tui"
	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	var (
		year     int
		plain    bool
		expand   bool
		filter   string
		months   []string
		sortBy   string
		sortDesc bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income and expenses per category and month",
		Long: `Open the yearly summary grid. Categories are listed on the left and months on
the right; both panes scroll together. Use --plain to print the grid instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			if !plain {
				return tui.RunSummary(cmd.Context(), tui.Config{Year: year, Load: client.GroupedTxns})
			}

			state, err := summaryState(filter, months, sortBy, sortDesc)
			if err != nil {
				return err
			}
			rows, err := client.GroupedTxns(cmd.Context(), year)
			if err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}
			if expand {
				for _, r := range rows {
					state = state.ToggleCategory(r.Key)
				}
			}
			printGrid(cmd.OutOrStdout(), grid.Build(rows, state))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&year, "year", time.Now().Year(), "year to summarise")
	f.BoolVar(&plain, "plain", false, "print the grid instead of opening the interactive view")
	f.BoolVar(&expand, "expand", false, "with --plain, show subcategories")
	f.StringVar(&filter, "filter", "", "with --plain, only categories whose label contains this text")
	f.StringSliceVar(&months, "months", nil, "with --plain, months to show (e.g. enero,feb,3)")
	f.StringVar(&sortBy, "sort", "", "with --plain, sort by 'label', 'total' or a month")
	f.BoolVar(&sortDesc, "desc", false, "with --plain, sort descending")
	return cmd
}

// summaryState builds the grid state the flags describe.
func summaryState(filter string, months []string, sortBy string, desc bool) (grid.State, error) {
	s := grid.NewState().FilterByLabel(filter)

	if len(months) > 0 {
		want := make(map[domain.Month]bool, len(months))
		for _, raw := range months {
			m, err := domain.ParseMonth(raw)
			if err != nil {
				return grid.State{}, err
			}
			want[m] = true
		}
		for _, m := range domain.Months {
			if !want[m] {
				s = s.ToggleColumn(m)
			}
		}
	}

	if sortBy == "" {
		return s, nil
	}
	var col grid.Column
	switch strings.ToLower(sortBy) {
	case "label", "categoria", "categoría":
		col = grid.ByLabel()
	case "total":
		col = grid.ByTotal()
	default:
		m, err := domain.ParseMonth(sortBy)
		if err != nil {
			return grid.State{}, err
		}
		col = grid.ByMonth(m)
	}
	s = s.SortBy(col)
	if desc {
		s = s.SortBy(col)
	}
	return s, nil
}

func printGrid(out io.Writer, t grid.Table) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()

	header := []string{"Categoría"}
	for _, m := range t.Months {
		header = append(header, m.Short())
	}
	header = append(header, "Total")
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

	for i, left := range t.Left {
		cells := []string{strings.Repeat("  ", left.Depth) + left.Label}
		for _, v := range t.Right[i].Cells {
			cells = append(cells, format.Fixed(v, 2))
		}
		cells = append(cells, format.Fixed(t.Right[i].Total, 2))
		fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}

	footer := []string{"Total"}
	for _, v := range t.Footer.Cells {
		footer = append(footer, format.Fixed(v, 2))
	}
	footer = append(footer, format.Fixed(t.Footer.Total, 2))
	fmt.Fprintln(w, strings.Join(footer, "\t")+"\t")
}
