package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/grid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"statements", "reconcile", "categories", "txns", "summary"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func findCmd(t *testing.T, root *cobra.Command, path ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find(path)
	require.NoError(t, err)
	return cmd
}

func TestReconcileCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "matched", "unmatched", "suggest", "set-category", "complete"} {
		cmd := findCmd(t, root, "reconcile", name)
		assert.Equal(t, name, cmd.Name())
	}

	matched := findCmd(t, root, "reconcile", "matched")
	assert.Equal(t, "1", matched.Flag("pages").DefValue)
	assert.NotNil(t, matched.Flag("all"))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"-12.5", "-12.5"},
		{"1.234,56", "1234.56"},
		{"-1.000.000,01", "-1000000.01"},
		{" 7 ", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}

	_, err := parseAmount("abc")
	assert.Error(t, err)
}

func TestParseManualTxn(t *testing.T) {
	txn, err := parseManualTxn("2024-03-01", "  Mercadona ", "-45,20", "Santander")
	require.NoError(t, err)
	assert.Equal(t, "Mercadona", txn.Description)
	assert.Equal(t, "2024-03-01", txn.Date.String())
	assert.Equal(t, domain.Expense, txn.Type())

	_, err = parseManualTxn("01/03/2024", "x", "1", "")
	assert.Error(t, err)
	_, err = parseManualTxn("2024-03-01", " ", "1", "")
	assert.Error(t, err)
}

func TestSummaryState(t *testing.T) {
	s, err := summaryState("ho", []string{"enero", "feb"}, "total", true)
	require.NoError(t, err)
	assert.Equal(t, "ho", s.Filter())
	assert.Equal(t, []domain.Month{domain.Enero, domain.Febrero}, s.ActiveMonths())
	assert.Equal(t, grid.Sort{Column: grid.ByTotal(), Dir: grid.Descending}, s.Sort())

	s, err = summaryState("", nil, "marzo", false)
	require.NoError(t, err)
	assert.Len(t, s.ActiveMonths(), 12)
	assert.Equal(t, grid.Sort{Column: grid.ByMonth(domain.Marzo), Dir: grid.Ascending}, s.Sort())

	_, err = summaryState("", []string{"smarch"}, "", false)
	assert.Error(t, err)
}

func TestPrintGrid(t *testing.T) {
	rows := []domain.GroupedRow{
		{Key: "hogar", Label: "Hogar", Months: domain.MonthValues{domain.Enero: decimal.NewFromInt(1234)}},
		{Key: "ocio", Label: "Ocio", Months: domain.MonthValues{domain.Enero: decimal.NewFromInt(-5)}},
	}
	s, err := summaryState("", []string{"enero"}, "", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	printGrid(&buf, grid.Build(rows, s))

	out := buf.String()
	assert.Contains(t, out, "ene")
	assert.Contains(t, out, "1.234,00")
	assert.Contains(t, out, "-5,00")
	assert.Contains(t, out, "1.229,00")
}

func TestCategoriesList_AgainstBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]domain.Category{
			{Label: "Ocio", Value: "2"},
			{Label: "Hogar", Value: "1", Subcategories: []domain.Subcategory{{Label: "Luz", Value: "10"}}},
		})
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("page_limit: 50\n"), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"categories", "list", "--config", cfgPath, "--api-url", srv.URL, "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Equal(t, 50, cfg.PageLimit)
	assert.Regexp(t, `(?s)Hogar.*Luz.*Ocio`, out.String())
}

func TestClientCommands_RequireAPIURL(t *testing.T) {
	t.Setenv("FINANCE_API_URL", "")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{}\n"), 0o600))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"txns", "list", "--config", cfgPath, "--api-url", ""})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")
}
