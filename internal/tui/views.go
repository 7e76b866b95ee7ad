package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dvloznov/finance-ledger/internal/format"
	"github.com/dvloznov/finance-ledger/internal/grid"
	"github.com/shopspring/decimal"
)

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderTitle())
	b.WriteByte('\n')
	if m.editing || m.state.Filter() != "" {
		b.WriteString(m.filter.View())
		b.WriteByte('\n')
	}

	labels := m.renderLeft()
	values := m.renderRight()
	divider := m.theme.Divider.Render(strings.TrimSuffix(strings.Repeat("│\n", lipgloss.Height(labels)), "\n"))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labels, divider, values))
	b.WriteByte('\n')
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderTitle() string {
	title := fmt.Sprintf("Resumen %d", m.year)
	if m.loading {
		title += " · cargando…"
	}
	return m.theme.Title.Render(title)
}

// renderLeft draws the frozen label pane: header, visible rows, footer.
func (m Model) renderLeft() string {
	w := m.labelWidth()
	lines := make([]string, 0, m.left.height+2)

	header := "Categoría" + sortMark(m.state.Sort(), grid.ByLabel())
	lines = append(lines, m.theme.Header.Render(fit(header, w)))

	start, end := m.left.visible()
	for i := start; i < end; i++ {
		row := m.table.Left[i]
		marker := "  "
		if row.Expandable {
			marker = "▸ "
			if row.Expanded {
				marker = "▾ "
			}
		}
		text := fit(strings.Repeat("  ", row.Depth)+marker+row.Label, w)

		style := m.theme.Row
		if row.Depth > 0 {
			style = m.theme.SubRow
		}
		if i == m.cursor && m.focus == grid.LeftPane {
			style = m.theme.Cursor
		}
		lines = append(lines, style.Render(text))
	}
	for i := end - start; i < m.left.height; i++ {
		lines = append(lines, strings.Repeat(" ", w))
	}

	lines = append(lines, m.theme.Footer.Render(fit("Total", w)))
	return strings.Join(lines, "\n")
}

// renderRight draws the value pane for the horizontally visible columns.
func (m Model) renderRight() string {
	first, last := m.columnWindow()
	lines := make([]string, 0, m.right.height+2)

	var header strings.Builder
	for c := first; c < last; c++ {
		label := "Total"
		col := grid.ByTotal()
		if c < len(m.table.Months) {
			label = m.table.Months[c].Short()
			col = grid.ByMonth(m.table.Months[c])
		}
		cell := format.Pad(label+sortMark(m.state.Sort(), col), cellWidth)
		if c == m.col && m.focus == grid.RightPane {
			cell = m.theme.Column.Render(cell)
		}
		header.WriteString(m.theme.Header.Render(cell))
	}
	lines = append(lines, header.String())

	start, end := m.right.visible()
	for i := start; i < end; i++ {
		row := m.table.Right[i]
		style := m.theme.Row
		if m.table.Layout[i].Kind == grid.SubcategoryRow {
			style = m.theme.SubRow
		}
		if i == m.cursor && m.focus == grid.RightPane {
			style = m.theme.Cursor
		}
		lines = append(lines, style.Render(m.renderCells(row.Cells, row.Total, first, last)))
	}
	for i := end - start; i < m.right.height; i++ {
		lines = append(lines, "")
	}

	footer := m.table.Footer
	lines = append(lines, m.theme.Footer.Render(m.renderCells(footer.Cells, footer.Total, first, last)))
	return strings.Join(lines, "\n")
}

func (m Model) renderCells(cells []decimal.Decimal, total decimal.Decimal, first, last int) string {
	var b strings.Builder
	for c := first; c < last; c++ {
		v := total
		if c < len(cells) {
			v = cells[c]
		}
		b.WriteString(format.Pad(format.Fixed(v, 2), cellWidth))
	}
	return b.String()
}

// columnWindow returns the half-open range of value columns on screen.
func (m Model) columnWindow() (int, int) {
	n := len(m.table.Months) + 1
	last := m.colStart + m.visibleColumns()
	if last > n {
		last = n
	}
	return m.colStart, last
}

func (m Model) renderStatus() string {
	if m.err != nil {
		return m.theme.Error.Render("error: " + m.err.Error())
	}
	parts := make([]string, 0, 8)
	for _, b := range m.keymap.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.Status.Render(strings.Join(parts, " · "))
}

func sortMark(s grid.Sort, col grid.Column) string {
	if s.Dir == grid.Unsorted || s.Column != col {
		return ""
	}
	if s.Dir == grid.Ascending {
		return " ▲"
	}
	return " ▼"
}

// fit left-aligns s in exactly width runes, cutting it with an ellipsis.
func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return fmt.Sprintf("%-*s", width, s)
}
