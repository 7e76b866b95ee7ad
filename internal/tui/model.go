// Package tui renders the yearly category summary as a two pane grid: a
// frozen label pane on the left and the month values on the right, kept
// vertically in step by grid.ScrollSync.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/grid"
)

// Loader fetches the grouped summary of a year.
type Loader func(ctx context.Context, year int) ([]domain.GroupedRow, error)

// Config holds the summary screen configuration.
type Config struct {
	Load   Loader
	Theme  *Theme
	Year   int
	Width  int
	Height int
}

const (
	cellWidth     = 14
	minLabelWidth = 14
	maxLabelWidth = 32
	wheelStep     = 3
	// title, header, footer, status
	chromeLines = 4
)

type summaryLoadedMsg struct {
	err  error
	rows []domain.GroupedRow
	year int
}

// Model is the summary grid screen.
type Model struct {
	ctx      context.Context
	err      error
	left     *pane
	right    *pane
	sync     *grid.ScrollSync
	keymap   KeyMap
	theme    Theme
	load     Loader
	filter   textinput.Model
	rows     []domain.GroupedRow
	table    grid.Table
	state    grid.State
	focus    grid.Pane
	year     int
	cursor   int
	col      int
	colStart int
	width    int
	height   int
	loading  bool
	editing  bool
	quitting bool
}

// NewModel creates the summary screen.
func NewModel(ctx context.Context, cfg Config) Model {
	if cfg.Year == 0 {
		cfg.Year = time.Now().Year()
	}
	if cfg.Width == 0 {
		cfg.Width = 120
	}
	if cfg.Height == 0 {
		cfg.Height = 30
	}
	theme := DefaultTheme
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}

	filter := textinput.New()
	filter.Placeholder = "categoría"
	filter.Prompt = "/ "
	filter.CharLimit = 64

	left, right := &pane{}, &pane{}
	m := Model{
		ctx:    ctx,
		left:   left,
		right:  right,
		sync:   grid.NewScrollSync(left, right),
		keymap: DefaultKeyMap(),
		theme:  theme,
		load:   cfg.Load,
		filter: filter,
		state:  grid.NewState(),
		focus:  grid.RightPane,
		year:   cfg.Year,
		width:  cfg.Width,
		height:  cfg.Height,
		loading: cfg.Load != nil,
	}
	m.rebuild()
	return m
}

// Init starts loading the current year.
func (m Model) Init() tea.Cmd {
	return m.fetch()
}

func (m *Model) fetch() tea.Cmd {
	if m.load == nil {
		return nil
	}
	m.loading = true
	ctx, load, year := m.ctx, m.load, m.year
	return func() tea.Msg {
		rows, err := load(ctx, year)
		return summaryLoadedMsg{rows: rows, err: err, year: year}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuild()
		return m, nil

	case summaryLoadedMsg:
		if msg.year != m.year {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.rows = msg.rows
		}
		m.rebuild()
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.state = m.state.FilterByLabel("")
		m.rebuild()
		return m, nil
	case tea.KeyEnter:
		m.editing = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != m.state.Filter() {
		m.state = m.state.FilterByLabel(m.filter.Value())
		m.cursor = 0
		m.rebuild()
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keymap
	switch {
	case key.Matches(msg, k.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, k.Up):
		m.moveCursor(-1)
	case key.Matches(msg, k.Down):
		m.moveCursor(1)
	case key.Matches(msg, k.PageUp):
		m.moveCursor(-m.pageSize())
	case key.Matches(msg, k.PageDown):
		m.moveCursor(m.pageSize())
	case key.Matches(msg, k.Home):
		m.moveCursor(-len(m.table.Layout))
	case key.Matches(msg, k.End):
		m.moveCursor(len(m.table.Layout))
	case key.Matches(msg, k.Left):
		m.moveColumn(-1)
	case key.Matches(msg, k.Right):
		m.moveColumn(1)
	case key.Matches(msg, k.Focus):
		m.focus = 1 - m.focus
	case key.Matches(msg, k.Expand):
		m.toggleCurrent()
	case key.Matches(msg, k.SortLabel):
		m.state = m.state.SortBy(grid.ByLabel())
		m.rebuild()
	case key.Matches(msg, k.SortColumn):
		m.state = m.state.SortBy(m.currentColumn())
		m.rebuild()
	case key.Matches(msg, k.ToggleColumn):
		if col := m.currentColumn(); col.Kind == grid.MonthColumn {
			m.state = m.state.ToggleColumn(col.Month)
			m.rebuild()
		}
	case key.Matches(msg, k.ShowAll):
		for _, month := range domain.Months {
			if !m.state.IsActive(month) {
				m.state = m.state.ToggleColumn(month)
			}
		}
		m.rebuild()
	case key.Matches(msg, k.Filter):
		m.editing = true
		m.filter.SetValue(m.state.Filter())
		m.rebuild()
		return m, m.filter.Focus()
	case key.Matches(msg, k.ClearFilter):
		m.filter.SetValue("")
		m.state = m.state.FilterByLabel("")
		m.rebuild()
	case key.Matches(msg, k.PrevYear):
		m.year--
		m.rows = nil
		m.rebuild()
		return m, m.fetch()
	case key.Matches(msg, k.NextYear):
		m.year++
		m.rows = nil
		m.rebuild()
		return m, m.fetch()
	case key.Matches(msg, k.Refresh):
		return m, m.fetch()
	}
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	var delta int
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		delta = -wheelStep
	case tea.MouseButtonWheelDown:
		delta = wheelStep
	default:
		return
	}

	p := grid.RightPane
	if msg.X < m.labelWidth() {
		p = grid.LeftPane
	}
	src := m.pane(p)
	m.scroll(p, src.offset+delta)

	start, end := src.visible()
	if m.cursor < start {
		m.cursor = start
	}
	if end > 0 && m.cursor >= end {
		m.cursor = end - 1
	}
}

// scroll moves pane p and lets the synchroniser drag the other one along.
func (m *Model) scroll(p grid.Pane, offset int) {
	src := m.pane(p)
	src.ScrollToOffset(float64(offset))
	m.sync.OnScroll(p, float64(src.offset))
	m.sync.OnScrollEnd(p)
}

func (m *Model) pane(p grid.Pane) *pane {
	if p == grid.LeftPane {
		return m.left
	}
	return m.right
}

func (m *Model) moveCursor(delta int) {
	n := len(m.table.Layout)
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	m.ensureVisible()
}

func (m *Model) ensureVisible() {
	src := m.pane(m.focus)
	switch {
	case m.cursor < src.offset:
		m.scroll(m.focus, m.cursor)
	case m.cursor >= src.offset+src.height:
		m.scroll(m.focus, m.cursor-src.height+1)
	}
}

func (m *Model) moveColumn(delta int) {
	m.col += delta
	m.clampColumn()
}

func (m *Model) clampColumn() {
	last := len(m.table.Months)
	if m.col < 0 {
		m.col = 0
	}
	if m.col > last {
		m.col = last
	}
	visible := m.visibleColumns()
	if m.col < m.colStart {
		m.colStart = m.col
	}
	if m.col >= m.colStart+visible {
		m.colStart = m.col - visible + 1
	}
	if m.colStart < 0 {
		m.colStart = 0
	}
}

// currentColumn is the value column under the column cursor. The column
// after the last month is the row total.
func (m Model) currentColumn() grid.Column {
	if m.focus == grid.LeftPane {
		return grid.ByLabel()
	}
	if m.col < len(m.table.Months) {
		return grid.ByMonth(m.table.Months[m.col])
	}
	return grid.ByTotal()
}

func (m *Model) toggleCurrent() {
	if m.cursor >= len(m.table.Layout) {
		return
	}
	ref := m.table.Layout[m.cursor]
	cat := m.table.View[ref.Category]
	if len(cat.Subcategories) == 0 {
		return
	}
	m.state = m.state.ToggleCategory(cat.Key)
	m.rebuild()
	if ref.Kind == grid.SubcategoryRow {
		// The row collapsed under the cursor; land on its parent.
		for i, r := range m.table.Layout {
			if r.Kind == grid.CategoryRow && r.Category == ref.Category {
				m.cursor = i
				break
			}
		}
		m.ensureVisible()
	}
}

// rebuild derives a fresh frame and re-clamps the cursors and panes.
func (m *Model) rebuild() {
	m.table = grid.Build(m.rows, m.state)
	n := len(m.table.Layout)
	height := m.pageSize()
	for _, p := range []*pane{m.left, m.right} {
		p.rows = n
		p.height = height
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	src := m.pane(m.focus)
	if clamped := src.clamp(src.offset); clamped != src.offset {
		m.scroll(m.focus, clamped)
	}
	m.clampColumn()
	if n > 0 {
		m.ensureVisible()
	}
}

func (m Model) pageSize() int {
	h := m.height - chromeLines
	if m.editing || m.state.Filter() != "" {
		h--
	}
	if h < 1 {
		return 1
	}
	return h
}

func (m Model) labelWidth() int {
	w := minLabelWidth
	for _, r := range m.table.Left {
		if l := len([]rune(r.Label)) + 2*r.Depth + 2; l > w {
			w = l
		}
	}
	if w > maxLabelWidth {
		w = maxLabelWidth
	}
	return w
}

func (m Model) visibleColumns() int {
	n := (m.width - m.labelWidth() - 1) / cellWidth
	if n < 1 {
		return 1
	}
	return n
}

// Err returns the last load error.
func (m Model) Err() error { return m.err }

// State returns the current view state.
func (m Model) State() grid.State { return m.state }

// Table returns the current frame.
func (m Model) Table() grid.Table { return m.table }

// Cursor returns the selected row.
func (m Model) Cursor() int { return m.cursor }

// Offsets returns the scroll offsets of the left and right panes.
func (m Model) Offsets() (int, int) { return m.left.offset, m.right.offset }

// Year returns the displayed year.
func (m Model) Year() int { return m.year }

// RunSummary runs the summary screen until the user quits.
func RunSummary(ctx context.Context, cfg Config) error {
	if cfg.Load == nil {
		return errors.New("RunSummary: no loader configured")
	}
	p := tea.NewProgram(
		NewModel(ctx, cfg),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
