package tui

import "math"

// pane is one vertically scrolling list of the grid. Both panes hold the
// same number of rows.
type pane struct {
	offset int
	height int
	rows   int
}

// ScrollToOffset moves the pane to a row offset.
func (p *pane) ScrollToOffset(offset float64) {
	p.offset = p.clamp(int(math.Round(offset)))
}

func (p *pane) maxOffset() int {
	if p.rows <= p.height {
		return 0
	}
	return p.rows - p.height
}

func (p *pane) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if max := p.maxOffset(); offset > max {
		return max
	}
	return offset
}

// visible reports the half-open row range currently on screen.
func (p *pane) visible() (int, int) {
	end := p.offset + p.height
	if end > p.rows {
		end = p.rows
	}
	return p.offset, end
}
