package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakePane records scroll commands and, like a real list, reports the
// resulting offset back to the synchroniser synchronously.
type fakePane struct {
	pane     Pane
	sync     *ScrollSync
	commands []float64
}

func (f *fakePane) ScrollToOffset(offset float64) {
	f.commands = append(f.commands, offset)
	if f.sync != nil {
		f.sync.OnScroll(f.pane, offset)
	}
}

func newPanes() (*ScrollSync, *fakePane, *fakePane) {
	left := &fakePane{pane: LeftPane}
	right := &fakePane{pane: RightPane}
	s := NewScrollSync(left, right)
	left.sync, right.sync = s, s
	return s, left, right
}

func TestScrollSyncFollowsSource(t *testing.T) {
	s, left, right := newPanes()

	assert.True(t, s.OnScroll(LeftPane, 120))
	assert.Equal(t, []float64{120}, right.commands)
	assert.Empty(t, left.commands, "echo from the follower must not command the source")
	assert.Equal(t, SyncState{Phase: Locked, Source: LeftPane}, s.State())
	assert.Equal(t, 120.0, s.Offset(RightPane))
}

func TestScrollSyncIgnoresRepeatedOffset(t *testing.T) {
	s, _, right := newPanes()

	s.OnScroll(LeftPane, 40)
	assert.False(t, s.OnScroll(LeftPane, 40))
	assert.False(t, s.OnScroll(LeftPane, 40.3))
	assert.Equal(t, []float64{40}, right.commands)

	assert.True(t, s.OnScroll(LeftPane, 41))
	assert.Equal(t, []float64{40, 41}, right.commands)
}

func TestScrollSyncIgnoresOtherPaneWhileLocked(t *testing.T) {
	s, left, right := newPanes()

	s.OnScroll(RightPane, 10)
	assert.False(t, s.OnScroll(LeftPane, 500))
	assert.Empty(t, right.commands)
	assert.Equal(t, []float64{10}, left.commands)

	s.OnScrollEnd(LeftPane)
	assert.Equal(t, SyncState{}, s.State())

	assert.True(t, s.OnScroll(LeftPane, 500))
	assert.Equal(t, []float64{500}, right.commands)
}

func TestScrollSyncDropsEventsDuringProgrammaticScroll(t *testing.T) {
	left := &fakePane{pane: LeftPane}
	var s *ScrollSync
	var observed SyncState
	right := &observingPane{onScroll: func(offset float64) {
		observed = s.State()
		// The follower reports a different offset mid-flight; still dropped.
		assert.False(t, s.OnScroll(RightPane, offset+100))
	}}
	s = NewScrollSync(left, right)

	assert.True(t, s.OnScroll(LeftPane, 30))
	assert.Equal(t, SyncState{Phase: ProgrammaticSync, Source: LeftPane, Target: RightPane}, observed)
	assert.Empty(t, left.commands)
	assert.Equal(t, Locked, s.State().Phase)
}

type observingPane struct {
	onScroll func(offset float64)
}

func (o *observingPane) ScrollToOffset(offset float64) { o.onScroll(offset) }

func TestScrollSyncSkipsFollowerAlreadyInPlace(t *testing.T) {
	s, left, right := newPanes()
	s.OnScroll(LeftPane, 80)
	s.OnScrollEnd(LeftPane)

	// Right is already at 80; moving it by hand to 80.2 needs no sync.
	assert.False(t, s.OnScroll(RightPane, 80.2))
	assert.Empty(t, left.commands)
	assert.Equal(t, []float64{80}, right.commands)
}
