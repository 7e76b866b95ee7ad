package grid

import (
	"fmt"
	"math"
	"sync"
)

// Pane identifies one of the two synchronised lists.
type Pane int

const (
	LeftPane Pane = iota
	RightPane
)

func (p Pane) other() Pane { return 1 - p }

func (p Pane) String() string {
	if p == LeftPane {
		return "left"
	}
	return "right"
}

// SyncPhase is the state of the scroll synchroniser.
type SyncPhase int

const (
	// Idle: no gesture in progress.
	Idle SyncPhase = iota
	// Locked: a gesture started on Source; events from the other pane are
	// echoes and are ignored.
	Locked
	// ProgrammaticSync: a scroll command to Target is in flight.
	ProgrammaticSync
)

func (s SyncPhase) String() string {
	switch s {
	case Locked:
		return "locked"
	case ProgrammaticSync:
		return "programmatic_sync"
	default:
		return "idle"
	}
}

// SyncState is a snapshot of the synchroniser.
type SyncState struct {
	Phase  SyncPhase
	Source Pane
	Target Pane
}

func (s SyncState) String() string {
	switch s.Phase {
	case Locked:
		return fmt.Sprintf("locked(%s)", s.Source)
	case ProgrammaticSync:
		return fmt.Sprintf("programmatic_sync(%s)", s.Target)
	default:
		return "idle"
	}
}

// Scroller is a pane that can be moved to a vertical offset.
type Scroller interface {
	ScrollToOffset(offset float64)
}

// DefaultThreshold is the smallest offset change that is propagated.
const DefaultThreshold = 0.5

// ScrollSync keeps the vertical offsets of two panes equal.
//
// A gesture locks the pane that started it as the source until OnScrollEnd.
// While the follower is being moved the synchroniser is in
// ProgrammaticSync and ignores every event, including the follower's
// synchronous echo. Offset changes below the threshold are dropped.
type ScrollSync struct {
	mu        sync.Mutex
	panes     [2]Scroller
	last      [2]float64
	state     SyncState
	threshold float64
}

// NewScrollSync wires the two panes together.
func NewScrollSync(left, right Scroller) *ScrollSync {
	return &ScrollSync{
		panes:     [2]Scroller{left, right},
		threshold: DefaultThreshold,
	}
}

// SetThreshold overrides the minimum delta.
func (s *ScrollSync) SetThreshold(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = t
}

// State returns the current state.
func (s *ScrollSync) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Offset returns the last known offset of a pane.
func (s *ScrollSync) Offset(p Pane) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[p]
}

// OnScroll handles a scroll event reported by pane p. It returns true when
// the other pane was commanded to follow.
func (s *ScrollSync) OnScroll(p Pane, offset float64) bool {
	s.mu.Lock()
	switch s.state.Phase {
	case ProgrammaticSync:
		s.mu.Unlock()
		return false
	case Locked:
		if s.state.Source != p {
			s.mu.Unlock()
			return false
		}
	case Idle:
		s.state = SyncState{Phase: Locked, Source: p}
	}

	if math.Abs(offset-s.last[p]) < s.threshold {
		s.mu.Unlock()
		return false
	}
	s.last[p] = offset

	target := p.other()
	if math.Abs(offset-s.last[target]) < s.threshold {
		s.mu.Unlock()
		return false
	}
	s.state = SyncState{Phase: ProgrammaticSync, Source: p, Target: target}
	follower := s.panes[target]
	s.mu.Unlock()

	// The follower may report its own scroll synchronously; that event sees
	// ProgrammaticSync and is dropped.
	if follower != nil {
		follower.ScrollToOffset(offset)
	}

	s.mu.Lock()
	s.last[target] = offset
	if s.state.Phase == ProgrammaticSync {
		s.state = SyncState{Phase: Locked, Source: p}
	}
	s.mu.Unlock()
	return true
}

// OnScrollEnd releases both locks. Either pane may end the gesture.
func (s *ScrollSync) OnScrollEnd(Pane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SyncState{}
}
