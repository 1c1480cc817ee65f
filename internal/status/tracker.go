// internal/status/tracker.go
package status

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/events"
)

// Tracker folds board events and cycle outcomes into per-board health.
// It is an events.Sink and satisfies the board loop's cycle recorder.
type Tracker struct {
	mu         sync.Mutex
	boards     map[int]*boardState
	staleAfter time.Duration
	now        func() time.Time
}

type boardState struct {
	name        string
	disabled    bool
	health      uint16
	lastCode    uint16
	errorSince  time.Time
	running     bool
	cycles      uint32
	consecutive uint16
	lastActive  time.Time
}

// NewTracker returns a tracker that marks a running board stale when it has
// completed nothing for staleAfter. staleAfter <= 0 disables staleness.
func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{
		boards:     make(map[int]*boardState),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Register declares a board. Disabled boards always report HealthDisabled.
func (t *Tracker) Register(board int, name string, disabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.board(board)
	b.name = name
	b.disabled = disabled
}

// Boards returns every known board, ascending.
func (t *Tracker) Boards() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.boards))
	for id := range t.boards {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Name returns the registered board name.
func (t *Tracker) Name(board int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.boards[board]; ok {
		return b.name
	}
	return ""
}

// ---- inputs ----

// Publish implements events.Sink.
func (t *Tracker) Publish(e events.Event) {
	if e.BoardID() == events.System {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	at := e.Time()
	if at.IsZero() {
		at = t.now()
	}
	b := t.board(e.BoardID())

	switch ev := e.(type) {
	case events.AnalogFrame, events.DigitalFrame:
		b.ok(at)
	case events.Error:
		b.fail(ev.Code, at)
	case events.Lifecycle:
		b.running = ev.State == events.StateRunning
		if b.running {
			b.lastActive = at
		}
	case events.BoardDiscovered:
		if b.name == "" {
			b.name = ev.Info.Model
		}
	}
}

// CycleCompleted records a successful cycle.
func (t *Tracker) CycleCompleted(board int, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.board(board)
	b.cycles++
	b.consecutive = 0
	b.ok(t.now())
}

// CycleFailed records a failed cycle.
func (t *Tracker) CycleFailed(board int, _ string, code uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.board(board)
	if b.consecutive < math.MaxUint16 {
		b.consecutive++
	}
	b.fail(code, t.now())
}

// ---- output ----

// Snapshot returns the health of board at now. ok is false for an unknown
// board.
func (t *Tracker) Snapshot(board int, now time.Time) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.boards[board]
	if !ok {
		return Snapshot{Board: board, Health: HealthUnknown}, false
	}

	s := Snapshot{
		Board:             board,
		Health:            b.health,
		LastErrorCode:     b.lastCode,
		Running:           b.running,
		Cycles:            b.cycles,
		ConsecutiveErrors: b.consecutive,
	}

	switch {
	case b.disabled:
		s.Health = HealthDisabled
		s.Running = false
	case b.health == HealthError:
		s.SecondsInError = clampSeconds(now.Sub(b.errorSince))
	case b.running && t.staleAfter > 0 && now.Sub(b.lastActive) > t.staleAfter:
		s.Health = HealthStale
	}
	return s, true
}

func (t *Tracker) board(id int) *boardState {
	b, ok := t.boards[id]
	if !ok {
		b = &boardState{health: HealthUnknown}
		t.boards[id] = b
	}
	return b
}

func (b *boardState) ok(at time.Time) {
	b.health = HealthOK
	b.errorSince = time.Time{}
	b.lastActive = at
}

func (b *boardState) fail(code uint16, at time.Time) {
	if b.health != HealthError {
		b.errorSince = at
	}
	b.health = HealthError
	b.lastCode = code
}

func clampSeconds(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	s := int64(d / time.Second)
	if s > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(s)
}
