// internal/events/events.go

// Package events carries notifications from the board loops to consumers.
// Notifications from one board are published from that board's loop
// goroutine, so each subscriber sees them in cycle order.
package events

import (
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/acquire"
	"github.com/tamzrod/daq-orchestrator/internal/driver"
)

// Kind names a notification type.
type Kind string

const (
	KindAnalogFrame     Kind = "analog_frame"
	KindDigitalFrame    Kind = "digital_frame"
	KindError           Kind = "error"
	KindLifecycle       Kind = "lifecycle"
	KindStatus          Kind = "status"
	KindBoardDiscovered Kind = "board_discovered"
)

// System is the board id of notifications about the driver as a whole.
const System = -1

// Event is one notification.
type Event interface {
	Kind() Kind
	BoardID() int
	Time() time.Time
}

// Sink receives events. Publish must not block for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Sinks publishes to each sink in order. Nil entries are skipped.
type Sinks []Sink

func (ss Sinks) Publish(e Event) {
	for _, s := range ss {
		if s != nil {
			s.Publish(e)
		}
	}
}

// ---- payloads ----

// AnalogFrame reports a processed analog frame.
type AnalogFrame struct {
	Board   int
	Frame   *acquire.Frame
	Elapsed time.Duration
	At      time.Time
}

func (e AnalogFrame) Kind() Kind      { return KindAnalogFrame }
func (e AnalogFrame) BoardID() int    { return e.Board }
func (e AnalogFrame) Time() time.Time { return e.At }

// DigitalFrame reports current input states and the inputs that changed.
type DigitalFrame struct {
	Board int
	Frame *acquire.DigitalFrame
	At    time.Time
}

func (e DigitalFrame) Kind() Kind      { return KindDigitalFrame }
func (e DigitalFrame) BoardID() int    { return e.Board }
func (e DigitalFrame) Time() time.Time { return e.At }

// Error reports a failed operation. Terminal is set when the board loop gave
// up after exhausting its retries.
type Error struct {
	Board    int
	Source   string
	Code     uint16
	Message  string
	Terminal bool
	Err      error
	At       time.Time
}

func (e Error) Kind() Kind      { return KindError }
func (e Error) BoardID() int    { return e.Board }
func (e Error) Time() time.Time { return e.At }

// State is a board's runtime state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Lifecycle reports a board state transition.
type Lifecycle struct {
	Board int
	State State
	At    time.Time
}

func (e Lifecycle) Kind() Kind      { return KindLifecycle }
func (e Lifecycle) BoardID() int    { return e.Board }
func (e Lifecycle) Time() time.Time { return e.At }

// Status is a free-text progress message.
type Status struct {
	Board   int
	Message string
	At      time.Time
}

func (e Status) Kind() Kind      { return KindStatus }
func (e Status) BoardID() int    { return e.Board }
func (e Status) Time() time.Time { return e.At }

// BoardDiscovered is published for each board found at driver open.
type BoardDiscovered struct {
	Board int
	Info  driver.BoardInfo
	At    time.Time
}

func (e BoardDiscovered) Kind() Kind      { return KindBoardDiscovered }
func (e BoardDiscovered) BoardID() int    { return e.Board }
func (e BoardDiscovered) Time() time.Time { return e.At }

// IsFrame reports whether e is a high-rate data event.
func IsFrame(e Event) bool {
	k := e.Kind()
	return k == KindAnalogFrame || k == KindDigitalFrame
}
