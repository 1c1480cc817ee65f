// internal/poller/poller.go

// Package poller runs one board's acquisition loop: cycle, publish, retry.
package poller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/acquire"
	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/events"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
)

// AnalogReader is the analog half of a cycle.
type AnalogReader interface {
	ReadCycle(ctx context.Context) (*acquire.Frame, error)
}

// DigitalPorts is the digital half of a cycle.
type DigitalPorts interface {
	ProcessInputs() (*acquire.DigitalFrame, error)
	ProcessOutputs() error
}

// Recorder receives cycle measurements. metrics.Metrics implements it.
type Recorder interface {
	CycleCompleted(board int, elapsed time.Duration)
	CycleFailed(board int, op string, code uint16)
}

// Recorders fans measurements out to several recorders. Nil entries are
// skipped.
type Recorders []Recorder

func (rs Recorders) CycleCompleted(board int, elapsed time.Duration) {
	for _, r := range rs {
		if r != nil {
			r.CycleCompleted(board, elapsed)
		}
	}
}

func (rs Recorders) CycleFailed(board int, op string, code uint16) {
	for _, r := range rs {
		if r != nil {
			r.CycleFailed(board, op, code)
		}
	}
}

// Loop defaults.
const (
	DefaultCycleDelay = 5 * time.Millisecond
	DefaultRetryDelay = 2000 * time.Millisecond
)

// SourceLoop is the Error.Source of loop-level notifications.
const SourceLoop = "BoardLoop"

// Config is the runtime config of one board loop.
type Config struct {
	Board int

	// MaxRetries is the number of consecutive failed cycles tolerated.
	// The loop stops on failure MaxRetries+1. Zero means never stop.
	MaxRetries int
	RetryDelay time.Duration
	CycleDelay time.Duration

	Logger   *slog.Logger
	Recorder Recorder
}

// State is the loop's own state machine.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "idle"
}

// Loop drives one board. Create with New, run once with Run.
type Loop struct {
	cfg     Config
	analog  AnalogReader
	digital DigitalPorts
	sink    events.Sink
	logger  *slog.Logger

	state  atomic.Int32
	cycles atomic.Uint64
}

// New validates cfg. Either controller may be nil, not both.
func New(cfg Config, analog AnalogReader, digital DigitalPorts, sink events.Sink) (*Loop, error) {
	if !driver.ValidBoard(cfg.Board) {
		return nil, errors.Newf("poller: board number %d out of range", cfg.Board).
			Component("poller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if analog == nil && digital == nil {
		return nil, errors.Newf("poller: board %d has no controllers", cfg.Board).
			Component("poller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.Newf("poller: max retries must be >= 0").
			Component("poller").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.CycleDelay <= 0 {
		cfg.CycleDelay = DefaultCycleDelay
	}
	if sink == nil {
		sink = events.Discard
	}

	return &Loop{
		cfg:     cfg,
		analog:  analog,
		digital: digital,
		sink:    sink,
		logger:  logging.OrDefault(cfg.Logger, "poller").With("board", cfg.Board),
	}, nil
}

// Board returns the board number.
func (l *Loop) Board() int { return l.cfg.Board }

// State returns the current loop state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() uint64 { return l.cycles.Load() }

// RunOnce performs exactly one cycle: analog first, then digital inputs and
// outputs. All-or-nothing per half: a failure aborts the rest of the cycle.
// Frames are published as soon as they are produced.
func (l *Loop) RunOnce(ctx context.Context) error {
	started := time.Now()

	if l.analog != nil {
		frame, err := l.analog.ReadCycle(ctx)
		if err != nil {
			return err
		}
		if frame != nil {
			l.sink.Publish(events.AnalogFrame{
				Board:   l.cfg.Board,
				Frame:   frame,
				Elapsed: frame.Elapsed,
				At:      frame.Timestamp,
			})
		}
	}

	if l.digital != nil {
		df, err := l.digital.ProcessInputs()
		if err != nil {
			return err
		}
		if df != nil {
			l.sink.Publish(events.DigitalFrame{Board: l.cfg.Board, Frame: df, At: df.Timestamp})
		}
		if err := l.digital.ProcessOutputs(); err != nil {
			return err
		}
	}

	l.cycles.Add(1)
	if l.cfg.Recorder != nil {
		l.cfg.Recorder.CycleCompleted(l.cfg.Board, time.Since(started))
	}
	return nil
}
