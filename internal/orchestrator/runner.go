// internal/orchestrator/runner.go
package orchestrator

import (
	"context"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/events"
	"github.com/tamzrod/daq-orchestrator/internal/poller"
)

// Start launches the board's loop. Starting a running board is a no-op.
// A board without controllers is an error, published as an Error event, and
// nothing starts.
func (o *Orchestrator) Start(board int) error {
	r, err := o.prepare(board)
	if err != nil {
		o.sink.Publish(events.Error{
			Board:   board,
			Source:  SourceStart,
			Message: err.Error(),
			Err:     err,
			At:      time.Now(),
		})
		return err
	}
	if r == nil {
		return nil
	}

	// Running goes out before the loop can publish anything
	o.sink.Publish(events.Lifecycle{Board: board, State: events.StateRunning, At: time.Now()})
	o.status(board, "board %d started", board)
	o.logger.Info("board started", "board", board)

	go func() {
		defer close(r.done)
		r.err = r.loop.Run(r.ctx)
		if r.err != nil {
			o.logger.Error("board loop ended", "board", board, "error", r.err)
		}
	}()
	return nil
}

// prepare registers a new run for board. It returns nil, nil when the board
// is already running.
func (o *Orchestrator) prepare(board int) (*run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, errClosed()
	}
	if r, ok := o.runs[board]; ok && !r.finished() {
		return nil, nil
	}

	c, ok := o.controllers[board]
	if !ok {
		return nil, errors.Newf("orchestrator: board %d has no controllers", board).
			Component("orchestrator").
			Category(errors.CategoryState).
			Context("board", board).
			Build()
	}

	// nil pointers must stay nil interfaces
	var analog poller.AnalogReader
	if c.Analog != nil {
		analog = c.Analog
	}
	var digital poller.DigitalPorts
	if c.Digital != nil {
		digital = c.Digital
	}

	loop, err := poller.New(poller.Config{
		Board:      board,
		MaxRetries: o.cfg.MaxRetries,
		RetryDelay: o.cfg.RetryDelay,
		CycleDelay: o.cfg.CycleDelay,
		Logger:     o.cfg.Logger,
		Recorder:   o.cfg.Recorder,
	}, analog, digital, o.sink)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(o.ctx)
	r := &run{loop: loop, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	o.runs[board] = r
	return r, nil
}

// StartAll starts every board with controllers. Errors are joined; boards
// that start are left running.
func (o *Orchestrator) StartAll() error {
	var errs []error
	for _, b := range o.ControlledBoards() {
		if err := o.Start(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop requests the board's loop to end and returns without waiting.
func (o *Orchestrator) Stop(board int) {
	o.mu.Lock()
	r, ok := o.runs[board]
	o.mu.Unlock()
	if !ok || r.finished() {
		return
	}
	o.status(board, "board %d stopping", board)
	r.cancel()
}

// Running reports whether the board's loop is active.
func (o *Orchestrator) Running(board int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[board]
	return ok && !r.finished()
}

// Done returns a channel closed when the board's current loop exits, or nil
// if the board was never started.
func (o *Orchestrator) Done(board int) <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.runs[board]; ok {
		return r.done
	}
	return nil
}

// Err returns the terminal error of the board's last loop, if it has ended.
func (o *Orchestrator) Err(board int) error {
	o.mu.Lock()
	r, ok := o.runs[board]
	o.mu.Unlock()
	if !ok || !r.finished() {
		return nil
	}
	return r.err
}

// Close stops every loop, waits up to timeout for them, disposes the
// controllers and releases the driver. Loops still running after the timeout
// are abandoned. Secondary failures are logged, never returned.
// timeout <= 0 uses the configured shutdown timeout.
func (o *Orchestrator) Close(timeout time.Duration) {
	if timeout <= 0 {
		timeout = o.cfg.ShutdownTimeout
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	runs := make(map[int]*run, len(o.runs))
	for b, r := range o.runs {
		runs[b] = r
	}
	controllers := o.controllers
	o.controllers = make(map[int]*Controllers)
	opened := o.opened
	o.opened = false
	o.mu.Unlock()

	o.cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	expired := false
	for b, r := range runs {
		if !expired {
			select {
			case <-r.done:
				continue
			case <-deadline.C:
				expired = true
			}
		}
		if !r.finished() {
			o.logger.Warn("board loop did not stop in time; abandoned", "board", b, "timeout", timeout)
		}
	}

	for b, c := range controllers {
		if c.Analog != nil {
			if err := c.Analog.Close(); err != nil {
				o.logger.Warn("analog dispose failed", "board", b, "error", err)
			}
		}
	}

	if opened {
		if err := o.handle.Release(); err != nil {
			o.logger.Warn("driver release failed", "error", err)
		}
		o.status(events.System, "driver closed")
	}
	o.logger.Info("orchestrator closed")
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
