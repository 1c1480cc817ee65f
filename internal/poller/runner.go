// internal/poller/runner.go
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/events"
)

// ErrMaxRetries is returned by Run when the retry budget is exhausted.
var ErrMaxRetries = errors.Newf("max retries reached").
	Component("poller").
	Category(errors.CategoryLimit).
	Build()

// Run cycles until ctx is cancelled or the retry budget runs out.
// One goroutine per board. Cancellation interrupts the inter-cycle sleep and
// the retry delay. On any exit the loop publishes Stopped and a final status
// message. It returns ErrMaxRetries (wrapped) on terminal failure, nil otherwise.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.Newf("poller: board %d loop already started", l.cfg.Board).
			Component("poller").
			Category(errors.CategoryState).
			Build()
	}
	defer l.finish()

	l.logger.Info("board loop started",
		"max_retries", l.cfg.MaxRetries,
		"retry_delay", l.cfg.RetryDelay,
		"cycle_delay", l.cfg.CycleDelay)

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := l.RunOnce(ctx)
		if err == nil {
			failures = 0
			if !sleep(ctx, l.cfg.CycleDelay) {
				return nil
			}
			continue
		}

		if ctx.Err() != nil {
			// cancelled mid-cycle; not a hardware fault
			return nil
		}

		failures++
		l.reportError(err, failures)

		if l.cfg.MaxRetries > 0 && failures > l.cfg.MaxRetries {
			return l.reportTerminal(err, failures)
		}
		if !sleep(ctx, l.cfg.RetryDelay) {
			return nil
		}
	}
}

func (l *Loop) reportError(err error, failures int) {
	source := SourceLoop
	var op *driver.OpError
	if errors.As(err, &op) {
		source = op.Op
	}
	code := driver.CodeOf(err)

	l.logger.Warn("board cycle failed",
		"op", source,
		"code", code,
		"consecutive_failures", failures,
		"error", err)

	if l.cfg.Recorder != nil {
		l.cfg.Recorder.CycleFailed(l.cfg.Board, source, code)
	}
	l.sink.Publish(events.Error{
		Board:   l.cfg.Board,
		Source:  source,
		Code:    code,
		Message: err.Error(),
		Err:     err,
		At:      time.Now(),
	})
}

func (l *Loop) reportTerminal(last error, failures int) error {
	terminal := errors.New(fmt.Errorf("board %d: %w after %d consecutive failures: %w", l.cfg.Board, ErrMaxRetries, failures, last)).
		Component("poller").
		Category(errors.CategoryLimit).
		Context("board", l.cfg.Board).
		Context("failures", failures).
		Build()

	l.logger.Error("board loop giving up", "failures", failures, "error", last)
	l.sink.Publish(events.Error{
		Board:    l.cfg.Board,
		Source:   SourceLoop,
		Code:     driver.CodeOf(last),
		Message:  ErrMaxRetries.Error(),
		Terminal: true,
		Err:      terminal,
		At:       time.Now(),
	})
	return terminal
}

func (l *Loop) finish() {
	l.state.Store(int32(StateStopping))
	now := time.Now()
	l.sink.Publish(events.Lifecycle{Board: l.cfg.Board, State: events.StateStopped, At: now})
	l.sink.Publish(events.Status{
		Board:   l.cfg.Board,
		Message: fmt.Sprintf("board %d acquisition finalized", l.cfg.Board),
		At:      now,
	})
	l.state.Store(int32(StateStopped))
	l.logger.Info("board loop stopped", "cycles", l.cycles.Load())
}

// sleep waits for d or until ctx is done. It reports whether the wait
// completed without cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
