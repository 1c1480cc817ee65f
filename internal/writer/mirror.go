// internal/writer/mirror.go
package writer

import (
	"context"
	"log/slog"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
)

// DefaultInterval is the mirror period when the plan has none.
const DefaultInterval = time.Second

// Mirror periodically copies board snapshots into the status endpoint.
type Mirror struct {
	plan    Plan
	src     Source
	writers []*boardStatusWriter
	logger  *slog.Logger
}

// NewMirror builds one writer per planned board, all sharing cli.
func NewMirror(plan Plan, src Source, cli endpointClient, logger *slog.Logger) *Mirror {
	if plan.Interval <= 0 {
		plan.Interval = DefaultInterval
	}
	m := &Mirror{
		plan:   plan,
		src:    src,
		logger: logging.OrDefault(logger, "mirror").With("endpoint", plan.Endpoint),
	}
	for _, bp := range plan.Boards {
		m.writers = append(m.writers, NewBoardStatusWriter(bp, cli))
	}
	return m
}

// WriteOnce writes every board's snapshot at now. Boards the source does not
// know are written as unknown. Failures are joined; each failed board is
// re-asserted in full on its next write.
func (m *Mirror) WriteOnce(now time.Time) error {
	var errs []error
	for _, w := range m.writers {
		s, _ := m.src.Snapshot(w.plan.Board, now)
		if err := w.WriteStatus(s); err != nil {
			errs = append(errs, errors.New(err).
				Component("mirror").
				Category(errors.CategoryNetwork).
				Context("board", w.plan.Board).
				Build())
		}
	}
	return errors.Join(errs...)
}

// Run writes on every interval tick until ctx ends.
func (m *Mirror) Run(ctx context.Context) {
	m.logger.Info("status mirror started", "boards", len(m.writers), "interval", m.plan.Interval)

	ticker := time.NewTicker(m.plan.Interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("status mirror stopped")
			return
		case now := <-ticker.C:
			err := m.WriteOnce(now)
			switch {
			case err != nil && !failing:
				m.logger.Warn("status mirror write failed", "error", err)
				failing = true
			case err == nil && failing:
				m.logger.Info("status mirror recovered")
				failing = false
			}
		}
	}
}
