// internal/orchestrator/orchestrator.go

// Package orchestrator owns the driver handle and one acquisition loop per
// board: discovery, controller creation, start/stop and bounded shutdown.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/daq-orchestrator/internal/acquire"
	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/events"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
	"github.com/tamzrod/daq-orchestrator/internal/outqueue"
	"github.com/tamzrod/daq-orchestrator/internal/poller"
	"github.com/tamzrod/daq-orchestrator/internal/registry"
)

// DefaultShutdownTimeout bounds Close when no timeout is given.
const DefaultShutdownTimeout = 3 * time.Second

// Error sources raised by the orchestrator itself.
const (
	SourceBoardInfo = "BoardInfo"
	SourceStart     = "SystemStart"
)

// Config is the orchestrator runtime config.
type Config struct {
	// Analog is the default analog configuration; BoardAnalog overrides it
	// per board.
	Analog      acquire.AnalogConfig
	BoardAnalog map[int]acquire.AnalogConfig

	MaxRetries int
	RetryDelay time.Duration
	CycleDelay time.Duration

	ShutdownTimeout time.Duration

	Logger   *slog.Logger
	Recorder poller.Recorder
}

// Controllers is the acquisition hardware of one board. Either field may be
// nil when the board lacks that capability.
type Controllers struct {
	Board   int
	Info    driver.BoardInfo
	Analog  *acquire.Analog
	Digital *acquire.Digital
}

type run struct {
	loop   *poller.Loop
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Orchestrator coordinates every board on one driver.
type Orchestrator struct {
	id     string
	handle *driver.Handle
	sink   events.Sink
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	opened      bool
	closed      bool
	boards      []driver.BoardInfo
	controllers map[int]*Controllers
	runs        map[int]*run

	ctx    context.Context
	cancel context.CancelFunc
}

// New wraps drv. Nothing touches the hardware until Open.
func New(drv driver.Driver, sink events.Sink, cfg Config) *Orchestrator {
	return NewWithHandle(driver.NewHandle(drv), sink, cfg)
}

// NewWithHandle shares an existing handle, for several orchestrators on one
// driver.
func NewWithHandle(h *driver.Handle, sink events.Sink, cfg Config) *Orchestrator {
	if sink == nil {
		sink = events.Discard
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		id:          id,
		handle:      h,
		sink:        sink,
		cfg:         cfg,
		logger:      logging.OrDefault(cfg.Logger, "orchestrator").With("instance", id),
		controllers: make(map[int]*Controllers),
		runs:        make(map[int]*run),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the instance id.
func (o *Orchestrator) ID() string { return o.id }

// ---- discovery ----

// Open acquires the driver and enumerates boards, publishing one
// BoardDiscovered per board. A board whose info cannot be read is reported
// as an Error event and left out; the others are still discovered.
// A second Open returns the cached list.
func (o *Orchestrator) Open() ([]driver.BoardInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, errClosed()
	}
	if o.opened {
		return append([]driver.BoardInfo(nil), o.boards...), nil
	}

	n, err := o.handle.Acquire()
	if err != nil {
		return nil, errors.New(err).
			Component("orchestrator").
			Category(errors.CategoryTransport).
			Build()
	}

	o.status(events.System, "driver opened: %d boards", n)

	drv := o.handle.Driver()
	boards := make([]driver.BoardInfo, 0, n)
	for i := 0; i < n; i++ {
		info, err := drv.BoardInfo(i)
		if err != nil {
			err = driver.Wrap(SourceBoardInfo, i, err)
			o.logger.Warn("board info failed; board skipped", "board", i, "error", err)
			o.sink.Publish(events.Error{
				Board:   i,
				Source:  SourceBoardInfo,
				Code:    driver.CodeOf(err),
				Message: err.Error(),
				Err:     err,
				At:      time.Now(),
			})
			continue
		}
		info.Index = i
		boards = append(boards, info)
	}

	o.boards = boards
	o.opened = true

	now := time.Now()
	for _, info := range boards {
		o.logger.Info("board discovered",
			"board", info.Index,
			"model", info.Model,
			"ai", info.AIChannels,
			"di", info.DIPorts,
			"do", info.DOPorts,
			"dio", info.DIOPorts)
		o.sink.Publish(events.BoardDiscovered{Board: info.Index, Info: info, At: now})
	}
	return append([]driver.BoardInfo(nil), boards...), nil
}

// Boards returns the boards found by Open.
func (o *Orchestrator) Boards() []driver.BoardInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]driver.BoardInfo(nil), o.boards...)
}

// ---- controllers ----

// CreateControllers builds the controllers a board's capabilities call for:
// analog only with analog inputs, digital only with any digital port.
// A board with neither is skipped: the result is nil with a nil error.
func (o *Orchestrator) CreateControllers(board int, info driver.BoardInfo) (*Controllers, error) {
	if !driver.ValidBoard(board) {
		return nil, errors.Newf("orchestrator: board number %d out of range [0,%d)", board, driver.MaxBoards).
			Component("orchestrator").
			Category(errors.CategoryConfiguration).
			Build()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, errClosed()
	}
	if !o.opened {
		return nil, errors.Newf("orchestrator: driver not open").
			Component("orchestrator").
			Category(errors.CategoryState).
			Build()
	}
	if _, exists := o.controllers[board]; exists {
		return nil, errors.Newf("orchestrator: board %d already has controllers", board).
			Component("orchestrator").
			Category(errors.CategoryConflict).
			Build()
	}

	if !info.HasAnalog() && !info.HasDigital() {
		o.logger.Info("board has no acquisition capability; skipped", "board", board, "model", info.Model)
		return nil, nil
	}

	drv := o.handle.Driver()
	c := &Controllers{Board: board, Info: info}

	if info.HasAnalog() {
		cfg := o.cfg.Analog
		if override, ok := o.cfg.BoardAnalog[board]; ok {
			cfg = override
		}
		if cfg.Logger == nil {
			cfg.Logger = o.cfg.Logger
		}
		cfg.OnCleanupError = o.cleanupReporter(board)

		a, err := acquire.NewAnalog(drv, board, registry.NewAnalog(board), cfg)
		if err != nil {
			return nil, err
		}
		c.Analog = a
	}

	if info.HasDigital() {
		d, err := acquire.NewDigital(drv, board, registry.NewDigital(board), outqueue.New(), o.cfg.Logger)
		if err != nil {
			return nil, err
		}
		c.Digital = d
	}

	o.controllers[board] = c
	o.logger.Info("controllers created",
		"board", board,
		"analog", c.Analog != nil,
		"digital", c.Digital != nil)
	o.status(board, "board %d controllers created (analog=%t, digital=%t)", board, c.Analog != nil, c.Digital != nil)
	return c, nil
}

// Controllers returns the controllers of a board.
func (o *Orchestrator) Controllers(board int) (*Controllers, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.controllers[board]
	return c, ok
}

// ControlledBoards returns the boards with controllers, ascending.
func (o *Orchestrator) ControlledBoards() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int, 0, len(o.controllers))
	for b := range o.controllers {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

// cleanupReporter publishes stop-scan failures hit during fetch recovery.
func (o *Orchestrator) cleanupReporter(board int) func(error) {
	return func(err error) {
		o.sink.Publish(events.Error{
			Board:   board,
			Source:  acquire.OpStopAnalogScan,
			Code:    driver.CodeOf(err),
			Message: err.Error(),
			Err:     err,
			At:      time.Now(),
		})
	}
}

// status publishes a free-text status message.
func (o *Orchestrator) status(board int, format string, args ...any) {
	o.sink.Publish(events.Status{Board: board, Message: fmt.Sprintf(format, args...), At: time.Now()})
}

func errClosed() error {
	return errors.Newf("orchestrator: closed").
		Component("orchestrator").
		Category(errors.CategoryState).
		Build()
}
