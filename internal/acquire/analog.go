// internal/acquire/analog.go

// Package acquire runs one board's acquisition cycle: the analog scan with
// its signal processing and the digital input/output pass.
package acquire

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
	"github.com/tamzrod/daq-orchestrator/internal/registry"
)

// Driver operation names used in errors and notifications.
const (
	OpConfigureAnalog       = "ConfigureAnalog"
	OpStartAnalogScan       = "StartAnalogScan"
	OpAnalogBuffer          = "GetAnalogBuffer"
	OpStopAnalogScan        = "StopAnalogScan"
	OpReadDigitalInput      = "ReadDigitalInput"
	OpWriteDigitalOutput    = "WriteDigitalOutput"
	OpWriteDigitalOutputBit = "WriteDigitalOutputBit"
)

// Analog defaults.
const (
	DefaultSamplingRate      float32 = 1000
	DefaultSamplesPerChannel uint32  = 256
)

// AnalogConfig tunes the analog scan.
type AnalogConfig struct {
	SamplingRate      float32
	SamplesPerChannel uint32
	Parallel          bool
	HighGain          bool

	// OnCleanupError receives stop-scan failures hit while recovering from a
	// failed buffer fetch. The fetch error itself is returned to the caller.
	OnCleanupError func(error)
	Logger         *slog.Logger
}

// Analog drives the analog scan of one board.
type Analog struct {
	drv   driver.Driver
	board int
	reg   *registry.Analog

	mu  sync.Mutex
	cfg AnalogConfig

	logger *slog.Logger
}

// NewAnalog validates the board number and configures the board's analog
// front end. Zero rate or sample count take the defaults.
func NewAnalog(drv driver.Driver, board int, reg *registry.Analog, cfg AnalogConfig) (*Analog, error) {
	if !driver.ValidBoard(board) {
		return nil, errors.Newf("analog: board number %d out of range [0,%d)", board, driver.MaxBoards).
			Component("acquire").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if reg == nil {
		reg = registry.NewAnalog(board)
	}
	if cfg.SamplingRate <= 0 {
		cfg.SamplingRate = DefaultSamplingRate
	}
	if cfg.SamplesPerChannel == 0 {
		cfg.SamplesPerChannel = DefaultSamplesPerChannel
	}

	cardType := driver.CardTypeNormal
	if cfg.HighGain {
		cardType = driver.CardTypeHighGain
	}
	if err := drv.ConfigureAnalog(board, driver.AnalogModeScan, driver.AnalogFIFOSize, cardType, driver.AnalogConfigNoFlags); err != nil {
		return nil, driver.Wrap(OpConfigureAnalog, board, err)
	}

	logger := logging.OrDefault(cfg.Logger, "acquire").With("component", "analog", "board", board)
	return &Analog{
		drv:    drv,
		board:  board,
		reg:    reg,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Board returns the board number.
func (a *Analog) Board() int { return a.board }

// Registry returns the channel registry read by each cycle.
func (a *Analog) Registry() *registry.Analog { return a.reg }

// Config returns the current scan settings.
func (a *Analog) Config() AnalogConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// SetTiming changes the sampling rate and per-channel sample count used by
// subsequent cycles. Zero values leave the current setting unchanged.
func (a *Analog) SetTiming(rate float32, samplesPerChannel uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rate > 0 {
		a.cfg.SamplingRate = rate
	}
	if samplesPerChannel > 0 {
		a.cfg.SamplesPerChannel = samplesPerChannel
	}
}

// SetParallel toggles parallel processing for large scans.
func (a *Analog) SetParallel(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Parallel = on
}

// ReadCycle runs one scan: start, fetch, stop, process.
// No channels configured is not an error; it returns a nil frame.
// Any driver failure aborts the cycle and returns an *driver.OpError.
func (a *Analog) ReadCycle(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()
	cfg := a.Config()

	snap := a.reg.Snapshot()
	if snap.Len() == 0 {
		return nil, nil
	}

	samples := int(cfg.SamplesPerChannel)
	if err := a.drv.StartAnalogScan(a.board, snap.Indices, snap.Codes, cfg.SamplingRate, cfg.SamplesPerChannel); err != nil {
		return nil, driver.Wrap(OpStartAnalogScan, a.board, err)
	}

	buf := make([]float32, samples*snap.Len())
	if err := a.drv.AnalogBuffer(a.board, buf); err != nil {
		fetchErr := driver.Wrap(OpAnalogBuffer, a.board, err)
		if stopErr := a.drv.StopAnalogScan(a.board); stopErr != nil {
			a.cleanupFailed(driver.Wrap(OpStopAnalogScan, a.board, stopErr))
		}
		return nil, fetchErr
	}

	if err := a.drv.StopAnalogScan(a.board); err != nil {
		return nil, driver.Wrap(OpStopAnalogScan, a.board, err)
	}

	data, raw := Process(snap, buf, samples, cfg.Parallel)
	return newFrame(a.board, snap.Names(), samples, data, raw, time.Now(), time.Since(started)), nil
}

// Close stops any scan in progress. Errors are returned for logging only.
func (a *Analog) Close() error {
	if err := a.drv.StopAnalogScan(a.board); err != nil {
		return driver.Wrap(OpStopAnalogScan, a.board, err)
	}
	return nil
}

func (a *Analog) cleanupFailed(err error) {
	a.logger.Warn("stop scan after failed fetch", "error", err)
	a.mu.Lock()
	report := a.cfg.OnCleanupError
	a.mu.Unlock()
	if report != nil {
		report(err)
	}
}
