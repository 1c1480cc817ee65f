// internal/orchestrator/builder.go
package orchestrator

import (
	"log/slog"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/acquire"
	"github.com/tamzrod/daq-orchestrator/internal/config"
	"github.com/tamzrod/daq-orchestrator/internal/driver"
	mbdriver "github.com/tamzrod/daq-orchestrator/internal/driver/modbus"
	"github.com/tamzrod/daq-orchestrator/internal/driver/sim"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
	"github.com/tamzrod/daq-orchestrator/internal/poller"
	"github.com/tamzrod/daq-orchestrator/internal/registry"
)

// NewDriver builds the configured driver. cfg must be normalized.
func NewDriver(cfg config.DriverConfig) (driver.Driver, error) {
	switch cfg.Kind {
	case config.DriverSim:
		boards := make([]driver.BoardInfo, len(cfg.Sim.Boards))
		for i, b := range cfg.Sim.Boards {
			boards[i] = driver.BoardInfo{
				Model:      b.Model,
				AIChannels: b.AI,
				DIPorts:    b.DI,
				DOPorts:    b.DO,
				DIOPorts:   b.DIO,
			}
		}
		return sim.New(boards, nil), nil

	case config.DriverModbus:
		m := cfg.Modbus
		boards := make([]mbdriver.Board, len(m.Boards))
		for i, b := range m.Boards {
			boards[i] = mbdriver.Board{
				Model:     b.Model,
				UnitID:    b.UnitID,
				Analog:    b.AI,
				DIPorts:   b.DI,
				DOPorts:   b.DO,
				DIOPorts:  b.DIO,
				AIAddress: b.AIAddress,
				DIAddress: b.DIAddress,
				DOAddress: b.DOAddress,
			}
		}
		drv, err := mbdriver.New(mbdriver.Config{
			Endpoint: m.Endpoint,
			Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
			BaudRate: m.BaudRate,
			PortBits: m.PortBits,
			Boards:   boards,
		})
		if err != nil {
			return nil, errors.New(err).
				Component("orchestrator").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return drv, nil
	}
	return nil, configError("orchestrator: unknown driver kind %q", cfg.Kind)
}

// RuntimeConfig maps the loop and analog sections of cfg onto an
// orchestrator Config.
func RuntimeConfig(cfg *config.Config, logger *slog.Logger, rec poller.Recorder) Config {
	rc := Config{
		MaxRetries:      cfg.Loop.MaxRetries,
		RetryDelay:      time.Duration(cfg.Loop.RetryDelayMs) * time.Millisecond,
		CycleDelay:      time.Duration(cfg.Loop.CycleDelayMs) * time.Millisecond,
		ShutdownTimeout: time.Duration(cfg.Loop.ShutdownTimeoutMs) * time.Millisecond,
		BoardAnalog:     make(map[int]acquire.AnalogConfig, len(cfg.Boards)),
		Logger:          logger,
		Recorder:        rec,
		Analog:          acquire.AnalogConfig{Parallel: true},
	}
	for _, b := range cfg.Boards {
		a := acquire.AnalogConfig{
			SamplingRate:      b.Analog.SamplingRate,
			SamplesPerChannel: b.Analog.SamplesPerChannel,
			Parallel:          b.Analog.Parallel == nil || *b.Analog.Parallel,
			HighGain:          b.Analog.HighGain,
		}
		rc.BoardAnalog[b.ID] = a
	}
	return rc
}

// Configure creates controllers for every discovered board and loads the
// channels cfg declares for it. Boards declared but not discovered, or
// disabled, are logged and skipped. It returns the boards ready to start.
func Configure(o *Orchestrator, cfg *config.Config) ([]int, error) {
	logger := logging.OrDefault(o.cfg.Logger, "orchestrator")

	discovered := make(map[int]driver.BoardInfo)
	for _, info := range o.Boards() {
		discovered[info.Index] = info
	}
	for _, b := range cfg.Boards {
		if _, ok := discovered[b.ID]; !ok {
			logger.Warn("configured board not found on driver; skipped", "board", b.ID)
		}
	}

	var ready []int
	for _, info := range o.Boards() {
		bc, declared := cfg.Board(info.Index)
		if declared && !bc.IsEnabled() {
			logger.Info("board disabled by config", "board", info.Index)
			continue
		}

		c, err := o.CreateControllers(info.Index, info)
		if err != nil {
			return ready, err
		}
		if c == nil {
			continue
		}
		if declared {
			if err := loadChannels(c, bc); err != nil {
				return ready, err
			}
		}
		ready = append(ready, info.Index)
	}
	return ready, nil
}

func loadChannels(c *Controllers, bc config.BoardConfig) error {
	if len(bc.Analog.Channels) > 0 && c.Analog == nil {
		return configError("board %d: analog channels configured but board has no analog inputs", bc.ID)
	}
	for _, ch := range bc.Analog.Channels {
		r, err := driver.ParseVoltageRange(ch.Range)
		if err != nil {
			return configError("board %d: channel %q: %w", bc.ID, ch.Name, err)
		}
		if int(ch.Index) >= c.Info.AIChannels {
			return configError("board %d: channel %q: index %d exceeds %d analog inputs", bc.ID, ch.Name, ch.Index, c.Info.AIChannels)
		}
		err = c.Analog.Registry().Add(registry.AnalogChannel{
			Name:   ch.Name,
			Index:  ch.Index,
			Range:  r,
			Window: ch.Window,
			Coeffs: ch.Coeffs,
			Zero:   ch.Zero,
		})
		if err != nil {
			return err
		}
	}

	d := bc.Digital
	if (len(d.Inputs) > 0 || len(d.Outputs) > 0) && c.Digital == nil {
		return configError("board %d: digital i/o configured but board has no digital ports", bc.ID)
	}
	for _, in := range d.Inputs {
		if err := c.Digital.AddInput(in.Name, in.Port, in.Bit, in.Invert); err != nil {
			return err
		}
	}
	for _, out := range d.Outputs {
		if err := c.Digital.AddOutput(out.Name, out.Port, out.Bit); err != nil {
			return err
		}
		if out.Initial != nil {
			if err := c.Digital.EnqueueOutput(out.Name, *out.Initial, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func configError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("orchestrator").
		Category(errors.CategoryConfiguration).
		Build()
}
