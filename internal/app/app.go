// internal/app/app.go

// Package app wires the daemon: driver, orchestrator, health tracking,
// caches and the optional outer surfaces.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/daq-orchestrator/internal/cache"
	"github.com/tamzrod/daq-orchestrator/internal/config"
	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/events"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
	"github.com/tamzrod/daq-orchestrator/internal/metrics"
	"github.com/tamzrod/daq-orchestrator/internal/orchestrator"
	"github.com/tamzrod/daq-orchestrator/internal/poller"
	"github.com/tamzrod/daq-orchestrator/internal/publish"
	"github.com/tamzrod/daq-orchestrator/internal/status"
	"github.com/tamzrod/daq-orchestrator/internal/writer"
)

// staleFactor scales the slowest expected cycle into the stale threshold.
const staleFactor = 3

// Options override what New would otherwise build from config.
type Options struct {
	Driver     driver.Driver
	MQTTClient publish.Client
	Registry   *prometheus.Registry
}

// App is one daemon instance.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	bus     *events.Bus
	orch    *orchestrator.Orchestrator
	tracker *status.Tracker
	frames  *cache.Frames
	metrics *metrics.Metrics

	mqtt      publish.Client
	publisher *publish.Publisher

	mirror   writer.Plan
	mirrorOn bool
}

// New builds every component cfg enables. Nothing touches hardware or the
// network until Run.
func New(cfg *config.Config, opts Options, logger *slog.Logger) (*App, error) {
	logger = logging.OrDefault(logger, "daqd")

	drv := opts.Driver
	if drv == nil {
		var err error
		if drv, err = orchestrator.NewDriver(cfg.Driver); err != nil {
			return nil, err
		}
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		bus:     events.NewBus(0),
		tracker: status.NewTracker(staleAfter(cfg)),
		frames:  cache.NewFrames(time.Duration(cfg.Cache.TTLMs) * time.Millisecond),
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	if err := m.WatchBus(a.bus); err != nil {
		return nil, err
	}
	a.metrics = m

	sink := events.Sinks{a.tracker, a.frames, a.metrics, a.bus}
	rc := orchestrator.RuntimeConfig(cfg, logger.With("service", "orchestrator"), poller.Recorders{a.metrics, a.tracker})
	a.orch = orchestrator.New(drv, sink, rc)

	if cfg.MQTT.Enabled {
		a.mqtt = opts.MQTTClient
		if a.mqtt == nil {
			a.mqtt = publish.NewClient(publish.ClientConfig{
				Broker:   cfg.MQTT.Broker,
				ClientID: cfg.MQTT.ClientID,
				Username: cfg.MQTT.Username,
				Password: cfg.MQTT.Password,
				Timeout:  time.Duration(cfg.MQTT.TimeoutMs) * time.Millisecond,
			}, logger.With("service", "mqtt"))
		}
		a.publisher = publish.New(publish.Config{
			Prefix:    cfg.MQTT.TopicPrefix,
			QoS:       cfg.MQTT.QoS,
			Retain:    cfg.MQTT.Retain,
			Timeout:   time.Duration(cfg.MQTT.TimeoutMs) * time.Millisecond,
			FrameRate: cfg.MQTT.FrameRate,
		}, a.mqtt, logger.With("service", "publish"))
	}

	a.mirror, a.mirrorOn = writer.BuildPlan(cfg)

	for _, b := range cfg.Boards {
		a.tracker.Register(b.ID, b.Name, !b.IsEnabled())
	}
	return a, nil
}

// Orchestrator returns the board coordinator.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Tracker returns the board health tracker.
func (a *App) Tracker() *status.Tracker { return a.tracker }

// Frames returns the latest-frame caches.
func (a *App) Frames() *cache.Frames { return a.frames }

// Metrics returns the Prometheus collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Run opens the driver, starts every configured board and serves the outer
// surfaces until ctx ends, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.orch.Open(); err != nil {
		return err
	}
	defer a.bus.Close()
	defer a.orch.Close(0)

	ready, err := orchestrator.Configure(a.orch, a.cfg)
	if err != nil {
		return err
	}

	var mirror *writer.Mirror
	if a.mirrorOn {
		cli, err := writer.BuildEndpointClient(a.mirror)
		if err != nil {
			return err
		}
		defer func() { _ = cli.Close() }()
		mirror = writer.NewMirror(a.mirror, a.tracker, cli, a.logger.With("service", "mirror"))
	}

	if a.publisher != nil {
		if err := a.mqtt.Connect(ctx); err != nil {
			// paho keeps retrying; publishing fails until it succeeds
			a.logger.Warn("mqtt connect failed; continuing", "error", err)
		}
		defer a.mqtt.Disconnect()
	}

	g, gctx := errgroup.WithContext(ctx)

	if !a.cfg.Metrics.Disabled && a.cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return a.metrics.Serve(gctx, a.cfg.Metrics.Listen, a.logger.With("service", "metrics"))
		})
	}
	if a.publisher != nil {
		g.Go(func() error { return a.publisher.Run(gctx, a.bus) })
	}
	if mirror != nil {
		g.Go(func() error {
			mirror.Run(gctx)
			return nil
		})
	}

	for _, b := range ready {
		if err := a.orch.Start(b); err != nil {
			a.logger.Error("board start failed", "board", b, "error", err)
		}
	}
	a.logger.Info("daqd running", "boards", ready, "instance", a.orch.ID())

	<-gctx.Done()
	a.logger.Info("daqd stopping")
	return g.Wait()
}

// staleAfter is how long a running board may go without a completed cycle.
func staleAfter(cfg *config.Config) time.Duration {
	slowest := time.Duration(cfg.Loop.CycleDelayMs) * time.Millisecond
	for _, b := range cfg.Boards {
		if b.Analog.SamplingRate <= 0 {
			continue
		}
		scan := time.Duration(float64(b.Analog.SamplesPerChannel) / float64(b.Analog.SamplingRate) * float64(time.Second))
		if scan > slowest {
			slowest = scan
		}
	}
	d := staleFactor * slowest
	if d < time.Second {
		d = time.Second
	}
	return d
}
