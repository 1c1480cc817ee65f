// internal/metrics/metrics.go

// Package metrics exposes acquisition counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/daq-orchestrator/internal/events"
)

// Metrics holds the acquisition collectors. It records cycle outcomes for the
// board loops and consumes events for everything else.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal   *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	failuresTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	framesTotal   *prometheus.CounterVec
	running       *prometheus.GaugeVec
	boards        prometheus.Gauge
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daq_cycles_total",
			Help: "Total number of completed acquisition cycles",
		},
		[]string{"board"},
	)

	m.cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "daq_cycle_duration_seconds",
			Help: "Time taken by one acquisition cycle",
			// 1ms to ~4s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
		},
		[]string{"board"},
	)

	m.failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daq_cycle_failures_total",
			Help: "Total number of failed acquisition cycles",
		},
		[]string{"board", "op", "code"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daq_error_events_total",
			Help: "Total number of published error notifications",
		},
		[]string{"board", "source", "terminal"},
	)

	m.framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daq_frames_total",
			Help: "Total number of published data frames",
		},
		[]string{"board", "kind"},
	)

	m.running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "daq_board_running",
			Help: "1 while the board loop runs",
		},
		[]string{"board"},
	)

	m.boards = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "daq_boards_discovered",
			Help: "Number of boards found at driver open",
		},
	)
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// CycleCompleted records a successful cycle.
func (m *Metrics) CycleCompleted(board int, elapsed time.Duration) {
	b := strconv.Itoa(board)
	m.cyclesTotal.WithLabelValues(b).Inc()
	m.cycleDuration.WithLabelValues(b).Observe(elapsed.Seconds())
}

// CycleFailed records a failed cycle.
func (m *Metrics) CycleFailed(board int, op string, code uint16) {
	m.failuresTotal.WithLabelValues(strconv.Itoa(board), op, strconv.Itoa(int(code))).Inc()
}

// Publish implements events.Sink.
func (m *Metrics) Publish(e events.Event) {
	b := strconv.Itoa(e.BoardID())
	switch ev := e.(type) {
	case events.AnalogFrame, events.DigitalFrame:
		m.framesTotal.WithLabelValues(b, string(e.Kind())).Inc()
	case events.Error:
		m.errorsTotal.WithLabelValues(b, ev.Source, strconv.FormatBool(ev.Terminal)).Inc()
	case events.Lifecycle:
		v := 0.0
		if ev.State == events.StateRunning {
			v = 1
		}
		m.running.WithLabelValues(b).Set(v)
	case events.BoardDiscovered:
		m.boards.Inc()
	}
}

// WatchBus exports the bus's delivery counters.
func (m *Metrics) WatchBus(bus *events.Bus) error {
	published := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "daq_events_published_total",
			Help: "Total number of events offered to the bus",
		},
		func() float64 { return float64(bus.Published()) },
	)
	dropped := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "daq_events_dropped_total",
			Help: "Total number of event deliveries dropped for slow subscribers",
		},
		func() float64 { return float64(bus.Dropped()) },
	)
	if err := m.registry.Register(published); err != nil {
		return err
	}
	return m.registry.Register(dropped)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.cyclesTotal.Describe(ch)
	m.cycleDuration.Describe(ch)
	m.failuresTotal.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.framesTotal.Describe(ch)
	m.running.Describe(ch)
	ch <- m.boards.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.cyclesTotal.Collect(ch)
	m.cycleDuration.Collect(ch)
	m.failuresTotal.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.framesTotal.Collect(ch)
	m.running.Collect(ch)
	ch <- m.boards
}
