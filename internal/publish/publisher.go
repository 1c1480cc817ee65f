// internal/publish/publisher.go

// Package publish forwards board events to an MQTT broker as JSON.
package publish

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tamzrod/daq-orchestrator/internal/events"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
)

// SubscriberID is the bus subscription name used by Run.
const SubscriberID = "mqtt"

// DefaultBuffer is the subscription channel size used by Run.
const DefaultBuffer = 256

// Config is the publisher runtime config.
type Config struct {
	Prefix  string
	QoS     byte
	Retain  bool // non-frame events only
	Timeout time.Duration

	// FrameRate caps frames per second per board; <= 0 means unlimited.
	FrameRate float64
}

// Publisher turns events into broker messages.
type Publisher struct {
	cfg    Config
	client Client
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[int]*rate.Limiter

	sent      atomic.Uint64
	throttled atomic.Uint64
	failed    atomic.Uint64
}

// New returns a publisher writing through client.
func New(cfg Config, client Client, logger *slog.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Publisher{
		cfg:      cfg,
		client:   client,
		logger:   logging.OrDefault(logger, "publish"),
		limiters: make(map[int]*rate.Limiter),
	}
}

// Handle publishes one event. Frames over the per-board rate are skipped
// silently.
func (p *Publisher) Handle(ctx context.Context, e events.Event) error {
	frame := events.IsFrame(e)
	if frame && !p.allow(e.BoardID()) {
		p.throttled.Add(1)
		return nil
	}

	payload, ok, err := Encode(e)
	if err != nil || !ok {
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	topic := Topic(p.cfg.Prefix, e.BoardID(), e.Kind())
	if err := p.client.Publish(pctx, topic, p.cfg.QoS, p.cfg.Retain && !frame, payload); err != nil {
		p.failed.Add(1)
		return err
	}
	p.sent.Add(1)
	return nil
}

// Run subscribes to bus and publishes until ctx ends.
func (p *Publisher) Run(ctx context.Context, bus *events.Bus) error {
	ch := make(chan events.Event, DefaultBuffer)
	if err := bus.Subscribe(SubscriberID, ch); err != nil {
		return err
	}
	defer func() { _ = bus.Unsubscribe(SubscriberID) }()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-ch:
			err := p.Handle(ctx, e)
			switch {
			case err != nil && !failing:
				p.logger.Warn("publish failed", "kind", e.Kind(), "board", e.BoardID(), "error", err)
				failing = true
			case err == nil && failing:
				p.logger.Info("publish recovered")
				failing = false
			}
		}
	}
}

// Stats returns sent, throttled and failed message counts.
func (p *Publisher) Stats() (sent, throttled, failed uint64) {
	return p.sent.Load(), p.throttled.Load(), p.failed.Load()
}

func (p *Publisher) allow(board int) bool {
	if p.cfg.FrameRate <= 0 {
		return true
	}
	p.mu.Lock()
	lim, ok := p.limiters[board]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.cfg.FrameRate), 1)
		p.limiters[board] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
