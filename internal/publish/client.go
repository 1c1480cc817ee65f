// internal/publish/client.go
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
)

// Client is the broker surface the publisher needs.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// ClientConfig holds the broker connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string // empty = "daqd-" + random suffix
	Username string
	Password string
	Timeout  time.Duration
}

const (
	defaultTimeout      = 5 * time.Second
	disconnectQuiesceMs = 250
)

// pahoClient implements Client on paho.
type pahoClient struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu       sync.Mutex
	internal mqtt.Client
}

// NewClient returns an unconnected paho-backed client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "daqd-" + uuid.NewString()[:8]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &pahoClient{
		cfg:    cfg,
		logger: logging.OrDefault(logger, "mqtt").With("broker", cfg.Broker, "client_id", cfg.ClientID),
	}
}

// Connect dials the broker. paho keeps reconnecting on its own afterwards.
func (c *pahoClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetUsername(c.cfg.Username)
	opts.SetPassword(c.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(c.cfg.Timeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("connection to broker lost", "error", err)
	})

	c.internal = mqtt.NewClient(opts)

	token := c.internal.Connect()
	if err := wait(ctx, token, c.cfg.Timeout); err != nil {
		return errors.New(fmt.Errorf("mqtt connect: %w", err)).
			Component("publish").
			Category(errors.CategoryNetwork).
			Context("broker", c.cfg.Broker).
			Build()
	}
	return nil
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	c.mu.Lock()
	cl := c.internal
	c.mu.Unlock()

	if cl == nil || !cl.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("publish").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	token := cl.Publish(topic, qos, retain, payload)
	if err := wait(ctx, token, c.cfg.Timeout); err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return nil
}

func (c *pahoClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

func (c *pahoClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internal != nil {
		c.internal.Disconnect(disconnectQuiesceMs)
		c.internal = nil
	}
}

// wait blocks until token completes, ctx ends or timeout passes.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.Newf("timeout after %s", timeout).
			Component("publish").
			Category(errors.CategoryTimeout).
			Build()
	}
}
