// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"sync"
	"time"

	mbdriver "github.com/tamzrod/daq-orchestrator/internal/driver/modbus"
)

// EndpointClient writes status blocks to one Modbus endpoint. It shares the
// gateway driver's link code, so "rtu:" endpoints work too.
// The link is dialed on first write and dropped after any failed write.
type EndpointClient struct {
	mu   sync.Mutex
	cfg  mbdriver.Config
	dial mbdriver.Dialer
	link *mbdriver.Link
}

type Config struct {
	Endpoint string
	Timeout  time.Duration

	// Dialer overrides mbdriver.Dial. Used by tests.
	Dialer mbdriver.Dialer
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = mbdriver.DefaultTimeout
	}
	dial := cfg.Dialer
	if dial == nil {
		dial = mbdriver.Dial
	}
	return &EndpointClient{
		cfg:  mbdriver.Config{Endpoint: cfg.Endpoint, Timeout: cfg.Timeout, BaudRate: 19200},
		dial: dial,
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

// WriteRegisters writes regs starting at addr on unit.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link == nil {
		link, err := c.dial(c.cfg)
		if err != nil {
			return err
		}
		c.link = link
	}

	c.link.SetUnit(unitID)
	if _, err := c.link.Client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs)); err != nil {
		_ = c.dropLocked()
		return err
	}
	return nil
}

func (c *EndpointClient) dropLocked() error {
	if c.link == nil {
		return nil
	}
	err := c.link.Close()
	c.link = nil
	return err
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, 0, len(regs)*2)
	for _, r := range regs {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}
