// internal/driver/modbus/link.go
package modbus

import (
	"errors"
	"strings"
	"time"

	"github.com/goburrow/modbus"
)

// Link is one open Modbus connection. SetUnit selects the slave addressed by
// the next request.
type Link struct {
	Client  modbus.Client
	SetUnit func(unit uint8)
	Close   func() error
}

// Dialer opens a Link for cfg.
type Dialer func(cfg Config) (*Link, error)

// rtuPrefix selects a serial RTU link instead of TCP, e.g. "rtu:/dev/ttyUSB0".
const rtuPrefix = "rtu:"

// Dial is the default Dialer: Modbus TCP, or RTU for "rtu:" endpoints.
func Dial(cfg Config) (*Link, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("driver modbus: endpoint required")
	}

	if dev, ok := strings.CutPrefix(cfg.Endpoint, rtuPrefix); ok {
		h := modbus.NewRTUClientHandler(dev)
		h.Timeout = cfg.Timeout
		h.BaudRate = cfg.BaudRate
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		if err := h.Connect(); err != nil {
			return nil, err
		}
		return &Link{
			Client:  modbus.NewClient(h),
			SetUnit: func(u uint8) { h.SlaveId = u },
			Close:   h.Close,
		}, nil
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.IdleTimeout = 0
	if err := h.Connect(); err != nil {
		return nil, err
	}
	return &Link{
		Client:  modbus.NewClient(h),
		SetUnit: func(u uint8) { h.SlaveId = u },
		Close:   h.Close,
	}, nil
}

// ---- helpers (pure geometry) ----

func packBits(bits uint32, count int) []byte {
	out := make([]byte, (count+7)/8)
	for i := 0; i < count; i++ {
		if bits&(1<<uint(i)) != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func unpackBits(data []byte, count int) uint32 {
	var out uint32
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			break
		}
		if data[byteIdx]&(1<<uint(i%8)) != 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

// timeoutError matches net.Error and the serial port's timeout errors.
type timeoutError interface{ Timeout() bool }

func isTimeout(err error) bool {
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = time.Second
