// internal/driver/modbus/driver_test.go
package modbus

import (
	"errors"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
)

// ---- fake gateway ----

type request struct {
	unit uint8
	fn   string
	addr uint16
	qty  uint16
}

// fakeGateway is an in-memory modbus.Client addressed per unit.
type fakeGateway struct {
	unit     uint8
	regs     map[uint8]map[uint16]uint16
	inputs   map[uint8]map[uint16]bool
	coils    map[uint8]map[uint16]bool
	requests []request
	err      error
	closed   bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		regs:   map[uint8]map[uint16]uint16{},
		inputs: map[uint8]map[uint16]bool{},
		coils:  map[uint8]map[uint16]bool{},
	}
}

func (g *fakeGateway) dialer() Dialer {
	return func(Config) (*Link, error) {
		return &Link{
			Client:  g,
			SetUnit: func(u uint8) { g.unit = u },
			Close:   func() error { g.closed = true; return nil },
		}, nil
	}
}

func (g *fakeGateway) record(fn string, addr, qty uint16) error {
	g.requests = append(g.requests, request{unit: g.unit, fn: fn, addr: addr, qty: qty})
	return g.err
}

func (g *fakeGateway) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	if err := g.record("ReadInputRegisters", address, quantity); err != nil {
		return nil, err
	}
	out := make([]byte, 2*quantity)
	for i := uint16(0); i < quantity; i++ {
		v := g.regs[g.unit][address+i]
		out[2*i] = byte(v >> 8)
		out[2*i+1] = byte(v)
	}
	return out, nil
}

func (g *fakeGateway) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	if err := g.record("ReadDiscreteInputs", address, quantity); err != nil {
		return nil, err
	}
	out := make([]byte, (quantity+7)/8)
	for i := uint16(0); i < quantity; i++ {
		if g.inputs[g.unit][address+i] {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out, nil
}

func (g *fakeGateway) setCoil(addr uint16, v bool) {
	if g.coils[g.unit] == nil {
		g.coils[g.unit] = map[uint16]bool{}
	}
	g.coils[g.unit][addr] = v
}

func (g *fakeGateway) WriteSingleCoil(address, value uint16) ([]byte, error) {
	if err := g.record("WriteSingleCoil", address, 1); err != nil {
		return nil, err
	}
	g.setCoil(address, value == 0xFF00)
	return nil, nil
}

func (g *fakeGateway) WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error) {
	if err := g.record("WriteMultipleCoils", address, quantity); err != nil {
		return nil, err
	}
	for i := uint16(0); i < quantity; i++ {
		g.setCoil(address+i, value[i/8]&(1<<(i%8)) != 0)
	}
	return nil, nil
}

func (g *fakeGateway) ReadCoils(uint16, uint16) ([]byte, error)            { return nil, nil }
func (g *fakeGateway) ReadHoldingRegisters(uint16, uint16) ([]byte, error) { return nil, nil }
func (g *fakeGateway) WriteSingleRegister(uint16, uint16) ([]byte, error)  { return nil, nil }
func (g *fakeGateway) WriteMultipleRegisters(uint16, uint16, []byte) ([]byte, error) {
	return nil, nil
}
func (g *fakeGateway) ReadWriteMultipleRegisters(uint16, uint16, uint16, uint16, []byte) ([]byte, error) {
	return nil, nil
}
func (g *fakeGateway) MaskWriteRegister(uint16, uint16, uint16) ([]byte, error) { return nil, nil }
func (g *fakeGateway) ReadFIFOQueue(uint16) ([]byte, error)                     { return nil, nil }

var _ modbus.Client = (*fakeGateway)(nil)

type timeout struct{}

func (timeout) Error() string   { return "i/o timeout" }
func (timeout) Timeout() bool   { return true }
func (timeout) Temporary() bool { return true }

// ---- helpers ----

func openDriver(t *testing.T, g *fakeGateway) *Driver {
	t.Helper()
	d, err := New(Config{
		Dialer: g.dialer(),
		Boards: []Board{
			{Model: "GW-AI8", UnitID: 1, Analog: 8, AIAddress: 100},
			{Model: "GW-DIO", UnitID: 2, DIPorts: 1, DOPorts: 1, DIAddress: 0, DOAddress: 16},
		},
	})
	require.NoError(t, err)
	n, err := d.Init()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	return d
}

// ---- tests ----

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Endpoint: "127.0.0.1:502", PortBits: 33})
	require.Error(t, err)

	d, err := New(Config{Endpoint: "127.0.0.1:502"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPortBits, d.cfg.PortBits)
	assert.Equal(t, DefaultTimeout, d.cfg.Timeout)
}

func TestDriver_NotOpen(t *testing.T) {
	d, err := New(Config{Dialer: newFakeGateway().dialer(), Boards: []Board{{Analog: 1}}})
	require.NoError(t, err)

	_, err = d.BoardInfo(0)
	assert.ErrorIs(t, err, driver.StatusDriverNotOpen)
}

func TestDriver_DialFailureIsOpenDriver(t *testing.T) {
	d, err := New(Config{Dialer: func(Config) (*Link, error) { return nil, errors.New("refused") }})
	require.NoError(t, err)

	_, err = d.Init()
	require.Error(t, err)
	assert.Equal(t, uint16(driver.StatusOpenDriver), driver.CodeOf(err))
}

func TestDriver_BoardInfo(t *testing.T) {
	d := openDriver(t, newFakeGateway())

	info, err := d.BoardInfo(1)
	require.NoError(t, err)
	assert.Equal(t, "GW-DIO", info.Model)
	assert.True(t, info.HasDigital())
	assert.False(t, info.HasAnalog())

	_, err = d.BoardInfo(2)
	assert.ErrorIs(t, err, driver.StatusBoardNumber)
}

func TestDriver_AnalogScanScalesRegisters(t *testing.T) {
	g := newFakeGateway()
	g.regs[1] = map[uint16]uint16{
		101: 0x4000,         // ch1: +half scale
		103: uint16(0xC000), // ch3: -half scale
	}
	d := openDriver(t, g)

	require.NoError(t, d.ConfigureAnalog(0, driver.AnalogModeScan, driver.AnalogFIFOSize, driver.CardTypeNormal, 0))
	require.NoError(t, d.StartAnalogScan(0,
		[]uint16{1, 3},
		[]uint16{driver.Bipolar10V.Code(), driver.Bipolar5V.Code()},
		1000, 2))

	buf := make([]float32, 4)
	require.NoError(t, d.AnalogBuffer(0, buf))
	assert.InDelta(t, 5.0, buf[0], 1e-6)
	assert.InDelta(t, -2.5, buf[1], 1e-6)
	assert.InDelta(t, 5.0, buf[2], 1e-6)

	require.Len(t, g.requests, 2)
	assert.Equal(t, request{unit: 1, fn: "ReadInputRegisters", addr: 101, qty: 3}, g.requests[0])

	require.NoError(t, d.StopAnalogScan(0))
	assert.ErrorIs(t, d.AnalogBuffer(0, buf), driver.StatusInvalidMode)
}

func TestDriver_AnalogRejects(t *testing.T) {
	d := openDriver(t, newFakeGateway())

	assert.ErrorIs(t, d.ConfigureAnalog(1, driver.AnalogModeScan, 0, 0, 0), driver.StatusNotSupported)
	assert.ErrorIs(t, d.StartAnalogScan(0, []uint16{8}, []uint16{0}, 1000, 1), driver.StatusInvalidChannel)
	assert.ErrorIs(t, d.StartAnalogScan(0, []uint16{0}, []uint16{99}, 1000, 1), driver.StatusInvalidValue)

	require.NoError(t, d.StartAnalogScan(0, []uint16{0}, []uint16{0}, 1000, 4))
	assert.ErrorIs(t, d.AnalogBuffer(0, make([]float32, 3)), driver.StatusInvalidDataCount)
}

func TestDriver_DigitalPorts(t *testing.T) {
	g := newFakeGateway()
	g.inputs[2] = map[uint16]bool{0: true, 5: true}
	d := openDriver(t, g)

	v, err := d.ReadDigitalInput(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1|1<<5), v)

	require.NoError(t, d.WriteDigitalOutputBit(1, 1, 3, true))
	assert.True(t, g.coils[2][16+16+3])

	require.NoError(t, d.WriteDigitalOutput(1, 0, 0b101))
	assert.True(t, g.coils[2][16])
	assert.False(t, g.coils[2][17])
	assert.True(t, g.coils[2][18])

	_, err = d.ReadDigitalInput(1, 2)
	assert.ErrorIs(t, err, driver.StatusInvalidPort)
	assert.ErrorIs(t, d.WriteDigitalOutputBit(1, 1, 16, true), driver.StatusInvalidValue)
}

func TestDriver_TransportErrorsMapToStatus(t *testing.T) {
	g := newFakeGateway()
	d := openDriver(t, g)

	g.err = timeout{}
	_, err := d.ReadDigitalInput(1, 0)
	assert.Equal(t, uint16(driver.StatusTimeout), driver.CodeOf(err))

	g.err = &modbus.ModbusError{FunctionCode: 2, ExceptionCode: modbus.ExceptionCodeServerDeviceFailure}
	_, err = d.ReadDigitalInput(1, 0)
	assert.Equal(t, uint16(driver.StatusCardIO), driver.CodeOf(err))

	wrapped := driver.Wrap("ReadDigitalInput", 1, err)
	assert.Contains(t, wrapped.Error(), "Error code 58")
}

func TestDriver_CloseDropsLink(t *testing.T) {
	g := newFakeGateway()
	d := openDriver(t, g)

	require.NoError(t, d.Close())
	assert.True(t, g.closed)
	_, err := d.BoardInfo(0)
	assert.ErrorIs(t, err, driver.StatusDriverNotOpen)
	require.NoError(t, d.Close())
}

func TestPackUnpackBits(t *testing.T) {
	assert.Equal(t, []byte{0x05, 0x80}, packBits(0x8005, 16))
	assert.Equal(t, uint32(0x8005), unpackBits([]byte{0x05, 0x80}, 16))
	assert.Equal(t, uint32(0x05), unpackBits([]byte{0x05}, 16))
	assert.Equal(t, []uint16{0x0102, 0xFFFE}, unpackRegisters([]byte{1, 2, 0xFF, 0xFE, 9}))
}
