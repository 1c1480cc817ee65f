// internal/driver/modbus/driver.go

// Package modbus is a driver.Driver over a Modbus I/O gateway. Each board is
// one slave unit behind the gateway; analog channels are input registers,
// digital inputs are discrete inputs and digital outputs are coils.
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
)

// DefaultPortBits is the width of one digital port in Modbus bits.
const DefaultPortBits = 16

// Board maps one board number to a slave unit and its register layout.
type Board struct {
	Model    string
	UnitID   uint8
	Analog   int
	DIPorts  int
	DOPorts  int
	DIOPorts int

	AIAddress uint16 // first input register
	DIAddress uint16 // first discrete input
	DOAddress uint16 // first coil
}

// Config is the gateway connection plus the board table.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	BaudRate int
	PortBits int
	Boards   []Board

	// Dialer overrides Dial. Used by tests.
	Dialer Dialer
}

type scan struct {
	channels []uint16
	ranges   []driver.VoltageRange
	samples  int
	active   bool
}

// Driver talks to the gateway over a single link. Requests are serialized
// because the unit id is mutated per request.
type Driver struct {
	mu   sync.Mutex
	cfg  Config
	link *Link

	cardTypes map[int]uint16
	scans     map[int]*scan
}

// New validates cfg. The link is opened by Init.
func New(cfg Config) (*Driver, error) {
	if cfg.Endpoint == "" && cfg.Dialer == nil {
		return nil, fmt.Errorf("driver modbus: endpoint required")
	}
	if len(cfg.Boards) > driver.MaxBoards {
		return nil, fmt.Errorf("driver modbus: %d boards exceeds maximum %d", len(cfg.Boards), driver.MaxBoards)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 19200
	}
	if cfg.PortBits <= 0 {
		cfg.PortBits = DefaultPortBits
	}
	if cfg.PortBits > 32 {
		return nil, fmt.Errorf("driver modbus: port_bits %d exceeds 32", cfg.PortBits)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = Dial
	}
	return &Driver{
		cfg:       cfg,
		cardTypes: make(map[int]uint16),
		scans:     make(map[int]*scan),
	}, nil
}

// ---- lifecycle ----

func (d *Driver) Init() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.link != nil {
		return len(d.cfg.Boards), nil
	}
	link, err := d.cfg.Dialer(d.cfg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", driver.StatusOpenDriver, err)
	}
	d.link = link
	return len(d.cfg.Boards), nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.link == nil {
		return nil
	}
	err := d.link.Close()
	d.link = nil
	d.scans = make(map[int]*scan)
	return err
}

func (d *Driver) BoardInfo(index int) (driver.BoardInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.board(index)
	if err != nil {
		return driver.BoardInfo{}, err
	}
	return driver.BoardInfo{
		Index:      index,
		Model:      b.Model,
		AIChannels: b.Analog,
		DIPorts:    b.DIPorts,
		DOPorts:    b.DOPorts,
		DIOPorts:   b.DIOPorts,
	}, nil
}

// ---- analog ----

// ConfigureAnalog records the card type. Mode, buffer size and flags have no
// gateway equivalent.
func (d *Driver) ConfigureAnalog(board int, mode uint16, bufferSize uint32, cardType uint16, flags uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.board(board)
	if err != nil {
		return err
	}
	if b.Analog == 0 {
		return driver.StatusNotSupported
	}
	if mode != driver.AnalogModeScan {
		return driver.StatusInvalidMode
	}
	d.cardTypes[board] = cardType
	return nil
}

// StartAnalogScan arms a scan. The gateway is polled on AnalogBuffer, so
// rate is accepted but not enforced.
func (d *Driver) StartAnalogScan(board int, channels, configs []uint16, rate float32, samplesPerChannel uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.board(board)
	if err != nil {
		return err
	}
	if len(channels) == 0 || len(channels) != len(configs) {
		return driver.StatusInvalidChannel
	}
	if rate <= 0 || samplesPerChannel == 0 {
		return driver.StatusInvalidValue
	}
	ranges := make([]driver.VoltageRange, len(configs))
	for i, ch := range channels {
		if int(ch) >= b.Analog {
			return driver.StatusInvalidChannel
		}
		r := driver.VoltageRange(configs[i])
		if !r.Valid() {
			return driver.StatusInvalidValue
		}
		ranges[i] = r
	}
	d.scans[board] = &scan{
		channels: append([]uint16(nil), channels...),
		ranges:   ranges,
		samples:  int(samplesPerChannel),
		active:   true,
	}
	return nil
}

// AnalogBuffer fills out sample-major, one register block read per sample.
func (d *Driver) AnalogBuffer(board int, out []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.board(board)
	if err != nil {
		return err
	}
	s := d.scans[board]
	if s == nil || !s.active {
		return driver.StatusInvalidMode
	}
	n := len(s.channels)
	if len(out) != s.samples*n {
		return driver.StatusInvalidDataCount
	}

	lo, hi := s.channels[0], s.channels[0]
	for _, ch := range s.channels {
		lo = min(lo, ch)
		hi = max(hi, ch)
	}
	qty := hi - lo + 1

	d.link.SetUnit(b.UnitID)
	for i := 0; i < s.samples; i++ {
		data, err := d.link.Client.ReadInputRegisters(b.AIAddress+lo, qty)
		if err != nil {
			return transportError(err)
		}
		regs := unpackRegisters(data)
		if len(regs) < int(qty) {
			return driver.StatusInvalidDataCount
		}
		for c, ch := range s.channels {
			out[i*n+c] = scale(regs[ch-lo], s.ranges[c])
		}
	}
	return nil
}

func (d *Driver) StopAnalogScan(board int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.board(board); err != nil {
		return err
	}
	if s := d.scans[board]; s != nil {
		s.active = false
	}
	return nil
}

// scale maps a raw register to volts: signed full scale for bipolar ranges,
// unsigned for unipolar.
func scale(reg uint16, r driver.VoltageRange) float32 {
	if r.Bipolar() {
		return float32(float64(int16(reg)) / 32768 * r.FullScale())
	}
	return float32(float64(reg) / 65536 * r.FullScale())
}

// ---- digital ----

func (d *Driver) ReadDigitalInput(board int, port uint16) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.port(board, port)
	if err != nil {
		return 0, err
	}
	bits := uint16(d.cfg.PortBits)
	d.link.SetUnit(b.UnitID)
	data, err := d.link.Client.ReadDiscreteInputs(b.DIAddress+port*bits, bits)
	if err != nil {
		return 0, transportError(err)
	}
	return unpackBits(data, d.cfg.PortBits), nil
}

func (d *Driver) WriteDigitalOutput(board int, port uint16, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.port(board, port)
	if err != nil {
		return err
	}
	bits := uint16(d.cfg.PortBits)
	d.link.SetUnit(b.UnitID)
	if _, err := d.link.Client.WriteMultipleCoils(b.DOAddress+port*bits, bits, packBits(value, d.cfg.PortBits)); err != nil {
		return transportError(err)
	}
	return nil
}

func (d *Driver) WriteDigitalOutputBit(board int, port, bit uint16, value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.port(board, port)
	if err != nil {
		return err
	}
	if int(bit) >= d.cfg.PortBits {
		return driver.StatusInvalidValue
	}
	coil := uint16(0x0000)
	if value {
		coil = 0xFF00
	}
	d.link.SetUnit(b.UnitID)
	if _, err := d.link.Client.WriteSingleCoil(b.DOAddress+port*uint16(d.cfg.PortBits)+bit, coil); err != nil {
		return transportError(err)
	}
	return nil
}

// ---- internal ----

// board resolves a board number. Caller holds d.mu.
func (d *Driver) board(index int) (Board, error) {
	if d.link == nil {
		return Board{}, driver.StatusDriverNotOpen
	}
	if index < 0 || index >= len(d.cfg.Boards) || !driver.ValidBoard(index) {
		return Board{}, driver.StatusBoardNumber
	}
	return d.cfg.Boards[index], nil
}

func (d *Driver) port(board int, port uint16) (Board, error) {
	b, err := d.board(board)
	if err != nil {
		return Board{}, err
	}
	if int(port) >= b.DIPorts+b.DOPorts+b.DIOPorts {
		return Board{}, driver.StatusInvalidPort
	}
	return b, nil
}

// transportError maps a link failure onto a driver status, keeping the cause.
func transportError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", driver.StatusTimeout, err)
	}
	var me *modbus.ModbusError
	if errors.As(err, &me) && me.ExceptionCode == modbus.ExceptionCodeIllegalDataAddress {
		return fmt.Errorf("%w: %v", driver.StatusInvalidChannel, err)
	}
	return fmt.Errorf("%w: %v", driver.StatusCardIO, err)
}

// String identifies the driver in logs.
func (d *Driver) String() string {
	return fmt.Sprintf("modbus(%s, %d boards)", d.cfg.Endpoint, len(d.cfg.Boards))
}

var _ driver.Driver = (*Driver)(nil)
