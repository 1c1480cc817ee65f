// internal/driver/sim/sim.go

// Package sim is an in-process driver.Driver for tests and bench runs.
// It keeps digital port state in memory, synthesizes analog samples and can
// inject status failures per operation.
package sim

import (
	"fmt"
	"math"
	"sync"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
)

// Operation names accepted by Fail.
const (
	OpInit                  = "Init"
	OpBoardInfo             = "BoardInfo"
	OpConfigureAnalog       = "ConfigureAnalog"
	OpStartAnalogScan       = "StartAnalogScan"
	OpAnalogBuffer          = "AnalogBuffer"
	OpStopAnalogScan        = "StopAnalogScan"
	OpReadDigitalInput      = "ReadDigitalInput"
	OpWriteDigitalOutput    = "WriteDigitalOutput"
	OpWriteDigitalOutputBit = "WriteDigitalOutputBit"
)

// SignalFunc produces the analog value for one (channel, sample) of a scan.
// scan counts scans on the board starting at 0.
type SignalFunc func(board int, channel uint16, scan, sample int) float32

// Sine is the default signal: a slow sine offset by the channel number.
func Sine(_ int, channel uint16, scan, sample int) float32 {
	return float32(channel) + float32(math.Sin(float64(scan*7+sample)/16))
}

type fault struct {
	status driver.Status
	remain int // <0 means forever
}

type scanState struct {
	active   bool
	channels []uint16
	samples  uint32
	scans    int
}

// Driver is the simulated transport.
type Driver struct {
	mu sync.Mutex

	boards []driver.BoardInfo
	signal SignalFunc

	open     bool
	scans    map[int]*scanState
	inputs   map[int]map[uint16]uint32
	outputs  map[int]map[uint16]uint32
	faults   map[string]*fault
	calls    []string
	analogCf map[int]uint16
}

// New returns a simulated driver exposing boards. A nil signal uses Sine.
func New(boards []driver.BoardInfo, signal SignalFunc) *Driver {
	if signal == nil {
		signal = Sine
	}
	cp := make([]driver.BoardInfo, len(boards))
	for i, b := range boards {
		b.Index = i
		cp[i] = b
	}
	return &Driver{
		boards:   cp,
		signal:   signal,
		scans:    make(map[int]*scanState),
		inputs:   make(map[int]map[uint16]uint32),
		outputs:  make(map[int]map[uint16]uint32),
		faults:   make(map[string]*fault),
		analogCf: make(map[int]uint16),
	}
}

// Fail makes the next count calls of op return st. count < 0 fails forever;
// count == 0 clears the fault.
func (d *Driver) Fail(op string, st driver.Status, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if count == 0 {
		delete(d.faults, op)
		return
	}
	d.faults[op] = &fault{status: st, remain: count}
}

// SetInput sets the raw bits a digital input port reads back.
func (d *Driver) SetInput(board int, port uint16, bits uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inputs[board] == nil {
		d.inputs[board] = make(map[uint16]uint32)
	}
	d.inputs[board][port] = bits
}

// Output returns the bits last written to a digital output port.
func (d *Driver) Output(board int, port uint16) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputs[board][port]
}

// Calls returns the operations invoked so far, in order.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

// Scanning reports whether a scan is active on board.
func (d *Driver) Scanning(board int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.scans[board]
	return s != nil && s.active
}

// CardType returns the card type passed to the last ConfigureAnalog.
func (d *Driver) CardType(board int) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.analogCf[board]
}

// enter records the call and returns an injected fault, if any.
// Caller holds d.mu.
func (d *Driver) enter(op string, board int) error {
	d.calls = append(d.calls, op)
	if f, ok := d.faults[op]; ok {
		if f.remain > 0 {
			f.remain--
			if f.remain == 0 {
				delete(d.faults, op)
			}
		}
		return f.status
	}
	if op == OpInit {
		return nil
	}
	if !d.open {
		return driver.StatusDriverNotOpen
	}
	if board >= 0 && (board >= len(d.boards) || !driver.ValidBoard(board)) {
		return driver.StatusBoardNumber
	}
	return nil
}

func (d *Driver) Init() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpInit, -1); err != nil {
		return 0, err
	}
	d.open = true
	return len(d.boards), nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "Close")
	d.open = false
	for _, s := range d.scans {
		s.active = false
	}
	return nil
}

func (d *Driver) BoardInfo(index int) (driver.BoardInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpBoardInfo, index); err != nil {
		return driver.BoardInfo{}, err
	}
	if index < 0 {
		return driver.BoardInfo{}, driver.StatusBoardNumber
	}
	return d.boards[index], nil
}

func (d *Driver) ConfigureAnalog(board int, mode uint16, bufferSize uint32, cardType uint16, flags uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpConfigureAnalog, board); err != nil {
		return err
	}
	if d.boards[board].AIChannels == 0 {
		return driver.StatusNotSupported
	}
	d.analogCf[board] = cardType
	return nil
}

func (d *Driver) StartAnalogScan(board int, channels, configs []uint16, rate float32, samplesPerChannel uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpStartAnalogScan, board); err != nil {
		return err
	}
	if len(channels) == 0 || len(channels) != len(configs) {
		return driver.StatusInvalidChannel
	}
	for _, ch := range channels {
		if int(ch) >= d.boards[board].AIChannels {
			return driver.StatusInvalidChannel
		}
	}
	if samplesPerChannel == 0 || rate <= 0 {
		return driver.StatusInvalidDataCount
	}
	s := d.scans[board]
	if s == nil {
		s = &scanState{}
		d.scans[board] = s
	}
	s.active = true
	s.channels = append(s.channels[:0], channels...)
	s.samples = samplesPerChannel
	return nil
}

func (d *Driver) AnalogBuffer(board int, out []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpAnalogBuffer, board); err != nil {
		return err
	}
	s := d.scans[board]
	if s == nil || !s.active {
		return driver.StatusInvalidMode
	}
	n := len(s.channels)
	if len(out) != int(s.samples)*n {
		return driver.StatusInvalidDataCount
	}
	for i := 0; i < int(s.samples); i++ {
		for c, ch := range s.channels {
			out[i*n+c] = d.signal(board, ch, s.scans, i)
		}
	}
	s.scans++
	return nil
}

func (d *Driver) StopAnalogScan(board int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpStopAnalogScan, board); err != nil {
		return err
	}
	if s := d.scans[board]; s != nil {
		s.active = false
	}
	return nil
}

func (d *Driver) ReadDigitalInput(board int, port uint16) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpReadDigitalInput, board); err != nil {
		return 0, err
	}
	if err := d.checkPort(board, port); err != nil {
		return 0, err
	}
	return d.inputs[board][port], nil
}

func (d *Driver) WriteDigitalOutput(board int, port uint16, bits uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpWriteDigitalOutput, board); err != nil {
		return err
	}
	if err := d.checkPort(board, port); err != nil {
		return err
	}
	d.setOutput(board, port, bits)
	return nil
}

func (d *Driver) WriteDigitalOutputBit(board int, port, bit uint16, value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(OpWriteDigitalOutputBit, board); err != nil {
		return err
	}
	if err := d.checkPort(board, port); err != nil {
		return err
	}
	if bit >= 32 {
		return driver.StatusInvalidValue
	}
	cur := d.outputs[board][port]
	if value {
		cur |= 1 << bit
	} else {
		cur &^= 1 << bit
	}
	d.setOutput(board, port, cur)
	return nil
}

func (d *Driver) checkPort(board int, port uint16) error {
	b := d.boards[board]
	if int(port) >= b.DIPorts+b.DOPorts+b.DIOPorts {
		return driver.StatusInvalidPort
	}
	return nil
}

func (d *Driver) setOutput(board int, port uint16, bits uint32) {
	if d.outputs[board] == nil {
		d.outputs[board] = make(map[uint16]uint32)
	}
	d.outputs[board][port] = bits
}

// String identifies the driver in logs.
func (d *Driver) String() string {
	return fmt.Sprintf("sim(%d boards)", len(d.boards))
}

var _ driver.Driver = (*Driver)(nil)
