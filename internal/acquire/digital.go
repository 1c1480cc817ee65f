// internal/acquire/digital.go
package acquire

import (
	"log/slog"
	"sort"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
	"github.com/tamzrod/daq-orchestrator/internal/outqueue"
	"github.com/tamzrod/daq-orchestrator/internal/registry"
)

// Digital drives the digital ports of one board.
type Digital struct {
	drv   driver.Driver
	board int
	reg   *registry.Digital
	queue *outqueue.Queue

	logger *slog.Logger
}

// NewDigital builds the digital controller. Nil reg or queue get fresh ones.
func NewDigital(drv driver.Driver, board int, reg *registry.Digital, queue *outqueue.Queue, logger *slog.Logger) (*Digital, error) {
	if !driver.ValidBoard(board) {
		return nil, errors.Newf("digital: board number %d out of range [0,%d)", board, driver.MaxBoards).
			Component("acquire").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if reg == nil {
		reg = registry.NewDigital(board)
	}
	if queue == nil {
		queue = outqueue.New()
	}
	return &Digital{
		drv:    drv,
		board:  board,
		reg:    reg,
		queue:  queue,
		logger: logging.OrDefault(logger, "acquire").With("component", "digital", "board", board),
	}, nil
}

func (d *Digital) Board() int                  { return d.board }
func (d *Digital) Registry() *registry.Digital { return d.reg }
func (d *Digital) Queue() *outqueue.Queue      { return d.queue }

// AddInput registers an input bit.
func (d *Digital) AddInput(name string, port, bit uint16, invert bool) error {
	return d.reg.AddInput(name, port, bit, invert)
}

// AddOutput registers an output bit.
func (d *Digital) AddOutput(name string, port, bit uint16) error {
	return d.reg.AddOutput(name, port, bit)
}

// EnqueueOutput queues a write of value to the named output.
// The write happens on the board loop's next output pass.
func (d *Digital) EnqueueOutput(name string, value bool, priority int) error {
	out, ok := d.reg.Output(name)
	if !ok {
		return errors.New(registry.ErrChannelNotFound).
			Component("acquire").
			Category(errors.CategoryNotFound).
			Context("board", d.board).
			Context("output", name).
			Build()
	}
	d.queue.Enqueue(outqueue.Command{
		Output:   out.Name,
		Port:     out.Port,
		Bit:      out.Bit,
		Value:    value,
		Priority: priority,
	})
	return nil
}

// ProcessInputs reads every input port once and decodes the configured bits.
// It returns nil when no inputs are configured. A read failure aborts the pass
// before any state is recorded.
func (d *Digital) ProcessInputs() (*DigitalFrame, error) {
	inputs := d.reg.Inputs()
	if len(inputs) == 0 {
		return nil, nil
	}

	values := make(map[uint16]uint32)
	for _, port := range d.reg.InputPorts() {
		v, err := d.drv.ReadDigitalInput(d.board, port)
		if err != nil {
			return nil, driver.Wrap(OpReadDigitalInput, d.board, err)
		}
		values[port] = v
	}

	frame := &DigitalFrame{
		Board:     d.board,
		Timestamp: time.Now(),
		states:    make(map[string]bool, len(inputs)),
	}
	for _, in := range inputs {
		v, ok := values[in.Port]
		if !ok {
			// input added after InputPorts was taken; picked up next pass
			continue
		}
		state := v&(1<<in.Bit) != 0
		if in.Invert {
			state = !state
		}
		frame.states[in.Name] = state
		if changed, _ := d.reg.SetInputState(in.Name, state); changed {
			frame.changed = append(frame.changed, in.Name)
		}
	}
	return frame, nil
}

// ProcessOutputs drains the queue and writes each command as a single bit.
// A write failure aborts the pass; the remaining commands of the batch are
// dropped.
func (d *Digital) ProcessOutputs() error {
	batch := d.queue.FlushAndClear()
	for i, cmd := range batch {
		if err := d.drv.WriteDigitalOutputBit(d.board, cmd.Port, cmd.Bit, cmd.Value); err != nil {
			if dropped := len(batch) - i - 1; dropped > 0 {
				d.logger.Warn("output commands dropped after write failure", "dropped", dropped)
			}
			return driver.Wrap(OpWriteDigitalOutputBit, d.board, err)
		}
		d.reg.SetOutputState(cmd.Output, cmd.Value)
	}
	return nil
}

// SetAllImmediate clears pending commands and drives every configured output
// to state, with one port-wide write per port.
func (d *Digital) SetAllImmediate(state bool) error {
	if n := d.queue.Clear(); n > 0 {
		d.logger.Debug("pending output commands discarded", "count", n)
	}

	outputs := d.reg.Outputs()
	byPort := make(map[uint16][]registry.DigitalOutput)
	values := make(map[uint16]uint32)
	for _, o := range outputs {
		v := values[o.Port]
		if state {
			v |= 1 << o.Bit
		} else {
			v &^= 1 << o.Bit
		}
		values[o.Port] = v
		byPort[o.Port] = append(byPort[o.Port], o)
	}

	ports := make([]uint16, 0, len(values))
	for p := range values {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })

	for _, p := range ports {
		if err := d.drv.WriteDigitalOutput(d.board, p, values[p]); err != nil {
			return driver.Wrap(OpWriteDigitalOutput, d.board, err)
		}
		for _, o := range byPort[p] {
			d.reg.SetOutputState(o.Name, state)
		}
	}
	return nil
}

// InputState returns the last observed state of the named input.
func (d *Digital) InputState(name string) (bool, bool) {
	in, ok := d.reg.Input(name)
	if !ok || !in.Known {
		return false, false
	}
	return in.State, true
}

// OutputState returns the last commanded state of the named output.
func (d *Digital) OutputState(name string) (bool, bool) {
	out, ok := d.reg.Output(name)
	if !ok {
		return false, false
	}
	return out.State, true
}
