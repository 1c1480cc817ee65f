// internal/registry/digital.go
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/tamzrod/daq-orchestrator/internal/errors"
)

// DigitalInput is one configured input bit.
type DigitalInput struct {
	Name   string
	Port   uint16
	Bit    uint16
	Invert bool
	Board  int
	State  bool
	Known  bool // State has been observed at least once
}

// DigitalOutput is one configured output bit.
type DigitalOutput struct {
	Name  string
	Port  uint16
	Bit   uint16
	Board int
	State bool
}

// Digital is the thread-safe digital channel set of one board.
// Input and output names are unique within their direction.
type Digital struct {
	mu      sync.RWMutex
	board   int
	inputs  []DigitalInput
	outputs []DigitalOutput
}

// NewDigital returns an empty registry for board.
func NewDigital(board int) *Digital {
	return &Digital{board: board}
}

// Board returns the owning board number.
func (r *Digital) Board() int { return r.board }

// AddInput registers an input bit.
func (r *Digital) AddInput(name string, port, bit uint16, invert bool) error {
	if err := r.checkBit(name, bit); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findInput(name) >= 0 {
		return r.duplicate("input", name)
	}
	r.inputs = append(r.inputs, DigitalInput{
		Name: name, Port: port, Bit: bit, Invert: invert, Board: r.board,
	})
	return nil
}

// AddOutput registers an output bit.
func (r *Digital) AddOutput(name string, port, bit uint16) error {
	if err := r.checkBit(name, bit); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findOutput(name) >= 0 {
		return r.duplicate("output", name)
	}
	r.outputs = append(r.outputs, DigitalOutput{
		Name: name, Port: port, Bit: bit, Board: r.board,
	})
	return nil
}

// Clear removes every input and output.
func (r *Digital) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = nil
	r.outputs = nil
}

// Inputs returns a copy of the configured inputs.
func (r *Digital) Inputs() []DigitalInput {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DigitalInput, len(r.inputs))
	copy(out, r.inputs)
	return out
}

// Outputs returns a copy of the configured outputs.
func (r *Digital) Outputs() []DigitalOutput {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DigitalOutput, len(r.outputs))
	copy(out, r.outputs)
	return out
}

// InputPorts returns the distinct input ports in ascending order.
func (r *Digital) InputPorts() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint16]struct{})
	var ports []uint16
	for _, in := range r.inputs {
		if _, ok := seen[in.Port]; ok {
			continue
		}
		seen[in.Port] = struct{}{}
		ports = append(ports, in.Port)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

// Output looks up an output by name.
func (r *Digital) Output(name string) (DigitalOutput, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.findOutput(name)
	if i < 0 {
		return DigitalOutput{}, false
	}
	return r.outputs[i], true
}

// Input looks up an input by name.
func (r *Digital) Input(name string) (DigitalInput, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.findInput(name)
	if i < 0 {
		return DigitalInput{}, false
	}
	return r.inputs[i], true
}

// SetInputState records an observed input state and reports whether it is a
// transition. The first observation of a channel counts as a transition.
func (r *Digital) SetInputState(name string, state bool) (changed bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.findInput(name)
	if i < 0 {
		return false, false
	}
	in := &r.inputs[i]
	changed = !in.Known || in.State != state
	in.State = state
	in.Known = true
	return changed, true
}

// SetOutputState records the commanded state of an output.
func (r *Digital) SetOutputState(name string, state bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.findOutput(name)
	if i < 0 {
		return false
	}
	r.outputs[i].State = state
	return true
}

func (r *Digital) checkBit(name string, bit uint16) error {
	if strings.TrimSpace(name) == "" {
		return errors.Newf("digital channel name required").
			Component("registry").
			Category(errors.CategoryValidation).
			Context("board", r.board).
			Build()
	}
	if bit >= 32 {
		return errors.Newf("digital channel %q: bit %d out of range", name, bit).
			Component("registry").
			Category(errors.CategoryValidation).
			Context("board", r.board).
			Build()
	}
	return nil
}

func (r *Digital) duplicate(direction, name string) error {
	return errors.Newf("digital %s %q already exists", direction, name).
		Component("registry").
		Category(errors.CategoryConflict).
		Context("board", r.board).
		Build()
}

// findInput and findOutput require r.mu held. Names match exactly.
func (r *Digital) findInput(name string) int {
	for i := range r.inputs {
		if r.inputs[i].Name == name {
			return i
		}
	}
	return -1
}

func (r *Digital) findOutput(name string) int {
	for i := range r.outputs {
		if r.outputs[i].Name == name {
			return i
		}
	}
	return -1
}
