// internal/registry/analog.go

// Package registry stores a board's channel configuration. Acquisition reads
// it through snapshots while operators reconfigure it concurrently.
package registry

import (
	"strings"
	"sync"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/errors"
	"github.com/tamzrod/daq-orchestrator/internal/signal"
)

// ErrChannelNotFound is returned by updates addressing an unknown channel.
var ErrChannelNotFound = errors.Newf("channel not found").
	Component("registry").
	Category(errors.CategoryNotFound).
	Build()

// AnalogChannel is the configuration of one analog input.
type AnalogChannel struct {
	Name   string
	Index  uint16
	Range  driver.VoltageRange
	Window int
	Coeffs []float64
	Zero   float32
}

// AnalogEntry is one channel as seen by a snapshot.
type AnalogEntry struct {
	AnalogChannel
	Conditioner *signal.Conditioner
}

// AnalogSnapshot is an immutable view of the channel list at one instant.
type AnalogSnapshot struct {
	Channels []AnalogEntry
	Indices  []uint16
	Codes    []uint16
}

// Len returns the number of channels in the snapshot.
func (s AnalogSnapshot) Len() int { return len(s.Channels) }

// Names returns the channel names in scan order.
func (s AnalogSnapshot) Names() []string {
	out := make([]string, len(s.Channels))
	for i, c := range s.Channels {
		out[i] = c.Name
	}
	return out
}

type analogSlot struct {
	cfg  AnalogChannel
	cond *signal.Conditioner
}

// Analog is the thread-safe analog channel list of one board.
// Readers share the lock; every mutation is exclusive.
type Analog struct {
	mu    sync.RWMutex
	board int
	slots []analogSlot
}

// NewAnalog returns an empty registry for board.
func NewAnalog(board int) *Analog {
	return &Analog{board: board}
}

// Add appends a channel. Names are unique per board (case-insensitive).
func (r *Analog) Add(ch AnalogChannel) error {
	if strings.TrimSpace(ch.Name) == "" {
		return errors.Newf("analog channel name required").
			Component("registry").
			Category(errors.CategoryValidation).
			Context("board", r.board).
			Build()
	}
	if !ch.Range.Valid() {
		return errors.Newf("analog channel %q: invalid range code %d", ch.Name, ch.Range).
			Component("registry").
			Category(errors.CategoryValidation).
			Context("board", r.board).
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.find(ch.Name) >= 0 {
		return errors.Newf("analog channel %q already exists", ch.Name).
			Component("registry").
			Category(errors.CategoryConflict).
			Context("board", r.board).
			Build()
	}

	ch.Coeffs = cloneCoeffs(ch.Coeffs)
	r.slots = append(r.slots, analogSlot{
		cfg:  ch,
		cond: signal.NewConditioner(ch.Window, ch.Coeffs, ch.Zero),
	})
	return nil
}

// Clear removes every channel.
func (r *Analog) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = nil
}

// Len returns the channel count.
func (r *Analog) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// Snapshot copies the channel list with derived index and config-code arrays.
func (r *Analog) Snapshot() AnalogSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := AnalogSnapshot{
		Channels: make([]AnalogEntry, len(r.slots)),
		Indices:  make([]uint16, len(r.slots)),
		Codes:    make([]uint16, len(r.slots)),
	}
	for i, s := range r.slots {
		cfg := s.cfg
		cfg.Coeffs = cloneCoeffs(cfg.Coeffs)
		snap.Channels[i] = AnalogEntry{AnalogChannel: cfg, Conditioner: s.cond}
		snap.Indices[i] = cfg.Index
		snap.Codes[i] = cfg.Range.Code()
	}
	return snap
}

// ---- updates by name ----

// UpdateZero sets the zero offset of the named channel.
func (r *Analog) UpdateZero(name string, zero float32) error {
	return r.update(func() int { return r.find(name) }, name, func(s *analogSlot) {
		s.cfg.Zero = zero
		s.cond = s.cond.WithZero(zero)
	})
}

// UpdateRegression replaces the regression coefficients of the named channel.
func (r *Analog) UpdateRegression(name string, coeffs []float64) error {
	return r.update(func() int { return r.find(name) }, name, func(s *analogSlot) {
		s.cfg.Coeffs = cloneCoeffs(coeffs)
		s.cond = s.cond.WithCoeffs(coeffs)
	})
}

// UpdateFilter changes the moving-average window of the named channel and
// resets its filter state.
func (r *Analog) UpdateFilter(name string, window int) error {
	return r.update(func() int { return r.find(name) }, name, func(s *analogSlot) {
		s.cfg.Window = window
		s.cond = s.cond.WithWindow(window)
	})
}

// ---- updates by physical index ----

// UpdateZeroAt sets the zero offset of the channel on physical input index.
func (r *Analog) UpdateZeroAt(index uint16, zero float32) error {
	return r.update(func() int { return r.findIndex(index) }, index, func(s *analogSlot) {
		s.cfg.Zero = zero
		s.cond = s.cond.WithZero(zero)
	})
}

// UpdateRegressionAt replaces the fit coefficients of the channel on index.
// An empty slice restores the identity fit.
func (r *Analog) UpdateRegressionAt(index uint16, coeffs []float64) error {
	return r.update(func() int { return r.findIndex(index) }, index, func(s *analogSlot) {
		s.cfg.Coeffs = cloneCoeffs(coeffs)
		s.cond = s.cond.WithCoeffs(coeffs)
	})
}

// UpdateFilterAt resizes the moving-average window of the channel on index,
// resetting its filter state.
func (r *Analog) UpdateFilterAt(index uint16, window int) error {
	return r.update(func() int { return r.findIndex(index) }, index, func(s *analogSlot) {
		s.cfg.Window = window
		s.cond = s.cond.WithWindow(window)
	})
}

// update locates a slot with locate and applies mutate under the write lock.
func (r *Analog) update(locate func() int, key any, mutate func(*analogSlot)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := locate()
	if i < 0 {
		return errors.New(ErrChannelNotFound).
			Component("registry").
			Category(errors.CategoryNotFound).
			Context("board", r.board).
			Context("channel", key).
			Build()
	}
	mutate(&r.slots[i])
	return nil
}

// find and findIndex require r.mu held.
func (r *Analog) find(name string) int {
	for i := range r.slots {
		if strings.EqualFold(r.slots[i].cfg.Name, name) {
			return i
		}
	}
	return -1
}

func (r *Analog) findIndex(index uint16) int {
	for i := range r.slots {
		if r.slots[i].cfg.Index == index {
			return i
		}
	}
	return -1
}

func cloneCoeffs(in []float64) []float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
