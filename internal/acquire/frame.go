// internal/acquire/frame.go
package acquire

import (
	"fmt"
	"strings"
	"time"
)

// Frame is the processed result of one analog cycle.
// Matrices are [sample, channel] in row-major order. Frames are never
// modified after construction; accessors return copies.
type Frame struct {
	Board     int
	Timestamp time.Time
	Elapsed   time.Duration
	Samples   int
	Channels  int

	names []string
	data  []float32
	raw   []float32
	index map[string]int
}

// Series is one channel's column of a frame.
type Series struct {
	Data []float32
	Raw  []float32
}

func newFrame(board int, names []string, samples int, data, raw []float32, at time.Time, elapsed time.Duration) *Frame {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[strings.ToLower(n)] = i
	}
	return &Frame{
		Board:     board,
		Timestamp: at,
		Elapsed:   elapsed,
		Samples:   samples,
		Channels:  len(names),
		names:     names,
		data:      data,
		raw:       raw,
		index:     idx,
	}
}

// Names returns the channel names in column order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// IndexOf resolves a channel name, case-insensitively.
func (f *Frame) IndexOf(name string) (int, bool) {
	i, ok := f.index[strings.ToLower(name)]
	return i, ok
}

// At returns the processed value of (sample, channel).
func (f *Frame) At(sample, channel int) float32 {
	return f.data[sample*f.Channels+channel]
}

// RawAt returns the filtered, pre-regression value of (sample, channel).
func (f *Frame) RawAt(sample, channel int) float32 {
	return f.raw[sample*f.Channels+channel]
}

// Value returns the processed value of sample for the named channel.
func (f *Frame) Value(sample int, name string) (float32, error) {
	ch, err := f.lookup(name)
	if err != nil {
		return 0, err
	}
	if sample < 0 || sample >= f.Samples {
		return 0, fmt.Errorf("acquire: sample %d out of range [0,%d)", sample, f.Samples)
	}
	return f.At(sample, ch), nil
}

// RawValue returns the pre-regression value of sample for the named channel.
func (f *Frame) RawValue(sample int, name string) (float32, error) {
	ch, err := f.lookup(name)
	if err != nil {
		return 0, err
	}
	if sample < 0 || sample >= f.Samples {
		return 0, fmt.Errorf("acquire: sample %d out of range [0,%d)", sample, f.Samples)
	}
	return f.RawAt(sample, ch), nil
}

// ChannelData copies one channel's column.
func (f *Frame) ChannelData(channel int) (Series, error) {
	if channel < 0 || channel >= f.Channels {
		return Series{}, fmt.Errorf("acquire: channel %d out of range [0,%d)", channel, f.Channels)
	}
	s := Series{
		Data: make([]float32, f.Samples),
		Raw:  make([]float32, f.Samples),
	}
	for i := 0; i < f.Samples; i++ {
		s.Data[i] = f.At(i, channel)
		s.Raw[i] = f.RawAt(i, channel)
	}
	return s, nil
}

// ChannelDataByName copies the named channel's column.
func (f *Frame) ChannelDataByName(name string) (Series, error) {
	ch, err := f.lookup(name)
	if err != nil {
		return Series{}, err
	}
	return f.ChannelData(ch)
}

// Matrix returns copies of the processed and raw matrices.
func (f *Frame) Matrix() (data, raw []float32) {
	data = make([]float32, len(f.data))
	raw = make([]float32, len(f.raw))
	copy(data, f.data)
	copy(raw, f.raw)
	return data, raw
}

// Last returns the processed value of the final sample for each channel,
// keyed by name. Publishers use it to summarize a frame.
func (f *Frame) Last() map[string]float32 {
	out := make(map[string]float32, f.Channels)
	if f.Samples == 0 {
		return out
	}
	for c, n := range f.names {
		out[n] = f.At(f.Samples-1, c)
	}
	return out
}

func (f *Frame) lookup(name string) (int, error) {
	i, ok := f.IndexOf(name)
	if !ok {
		return 0, fmt.Errorf("acquire: channel name %q not found", name)
	}
	return i, nil
}

// DigitalFrame is the outcome of one digital input pass. It is shared with
// every subscriber and never changes after construction; accessors return
// copies.
type DigitalFrame struct {
	Board     int
	Timestamp time.Time

	states  map[string]bool
	changed []string
}

// NewDigitalFrame builds a frame from copies of states and changed.
func NewDigitalFrame(board int, at time.Time, states map[string]bool, changed []string) *DigitalFrame {
	f := &DigitalFrame{
		Board:     board,
		Timestamp: at,
		states:    make(map[string]bool, len(states)),
	}
	for k, v := range states {
		f.states[k] = v
	}
	if len(changed) > 0 {
		f.changed = append([]string(nil), changed...)
	}
	return f
}

// State returns the observed state of the named input.
func (d *DigitalFrame) State(name string) (bool, bool) {
	v, ok := d.states[name]
	return v, ok
}

// States returns every observed input state.
func (d *DigitalFrame) States() map[string]bool {
	out := make(map[string]bool, len(d.states))
	for k, v := range d.states {
		out[k] = v
	}
	return out
}

// Changed returns the inputs whose state differs from the previous pass.
func (d *DigitalFrame) Changed() []string {
	return append([]string(nil), d.changed...)
}
