// internal/signal/filter.go

// Package signal holds the per-sample conditioning applied to analog input:
// moving-average filter, polynomial fit, zero offset.
package signal

// MovingAverage is a simple moving average over a fixed circular window.
// Not safe for concurrent use; one channel's samples must be fed in order.
type MovingAverage struct {
	buf   []float64
	sum   float64
	ptr   int
	count int
}

// NewMovingAverage returns a filter over window samples.
// A window <= 1 yields a pass-through filter.
func NewMovingAverage(window int) *MovingAverage {
	if window <= 1 {
		return &MovingAverage{}
	}
	return &MovingAverage{buf: make([]float64, window)}
}

// Window returns the configured window size (0 for pass-through).
func (m *MovingAverage) Window() int {
	if m == nil {
		return 0
	}
	return len(m.buf)
}

// Apply feeds v and returns the mean of the values currently in the window.
func (m *MovingAverage) Apply(v float32) float32 {
	if m == nil || len(m.buf) == 0 {
		return v
	}
	x := float64(v)
	m.sum -= m.buf[m.ptr]
	m.sum += x
	m.buf[m.ptr] = x
	m.ptr = (m.ptr + 1) % len(m.buf)
	if m.count < len(m.buf) {
		m.count++
	}
	return float32(m.sum / float64(m.count))
}

// Reset clears the window.
func (m *MovingAverage) Reset() {
	if m == nil {
		return
	}
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.sum, m.ptr, m.count = 0, 0, 0
}
