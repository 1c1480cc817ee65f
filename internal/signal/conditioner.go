// internal/signal/conditioner.go
package signal

// Conditioner is one channel's processing chain:
// processed = Fit(filter(raw)) - Zero.
//
// Coeffs and Zero are treated as immutable; to change them build a new
// Conditioner with With* so readers holding the old one stay consistent.
// The filter carries state between cycles and is shared by the copies.
type Conditioner struct {
	filter *MovingAverage
	coeffs []float64
	zero   float32
}

// NewConditioner builds a chain. coeffs is copied.
func NewConditioner(window int, coeffs []float64, zero float32) *Conditioner {
	return &Conditioner{
		filter: NewMovingAverage(window),
		coeffs: cloneCoeffs(coeffs),
		zero:   zero,
	}
}

// Apply runs one raw sample through the chain and returns the processed value
// and the filtered, pre-fit value.
func (c *Conditioner) Apply(raw float32) (processed, filtered float32) {
	filtered = c.filter.Apply(raw)
	processed = Fit(c.coeffs, filtered) - c.zero
	return processed, filtered
}

// WithZero returns a copy with a new zero offset. Filter state is kept.
func (c *Conditioner) WithZero(zero float32) *Conditioner {
	cp := *c
	cp.zero = zero
	return &cp
}

// WithCoeffs returns a copy with new regression coefficients. Filter state is kept.
func (c *Conditioner) WithCoeffs(coeffs []float64) *Conditioner {
	cp := *c
	cp.coeffs = cloneCoeffs(coeffs)
	return &cp
}

// WithWindow returns a copy with a fresh filter of the given window.
func (c *Conditioner) WithWindow(window int) *Conditioner {
	cp := *c
	cp.filter = NewMovingAverage(window)
	return &cp
}

func (c *Conditioner) Window() int       { return c.filter.Window() }
func (c *Conditioner) Zero() float32     { return c.zero }
func (c *Conditioner) Coeffs() []float64 { return cloneCoeffs(c.coeffs) }

func cloneCoeffs(in []float64) []float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
