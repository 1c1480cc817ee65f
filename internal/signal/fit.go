// internal/signal/fit.go
package signal

// Fit evaluates coeffs[0] + coeffs[1]*x + coeffs[2]*x^2 + ... with Horner's
// method. Empty coefficients return x unchanged.
func Fit(coeffs []float64, x float32) float32 {
	n := len(coeffs)
	if n == 0 {
		return x
	}
	xd := float64(x)
	result := coeffs[n-1]
	for i := n - 2; i >= 0; i-- {
		result = result*xd + coeffs[i]
	}
	return float32(result)
}
