// internal/status/snapshot.go
package status

// Snapshot represents exactly what the mirror is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Board             int
	Health            uint16
	LastErrorCode     uint16
	SecondsInError    uint16
	Running           bool
	Cycles            uint32
	ConsecutiveErrors uint16
}

// HealthName returns a readable health label.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	}
	return "unknown"
}
