// internal/writer/types.go
package writer

import (
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/status"
)

// StatusPlan places one board's status block on the mirror endpoint.
type StatusPlan struct {
	Board    int
	UnitID   uint8
	BaseSlot uint16
	Name     string
}

// Plan is the fully-built mirror plan.
type Plan struct {
	Endpoint string
	Timeout  time.Duration
	Interval time.Duration
	Boards   []StatusPlan
}

// Source supplies board snapshots. status.Tracker implements it.
type Source interface {
	Snapshot(board int, now time.Time) (status.Snapshot, bool)
}

// endpointClient is the register-write surface of one mirror endpoint.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}
