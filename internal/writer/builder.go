// internal/writer/builder.go
package writer

import (
	"fmt"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/config"
	wmodbus "github.com/tamzrod/daq-orchestrator/internal/writer/modbus"
)

// BuildPlan converts the mirror section and board slots into a Plan.
// Assumes config has already passed validation. ok is false when the
// mirror is disabled or no board claims a slot.
func BuildPlan(cfg *config.Config) (Plan, bool) {
	m := cfg.StatusMirror
	if m.Endpoint == "" {
		return Plan{}, false
	}

	plan := Plan{
		Endpoint: m.Endpoint,
		Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
		Interval: time.Duration(m.IntervalMs) * time.Millisecond,
	}

	for _, b := range cfg.Boards {
		if b.StatusSlot == nil {
			continue
		}
		name := b.Name
		if name == "" {
			name = fmt.Sprintf("board-%d", b.ID)
		}
		plan.Boards = append(plan.Boards, StatusPlan{
			Board:    b.ID,
			UnitID:   m.UnitID,
			BaseSlot: *b.StatusSlot,
			Name:     name,
		})
	}

	return plan, len(plan.Boards) > 0
}

// BuildEndpointClient creates the client for the mirror endpoint.
func BuildEndpointClient(plan Plan) (*wmodbus.EndpointClient, error) {
	return wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  plan.Timeout,
	})
}
