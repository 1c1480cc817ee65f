// internal/writer/writer_test.go
package writer

import (
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/config"
	"github.com/tamzrod/daq-orchestrator/internal/events"
	"github.com/tamzrod/daq-orchestrator/internal/status"
)

// ---- fake endpoint client ----

type fakeEndpointClient struct {
	writes       []writeCall
	lastRegs     []uint16
	lastRegsAddr uint16
	fail         bool
}

type writeCall struct {
	unitID uint8
	addr   uint16
	qty    int
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.writes = append(f.writes, writeCall{
		unitID: unitID,
		addr:   addr,
		qty:    len(regs),
	})
	f.lastRegs = append([]uint16(nil), regs...)
	f.lastRegsAddr = addr
	return nil
}

// ---- tests ----

func slot(v uint16) *uint16 { return &v }

func TestBuildPlan(t *testing.T) {
	cfg := &config.Config{
		StatusMirror: config.StatusMirrorConfig{
			Endpoint:   "plc:502",
			UnitID:     9,
			TimeoutMs:  500,
			IntervalMs: 250,
		},
		Boards: []config.BoardConfig{
			{ID: 0, Name: "furnace", StatusSlot: slot(1)},
			{ID: 1},
			{ID: 2, StatusSlot: slot(0)},
		},
	}

	plan, ok := BuildPlan(cfg)
	if !ok {
		t.Fatalf("plan should be enabled")
	}
	if plan.Interval != 250*time.Millisecond || plan.Timeout != 500*time.Millisecond {
		t.Fatalf("unexpected timings: %+v", plan)
	}
	if len(plan.Boards) != 2 {
		t.Fatalf("expected 2 board plans, got %d", len(plan.Boards))
	}
	if plan.Boards[0].Name != "furnace" || plan.Boards[0].BaseSlot != 1 || plan.Boards[0].UnitID != 9 {
		t.Fatalf("unexpected board 0 plan: %+v", plan.Boards[0])
	}
	if plan.Boards[1].Name != "board-2" {
		t.Fatalf("expected fallback name, got %q", plan.Boards[1].Name)
	}

	cfg.StatusMirror.Endpoint = ""
	if _, ok := BuildPlan(cfg); ok {
		t.Fatalf("plan should be disabled without endpoint")
	}
}

func TestMirror_WriteOnceFromTracker(t *testing.T) {
	cli := &fakeEndpointClient{}
	tr := status.NewTracker(0)
	now := time.Now()
	tr.Publish(events.Error{Board: 0, Code: 58, At: now})

	plan := Plan{
		Endpoint: "plc:502",
		Boards: []StatusPlan{
			{Board: 0, UnitID: 1, BaseSlot: 0, Name: "a"},
			{Board: 1, UnitID: 1, BaseSlot: 1, Name: "b"},
		},
	}
	m := NewMirror(plan, tr, cli, nil)

	if err := m.WriteOnce(now); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(cli.writes) != 2 {
		t.Fatalf("expected one full block per board, got %d", len(cli.writes))
	}
	if cli.writes[1].addr != status.SlotsPerBoard {
		t.Fatalf("board 1 block at wrong address: %d", cli.writes[1].addr)
	}
	// board 1 is unknown to the tracker
	if cli.lastRegs[status.SlotHealthCode] != status.HealthUnknown {
		t.Fatalf("unknown board should report unknown health")
	}

	cli.fail = true
	if err := m.WriteOnce(now); err != nil {
		t.Fatalf("unchanged snapshots should not write: %v", err)
	}

	tr.CycleCompleted(0, time.Millisecond)
	if err := m.WriteOnce(now); err == nil {
		t.Fatalf("expected write failure")
	}
}
