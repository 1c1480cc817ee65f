// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/daq-orchestrator/internal/status"
)

// StatusWriter is the delivery-only contract for board status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// boardStatusWriter writes one board's block.
type boardStatusWriter struct {
	plan StatusPlan
	cli  endpointClient

	needFull bool
	last     []uint16
}

// NewBoardStatusWriter builds the writer for one board block.
func NewBoardStatusWriter(plan StatusPlan, cli endpointClient) *boardStatusWriter {
	return &boardStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
	}
}

// liveSlots are the slots rewritten incrementally. Everything else in the
// block changes only on a full re-assert.
var liveSlots = [...]struct {
	slot int
	name string
}{
	{status.SlotHealthCode, "health"},
	{status.SlotLastErrorCode, "last_error"},
	{status.SlotSecondsInError, "seconds_in_error"},
	{status.SlotRunning, "running"},
	{status.SlotCyclesHigh, "cycles_hi"},
	{status.SlotCyclesLow, "cycles_lo"},
	{status.SlotConsecutiveErrors, "consecutive_errors"},
}

// WriteStatus delivers a board status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *boardStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for board %d", sw.plan.Board)
	}

	baseAddr := sw.baseAddr()
	unitID := sw.plan.UnitID

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		regs := status.EncodeFull(s, sw.plan.Name)

		if err := sw.cli.WriteRegisters(unitID, baseAddr, regs); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: board %d full block write failed: %w", sw.plan.Board, err)
		}

		sw.needFull = false
		sw.last = regs
		return nil
	}

	regs := status.Encode(s)
	var errs []string

	for _, ls := range liveSlots {
		if sw.last[ls.slot] == regs[ls.slot] {
			continue
		}
		if err := sw.cli.WriteRegisters(
			unitID,
			baseAddr+uint16(ls.slot),
			[]uint16{regs[ls.slot]},
		); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", ls.slot, ls.name, err))
			continue
		}
		sw.last[ls.slot] = regs[ls.slot]
	}

	if len(errs) > 0 {
		// partial failure: re-assert on next success
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *boardStatusWriter) baseAddr() uint16 {
	// Each board owns a fixed SlotsPerBoard block.
	return sw.plan.BaseSlot * status.SlotsPerBoard
}
