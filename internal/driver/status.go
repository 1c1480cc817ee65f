// internal/driver/status.go
package driver

import (
	"errors"
	"fmt"
)

// Status is a driver result code. Zero means success.
type Status uint16

// Codes referenced directly by the core and the bundled drivers.
const (
	StatusOK               Status = 0
	StatusOpenDriver       Status = 1
	StatusDriverNotOpen    Status = 3
	StatusBoardNumber      Status = 5
	StatusNoBoard          Status = 6
	StatusInvalidPort      Status = 11
	StatusNotSupported     Status = 13
	StatusInvalidChannel   Status = 14
	StatusInvalidValue     Status = 15
	StatusInvalidMode      Status = 16
	StatusAIStatusTimeout  Status = 17
	StatusTimeout          Status = 18
	StatusFIFOOverflow     Status = 33
	StatusInvalidDataCount Status = 56
	StatusCardIO           Status = 58
)

var statusMessages = map[Status]string{
	0:  "Correct",
	1:  "Open driver error",
	2:  "Plug & Play error",
	3:  "The driver was not open",
	4:  "Receive driver version error",
	5:  "Board number error",
	6:  "No board found",
	7:  "Board Mapping error",
	8:  "Digital input/output mode setting error",
	9:  "Invalid address",
	10: "Invalid size",
	11: "Invalid port number",
	12: "This board model is not supported",
	13: "This function is not supported",
	14: "Invalid channel number",
	15: "Invalid value",
	16: "Invalid mode",
	17: "Timeout while receiving analog input status",
	18: "Timeout error",
	19: "Configuration code table index not found",
	20: "ADC controller timeout",
	21: "PCI table index not found",
	22: "Invalid setting value",
	23: "Memory allocation error",
	24: "Interrupt event installation error",
	25: "Interrupt IRQ installation error",
	26: "Interrupt IRQ removal error",
	27: "Error clearing interrupt count",
	28: "System buffer retrieval error",
	29: "Event creation error",
	30: "Resolution not supported",
	31: "Thread creation error",
	32: "Thread timeout error",
	33: "FIFO overflow error",
	34: "FIFO timeout error",
	35: "Get interrupt installation status",
	36: "Get system buffer status",
	37: "Set buffer count error",
	38: "Set buffer info error",
	39: "Card ID not found",
	40: "Event thread error",
	41: "Auto-create event error",
	42: "Register thread error",
	43: "Search event error",
	44: "FIFO reset error",
	45: "Invalid EEPROM block",
	46: "Invalid EEPROM address",
	47: "Acquire spin lock error",
	48: "Release spin lock error",
	49: "Analog input setting error",
	50: "Invalid channel number",
	51: "Invalid model number",
	52: "Map address setting error",
	53: "Map address releasing error",
	54: "Invalid memory offset",
	55: "Shared memory open failed",
	56: "Invalid data count",
	57: "EEPROM writing error",
	58: "CardIO error",
	59: "MemoryIO error",
	60: "Set scan channel error",
	61: "Set scan config error",
	62: "Get MMIO map status",
}

// Message returns the human-readable text for s.
func (s Status) Message() string {
	if m, ok := statusMessages[s]; ok {
		return m
	}
	return "Unknown Error"
}

// Error lets a non-zero Status travel as an error.
func (s Status) Error() string {
	return fmt.Sprintf("driver status %d: %s", uint16(s), s.Message())
}

// Code returns the raw code.
func (s Status) Code() uint16 { return uint16(s) }

// Err returns nil for StatusOK and s otherwise.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return s
}

// OpError is a failed driver operation on a board.
type OpError struct {
	Op     string
	Board  int
	Status Status
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("[%s] Error code %d: %s", e.Op, uint16(e.Status), e.Status.Message())
}

func (e *OpError) Unwrap() error { return e.Err }

// Code returns the driver status code.
func (e *OpError) Code() uint16 { return uint16(e.Status) }

// Wrap turns a driver failure into an *OpError. Non-Status errors keep their
// cause and are reported as StatusCardIO.
func Wrap(op string, board int, err error) error {
	if err == nil {
		return nil
	}
	var already *OpError
	if errors.As(err, &already) {
		return err
	}
	st := StatusCardIO
	var s Status
	if errors.As(err, &s) {
		st = s
	}
	return &OpError{Op: op, Board: board, Status: st, Err: err}
}

// CodeOf extracts a status code from err. Nil maps to 0; errors without a
// code map to StatusCardIO.
func CodeOf(err error) uint16 {
	if err == nil {
		return 0
	}
	var op *OpError
	if errors.As(err, &op) {
		return op.Code()
	}
	var s Status
	if errors.As(err, &s) {
		return s.Code()
	}
	return uint16(StatusCardIO)
}
