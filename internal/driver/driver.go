// internal/driver/driver.go

// Package driver defines the hardware transport contract the acquisition core
// talks to. Implementations live in subpackages (sim, modbus).
package driver

// Driver is the opaque board transport.
// All calls are blocking and synchronous. A failure is reported as a Status
// (non-zero) or any other error; callers wrap it with Wrap.
type Driver interface {
	Init() (boards int, err error)
	Close() error

	BoardInfo(index int) (BoardInfo, error)

	ConfigureAnalog(board int, mode uint16, bufferSize uint32, cardType uint16, flags uint16) error
	StartAnalogScan(board int, channels, configs []uint16, rate float32, samplesPerChannel uint32) error
	AnalogBuffer(board int, out []float32) error
	StopAnalogScan(board int) error

	ReadDigitalInput(board int, port uint16) (uint32, error)
	WriteDigitalOutput(board int, port uint16, bits uint32) error
	WriteDigitalOutputBit(board int, port, bit uint16, value bool) error
}

// BoardInfo describes one board's capabilities as reported by the driver.
type BoardInfo struct {
	Index      int
	Model      string
	AIChannels int
	AOChannels int
	DIPorts    int
	DOPorts    int
	DIOPorts   int
}

// HasAnalog reports whether the board has analog inputs.
func (b BoardInfo) HasAnalog() bool { return b.AIChannels > 0 }

// HasDigital reports whether the board has any digital port.
func (b BoardInfo) HasDigital() bool {
	return b.DIPorts > 0 || b.DOPorts > 0 || b.DIOPorts > 0
}

// DigitalCount is the number of input-capable digital ports.
func (b BoardInfo) DigitalCount() int { return b.DIPorts + b.DIOPorts }

// MaxBoards is the highest board number + 1 the driver addresses.
const MaxBoards = 16

// ValidBoard reports whether board is an addressable board number.
func ValidBoard(board int) bool {
	return board >= 0 && board < MaxBoards
}

// Analog configuration constants passed to ConfigureAnalog.
const (
	AnalogModeScan      uint16 = 2
	AnalogFIFOSize      uint32 = 2048
	CardTypeNormal      uint16 = 0
	CardTypeHighGain    uint16 = 1
	AnalogConfigNoFlags uint16 = 0
)
