// internal/status/constants.go
package status

// Board status block layout constants.
// These values define the mirror protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerBoard is the fixed number of holding registers per board.
const SlotsPerBoard = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the board health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last driver status code.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the board has been in error.
const SlotSecondsInError = 2

// SlotRunning is 1 while the board loop runs.
const SlotRunning = 3

// SlotCyclesHigh and SlotCyclesLow hold the completed cycle count, big-endian.
const (
	SlotCyclesHigh = 4
	SlotCyclesLow  = 5
)

// SlotConsecutiveErrors holds the current failure streak.
const SlotConsecutiveErrors = 6

// ---- RESERVED RANGE ----

// Slots 7-10 are reserved.
const (
	SlotReservedStart = 7
	SlotReservedEnd   = 10
)

// ---- BOARD NAME ----

// SlotNameStart is the first slot used for the board name.
// The name always sits at the END of the status block.
const SlotNameStart = 11

// SlotNameSlots is the number of slots reserved for the board name.
const SlotNameSlots = 8

// SlotNameEnd is the last slot used for the board name (inclusive).
const SlotNameEnd = SlotNameStart + SlotNameSlots - 1

// ---- LIMITS ----

// NameMaxChars is the maximum number of ASCII characters stored for the name.
const NameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a board completing cycles.
const HealthOK uint16 = 1

// HealthError represents a board whose last cycle failed.
const HealthError uint16 = 2

// HealthStale represents a running board that has not completed a cycle recently.
const HealthStale uint16 = 3

// HealthDisabled represents a board excluded by configuration.
const HealthDisabled uint16 = 4
