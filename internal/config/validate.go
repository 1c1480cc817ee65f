// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validateDriver(&cfg.Driver); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// LOOP
	// ------------------------------------------------------------

	l := cfg.Loop
	if l.MaxRetries < 0 {
		return fmt.Errorf("loop: max_retries must be >= 0 (0 = unlimited)")
	}
	if l.RetryDelayMs < 0 || l.CycleDelayMs < 0 || l.ShutdownTimeoutMs < 0 {
		return fmt.Errorf("loop: delays must be >= 0")
	}

	// ------------------------------------------------------------
	// BOARDS
	// ------------------------------------------------------------

	seen := make(map[int]struct{})
	// key = status slot
	slotOwner := make(map[uint16]int)

	for _, b := range cfg.Boards {
		if !driver.ValidBoard(b.ID) {
			return fmt.Errorf("board %d: id must be in [0,%d)", b.ID, driver.MaxBoards)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("board %d: defined more than once", b.ID)
		}
		seen[b.ID] = struct{}{}

		if err := validateAnalog(b.ID, b.Analog); err != nil {
			return err
		}
		if err := validateDigital(b.ID, b.Digital); err != nil {
			return err
		}

		for i := 0; i < len(b.Name); i++ {
			if b.Name[i] > 0x7F {
				return fmt.Errorf("board %d: name must contain ASCII characters only", b.ID)
			}
		}

		// status mirror is opt-in
		if b.StatusSlot == nil {
			continue
		}
		if cfg.StatusMirror.Endpoint == "" {
			return fmt.Errorf("board %d: status_slot is set but status_mirror.endpoint is empty", b.ID)
		}
		if prev, exists := slotOwner[*b.StatusSlot]; exists {
			return fmt.Errorf(
				"status_slot collision: slot=%d used by boards %d and %d",
				*b.StatusSlot,
				prev,
				b.ID,
			)
		}
		slotOwner[*b.StatusSlot] = b.ID
	}

	// ------------------------------------------------------------
	// OUTER SURFACES
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled && strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return fmt.Errorf("mqtt: broker is required when enabled")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2")
	}
	if cfg.MQTT.FrameRate < 0 {
		return fmt.Errorf("mqtt: frame_rate must be >= 0")
	}
	if cfg.StatusMirror.IntervalMs < 0 || cfg.StatusMirror.TimeoutMs < 0 {
		return fmt.Errorf("status_mirror: timings must be >= 0")
	}
	if cfg.Cache.TTLMs < 0 {
		return fmt.Errorf("cache: ttl_ms must be >= 0")
	}

	return nil
}

func validateDriver(d *DriverConfig) error {
	switch d.Kind {
	case "", DriverSim:
		if len(d.Sim.Boards) > driver.MaxBoards {
			return fmt.Errorf("driver sim: at most %d boards", driver.MaxBoards)
		}
	case DriverModbus:
		m := d.Modbus
		if m.Endpoint == "" {
			return fmt.Errorf("driver modbus: endpoint is required")
		}
		if len(m.Boards) > driver.MaxBoards {
			return fmt.Errorf("driver modbus: at most %d boards", driver.MaxBoards)
		}
		if m.PortBits < 0 || m.PortBits > 32 {
			return fmt.Errorf("driver modbus: port_bits must be in [1,32]")
		}
		for i, b := range m.Boards {
			if b.AI < 0 || b.DI < 0 || b.DO < 0 || b.DIO < 0 {
				return fmt.Errorf("driver modbus: board %d: channel counts must be >= 0", i)
			}
		}
	default:
		return fmt.Errorf("driver: unknown kind %q (want sim or modbus)", d.Kind)
	}
	return nil
}

func validateAnalog(board int, a AnalogConfig) error {
	if a.SamplingRate < 0 {
		return fmt.Errorf("board %d: sampling_rate must be >= 0", board)
	}

	names := make(map[string]struct{})
	indices := make(map[uint16]string)
	for _, ch := range a.Channels {
		if strings.TrimSpace(ch.Name) == "" {
			return fmt.Errorf("board %d: analog channel at index %d has no name", board, ch.Index)
		}
		key := strings.ToLower(ch.Name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("board %d: analog channel %q defined more than once", board, ch.Name)
		}
		names[key] = struct{}{}

		if prev, dup := indices[ch.Index]; dup {
			return fmt.Errorf("board %d: analog index %d used by %q and %q", board, ch.Index, prev, ch.Name)
		}
		indices[ch.Index] = ch.Name

		if _, err := driver.ParseVoltageRange(ch.Range); err != nil {
			return fmt.Errorf("board %d: analog channel %q: %w", board, ch.Name, err)
		}
		if ch.Window < 0 {
			return fmt.Errorf("board %d: analog channel %q: filter_window must be >= 0", board, ch.Name)
		}
	}
	return nil
}

func validateDigital(board int, d DigitalConfig) error {
	check := func(direction, name string, bit uint16, names map[string]struct{}) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("board %d: digital %s has no name", board, direction)
		}
		if bit >= 32 {
			return fmt.Errorf("board %d: digital %s %q: bit %d out of range [0,32)", board, direction, name, bit)
		}
		if _, dup := names[name]; dup {
			return fmt.Errorf("board %d: digital %s %q defined more than once", board, direction, name)
		}
		names[name] = struct{}{}
		return nil
	}

	inputs := make(map[string]struct{})
	for _, in := range d.Inputs {
		if err := check("input", in.Name, in.Bit, inputs); err != nil {
			return err
		}
	}

	// key = port|bit
	owners := make(map[[2]uint16]string)
	outputs := make(map[string]struct{})
	for _, out := range d.Outputs {
		if err := check("output", out.Name, out.Bit, outputs); err != nil {
			return err
		}
		key := [2]uint16{out.Port, out.Bit}
		if prev, exists := owners[key]; exists {
			return fmt.Errorf(
				"board %d: digital outputs %q and %q share port=%d bit=%d",
				board,
				prev,
				out.Name,
				out.Port,
				out.Bit,
			)
		}
		owners[key] = out.Name
	}
	return nil
}
