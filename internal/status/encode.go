// internal/status/encode.go
package status

// Encode converts a Snapshot into the live part of a board status block.
// Layout is protocol-locked. Name slots are left zero; see EncodeName.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerBoard)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	if s.Running {
		regs[SlotRunning] = 1
	}
	regs[SlotCyclesHigh] = uint16(s.Cycles >> 16)
	regs[SlotCyclesLow] = uint16(s.Cycles)
	regs[SlotConsecutiveErrors] = s.ConsecutiveErrors

	return regs
}

// EncodeName packs up to 16 ASCII characters into 8 registers, two bytes per
// register, big-endian. Non-printable bytes become '?'.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotNameSlots)

	b := []byte(name)
	if len(b) > NameMaxChars {
		b = b[:NameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < NameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}

// EncodeFull is Encode plus the name slots.
func EncodeFull(s Snapshot, name string) []uint16 {
	regs := Encode(s)
	copy(regs[SlotNameStart:SlotNameEnd+1], EncodeName(name))
	return regs
}
