// internal/cache/frames.go
package cache

import (
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/acquire"
	"github.com/tamzrod/daq-orchestrator/internal/events"
)

// Frames caches the latest analog and digital frame of every board.
type Frames struct {
	Analog  *Latest[acquire.Frame]
	Digital *Latest[acquire.DigitalFrame]
}

// NewFrames returns empty frame caches with a shared ttl.
func NewFrames(ttl time.Duration) *Frames {
	return &Frames{
		Analog:  New[acquire.Frame](ttl),
		Digital: New[acquire.DigitalFrame](ttl),
	}
}

// Publish implements events.Sink.
func (f *Frames) Publish(e events.Event) {
	switch ev := e.(type) {
	case events.AnalogFrame:
		f.Analog.Update(ev.Board, ev.Frame)
	case events.DigitalFrame:
		f.Digital.Update(ev.Board, ev.Frame)
	}
}
