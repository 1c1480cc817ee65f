// internal/publish/payload.go
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/events"
)

// Topic returns <prefix>/board/<id>/<kind>, or <prefix>/system/<kind> for
// driver-wide events.
func Topic(prefix string, board int, kind events.Kind) string {
	if board == events.System {
		return fmt.Sprintf("%s/system/%s", prefix, kind)
	}
	return fmt.Sprintf("%s/board/%d/%s", prefix, board, kind)
}

type analogPayload struct {
	Board     int                `json:"board"`
	Timestamp time.Time          `json:"timestamp"`
	ElapsedMs float64            `json:"elapsed_ms"`
	Samples   int                `json:"samples"`
	Last      map[string]float32 `json:"last"`
	Mean      map[string]float32 `json:"mean"`
}

type digitalPayload struct {
	Board     int             `json:"board"`
	Timestamp time.Time       `json:"timestamp"`
	States    map[string]bool `json:"states"`
	Changed   []string        `json:"changed,omitempty"`
}

type errorPayload struct {
	Board     int       `json:"board"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Code      uint16    `json:"code"`
	Message   string    `json:"message"`
	Terminal  bool      `json:"terminal"`
}

type lifecyclePayload struct {
	Board     int       `json:"board"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
}

type statusPayload struct {
	Board     int       `json:"board"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type discoveredPayload struct {
	Board     int       `json:"board"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	AI        int       `json:"ai"`
	AO        int       `json:"ao"`
	DI        int       `json:"di"`
	DO        int       `json:"do"`
	DIO       int       `json:"dio"`
}

// Encode renders e as JSON. ok is false for events with nothing to publish.
func Encode(e events.Event) (payload []byte, ok bool, err error) {
	var v any
	switch ev := e.(type) {
	case events.AnalogFrame:
		if ev.Frame == nil {
			return nil, false, nil
		}
		p := analogPayload{
			Board:     ev.Board,
			Timestamp: ev.At,
			ElapsedMs: float64(ev.Elapsed) / float64(time.Millisecond),
			Samples:   ev.Frame.Samples,
			Last:      ev.Frame.Last(),
			Mean:      make(map[string]float32, ev.Frame.Channels),
		}
		for c, name := range ev.Frame.Names() {
			s, err := ev.Frame.ChannelData(c)
			if err != nil {
				return nil, false, err
			}
			p.Mean[name] = mean(s.Data)
		}
		v = p
	case events.DigitalFrame:
		if ev.Frame == nil {
			return nil, false, nil
		}
		v = digitalPayload{
			Board:     ev.Board,
			Timestamp: ev.At,
			States:    ev.Frame.States(),
			Changed:   ev.Frame.Changed(),
		}
	case events.Error:
		v = errorPayload{
			Board:     ev.Board,
			Timestamp: ev.At,
			Source:    ev.Source,
			Code:      ev.Code,
			Message:   ev.Message,
			Terminal:  ev.Terminal,
		}
	case events.Lifecycle:
		v = lifecyclePayload{Board: ev.Board, Timestamp: ev.At, State: ev.State.String()}
	case events.Status:
		v = statusPayload{Board: ev.Board, Timestamp: ev.At, Message: ev.Message}
	case events.BoardDiscovered:
		v = discoveredPayload{
			Board:     ev.Board,
			Timestamp: ev.At,
			Model:     ev.Info.Model,
			AI:        ev.Info.AIChannels,
			AO:        ev.Info.AOChannels,
			DI:        ev.Info.DIPorts,
			DO:        ev.Info.DOPorts,
			DIO:       ev.Info.DIOPorts,
		}
	default:
		return nil, false, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func mean(xs []float32) float32 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	return float32(sum / float64(len(xs)))
}
