// internal/events/bus.go
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamzrod/daq-orchestrator/internal/errors"
)

var (
	ErrBusClosed          = errors.Newf("event bus closed").Component("events").Category(errors.CategoryState).Build()
	ErrSubscriberExists   = errors.Newf("subscriber already exists").Component("events").Category(errors.CategoryConflict).Build()
	ErrSubscriberNotFound = errors.Newf("subscriber not found").Component("events").Category(errors.CategoryNotFound).Build()
	ErrNilChannel         = errors.Newf("subscriber channel is nil").Component("events").Category(errors.CategoryValidation).Build()
)

// DefaultControlWait bounds how long Publish waits on a full subscriber for
// non-frame events before dropping them.
const DefaultControlWait = 250 * time.Millisecond

// SubscriberStats counts deliveries for one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	id      string
	ch      chan<- Event
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Bus fans events out to subscriber channels.
// Frames are dropped when a subscriber is full; other events wait up to
// ControlWait first. Subscribers own their channels; the bus never closes them.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	controlWait time.Duration
	published   atomic.Uint64
	dropped     atomic.Uint64

	// OnDrop, when set, is called for every dropped event.
	OnDrop func(id string, e Event)
}

// NewBus returns an open bus. controlWait <= 0 uses DefaultControlWait.
func NewBus(controlWait time.Duration) *Bus {
	if controlWait <= 0 {
		controlWait = DefaultControlWait
	}
	return &Bus{
		subscribers: make(map[string]*subscriber),
		controlWait: controlWait,
	}
}

// Subscribe registers ch under id.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	b.subscribers[id] = &subscriber{id: id, ch: ch}
	return nil
}

// Unsubscribe removes a subscriber. Its channel is left open.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	return nil
}

// Publish implements Sink.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	frame := IsFrame(e)
	for _, s := range b.subscribers {
		if b.deliver(s, e, frame) {
			s.sent.Add(1)
			continue
		}
		s.dropped.Add(1)
		b.dropped.Add(1)
		if b.OnDrop != nil {
			b.OnDrop(s.id, e)
		}
	}
}

func (b *Bus) deliver(s *subscriber, e Event, frame bool) bool {
	select {
	case s.ch <- e:
		return true
	default:
	}
	if frame {
		return false
	}

	t := time.NewTimer(b.controlWait)
	defer t.Stop()
	select {
	case s.ch <- e:
		return true
	case <-t.C:
		return false
	}
}

// Stats returns the counters of one subscriber.
func (b *Bus) Stats(id string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, exists := b.subscribers[id]
	if !exists {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}, nil
}

// Published returns the number of events accepted by Publish.
func (b *Bus) Published() uint64 { return b.published.Load() }

// Dropped returns the number of deliveries dropped across all subscribers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close stops delivery and forgets every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.subscribers = nil
}
