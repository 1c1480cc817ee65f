// internal/events/bus_test.go
package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrder(t *testing.T) {
	t.Parallel()

	b := NewBus(0)
	ch := make(chan Event, 16)
	require.NoError(t, b.Subscribe("a", ch))

	for i := 0; i < 5; i++ {
		b.Publish(Status{Board: 1, Message: string(rune('0' + i))})
	}

	for i := 0; i < 5; i++ {
		e := <-ch
		assert.Equal(t, string(rune('0'+i)), e.(Status).Message)
	}
	st, err := b.Stats("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), st.Sent)
	assert.Equal(t, uint64(5), b.Published())
}

func TestBus_FramesDropWhenFull(t *testing.T) {
	t.Parallel()

	b := NewBus(time.Millisecond)
	var dropped []string
	var mu sync.Mutex
	b.OnDrop = func(id string, _ Event) {
		mu.Lock()
		dropped = append(dropped, id)
		mu.Unlock()
	}

	ch := make(chan Event, 1)
	require.NoError(t, b.Subscribe("slow", ch))

	b.Publish(AnalogFrame{Board: 0})
	b.Publish(AnalogFrame{Board: 0})
	b.Publish(DigitalFrame{Board: 0})

	st, err := b.Stats("slow")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Sent)
	assert.Equal(t, uint64(2), st.Dropped)
	assert.Equal(t, uint64(2), b.Dropped())
	assert.Equal(t, []string{"slow", "slow"}, dropped)
}

func TestBus_ControlEventsWaitForRoom(t *testing.T) {
	t.Parallel()

	b := NewBus(time.Second)
	ch := make(chan Event, 1)
	require.NoError(t, b.Subscribe("c", ch))

	b.Publish(Status{Board: 0, Message: "first"})

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-ch
	}()
	b.Publish(Lifecycle{Board: 0, State: StateStopped})

	e := <-ch
	assert.Equal(t, KindLifecycle, e.Kind())
	st, _ := b.Stats("c")
	assert.Equal(t, uint64(0), st.Dropped)
}

func TestBus_ControlEventsDropAfterWait(t *testing.T) {
	t.Parallel()

	b := NewBus(5 * time.Millisecond)
	ch := make(chan Event, 1)
	require.NoError(t, b.Subscribe("stuck", ch))

	b.Publish(Error{Board: 0, Message: "one"})
	b.Publish(Error{Board: 0, Message: "two"})

	st, _ := b.Stats("stuck")
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestBus_SubscribeErrors(t *testing.T) {
	t.Parallel()

	b := NewBus(0)
	ch := make(chan Event, 1)
	require.NoError(t, b.Subscribe("x", ch))
	assert.ErrorIs(t, b.Subscribe("x", ch), ErrSubscriberExists)
	assert.ErrorIs(t, b.Subscribe("y", nil), ErrNilChannel)
	assert.ErrorIs(t, b.Unsubscribe("nope"), ErrSubscriberNotFound)
	require.NoError(t, b.Unsubscribe("x"))

	b.Close()
	b.Close()
	assert.ErrorIs(t, b.Subscribe("z", ch), ErrBusClosed)

	// publishing after close is a no-op
	b.Publish(Status{})
	assert.Equal(t, uint64(0), b.Published())
}

func TestRecorder_Filters(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Publish(Lifecycle{Board: 1, State: StateRunning})
	r.Publish(Error{Board: 1, Code: 18})
	r.Publish(Status{Board: 1})

	assert.Len(t, r.Events(), 3)
	require.Len(t, r.Errors(), 1)
	assert.Equal(t, uint16(18), r.Errors()[0].Code)
	assert.Len(t, r.OfKind(KindLifecycle), 1)
	assert.Equal(t, "running", StateRunning.String())

	r.Reset()
	assert.Empty(t, r.Events())
	assert.True(t, IsFrame(AnalogFrame{}))
	assert.False(t, IsFrame(Status{}))
}

func TestSinks_FanOut(t *testing.T) {
	t.Parallel()

	var a, b Recorder
	calls := 0
	s := Sinks{&a, nil, SinkFunc(func(Event) { calls++ }), &b}
	s.Publish(Status{Board: 2, Message: "x"})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
	assert.Equal(t, 1, calls)
}
