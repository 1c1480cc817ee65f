// internal/outqueue/queue.go

// Package outqueue holds pending digital-output writes for one board.
package outqueue

import (
	"sort"
	"sync"
)

// Command is one pending output write.
type Command struct {
	Output   string
	Port     uint16
	Bit      uint16
	Value    bool
	Priority int
}

// Queue orders commands by descending priority. Equal priorities keep
// enqueue order. One mutex covers insertion and drain.
type Queue struct {
	mu    sync.Mutex
	items []Command
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends cmd and re-sorts the queue.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, cmd)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Priority > q.items[j].Priority
	})
}

// FlushAndClear drains the queue and returns the batch in execution order.
// An empty queue returns nil.
func (q *Queue) FlushAndClear() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	batch := q.items
	q.items = nil
	return batch
}

// Clear drops every pending command and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
