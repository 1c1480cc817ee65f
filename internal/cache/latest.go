// internal/cache/latest.go

// Package cache keeps the most recent value per board for readers that poll
// instead of subscribing.
package cache

import (
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is used when New gets a non-positive ttl.
const DefaultTTL = 10 * time.Second

// Latest holds the newest *T per board. Entries expire after the TTL so a
// silent board reads as absent rather than stale-but-present.
type Latest[T any] struct {
	items *gocache.Cache

	mu       sync.RWMutex
	onUpdate func(board int, v *T)
}

// New returns an empty cache. Expired entries are dropped lazily on read.
func New[T any](ttl time.Duration) *Latest[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Latest[T]{items: gocache.New(ttl, 0)}
}

// OnUpdate sets the callback fired after every accepted Update.
func (l *Latest[T]) OnUpdate(fn func(board int, v *T)) {
	l.mu.Lock()
	l.onUpdate = fn
	l.mu.Unlock()
}

// Update stores v for board. A nil v is ignored.
func (l *Latest[T]) Update(board int, v *T) {
	if v == nil {
		return
	}
	l.items.Set(key(board), v, gocache.DefaultExpiration)

	l.mu.RLock()
	fn := l.onUpdate
	l.mu.RUnlock()
	if fn != nil {
		fn(board, v)
	}
}

// Get returns the stored value for board.
func (l *Latest[T]) Get(board int) (*T, bool) {
	v, ok := l.items.Get(key(board))
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// Len returns the number of entries, expired ones included until read.
func (l *Latest[T]) Len() int { return l.items.ItemCount() }

// Clear drops every entry.
func (l *Latest[T]) Clear() { l.items.Flush() }

func key(board int) string { return strconv.Itoa(board) }
