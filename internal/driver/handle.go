// internal/driver/handle.go
package driver

import (
	"fmt"
	"sync"
)

// Handle is counted ownership of a Driver.
// The first Acquire initializes the driver; the last Release closes it.
// All transitions are serialized by one mutex so concurrent first-use and
// last-use never race.
type Handle struct {
	mu     sync.Mutex
	drv    Driver
	refs   int
	boards int
}

// NewHandle wraps drv. The driver is not touched until Acquire.
func NewHandle(drv Driver) *Handle {
	return &Handle{drv: drv}
}

// Driver returns the wrapped driver.
func (h *Handle) Driver() Driver { return h.drv }

// Acquire takes one reference, initializing the driver on the first one.
// It returns the board count recorded at init.
func (h *Handle) Acquire() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		n, err := h.drv.Init()
		if err != nil {
			return 0, Wrap("Init", -1, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("driver: init reported %d boards", n)
		}
		h.boards = n
	}
	h.refs++
	return h.boards, nil
}

// Release drops one reference and closes the driver when none remain.
// Releasing an unheld handle is a no-op.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	h.boards = 0
	return h.drv.Close()
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Boards returns the board count recorded at init, or 0 when not held.
func (h *Handle) Boards() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.boards
}
