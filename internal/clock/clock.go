package clock

import (
	"fmt"
	"sync"
)

// Lamport is a Lamport logical clock.
// It is safe for concurrent use: the send path ticks it while the receive
// loop observes remote timestamps.
type Lamport struct {
	mu   sync.Mutex
	time int64
}

// New creates a clock starting at zero.
func New() *Lamport {
	return &Lamport{}
}

// Tick advances the clock for a local event and returns the new time.
func (c *Lamport) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.time++
	return c.time
}

// Observe merges a timestamp received from a remote process, setting the
// clock to max(local, remote) + 1. Returns the new time.
func (c *Lamport) Observe(remote int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote > c.time {
		c.time = remote
	}
	c.time++
	return c.time
}

// Now returns the current time without advancing it.
func (c *Lamport) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// String returns a string representation of the clock.
func (c *Lamport) String() string {
	return fmt.Sprintf("lamport(%d)", c.Now())
}

// Less reports whether event (tsA, pidA) precedes (tsB, pidB) in the total
// order obtained by breaking timestamp ties with the process id.
func Less(tsA int64, pidA int, tsB int64, pidB int) bool {
	if tsA != tsB {
		return tsA < tsB
	}
	return pidA < pidB
}
