package core

import "sync"

// LogicalClock assigns the totally-ordered timestamp a peer uses when it
// enters WANTED. The specification allows any strictly monotonic,
// cross-peer-comparable scalar but recommends a Lamport clock over the
// reference's wall-clock reading (see SPEC_FULL.md §3); this is that
// recommendation, implemented.
type LogicalClock struct {
	mutex *sync.Mutex
	value uint64
}

// NewLogicalClock creates a clock starting at zero.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{mutex: &sync.Mutex{}}
}

// Tick advances the clock by one and returns the new value. Used when a
// request is issued.
func (c *LogicalClock) Tick() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.value++
	return c.value
}

// Tock returns the current value without advancing it.
func (c *LogicalClock) Tock() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.value
}

// Witness folds an externally observed timestamp into the clock,
// advancing it past the observed value if necessary — standard Lamport
// clock message-receipt behavior.
func (c *LogicalClock) Witness(observed uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if observed > c.value {
		c.value = observed
	}
	c.value++
}
