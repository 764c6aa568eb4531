// Package audit keeps an observability trail of every HELD interval a
// peer goes through. It is not persisted across restarts — spec.md's
// Non-goals rule out durable state — but it gives LIST_PEERS-style
// tooling and tests something to inspect after the fact.
//
// Grounded on the teacher's replicated-log storage abstraction
// (pkg/mcast/types/storage.go, state_machine.go, data.go): a Commit-style
// append plus a History-style read-back, the same shape, repurposed from
// "replicate a command" to "record a CS hold".
package audit

import (
	"sync"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// Record captures one HELD interval.
type Record struct {
	PeerID     types.PeerId
	EnteredAt  time.Time
	ReleasedAt time.Time
	Reason     types.ReleaseReason
}

// Duration is a convenience accessor mirroring the CSHoldSeconds metric.
func (r Record) Duration() time.Duration {
	return r.ReleasedAt.Sub(r.EnteredAt)
}

// Log is the contract the State Core commits CS holds through. Kept
// narrow and swappable the way the teacher's types.Storage interface is:
// a peer doesn't care whether history lives in memory or on disk.
type Log interface {
	// Append records a completed HELD interval.
	Append(record Record) error

	// History returns every recorded interval, oldest first.
	History() ([]Record, error)
}

// InMemoryLog is the default Log: a mutex-protected slice, same
// reliability tier as the teacher's in-memory default storage.
type InMemoryLog struct {
	mutex   sync.RWMutex
	records []Record
}

// NewInMemoryLog builds an empty InMemoryLog.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{}
}

func (l *InMemoryLog) Append(record Record) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *InMemoryLog) History() ([]Record, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out, nil
}
