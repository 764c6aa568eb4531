// Package types holds the data model shared by the mutual-exclusion
// engine, its transports and its command-line front ends.
package types

import (
	"errors"
	"time"
)

// PeerId is an opaque, non-empty identifier with a total, lexicographic
// order across the system.
type PeerId string

// CSState is one of the three states of the local mutual-exclusion
// state machine.
type CSState int

const (
	// Released means the peer holds no interest in the critical section.
	Released CSState = iota
	// Wanted means the peer has issued a request and is waiting on OKs.
	Wanted
	// Held means the peer currently owns the critical section.
	Held
)

func (s CSState) String() string {
	switch s {
	case Released:
		return "RELEASED"
	case Wanted:
		return "WANTED"
	case Held:
		return "HELD"
	default:
		return "UNKNOWN"
	}
}

// ReleaseReason distinguishes a user-driven release from an automatic
// one fired by the lease timer; ReleaseCS must be idempotent across both.
type ReleaseReason int

const (
	// User is a release requested through the local menu/API.
	User ReleaseReason = iota
	// LeaseExpired is a release fired by the bounded CS lease timer.
	LeaseExpired
)

func (r ReleaseReason) String() string {
	if r == LeaseExpired {
		return "LEASE_EXPIRED"
	}
	return "USER"
}

// Liveness is the failure detector's verdict about a peer.
type Liveness int

const (
	// Live means a message from the peer was seen within HeartbeatTimeout.
	Live Liveness = iota
	// SuspectedDead means the peer's silence exceeded HeartbeatTimeout.
	SuspectedDead
)

// Decision is the synchronous reply to a ReceiveRequest RPC.
type Decision string

const (
	// OK grants immediate passage to the requester.
	OK Decision = "OK"
	// Wait defers the requester; it is owed a later ReceiveOK.
	Wait Decision = "WAIT"
)

// Ack is the reply body to a ReceiveOK RPC. Heartbeats are one-way
// broadcasts and get no reply.
const Ack = "ACK"

// Errors a local operation can report, per the error handling design.
var (
	// ErrInvalidState is returned when an operation is invoked in a
	// disallowed local state, e.g. RequestCS while already WANTED.
	ErrInvalidState = errors.New("peer-mutex: invalid state for operation")

	// ErrTransientTransport wraps a failed outbound RPC. It is never
	// retried inline; liveness view governs the retry policy.
	ErrTransientTransport = errors.New("peer-mutex: transient transport error")

	// ErrDirectoryUnavailable is returned when the naming service cannot
	// be reached; the affected tick is skipped, not escalated.
	ErrDirectoryUnavailable = errors.New("peer-mutex: directory unavailable")

	// ErrUnknownPeer reports that no peer is registered at the endpoint an
	// outbound call targeted. The in-memory test transport returns it from
	// SendRequest/SendOK; callers log it like any other send failure.
	ErrUnknownPeer = errors.New("peer-mutex: unknown peer")
)

// PeerRecord tracks everything the membership layer knows about a
// remote peer.
type PeerRecord struct {
	ID       PeerId
	Endpoint string
	LastSeen time.Time
	State    Liveness
}

// PendingRequest tracks an outstanding ReceiveRequest we have sent but
// not yet resolved (via OK, via deferral sweep, or via dead-peer sweep).
type PendingRequest struct {
	PeerID PeerId
	SentAt time.Time
}

// Configuration carries every tunable named in the specification,
// with the suggested defaults pre-filled by DefaultConfiguration.
type Configuration struct {
	// Self is this peer's identifier.
	Self PeerId

	// DirectoryPrefix is the naming-service prefix peers register under
	// and discover each other through, e.g. "peer.mutex.".
	DirectoryPrefix string

	// MaxCSHold bounds how long a peer may remain HELD.
	MaxCSHold time.Duration

	// HeartbeatInterval is the heartbeat send cadence.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is the silence duration before a peer is
	// considered SuspectedDead.
	HeartbeatTimeout time.Duration

	// RequestTimeout bounds how long we wait for a reply to
	// ReceiveRequest before the sweeper re-evaluates the peer.
	RequestTimeout time.Duration
}

// DefaultConfiguration returns the suggested defaults from the
// specification for the named peer.
func DefaultConfiguration(self PeerId) *Configuration {
	return &Configuration{
		Self:              self,
		DirectoryPrefix:   "peer.mutex.",
		MaxCSHold:         30 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		HeartbeatTimeout:  35 * time.Second,
		RequestTimeout:    20 * time.Second,
	}
}

// DirectoryName is the fully-qualified naming-service name for a peer.
func (c *Configuration) DirectoryName(id PeerId) string {
	return c.DirectoryPrefix + string(id)
}
