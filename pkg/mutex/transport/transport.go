// Package transport implements the Transport Adapter component of
// SPEC_FULL.md §2: the thin boundary turning local State Core
// invocations into remote calls and vice versa.
//
// Two concrete transports are provided, matching the two different
// reliability/latency shapes spec.md §6 actually needs:
//
//   - RequestTransport: a synchronous unary JSON/HTTP RPC for
//     ReceiveRequest (needs an immediate OK/WAIT reply) and ReceiveOK
//     (needs only an ACK). Grounded in original_source/client.py's Pyro
//     proxy calls and in other_examples' sole in-pack precedent for this
//     exact algorithm (net/http + encoding/json).
//   - HeartbeatTransport: a best-effort, no-reply multicast over
//     github.com/jabolina/relt, the teacher's own transport dependency,
//     used the same way the teacher's ReliableTransport uses it
//     (pkg/mcast/core/transport.go): Broadcast to publish, Consume to
//     receive.
package transport

import (
	"context"

	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// RequestHandler answers an inbound ReceiveRequest RPC. Implemented by
// the State Core's decision rule.
type RequestHandler func(from types.PeerId, timestamp uint64) types.Decision

// OKHandler answers an inbound ReceiveOK RPC. Implemented by the State
// Core's aggregation logic.
type OKHandler func(from types.PeerId)

// RequestTransport is the synchronous half of the Transport Adapter.
type RequestTransport interface {
	// Bind reserves the listening address and returns the endpoint other
	// peers should dial, without yet serving traffic. Optional: Serve
	// binds lazily if Bind was not called first.
	Bind(addr string) (string, error)

	// Serve starts accepting inbound RPCs on addr, dispatching to the
	// given handlers. Non-blocking; returns once the listener is bound.
	Serve(addr string, onRequest RequestHandler, onOK OKHandler) error

	// SendRequest issues ReceiveRequest(self, timestamp) to endpoint and
	// returns its decision. A failure is ErrTransientTransport-wrapped.
	SendRequest(ctx context.Context, endpoint string, self types.PeerId, timestamp uint64) (types.Decision, error)

	// SendOK issues ReceiveOK(self) to endpoint, best-effort.
	SendOK(ctx context.Context, endpoint string, self types.PeerId) error

	// LocalEndpoint returns the address other peers should dial.
	LocalEndpoint() string

	// Close stops serving and releases the listener.
	Close() error
}

// HeartbeatTransport is the broadcast half of the Transport Adapter.
type HeartbeatTransport interface {
	// Start begins consuming inbound heartbeats, invoking onHeartbeat for
	// each sender id observed.
	Start(onHeartbeat func(from types.PeerId)) error

	// Broadcast publishes a heartbeat from self to the whole group.
	Broadcast(self types.PeerId) error

	// Close stops consuming and releases the underlying transport.
	Close() error
}
