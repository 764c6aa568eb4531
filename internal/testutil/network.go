package testutil

import (
	"context"
	"sync"

	"github.com/jabolina/peer-mutex/pkg/mutex/transport"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// Network is an in-memory stand-in for the pair of real transports
// (HTTP for requests/OKs, relt for heartbeats), the same role
// test/tcp_transport_test.go's loopback TCP listener played for the
// teacher: a deterministic substrate tests can also partition.
//
// Calls are dispatched synchronously on the caller's goroutine, same
// as a same-process function call — fine for tests since the State
// Core never calls out while holding its own mutex.
type Network struct {
	mutex      sync.Mutex
	requests   map[string]*MemoryRequestTransport
	heartbeats map[string]func(from types.PeerId)
	cut        map[string]bool
}

// NewNetwork builds an empty Network.
func NewNetwork() *Network {
	return &Network{
		requests:   make(map[string]*MemoryRequestTransport),
		heartbeats: make(map[string]func(from types.PeerId)),
		cut:        make(map[string]bool),
	}
}

// Partition marks id as unreachable: every inbound send to its
// endpoint fails, and it stops appearing as a heartbeat sender. Used
// to exercise the failure-detector and "dead ≡ OK" paths.
func (n *Network) Partition(id types.PeerId) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.cut[string(id)] = true
}

// Heal reverses a prior Partition.
func (n *Network) Heal(id types.PeerId) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	delete(n.cut, string(id))
}

func (n *Network) isCut(id types.PeerId) bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.cut[string(id)]
}

// NewPeerRequestTransport builds the MemoryRequestTransport for id,
// registering it on the shared network under its endpoint.
func (n *Network) NewPeerRequestTransport(id types.PeerId) *MemoryRequestTransport {
	t := &MemoryRequestTransport{network: n, id: id, endpoint: "mem://" + string(id)}
	n.mutex.Lock()
	n.requests[t.endpoint] = t
	n.mutex.Unlock()
	return t
}

// NewPeerHeartbeatTransport builds the MemoryHeartbeatTransport for id.
func (n *Network) NewPeerHeartbeatTransport(id types.PeerId) *MemoryHeartbeatTransport {
	return &MemoryHeartbeatTransport{network: n, id: id}
}

// MemoryRequestTransport implements transport.RequestTransport without
// any socket, grounded the same way the teacher's TCPTransport is
// exercised directly in tests without a real network.
type MemoryRequestTransport struct {
	network  *Network
	id       types.PeerId
	endpoint string

	onRequest transport.RequestHandler
	onOK      transport.OKHandler
}

var _ transport.RequestTransport = (*MemoryRequestTransport)(nil)

func (t *MemoryRequestTransport) Bind(_ string) (string, error) {
	return t.endpoint, nil
}

func (t *MemoryRequestTransport) Serve(_ string, onRequest transport.RequestHandler, onOK transport.OKHandler) error {
	t.onRequest = onRequest
	t.onOK = onOK
	return nil
}

func (t *MemoryRequestTransport) SendRequest(_ context.Context, endpoint string, self types.PeerId, timestamp uint64) (types.Decision, error) {
	peer, err := t.lookup(endpoint)
	if err != nil {
		return "", err
	}
	return peer.onRequest(self, timestamp), nil
}

func (t *MemoryRequestTransport) SendOK(_ context.Context, endpoint string, self types.PeerId) error {
	peer, err := t.lookup(endpoint)
	if err != nil {
		return err
	}
	peer.onOK(self)
	return nil
}

func (t *MemoryRequestTransport) lookup(endpoint string) (*MemoryRequestTransport, error) {
	t.network.mutex.Lock()
	peer, known := t.network.requests[endpoint]
	t.network.mutex.Unlock()
	if !known {
		return nil, types.ErrUnknownPeer
	}
	if t.network.isCut(peer.id) || t.network.isCut(t.id) {
		return nil, types.ErrTransientTransport
	}
	return peer, nil
}

func (t *MemoryRequestTransport) LocalEndpoint() string {
	return t.endpoint
}

func (t *MemoryRequestTransport) Close() error {
	t.network.mutex.Lock()
	delete(t.network.requests, t.endpoint)
	t.network.mutex.Unlock()
	return nil
}

// MemoryHeartbeatTransport implements transport.HeartbeatTransport as
// a fan-out over the shared Network, standing in for relt's group
// broadcast in tests.
type MemoryHeartbeatTransport struct {
	network *Network
	id      types.PeerId
}

var _ transport.HeartbeatTransport = (*MemoryHeartbeatTransport)(nil)

func (t *MemoryHeartbeatTransport) Start(onHeartbeat func(from types.PeerId)) error {
	t.network.mutex.Lock()
	t.network.heartbeats[string(t.id)] = onHeartbeat
	t.network.mutex.Unlock()
	return nil
}

func (t *MemoryHeartbeatTransport) Broadcast(self types.PeerId) error {
	if t.network.isCut(self) {
		return nil
	}
	t.network.mutex.Lock()
	receivers := make([]func(types.PeerId), 0, len(t.network.heartbeats))
	for id, cb := range t.network.heartbeats {
		if types.PeerId(id) == self {
			continue
		}
		receivers = append(receivers, cb)
	}
	t.network.mutex.Unlock()
	for _, cb := range receivers {
		cb(self)
	}
	return nil
}

func (t *MemoryHeartbeatTransport) Close() error {
	t.network.mutex.Lock()
	delete(t.network.heartbeats, string(t.id))
	t.network.mutex.Unlock()
	return nil
}
