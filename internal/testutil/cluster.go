package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jabolina/peer-mutex/pkg/mutex/audit"
	"github.com/jabolina/peer-mutex/pkg/mutex/core"
	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/directory"
	"github.com/jabolina/peer-mutex/pkg/mutex/metrics"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// Cluster is a set of in-process peers sharing one Network and one
// Directory, the mutual-exclusion analogue of the teacher's
// UnityCluster: build N participants, let them discover each other,
// and tear them all down together.
type Cluster struct {
	T         *testing.T
	Peers     []*core.Peer
	IDs       []types.PeerId
	Network   *Network
	dir       *directory.InMemoryDirectory
	prefix    string
	configure func(*types.Configuration)
}

// NewCluster builds size peers named prefix-0..prefix-(size-1), each with its
// own Configuration (so per-test timeout overrides are possible via
// configure), registers them against a shared in-memory directory, and
// starts every one of them.
func NewCluster(t *testing.T, size int, prefix string, configure func(*types.Configuration)) *Cluster {
	c := &Cluster{
		T:         t,
		Network:   NewNetwork(),
		dir:       directory.NewInMemoryDirectory(),
		prefix:    prefix,
		configure: configure,
	}
	for i := 0; i < size; i++ {
		c.AddPeer(fmt.Sprintf("%s-%d", prefix, i))
	}
	return c
}

// AddPeer builds and starts one more participant against this
// cluster's shared Network and directory, registering it under the
// given id — used to simulate a peer joining after the rest of the
// group is already running.
func (c *Cluster) AddPeer(id string) *core.Peer {
	peerID := types.PeerId(id)
	conf := types.DefaultConfiguration(peerID)
	if c.configure != nil {
		c.configure(conf)
	}

	log := definition.NewDefaultLogger().With(definition.Fields{"peer_id": id})
	reqTrans := c.Network.NewPeerRequestTransport(peerID)
	hbTrans := c.Network.NewPeerHeartbeatTransport(peerID)
	identity := core.PeerIdentity{ID: peerID, Endpoint: reqTrans.LocalEndpoint()}
	membership := core.NewMembership(identity, c.dir, conf, log)
	clock := core.NewLogicalClock()
	invoker := NewInvoker()
	registry := metrics.NewRegistry(id)
	auditLog := audit.NewInMemoryLog()

	peer := core.NewPeer(conf, clock, membership, reqTrans, hbTrans, invoker, log, registry, auditLog)
	if err := peer.Start(reqTrans.LocalEndpoint()); err != nil {
		c.T.Fatalf("failed starting peer %s: %v", id, err)
	}

	c.Peers = append(c.Peers, peer)
	c.IDs = append(c.IDs, peerID)
	return peer
}

// Shutdown stops every peer concurrently, mirroring UnityCluster.Off.
func (c *Cluster) Shutdown() {
	var group sync.WaitGroup
	for _, peer := range c.Peers {
		peer := peer
		group.Add(1)
		go func() {
			defer group.Done()
			peer.Stop()
		}()
	}
	group.Wait()
}

// Peer returns the i-th peer, for readability at call sites.
func (c *Cluster) Peer(i int) *core.Peer {
	return c.Peers[i]
}
