package core

import (
	"sync"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/directory"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// Membership maintains the set of live peers via periodic directory
// discovery and heartbeat freshness, per SPEC_FULL.md §4.3.
//
// All reads/writes to the record map happen under mutex, independent of
// the peer-wide lock the State Core uses — a peer only crosses into
// Membership through the narrow methods below, never by reaching into
// its fields directly.
type Membership struct {
	mutex   sync.Mutex
	records map[types.PeerId]*types.PeerRecord

	self PeerIdentity
	dir  directory.Directory
	conf *types.Configuration
	log  definition.Logger
}

// PeerIdentity is the minimal self-description Membership needs to
// register/deregister with the directory service.
type PeerIdentity struct {
	ID       types.PeerId
	Endpoint string
}

// NewMembership builds a Membership tracker for the given peer.
func NewMembership(self PeerIdentity, dir directory.Directory, conf *types.Configuration, log definition.Logger) *Membership {
	return &Membership{
		records: make(map[types.PeerId]*types.PeerRecord),
		self:    self,
		dir:     dir,
		conf:    conf,
		log:     log,
	}
}

// Start registers self with the directory service.
func (m *Membership) Start() error {
	return m.dir.Register(m.conf.DirectoryName(m.self.ID), m.self.Endpoint)
}

// Stop unregisters self, orderly-shutdown per spec.md §5.
func (m *Membership) Stop() {
	if err := m.dir.Remove(m.conf.DirectoryName(m.self.ID)); err != nil {
		m.log.Warnf("failed unregistering from directory: %v", err)
	}
}

// Discover queries the directory for peers matching the configured
// prefix and creates a PeerRecord for any id not already known.
// DirectoryUnavailable is absorbed: the tick is simply skipped.
func (m *Membership) Discover() {
	names, err := m.dir.List(m.conf.DirectoryPrefix)
	if err != nil {
		m.log.Warnf("directory unavailable, skipping discovery tick: %v", err)
		return
	}

	now := time.Now()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for name, endpoint := range names {
		id := types.PeerId(name[len(m.conf.DirectoryPrefix):])
		if id == m.self.ID {
			continue
		}
		if _, known := m.records[id]; !known {
			m.records[id] = &types.PeerRecord{
				ID:       id,
				Endpoint: endpoint,
				LastSeen: now,
				State:    types.Live,
			}
		} else {
			m.records[id].Endpoint = endpoint
		}
	}
}

// Witness updates last_seen for the given peer, self-healing a missing
// PeerRecord exactly like ReceiveHeartbeat's UnknownSender policy.
func (m *Membership) Witness(id types.PeerId, endpoint string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	record, known := m.records[id]
	if !known {
		m.records[id] = &types.PeerRecord{
			ID:       id,
			Endpoint: endpoint,
			LastSeen: time.Now(),
			State:    types.Live,
		}
		return
	}
	record.LastSeen = time.Now()
	record.State = types.Live
	if endpoint != "" {
		record.Endpoint = endpoint
	}
}

// LivePeers snapshots the ids currently considered Live.
func (m *Membership) LivePeers() []types.PeerId {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var live []types.PeerId
	for id, record := range m.records {
		if record.State == types.Live {
			live = append(live, id)
		}
	}
	return live
}

// Endpoint returns the last-known endpoint for a peer, if any.
func (m *Membership) Endpoint(id types.PeerId) (string, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	record, known := m.records[id]
	if !known {
		return "", false
	}
	return record.Endpoint, true
}

// IsLive reports whether a peer is currently considered Live. An
// entirely unknown peer is treated as live — we have no evidence it is
// dead, mirroring the reference's peer_esta_ativo default.
func (m *Membership) IsLive(id types.PeerId) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	record, known := m.records[id]
	if !known {
		return true
	}
	return record.State == types.Live
}

// CheckHeartbeats scans records for silence exceeding HeartbeatTimeout
// and returns the ids that just transitioned to SuspectedDead on this
// call (so the caller can react exactly once per transition).
func (m *Membership) CheckHeartbeats() []types.PeerId {
	now := time.Now()
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var newlySuspected []types.PeerId
	for id, record := range m.records {
		if record.State == types.Live && now.Sub(record.LastSeen) > m.conf.HeartbeatTimeout {
			record.State = types.SuspectedDead
			newlySuspected = append(newlySuspected, id)
		}
	}
	return newlySuspected
}
