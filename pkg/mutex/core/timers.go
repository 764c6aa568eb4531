package core

import (
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// This file implements the Timer Subsystem of spec.md §4.4: the
// heartbeat send/check loops, the discovery loop and the
// request-timeout sweep. The one-shot lease timer lives in peer.go next
// to maybeEnterCSLocked, its sole arming site.
//
// Every loop here is a dedicated, cancellable task watching p.ctx.Done(),
// per the re-architecture note in spec.md §9 ("Timers as dedicated
// cancellable tasks"): no orphan timers survive Stop.

func (p *Peer) discoveryLoop() {
	p.membership.Discover()

	ticker := time.NewTicker(p.conf.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.membership.Discover()
		}
	}
}

func (p *Peer) heartbeatSendLoop() {
	ticker := time.NewTicker(p.conf.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.hbTrans.Broadcast(p.id); err != nil {
				// RPC failure never directly marks a peer dead (spec.md
				// §4.3); only the absence of incoming heartbeats does.
				p.log.Warnf("failed broadcasting heartbeat: %v", err)
			}
		}
	}
}

func (p *Peer) heartbeatCheckLoop() {
	ticker := time.NewTicker(p.conf.HeartbeatTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.handleNewlySuspected(p.membership.CheckHeartbeats())
			if p.metrics != nil {
				p.metrics.LivePeers.Set(float64(len(p.membership.LivePeers())))
			}
		}
	}
}

// handleNewlySuspected applies the "dead ≡ OK" equivalence of
// spec.md §4.3 to every peer that just transitioned to SuspectedDead.
func (p *Peer) handleNewlySuspected(suspected []types.PeerId) {
	if len(suspected) == 0 {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, id := range suspected {
		p.log.Warnf("peer %s suspected dead", id)
		if p.deferredSet[id] {
			delete(p.deferredSet, id)
			p.deferred = removePeer(p.deferred, id)
		}
		delete(p.pending, id)
		if p.state == types.Wanted {
			p.okSet[id] = struct{}{}
		}
	}
	p.maybeEnterCSLocked()
	if p.metrics != nil {
		p.metrics.LivePeers.Set(float64(len(p.membership.LivePeers())))
	}
}

func (p *Peer) requestTimeoutSweepLoop() {
	ticker := time.NewTicker(p.conf.RequestTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.sweepRequestTimeouts()
		}
	}
}

// sweepRequestTimeouts implements spec.md §4.4's request-timeout sweep:
// a live-but-silent peer is presumed busy (HELD elsewhere) and simply
// gets its deadline refreshed; a suspected-dead peer's OK is synthesized.
func (p *Peer) sweepRequestTimeouts() {
	now := time.Now()

	p.mutex.Lock()
	defer p.mutex.Unlock()
	for id, req := range p.pending {
		if now.Sub(req.SentAt) <= p.conf.RequestTimeout {
			continue
		}
		if p.membership.IsLive(id) {
			req.SentAt = now
			continue
		}
		p.okSet[id] = struct{}{}
		delete(p.pending, id)
	}
	p.maybeEnterCSLocked()
}

func removePeer(ids []types.PeerId, target types.PeerId) []types.PeerId {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
