// Package core implements the peer's mutual-exclusion engine: the State
// Core, the Request Protocol Handler, and the glue tying them to the
// Membership/Failure Detector and Timer Subsystem. Grounded throughout
// on the teacher's pkg/mcast/core/peer.go — a Peer struct holding a
// single mutex, a clock, a deliver/commit path and an Invoker-driven
// poll loop — generalized from generic multicast delivery to
// Ricart–Agrawala mutual exclusion.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/audit"
	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/metrics"
	"github.com/jabolina/peer-mutex/pkg/mutex/transport"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// Peer is a single mutual-exclusion participant: the State Core plus
// everything needed to drive it (transports, membership, timers).
//
// All mutable fields below the mutex line are protected by mutex, per
// the single peer-wide lock discipline of spec.md §5. Outbound RPCs are
// always issued outside the lock: the canonical pattern is (a) lock,
// mutate, snapshot; (b) unlock; (c) call out; (d) lock again to
// integrate the reply.
type Peer struct {
	id   types.PeerId
	conf *types.Configuration

	clock      *LogicalClock
	membership *Membership
	reqTrans   transport.RequestTransport
	hbTrans    transport.HeartbeatTransport
	invoker    Invoker
	log        definition.Logger
	metrics    *metrics.Registry
	audit      audit.Log

	mutex sync.Mutex

	state               types.CSState
	requestTimestamp    uint64
	hasRequestTimestamp bool
	okSet               map[types.PeerId]struct{}
	pending             map[types.PeerId]*types.PendingRequest
	deferred            []types.PeerId
	deferredSet         map[types.PeerId]bool

	leaseTimer  *time.Timer
	csEnteredAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPeer wires every collaborator together but does not yet serve RPCs
// or start the timer loops; call Start for that.
func NewPeer(
	conf *types.Configuration,
	clock *LogicalClock,
	membership *Membership,
	reqTrans transport.RequestTransport,
	hbTrans transport.HeartbeatTransport,
	invoker Invoker,
	log definition.Logger,
	registry *metrics.Registry,
	auditLog audit.Log,
) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Peer{
		id:          conf.Self,
		conf:        conf,
		clock:       clock,
		membership:  membership,
		reqTrans:    reqTrans,
		hbTrans:     hbTrans,
		invoker:     invoker,
		log:         log,
		metrics:     registry,
		audit:       auditLog,
		state:       types.Released,
		okSet:       make(map[types.PeerId]struct{}),
		pending:     make(map[types.PeerId]*types.PendingRequest),
		deferredSet: make(map[types.PeerId]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start binds the RPC listener, joins the heartbeat group, registers
// with the directory, and spawns the four concurrent activities of
// spec.md §5: the RPC serving loop (implicit in Serve/Start), the
// heartbeat sender, the heartbeat/failure checker, and the
// request-timeout sweeper.
func (p *Peer) Start(listenAddr string) error {
	if err := p.reqTrans.Serve(listenAddr, p.ReceiveRequest, p.ReceiveOK); err != nil {
		return err
	}
	if err := p.hbTrans.Start(p.ReceiveHeartbeat); err != nil {
		return err
	}
	if err := p.membership.Start(); err != nil {
		p.log.Warnf("failed registering with directory: %v", err)
	}

	p.invoker.Spawn(p.discoveryLoop)
	p.invoker.Spawn(p.heartbeatSendLoop)
	p.invoker.Spawn(p.heartbeatCheckLoop)
	p.invoker.Spawn(p.requestTimeoutSweepLoop)
	return nil
}

// Stop cancels every background activity, unregisters from the
// directory and closes both transports. Per spec.md §5, in-flight
// inbound RPCs may observe errors; that is tolerated.
func (p *Peer) Stop() {
	p.mutex.Lock()
	if p.leaseTimer != nil {
		p.leaseTimer.Stop()
		p.leaseTimer = nil
	}
	p.mutex.Unlock()

	p.cancel()
	p.membership.Stop()
	if err := p.reqTrans.Close(); err != nil {
		p.log.Warnf("failed closing request transport: %v", err)
	}
	if err := p.hbTrans.Close(); err != nil {
		p.log.Warnf("failed closing heartbeat transport: %v", err)
	}
	p.invoker.Stop()
}

// State returns the current CS state, for the interactive menu and
// tests.
func (p *Peer) State() types.CSState {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.state
}

// KnownPeers returns every peer currently considered Live, for the
// LIST_PEERS menu command.
func (p *Peer) KnownPeers() []types.PeerId {
	return p.membership.LivePeers()
}

// History returns every completed HELD interval recorded for this peer.
func (p *Peer) History() ([]audit.Record, error) {
	if p.audit == nil {
		return nil, nil
	}
	return p.audit.History()
}

// RequestCS implements spec.md §4.1. Precondition: state == RELEASED.
func (p *Peer) RequestCS() error {
	p.mutex.Lock()
	if p.state != types.Released {
		p.mutex.Unlock()
		return types.ErrInvalidState
	}

	ts := p.clock.Tick()
	p.state = types.Wanted
	p.setStateGauge()
	p.requestTimestamp = ts
	p.hasRequestTimestamp = true
	p.okSet = make(map[types.PeerId]struct{})
	p.pending = make(map[types.PeerId]*types.PendingRequest)

	live := p.membership.LivePeers()
	now := time.Now()
	for _, id := range live {
		p.pending[id] = &types.PendingRequest{PeerID: id, SentAt: now}
	}
	p.mutex.Unlock()

	if p.metrics != nil {
		p.metrics.RequestsSent.Inc()
	}

	if len(live) == 0 {
		p.mutex.Lock()
		p.maybeEnterCSLocked()
		p.mutex.Unlock()
		return nil
	}

	for _, id := range live {
		id := id
		p.invoker.Spawn(func() {
			p.sendRequestTo(id, ts)
		})
	}
	return nil
}

func (p *Peer) sendRequestTo(id types.PeerId, ts uint64) {
	endpoint, known := p.membership.Endpoint(id)
	if !known {
		p.log.Warnf("no known endpoint for peer %s, cannot send request", id)
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.conf.RequestTimeout)
	defer cancel()
	decision, err := p.reqTrans.SendRequest(ctx, endpoint, p.id, ts)
	if err != nil {
		p.log.Warnf("failed sending request to %s: %v", id, err)
		return
	}

	if decision == types.OK {
		p.ReceiveOK(id)
	}
	// decision == WAIT: the peer stays in `pending`; the sweeper decides
	// its fate based on liveness (spec.md §9's adopted interpretation).
}

// ReleaseCS implements spec.md §4.1. Idempotent: a no-op when
// state != HELD, so a racing LeaseExpired and USER release are both
// safe.
func (p *Peer) ReleaseCS(reason types.ReleaseReason) {
	p.mutex.Lock()
	if p.state != types.Held {
		p.mutex.Unlock()
		return
	}

	if reason == types.User && p.leaseTimer != nil {
		p.leaseTimer.Stop()
	}
	p.leaseTimer = nil

	enteredAt := p.csEnteredAt
	if p.metrics != nil && !enteredAt.IsZero() {
		p.metrics.CSHoldSeconds.Observe(time.Since(enteredAt).Seconds())
	}
	if p.metrics != nil && reason == types.LeaseExpired {
		p.metrics.LeaseExpiries.Inc()
	}
	if p.audit != nil && !enteredAt.IsZero() {
		record := audit.Record{PeerID: p.id, EnteredAt: enteredAt, ReleasedAt: time.Now(), Reason: reason}
		if err := p.audit.Append(record); err != nil {
			p.log.Warnf("failed appending audit record: %v", err)
		}
	}

	p.state = types.Released
	p.hasRequestTimestamp = false
	p.requestTimestamp = 0
	p.csEnteredAt = time.Time{}
	p.setStateGauge()

	toNotify := p.deferred
	p.deferred = nil
	p.deferredSet = make(map[types.PeerId]bool)
	p.mutex.Unlock()

	p.log.Infof("released CS (%s), draining %d deferred replies", reason, len(toNotify))
	for _, id := range toNotify {
		id := id
		p.invoker.Spawn(func() {
			p.sendOKTo(id)
		})
	}
}

func (p *Peer) sendOKTo(id types.PeerId) {
	endpoint, known := p.membership.Endpoint(id)
	if !known {
		p.log.Warnf("no known endpoint for deferred peer %s", id)
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.conf.RequestTimeout)
	defer cancel()
	if err := p.reqTrans.SendOK(ctx, endpoint, p.id); err != nil {
		p.log.Warnf("failed sending deferred OK to %s: %v", id, err)
		return
	}
	if p.metrics != nil {
		p.metrics.DeferredReplies.Inc()
	}
}

// ReceiveRequest implements the decision rule of spec.md §4.1/§4.5.
func (p *Peer) ReceiveRequest(from types.PeerId, ts uint64) types.Decision {
	p.membership.Witness(from, "")
	p.clock.Witness(ts)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	var decision types.Decision
	switch {
	case p.state == types.Held:
		p.enqueueDeferredLocked(from)
		decision = types.Wait
	case p.state == types.Wanted && less(p.requestTimestamp, p.id, ts, from):
		// self has priority: (self_ts, self_id) < (ts_from, from)
		p.enqueueDeferredLocked(from)
		decision = types.Wait
	default:
		decision = types.OK
	}

	if p.metrics != nil {
		p.metrics.RequestsServed.WithLabelValues(string(decision)).Inc()
	}
	return decision
}

func (p *Peer) enqueueDeferredLocked(id types.PeerId) {
	if p.deferredSet[id] {
		return
	}
	p.deferredSet[id] = true
	p.deferred = append(p.deferred, id)
}

// less reports whether (ts1, id1) < (ts2, id2) under the total order on
// timestamp with PeerId as tie-break, per spec.md §3/§4.1.
func less(ts1 uint64, id1 types.PeerId, ts2 uint64, id2 types.PeerId) bool {
	if ts1 != ts2 {
		return ts1 < ts2
	}
	return id1 < id2
}

// ReceiveOK implements spec.md §4.1. Idempotent per P4: re-delivering a
// prior OK is a no-op set insertion.
func (p *Peer) ReceiveOK(from types.PeerId) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.okSet[from] = struct{}{}
	delete(p.pending, from)
	if p.metrics != nil {
		p.metrics.OKsReceived.Inc()
	}
	p.maybeEnterCSLocked()
}

// ReceiveHeartbeat implements spec.md §4.2/§4.3: refresh last_seen,
// self-healing membership for a previously-unknown sender.
func (p *Peer) ReceiveHeartbeat(from types.PeerId) {
	p.membership.Witness(from, "")
	if p.metrics != nil {
		p.metrics.Heartbeats.Inc()
	}
}

// maybeEnterCSLocked is the sole path into HELD (spec.md §4.1's
// maybe_enter_CS). Must be called with mutex held.
func (p *Peer) maybeEnterCSLocked() {
	if p.state != types.Wanted {
		return
	}

	for _, id := range p.membership.LivePeers() {
		if _, ok := p.okSet[id]; !ok {
			return
		}
	}

	p.state = types.Held
	p.csEnteredAt = time.Now()
	p.setStateGauge()
	p.armLeaseLocked()
	p.log.Infof("entered CS")
}

func (p *Peer) armLeaseLocked() {
	p.leaseTimer = time.AfterFunc(p.conf.MaxCSHold, func() {
		p.ReleaseCS(types.LeaseExpired)
	})
}

func (p *Peer) setStateGauge() {
	if p.metrics == nil {
		return
	}
	var value float64
	switch p.state {
	case types.Wanted:
		value = 1
	case types.Held:
		value = 2
	}
	p.metrics.SetState(value)
}
