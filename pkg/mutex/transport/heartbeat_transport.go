package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
	"github.com/jabolina/relt/pkg/relt"
)

// heartbeatEnvelope is the only payload ever sent over the heartbeat
// group: the sender's id. There is no reply — absence of further
// heartbeats, not an RPC error, is what the failure detector acts on
// (spec.md §4.3, §7).
type heartbeatEnvelope struct {
	From types.PeerId `json:"from"`
}

// ReltHeartbeatTransport implements HeartbeatTransport over
// github.com/jabolina/relt, exactly as the teacher's ReliableTransport
// wraps relt.Relt in pkg/mcast/core/transport.go: one reliable-multicast
// handle per group, a poll goroutine feeding a channel, JSON framing.
type ReltHeartbeatTransport struct {
	group  string
	relt   *relt.Relt
	log    definition.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewReltHeartbeatTransport joins the multicast group identified by
// groupName (conventionally the directory prefix, shared by every
// peer in the mutual-exclusion set).
func NewReltHeartbeatTransport(selfName, groupName string, log definition.Logger) (*ReltHeartbeatTransport, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = selfName
	conf.Exchange = relt.GroupAddress(groupName)
	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ReltHeartbeatTransport{
		group:  groupName,
		relt:   r,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (t *ReltHeartbeatTransport) Start(onHeartbeat func(from types.PeerId)) error {
	listener, err := t.relt.Consume()
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-t.ctx.Done():
				return
			case recv, ok := <-listener:
				if !ok {
					return
				}
				if recv.Error != nil {
					t.log.Warnf("heartbeat transport receive error: %v", recv.Error)
					continue
				}
				var envelope heartbeatEnvelope
				if err := json.Unmarshal(recv.Data, &envelope); err != nil {
					t.log.Warnf("heartbeat transport malformed payload from %s: %v", recv.Origin, err)
					continue
				}
				onHeartbeat(envelope.From)
			}
		}
	}()
	return nil
}

func (t *ReltHeartbeatTransport) Broadcast(self types.PeerId) error {
	data, err := json.Marshal(heartbeatEnvelope{From: self})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(t.ctx, 2*time.Second)
	defer cancel()
	return t.relt.Broadcast(ctx, relt.Send{
		Address: relt.GroupAddress(t.group),
		Data:    data,
	})
}

func (t *ReltHeartbeatTransport) Close() error {
	t.cancel()
	return t.relt.Close()
}
