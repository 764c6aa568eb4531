// Package metrics exposes the peer's mutual-exclusion engine to
// Prometheus. Grounded on github.com/prometheus/client_golang, the
// ecosystem companion to the teacher's own github.com/prometheus/common
// dependency, and used the same way ethereum-go-ethereum and
// songwen276-bsc-bp register collectors and serve /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the mutual-exclusion engine feeds.
type Registry struct {
	registry *prometheus.Registry

	State           *prometheus.GaugeVec
	RequestsSent    prometheus.Counter
	RequestsServed  *prometheus.CounterVec
	OKsReceived     prometheus.Counter
	Heartbeats      prometheus.Counter
	LivePeers       prometheus.Gauge
	CSHoldSeconds   prometheus.Histogram
	LeaseExpiries   prometheus.Counter
	DeferredReplies prometheus.Counter
}

// NewRegistry builds and registers every collector for the given peer.
func NewRegistry(peerID string) *Registry {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"peer_id": peerID}

	r := &Registry{
		registry: registry,
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "peer_mutex",
			Name:        "state",
			Help:        "Current CS state: 0=RELEASED 1=WANTED 2=HELD.",
			ConstLabels: labels,
		}, nil),
		RequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "peer_mutex",
			Name:        "requests_sent_total",
			Help:        "Number of RequestCS invocations issued locally.",
			ConstLabels: labels,
		}),
		RequestsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "peer_mutex",
			Name:        "requests_served_total",
			Help:        "Number of inbound ReceiveRequest calls, by decision.",
			ConstLabels: labels,
		}, []string{"decision"}),
		OKsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "peer_mutex",
			Name:        "oks_received_total",
			Help:        "Number of ReceiveOK calls accepted.",
			ConstLabels: labels,
		}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "peer_mutex",
			Name:        "heartbeats_received_total",
			Help:        "Number of ReceiveHeartbeat calls accepted.",
			ConstLabels: labels,
		}),
		LivePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "peer_mutex",
			Name:        "live_peers",
			Help:        "Current count of peers considered Live by the failure detector.",
			ConstLabels: labels,
		}),
		CSHoldSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "peer_mutex",
			Name:        "cs_hold_seconds",
			Help:        "Observed duration of each HELD interval.",
			ConstLabels: labels,
			Buckets:     prometheus.LinearBuckets(1, 3, 11),
		}),
		LeaseExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "peer_mutex",
			Name:        "lease_expiries_total",
			Help:        "Number of times the bounded CS lease fired, auto-releasing.",
			ConstLabels: labels,
		}),
		DeferredReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "peer_mutex",
			Name:        "deferred_replies_sent_total",
			Help:        "Number of ReceiveOK calls sent while draining the deferred queue.",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		r.State,
		r.RequestsSent,
		r.RequestsServed,
		r.OKsReceived,
		r.Heartbeats,
		r.LivePeers,
		r.CSHoldSeconds,
		r.LeaseExpiries,
		r.DeferredReplies,
	)
	return r
}

// SetState records the CSState as its numeric encoding.
func (r *Registry) SetState(value float64) {
	r.State.WithLabelValues().Set(value)
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
