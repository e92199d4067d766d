// Package metrics exposes the ambient observability of a running TracE2E
// node: RPC latency, reservation/notification queue depth, and compliance
// decision outcomes. These are instrumentation only — no metric here feeds
// back into a decision — following the same separation teleport's
// lib/backend.Reporter draws between a component's real work and the
// prometheus counters/histograms wrapped around it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RPCLatency buckets every P2M/M2M/O2M unary call by service/method and
	// grpc status code.
	RPCLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trace2e",
		Subsystem: "rpc",
		Name:      "latency_seconds",
		Help:      "Latency of P2M/M2M/O2M unary calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "code"})

	// ComplianceDecisions counts io_request outcomes by direction and denial
	// reason ("allow" for an allow, "error" when no decision was reached).
	ComplianceDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trace2e",
		Subsystem: "compliance",
		Name:      "decisions_total",
		Help:      "io_request decisions by direction and reason.",
	}, []string{"direction", "reason"})

	// ReservationQueueDepth is the number of callers currently waiting on a
	// sequencer reservation, per resource kind.
	ReservationQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "trace2e",
		Subsystem: "sequencer",
		Name:      "queue_depth",
		Help:      "Pending reservation waiters per resource kind.",
	}, []string{"kind"})

	// ConsentQueueDepth is the number of pending notifications buffered in a
	// resource's consent channel.
	ConsentQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "trace2e",
		Subsystem: "consent",
		Name:      "notification_queue_depth",
		Help:      "Pending consent notifications per armed resource.",
	}, []string{"resource"})
)

func init() {
	prometheus.MustRegister(RPCLatency, ComplianceDecisions, ReservationQueueDepth, ConsentQueueDepth)
}

// Handler serves the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
