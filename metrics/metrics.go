// Package metrics exports bridge activity to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
)

var (
	// Invocation metrics
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_invocations_total",
		Help: "Total number of contract invocations",
	}, []string{"method", "status"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_rejections_total",
		Help: "Total number of rejected invocations by error kind",
	}, []string{"kind"})

	// Event metrics
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_events_total",
		Help: "Total number of committed events",
	}, []string{"event"})

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

var eventNames = func() map[common.Hash]string {
	m := make(map[common.Hash]string, len(inter.Events))
	for _, name := range inter.Events {
		m[host.Topic(name)] = name
	}
	return m
}()

// Attach feeds the invocations and events of h into the collectors.
func Attach(h *host.Host) {
	h.OnInvoke(RecordInvocation)
	h.OnCommit(RecordEvent)
}

// RecordInvocation records the outcome of one invocation.
func RecordInvocation(method string, err error) {
	status := "ok"
	switch {
	case err == nil:
	case host.IsRetained(err):
		status = "retained"
	default:
		status = "rejected"
	}
	invocationsTotal.WithLabelValues(method, status).Inc()
	if err != nil {
		rejectionsTotal.WithLabelValues(errs.KindOf(err).String()).Inc()
	}
}

// RecordEvent records one committed event.
func RecordEvent(log *types.Log) {
	name := "unknown"
	if len(log.Topics) > 0 {
		if n, ok := eventNames[log.Topics[0]]; ok {
			name = n
		}
	}
	eventsTotal.WithLabelValues(name).Inc()
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
