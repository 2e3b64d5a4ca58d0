package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-shardgossip/metrics"
)

const (
	namespace  = "server"
	protoLabel = "protocol"
)

var (
	targetQueue = metrics.NewGauge(
		"target_queue",
		namespace,
		"target size of the per peer queue",
		[]string{protoLabel},
	)
	queue = metrics.NewGauge(
		"queue",
		namespace,
		"size of the last updated per peer queue",
		[]string{protoLabel},
	)
	targetRps = metrics.NewGauge(
		"rps",
		namespace,
		"target incoming messages per second",
		[]string{protoLabel},
	)
	messages = metrics.NewCounter(
		"messages",
		namespace,
		"incoming messages counter",
		[]string{protoLabel, "state"},
	)
	sent = metrics.NewCounter(
		"sent",
		namespace,
		"outgoing messages counter",
		[]string{protoLabel, "result"},
	)
	clientLatency = metrics.NewHistogramWithBuckets(
		"client_latency_seconds",
		namespace,
		"latency of writing a message",
		[]string{protoLabel, "result"},
		prometheus.ExponentialBuckets(0.0001, 2, 16),
	)
	serverLatency = metrics.NewHistogramWithBuckets(
		"server_latency_seconds",
		namespace,
		"latency of handling a message",
		[]string{protoLabel},
		prometheus.ExponentialBuckets(0.0001, 2, 16),
	)
)

func newTracker(protocol string) *tracker {
	return &tracker{
		targetQueue:          targetQueue.WithLabelValues(protocol),
		queue:                queue.WithLabelValues(protocol),
		targetRps:            targetRps.WithLabelValues(protocol),
		accepted:             messages.WithLabelValues(protocol, "accepted"),
		dropped:              messages.WithLabelValues(protocol, "dropped"),
		oversized:            messages.WithLabelValues(protocol, "oversized"),
		completed:            messages.WithLabelValues(protocol, "completed"),
		failed:               messages.WithLabelValues(protocol, "failed"),
		clientSucceeded:      sent.WithLabelValues(protocol, "success"),
		clientFailed:         sent.WithLabelValues(protocol, "failure"),
		serverLatency:        serverLatency.WithLabelValues(protocol),
		clientLatency:        clientLatency.WithLabelValues(protocol, "success"),
		clientLatencyFailure: clientLatency.WithLabelValues(protocol, "failure"),
	}
}

type tracker struct {
	targetQueue                         prometheus.Gauge
	queue                               prometheus.Gauge
	targetRps                           prometheus.Gauge
	accepted                            prometheus.Counter
	dropped                             prometheus.Counter
	oversized                           prometheus.Counter
	completed                           prometheus.Counter
	failed                              prometheus.Counter
	clientSucceeded                     prometheus.Counter
	clientFailed                        prometheus.Counter
	serverLatency                       prometheus.Observer
	clientLatency, clientLatencyFailure prometheus.Observer
}
