package gossip

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-shardgossip/metrics"
)

const subsystem = "gossip"

var (
	roundsFinished = metrics.NewCounter(
		"rounds",
		subsystem,
		"Number of finished rounds by gossip type, role and outcome",
		[]string{"type", "role", "outcome"},
	)
	activeRounds = metrics.NewGauge(
		"active_rounds",
		subsystem,
		"Number of live rounds",
		[]string{"type"},
	)
	roundDuration = metrics.NewHistogramWithBuckets(
		"round_duration_seconds",
		subsystem,
		"Duration of complete rounds in seconds",
		[]string{"type"},
		prometheus.ExponentialBuckets(0.001, 2, 16),
	)
	itemsExchanged = metrics.NewCounter(
		"items",
		subsystem,
		"Number of items exchanged by kind and direction",
		[]string{"kind", "direction"},
	)
	bloomSize = metrics.NewHistogramWithBuckets(
		"bloom_size_bytes",
		subsystem,
		"Size of the bloom filters sent",
		[]string{"kind"},
		prometheus.ExponentialBuckets(64, 2, 16),
	)
	hostFailures = metrics.NewCounter(
		"host_failures",
		subsystem,
		"Number of fatal host failures",
		[]string{"type"},
	)
	protocolErrors = metrics.NewCounter(
		"protocol_errors",
		subsystem,
		"Number of protocol errors by message kind",
		[]string{"kind"},
	)

	agentsSent     = itemsExchanged.WithLabelValues("agent", "sent")
	agentsReceived = itemsExchanged.WithLabelValues("agent", "received")
	agentsRejected = itemsExchanged.WithLabelValues("agent", "rejected")
	opsSent        = itemsExchanged.WithLabelValues("op", "sent")
	opsReceived    = itemsExchanged.WithLabelValues("op", "received")
	opsRejected    = itemsExchanged.WithLabelValues("op", "rejected")
	agentBloomSize = bloomSize.WithLabelValues("agent")
	opsBloomSize   = bloomSize.WithLabelValues("op")
)
