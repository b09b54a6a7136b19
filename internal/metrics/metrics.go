package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carecoins",
	Subsystem: "ledger",
	Name:      "entries_total",
	Help:      "Ledger entries appended, by kind.",
}, []string{"kind"})

var LedgerVolume = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carecoins",
	Subsystem: "ledger",
	Name:      "volume_total",
	Help:      "CareCoins moved, by entry kind.",
}, []string{"kind"})

var LedgerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carecoins",
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Ledger appends rejected, by error code.",
}, []string{"code"})

var BridgeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carecoins",
	Subsystem: "bridge",
	Name:      "transitions_total",
	Help:      "Bridge transaction state transitions, by target status and error code.",
}, []string{"status", "code"})

var BridgeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "carecoins",
	Subsystem: "bridge",
	Name:      "queue_depth",
	Help:      "Bridge jobs waiting for a worker.",
})

var BridgeConfirmSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "carecoins",
	Subsystem: "bridge",
	Name:      "confirm_seconds",
	Help:      "Time from submission to receipt.",
	Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
})

var Payouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carecoins",
	Subsystem: "payout",
	Name:      "requests_total",
	Help:      "Payout requests, by kind and resulting status.",
}, []string{"kind", "status"})

var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carecoins",
	Subsystem: "jobs",
	Name:      "runs_total",
	Help:      "Scheduled job runs, by job and outcome.",
}, []string{"job", "outcome"})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "carecoins",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route pattern and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
