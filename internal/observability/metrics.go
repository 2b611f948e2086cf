package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	scriptInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickbridge",
			Subsystem: "runtime",
			Name:      "invocations_total",
			Help:      "Script invocations by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)
	scriptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tickbridge",
			Subsystem: "runtime",
			Name:      "invocation_duration_seconds",
			Help:      "Script invocation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy", "outcome"},
	)
	runtimeSpawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickbridge",
			Subsystem: "runtime",
			Name:      "spawns_total",
			Help:      "Runtime processes spawned, by strategy.",
		},
		[]string{"strategy"},
	)
	commandsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickbridge",
			Subsystem: "apply",
			Name:      "commands_total",
			Help:      "Commands applied to the host model, by op.",
		},
		[]string{"op"},
	)
	commandsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickbridge",
			Subsystem: "apply",
			Name:      "skips_total",
			Help:      "Commands skipped during apply, by reason.",
		},
		[]string{"reason"},
	)
	bridgeTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickbridge",
			Subsystem: "bridge",
			Name:      "ticks_total",
			Help:      "Controller executions by outcome.",
		},
		[]string{"controller", "outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tickbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin API requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tickbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			scriptInvocations,
			scriptDuration,
			runtimeSpawns,
			commandsApplied,
			commandsSkipped,
			bridgeTicks,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordInvocation(strategy, outcome string, duration time.Duration) {
	RegisterMetrics()
	scriptInvocations.WithLabelValues(strategy, outcome).Inc()
	scriptDuration.WithLabelValues(strategy, outcome).Observe(duration.Seconds())
}

func RecordRuntimeSpawn(strategy string) {
	RegisterMetrics()
	runtimeSpawns.WithLabelValues(strategy).Inc()
}

func RecordCommandApplied(op string) {
	RegisterMetrics()
	commandsApplied.WithLabelValues(op).Inc()
}

func RecordCommandSkipped(reason string) {
	RegisterMetrics()
	commandsSkipped.WithLabelValues(reason).Inc()
}

func RecordTick(controller, outcome string) {
	RegisterMetrics()
	bridgeTicks.WithLabelValues(controller, outcome).Inc()
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}
