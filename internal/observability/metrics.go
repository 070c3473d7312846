package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "headctl"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	busMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "messages_total",
			Help:      "Inbound bus messages by outcome.",
		},
		[]string{"outcome"},
	)
	busErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "transport_errors_total",
			Help:      "Transport errors observed by the command channel.",
		},
		[]string{"escalated"},
	)
	busState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "state",
			Help:      "Current command channel session state (1 for the active state).",
		},
		[]string{"state"},
	)
	commandsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "commands_total",
			Help:      "Dispatched commands by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	renderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "render_failures_total",
			Help:      "Built-in scene frames that failed to render.",
		},
		[]string{"scene"},
	)
	runningScenes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "display",
			Name:      "running_scenes",
			Help:      "Scenes currently registered with the display host.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			busMessages,
			busErrors,
			busState,
			commandsDispatched,
			renderFailures,
			runningScenes,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordBusMessage counts one inbound message as forwarded, decode_error or unknown_topic.
func RecordBusMessage(outcome string) {
	RegisterMetrics()
	busMessages.WithLabelValues(outcome).Inc()
}

func RecordBusTransportError(escalated bool) {
	RegisterMetrics()
	busErrors.WithLabelValues(strconv.FormatBool(escalated)).Inc()
}

// SetBusState marks state as the only active session state.
func SetBusState(state string) {
	RegisterMetrics()
	busState.Reset()
	busState.WithLabelValues(state).Set(1)
}

func RecordCommand(kind, outcome string) {
	RegisterMetrics()
	commandsDispatched.WithLabelValues(kind, outcome).Inc()
}

func RecordRenderFailure(scene string) {
	RegisterMetrics()
	renderFailures.WithLabelValues(scene).Inc()
}

func SetRunningScenes(n int) {
	RegisterMetrics()
	runningScenes.Set(float64(n))
}
