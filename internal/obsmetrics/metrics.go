// Package obsmetrics exposes the medium's Prometheus metrics: wave
// throughput, channel fan-out, circuit-breaker state, and task-pool
// saturation, all scraped through a promhttp handler.
//
// The collectors are registered at init, but no package in this module
// records into them: the broker, reliability, and task-pool code never
// touch obsmetrics, and the only update is cmd/medium setting
// ActiveChannels to 0 at startup.
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WavesEmittedTotal counts successful broker.Emit calls.
	WavesEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medium_waves_emitted_total",
		Help: "Total number of waves successfully emitted through the broker.",
	})

	// WavesDroppedTotal counts waves short-circuited by emit (exhausted
	// hops or invalid amplitude), by reason.
	WavesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medium_waves_dropped_total",
		Help: "Total number of waves silently dropped during emit, by reason.",
	}, []string{"reason"})

	// WavesRejectedTotal counts emits that returned a typed error, by
	// error class.
	WavesRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medium_waves_rejected_total",
		Help: "Total number of emits that failed validation or authorization, by error class.",
	}, []string{"error"})

	// ActiveChannels reports the registry's current entry count.
	ActiveChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "medium_active_channels",
		Help: "Current number of channel registry entries.",
	})

	// SubscriberLagTotal counts dropped-for-lag deliveries, by channel.
	SubscriberLagTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medium_subscriber_lag_total",
		Help: "Total number of waves dropped for a lagging subscriber, by channel.",
	}, []string{"channel"})

	// EmitDuration tracks broker.Emit latency.
	EmitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "medium_emit_duration_seconds",
		Help:    "Distribution of broker.Emit call latency.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// TransportPublishFailuresTotal counts Transmission errors returned
	// from the transport backend.
	TransportPublishFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medium_transport_publish_failures_total",
		Help: "Total number of transport publish failures.",
	})

	// CircuitBreakerState reports 0 (closed), 1 (half_open), or 2 (open)
	// per named breaker.
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "medium_circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=half_open, 2=open), by breaker name.",
	}, []string{"breaker"})

	// TaskPoolInflight reports current in-flight task count per pool.
	TaskPoolInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "medium_task_pool_inflight",
		Help: "Current number of in-flight tasks, by pool name.",
	}, []string{"pool"})

	// TaskPoolPanicsTotal counts panics recovered inside a task pool.
	TaskPoolPanicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medium_task_pool_panics_total",
		Help: "Total number of panics recovered inside a task pool, by pool name.",
	}, []string{"pool"})
)

func init() {
	prometheus.MustRegister(
		WavesEmittedTotal,
		WavesDroppedTotal,
		WavesRejectedTotal,
		ActiveChannels,
		SubscriberLagTotal,
		EmitDuration,
		TransportPublishFailuresTotal,
		CircuitBreakerState,
		TaskPoolInflight,
		TaskPoolPanicsTotal,
	)
}

// CircuitStateValue maps a breaker's State() string to the gauge encoding
// CircuitBreakerState uses.
func CircuitStateValue(state string) float64 {
	switch state {
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// Handler returns the promhttp handler the metrics server mounts at
// /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
