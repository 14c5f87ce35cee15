// Package metrics exposes the bridge's Prometheus instrumentation:
// poll cycle/publish/reconnect counters and connected-endpoint gauges.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the bridge's metric collectors behind a single
// constructor so components depend on one injected value.
type Registry struct {
	PollCycles      *prometheus.CounterVec
	PollFailures    *prometheus.CounterVec
	Publishes       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	ReconnectAttempts *prometheus.CounterVec
	ConnectedEndpoints *prometheus.GaugeVec
	Registerer      prometheus.Registerer
}

// NewRegistry creates and registers all collectors against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_poll_cycles_total",
			Help: "Completed per-device poll cycles, by protocol.",
		}, []string{"protocol"}),
		PollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_poll_failures_total",
			Help: "Poll cycles that raised a device-wide error, by protocol.",
		}, []string{"protocol"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_mqtt_publishes_total",
			Help: "Successful MQTT publishes, by broker.",
		}, []string{"broker"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_mqtt_publish_failures_total",
			Help: "Failed MQTT publishes, by broker.",
		}, []string{"broker"}),
		ReconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_reconnect_attempts_total",
			Help: "Supervisor-driven reconnect attempts, by endpoint kind.",
		}, []string{"kind"}),
		ConnectedEndpoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_connected_endpoints",
			Help: "Currently connected endpoints, by kind.",
		}, []string{"kind"}),
		Registerer: reg,
	}
	reg.MustRegister(r.PollCycles, r.PollFailures, r.Publishes, r.PublishFailures,
		r.ReconnectAttempts, r.ConnectedEndpoints)
	return r
}
