// Package metrics exposes Prometheus counters for the reconciler.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/plugin/kprom"
)

const namespace = "reconciler"

// Metrics owns a private registry so tests can create as many instances as they like.
type Metrics struct {
	registry    *prometheus.Registry
	events      *prometheus.CounterVec
	initiations *prometheus.CounterVec
	captures    *prometheus.CounterVec
	callbacks   *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// New creates the reconciler metrics and registers the Go runtime collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Gateway events handled by the reconciliation engine, by disposition.",
		}, []string{"gateway", "disposition"}),
		initiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "initiations_total",
			Help:      "Payment initiations, by gateway and result.",
		}, []string{"gateway", "result"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Order capture attempts, by result.",
		}, []string{"result"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Inbound gateway notifications, by gateway and HTTP status.",
		}, []string{"gateway", "status"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_events_published_total",
			Help:      "Status change events handed to the publisher, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.events, m.initiations, m.captures, m.callbacks, m.published)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// KafkaHooks returns franz-go client hooks that report into this registry
func (m *Metrics) KafkaHooks() *kprom.Metrics {
	return kprom.NewMetrics(namespace, kprom.Registry(m.registry))
}

func (m *Metrics) EventHandled(gateway, disposition string) {
	m.events.WithLabelValues(gateway, disposition).Inc()
}

func (m *Metrics) InitiationFinished(gateway, result string) {
	m.initiations.WithLabelValues(gateway, result).Inc()
}

func (m *Metrics) CaptureFinished(result string) {
	m.captures.WithLabelValues(result).Inc()
}

func (m *Metrics) CallbackAnswered(gateway string, status int) {
	m.callbacks.WithLabelValues(gateway, strconv.Itoa(status)).Inc()
}

func (m *Metrics) StatusEventPublished(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(result).Inc()
}
