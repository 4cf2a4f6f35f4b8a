package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type AuditorMetrics struct {
	registry *prometheus.Registry

	auditTotal    *prometheus.CounterVec
	auditDuration *prometheus.HistogramVec
	auditInFlight prometheus.Gauge
	queueLag      *prometheus.HistogramVec
}

func NewAuditorMetrics(service string) *AuditorMetrics {
	registry := prometheus.NewRegistry()

	auditTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "auditor",
			Name:      "trace_audit_total",
			Help:      "Total audited traces by status.",
		},
		[]string{"service", "status"},
	)
	auditDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "auditor",
			Name:      "trace_audit_duration_seconds",
			Help:      "Trace audit duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	auditInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kb",
			Subsystem: "auditor",
			Name:      "trace_audit_in_flight",
			Help:      "Number of in-flight trace audits.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "auditor",
			Name:      "queue_lag_seconds",
			Help:      "Delay between trace creation and audit start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(auditTotal, auditDuration, auditInFlight, queueLag)

	return &AuditorMetrics{
		registry:      registry,
		auditTotal:    auditTotal,
		auditDuration: auditDuration,
		auditInFlight: auditInFlight,
		queueLag:      queueLag,
	}
}

func (m *AuditorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *AuditorMetrics) StartTrace() {
	m.auditInFlight.Inc()
}

func (m *AuditorMetrics) FinishTrace(service string, duration time.Duration, err error) {
	m.auditInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.auditTotal.WithLabelValues(service, status).Inc()
	m.auditDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *AuditorMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
