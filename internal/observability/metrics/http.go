package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal           *prometheus.CounterVec
	queryModeTotal       *prometheus.CounterVec
	queryDuration        *prometheus.HistogramVec
	retrievedChunks      *prometheus.HistogramVec
	degradedBranchTotal  *prometheus.CounterVec
	groundingTotal       *prometheus.CounterVec
	feedbackTotal        *prometheus.CounterVec
	llmTokensTotal       *prometheus.CounterVec
	rateLimitRejectTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kb",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered queries.",
		},
		[]string{"service"},
	)
	queryModeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "query",
			Name:      "mode_requests_total",
			Help:      "Total answered queries by retrieval mode.",
		},
		[]string{"service", "mode"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Answer pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kb",
			Subsystem: "query",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 50},
		},
		[]string{"service"},
	)
	degradedBranchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "retrieval",
			Name:      "degraded_branch_total",
			Help:      "Hybrid searches that served with one failed branch.",
		},
		[]string{"service", "branch"},
	)
	groundingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "grounding",
			Name:      "verdicts_total",
			Help:      "Grounding verification verdicts by outcome.",
		},
		[]string{"service", "verdict"},
	)
	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "feedback",
			Name:      "records_total",
			Help:      "Feedback records created from correction queries.",
		},
		[]string{"service", "signal"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by direction.",
		},
		[]string{"service", "direction"},
	)
	rateLimitRejectTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kb",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryModeTotal,
		queryDuration,
		retrievedChunks,
		degradedBranchTotal,
		groundingTotal,
		feedbackTotal,
		llmTokensTotal,
		rateLimitRejectTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		queryTotal:           queryTotal,
		queryModeTotal:       queryModeTotal,
		queryDuration:        queryDuration,
		retrievedChunks:      retrievedChunks,
		degradedBranchTotal:  degradedBranchTotal,
		groundingTotal:       groundingTotal,
		feedbackTotal:        feedbackTotal,
		llmTokensTotal:       llmTokensTotal,
		rateLimitRejectTotal: rateLimitRejectTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/traces/"):
		return "/v1/traces/{trace_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuery(service, mode string, chunkCount int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.queryTotal.WithLabelValues(service).Inc()
	m.queryModeTotal.WithLabelValues(service, mode).Inc()
	m.retrievedChunks.WithLabelValues(service).Observe(float64(chunkCount))
	m.queryDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordDegradedBranch(service, branch string) {
	if branch == "" {
		branch = "unknown"
	}
	m.degradedBranchTotal.WithLabelValues(service, branch).Inc()
}

func (m *HTTPServerMetrics) RecordGroundingVerdict(service string, grounded bool, checkFailed bool) {
	verdict := "grounded"
	switch {
	case checkFailed:
		verdict = "check_failed"
	case !grounded:
		verdict = "ungrounded"
	}
	m.groundingTotal.WithLabelValues(service, verdict).Inc()
}

func (m *HTTPServerMetrics) RecordFeedback(service, signal string) {
	if signal == "" {
		signal = "unknown"
	}
	m.feedbackTotal.WithLabelValues(service, signal).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out").Add(float64(completionTokens))
	}
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitRejectTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
