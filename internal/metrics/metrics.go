package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry with the service's instrumentation: HTTP
// server counters, pipeline stage counters, and ERP connector outcomes.
// A single instance is shared by the server and worker entry points.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	submissionsTotal     *prometheus.CounterVec
	classificationsTotal *prometheus.CounterVec
	matchesTotal         *prometheus.CounterVec
	gateDecisionsTotal   *prometheus.CounterVec
	transitionsTotal     *prometheus.CounterVec
	pipelineDuration     *prometheus.HistogramVec
	erpCallsTotal        *prometheus.CounterVec
	queueLag             prometheus.Histogram
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "courier",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: labels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "courier",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "courier",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: labels,
		},
	)
	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "courier",
			Subsystem:   "pipeline",
			Name:        "submissions_total",
			Help:        "Total documents accepted for processing by source.",
			ConstLabels: labels,
		},
		[]string{"source"},
	)
	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "courier",
			Subsystem:   "pipeline",
			Name:        "classifications_total",
			Help:        "Total classification outcomes by method and resulting type.",
			ConstLabels: labels,
		},
		[]string{"method", "doc_type"},
	)
	matchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "courier",
			Subsystem:   "pipeline",
			Name:        "matches_total",
			Help:        "Total party match outcomes by method.",
			ConstLabels: labels,
		},
		[]string{"method"},
	)
	gateDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "courier",
			Subsystem:   "pipeline",
			Name:        "gate_decisions_total",
			Help:        "Total automation gate decisions by action and document type.",
			ConstLabels: labels,
		},
		[]string{"action", "doc_type"},
	)
	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "courier",
			Subsystem:   "pipeline",
			Name:        "transitions_total",
			Help:        "Total workflow transitions by document type and event.",
			ConstLabels: labels,
		},
		[]string{"doc_type", "event"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "courier",
			Subsystem:   "pipeline",
			Name:        "duration_seconds",
			Help:        "Intake pipeline duration in seconds by outcome.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		},
		[]string{"status"},
	)
	erpCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "courier",
			Subsystem:   "erp",
			Name:        "calls_total",
			Help:        "Total ERP connector calls by operation and outcome.",
			ConstLabels: labels,
		},
		[]string{"operation", "status"},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "courier",
			Subsystem:   "queue",
			Name:        "lag_seconds",
			Help:        "Delay between intake message publication and processing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: labels,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		submissionsTotal,
		classificationsTotal,
		matchesTotal,
		gateDecisionsTotal,
		transitionsTotal,
		pipelineDuration,
		erpCallsTotal,
		queueLag,
	)

	return &Metrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		submissionsTotal:     submissionsTotal,
		classificationsTotal: classificationsTotal,
		matchesTotal:         matchesTotal,
		gateDecisionsTotal:   gateDecisionsTotal,
		transitionsTotal:     transitionsTotal,
		pipelineDuration:     pipelineDuration,
		erpCallsTotal:        erpCallsTotal,
		queueLag:             queueLag,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments request totals, durations, and in-flight count. Path
// labels are normalized so per-document routes do not explode cardinality.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			m.requestInFlight.Inc()
			defer m.requestInFlight.Dec()

			next.ServeHTTP(rec, r)

			m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

func normalizePath(path string) string {
	for _, prefix := range []string{"/api/documents/", "/api/parties/"} {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return prefix + "{id}" + rest[idx:]
		}
		return prefix + "{id}"
	}
	return path
}

func (m *Metrics) RecordSubmission(source string) {
	if source == "" {
		source = "unknown"
	}
	m.submissionsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordClassification(method, docType string) {
	m.classificationsTotal.WithLabelValues(orUnknown(method), orUnknown(docType)).Inc()
}

func (m *Metrics) RecordMatch(method string) {
	m.matchesTotal.WithLabelValues(orUnknown(method)).Inc()
}

func (m *Metrics) RecordGateDecision(action, docType string) {
	m.gateDecisionsTotal.WithLabelValues(orUnknown(action), orUnknown(docType)).Inc()
}

func (m *Metrics) RecordTransition(docType, event string) {
	m.transitionsTotal.WithLabelValues(orUnknown(docType), orUnknown(event)).Inc()
}

func (m *Metrics) ObservePipeline(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.pipelineDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordERPCall(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.erpCallsTotal.WithLabelValues(orUnknown(operation), status).Inc()
}

func (m *Metrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
