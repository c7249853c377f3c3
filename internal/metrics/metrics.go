// Package metrics holds the prometheus collectors for the HTTP surface, the
// blob store, question generation and the orphan sweep.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "conjugar"

// Metrics owns a registry and every collector registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	blobOps     *prometheus.CounterVec
	blobLatency *prometheus.HistogramVec

	generations     *prometheus.CounterVec
	generationTime  prometheus.Histogram
	droppedQuestion prometheus.Counter

	sweepRuns    *prometheus.CounterVec
	sweepDeleted prometheus.Counter
	sweepPruned  prometheus.Counter
}

// New creates a registry with process and Go runtime collectors plus the
// application collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests",
		}),

		blobOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_operations_total",
			Help:      "Blob store operations by backend, operation and result",
		}, []string{"backend", "op", "result"}),
		blobLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blob_operation_duration_seconds",
			Help:      "Duration of blob store operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"backend", "op"}),

		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Question set generation attempts by outcome",
		}, []string{"outcome"}),
		generationTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end duration of question set generation",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		droppedQuestion: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_dropped_questions_total",
			Help:      "Generated questions discarded by validation",
		}),

		sweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Orphan sweep runs by result",
		}, []string{"result"}),
		sweepDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_orphans_deleted_total",
			Help:      "Orphaned set blobs deleted by the sweep",
		}),
		sweepPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_dangling_pruned_total",
			Help:      "Index entries without a set blob removed by the sweep",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBlobOp implements blob.Observer.
func (m *Metrics) ObserveBlobOp(backend, op, result string, elapsed time.Duration) {
	m.blobOps.WithLabelValues(backend, op, result).Inc()
	m.blobLatency.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

// ObserveGeneration implements generation.Observer.
func (m *Metrics) ObserveGeneration(outcome string, dropped int, elapsed time.Duration) {
	m.generations.WithLabelValues(outcome).Inc()
	m.generationTime.Observe(elapsed.Seconds())
	if dropped > 0 {
		m.droppedQuestion.Add(float64(dropped))
	}
}

// ObserveSweep records one sweep run.
func (m *Metrics) ObserveSweep(deleted, pruned int, err error) {
	if err != nil {
		m.sweepRuns.WithLabelValues("error").Inc()
	} else {
		m.sweepRuns.WithLabelValues("ok").Inc()
	}
	m.sweepDeleted.Add(float64(deleted))
	m.sweepPruned.Add(float64(pruned))
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics labelled by the matched chi route
// pattern, so ids in query strings or paths never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
