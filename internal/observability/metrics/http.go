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

const namespace = "docs_assistant"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalRequestsTotal *prometheus.CounterVec
	retrievalNoContext     *prometheus.CounterVec
	retrievalSources       *prometheus.HistogramVec
	retrievalDuration      *prometheus.HistogramVec
	collectionSearchTotal  *prometheus.CounterVec
	collectionDocuments    *prometheus.HistogramVec
	websiteFilteredTotal   *prometheus.CounterVec
	scrapeTotal            *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total successful retrieval requests by endpoint and mode.",
		},
		[]string{"service", "endpoint", "mode"},
	)
	retrievalNoContext := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total retrieval requests that returned no documents.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "sources",
			Help:      "Distribution of documents returned per retrieval request.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8},
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	collectionSearchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "collection_searches_total",
			Help:      "Per-collection searches by outcome.",
		},
		[]string{"service", "collection", "outcome"},
	)
	collectionDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "collection_documents",
			Help:      "Documents returned by one collection search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "collection"},
	)
	websiteFilteredTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "website_filtered_total",
			Help:      "Scraped website documents dropped from single-collection modes.",
		},
		[]string{"service", "collection"},
	)
	scrapeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "requests_total",
			Help:      "Web page scrapes by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalRequestsTotal,
		retrievalNoContext,
		retrievalSources,
		retrievalDuration,
		collectionSearchTotal,
		collectionDocuments,
		websiteFilteredTotal,
		scrapeTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		service:                service,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		retrievalRequestsTotal: retrievalRequestsTotal,
		retrievalNoContext:     retrievalNoContext,
		retrievalSources:       retrievalSources,
		retrievalDuration:      retrievalDuration,
		collectionSearchTotal:  collectionSearchTotal,
		collectionDocuments:    collectionDocuments,
		websiteFilteredTotal:   websiteFilteredTotal,
		scrapeTotal:            scrapeTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
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
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps the path label bounded: everything under /mcp/ is one
// series, unknown paths collapse to "other".
func normalizePath(path string) string {
	switch {
	case path == "/mcp" || strings.HasPrefix(path, "/mcp/"):
		return "/mcp"
	case strings.HasPrefix(path, "/v1/"), path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) RecordRetrieval(endpoint, mode string, sources int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.retrievalRequestsTotal.WithLabelValues(m.service, endpoint, mode).Inc()
	m.retrievalSources.WithLabelValues(m.service, endpoint).Observe(float64(sources))
	m.retrievalDuration.WithLabelValues(m.service, endpoint).Observe(duration.Seconds())
	if sources == 0 {
		m.retrievalNoContext.WithLabelValues(m.service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) ObserveCollectionSearch(collection, outcome string, docs int) {
	m.collectionSearchTotal.WithLabelValues(m.service, collection, outcome).Inc()
	if outcome == "ok" {
		m.collectionDocuments.WithLabelValues(m.service, collection).Observe(float64(docs))
	}
}

func (m *HTTPServerMetrics) ObserveWebsiteFiltered(collection string, dropped int) {
	if dropped <= 0 {
		return
	}
	m.websiteFilteredTotal.WithLabelValues(m.service, collection).Add(float64(dropped))
}

func (m *HTTPServerMetrics) ObserveScrape(outcome string) {
	m.scrapeTotal.WithLabelValues(m.service, outcome).Inc()
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
