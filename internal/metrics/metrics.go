// Package metrics exposes Prometheus collectors for the HTTP surface, the
// database, background jobs and marketplace activity.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exitlane"

var (
	// Registry holds the application collectors
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	dbQueries = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Duration of SurrealDB round trips.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"op", "success"})

	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Total number of background job runs.",
	}, []string{"job", "success"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "run_duration_seconds",
		Help:      "Duration of background job runs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"job"})

	bidsPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "marketplace",
		Name:      "bids_placed_total",
		Help:      "Offers and auction bids placed.",
	}, []string{"kind"})

	escrowTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "marketplace",
		Name:      "escrow_transitions_total",
		Help:      "Escrow status transitions by target status.",
	}, []string{"status"})

	paymentFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "failures_total",
		Help:      "Payment processor failures by operation.",
	}, []string{"op"})

	emailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "email",
		Name:      "sent_total",
		Help:      "Transactional emails by template and outcome.",
	}, []string{"template", "success"})

	auctionsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "marketplace",
		Name:      "auctions_finalized_total",
		Help:      "Closed Dutch auctions by outcome.",
	}, []string{"outcome"})

	webhooksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "webhooks_total",
		Help:      "Processor webhook events by type and whether they were handled.",
	}, []string{"type", "handled"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		dbQueries,
		jobRuns,
		jobDuration,
		bidsPlaced,
		escrowTransitions,
		paymentFailures,
		emailsSent,
		auctionsFinalized,
		webhooksReceived,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument wraps next with request count, latency and in-flight metrics
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// ObserveQuery matches database.QueryObserver
func ObserveQuery(op string, elapsed time.Duration, err error) {
	dbQueries.WithLabelValues(op, strconv.FormatBool(err == nil)).Observe(elapsed.Seconds())
}

// RecordJobRun records one background job execution
func RecordJobRun(job string, elapsed time.Duration, err error) {
	if job == "" {
		job = "unknown"
	}
	jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
	jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// RecordBid counts a placed bid of kind buy_now or auction
func RecordBid(kind string) {
	bidsPlaced.WithLabelValues(kind).Inc()
}

// RecordEscrowTransition counts an escrow entering status
func RecordEscrowTransition(status string) {
	escrowTransitions.WithLabelValues(status).Inc()
}

// RecordPaymentFailure counts a failed processor call
func RecordPaymentFailure(op string) {
	paymentFailures.WithLabelValues(op).Inc()
}

// RecordEmail counts a delivered or failed email
func RecordEmail(template string, err error) {
	emailsSent.WithLabelValues(template, strconv.FormatBool(err == nil)).Inc()
}

// RecordAuctionFinalized counts a closed auction, outcome sold or unsold
func RecordAuctionFinalized(outcome string) {
	auctionsFinalized.WithLabelValues(outcome).Inc()
}

// RecordWebhook counts a received webhook event
func RecordWebhook(eventType string, handled bool) {
	webhooksReceived.WithLabelValues(eventType, strconv.FormatBool(handled)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streams working through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// canonicalPath collapses identifiers so label cardinality stays bounded:
// /v1/listings/product:abc/bids -> /v1/listings/:id/bids
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 4 {
		parts = parts[:4]
	}
	for i, p := range parts {
		if i > 0 && looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(seg string) bool {
	if strings.Contains(seg, ":") {
		return true
	}
	if len(seg) < 8 {
		return false
	}
	digits := 0
	for _, c := range seg {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	return digits > 0
}
