package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results.
const (
	ResultHitLocal = "hit_local"
	ResultHitStore = "hit_store"
	ResultMiss     = "miss"
	ResultDisabled = "disabled"
	ResultError    = "error"
)

// DefaultNamespace prefixes every collector name.
const DefaultNamespace = "dyncache"

// Metrics holds the dynamic cache collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookups       *prometheus.CounterVec
	writes        prometheus.Counter
	writeErrors   prometheus.Counter
	invalidations prometheus.Counter
	evictedKeys   prometheus.Counter
	prunedKeys    prometheus.Counter
	renders       prometheus.Histogram
	httpLatency   *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
// It panics if a collector with the same name is already registered.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Fragments written to the store.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Fragment writes that failed.",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_invalidations_total",
			Help:      "Tag invalidations handled.",
		}),
		evictedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_keys_total",
			Help:      "Cache keys removed by tag invalidation.",
		}),
		prunedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_tag_keys_total",
			Help:      "Expired keys dropped from the tag index.",
		}),
		renders: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent producing values on cache misses.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP latency by method, status code and cache result.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "status_code", "cache"}),
	}

	reg.MustRegister(
		m.lookups,
		m.writes,
		m.writeErrors,
		m.invalidations,
		m.evictedKeys,
		m.prunedKeys,
		m.renders,
		m.httpLatency,
	)

	return m
}

// Lookup counts a cache read with the given result.
func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

// Write counts a fragment write, successful or not.
func (m *Metrics) Write(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.writeErrors.Inc()
		return
	}
	m.writes.Inc()
}

// Invalidated counts a handled tag invalidation and the keys it removed.
func (m *Metrics) Invalidated(keys int) {
	if m == nil {
		return
	}
	m.invalidations.Inc()
	m.evictedKeys.Add(float64(keys))
}

// Pruned counts keys dropped from the tag index.
func (m *Metrics) Pruned(keys int) {
	if m == nil {
		return
	}
	m.prunedKeys.Add(float64(keys))
}

// Rendered observes how long a miss took to produce its value.
func (m *Metrics) Rendered(d time.Duration) {
	if m == nil {
		return
	}
	m.renders.Observe(d.Seconds())
}

// Handler exposes the collectors of g for Prometheus to scrape.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Middleware measures request latency. The cache label is taken from the
// X-Cache response header set by the response cache.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		cache := rec.Header().Get("X-Cache")
		if cache == "" {
			cache = "BYPASS"
		}
		m.httpLatency.
			WithLabelValues(r.Method, strconv.Itoa(rec.statusCode), cache).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
