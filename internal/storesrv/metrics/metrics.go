// Package metrics holds the Prometheus collectors of the store server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vicinaehq/backend/internal/common/httpx"
)

const namespace = "vicinae_store"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry prometheus.Gatherer

	publishesTotal        *prometheus.CounterVec
	publishDuration       prometheus.Histogram
	downloadsTotal        *prometheus.CounterVec
	downloadsUnknown      prometheus.Counter
	dedupTrackedExtension prometheus.Gauge
	storageDuration       *prometheus.HistogramVec
	storageErrors         *prometheus.CounterVec
	trendingRuns          *prometheus.CounterVec
	trendingExtensions    prometheus.Gauge
	httpDuration          *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry that also carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		registry: gatherer,
		publishesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Extension publish attempts by outcome",
		}, []string{"outcome"}),
		publishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing an extension archive",
			Buckets:   prometheus.DefBuckets,
		}),
		downloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Served downloads, split by whether they were counted",
		}, []string{"counted"}),
		downloadsUnknown: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_unknown_client_total",
			Help:      "Downloads from requests without any client identity header",
		}),
		dedupTrackedExtension: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "download_dedup_tracked_extensions",
			Help:      "Extensions currently held in the download dedup cache",
		}),
		storageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Content store operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		storageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Content store operations that failed",
		}, []string{"provider", "operation"}),
		trendingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trending_runs_total",
			Help:      "Trending ranker runs by outcome",
		}, []string{"outcome"}),
		trendingExtensions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trending_extensions",
			Help:      "Extensions flagged as trending by the last run",
		}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ObservePublish(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.publishesTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.publishDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveDownload(counted, unknownClient bool) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(strconv.FormatBool(counted)).Inc()
	if unknownClient {
		m.downloadsUnknown.Inc()
	}
}

func (m *Metrics) SetTrackedExtensions(n int) {
	if m == nil {
		return
	}
	m.dedupTrackedExtension.Set(float64(n))
}

func (m *Metrics) ObserveStorage(provider, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.storageDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
	if err != nil {
		m.storageErrors.WithLabelValues(provider, operation).Inc()
	}
}

func (m *Metrics) ObserveTrending(trending int, err error) {
	if m == nil {
		return
	}
	m.trendingRuns.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.trendingExtensions.Set(float64(trending))
	}
}

// Middleware records request latency labelled with the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := httpx.NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpDuration.WithLabelValues(route, r.Method, strconv.Itoa(rw.Status())).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
