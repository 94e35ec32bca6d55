package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Metrics records gateway activity in Prometheus.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	// HTTP surface
	responsesTotal *prometheus.CounterVec

	// Webhook and invalidation
	webhookTotal         *prometheus.CounterVec
	invalidationsTotal   *prometheus.CounterVec
	invalidationDuration *prometheus.HistogramVec

	// Preview
	previewTotal *prometheus.CounterVec

	// Sitemaps and CMS
	sitemapBuildsTotal   *prometheus.CounterVec
	sitemapBuildDuration *prometheus.HistogramVec
	sitemapURLs          *prometheus.GaugeVec
	cmsFetchTotal        *prometheus.CounterVec
	cmsFetchDuration     *prometheus.HistogramVec

	logger      *zap.Logger
	httpHandler fasthttp.RequestHandler
}

// New registers the gateway metrics on the default registry
func New(namespace string, logger *zap.Logger) *Metrics {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewWithRegistry registers the gateway metrics on registerer.
// The scrape handler gathers from registerer when it is also a Gatherer.
func NewWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	m := &Metrics{logger: logger}

	m.responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Responses by route and status code class",
		},
		[]string{"route", "status"},
	)

	m.webhookTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Revalidation webhook calls by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	m.invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "targets_total",
			Help:      "Tags and paths marked stale",
		},
		[]string{"kind"},
	)

	m.invalidationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "duration_seconds",
			Help:      "Time to apply one invalidation scope",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	m.previewTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preview",
			Name:      "requests_total",
			Help:      "Preview requests by outcome",
		},
		[]string{"outcome"},
	)

	m.sitemapBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sitemap",
			Name:      "builds_total",
			Help:      "Sitemap builds by locale, variant and outcome",
		},
		[]string{"locale", "variant", "outcome"},
	)

	m.sitemapBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sitemap",
			Name:      "build_duration_seconds",
			Help:      "Time to assemble a sitemap",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"variant"},
	)

	m.sitemapURLs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sitemap",
			Name:      "urls",
			Help:      "URLs in the last built sitemap",
		},
		[]string{"locale", "variant"},
	)

	m.cmsFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cms",
			Name:      "page_fetches_total",
			Help:      "CMS page fetches by collection and outcome",
		},
		[]string{"collection", "outcome"},
	)

	m.cmsFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cms",
			Name:      "page_fetch_duration_seconds",
			Help:      "Time to fetch one page of a CMS collection",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	registerer.MustRegister(
		m.responsesTotal,
		m.webhookTotal,
		m.invalidationsTotal,
		m.invalidationDuration,
		m.previewTotal,
		m.sitemapBuildsTotal,
		m.sitemapBuildDuration,
		m.sitemapURLs,
		m.cmsFetchTotal,
		m.cmsFetchDuration,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	m.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized", zap.String("namespace", namespace))
	return m
}

// RecordResponse counts one response by route and status class
func (m *Metrics) RecordResponse(route string, statusCode int) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(route, statusCodeRange(statusCode)).Inc()
}

// RecordWebhook counts one webhook call
func (m *Metrics) RecordWebhook(action, outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(action, outcome).Inc()
}

// RecordInvalidation records one executor run
func (m *Metrics) RecordInvalidation(tags, paths int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "partial"
	}
	m.invalidationsTotal.WithLabelValues("tag").Add(float64(tags))
	m.invalidationsTotal.WithLabelValues("path").Add(float64(paths))
	m.invalidationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordPreview counts one preview request
func (m *Metrics) RecordPreview(outcome string) {
	if m == nil {
		return
	}
	m.previewTotal.WithLabelValues(outcome).Inc()
}

// RecordSitemapBuild records one sitemap assembly
func (m *Metrics) RecordSitemapBuild(locale, variant, outcome string, urls int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sitemapBuildsTotal.WithLabelValues(locale, variant, outcome).Inc()
	m.sitemapBuildDuration.WithLabelValues(variant).Observe(duration.Seconds())
	m.sitemapURLs.WithLabelValues(locale, variant).Set(float64(urls))
}

// RecordCMSFetch records one page request to the CMS
func (m *Metrics) RecordCMSFetch(collection string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.cmsFetchTotal.WithLabelValues(collection, outcome).Inc()
	m.cmsFetchDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

// ServeHTTP serves the Prometheus scrape endpoint
func (m *Metrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	m.httpHandler(ctx)
}

func statusCodeRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	default:
		return strconv.Itoa(statusCode)
	}
}
