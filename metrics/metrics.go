package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds the process counters for the cache and rate-limit layer.
// All recording methods are nil-safe so components can run without metrics
// in tests.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	invalidations     *prometheus.CounterVec
	rateAllowed       *prometheus.CounterVec
	rateDenied        *prometheus.CounterVec
	rateFallback      *prometheus.CounterVec
	webhookDuplicates prometheus.Counter
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by key namespace.",
		}, []string{"namespace"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by key namespace.",
		}, []string{"namespace"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Invalidation dispatches by change kind.",
		}, []string{"kind"}),
		rateAllowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_allowed_total",
			Help:      "Allowed requests by policy.",
		}, []string{"policy"}),
		rateDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_denied_total",
			Help:      "Denied requests by policy.",
		}, []string{"policy"}),
		rateFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_fallback_total",
			Help:      "Decisions taken by the local fallback counter by policy.",
		}, []string{"policy"}),
		webhookDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_duplicates_total",
			Help:      "Webhook deliveries short-circuited as duplicates.",
		}),
	}

	registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.invalidations,
		m.rateAllowed,
		m.rateDenied,
		m.rateFallback,
		m.webhookDuplicates,
	)

	return m
}

func (m *Metrics) CacheHit(namespace string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(namespace).Inc()
}

func (m *Metrics) CacheMiss(namespace string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(namespace).Inc()
}

func (m *Metrics) Invalidation(kind string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(kind).Inc()
}

func (m *Metrics) RateAllowed(policy string) {
	if m == nil {
		return
	}
	m.rateAllowed.WithLabelValues(policy).Inc()
}

func (m *Metrics) RateDenied(policy string) {
	if m == nil {
		return
	}
	m.rateDenied.WithLabelValues(policy).Inc()
}

func (m *Metrics) RateFallback(policy string) {
	if m == nil {
		return
	}
	m.rateFallback.WithLabelValues(policy).Inc()
}

func (m *Metrics) WebhookDuplicate() {
	if m == nil {
		return
	}
	m.webhookDuplicates.Inc()
}

// Handler exposes the registry as a fasthttp handler for the /metrics route.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}),
	)
}
