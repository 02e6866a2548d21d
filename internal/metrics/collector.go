// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the subsystem's Prometheus metrics.
// A nil *Collector is valid and turns every method into a no-op, so
// instrumentation stays optional for library users.
type Collector struct {
	extractionsTotal  *prometheus.CounterVec
	extractionSeconds *prometheus.HistogramVec
	fallbacksTotal    *prometheus.CounterVec
	tokensUsed        *prometheus.CounterVec
	tokensSaved       *prometheus.CounterVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec

	sessionsTotal    *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	sessionSeconds   prometheus.Histogram
	sessionRounds    prometheus.Histogram
	consensusScore   prometheus.Histogram
	transitionsTotal *prometheus.CounterVec
	mediationsTotal  prometheus.Counter
	eventsDropped    prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates a collector registering into reg (the default
// registerer when nil). Use a fresh prometheus.NewRegistry in tests to
// avoid duplicate-registration panics.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.extractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of extraction requests",
		},
		[]string{"kind", "source", "status"},
	)

	c.extractionSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Extraction duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind", "source"},
	)

	c.fallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_fallbacks_total",
			Help:      "Total number of degradations to the lexical fallback",
		},
		[]string{"kind", "reason"},
	)

	c.tokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens spent on semantic extraction",
		},
		[]string{"model", "type"}, // type: prompt, completion
	)

	c.tokensSaved = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_saved_total",
			Help:      "Estimated tokens spared by cache hits",
		},
		[]string{"model"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of extraction cache hits",
		},
		[]string{"tier"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of extraction cache misses",
		},
		[]string{"tier"},
	)

	c.cacheEvictions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of extraction cache evictions",
		},
		[]string{"tier"},
	)

	c.cacheSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size",
			Help:      "Current number of cached extraction records",
		},
		[]string{"tier"},
	)

	c.sessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of deliberation sessions by terminal status",
		},
		[]string{"status"},
	)

	c.sessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions not yet in a terminal state",
		},
	)

	c.sessionSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Deliberation session duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	c.sessionRounds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_rounds",
			Help:      "Number of discussion rounds per session",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	c.consensusScore = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consensus_score",
			Help:      "Consensus score at voting resolution",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	c.transitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of session status transitions",
		},
		[]string{"from", "to"},
	)

	c.mediationsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mediations_total",
			Help:      "Total number of mediator invocations",
		},
	)

	c.eventsDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Session events dropped because the sink was full",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordExtraction records one completed extraction.
func (c *Collector) RecordExtraction(kind, source, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.extractionsTotal.WithLabelValues(kind, source, status).Inc()
	c.extractionSeconds.WithLabelValues(kind, source).Observe(duration.Seconds())
}

// RecordFallback records one degradation to the lexical fallback.
func (c *Collector) RecordFallback(kind, reason string) {
	if c == nil {
		return
	}
	c.fallbacksTotal.WithLabelValues(kind, reason).Inc()
}

// RecordTokens records token spend of one semantic extraction.
func (c *Collector) RecordTokens(model string, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.tokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.tokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordTokensSaved records estimated tokens spared by a cache hit.
func (c *Collector) RecordTokensSaved(model string, tokens int) {
	if c == nil {
		return
	}
	c.tokensSaved.WithLabelValues(model).Add(float64(tokens))
}

// RecordCacheHit records a cache hit on the given tier.
func (c *Collector) RecordCacheHit(tier string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a cache miss on the given tier.
func (c *Collector) RecordCacheMiss(tier string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(tier).Inc()
}

// RecordCacheEviction records an eviction on the given tier.
func (c *Collector) RecordCacheEviction(tier string) {
	if c == nil {
		return
	}
	c.cacheEvictions.WithLabelValues(tier).Inc()
}

// SetCacheSize updates the size gauge of the given tier.
func (c *Collector) SetCacheSize(tier string, size int) {
	if c == nil {
		return
	}
	c.cacheSize.WithLabelValues(tier).Set(float64(size))
}

// SessionStarted records a new active session.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
}

// SessionEnded records a session reaching a terminal status.
func (c *Collector) SessionEnded(status string, duration time.Duration, rounds int, consensus float64, mediated bool) {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
	c.sessionsTotal.WithLabelValues(status).Inc()
	c.sessionSeconds.Observe(duration.Seconds())
	c.sessionRounds.Observe(float64(rounds))
	if consensus > 0 {
		c.consensusScore.Observe(consensus)
	}
	if mediated {
		c.mediationsTotal.Inc()
	}
}

// RecordTransition records one session status transition.
func (c *Collector) RecordTransition(from, to string) {
	if c == nil {
		return
	}
	c.transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordEventDropped records a session event lost to sink overflow.
func (c *Collector) RecordEventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Inc()
}
