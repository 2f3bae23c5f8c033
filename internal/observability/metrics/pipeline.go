package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// PipelineMetrics observes embedding, comparison and detection work. It
// satisfies ports.PipelineObserver.
type PipelineMetrics struct {
	service string

	cacheLookups      *prometheus.CounterVec
	embedCalls        *prometheus.CounterVec
	embedItems        *prometheus.CounterVec
	embedDuration     *prometheus.HistogramVec
	comparisons       *prometheus.CounterVec
	comparisonChanges *prometheus.HistogramVec
	detections        *prometheus.CounterVec
	detectionFlags    *prometheus.HistogramVec
	jobDuration       *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer, service string) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"service", "result"}),
		embedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "provider_calls_total",
			Help:      "Remote embedding calls by outcome.",
		}, []string{"service", "outcome"}),
		embedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "provider_items_total",
			Help:      "Texts sent to the embedding provider.",
		}, []string{"service"}),
		embedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "provider_call_duration_seconds",
			Help:      "Remote embedding call duration including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
		comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "jobs_total",
			Help:      "Document comparisons by outcome.",
		}, []string{"service", "outcome"}),
		comparisonChanges: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "changes",
			Help:      "Changes reported per successful comparison.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
		}, []string{"service"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conflicts",
			Name:      "jobs_total",
			Help:      "Conflict detections by outcome.",
		}, []string{"service", "outcome"}),
		detectionFlags: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conflicts",
			Name:      "flags",
			Help:      "Conflict flags reported per successful detection.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"service"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "Comparison and detection job duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service", "job", "outcome"}),
	}
	reg.MustRegister(
		m.cacheLookups,
		m.embedCalls,
		m.embedItems,
		m.embedDuration,
		m.comparisons,
		m.comparisonChanges,
		m.detections,
		m.detectionFlags,
		m.jobDuration,
	)
	return m
}

func (m *PipelineMetrics) ObserveEmbeddingLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(m.service, result).Inc()
}

func (m *PipelineMetrics) ObserveEmbeddingCall(outcome string, items int, duration time.Duration) {
	m.embedCalls.WithLabelValues(m.service, outcome).Inc()
	m.embedItems.WithLabelValues(m.service).Add(float64(items))
	m.embedDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveComparison(outcome string, changes int, duration time.Duration) {
	m.comparisons.WithLabelValues(m.service, outcome).Inc()
	if outcome == "success" {
		m.comparisonChanges.WithLabelValues(m.service).Observe(float64(changes))
	}
	m.jobDuration.WithLabelValues(m.service, "compare", outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveDetection(outcome string, flags int, duration time.Duration) {
	m.detections.WithLabelValues(m.service, outcome).Inc()
	if outcome == "success" {
		m.detectionFlags.WithLabelValues(m.service).Observe(float64(flags))
	}
	m.jobDuration.WithLabelValues(m.service, "detect", outcome).Observe(duration.Seconds())
}

// RegisterCacheStats exposes a cache snapshot function as gauges and
// counters read at scrape time.
func RegisterCacheStats(reg prometheus.Registerer, service string, stats func() domain.CacheStats) {
	labels := prometheus.Labels{"service": service}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "embedding_cache", Name: "entries",
			Help: "Entries held by the local embedding cache.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Size) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "embedding_cache", Name: "capacity",
			Help: "Maximum entries of the local embedding cache.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Capacity) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "embedding_cache", Name: "evictions_total",
			Help: "Entries evicted by capacity pressure.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Evictions) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "embedding_cache", Name: "expirations_total",
			Help: "Entries dropped after their time to live.", ConstLabels: labels,
		}, func() float64 { return float64(stats().Expirations) }),
	)
}
