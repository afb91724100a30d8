// Package telemetry holds the Prometheus collectors for the classifier.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every operational collector. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	classifications  *prometheus.CounterVec
	confidence       *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	embedLatency     *prometheus.HistogramVec
	embedErrors      *prometheus.CounterVec
	feedback         *prometheus.CounterVec
	batchEmbedded    prometheus.Counter
	retrievalLatency prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coa_classifications_total",
				Help: "Total number of classification requests",
			},
			[]string{"mode"},
		),
		confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coa_suggestion_confidence",
				Help:    "Confidence of the top suggestion",
				Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"source"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coa_embedding_cache_lookups_total",
				Help: "Embedding cache lookups by result",
			},
			[]string{"result"},
		),
		embedLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coa_embedding_duration_seconds",
				Help:    "Embedding backend latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		embedErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coa_embedding_errors_total",
				Help: "Embedding backend failures",
			},
			[]string{"provider"},
		),
		feedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coa_feedback_recorded_total",
				Help: "Feedback entries recorded by kind",
			},
			[]string{"kind"},
		),
		batchEmbedded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coa_batch_embeddings_written_total",
			Help: "Embeddings written by batch generation",
		}),
		retrievalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coa_retrieval_duration_seconds",
			Help:    "Similarity retrieval latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.classifications, m.confidence, m.cacheLookups, m.embedLatency,
		m.embedErrors, m.feedback, m.batchEmbedded, m.retrievalLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Classification records a classification and its top confidence.
func (m *Metrics) Classification(degraded bool, source string, confidence float64) {
	if m == nil {
		return
	}
	mode := "normal"
	if degraded {
		mode = "degraded"
	}
	m.classifications.WithLabelValues(mode).Inc()
	if source != "" {
		m.confidence.WithLabelValues(source).Observe(confidence)
	}
}

// CacheLookup records an embedding cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Embedding records one backend call.
func (m *Metrics) Embedding(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.embedLatency.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		m.embedErrors.WithLabelValues(provider).Inc()
	}
}

// Feedback records a feedback entry of the given kind.
func (m *Metrics) Feedback(kind string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(kind).Inc()
}

// BatchEmbedded adds n written embeddings.
func (m *Metrics) BatchEmbedded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchEmbedded.Add(float64(n))
}

// Retrieval records the latency of one similarity search.
func (m *Metrics) Retrieval(d time.Duration) {
	if m == nil {
		return
	}
	m.retrievalLatency.Observe(d.Seconds())
}
