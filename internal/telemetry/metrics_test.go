package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Classification(false, "historical", 0.9)
	m.Classification(true, "account_type", 0.5)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.Embedding("hash", time.Millisecond, nil)
	m.Embedding("tei", time.Millisecond, errors.New("down"))
	m.Feedback("CORRECTION")
	m.BatchEmbedded(3)
	m.Retrieval(time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.classifications.WithLabelValues("degraded")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.embedErrors.WithLabelValues("tei")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.batchEmbedded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.feedback.WithLabelValues("CORRECTION")), 0)
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Classification(false, "keyword", 0.7)
		m.CacheLookup(true)
		m.Embedding("x", time.Second, nil)
		m.Feedback("CONFIRMATION")
		m.BatchEmbedded(1)
		m.Retrieval(time.Second)
	})
}
