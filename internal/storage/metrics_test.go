package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMetrics_RangeAndOrder(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	days := []time.Time{
		time.Date(2024, 5, 3, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 20, 8, 0, 0, 0, time.UTC),
	}
	for _, d := range days {
		tx, err := store.db.BeginTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, store.incrementMetricsTx(ctx, tx, "acme", d, true, 0.95))
		require.NoError(t, store.incrementMetricsTx(ctx, tx, "acme", d, false, 0.55))
		require.NoError(t, tx.Commit())
	}

	got, err := store.GetMetrics(ctx, "acme",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-01", got[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-05-03", got[1].Date.Format("2006-01-02"))
	assert.Equal(t, 2, got[0].TotalPredictions)
	assert.Equal(t, 1, got[0].HighConfidenceCorrect)
	assert.Equal(t, 1, got[0].LowConfidenceIncorrect)
	assert.InDelta(t, 1.5, got[0].ConfidenceSum, 1e-9)

	_, err = store.GetMetrics(ctx, "acme", time.Now(), time.Now().AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestRetrainingEvents(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	last, err := store.LastRetraining(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, last)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRetraining(ctx, "acme", second, "manual"))
	require.NoError(t, store.RecordRetraining(ctx, "acme", first, "older"))
	require.NoError(t, store.RecordRetraining(ctx, "globex", second.AddDate(0, 1, 0), ""))

	last, err = store.LastRetraining(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(second))
}
