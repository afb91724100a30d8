package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/storage"
)

func TestDefaultChart_Consistent(t *testing.T) {
	list, parents := DefaultChart()
	codes := make(map[string]model.Account, len(list))
	for _, a := range list {
		_, dup := codes[a.Code]
		require.False(t, dup, "duplicate code %s", a.Code)
		codes[a.Code] = a
	}

	for child, parent := range parents {
		p, ok := codes[parent]
		require.True(t, ok, "parent %s of %s missing", parent, child)
		assert.True(t, p.IsGroup, "parent %s should be a group", parent)
		assert.Equal(t, p.Type, codes[child].Type, "type of %s differs from parent", child)
	}

	chart := model.NewChartOfAccounts(list)
	for _, code := range []string{"5910", "4920", "5310", "5320"} {
		a, ok := chart.ByCode(code)
		require.True(t, ok)
		assert.True(t, a.Postable(), code)
	}
}

func TestSeedDefaultChart_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Migrate(ctx))

	list, _ := DefaultChart()
	created, err := SeedDefaultChart(ctx, store, "acme")
	require.NoError(t, err)
	assert.Equal(t, len(list), created)

	created, err = SeedDefaultChart(ctx, store, "acme")
	require.NoError(t, err)
	assert.Zero(t, created)

	travel, err := store.GetAccountByCode(ctx, "acme", "5320")
	require.NoError(t, err)
	office, err := store.GetAccountByCode(ctx, "acme", "5300")
	require.NoError(t, err)
	require.NotNil(t, travel.ParentID)
	assert.Equal(t, office.ID, *travel.ParentID)

	other, err := store.ListAccounts(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = SeedDefaultChart(ctx, store, "bad company")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
