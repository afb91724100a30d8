package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/testutil/chart"
)

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t, func(b chart.Builder) chart.Builder {
		return b.WithBasicAccounts()
	})
	ctx := context.Background()

	accounts, err := db.Storage.ListAccounts(ctx, DefaultCompany)
	require.NoError(t, err)
	assert.Len(t, accounts, len(db.Accounts))

	reviewed := db.CreateTransaction("Delta Airlines", "-420.00", db.Reviewed("5320"), WithCounterparty("Delta"))
	stored, err := db.Storage.GetTransaction(ctx, DefaultCompany, reviewed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
	assert.Equal(t, "Delta", stored.Counterparty)

	pending := db.CreateTransaction("Staples", "-12.99")
	db.Suggest(pending, "5310", 0.4)
	stored, err = db.Storage.GetTransaction(ctx, DefaultCompany, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuggested, stored.Status)
	require.NotNil(t, stored.Prediction)
	assert.Equal(t, db.Accounts.ID("5310"), stored.Prediction.AccountID)
}

func TestSetupTestDB_NoAccounts(t *testing.T) {
	db := SetupTestDB(t, nil)
	assert.Empty(t, db.Accounts)
}
