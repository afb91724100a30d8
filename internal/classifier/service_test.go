package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/embedding"
	"github.com/Veraticus/coa-classifier/internal/feedback"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
	"github.com/Veraticus/coa-classifier/internal/testutil"
	"github.com/Veraticus/coa-classifier/internal/testutil/chart"
)

var now = time.Date(2024, 7, 9, 10, 0, 0, 0, time.UTC)

type harness struct {
	db       *testutil.TestDB
	provider *embedding.StaticProvider
	svc      *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t, func(b chart.Builder) chart.Builder {
		return b.WithBasicAccounts()
	})
	provider := embedding.NewStaticProvider()
	return &harness{db: db, provider: provider, svc: newService(t, db, provider)}
}

func newService(t *testing.T, db *testutil.TestDB, provider embedding.Provider) *Service {
	t.Helper()
	cfg := embedding.DefaultGeneratorConfig()
	cfg.RequestsPerSecond = 0
	cache := embedding.NewMemoryCache(time.Minute)
	t.Cleanup(cache.Close)
	generator := embedding.NewGenerator(provider, cache, cfg, nil)

	index, err := retrieval.NewChromemIndex("", false)
	require.NoError(t, err)

	svc, err := New(db.Storage, generator, index, nil, DefaultConfig())
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return now })
	return svc
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_LearnsFromCorrection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	company := h.db.CompanyID

	txn, err := h.svc.Ingest(ctx, company, model.TransactionCandidate{
		Description: "Acme Widgets Invoice 4471",
		Amount:      amount("-210.00"),
		Date:        now.AddDate(0, 0, -1),
		Vendor:      "Acme Widgets",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnclassified, txn.Status)

	classified, err := h.svc.ClassifyTransaction(ctx, company, txn.ID)
	require.NoError(t, err)
	require.True(t, classified.Materialized)
	assert.Equal(t, "5910", classified.Suggestion.AccountCode)
	assert.InDelta(t, 0.50, classified.Suggestion.Confidence, 1e-9)

	queue, err := h.svc.LowConfidence(ctx, company, nil, 10)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, txn.ID, queue[0].Transaction.ID)

	outcome, err := h.svc.Feedback(ctx, feedback.Request{
		CompanyID:          company,
		TransactionID:      txn.ID,
		PredictedAccountID: h.db.Accounts.ID("5910"),
		CorrectAccountID:   h.db.Accounts.ID("5320"),
		Confidence:         0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackCorrection, outcome.Entry.Kind)
	assert.InDelta(t, 0.50, outcome.Entry.Confidence, 1e-9)

	queue, err = h.svc.LowConfidence(ctx, company, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, queue)

	resp, err := h.svc.Classify(ctx, ClassifyRequest{
		CompanyID:   company,
		Description: "ACME widgets invoice 4471",
		Vendor:      "Acme Widgets",
		Amount:      amount("-99.00"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, "5320", resp.Suggestions[0].AccountCode)
	assert.InDelta(t, 0.90, resp.Suggestions[0].Confidence, 1e-9)
	require.NotNil(t, resp.Proposal)
	assert.Equal(t, "5320", resp.Proposal.SuggestedAccountCode)
	require.NotEmpty(t, resp.Similar)
	assert.Equal(t, txn.ID, resp.Similar[0].Transaction.ID)

	report, err := h.svc.Metrics(ctx, company, 7)
	require.NoError(t, err)
	assert.Len(t, report.Trend, 7)
	assert.Equal(t, 1, report.Summary.Corrections)
	assert.False(t, report.Retraining.ShouldRetrain)
}

func TestService_SimilarRequiresModel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.db.CreateTransaction("Lyft ride downtown", "-18.40", h.db.Reviewed("5320"))
	_, err := h.svc.GenerateEmbeddings(ctx, h.db.CompanyID, 10, nil)
	require.NoError(t, err)

	matches, err := h.svc.Similar(ctx, SimilarRequest{
		CompanyID:   h.db.CompanyID,
		Description: "Lyft ride downtown",
		Amount:      amount("-22.10"),
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, h.db.Accounts.ID("5320"), matches[0].AccountID)

	h.provider.SetFailing(true)
	_, err = h.svc.Similar(ctx, SimilarRequest{
		CompanyID:   h.db.CompanyID,
		Description: "Lyft ride uptown",
		Amount:      amount("-22.10"),
	})
	assert.ErrorIs(t, err, common.ErrModelUnavailable)

	resp, err := h.svc.Classify(ctx, ClassifyRequest{
		CompanyID:   h.db.CompanyID,
		Description: "Lyft ride uptown",
		Amount:      amount("-22.10"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Suggestions)
}

func TestService_GenerateEmbeddingsAndStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, d := range []string{"Staples order", "Adobe license", "Client dinner"} {
		h.db.CreateTransaction(d, "-10.00")
	}

	stats, err := h.svc.Stats(ctx, h.db.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Transactions)
	assert.Zero(t, stats.CoveragePercent)
	assert.Equal(t, model.EmbeddingDimension, stats.Dimension)

	var last int
	summary, err := h.svc.GenerateEmbeddings(ctx, h.db.CompanyID, 2, func(n int) { last = n })
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Embedded)
	assert.Equal(t, 2, last)

	summary, err = h.svc.GenerateEmbeddings(ctx, h.db.CompanyID, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Embedded)

	stats, err = h.svc.Stats(ctx, h.db.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.WithEmbeddings)
	assert.InDelta(t, 100.0, stats.CoveragePercent, 1e-9)
}

func TestService_WarmRebuildsIndex(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.db.CreateTransaction("Hilton Chicago", "-310.00", h.db.Reviewed("5320"))
	h.db.CreateTransaction("Unreviewed thing", "-5.00")
	_, err := h.svc.GenerateEmbeddings(ctx, h.db.CompanyID, 10, nil)
	require.NoError(t, err)

	fresh := newService(t, h.db, h.provider)
	stats, err := fresh.Stats(ctx, h.db.CompanyID)
	require.NoError(t, err)
	assert.Zero(t, stats.Indexed)

	n, err := fresh.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stats, err = fresh.Stats(ctx, h.db.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
}

func TestService_Accounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.SeedDefaultChart(ctx, "globex")
	require.NoError(t, err)
	assert.Positive(t, created)

	account := &model.Account{
		CompanyID: "globex",
		Code:      "5335",
		Name:      "Cloud Hosting",
		Type:      model.AccountTypeExpense,
		IsActive:  true,
	}
	require.NoError(t, h.svc.AddAccount(ctx, account, "5300"))
	require.NotNil(t, account.ParentID)

	list, err := h.svc.Accounts(ctx, "globex")
	require.NoError(t, err)
	assert.Len(t, list, created+1)

	err = h.svc.AddAccount(ctx, &model.Account{CompanyID: "globex", Code: "5336", Name: "X", Type: model.AccountTypeExpense}, "9999")
	assert.ErrorIs(t, err, common.ErrNotFound)

	theirs, err := h.svc.Accounts(ctx, h.db.CompanyID)
	require.NoError(t, err)
	assert.Len(t, theirs, len(h.db.Accounts))
}

func TestService_InvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Ingest(ctx, "no spaces allowed", model.TransactionCandidate{Description: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = h.svc.Ingest(ctx, h.db.CompanyID, model.TransactionCandidate{Description: "  "})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = h.svc.Classify(ctx, ClassifyRequest{CompanyID: h.db.CompanyID})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = h.svc.Similar(ctx, SimilarRequest{CompanyID: "", Description: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = h.svc.GenerateEmbeddings(ctx, h.db.CompanyID, 0, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = h.svc.Stats(ctx, "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	db := testutil.SetupTestDB(t, nil)
	generator := embedding.NewGenerator(embedding.NewHashProvider(), nil, embedding.DefaultGeneratorConfig(), nil)
	index, err := retrieval.NewChromemIndex("", false)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.SimilarTopK = 0
	_, err = New(db.Storage, generator, index, nil, cfg)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Keywords = []model.KeywordRule{{Keyword: "", AccountCode: "5310"}}
	_, err = New(db.Storage, generator, index, nil, cfg)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
