package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/embedding"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/pattern"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
	"github.com/Veraticus/coa-classifier/internal/storage"
)

const company = "acme"

type fixture struct {
	store     *storage.SQLiteStorage
	provider  *embedding.StaticProvider
	generator *embedding.Generator
	retriever *retrieval.Retriever
	engine    *Engine
	accounts  map[string]int64
}

func newFixture(t *testing.T, rules []pattern.Rule) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	chart := []model.Account{
		{Code: "4000", Name: "Revenue", Type: model.AccountTypeRevenue, IsGroup: true, IsActive: true},
		{Code: "4920", Name: "Miscellaneous Income", Type: model.AccountTypeRevenue, IsActive: true},
		{Code: "5320", Name: "Travel and Entertainment", Type: model.AccountTypeExpense, IsActive: true},
		{Code: "5910", Name: "Miscellaneous Expense", Type: model.AccountTypeExpense, IsActive: true},
		{Code: "5999", Name: "Uncategorized Expense", Type: model.AccountTypeExpense, IsActive: true},
		{Code: "6300", Name: "Office Supplies", Type: model.AccountTypeExpense, IsActive: true},
	}
	accounts := make(map[string]int64)
	for i := range chart {
		chart[i].CompanyID = company
		require.NoError(t, store.CreateAccount(ctx, &chart[i]))
		accounts[chart[i].Code] = chart[i].ID
	}

	provider := embedding.NewStaticProvider()
	cfg := embedding.DefaultGeneratorConfig()
	cfg.RequestsPerSecond = 0
	generator := embedding.NewGenerator(provider, nil, cfg, nil)

	index, err := retrieval.NewChromemIndex("", false)
	require.NoError(t, err)
	retriever := retrieval.NewRetriever(index, store, nil)

	var keywords KeywordSuggester
	if rules != nil {
		matcher, err := pattern.NewKeywordMatcher(rules)
		require.NoError(t, err)
		keywords = pattern.NewSuggester(matcher, pattern.NewValidator())
	}

	eng, err := New(store, generator, retriever, keywords, nil, DefaultConfig())
	require.NoError(t, err)

	return &fixture{
		store:     store,
		provider:  provider,
		generator: generator,
		retriever: retriever,
		engine:    eng,
		accounts:  accounts,
	}
}

// history stores a reviewed transaction and indexes it. A nil vec embeds
// the transaction text.
func (f *fixture) history(t *testing.T, description, amount, code string, vec model.Vector) model.Transaction {
	t.Helper()
	ctx := context.Background()
	accountID := f.accounts[code]
	txn := model.Transaction{
		ID:                uuid.NewString(),
		CompanyID:         company,
		Description:       description,
		Amount:            decimal.RequireFromString(amount),
		Date:              time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		Status:            model.StatusConfirmed,
		AssignedAccountID: &accountID,
	}
	if vec == nil {
		var err error
		vec, err = f.generator.EmbedTransaction(ctx, &txn)
		require.NoError(t, err)
	}
	txn.Embedding = vec
	require.NoError(t, f.store.CreateTransaction(ctx, &txn))
	require.NoError(t, f.retriever.Upsert(ctx, txn, vec))
	return txn
}

func query(description, amount string) model.Transaction {
	return model.Transaction{
		CompanyID:   company,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Date:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func unit(x, y float32) model.Vector {
	v := make(model.Vector, model.EmbeddingDimension)
	v[0], v[1] = x, y
	return v
}

func assertBounded(t *testing.T, cands model.Candidates) {
	t.Helper()
	for _, c := range cands {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
	}
}

func TestSuggest_ExactHistoricalMatch(t *testing.T) {
	f := newFixture(t, pattern.DefaultKeywords())
	f.history(t, "Office Supplies - Staples", "-89.99", "6300", nil)

	result, err := f.engine.Suggest(context.Background(), query("Office Supplies - Staples", "-125.50"))
	require.NoError(t, err)
	require.NotNil(t, result.Suggestion)

	assert.Equal(t, "6300", result.Suggestion.AccountCode)
	assert.Equal(t, ExactMatchConfidence, result.Suggestion.Confidence)
	assert.Equal(t, model.StrategyHistorical, result.Suggestion.Source)
	assert.False(t, result.Degraded)
	assertBounded(t, result.Candidates)
}

func TestSuggest_AccountTypeFallback(t *testing.T) {
	f := newFixture(t, pattern.DefaultKeywords())

	result, err := f.engine.Suggest(context.Background(), query("Zebra Holdings", "-40.00"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	top := result.Candidates[0]
	assert.Equal(t, "5910", top.AccountCode)
	assert.Equal(t, AccountTypeConfidence, top.Confidence)
	assert.Equal(t, model.StrategyAccountType, top.Source)
	assert.Contains(t, top.Reason, "negative amount")
}

func TestSuggest_RevenueFallbackAndZeroAmount(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.engine.Suggest(context.Background(), query("Zebra Holdings", "250"))
	require.NoError(t, err)
	require.NotNil(t, result.Suggestion)
	assert.Equal(t, "4920", result.Suggestion.AccountCode)

	result, err = f.engine.Suggest(context.Background(), query("Zebra Holdings", "0"))
	require.NoError(t, err)
	assert.Nil(t, result.Suggestion)
	assert.Empty(t, result.Candidates)
}

func TestSuggest_KeywordMatch(t *testing.T) {
	f := newFixture(t, []pattern.Rule{{Keyword: "software", AccountCode: "5999"}})

	result, err := f.engine.Suggest(context.Background(), query("Annual software license", "-300"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)

	assert.Equal(t, "5999", result.Candidates[0].AccountCode)
	assert.Equal(t, pattern.KeywordConfidence, result.Candidates[0].Confidence)
	assert.Equal(t, "5910", result.Candidates[1].AccountCode)
	assert.Equal(t, AccountTypeConfidence, result.Candidates[1].Confidence)
}

func TestSuggest_PartialHistoricalMatch(t *testing.T) {
	f := newFixture(t, nil)
	f.history(t, "Client lunch meeting", "-60", "5320", unit(0.8, 0.6))

	q := query("Team dinner downtown", "-80")
	f.provider.Script(embedding.TransactionText(&q), unit(1, 0))

	result, err := f.engine.Suggest(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, result.Suggestion)

	assert.Equal(t, "5320", result.Suggestion.AccountCode)
	assert.Equal(t, PartialMatchConfidence, result.Suggestion.Confidence)
	assert.Equal(t, model.StrategyHistorical, result.Suggestion.Source)
	require.Len(t, result.Similar, 1)
	assert.InDelta(t, 0.8, result.Similar[0].Similarity, 1e-5)
}

func TestSuggest_KeywordOutranksPartialHistory(t *testing.T) {
	f := newFixture(t, []pattern.Rule{{Keyword: "dinner", AccountCode: "5999"}})
	f.history(t, "Client lunch meeting", "-60", "5320", unit(0.8, 0.6))

	q := query("Team dinner downtown", "-80")
	f.provider.Script(embedding.TransactionText(&q), unit(1, 0))

	result, err := f.engine.Suggest(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)

	assert.Equal(t, model.StrategyKeyword, result.Candidates[0].Source)
	assert.Equal(t, model.StrategyHistorical, result.Candidates[1].Source)
	assert.Equal(t, model.StrategyAccountType, result.Candidates[2].Source)
}

func TestSuggest_DegradesWhenModelUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.history(t, "Office Supplies - Staples", "-89.99", "6300", nil)
	f.history(t, "Client lunch meeting", "-60", "5320", unit(0.8, 0.6))
	f.provider.SetFailing(true)

	q := query("Office Supplies - Staples", "-12")
	result, err := f.engine.Suggest(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	require.NotNil(t, result.Suggestion)
	assert.Equal(t, "6300", result.Suggestion.AccountCode)
	assert.Equal(t, ExactMatchConfidence, result.Suggestion.Confidence)
	for _, c := range result.Candidates {
		assert.NotEqual(t, PartialMatchConfidence, c.Confidence)
	}

	result, err = f.engine.Suggest(context.Background(), query("Team dinner downtown", "-80"))
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, model.StrategyAccountType, result.Candidates[0].Source)
}

func TestSuggest_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Suggest(context.Background(), query("   ", "-1"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	bad := query("Staples", "-1")
	bad.CompanyID = "../etc"
	_, err = f.engine.Suggest(context.Background(), bad)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestClassifyTransaction_Materializes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.history(t, "Office Supplies - Staples", "-89.99", "6300", nil)

	txn := query("Office Supplies - Staples", "-125.50")
	txn.ID = uuid.NewString()
	require.NoError(t, f.store.CreateTransaction(ctx, &txn))

	out, err := f.engine.ClassifyTransaction(ctx, company, txn.ID)
	require.NoError(t, err)
	assert.True(t, out.Materialized)

	stored, err := f.store.GetTransaction(ctx, company, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuggested, stored.Status)
	require.NotNil(t, stored.Prediction)
	assert.Equal(t, f.accounts["6300"], stored.Prediction.AccountID)
	assert.Equal(t, ExactMatchConfidence, stored.Prediction.Confidence)

	proposal := out.Proposal()
	require.NotNil(t, proposal)
	assert.Equal(t, "6300", proposal.SuggestedAccountCode)
	assert.Len(t, proposal.Reasons, len(out.Candidates))
}

func TestClassifyTransaction_ReviewedIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	reviewed := f.history(t, "Office Supplies - Staples", "-89.99", "6300", nil)

	_, err := f.engine.ClassifyTransaction(context.Background(), company, reviewed.ID)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.engine.ClassifyTransaction(context.Background(), company, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.PartialSimilarity = 0.99
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TopK = 0
	assert.Error(t, cfg.Validate())
}
