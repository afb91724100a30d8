package pattern

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/model"
)

func TestKeywordMatcher_Match(t *testing.T) {
	ctx := context.Background()

	rules := []Rule{
		{Keyword: "Office Supplies", AccountCode: "5310"},
		{Keyword: "software", AccountCode: "5330"},
		{Keyword: "rent", AccountCode: "5240"},
	}
	m, err := NewKeywordMatcher(rules)
	require.NoError(t, err)

	tests := []struct {
		name  string
		txn   model.Transaction
		codes []string
	}{
		{
			name:  "case insensitive phrase",
			txn:   model.Transaction{Description: "OFFICE-SUPPLIES Depot"},
			codes: []string{"5310"},
		},
		{
			name:  "substring inside a word",
			txn:   model.Transaction{Description: "Parent company transfer"},
			codes: []string{"5240"},
		},
		{
			name:  "counterparty is searched",
			txn:   model.Transaction{Description: "Card purchase", Counterparty: "Acme Software Ltd"},
			codes: []string{"5330"},
		},
		{
			name:  "several hits keep table order",
			txn:   model.Transaction{Description: "Software for office supplies"},
			codes: []string{"5310", "5330"},
		},
		{
			name: "no hit",
			txn:  model.Transaction{Description: "Zebra Holdings"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(ctx, tt.txn)
			require.NoError(t, err)
			var codes []string
			for _, r := range got {
				codes = append(codes, r.AccountCode)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestKeywordMatcher_UsesStoredNormalizedDescription(t *testing.T) {
	m, err := NewKeywordMatcher([]Rule{{Keyword: "staples", AccountCode: "5310"}})
	require.NoError(t, err)

	got, err := m.Match(context.Background(), model.Transaction{
		Description:           "ignored",
		NormalizedDescription: "staples store 42",
		Amount:                decimal.NewFromInt(-1),
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNewKeywordMatcher_RejectsBadRules(t *testing.T) {
	_, err := NewKeywordMatcher([]Rule{{Keyword: " - ", AccountCode: "5310"}})
	assert.Error(t, err)

	_, err = NewKeywordMatcher([]Rule{{Keyword: "rent", AccountCode: ""}})
	assert.Error(t, err)
}

func TestDefaultKeywords_AreValid(t *testing.T) {
	m, err := NewKeywordMatcher(DefaultKeywords())
	require.NoError(t, err)
	assert.NotEmpty(t, m.Rules())
}

func TestKeywordMatcher_Cancelled(t *testing.T) {
	m, err := NewKeywordMatcher(DefaultKeywords())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Match(ctx, model.Transaction{Description: "rent"})
	assert.ErrorIs(t, err, context.Canceled)
}
