package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/model"
)

func testChart() *model.ChartOfAccounts {
	return model.NewChartOfAccounts([]model.Account{
		{ID: 1, Code: "5000", Name: "Operating Expenses", Type: model.AccountTypeExpense, IsGroup: true, IsActive: true},
		{ID: 2, Code: "5310", Name: "Office Supplies", Type: model.AccountTypeExpense, IsActive: true},
		{ID: 3, Code: "5320", Name: "Travel", Type: model.AccountTypeExpense, IsActive: true},
		{ID: 4, Code: "5330", Name: "Software", Type: model.AccountTypeExpense, IsActive: false},
	})
}

func reviewItem(id string, suggested int64) model.ReviewItem {
	item := model.ReviewItem{
		Transaction: model.Transaction{
			ID:          id,
			Description: "Charge " + id,
			Amount:      decimal.RequireFromString("-20.00"),
			Date:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		Priority: model.PriorityMedium,
	}
	if suggested != 0 {
		item.Transaction.Prediction = &model.Prediction{AccountID: suggested, Confidence: 0.55}
		item.AccountCode = "5310"
		item.AccountName = "Office Supplies"
	}
	return item
}

type recorder struct {
	fail      map[string]bool
	decisions []Decision
}

func (r *recorder) record(_ context.Context, d Decision) error {
	if r.fail[d.Item.Transaction.ID] {
		return errors.New("storage offline")
	}
	r.decisions = append(r.decisions, d)
	return nil
}

func TestReviewer_Review(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		items     []model.ReviewItem
		fail      map[string]bool
		want      ReviewStats
		wantCodes []string
		output    []string
	}{
		{
			name:      "accept suggestion",
			input:     "\n",
			items:     []model.ReviewItem{reviewItem("a", 2)},
			want:      ReviewStats{Confirmed: 1},
			wantCodes: []string{"5310"},
			output:    []string{"Confirmed 5310"},
		},
		{
			name:      "correct by code",
			input:     "5320\n",
			items:     []model.ReviewItem{reviewItem("a", 2)},
			want:      ReviewStats{Corrected: 1},
			wantCodes: []string{"5320"},
			output:    []string{"Corrected to 5320 Travel"},
		},
		{
			name:  "skip then quit",
			input: "s\nq\n",
			items: []model.ReviewItem{reviewItem("a", 2), reviewItem("b", 2), reviewItem("c", 2)},
			want:  ReviewStats{Skipped: 1},
		},
		{
			name:      "unknown group and inactive codes are re-asked",
			input:     "9999\n5000\n5330\n5320\n",
			items:     []model.ReviewItem{reviewItem("a", 2)},
			want:      ReviewStats{Corrected: 1},
			wantCodes: []string{"5320"},
			output:    []string{`"9999" is not a postable account code`, `"5000" is not`, `"5330" is not`},
		},
		{
			name:      "no suggestion to accept",
			input:     "\n5320\n",
			items:     []model.ReviewItem{reviewItem("a", 0)},
			want:      ReviewStats{Corrected: 1},
			wantCodes: []string{"5320"},
			output:    []string{"No suggestion to accept"},
		},
		{
			name:      "record failure continues",
			input:     "\n\n",
			items:     []model.ReviewItem{reviewItem("a", 2), reviewItem("b", 2)},
			fail:      map[string]bool{"a": true},
			want:      ReviewStats{Confirmed: 1, Failed: 1},
			wantCodes: []string{"5310"},
			output:    []string{"storage offline"},
		},
		{
			name:  "end of input stops quietly",
			input: "",
			items: []model.ReviewItem{reviewItem("a", 2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rec := &recorder{fail: tt.fail}
			reviewer := NewReviewer(strings.NewReader(tt.input), &out, testChart())

			stats, err := reviewer.Review(context.Background(), tt.items, rec.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stats)

			codes := make([]string, 0, len(rec.decisions))
			for _, d := range rec.decisions {
				codes = append(codes, d.Account.Code)
			}
			if tt.wantCodes == nil {
				assert.Empty(t, codes)
			} else {
				assert.Equal(t, tt.wantCodes, codes)
			}
			for _, expected := range tt.output {
				assert.Contains(t, out.String(), expected)
			}
		})
	}
}

func TestReviewer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reviewer := NewReviewer(strings.NewReader("\n"), &bytes.Buffer{}, testChart())
	stats, err := reviewer.Review(ctx, []model.ReviewItem{reviewItem("a", 2)}, (&recorder{}).record)
	require.NoError(t, err)
	assert.Equal(t, ReviewStats{}, stats)
}

func TestDecision_Confirmed(t *testing.T) {
	chart := testChart()
	supplies, _ := chart.ByCode("5310")
	travel, _ := chart.ByCode("5320")

	assert.True(t, Decision{Item: reviewItem("a", 2), Account: supplies}.Confirmed())
	assert.False(t, Decision{Item: reviewItem("a", 2), Account: travel}.Confirmed())
	assert.False(t, Decision{Item: reviewItem("a", 0), Account: supplies}.Confirmed())
}
