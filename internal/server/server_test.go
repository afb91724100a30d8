package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/embedding"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
	"github.com/Veraticus/coa-classifier/internal/testutil"
	"github.com/Veraticus/coa-classifier/internal/testutil/chart"
)

var now = time.Date(2024, 7, 9, 10, 0, 0, 0, time.UTC)

type testServer struct {
	*Server
	db       *testutil.TestDB
	provider *embedding.StaticProvider
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t, func(b chart.Builder) chart.Builder {
		return b.WithBasicAccounts()
	})
	provider := embedding.NewStaticProvider()

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.New(registry)
	require.NoError(t, err)

	cfg := embedding.DefaultGeneratorConfig()
	cfg.RequestsPerSecond = 0
	generator := embedding.NewGenerator(provider, nil, cfg, metrics)
	index, err := retrieval.NewChromemIndex("", false)
	require.NoError(t, err)

	svc, err := classifier.New(db.Storage, generator, index, metrics, classifier.DefaultConfig())
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return now })

	server, err := NewServer(svc, registry, nil)
	require.NoError(t, err)
	return &testServer{Server: server, db: db, provider: provider}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) companyPath(suffix string) string {
	return fmt.Sprintf("/api/v1/companies/%s%s", ts.db.CompanyID, suffix)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		ts := setupTestServer(t)
		assert.Equal(t, "localhost", ts.config.Host)
		assert.Equal(t, 8080, ts.config.Port)
	})

	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestHandleClassify(t *testing.T) {
	t.Run("ranks suggestions for an unsaved transaction", func(t *testing.T) {
		ts := setupTestServer(t)

		rec := ts.do(t, http.MethodPost, ts.companyPath("/classify"), map[string]any{
			"description": "UBER TRIP 8812",
			"amount":      "-23.50",
			"date":        "2024-07-01",
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[classifier.ClassifyResponse](t, rec)
		require.NotEmpty(t, resp.Suggestions)
		require.NotNil(t, resp.Proposal)
		assert.Equal(t, resp.Suggestions[0].AccountCode, resp.Proposal.SuggestedAccountCode)
		assert.Equal(t, "static", resp.Model)
	})

	t.Run("rejects a missing amount", func(t *testing.T) {
		ts := setupTestServer(t)

		rec := ts.do(t, http.MethodPost, ts.companyPath("/classify"), map[string]any{
			"description": "UBER TRIP",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Error, "amount is required")
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		ts := setupTestServer(t)

		rec := ts.do(t, http.MethodPost, ts.companyPath("/classify"), map[string]any{
			"description": "UBER TRIP",
			"amount":      "-1.00",
			"date":        "07/01/2024",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		ts := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, ts.companyPath("/classify"), bytes.NewBufferString("{not json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		ts.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("degrades when the model is down", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.provider.SetFailing(true)

		rec := ts.do(t, http.MethodPost, ts.companyPath("/classify"), map[string]any{
			"description": "UBER TRIP 8812",
			"amount":      "-23.50",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[classifier.ClassifyResponse](t, rec).Degraded)
	})
}

func TestHandleSimilar(t *testing.T) {
	ts := setupTestServer(t)
	ts.db.CreateTransaction("Delta Air Lines", "-420.00", ts.db.Reviewed("5320"))
	ts.db.CreateTransaction("Office Depot", "-35.00", ts.db.Reviewed("5310"))
	rec := ts.do(t, http.MethodPost, ts.companyPath("/embeddings"), EmbeddingsInput{Limit: 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[EmbeddingsResponse](t, rec).Generated)

	rec = ts.do(t, http.MethodPost, ts.companyPath("/similar"), map[string]any{
		"description": "Delta Air Lines",
		"amount":      "-380.00",
		"top_k":       1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SimilarResponse](t, rec)
	require.Len(t, resp.Similar, 1)
	assert.Equal(t, ts.db.Accounts.ID("5320"), resp.Similar[0].AccountID)

	ts.provider.SetFailing(true)
	rec = ts.do(t, http.MethodPost, ts.companyPath("/similar"), map[string]any{
		"description": "Delta Air Lines",
		"amount":      "-380.00",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleFeedback(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, ts.companyPath("/transactions"), map[string]any{
		"description": "Marriott Boston",
		"vendor":      "Marriott",
		"amount":      "-289.00",
		"date":        "2024-07-08",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	txn := decode[model.Transaction](t, rec)

	rec = ts.do(t, http.MethodPost, ts.companyPath("/transactions/"+txn.ID+"/classify"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, ts.companyPath("/low-confidence?threshold=0.95"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[LowConfidenceResponse](t, rec)
	assert.InDelta(t, 0.95, queue.Threshold, 1e-9)
	require.Len(t, queue.Transactions, 1)

	rec = ts.do(t, http.MethodGet, ts.companyPath("/low-confidence?threshold=0"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue = decode[LowConfidenceResponse](t, rec)
	assert.Zero(t, queue.Threshold)
	assert.Empty(t, queue.Transactions)

	id := uuid.NewString()
	input := FeedbackInput{
		ID:                 id,
		TransactionID:      txn.ID,
		PredictedAccountID: ts.db.Accounts.ID("5910"),
		CorrectAccountID:   ts.db.Accounts.ID("5320"),
		Confidence:         0.4,
		Reason:             "hotel stay",
	}
	rec = ts.do(t, http.MethodPost, ts.companyPath("/feedback"), input)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[FeedbackResponse](t, rec)
	assert.Equal(t, id, resp.FeedbackID)
	assert.False(t, resp.Duplicate)

	rec = ts.do(t, http.MethodPost, ts.companyPath("/feedback"), input)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[FeedbackResponse](t, rec).Duplicate)

	rec = ts.do(t, http.MethodGet, ts.companyPath("/transactions/"+txn.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[model.Transaction](t, rec)
	assert.Equal(t, model.StatusCorrected, stored.Status)
	require.NotNil(t, stored.AssignedAccountID)
	assert.Equal(t, ts.db.Accounts.ID("5320"), *stored.AssignedAccountID)

	rec = ts.do(t, http.MethodGet, ts.companyPath("/metrics?days=7"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Summary model.FeedbackSummary `json:"summary"`
		Trend   []model.TrendPoint    `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Trend, 7)
	assert.Equal(t, 1, report.Summary.Total)
}

func TestHandleFeedback_Errors(t *testing.T) {
	ts := setupTestServer(t)
	txn := ts.db.CreateTransaction("Shell Oil 5561", "-61.00")

	tests := []struct {
		name   string
		input  FeedbackInput
		status int
	}{
		{
			name:   "unknown transaction",
			input:  FeedbackInput{TransactionID: uuid.NewString(), PredictedAccountID: 1, CorrectAccountID: 1, Confidence: 0.5},
			status: http.StatusNotFound,
		},
		{
			name:   "confidence out of range",
			input:  FeedbackInput{TransactionID: txn.ID, PredictedAccountID: 1, CorrectAccountID: 1, Confidence: 1.5},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing transaction id",
			input:  FeedbackInput{PredictedAccountID: 1, CorrectAccountID: 1},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, ts.companyPath("/feedback"), tt.input)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandleQueryValidation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"non-numeric days", "/metrics?days=week"},
		{"days out of range", "/metrics?days=0"},
		{"non-numeric threshold", "/low-confidence?threshold=high"},
		{"threshold out of range", "/low-confidence?threshold=2"},
		{"negative limit", "/low-confidence?limit=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, ts.companyPath(tt.path), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleStatsAndRetraining(t *testing.T) {
	ts := setupTestServer(t)
	ts.db.CreateTransaction("Zoom subscription", "-15.99")

	rec := ts.do(t, http.MethodGet, ts.companyPath("/stats"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[classifier.Stats](t, rec)
	assert.Equal(t, 1, stats.Transactions)
	assert.Equal(t, model.EmbeddingDimension, stats.Dimension)

	rec = ts.do(t, http.MethodGet, ts.companyPath("/retraining"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	advice := decode[model.RetrainingAdvice](t, rec)
	assert.False(t, advice.ShouldRetrain)

	rec = ts.do(t, http.MethodPost, ts.companyPath("/retraining"), RetrainedInput{Note: "quarterly"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[RetrainedResponse](t, rec).RetrainedAt.Equal(now))
}

func TestHandleAccounts(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, ts.companyPath("/accounts"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Account](t, rec), len(ts.db.Accounts))

	rec = ts.do(t, http.MethodPost, "/api/v1/companies/initech/accounts/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[SeedResponse](t, rec).Created
	assert.Positive(t, created)

	rec = ts.do(t, http.MethodPost, "/api/v1/companies/initech/accounts/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[SeedResponse](t, rec).Created)
}

func TestHandleUnknownTransaction(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, ts.companyPath("/transactions/"+uuid.NewString()), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.do(t, http.MethodPost, ts.companyPath("/classify"), map[string]any{
		"description": "UBER TRIP",
		"amount":      "-9.00",
	})

	rec := ts.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coa_")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{common.InvalidInput("bad"), http.StatusBadRequest},
		{common.NotFound("transaction %s", "x"), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", common.ErrDuplicateEntry), http.StatusConflict},
		{fmt.Errorf("embed: %w", common.ErrModelUnavailable), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{echo.NewHTTPError(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
