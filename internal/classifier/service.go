// Package classifier wires the suggestion engine, similarity retrieval,
// embedding generation and the feedback loop into the operations exposed
// by the HTTP, MCP and CLI surfaces.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/coa-classifier/internal/accounts"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/embedding"
	"github.com/Veraticus/coa-classifier/internal/engine"
	"github.com/Veraticus/coa-classifier/internal/feedback"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/pattern"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
	"github.com/Veraticus/coa-classifier/internal/service"
	"github.com/Veraticus/coa-classifier/internal/storage"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
)

// Store is the persistence the service needs.
type Store interface {
	service.Storage
	accounts.Seeder
}

// Config collects the tunables of every component.
type Config struct {
	Engine        engine.Config
	Selector      feedback.SelectorConfig
	Advisor       feedback.AdvisorConfig
	Batch         embedding.BatchOptions
	Keywords      []pattern.Rule
	SimilarTopK   int
	MinSimilarity float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Engine:        engine.DefaultConfig(),
		Selector:      feedback.DefaultSelectorConfig(),
		Advisor:       feedback.DefaultAdvisorConfig(),
		Batch:         embedding.DefaultBatchOptions(),
		Keywords:      pattern.DefaultKeywords(),
		SimilarTopK:   5,
		MinSimilarity: 0.5,
	}
}

// Service is the explicitly constructed, stateless entry point for every
// operation. It is safe for concurrent use.
type Service struct {
	store     Store
	generator *embedding.Generator
	retriever *retrieval.Retriever
	batch     *embedding.BatchEmbedder
	engine    *engine.Engine
	recorder  *feedback.Recorder
	selector  *feedback.Selector
	analyzer  *feedback.Analyzer
	config    Config
}

// New assembles a Service over store, the embedding generator and the
// similarity index.
func New(store Store, generator *embedding.Generator, index retrieval.Index, metrics *telemetry.Metrics, config Config) (*Service, error) {
	if config.SimilarTopK <= 0 {
		return nil, fmt.Errorf("%w: similar top_k must be positive", common.ErrInvalidConfig)
	}
	if config.MinSimilarity < 0 || config.MinSimilarity > 1 {
		return nil, fmt.Errorf("%w: min similarity must be between 0 and 1", common.ErrInvalidConfig)
	}

	retriever := retrieval.NewRetriever(index, store, metrics)

	var keywords engine.KeywordSuggester
	if len(config.Keywords) > 0 {
		matcher, err := pattern.NewKeywordMatcher(config.Keywords)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
		}
		keywords = pattern.NewSuggester(matcher, pattern.NewValidator())
	}

	eng, err := engine.New(store, generator, retriever, keywords, metrics, config.Engine)
	if err != nil {
		return nil, err
	}
	analyzer, err := feedback.NewAnalyzer(store, config.Advisor)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     store,
		generator: generator,
		retriever: retriever,
		batch:     embedding.NewBatchEmbedder(store, generator, retriever, metrics, config.Batch),
		engine:    eng,
		recorder:  feedback.NewRecorder(store, generator, retriever, metrics),
		selector:  feedback.NewSelector(store, config.Selector),
		analyzer:  analyzer,
		config:    config,
	}, nil
}

// SetClock replaces the time source used for feedback and metrics windows.
func (s *Service) SetClock(now func() time.Time) {
	s.recorder.SetClock(now)
	s.analyzer.SetClock(now)
}

// Warm loads every company's reviewed history into the similarity index.
func (s *Service) Warm(ctx context.Context) (int, error) {
	companies, err := s.store.ListCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing companies: %w", err)
	}
	return s.retriever.Warm(ctx, companies)
}

// ClassifyRequest is an ad hoc classification of an unsaved transaction.
type ClassifyRequest struct {
	Date        time.Time       `json:"date"`
	CompanyID   string          `json:"company_id"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

func (r ClassifyRequest) transaction() model.Transaction {
	date := r.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return model.Transaction{
		CompanyID:    r.CompanyID,
		Description:  r.Description,
		Counterparty: r.Vendor,
		Amount:       r.Amount,
		Date:         date,
	}
}

// ClassifyResponse lists every candidate plus the similar history used.
type ClassifyResponse struct {
	Proposal    *engine.Proposal  `json:"proposal"`
	Model       string            `json:"model"`
	Suggestions model.Candidates  `json:"suggestions"`
	Similar     []retrieval.Match `json:"similar_transactions"`
	Degraded    bool              `json:"degraded"`
}

// Classify ranks accounts for a transaction without storing it.
func (s *Service) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	result, err := s.engine.Suggest(ctx, req.transaction())
	if err != nil {
		return nil, err
	}
	return &ClassifyResponse{
		Suggestions: result.Candidates,
		Similar:     result.Similar,
		Proposal:    result.Proposal(),
		Model:       result.Model,
		Degraded:    result.Degraded,
	}, nil
}

// SimilarRequest searches a company's reviewed history.
type SimilarRequest struct {
	CompanyID     string          `json:"company_id"`
	Description   string          `json:"description"`
	Vendor        string          `json:"vendor,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	TopK          int             `json:"top_k,omitempty"`
	MinSimilarity *float64        `json:"min_similarity,omitempty"`
}

// Similar returns the reviewed transactions most similar to the request.
// Unlike Classify it has no fallback, so a model outage is returned as
// common.ErrModelUnavailable.
func (s *Service) Similar(ctx context.Context, req SimilarRequest) ([]retrieval.Match, error) {
	if !storage.ValidCompanyID(req.CompanyID) {
		return nil, common.InvalidInput("malformed company id %q", req.CompanyID)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, common.InvalidInput("description is required")
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.config.SimilarTopK
	}
	minSimilarity := s.config.MinSimilarity
	if req.MinSimilarity != nil {
		minSimilarity = *req.MinSimilarity
	}

	txn := model.Transaction{
		CompanyID:    req.CompanyID,
		Description:  req.Description,
		Counterparty: req.Vendor,
		Amount:       req.Amount,
	}
	ctx = common.WithCompany(ctx, req.CompanyID)
	vec, err := s.generator.EmbedTransaction(ctx, &txn)
	if err != nil {
		return nil, err
	}
	return s.retriever.FindSimilar(ctx, vec, req.CompanyID, topK, minSimilarity)
}

// Feedback records a human confirmation or correction.
func (s *Service) Feedback(ctx context.Context, req feedback.Request) (*model.FeedbackOutcome, error) {
	return s.recorder.Record(ctx, req)
}

// LowConfidence returns the review queue. A nil threshold uses the
// configured default.
func (s *Service) LowConfidence(ctx context.Context, companyID string, threshold *float64, limit int) ([]model.ReviewItem, error) {
	return s.selector.LowConfidence(ctx, companyID, threshold, limit)
}

// ReviewThreshold resolves an optional review threshold against the configured default.
func (s *Service) ReviewThreshold(threshold *float64) float64 {
	return s.selector.Threshold(threshold)
}

// Metrics returns the accuracy trend, summary and retraining advice.
func (s *Service) Metrics(ctx context.Context, companyID string, days int) (*feedback.Report, error) {
	return s.analyzer.Report(ctx, companyID, days)
}

// Retraining evaluates whether the company's model should be retrained.
func (s *Service) Retraining(ctx context.Context, companyID string) (*model.RetrainingAdvice, error) {
	return s.analyzer.SuggestRetraining(ctx, companyID)
}

// MarkRetrained records a retraining event.
func (s *Service) MarkRetrained(ctx context.Context, companyID, note string) (time.Time, error) {
	return s.analyzer.MarkRetrained(ctx, companyID, note)
}

// GenerateEmbeddings embeds up to limit transactions that lack a current
// embedding. progress may be nil.
func (s *Service) GenerateEmbeddings(ctx context.Context, companyID string, limit int, progress func(int)) (*embedding.BatchSummary, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, common.InvalidInput("malformed company id %q", companyID)
	}
	if progress == nil {
		return s.batch.Run(ctx, companyID, limit)
	}
	return s.batch.RunWithProgress(ctx, companyID, limit, progress)
}

// Ingest stores a transaction candidate as an UNCLASSIFIED transaction.
func (s *Service) Ingest(ctx context.Context, companyID string, candidate model.TransactionCandidate) (*model.Transaction, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, common.InvalidInput("malformed company id %q", companyID)
	}
	if strings.TrimSpace(candidate.Description) == "" {
		return nil, common.InvalidInput("description is required")
	}
	date := candidate.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	txn := &model.Transaction{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Description:  strings.TrimSpace(candidate.Description),
		Counterparty: strings.TrimSpace(candidate.Vendor),
		Amount:       candidate.Amount,
		Date:         date,
		Status:       model.StatusUnclassified,
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	common.LogDebug(common.WithCompany(ctx, companyID), "Transaction ingested", common.Fields{
		"transaction_id": txn.ID,
	})
	return txn, nil
}

// ClassifyTransaction classifies a stored transaction and materialises the
// top suggestion on it.
func (s *Service) ClassifyTransaction(ctx context.Context, companyID, transactionID string) (*engine.Classification, error) {
	return s.engine.ClassifyTransaction(ctx, companyID, transactionID)
}

// Transaction returns a stored transaction.
func (s *Service) Transaction(ctx context.Context, companyID, transactionID string) (*model.Transaction, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, common.InvalidInput("malformed company id %q", companyID)
	}
	return s.store.GetTransaction(ctx, companyID, transactionID)
}

// Stats describes embedding coverage and the active model.
type Stats struct {
	Model           string  `json:"model"`
	Transactions    int     `json:"transactions"`
	WithEmbeddings  int     `json:"with_embeddings"`
	Stale           int     `json:"stale_embeddings"`
	Missing         int     `json:"missing_embeddings"`
	Indexed         int     `json:"indexed"`
	Dimension       int     `json:"dimension"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// Stats reports embedding coverage for a company.
func (s *Service) Stats(ctx context.Context, companyID string) (*Stats, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, common.InvalidInput("malformed company id %q", companyID)
	}
	es, err := s.store.EmbeddingStats(ctx, companyID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Model:          s.generator.ModelName(),
		Dimension:      s.generator.Dimension(),
		Transactions:   es.Total,
		WithEmbeddings: es.Current,
		Stale:          es.Stale,
		Missing:        es.Missing,
		Indexed:        s.retriever.Indexed(companyID),
	}
	if es.Total > 0 {
		stats.CoveragePercent = float64(es.Current) / float64(es.Total) * 100
	}
	return stats, nil
}

// Accounts lists the company's chart of accounts.
func (s *Service) Accounts(ctx context.Context, companyID string) ([]model.Account, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, common.InvalidInput("malformed company id %q", companyID)
	}
	return s.store.ListAccounts(ctx, companyID)
}

// AddAccount creates one account. parentCode may be empty.
func (s *Service) AddAccount(ctx context.Context, account *model.Account, parentCode string) error {
	if parentCode != "" {
		parent, err := s.store.GetAccountByCode(ctx, account.CompanyID, parentCode)
		if err != nil {
			return err
		}
		account.ParentID = &parent.ID
	}
	return s.store.CreateAccount(ctx, account)
}

// SeedDefaultChart installs the default chart for the company.
func (s *Service) SeedDefaultChart(ctx context.Context, companyID string) (int, error) {
	return accounts.SeedDefaultChart(ctx, s.store, companyID)
}
