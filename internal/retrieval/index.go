// Package retrieval finds previously reviewed transactions that resemble a
// query vector, strictly within one company.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/Veraticus/coa-classifier/internal/model"
)

var (
	// ErrInvalidConfig indicates invalid index configuration.
	ErrInvalidConfig = errors.New("invalid index configuration")

	// errNoEmbeddingFunc is returned if chromem ever tries to embed content
	// itself; every document and query carries its own vector.
	errNoEmbeddingFunc = errors.New("index documents must carry precomputed vectors")
)

const (
	metaCompanyID = "company_id"
	metaAccountID = "account_id"
)

// Document is one reviewed transaction as held by the index.
type Document struct {
	TransactionID string
	Content       string
	Vector        model.Vector
	AccountID     int64
}

// Hit is a raw nearest-neighbour result.
type Hit struct {
	TransactionID string
	AccountID     int64
	Similarity    float64
}

// Index is a nearest-neighbour index partitioned by company.
type Index interface {
	Upsert(ctx context.Context, companyID string, doc Document) error
	Query(ctx context.Context, companyID string, vec model.Vector, n int) ([]Hit, error)
	Count(companyID string) int
}

// ChromemIndex keeps one chromem-go collection per company.
type ChromemIndex struct {
	db *chromem.DB
}

var _ Index = (*ChromemIndex)(nil)

// NewChromemIndex creates an index. An empty path keeps it in memory;
// otherwise collections are persisted under path.
func NewChromemIndex(path string, compress bool) (*ChromemIndex, error) {
	if path == "" {
		return &ChromemIndex{db: chromem.NewDB()}, nil
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("creating index directory %s: %w", path, err)
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", path, err)
	}
	return &ChromemIndex{db: db}, nil
}

func collectionName(companyID string) string {
	return "transactions-" + companyID
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (x *ChromemIndex) collection(companyID string, create bool) (*chromem.Collection, error) {
	name := collectionName(companyID)
	if !create {
		return x.db.GetCollection(name, refuseEmbedding), nil
	}
	c, err := x.db.GetOrCreateCollection(name, map[string]string{metaCompanyID: companyID}, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting collection for %s: %w", companyID, err)
	}
	return c, nil
}

// Upsert adds doc to the company's collection, replacing any previous
// entry for the same transaction.
func (x *ChromemIndex) Upsert(ctx context.Context, companyID string, doc Document) error {
	if companyID == "" || doc.TransactionID == "" {
		return fmt.Errorf("%w: company and transaction id are required", ErrInvalidConfig)
	}
	if err := doc.Vector.Validate(); err != nil {
		return fmt.Errorf("indexing %s: %w", doc.TransactionID, err)
	}

	c, err := x.collection(companyID, true)
	if err != nil {
		return err
	}

	content := doc.Content
	if content == "" {
		content = doc.TransactionID
	}
	vec := make([]float32, len(doc.Vector))
	copy(vec, doc.Vector)

	err = c.AddDocument(ctx, chromem.Document{
		ID:        doc.TransactionID,
		Content:   content,
		Embedding: vec,
		Metadata: map[string]string{
			metaCompanyID: companyID,
			metaAccountID: strconv.FormatInt(doc.AccountID, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", doc.TransactionID, err)
	}
	return nil
}

// Query returns up to n entries of companyID nearest to vec. An empty or
// missing collection yields no hits.
func (x *ChromemIndex) Query(ctx context.Context, companyID string, vec model.Vector, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	c, err := x.collection(companyID, false)
	if err != nil || c == nil {
		return nil, err
	}

	// chromem requires nResults <= document count
	count := c.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}

	results, err := c.QueryEmbedding(ctx, vec, n, map[string]string{metaCompanyID: companyID}, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index for %s: %w", companyID, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if r.Metadata[metaCompanyID] != companyID {
			continue
		}
		accountID, _ := strconv.ParseInt(r.Metadata[metaAccountID], 10, 64)
		hits = append(hits, Hit{
			TransactionID: r.ID,
			AccountID:     accountID,
			Similarity:    float64(r.Similarity),
		})
	}
	return hits, nil
}

// Count returns the number of entries indexed for companyID.
func (x *ChromemIndex) Count(companyID string) int {
	c, _ := x.collection(companyID, false)
	if c == nil {
		return 0
	}
	return c.Count()
}
