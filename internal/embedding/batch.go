package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/service"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
)

// BatchOptions configures background embedding generation.
type BatchOptions struct {
	Progress  func(embedded int) // Called after each chunk is written
	PageSize  int                // Transactions claimed per storage round trip
	ChunkSize int                // Texts per backend call
	Workers   int                // Concurrent backend calls
}

// DefaultBatchOptions returns sensible defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		PageSize:  64,
		ChunkSize: 16,
		Workers:   2,
	}
}

// BatchSummary contains statistics about a batch run.
type BatchSummary struct {
	Requested      int           `json:"requested"`
	Embedded       int           `json:"embeddings_generated"`
	Skipped        int           `json:"skipped"`
	ProcessingTime time.Duration `json:"processing_time_ns"`
}

// Sink receives the vectors of reviewed transactions so the similarity
// index tracks what was written.
type Sink interface {
	Upsert(ctx context.Context, txn model.Transaction, vec model.Vector) error
}

// BatchEmbedder fills in missing and stale transaction embeddings.
// Transactions claimed by a run that has not finished are invisible to
// other runs, so overlapping invocations never embed the same row twice.
type BatchEmbedder struct {
	store     service.TransactionStore
	generator *Generator
	sink      Sink
	metrics   *telemetry.Metrics
	inFlight  map[string]map[string]struct{}
	opts      BatchOptions
	mu        sync.Mutex
}

// NewBatchEmbedder creates a BatchEmbedder. sink may be nil.
func NewBatchEmbedder(store service.TransactionStore, generator *Generator, sink Sink, metrics *telemetry.Metrics, opts BatchOptions) *BatchEmbedder {
	defaults := DefaultBatchOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = defaults.PageSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	return &BatchEmbedder{
		store:     store,
		generator: generator,
		sink:      sink,
		metrics:   metrics,
		opts:      opts,
		inFlight:  make(map[string]map[string]struct{}),
	}
}

// Run embeds up to limit transactions of companyID that lack a current
// embedding. It is safe to re-invoke after cancellation or failure; the
// returned summary counts rows actually written even when err != nil.
func (b *BatchEmbedder) Run(ctx context.Context, companyID string, limit int) (*BatchSummary, error) {
	return b.RunWithProgress(ctx, companyID, limit, b.opts.Progress)
}

// RunWithProgress is Run with a progress callback for this run only.
func (b *BatchEmbedder) RunWithProgress(ctx context.Context, companyID string, limit int, progress func(embedded int)) (*BatchSummary, error) {
	start := time.Now()
	summary := &BatchSummary{Requested: limit}
	if companyID == "" {
		return summary, common.InvalidInput("company id is required")
	}
	if limit <= 0 {
		return summary, common.InvalidInput("limit must be positive, got %d", limit)
	}

	ctx = common.WithCompany(ctx, companyID)
	log := common.Logger(ctx)

	var embedded atomic.Int64
	remaining := limit
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			summary.Embedded = int(embedded.Load())
			return summary, err
		}

		claimed, err := b.claim(ctx, companyID, min(remaining, b.opts.PageSize))
		if err != nil {
			summary.Embedded = int(embedded.Load())
			return summary, err
		}
		if len(claimed) == 0 {
			break
		}
		remaining -= len(claimed)

		written, err := b.embedPage(ctx, claimed, &embedded, progress)
		b.release(companyID, claimed)
		summary.Skipped += len(claimed) - written
		if err != nil {
			summary.Embedded = int(embedded.Load())
			summary.ProcessingTime = time.Since(start)
			log.Warn("Batch embedding stopped",
				"embedded", summary.Embedded,
				"error", err)
			return summary, err
		}
	}

	summary.Embedded = int(embedded.Load())
	summary.ProcessingTime = time.Since(start)
	b.metrics.BatchEmbedded(summary.Embedded)
	log.Info("Batch embedding complete",
		"requested", limit,
		"embedded", summary.Embedded,
		"skipped", summary.Skipped,
		"duration", summary.ProcessingTime)
	return summary, nil
}

// claim fetches up to n transactions needing embeddings, skipping and then
// reserving ids held by other in-flight runs.
func (b *BatchEmbedder) claim(ctx context.Context, companyID string, n int) ([]model.Transaction, error) {
	b.mu.Lock()
	held := b.inFlight[companyID]
	exclude := make([]string, 0, len(held))
	for id := range held {
		exclude = append(exclude, id)
	}
	b.mu.Unlock()

	txns, err := b.store.ListNeedingEmbedding(ctx, companyID, n, exclude)
	if err != nil {
		return nil, fmt.Errorf("listing transactions needing embeddings: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	held = b.inFlight[companyID]
	if held == nil {
		held = make(map[string]struct{})
		b.inFlight[companyID] = held
	}
	claimed := txns[:0]
	for _, txn := range txns {
		if _, taken := held[txn.ID]; taken {
			continue
		}
		held[txn.ID] = struct{}{}
		claimed = append(claimed, txn)
	}
	return claimed, nil
}

func (b *BatchEmbedder) release(companyID string, txns []model.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	held := b.inFlight[companyID]
	for _, txn := range txns {
		delete(held, txn.ID)
	}
	if len(held) == 0 {
		delete(b.inFlight, companyID)
	}
}

func (b *BatchEmbedder) embedPage(ctx context.Context, txns []model.Transaction, embedded *atomic.Int64, progress func(int)) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)

	var written atomic.Int64
	for chunkStart := 0; chunkStart < len(txns); chunkStart += b.opts.ChunkSize {
		chunk := txns[chunkStart:min(chunkStart+b.opts.ChunkSize, len(txns))]
		g.Go(func() error {
			n, err := b.embedChunk(gctx, chunk)
			written.Add(int64(n))
			if n > 0 {
				total := embedded.Add(int64(n))
				if progress != nil {
					progress(int(total))
				}
			}
			return err
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return int(written.Load()), err
}

func (b *BatchEmbedder) embedChunk(ctx context.Context, chunk []model.Transaction) (int, error) {
	texts := make([]string, len(chunk))
	for i := range chunk {
		texts[i] = TransactionText(&chunk[i])
	}

	vecs, err := b.generator.EmbedMany(ctx, texts)
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range chunk {
		txn := chunk[i]
		ok, err := b.store.SetEmbedding(ctx, txn.CompanyID, txn.ID, vecs[i])
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return written, fmt.Errorf("storing embedding for %s: %w", txn.ID, err)
		}
		if !ok {
			continue
		}
		written++

		if b.sink != nil && txn.IsReviewed() {
			txn.Embedding = vecs[i]
			txn.EmbeddingStale = false
			if err := b.sink.Upsert(ctx, txn, vecs[i]); err != nil {
				common.LogError(ctx, err, "Failed to index embedded transaction", common.Fields{
					"transaction_id": txn.ID,
				})
			}
		}
	}
	return written, nil
}
