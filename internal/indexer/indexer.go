package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/metrics"
	"github.com/zfogg/petfinder/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 500
	DefaultWorkers   = 4
)

// PetSource pages canonical pet records
type PetSource interface {
	ListPets(ctx context.Context, offset, limit int) ([]models.Pet, error)
}

// PetIndexer writes pets to the search index
type PetIndexer interface {
	BulkIndexPets(ctx context.Context, pets []models.Pet) error
	IndexPet(ctx context.Context, pet models.Pet) error
}

// Result summarises one sync run
type Result struct {
	Total           int           `json:"total"`
	Indexed         int           `json:"indexed"`
	Failed          int           `json:"failed"`
	Batches         int           `json:"batches"`
	DegradedBatches int           `json:"degradedBatches"`
	Duration        time.Duration `json:"duration"`
}

// Indexer copies every pet from the canonical store into the search index
type Indexer struct {
	source    PetSource
	target    PetIndexer
	batchSize int
	workers   int
}

// New creates an indexer. Non-positive sizes fall back to the defaults.
func New(source PetSource, target PetIndexer, batchSize, workers int) *Indexer {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Indexer{source: source, target: target, batchSize: batchSize, workers: workers}
}

// Sync pages through the source and bulk-indexes each batch on a worker
// pool. A batch whose bulk call fails is retried one pet at a time so
// individual failures can be counted.
func (ix *Indexer) Sync(ctx context.Context) (*Result, error) {
	start := time.Now()

	pool, err := ants.NewPool(ix.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer pool: %w", err)
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result Result
	)

	record := func(indexed, failed int, degraded bool) {
		mu.Lock()
		defer mu.Unlock()
		result.Indexed += indexed
		result.Failed += failed
		if degraded {
			result.DegradedBatches++
		}
	}

	var listErr error
	for offset := 0; ; offset += ix.batchSize {
		if err := ctx.Err(); err != nil {
			listErr = err
			break
		}

		batch, err := ix.source.ListPets(ctx, offset, ix.batchSize)
		if err != nil {
			listErr = fmt.Errorf("failed to list pets at offset %d: %w", offset, err)
			break
		}
		if len(batch) == 0 {
			break
		}

		result.Total += len(batch)
		result.Batches++

		task := func() {
			defer wg.Done()
			record(ix.indexBatch(ctx, batch))
		}
		wg.Add(1)
		if err := pool.Submit(task); err != nil {
			task()
		}

		if len(batch) < ix.batchSize {
			break
		}
	}

	wg.Wait()
	result.Duration = time.Since(start)

	logger.Log.Info("Pet index sync finished",
		zap.Int("total", result.Total),
		zap.Int("indexed", result.Indexed),
		zap.Int("failed", result.Failed),
		zap.Int("degraded_batches", result.DegradedBatches),
		logger.WithDuration(result.Duration),
	)

	if listErr != nil {
		return &result, listErr
	}
	return &result, nil
}

func (ix *Indexer) indexBatch(ctx context.Context, batch []models.Pet) (indexed, failed int, degraded bool) {
	err := ix.target.BulkIndexPets(ctx, batch)
	if err == nil {
		metrics.ElasticsearchSyncedDocuments.WithLabelValues("bulk", "success").Add(float64(len(batch)))
		return len(batch), 0, false
	}

	logger.WarnWithFields("Bulk index failed, retrying pets individually", err, zap.Int("batch_size", len(batch)))
	for _, pet := range batch {
		if err := ix.target.IndexPet(ctx, pet); err != nil {
			failed++
			metrics.ElasticsearchSyncedDocuments.WithLabelValues("single", "failure").Inc()
			logger.WarnWithFields("Failed to index pet", err, logger.WithPetID(pet.ID))
			continue
		}
		indexed++
		metrics.ElasticsearchSyncedDocuments.WithLabelValues("single", "success").Inc()
	}
	return indexed, failed, true
}
