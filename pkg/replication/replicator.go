// Package replication copies stored viewing records from one backend to
// another, e.g. from MongoDB into Postgres.
package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"watch-history/pkg/db"
	"watch-history/pkg/domain"
)

const (
	DefaultBatchSize = 500
	DefaultWorkers   = 4
)

// Source reads every stored record.
type Source interface {
	ReadCleanedRows(ctx context.Context) ([]domain.PersistedRecord, error)
}

// Config wires the replication dependencies.
type Config struct {
	Source    Source
	Target    db.RecordStore
	BatchSize int
	Workers   int
	Logger    *slog.Logger
}

// Replicator copies records from Source to Target.
//
// This is a one-shot "copy everything" flow. Running it twice copies the
// records twice; the target is expected to be empty.
type Replicator struct {
	source    Source
	target    db.RecordStore
	batchSize int
	workers   int
	logger    *slog.Logger
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source store is required")
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("target store is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Replicator{
		source:    cfg.Source,
		target:    cfg.Target,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger.With("component", "replicator"),
	}, nil
}

// Replicate copies all records and returns how many were written. Each batch
// is written atomically by the target; on error, batches that already
// succeeded stay written and the count reflects them.
func (r *Replicator) Replicate(ctx context.Context) (int, error) {
	rows, err := r.source.ReadCleanedRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("read source: %w", err)
	}
	if len(rows) == 0 {
		r.logger.Info("Replicator: source is empty, nothing to copy")
		return 0, nil
	}

	r.logger.Info("Replicator: loaded records, processing in batches", "records", len(rows), "batch_size", r.batchSize)

	inserted, err := r.processBatches(ctx, rows)
	if err != nil {
		return inserted, err
	}

	r.logger.Info("Replicator: replication complete", "inserted", inserted)
	return inserted, nil
}

// processBatches writes rows in batches in parallel and returns the number
// of rows written.
func (r *Replicator) processBatches(ctx context.Context, rows []domain.PersistedRecord) (int, error) {
	type batchJob struct {
		batch []domain.PersistedRecord
		start int
		end   int
	}

	type batchResult struct {
		inserted int
		err      error
	}

	numBatches := (len(rows) + r.batchSize - 1) / r.batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		jobs <- batchJob{batch: rows[start:end], start: start, end: end}
	}
	close(jobs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- batchResult{err: ctx.Err()}
					continue
				}
				if err := r.target.InsertCleanedRows(ctx, job.batch); err != nil {
					results <- batchResult{err: fmt.Errorf("insert batch [%d:%d]: %w", job.start, job.end, err)}
					continue
				}
				results <- batchResult{inserted: len(job.batch)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect everything; the first error cancels the remaining batches.
	total := 0
	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				cancel()
			}
			continue
		}
		total += result.inserted
		r.logger.Debug("Replicator: progress", "inserted", total, "total", len(rows))
	}

	return total, firstErr
}
