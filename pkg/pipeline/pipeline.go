package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"watch-history/pkg/cleaner"
	"watch-history/pkg/domain"
)

// DefaultWorkers is the number of concurrent metadata lookups per batch.
const DefaultWorkers = 8

// Stages reported by IngestionError.
const (
	StageParse   = "parse"
	StageClean   = "clean"
	StageResolve = "resolve"
	StagePersist = "persist"
)

// ErrEmptyBatch is returned when Ingest is called without rows.
var ErrEmptyBatch = errors.New("no rows to ingest")

// IngestionError wraps the failure that aborted a batch.
type IngestionError struct {
	Stage string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed at %s stage: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// MetadataResolver resolves a canonical title to its metadata, or nil.
type MetadataResolver interface {
	Resolve(ctx context.Context, canonicalTitle string) *domain.MetadataResult
}

// RecordPersister stores a batch of records in one all-or-nothing write.
type RecordPersister interface {
	PersistAll(ctx context.Context, records []domain.CleanedRecord) error
}

// Config holds orchestrator tuning.
type Config struct {
	// Workers bounds concurrent metadata lookups. <= 0 selects DefaultWorkers.
	Workers int
}

// Ingestor runs a batch of raw rows through cleaning, metadata resolution
// and persistence.
type Ingestor struct {
	resolver  MetadataResolver
	persister RecordPersister
	workers   int
	logger    *slog.Logger
}

// NewIngestor creates a new Ingestor.
func NewIngestor(resolver MetadataResolver, persister RecordPersister, cfg Config, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Ingestor{
		resolver:  resolver,
		persister: persister,
		workers:   workers,
		logger:    logger.With("component", "ingestor"),
	}
}

// Ingest processes rows and returns the number of records inserted.
//
// Every row is cleaned before any lookup starts; a row that cannot be
// cleaned aborts the batch. Lookups run concurrently and never fail the
// batch; unresolved rows are stored without metadata. The batch is then
// written in one call, so on error nothing has been inserted.
func (in *Ingestor) Ingest(ctx context.Context, rows []domain.RawIngestionRow) (int, error) {
	if len(rows) == 0 {
		return 0, &IngestionError{Stage: StageParse, Err: ErrEmptyBatch}
	}

	batchID := uuid.NewString()
	logger := in.logger.With("batch_id", batchID)
	start := time.Now()
	logger.Info("Ingestor: batch received", "rows", len(rows))

	records, err := cleanAll(rows)
	if err != nil {
		logger.Warn("Ingestor: row rejected, aborting batch", "error", err)
		return 0, &IngestionError{Stage: StageClean, Err: err}
	}

	matched := in.resolveAll(ctx, records)
	if err := ctx.Err(); err != nil {
		logger.Warn("Ingestor: context cancelled during metadata resolution", "error", err)
		return 0, &IngestionError{Stage: StageResolve, Err: err}
	}
	logger.Info("Ingestor: metadata resolved", "rows", len(records), "matched", matched, "unmatched", len(records)-matched)

	if err := in.persister.PersistAll(ctx, records); err != nil {
		logger.Error("Ingestor: persist failed", "error", err)
		return 0, &IngestionError{Stage: StagePersist, Err: err}
	}

	logger.Info("Ingestor: batch stored", "inserted", len(records), "duration", time.Since(start))
	return len(records), nil
}

// cleanAll cleans rows in input order. The first failure is returned with
// its 1-based row number.
func cleanAll(rows []domain.RawIngestionRow) ([]domain.CleanedRecord, error) {
	records := make([]domain.CleanedRecord, len(rows))
	for i, row := range rows {
		rec, err := cleaner.Clean(row)
		if err != nil {
			var parseErr *cleaner.ParseError
			if errors.As(err, &parseErr) && parseErr.Row == 0 {
				parseErr.Row = i + 1
			}
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}

// resolveAll fills in Metadata for each record with a bounded pool of
// workers and returns how many records got a match. Each worker writes only
// its own index.
func (in *Ingestor) resolveAll(ctx context.Context, records []domain.CleanedRecord) int {
	matches := make([]bool, len(records))

	p := pool.New().WithMaxGoroutines(in.workers)
	for i := range records {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			m := in.resolver.Resolve(ctx, records[i].Title)
			records[i].Metadata = m
			matches[i] = m != nil
		})
	}
	p.Wait()

	matched := 0
	for _, ok := range matches {
		if ok {
			matched++
		}
	}
	return matched
}
