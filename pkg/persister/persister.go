// Package persister writes a batch of cleaned records to storage in one call.
package persister

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"watch-history/pkg/db"
	"watch-history/pkg/domain"
)

// StorageError reports a failed bulk write. Nothing from the batch is stored.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Persister maps cleaned records to their stored shape and hands them to a
// RecordStore as one batch.
type Persister struct {
	store  db.RecordStore
	logger *slog.Logger
}

// New creates a Persister. A nil store is allowed; every non-empty write
// then fails with ErrStorageNotConfigured.
func New(store db.RecordStore, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		store:  store,
		logger: logger.With("component", "persister"),
	}
}

// PersistAll writes every record in one bulk insert.
func (p *Persister) PersistAll(ctx context.Context, records []domain.CleanedRecord) error {
	if len(records) == 0 {
		return nil
	}
	if p.store == nil {
		return &StorageError{Op: "insert " + db.CleanedDataTable, Err: db.ErrStorageNotConfigured}
	}

	rows := make([]domain.PersistedRecord, len(records))
	for i := range records {
		rows[i] = ToPersisted(records[i])
	}

	start := time.Now()
	if err := p.store.InsertCleanedRows(ctx, rows); err != nil {
		p.logger.Error("Persister: bulk insert failed", "rows", len(rows), "error", err)
		return &StorageError{Op: "insert " + db.CleanedDataTable, Err: err}
	}

	p.logger.Info("Persister: bulk insert complete", "rows", len(rows), "duration", time.Since(start))
	return nil
}

// ToPersisted converts a cleaned record into its storage projection.
func ToPersisted(r domain.CleanedRecord) domain.PersistedRecord {
	return domain.PersistedRecord{
		StartTime:             r.StartTime.UTC(),
		ProfileName:           r.ProfileName,
		Country:               r.Country,
		Bookmark:              r.Bookmark,
		LatestBookmark:        r.LatestBookmark,
		SupplementalVideoType: r.SupplementalVideoType,
		Attributes:            r.Attributes,
		DeviceType:            r.DeviceType,
		Title:                 r.Title,
		Metadata:              r.Metadata,
	}
}
