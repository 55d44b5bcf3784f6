package db

import (
	"context"

	"watch-history/pkg/domain"
)

// CleanedDataTable is the table (or collection) enriched viewing records are written to.
const CleanedDataTable = "cleaned_data"

// RecordStore writes a batch of records in one bulk call.
// Implementations either accept the whole batch or return an error.
type RecordStore interface {
	InsertCleanedRows(ctx context.Context, rows []domain.PersistedRecord) error
}

var (
	_ RecordStore = (*SupabaseClient)(nil)
	_ RecordStore = (*PostgresClient)(nil)
	_ RecordStore = (*MongoClient)(nil)
)
