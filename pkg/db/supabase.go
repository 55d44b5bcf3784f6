package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	supabase "github.com/supabase-community/supabase-go"

	"watch-history/pkg/domain"
)

// ErrStorageNotConfigured is returned when the storage endpoint or credential is missing.
var ErrStorageNotConfigured = errors.New("storage endpoint and service credential are required")

// SupabaseConfig holds configuration required to reach Supabase.
type SupabaseConfig struct {
	// SupabaseURL is the project URL, e.g. "https://[project-ref].supabase.co".
	SupabaseURL string

	// ServiceKey is the service_role key. Inserts bypass row level security.
	ServiceKey string

	// ConnectionString optionally enables direct Postgres access to the
	// project database. When set, inserts run in a single transaction over
	// pgx instead of the REST API.
	ConnectionString string
}

// SupabaseClient writes cleaned records to the project's cleaned_data table.
type SupabaseClient struct {
	cfg         SupabaseConfig
	supabaseSDK *supabase.Client
	pg          *PostgresClient
}

// NewSupabaseClient constructs a Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect initializes the REST client and, when a connection string is
// configured, the direct database connection.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.SupabaseURL) == "" || strings.TrimSpace(c.cfg.ServiceKey) == "" {
		return ErrStorageNotConfigured
	}

	sdkClient, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.ServiceKey, nil)
	if err != nil {
		return fmt.Errorf("initialize supabase SDK: %w", err)
	}
	c.supabaseSDK = sdkClient

	if c.cfg.ConnectionString != "" {
		pg := NewPostgresClient(PostgresConfig{DSN: supabaseDSN(c.cfg.ConnectionString)})
		if err := pg.Connect(ctx); err != nil {
			return fmt.Errorf("connect supabase postgres: %w", err)
		}
		c.pg = pg
	}

	return nil
}

// Close closes the direct database connection, if any.
func (c *SupabaseClient) Close() error {
	if c.pg == nil {
		return nil
	}
	return c.pg.Close()
}

// HasDirectDB returns true if direct database connection is available.
func (c *SupabaseClient) HasDirectDB() bool {
	return c.pg != nil && c.pg.DB() != nil
}

// InsertCleanedRows bulk inserts rows. PostgREST runs the insert as one
// statement, so the batch is written entirely or not at all.
func (c *SupabaseClient) InsertCleanedRows(ctx context.Context, rows []domain.PersistedRecord) error {
	if len(rows) == 0 {
		return nil
	}
	if c.HasDirectDB() {
		return c.pg.InsertCleanedRows(ctx, rows)
	}
	if c.supabaseSDK == nil {
		return fmt.Errorf("supabase client not connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, count, err := c.supabaseSDK.From(CleanedDataTable).
		Insert(rows, false, "", "minimal", "exact").
		Execute()
	if err != nil {
		return fmt.Errorf("insert into %s: %w", CleanedDataTable, err)
	}
	if count > 0 && count != int64(len(rows)) {
		return fmt.Errorf("insert into %s: stored %d of %d rows", CleanedDataTable, count, len(rows))
	}
	return nil
}

// supabaseDSN disables the statement cache, which the Supabase pooler
// does not support in transaction mode.
func supabaseDSN(connStr string) string {
	connStr = addConnectionParam(connStr, "statement_cache_capacity", "0")
	return addConnectionParam(connStr, "default_query_exec_mode", "simple_protocol")
}

// addConnectionParam adds a query parameter to the connection string if not already present.
func addConnectionParam(connStr, key, value string) string {
	if strings.Contains(connStr, key+"=") {
		return connStr
	}

	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}

	return connStr + separator + key + "=" + value
}
