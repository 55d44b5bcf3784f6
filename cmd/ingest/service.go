package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"watch-history/pkg/config"
	"watch-history/pkg/db"
	"watch-history/pkg/persister"
	"watch-history/pkg/pipeline"
	"watch-history/pkg/resolver"
	"watch-history/pkg/tmdb"
)

// service is the wired ingest pipeline plus whatever needs closing.
type service struct {
	ingestor *pipeline.Ingestor
	resolver *resolver.Resolver
	closers  []func() error
}

func (s *service) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

// buildService connects the configured storage backend and assembles the
// pipeline. Missing storage settings leave the store unset so that every
// batch fails with a storage error instead of being dropped.
func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service, error) {
	svc := &service{}

	store, err := openStore(ctx, cfg, logger, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}

	tmdbClient := tmdb.NewClient(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Timeout)
	if !tmdbClient.IsConfigured() {
		logger.Warn("TMDB_API_KEY is not set, records will be stored without metadata")
	}

	svc.resolver = resolver.New(tmdbClient, resolver.Config{
		Timeout:   cfg.TMDB.Timeout,
		RateLimit: cfg.TMDB.RateLimit,
	}, logger)

	svc.ingestor = pipeline.NewIngestor(
		svc.resolver,
		persister.New(store, logger),
		pipeline.Config{Workers: cfg.Ingest.Workers},
		logger,
	)
	return svc, nil
}

// openStore returns nil, nil when the selected backend is not configured.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, svc *service) (db.RecordStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendSupabase:
		client := db.NewSupabaseClient(db.SupabaseConfig{
			SupabaseURL:      cfg.Supabase.URL,
			ServiceKey:       cfg.Supabase.ServiceKey,
			ConnectionString: cfg.Supabase.DBConnection,
		})
		if err := client.Connect(ctx); err != nil {
			if errors.Is(err, db.ErrStorageNotConfigured) {
				logger.Warn("SUPABASE_URL or SUPABASE_SERVICE_KEY is not set, ingestion will fail at the storage step")
				return nil, nil
			}
			return nil, fmt.Errorf("connect to supabase: %w", err)
		}
		svc.closers = append(svc.closers, client.Close)
		logger.Info("Storage: supabase", "direct_db", client.HasDirectDB())
		return client, nil

	case config.BackendPostgres:
		client := db.NewPostgresClient(db.PostgresConfig{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
		})
		if err := client.Connect(ctx); err != nil {
			if errors.Is(err, db.ErrStorageNotConfigured) {
				logger.Warn("POSTGRES_DSN is not set, ingestion will fail at the storage step")
				return nil, nil
			}
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		svc.closers = append(svc.closers, client.Close)
		if cfg.Postgres.Migrate {
			if err := client.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		logger.Info("Storage: postgres")
		return client, nil

	case config.BackendMongo:
		if cfg.Mongo.URI == "" {
			logger.Warn("MONGO_URI is not set, ingestion will fail at the storage step")
			return nil, nil
		}
		client := db.NewMongoClient(cfg.Mongo.URI, cfg.Mongo.Database)
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		svc.closers = append(svc.closers, func() error { return client.Close(context.Background()) })
		logger.Info("Storage: mongo", "database", cfg.Mongo.Database)
		return client, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
