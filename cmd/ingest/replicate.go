package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"watch-history/pkg/config"
	"watch-history/pkg/db"
	"watch-history/pkg/replication"
)

func newReplicateCmd(a *app) *cobra.Command {
	var to string
	var batchSize, workers int

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Copy records stored in MongoDB into Postgres or Supabase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if to == config.BackendMongo {
				return fmt.Errorf("target must differ from the mongo source")
			}
			if a.cfg.Mongo.URI == "" {
				return fmt.Errorf("mongo.uri (MONGO_URI) is required as replication source")
			}

			source := db.NewMongoClient(a.cfg.Mongo.URI, a.cfg.Mongo.Database)
			if err := source.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to mongo: %w", err)
			}
			defer source.Close(context.Background())

			targetCfg := *a.cfg
			targetCfg.Storage.Backend = to
			svc := &service{}
			defer svc.Close()
			target, err := openStore(ctx, &targetCfg, a.logger, svc)
			if err != nil {
				return err
			}
			if target == nil {
				return fmt.Errorf("%s storage is not configured", to)
			}

			replicator, err := replication.NewReplicator(replication.Config{
				Source:    source,
				Target:    target,
				BatchSize: batchSize,
				Workers:   workers,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			start := time.Now()
			n, err := replicator.Replicate(ctx)
			if err != nil {
				return fmt.Errorf("replication failed after %d records: %w", n, err)
			}
			a.logger.Info("Done", "replicated", n, "duration", time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", config.BackendPostgres, "target backend: postgres or supabase")
	cmd.Flags().IntVar(&batchSize, "batch-size", replication.DefaultBatchSize, "records per insert")
	cmd.Flags().IntVar(&workers, "replicate-workers", replication.DefaultWorkers, "parallel batch writers")
	return cmd
}
