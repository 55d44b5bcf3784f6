package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"watch-history/pkg/config"
	"watch-history/pkg/domain"
	"watch-history/pkg/httpclient"
	"watch-history/pkg/logging"
	"watch-history/pkg/parser"
	"watch-history/pkg/server"
)

// app carries what every subcommand needs after flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var configFile string

	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Ingest watch-history CSV exports enriched with TMDB metadata",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				a.v.SetConfigFile(configFile)
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			a.cfg, a.logger, a.closer = cfg, logger, closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./watch-history.{yaml,json,toml} if present)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "also write JSON logs to this rotated file")
	flags.String("storage", "", "storage backend: supabase, postgres or mongo")
	flags.Int("workers", 0, "concurrent metadata lookups per batch")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.file", flags.Lookup("log-file"))
	_ = a.v.BindPFlag("storage.backend", flags.Lookup("storage"))
	_ = a.v.BindPFlag("ingest.workers", flags.Lookup("workers"))

	root.AddCommand(newFileCmd(a), newServeCmd(a), newUploadCmd(a), newReplicateCmd(a))
	return root
}

func newFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "file <csv>",
		Short: "Ingest one export file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open export: %w", err)
			}
			defer f.Close()

			rows, err := parser.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("failed to parse CSV file: %w", err)
			}

			svc, err := buildService(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			start := time.Now()
			inserted, err := svc.ingestor.Ingest(ctx, rows)
			stats := svc.resolver.Stats()
			a.logger.Info("Resolver stats",
				"lookups", stats.Lookups,
				"cache_hits", stats.CacheHits,
				"coalesced", stats.Coalesced,
				"external_calls", stats.ExternalCalls,
				"failures", stats.Failures,
				"no_results", stats.NoResults,
			)
			if err != nil {
				return err
			}
			a.logger.Info("Done", "file", args[0], "inserted", inserted, "duration", time.Since(start))

			return json.NewEncoder(cmd.OutOrStdout()).Encode(domain.IngestSummary{Success: true, Inserted: inserted})
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /ingest/csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := buildService(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := server.New(svc.ingestor, server.Config{
				Addr:           a.cfg.HTTP.Addr,
				MaxUploadBytes: a.cfg.HTTP.MaxUploadBytes,
			}, a.logger)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :3000)")
	_ = a.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var url string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "upload <csv>",
		Short: "Send an export to a running ingest server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open export: %w", err)
			}
			defer f.Close()

			client := httpclient.NewClient(httpclient.UploadClient, timeout)
			endpoint := strings.TrimRight(url, "/") + "/ingest/csv"
			resp, err := client.PostFile(cmd.Context(), endpoint, "file", filepath.Base(args[0]), f)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:3000", "base URL of the ingest server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")
	return cmd
}
