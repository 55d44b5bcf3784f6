// Package server exposes CSV ingestion over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"watch-history/pkg/domain"
	"watch-history/pkg/parser"
	"watch-history/pkg/pipeline"
)

// DefaultMaxUploadBytes caps the size of an uploaded export.
const DefaultMaxUploadBytes = 5 << 20

// Ingester runs a batch of parsed rows to storage.
type Ingester interface {
	Ingest(ctx context.Context, rows []domain.RawIngestionRow) (int, error)
}

// Config holds server settings.
type Config struct {
	Addr           string
	MaxUploadBytes int64
}

// Server is the HTTP front of the ingest pipeline.
type Server struct {
	ingester  Ingester
	maxUpload int64
	addr      string
	logger    *slog.Logger
	router    *mux.Router
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// New creates a Server and registers its routes.
func New(ingester Ingester, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	s := &Server{
		ingester:  ingester,
		maxUpload: maxUpload,
		addr:      cfg.Addr,
		logger:    logger.With("component", "server"),
		router:    mux.NewRouter(),
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ingest/csv", s.handleUploadCSV).Methods(http.MethodPost)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUploadCSV ingests the multipart field "file".
func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	rows, err := parser.ParseCSV(file)
	if err != nil {
		s.logger.Warn("Server: CSV parsing error", "file", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to parse CSV file: "+err.Error())
		return
	}

	inserted, err := s.ingester.Ingest(r.Context(), rows)
	if err != nil {
		status, message := classify(err)
		s.logger.Error("Server: ingestion failed", "file", header.Filename, "status", status, "error", err)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusCreated, domain.IngestSummary{Success: true, Inserted: inserted})
}

// classify maps an ingestion failure to a status code and message.
func classify(err error) (int, string) {
	var ingestErr *pipeline.IngestionError
	if !errors.As(err, &ingestErr) {
		return http.StatusInternalServerError, err.Error()
	}

	switch ingestErr.Stage {
	case pipeline.StageParse, pipeline.StageClean:
		return http.StatusBadRequest, "Failed to parse CSV file: " + ingestErr.Err.Error()
	case pipeline.StagePersist:
		return http.StatusBadGateway, "Failed to store records: " + ingestErr.Err.Error()
	default:
		return http.StatusServiceUnavailable, ingestErr.Err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}
