// Package server exposes the ingest and query pipeline over HTTP and
// handles graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/askdocs/askdocs/internal/index"
	"github.com/askdocs/askdocs/internal/pipeline"
	"github.com/askdocs/askdocs/internal/store"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	MaxUploadBytes int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8000",
		MaxUploadBytes: 64 << 20,
	}
}

// Server is the HTTP front of the pipeline.
type Server struct {
	config     *Config
	controller *pipeline.Controller
	store      *store.Store
	health     *Health
	log        *slog.Logger
	server     *http.Server
}

// New creates a Server around the given controller and store.
func New(config *Config, controller *pipeline.Controller, docStore *store.Store, log *slog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		config:     config,
		controller: controller,
		store:      docStore,
		health:     NewHealth(),
		log:        log,
	}
	s.health.RegisterCheck("pipeline", s.pipelineCheck)
	s.health.RegisterCheck("storage", s.storageCheck)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/llm", s.handleQuery)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/documents", s.handleUpload)
	mux.HandleFunc("/healthz", s.health.handleHealth)
	mux.HandleFunc("/readyz", s.health.handleReady)
	mux.HandleFunc("/livez", s.health.handleLive)

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      corsMiddleware(loggingMiddleware(log, mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // model calls are slow
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start begins serving. Blocks until Stop or listen failure.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.config.Addr)
	s.health.SetReady(true)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.health.SetReady(false)
	s.log.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleRoot answers the root acknowledgment used by frontends to
// probe the backend.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "not found", "")
		return
	}
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "askdocs backend ready"})
}

// handleQuery answers GET /llm?user_prompt=... with {"answer": ...}.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	prompt := r.URL.Query().Get("user_prompt")
	if prompt == "" {
		respondError(w, http.StatusBadRequest, "missing user_prompt parameter", "")
		return
	}

	answer, err := s.controller.Query(r.Context(), prompt)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
	case errors.Is(err, pipeline.ErrNotReady):
		respondError(w, http.StatusBadRequest, "No documents indexed. Please upload files first.", "")
	default:
		s.log.Error("query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Model backend unavailable", err.Error())
	}
}

// handleIngest triggers a full rebuild. Failures are reported to the
// caller, not just logged.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	err := s.controller.Ingest(r.Context())
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "Done"})
	case errors.Is(err, pipeline.ErrNoDocuments), errors.Is(err, index.ErrEmptyCorpus):
		respondError(w, http.StatusBadRequest, "No documents to ingest. Upload files first.", err.Error())
	default:
		s.log.Error("ingest failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Ingest failed", err.Error())
	}
}

// uploadResponse aggregates per-file save status for a batch upload.
type uploadResponse struct {
	Saved   int      `json:"saved"`
	Total   int      `json:"total"`
	Results []string `json:"results"`
}

// handleUpload stores each multipart "files" part in the raw document
// area. One bad file does not fail the batch; ingest is a separate call.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files uploaded", "")
		return
	}

	resp := uploadResponse{Total: len(files)}
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			resp.Results = append(resp.Results, fmt.Sprintf("Error reading %s: %v", header.Filename, err))
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			resp.Results = append(resp.Results, fmt.Sprintf("Error reading %s: %v", header.Filename, err))
			continue
		}

		stored, err := s.store.Save(header.Filename, data)
		if err != nil {
			resp.Results = append(resp.Results, fmt.Sprintf("Error saving %s: %v", header.Filename, err))
			continue
		}
		resp.Saved++
		resp.Results = append(resp.Results, fmt.Sprintf("File %s successfully saved", stored))
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) pipelineCheck(ctx context.Context) HealthCheck {
	if s.controller.State() == pipeline.StateReady {
		return HealthCheck{Status: HealthStatusHealthy, Message: "index ready"}
	}
	return HealthCheck{Status: HealthStatusDegraded, Message: "no documents indexed yet"}
}

func (s *Server) storageCheck(ctx context.Context) HealthCheck {
	if _, err := s.store.ListRaw(); err != nil {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: "document storage failed: " + err.Error()}
	}
	return HealthCheck{Status: HealthStatusHealthy, Message: "document storage OK"}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, detail string) {
	body := map[string]string{"error": message}
	if detail != "" {
		body["detail"] = detail
	}
	respondJSON(w, status, body)
}

// loggingMiddleware logs each request with method, path, status and latency.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware allows browser frontends served from another port.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
