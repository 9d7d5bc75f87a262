package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/scholarscout/scraper/app"
	"github.com/scholarscout/scraper/models"
)

const maxListLimit = 100

// Server represents the API server
type Server struct {
	app         *app.App
	addr        string
	server      *http.Server
	router      *chi.Mux
	corsEnabled bool
	logger      *slog.Logger
}

// Config contains server configuration
type Config struct {
	Addr        string
	CORSEnabled bool
	Logger      *slog.Logger
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		CORSEnabled: true,
	}
}

// NewServer creates a new API server on top of the wired service
func NewServer(config Config, a *app.App) *Server {
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		app:         a,
		addr:        config.Addr,
		router:      chi.NewRouter(),
		corsEnabled: config.CORSEnabled,
		logger:      logger,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      otelhttp.NewHandler(s.router, "scholarship-api"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // enrichment runs fetch several pages
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.middleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.app.Metrics.Handler())

	r.Route("/scholarships", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGetByID)
	})

	r.Route("/filter", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/check", s.handleCheck)
		r.Post("/best", s.handleBest)
		r.Get("/stats", s.handleFilterStats)
		r.Post("/cleanup", s.handleCleanup)
	})

	r.Post("/enrich", s.handleEnrich)
}

// Handler returns the instrumented root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the store
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.app.Close()
}

// middleware applies CORS headers and request logging
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		start := time.Now()
		next.ServeHTTP(w, r)

		// skip health checks to reduce noise
		if r.URL.Path != "/health" {
			s.logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
				"duration", time.Since(start),
			)
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.app.DB.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"count":  count,
		"time":   time.Now(),
	})
}

// handleList returns stored records, newest first
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", maxListLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.app.DB.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list failed", "err", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if records == nil {
		records = []*models.Record{}
	}

	respondJSON(w, http.StatusOK, records)
}

// handleGetByID returns one record
func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := s.app.DB.GetByID(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "get failed", "id", id, "err", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "scholarship not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// handleCreate runs one pushed candidate through the ingestion pipeline.
// Rejections are reported in the body with saved=false.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	skip, err := boolParam(r, "skip_validation")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var candidate models.Candidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	candidate.Platform = models.ParsePlatform(string(candidate.Platform))

	outcome, err := s.app.Coordinator.Ingest(r.Context(), candidate, s.app.Options(skip))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "ingest failed", "url", candidate.SourceURL, "err", err)
		respondError(w, http.StatusInternalServerError, "failed to save scholarship")
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// handleAnalyze returns the raw classifier verdict for a URL
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	target, ok := requireURL(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.app.Classifier.ClassifyURL(r.Context(), target))
}

// handleCheck returns the gatekeeper verdict for a URL
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	target, ok := requireURL(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.app.Gatekeeper.Filter(target))
}

// BestURLRequest is the body of POST /filter/best
type BestURLRequest struct {
	URLs []string `json:"urls"`
}

// BestURLResponse carries the chosen URL, empty when none pass the filter
type BestURLResponse struct {
	BestURL string   `json:"best_url"`
	Valid   []string `json:"valid"`
}

// handleBest picks the most direct scholarship link from a list
func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	var req BestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		respondError(w, http.StatusBadRequest, "urls is required")
		return
	}

	valid := s.app.Gatekeeper.FilterBatch(req.URLs)
	if valid == nil {
		valid = []string{}
	}
	respondJSON(w, http.StatusOK, BestURLResponse{
		BestURL: s.app.Gatekeeper.BestURL(req.URLs),
		Valid:   valid,
	})
}

// handleFilterStats re-evaluates stored records against the URL rules
func (s *Server) handleFilterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.FilterStats(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "filter stats failed", "err", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleCleanup removes stored records the URL rules now block
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	dryRun, err := boolParam(r, "dry_run")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.app.Cleanup(r.Context(), dryRun)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "cleanup failed", "err", err)
		respondError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleEnrich runs one enrichment pass
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.app.Enrich(r.Context(), limit)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.ErrorContext(r.Context(), "enrichment failed", "err", err)
		respondError(w, http.StatusInternalServerError, "enrichment failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func requireURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return "", false
	}
	return target, true
}

func intParam(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
