// Package server exposes the analyzer over HTTP: manifest uploads in,
// persisted reports out.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/deps"
	"github.com/depsentry/depsentry/pkg/deps/javascript"
	"github.com/depsentry/depsentry/pkg/deps/python"
	"github.com/depsentry/depsentry/pkg/errors"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/stages"
	"github.com/depsentry/depsentry/pkg/store"
)

// maxManifestSize bounds uploaded manifests. Lockfiles for large
// monorepos run to a few megabytes; 32 MiB is generous.
const maxManifestSize = 32 << 20

// Config wires the server's collaborators.
type Config struct {
	Store  store.Store
	Cache  cache.Cache
	Logger *log.Logger

	// Budget bounds each scan's pipeline run.
	Budget time.Duration

	// InternalPrefixes feed dependency-confusion detection.
	InternalPrefixes []string

	// Synthesis is optional; nil relies on the local fallback.
	Synthesis *stages.SynthesisStage

	// Refresh bypasses cached registry responses.
	Refresh bool
}

// Server handles scan and report requests.
type Server struct {
	cfg     Config
	parsers []deps.ManifestParser
	keyer   cache.Keyer

	// run executes the pipeline for a parsed manifest. Swapped in tests.
	run func(ctx context.Context, result *deps.ManifestResult) *analysis.Report
}

// New creates a Server. Store is required; a nil logger defaults.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Budget <= 0 {
		cfg.Budget = analysis.DefaultBudget
	}
	s := &Server{
		cfg:     cfg,
		parsers: []deps.ManifestParser{&javascript.PackageLock{}, &python.PoetryLock{}},
		keyer:   cache.NewDefaultKeyer(),
	}
	s.run = s.analyze
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scan", s.handleScan)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{id}", s.handleGetReport)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScan accepts a manifest upload, runs the pipeline, persists the
// report, and returns it. The manifest arrives as the request body with
// its filename in the "filename" query parameter.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if err := errors.ValidateManifestFilename(filename); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	parser, err := deps.DetectManifest(filename, s.parsers...)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrCodeInvalidManifest, err, "unsupported manifest"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxManifestSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrCodeInvalidInput, err, "read manifest"))
		return
	}

	// Parsers work on files; stage the upload in a scratch directory.
	dir, err := os.MkdirTemp("", "depsentry-scan-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "stage manifest"))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "stage manifest"))
		return
	}

	result, err := parser.Parse(path, deps.Options{Refresh: s.cfg.Refresh})
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s", filename))
		return
	}

	// Identical manifests produce identical graphs; serve the cached
	// report unless the client asks for a fresh scan.
	refresh := s.cfg.Refresh || r.URL.Query().Get("refresh") == "true"
	scanKey := s.keyer.GraphKey(string(result.Ecosystem), cache.Hash(body), cache.GraphKeyOpts{})
	if s.cfg.Cache != nil && !refresh {
		if data, ok, _ := s.cfg.Cache.Get(r.Context(), scanKey); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}

	report := s.run(r.Context(), result)

	if s.cfg.Store != nil {
		if err := s.cfg.Store.Save(r.Context(), report); err != nil {
			s.cfg.Logger.Error("persist report", "id", report.ID, "err", err)
			// The scan succeeded; return the report anyway.
		}
	}

	if s.cfg.Cache != nil {
		if data, err := analysis.MarshalReport(report); err == nil {
			_ = s.cfg.Cache.Set(r.Context(), scanKey, data, cache.TTLGraph)
		}
	}

	writeJSON(w, http.StatusOK, report)
}

// analyze runs the real pipeline for a parsed manifest.
func (s *Server) analyze(ctx context.Context, result *deps.ManifestResult) *analysis.Report {
	g := new(graph.Builder).Build(result.Edges)
	pipeline := stages.DefaultPipeline(stages.Config{
		Backend:          s.cfg.Cache,
		Graph:            g,
		InternalPrefixes: s.cfg.InternalPrefixes,
		Synthesis:        s.cfg.Synthesis,
		Refresh:          s.cfg.Refresh,
	})

	pkgs := analysis.ExtractPackages(result.Findings, g)
	o := analysis.NewOrchestrator(pipeline,
		analysis.WithBudget(s.cfg.Budget),
		analysis.WithLogger(s.cfg.Logger),
	)
	return o.Run(ctx, pkgs, result.Findings, g.Summarize())
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.cfg.Store.Get(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New(errors.ErrCodeReportNotFound, "report %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "load report"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ids, err := s.cfg.Store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(errors.ErrCodeInternal, err, "list reports"))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": ids})
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    string(errors.GetCode(err)),
		Message: errors.UserMessage(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
