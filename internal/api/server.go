// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/funnel"
	"github.com/nicodishanthj/funnelsim/internal/run"
	"github.com/nicodishanthj/funnelsim/internal/store"
)

type Server struct {
	router  chi.Router
	runs    *run.Manager
	archive *store.Store
	cfg     Config
}

// Config controls the HTTP surface: where UI assets live and the defaults
// advertised to clients through /v1/defaults.
type Config struct {
	UIDir           string
	DefaultModel    string
	DefaultPersonas int
	MaxFlowSteps    int
	SampleFlow      string
}

// DefaultConfig returns the standard configuration used when no overrides
// are provided.
func DefaultConfig() Config {
	return Config{
		UIDir:           filepath.Join("web", "ui"),
		DefaultModel:    "gpt-4o-mini",
		DefaultPersonas: funnel.DefaultPersonas,
		MaxFlowSteps:    funnel.DefaultMaxSteps,
		SampleFlow:      defaultSampleFlow,
	}
}

// Merge overlays non-zero configuration values from the override onto the
// base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.UIDir) != "" {
		result.UIDir = strings.TrimSpace(override.UIDir)
	}
	if strings.TrimSpace(override.DefaultModel) != "" {
		result.DefaultModel = strings.TrimSpace(override.DefaultModel)
	}
	if override.DefaultPersonas > 0 {
		result.DefaultPersonas = override.DefaultPersonas
	}
	if override.MaxFlowSteps > 0 {
		result.MaxFlowSteps = override.MaxFlowSteps
	}
	if strings.TrimSpace(override.SampleFlow) != "" {
		result.SampleFlow = override.SampleFlow
	}
	return result
}

// NewServer builds the HTTP server around an existing run manager. The
// archive store may be nil, in which case archived-run endpoints fall back
// to in-memory history only.
func NewServer(runs *run.Manager, archive *store.Store, cfg *Config) (*Server, error) {
	logger := common.Logger()
	if runs == nil {
		return nil, fmt.Errorf("run manager required")
	}
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	logger.Info(
		"api: building server",
		"archive_available", archive != nil,
		"ui_dir", configuration.UIDir,
		"default_model", configuration.DefaultModel,
	)
	srv := &Server{
		router:  chi.NewRouter(),
		runs:    runs,
		archive: archive,
		cfg:     configuration,
	}
	srv.routes()
	logger.Info("api: server ready", "routes", true)
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	uiPath := s.cfg.UIDir
	if _, err := os.Stat(filepath.Join(uiPath, "index.html")); err != nil {
		logger.Warn("api: ui index missing", "path", filepath.Join(uiPath, "index.html"), "error", err)
	} else {
		logger.Info("api: ui assets located", "path", uiPath)
	}
	fileServer := http.FileServer(http.Dir(uiPath))
	s.router.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusMovedPermanently)
	})
	s.router.Get("/ui/*", func(w http.ResponseWriter, r *http.Request) {
		trimmed := strings.TrimPrefix(r.URL.Path, "/ui/")
		if trimmed == "" || trimmed == "/" {
			http.ServeFile(w, r, filepath.Join(uiPath, "index.html"))
			return
		}
		http.StripPrefix("/ui/", fileServer).ServeHTTP(w, r)
	})

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	s.router.Get("/v1/defaults", s.handleDefaults)
	s.router.Post("/v1/flow/parse", s.handleFlowParse)
	s.router.Post("/v1/runs", s.handleRunStart)
	s.router.Get("/v1/runs", s.handleRunList)
	s.router.Get("/v1/runs/{runID}", s.handleRunStatus)
	s.router.Post("/v1/runs/{runID}/stop", s.handleRunStop)
	s.router.Get("/v1/runs/{runID}/result", s.handleRunResult)
	s.router.Get("/v1/runs/{runID}/export", s.handleRunExport)
	s.router.Get("/v1/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
