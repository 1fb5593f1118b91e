package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-radar-extract/internal/domain"
)

const maxRequestBytes = 1 << 20

// errOutsideRoot is returned for a request path that escapes the volume root.
var errOutsideRoot = errors.New("path is outside the volume root")

// ExtractConfig enables POST /extract.
type ExtractConfig struct {
	Loader domain.VolumeLoader
	// Root is the directory request paths are resolved against and confined to.
	Root string
	// Defaults apply to options a request leaves unset.
	Defaults domain.ExtractOptions
}

// Server exposes health, readiness, metrics, and on-demand extraction endpoints.
type Server struct {
	httpServer *http.Server
	loader     domain.VolumeLoader
	root       string
	defaults   domain.ExtractOptions
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes.
// It also serves POST /extract when extract names a loader and a volume root.
func NewServer(addr string, ready sharedobs.ReadinessChecker, extract *ExtractConfig, logger *slog.Logger) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if extract != nil && extract.Loader != nil && extract.Root != "" {
		root, err := filepath.Abs(extract.Root)
		if err != nil {
			return nil, fmt.Errorf("volume root: %w", err)
		}
		s.loader = extract.Loader
		s.root = root
		s.defaults = extract.Defaults
		mux.HandleFunc("POST /extract", s.handleExtract)
	}

	return s, nil
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type extractRequest struct {
	Path   string         `json:"path"`
	Fields []string       `json:"fields"`
	Points []domain.Point `json:"points"`
	Mode   string         `json:"mode"`
	Seam   string         `json:"seam"`
	Mask   *domain.Mask   `json:"mask"`
}

func (r extractRequest) options(defaults domain.ExtractOptions) (domain.ExtractOptions, error) {
	opts := defaults
	if r.Mode != "" {
		m, err := domain.ParseMode(r.Mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = m
	}
	if r.Seam != "" {
		seam, err := domain.ParseSeamPolicy(r.Seam)
		if err != nil {
			return opts, err
		}
		opts.Seam = seam
	}
	if r.Mask != nil {
		mask := *r.Mask
		if mask.Field == "" {
			mask.Field = domain.DefaultMaskField
		}
		opts.Mask = &mask
	}
	return opts, nil
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if err := validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := req.options(s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.resolve(req.Path)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	v, err := s.loader.Load(r.Context(), path)
	if err != nil {
		s.logger.Warn("extract: volume load failed", "path", path, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	res := domain.ExtractMany(v, req.Fields, req.Points, opts)
	s.logger.Info("extract served", "path", path, "points", len(req.Points), "failed", res.Failures())
	writeJSON(w, http.StatusOK, res)
}

// resolve maps a request path onto the volume root. Relative paths are
// joined to the root; absolute paths must already lie under it.
func (s *Server) resolve(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", p, errOutsideRoot)
	}
	return p, nil
}

func validate(req extractRequest) error {
	switch {
	case req.Path == "":
		return errors.New("path is required")
	case len(req.Fields) == 0:
		return errors.New("at least one field is required")
	case len(req.Points) == 0:
		return errors.New("at least one point is required")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
