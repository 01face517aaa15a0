// Package server exposes label placement over HTTP.
//
// # Endpoints
//
//	POST /v1/labels   place labels for a GeoJSON FeatureCollection
//	GET  /healthz     liveness probe
//
// A placement request carries the features, optional avoidance geometry,
// the label configuration and the text style:
//
//	{
//	  "features":  {"type": "FeatureCollection", "features": [...]},
//	  "avoidance": {"type": "FeatureCollection", "features": [...]},
//	  "label":     {"text_attribute": "name"},
//	  "style":     {"cap_height": 2.5},
//	  "formats":   ["json", "svg"]
//	}
//
// The response is the placement document plus a run id and any extra
// rendered formats. Errors are returned as {"error": {"code", "message"}}
// with a status derived from the error code.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/cartolabel/pkg/buildinfo"
	"github.com/matzehuels/cartolabel/pkg/cache"
	cerrors "github.com/matzehuels/cartolabel/pkg/errors"
	"github.com/matzehuels/cartolabel/pkg/feature"
	"github.com/matzehuels/cartolabel/pkg/label"
	"github.com/matzehuels/cartolabel/pkg/label/metrics"
	"github.com/matzehuels/cartolabel/pkg/observability"
	"github.com/matzehuels/cartolabel/pkg/pipeline"
	"github.com/matzehuels/cartolabel/pkg/sink"
)

const (
	// DefaultMaxBodyBytes limits the size of a placement request.
	DefaultMaxBodyBytes = 32 << 20

	// DefaultRequestTimeout bounds one placement run.
	DefaultRequestTimeout = 2 * time.Minute
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMeasurer shares one text measurer between requests.
func WithMeasurer(m metrics.Measurer) Option {
	return func(s *Server) { s.measurer = m }
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithRequestTimeout bounds each placement run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Server handles placement requests with a shared pipeline runner.
type Server struct {
	runner   *pipeline.Runner
	logger   *log.Logger
	measurer metrics.Measurer
	maxBody  int64
	timeout  time.Duration
}

// New returns a server that places labels with runner. The runner's cache
// is shared by all requests.
func New(runner *pipeline.Runner, opts ...Option) *Server {
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, nil)
	}
	s := &Server{
		runner:  runner,
		logger:  log.Default(),
		maxBody: DefaultMaxBodyBytes,
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.measurer == nil {
		s.measurer = metrics.NewFontMeasurer(s.logger)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/labels", s.handleLabels)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// =============================================================================
// Handlers
// =============================================================================

// Request is the body of POST /v1/labels.
type Request struct {
	Features   json.RawMessage `json:"features"`
	Avoidance  json.RawMessage `json:"avoidance,omitempty"`
	Label      label.Config    `json:"label"`
	Style      label.TextStyle `json:"style"`
	Formats    []string        `json:"formats,omitempty"`
	Prepared   bool            `json:"prepared,omitempty"`
	Footprints bool            `json:"footprints,omitempty"`
	Refresh    bool            `json:"refresh,omitempty"`
}

// Response is the body of a successful placement.
type Response struct {
	sink.Document
	Cached    bool              `json:"cached"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	logger := s.logger.With("run", runID)

	opts, err := s.decode(r)
	if err != nil {
		s.fail(w, logger, runID, err)
		return
	}
	opts.Logger = logger

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.runner.Execute(ctx, *opts)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = cerrors.Wrap(cerrors.ErrCodeTimeout, err, "placement timed out")
		}
		s.fail(w, logger, runID, err)
		return
	}

	resp := Response{
		Document: *res.Document,
		Cached:   res.CacheInfo.LabelsHit,
	}
	resp.RunID = runID
	for format, data := range res.Artifacts {
		if format == pipeline.FormatJSON {
			continue
		}
		if resp.Artifacts == nil {
			resp.Artifacts = make(map[string]string)
		}
		resp.Artifacts[format] = string(data)
	}
	logger.Info("placed labels",
		"features", res.Document.Stats.Features,
		"placed", res.Document.Stats.Placed,
		"cached", resp.Cached)
	writeJSON(w, http.StatusOK, resp)
}

// decode reads and checks a placement request.
func (s *Server) decode(r *http.Request) (*pipeline.Options, error) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, s.maxBody))
	if err := dec.Decode(&req); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "decode request")
	}
	if len(req.Features) == 0 {
		return nil, cerrors.New(cerrors.ErrCodeInvalidInput, "features are required")
	}
	fs, err := feature.ReadCollection(bytes.NewReader(req.Features))
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "features")
	}
	opts := &pipeline.Options{
		Features:   fs,
		InputHash:  cache.Hash(req.Features),
		Label:      req.Label,
		Style:      req.Style,
		Formats:    req.Formats,
		Prepared:   req.Prepared,
		Footprints: req.Footprints,
		Refresh:    req.Refresh,
		Measurer:   s.measurer,
	}
	if len(req.Avoidance) > 0 {
		gs, err := feature.Geometries(bytes.NewReader(req.Avoidance))
		if err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "avoidance")
		}
		opts.AvoidanceGeometry = gs
	}
	return opts, nil
}

func (s *Server) fail(w http.ResponseWriter, logger *log.Logger, runID string, err error) {
	status := cerrors.HTTPStatus(err)
	code := cerrors.GetCode(err)
	if code == "" {
		code = cerrors.ErrCodeInternal
	}
	if status >= 500 {
		logger.Error("placement failed", "error", err)
	} else {
		logger.Warn("rejected request", "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(code),
		Message: cerrors.UserMessage(err),
		RunID:   runID,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// observe reports every request to the server hooks.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.Server().OnRequest(r.Context(), r.Method, route, status, time.Since(start))
	})
}
