// Package api exposes batch gender classification over HTTP.
package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/gendercode/pkg/buildinfo"
	"github.com/otherjamesbrown/gendercode/pkg/coding"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
)

const (
	// DefaultMaxBatch caps the number of names accepted in one request.
	DefaultMaxBatch = 100_000

	// DefaultRequestTimeout bounds a single request, including classification.
	DefaultRequestTimeout = 60 * time.Second

	maxBodyBytes = 32 << 20
)

// Handlers serves the classification API.
type Handlers struct {
	processor *coding.Processor
	logger    logging.Logger
	gatherer  prometheus.Gatherer
	pool      *pgxpool.Pool
	maxBatch  int
	timeout   time.Duration
}

// Option customises the handlers before the router is built.
type Option func(*Handlers)

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handlers) {
		h.gatherer = g
	}
}

// WithPool includes the PostgreSQL pool in /healthz.
func WithPool(pool *pgxpool.Pool) Option {
	return func(h *Handlers) {
		h.pool = pool
	}
}

// WithMaxBatch overrides DefaultMaxBatch.
func WithMaxBatch(n int) Option {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBatch = n
		}
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handlers) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHandlers creates the API handlers around a processor.
func NewHandlers(p *coding.Processor, opts ...Option) *Handlers {
	h := &Handlers{
		processor: p,
		logger:    logging.NewNopLogger(),
		maxBatch:  DefaultMaxBatch,
		timeout:   DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter constructs the chi router with shared middleware and all routes.
func NewRouter(p *coding.Processor, opts ...Option) chi.Router {
	h := NewHandlers(p, opts...)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(h.timeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, gcerrors.CodeNotFound, fmt.Sprintf("no route for %s", req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeErrorStatus(w, req, http.StatusMethodNotAllowed, "method_not_allowed",
			fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path))
	})

	r.Get("/healthz", h.Healthz)
	r.Get("/version", buildinfo.Handler(buildinfo.ServiceName))
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/classify", h.Classify)
	r.Post("/batch", h.Batch)
	r.Get("/dictionary/stats", h.DictionaryStats)
	r.Get("/dictionary/explain", h.Explain)

	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      DefaultRequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ServerErrorLog adapts logger for http.Server.ErrorLog, which reports
// connection-level failures such as TLS handshake errors.
func ServerErrorLog(logger logging.Logger) *log.Logger {
	zl := logger.Zerolog().With().Str("component", "http_server").Logger()
	return log.New(zl, "", 0)
}

// requestLogger stores the chi request ID under logging.RequestIDKey and logs
// each completed request.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if id := chimw.GetReqID(ctx); id != "" {
				ctx = contextWithRequestID(ctx, id)
				r = r.WithContext(ctx)
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []logging.Field{
				logging.F("method", r.Method),
				logging.F("path", r.URL.Path),
				logging.F("status", status),
				logging.F("bytes", ww.BytesWritten()),
				logging.F("duration_ms", time.Since(start).Milliseconds()),
			}
			reqLog := logger.WithContext(ctx)
			if status >= http.StatusInternalServerError {
				reqLog.Warn("Request failed", fields...)
				return
			}
			reqLog.Debug("Request served", fields...)
		})
	}
}
