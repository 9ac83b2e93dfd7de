// ABOUTME: chi router for the chat UI boundary
// ABOUTME: Mounts health, stats, session, and search routes behind the standard middleware stack
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds one request, including model calls
const DefaultRequestTimeout = 60 * time.Second

// Sessions hands out conversation sessions
type Sessions interface {
	Create() *session.Session
	Get(id string) (*session.Session, error)
}

// Searcher runs retrieval without rewriting or generation
type Searcher interface {
	Retrieve(ctx context.Context, query string, filter models.Filter, topK int) (models.RetrievalResult, error)
}

// StatsSource describes the collection
type StatsSource interface {
	Stats(ctx context.Context) (models.StoreStats, error)
}

// Options configures the router
type Options struct {
	Timeout        time.Duration
	AllowedOrigins []string
}

// API holds the handler dependencies
type API struct {
	sessions Sessions
	searcher Searcher
	stats    StatsSource
	logger   *zap.Logger
}

// NewRouter builds the HTTP handler
func NewRouter(sessions Sessions, searcher Searcher, stats StatsSource, opts Options, logger *zap.Logger) http.Handler {
	api := &API{
		sessions: sessions,
		searcher: searcher,
		stats:    stats,
		logger:   logging.OrNop(logger).Named("http"),
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(api.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", api.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", api.collectionStats)
		r.Post("/search", api.search)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", api.createSession)
			r.Post("/{id}/ask", api.ask)
			r.Get("/{id}/history", api.history)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "endpoint not found")
	})

	return r
}

// requestLogger logs one line per request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
