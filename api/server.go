// Package api exposes quotes and book depth over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"coinquote/orderbook"
	"coinquote/quote"
)

type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (quote.Result, error)
}

type Books interface {
	Get(productID string) (orderbook.Repo, bool)
	ProductIDs() []string
}

// FeedStatus reports whether the ingestion loop is still running.
type FeedStatus interface {
	Err() error
	Subscriptions() []string
}

type Server struct {
	quoter    Quoter
	books     Books
	feed      FeedStatus
	validator *schemaValidator
	depth     int
	logger    zerolog.Logger
}

type Options struct {
	Quoter         Quoter
	Books          Books
	Feed           FeedStatus
	Metrics        http.Handler
	DefaultDepth   int
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(opts Options) (http.Handler, error) {
	validator, err := newSchemaValidator(quoteRequestSchema)
	if err != nil {
		return nil, err
	}
	s := &Server{
		quoter:    opts.Quoter,
		books:     opts.Books,
		feed:      opts.Feed,
		validator: validator,
		depth:     opts.DefaultDepth,
		logger:    opts.Logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", s.health)
	r.Post("/quote", s.quote)
	r.Get("/books/{product}", s.book)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) sendError(w http.ResponseWriter, statusCode int, errorCode string, message string) {
	s.sendJSON(w, statusCode, errorResponse{Error: errorCode, Message: message})
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("json encode failed")
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "healthy",
		"books":  s.books.ProductIDs(),
	}
	status := http.StatusOK
	if s.feed != nil {
		body["subscriptions"] = s.feed.Subscriptions()
		if err := s.feed.Err(); err != nil {
			body["status"] = "degraded"
			body["feed_error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	s.sendJSON(w, status, body)
}

// LoggingMiddleware writes one access log line per request.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", ww.Status()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Str("remote_addr", r.RemoteAddr).
				Msg("http_request")
		})
	}
}
