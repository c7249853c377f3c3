// Package server exposes the question set API over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/conjugar/internal/auth"
	"github.com/abhisek/conjugar/internal/generation"
	"github.com/abhisek/conjugar/internal/logger"
	"github.com/abhisek/conjugar/internal/metrics"
	"github.com/abhisek/conjugar/internal/questionset"
)

// SetStore is the part of the repository the API needs.
type SetStore interface {
	GetIndex(ctx context.Context, filterUsername string) (questionset.Index, error)
	GetSet(ctx context.Context, id, requestingUsername string) (questionset.QuestionSet, error)
	DeleteSet(ctx context.Context, id, requestingUsername string) error
	Ping(ctx context.Context) error
}

// Generator produces and stores new question sets.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Result, error)
}

// Options configures the HTTP layer.
type Options struct {
	Addr           string
	AllowedOrigins []string

	// APIPassword, when set, gates /api/question on auth.HeaderPassword.
	APIPassword string

	// RequestTimeout bounds every request; generation is the slow path.
	RequestTimeout time.Duration

	DefaultCount int
	MaxCount     int
}

// Server wires handlers, middleware and the listener.
type Server struct {
	opts    Options
	sets    SetStore
	gen     Generator
	auth    auth.Authenticator
	metrics *metrics.Metrics
	log     *logger.Logger
	router  chi.Router
}

// New builds a Server. metrics may be nil.
func New(opts Options, sets SetStore, gen Generator, authn auth.Authenticator, m *metrics.Metrics, log *logger.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 3 * time.Minute
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 10
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = 50
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		opts:    opts,
		sets:    sets,
		gen:     gen,
		auth:    authn,
		metrics: m,
		log:     log.With("component", "server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", auth.HeaderPassword},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(s.log), middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Get("/tense", s.handleTenses)
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePassword(s.opts.APIPassword))
			r.Get("/question", s.handleGetQuestion)
			r.Delete("/question", s.handleDeleteQuestion)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed here")
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.opts.Addr)
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

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
