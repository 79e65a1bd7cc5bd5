package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/auth"
	"github.com/Clark-Hu/dsmovie/internal/catalog"
	"github.com/Clark-Hu/dsmovie/internal/config"
	"github.com/Clark-Hu/dsmovie/internal/domain"
	"github.com/Clark-Hu/dsmovie/internal/logging"
	"github.com/Clark-Hu/dsmovie/internal/scoring"
)

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Health   HealthChecker
	Catalog  *catalog.Service
	Scoring  *scoring.Service
	Auth     *auth.Authenticator
	Verifier auth.JWTVerifier
	Logger   *zap.Logger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	health   HealthChecker
	catalog  *catalog.Service
	scoring  *scoring.Service
	auth     *auth.Authenticator
	verifier auth.JWTVerifier
	validate *validator.Validate
	limiter  *RateLimiter
	logger   *zap.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	logger := logging.Component(deps.Logger, "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Location", "X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{
		cfg:      cfg,
		health:   deps.Health,
		catalog:  deps.Catalog,
		scoring:  deps.Scoring,
		auth:     deps.Auth,
		verifier: deps.Verifier,
		validate: newValidator(),
		limiter:  NewRateLimiter(cfg.ScoreRateLimit, cfg.ScoreRateBurst, logger),
		logger:   logger,
		router:   r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	requireUser := auth.RequireUser(s.verifier)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Post("/auth/token", s.handleIssueToken)
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Get("/{id}", s.handleGetMovie)
		r.Group(func(r chi.Router) {
			r.Use(requireUser, auth.RequireRole(domain.RoleAdmin))
			r.Post("/", s.handleCreateMovie)
			r.Put("/{id}", s.handleUpdateMovie)
			r.Delete("/{id}", s.handleDeleteMovie)
		})
	})
	s.router.With(
		requireUser,
		auth.RequireRole(domain.RoleAdmin, domain.RoleClient),
		s.limiter.Middleware,
	).Put("/scores", s.handleSubmitScore)
}

// Start boots the HTTP server and blocks until ctx is cancelled or serving fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "database not configured")
		return
	}
	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
