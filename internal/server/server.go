// Package server собирает HTTP сервер cropscan: хранилище, сервисы, маршруты и middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iudanet/cropscan/internal/config"
	"github.com/iudanet/cropscan/internal/server/handlers"
	"github.com/iudanet/cropscan/internal/server/jwt"
	"github.com/iudanet/cropscan/internal/server/middleware"
	"github.com/iudanet/cropscan/internal/server/service"
	"github.com/iudanet/cropscan/internal/server/storage"
	"github.com/iudanet/cropscan/internal/server/storage/postgres"
	"github.com/iudanet/cropscan/internal/server/storage/sqlite"
)

// APIPrefix дополнительный префикс, под которым доступны те же маршруты
const APIPrefix = "/api"

// Deps внешние зависимости сервера
type Deps struct {
	Store    storage.Storage
	Analyzer service.Analyzer
	Archive  service.ImageArchive // nil отключает архив
}

// Server HTTP сервер cropscan
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      storage.Storage
	handler    http.Handler
	httpServer *http.Server
	limiters   []*middleware.RateLimiter
	closeOnce  sync.Once
	closeErr   error
}

// OpenStorage выбирает хранилище по DATABASE_URL
// postgres:// и postgresql:// -> Postgres, иначе путь к файлу SQLite
func OpenStorage(ctx context.Context, dsn string, logger *slog.Logger) (storage.Storage, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pg, err := postgres.New(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	db, err := sqlite.New(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// New создает сервер; Store и Analyzer обязательны
func New(cfg *config.Config, logger *slog.Logger, version string, deps Deps) *Server {
	tokens := jwt.NewService(cfg.JWT.Secret, cfg.JWT.TTL)
	identity := service.NewIdentityService(logger, deps.Store, tokens)
	scans := service.NewScanService(logger, deps.Store, deps.Analyzer, deps.Archive, cfg.MaxUploadSize)

	globalLimiter := middleware.NewRateLimiter(cfg.Global, cfg.GlobalWindow, middleware.MsgTooManyRequests, logger)
	authLimiter := middleware.NewRateLimiter(cfg.Auth, cfg.AuthWindow, middleware.MsgTooManyAuthAttempts, logger)

	authHandler := handlers.NewAuthHandler(logger, identity)
	scanHandler := handlers.NewScanHandler(logger, scans, cfg.MaxUploadSize)
	healthHandler := handlers.NewHealthHandler(logger, deps.Store, cfg.Env, version)
	requireAuth := middleware.AuthMiddleware(logger, tokens)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingWithSkip(logger, []string{"/health", APIPrefix + "/health"}))
	// recovery внутри логирования, чтобы 500 после паники попал в access log
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(globalLimiter.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(logger, w, "route not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.SendError(logger, w, "method not allowed", http.StatusMethodNotAllowed)
	})

	routes := func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Route("/scan", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", scanHandler.Submit)
			// пустой id -> 400 из сервиса
			r.Get("/", scanHandler.Get)
			r.Get("/{id}", scanHandler.Get)
		})
	}

	routes(r)
	r.Route(APIPrefix, routes)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    deps.Store,
		handler:  r,
		limiters: []*middleware.RateLimiter{globalLimiter, authLimiter},
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return s
}

// Handler корневой http.Handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run слушает до отмены ctx, затем останавливает сервер и освобождает ресурсы
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	if err := s.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	if runErr == nil {
		s.logger.Info("Server stopped")
	}
	return runErr
}

// Close останавливает rate limiters и закрывает хранилище, повторный вызов безопасен
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		for _, l := range s.limiters {
			l.Stop()
		}
		if err := s.store.Close(); err != nil {
			s.closeErr = fmt.Errorf("failed to close storage: %w", err)
		}
	})
	return s.closeErr
}
