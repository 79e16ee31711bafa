// Package server is the composition root: it opens the stores, builds the
// services and handlers on top of them, and mounts everything on one chi
// router.
//
// Dependency flow:
//
//	config → relational.DB, mongo.Store, storage.Local
//	       → AuthService, ProfileService
//	       → AuthHandler, ProfileHandler, FileHandler, HealthHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neoori/profile-api/internal/auth"
	"github.com/neoori/profile-api/internal/config"
	"github.com/neoori/profile-api/internal/handler"
	"github.com/neoori/profile-api/internal/middleware"
	"github.com/neoori/profile-api/internal/repository"
	mongorepo "github.com/neoori/profile-api/internal/repository/mongo"
	"github.com/neoori/profile-api/internal/repository/relational"
	"github.com/neoori/profile-api/internal/service"
	"github.com/neoori/profile-api/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// Stores are the backends a Server runs on. The Server owns them and closes
// them on shutdown.
type Stores struct {
	Relational *relational.DB
	Profiles   repository.ProfileRepository
	Files      *storage.Local

	// Mongo is the client behind Profiles, nil when Profiles is backed by
	// something else.
	Mongo *mongorepo.Store
}

// Server holds the router and everything it depends on.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	stores Stores
	auth   *service.AuthService
}

// New opens every store named in cfg and builds the server on them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := relational.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening relational store: %w", err)
	}

	mongoStore, err := mongorepo.Connect(ctx, cfg.Mongo)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	files, err := storage.NewLocal(cfg.Storage.UploadDir, cfg.Server.BaseURL, logger)
	if err != nil {
		db.Close()
		_ = mongoStore.Close(ctx)
		return nil, fmt.Errorf("opening file storage: %w", err)
	}

	s, err := NewWithStores(cfg, Stores{
		Relational: db,
		Profiles:   mongoStore.Profiles(),
		Files:      files,
		Mongo:      mongoStore,
	}, logger)
	if err != nil {
		db.Close()
		_ = mongoStore.Close(ctx)
		return nil, err
	}
	return s, nil
}

// NewWithStores builds the server on already opened stores.
func NewWithStores(cfg *config.Config, stores Stores, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTRefreshSecret,
		cfg.Auth.AccessTokenTTL.Std(),
		cfg.Auth.RefreshTokenTTL.Std(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	accounts := stores.Relational.Accounts()
	authService := service.NewAuthService(
		accounts,
		stores.Relational.RefreshTokens(),
		tokens,
		auth.NewPasswordService(cfg.Auth.BcryptCost),
		logger,
	)
	profileService := service.NewProfileService(stores.Profiles, accounts, logger)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		stores: stores,
		auth:   authService,
	}
	s.setupRoutes(tokens, authService, profileService)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts middleware and routes. Middleware order:
//
//  1. RequestID, RealIP
//  2. Logger, then Metrics (both see the final status)
//  3. Recoverer, so a panic still reaches the two above as a 500
//  4. CORS
func (s *Server) setupRoutes(tokens *auth.TokenService, authService *service.AuthService, profileService *service.ProfileService) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: !allowsAnyOrigin(s.config.Server.CORSOrigins),
		MaxAge:           300,
	}))

	var github *auth.GitHubProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	limits := handler.UploadLimits{
		Document: s.config.Storage.MaxFileSize,
		Avatar:   s.config.Storage.MaxAvatarSize,
	}
	authHandler := handler.NewAuthHandler(authService, profileService, github, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, authService, s.stores.Files, limits, s.logger)
	fileHandler := handler.NewFileHandler(s.stores.Files, s.logger)

	health := handler.NewHealthHandler().
		Add("relational", s.stores.Relational.Ping)
	if s.stores.Mongo != nil {
		health.Add("mongo", s.stores.Mongo.Ping)
	}
	health.Add("storage", s.stores.Files.Ping)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Get("/health", health.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	s.router.Route("/api/users", func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/change-password", profileHandler.HandleChangePassword)

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", profileHandler.HandleGetProfile)
			r.Patch("/", profileHandler.HandleUpdateProfile)
			r.Patch("/preferences", profileHandler.HandleUpdatePreferences)
			r.Post("/avatar", profileHandler.HandleUploadAvatar)

			r.Post("/education", profileHandler.HandleAddEducation)
			r.Patch("/education/{id}", profileHandler.HandleUpdateEducation)
			r.Delete("/education/{id}", profileHandler.HandleDeleteEducation)

			r.Post("/experiences", profileHandler.HandleAddExperience)
			r.Patch("/experiences/{id}", profileHandler.HandleUpdateExperience)
			r.Delete("/experiences/{id}", profileHandler.HandleDeleteExperience)

			r.Post("/skills", profileHandler.HandleAddSkill)
			r.Patch("/skills/{id}", profileHandler.HandleUpdateSkill)
			r.Delete("/skills/{id}", profileHandler.HandleDeleteSkill)

			r.Post("/documents", profileHandler.HandleUploadDocument)
			r.Delete("/documents/{id}", profileHandler.HandleDeleteDocument)

			r.Put("/games/{gameId}", profileHandler.HandleSaveGameProgress)
		})
	})

	s.router.Route("/api/files", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/documents/{userId}/{category}/{filename}", fileHandler.HandleDocument)
		r.Get("/avatars/{userId}/{filename}", fileHandler.HandleAvatar)
	})
}

// Start serves HTTP until SIGINT or SIGTERM, then drains in-flight requests
// and closes the stores.
func (s *Server) Start() error {
	defer s.Close()

	pruneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if n, err := s.auth.PruneExpiredTokens(pruneCtx); err != nil {
		s.logger.Warn("failed to prune expired refresh tokens", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Info("pruned expired refresh tokens", slog.Int64("count", n))
	}
	cancel()

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("baseURL", s.config.Server.BaseURL),
			slog.String("database", s.config.Database.Driver),
			slog.Bool("github", s.config.GitHub.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the stores. Errors are logged.
func (s *Server) Close() {
	if err := s.stores.Relational.Close(); err != nil {
		s.logger.Error("closing relational store", slog.String("error", err.Error()))
	}
	if s.stores.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.stores.Mongo.Close(ctx); err != nil {
			s.logger.Error("closing MongoDB client", slog.String("error", err.Error()))
		}
	}
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
