// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and the logger, then:
//
//	Server.New() creates: sqlite.DB (users, kv) → backend.Backend (places)
//	                      → AuthService, Sessions → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/backend"
	"github.com/sakif/park-places/internal/config"
	"github.com/sakif/park-places/internal/geo"
	"github.com/sakif/park-places/internal/handler"
	"github.com/sakif/park-places/internal/metrics"
	"github.com/sakif/park-places/internal/middleware"
	sqliteRepo "github.com/sakif/park-places/internal/repository/sqlite"
	"github.com/sakif/park-places/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the sqlite connection, the place backend and the GeoIP
// reader. All three are closed in Close, which Start calls on shutdown.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	places  *backend.Backend
	geoip   *geo.IPLocator // nil when GEOIP_DB_PATH is unset
	tokens  *auth.TokenService
	authSvc *service.AuthService
	github  *auth.GitHubProvider // nil when GitHub login is not configured
	session *service.Sessions
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
//  1. Open sqlite (users + key/value table); it is needed whatever PLACE_BACKEND says
//  2. Open the place backend
//  3. Build the geolocation chain: client-reported position first, then GeoIP
//  4. Build auth: tokens, passwords, optional GitHub
//  5. Build Sessions (one registration + listing flow per user)
//  6. Wire handlers to routes
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	if cfg.DBPath != ":memory:" {
		// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.wire(ctx); err != nil {
		s.Close() // Clean up whatever was opened
		return nil, err
	}
	return s, nil
}

func (s *Server) wire(ctx context.Context) error {
	var err error

	// === PLACE BACKEND ===
	s.places, err = backend.Open(ctx, s.config, s.db, s.logger)
	if err != nil {
		return fmt.Errorf("opening place backend: %w", err)
	}

	// === GEOLOCATION ===
	locators := geo.Chain{geo.ReportedLocator{}}
	if s.config.GeoIPDBPath != "" {
		s.geoip, err = geo.OpenIPLocator(s.config.GeoIPDBPath)
		if err != nil {
			return fmt.Errorf("opening GeoIP database: %w", err)
		}
		locators = append(locators, s.geoip)
	}

	// === AUTH ===
	secret := s.config.JWTSecret
	if secret == "" {
		// Every place route needs a session, so auth can't be switched off.
		// A random secret works until the next restart logs everyone out.
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		s.logger.Warn("JWT_SECRET not set: using a random secret, sessions end on restart")
	}
	s.tokens, err = auth.NewTokenService(secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	s.authSvc = service.NewAuthService(s.db, s.tokens, auth.NewPasswordService(), s.logger)
	if s.config.GitHubEnabled() {
		s.github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	// === SESSIONS ===
	s.session = service.NewSessions(service.SessionsConfig{
		Stores:     s.places.Stores,
		Gate:       auth.ContextGate{},
		Locator:    locators,
		GeoTimeout: s.config.GeoTimeout,
		Location:   s.config.DisplayTimezone,
	}, s.logger)

	if err := s.setupRoutes(); err != nil {
		return fmt.Errorf("setting up routes: %w", err)
	}
	return nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers (used by GeoIP)
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info and counts it in /metrics
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Operational Routes ===
	health := handler.NewHealthHandler(map[string]handler.Pinger{
		"users":  handler.PingFunc(func(context.Context) error { return s.db.Ping() }),
		"places": s.places,
	}, s.logger)
	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	// === Page ===
	page, err := handler.NewPageHandler(s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	s.router.Get("/", page.HandlePage)

	// === Auth Routes ===
	authHandler := handler.NewAuthHandler(s.authSvc, s.github, s.session, s.config.CookieSecure, s.logger)
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.With(auth.OptionalAuth(s.tokens)).Post("/logout", authHandler.HandleLogout)
		if s.github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// Place and session handlers only see Sessions, never a store.
	places := handler.NewPlacesHandler(s.session, s.logger)
	sessions := handler.NewSessionHandler(s.session, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(s.tokens))
			r.Get("/colors", handler.HandleListColors)
			r.Get("/colors/{label}", handler.HandlePresentColor)
		})

		// Signed in
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))

			r.Get("/me", authHandler.HandleMe)

			r.Get("/places", places.HandleList)
			r.Post("/places", places.HandleCreate)
			r.Delete("/places/{id}", places.HandleDelete)

			r.Get("/session/input", sessions.HandleGetInput)
			r.Put("/session/input", sessions.HandleOpenInput)
			r.Delete("/session/input", sessions.HandleCloseInput)
			r.Put("/session/draft", sessions.HandlePick)
			r.Delete("/session/draft", sessions.HandleClearDraft)
			r.Post("/session/geolocate", sessions.HandleGeolocate)
			r.Get("/session/display", sessions.HandleGetDisplay)
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the place backend, GeoIP reader and database
func (s *Server) Start() error {
	defer s.Close()

	// Create the HTTP server with sensible timeouts.
	// WriteTimeout leaves room for a full geolocation timeout.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.config.GeoTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("placeBackend", s.places.Name),
			slog.Bool("geoip", s.geoip != nil),
			slog.Bool("github", s.github != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases everything New opened. Safe on a partly built Server.
func (s *Server) Close() {
	if s.places != nil {
		if err := s.places.Close(); err != nil {
			s.logger.Warn("closing place backend", slog.String("error", err.Error()))
		}
	}
	if s.geoip != nil {
		s.geoip.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
