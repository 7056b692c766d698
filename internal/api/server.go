// Package api exposes the tracker state over a local HTTP JSON interface.
// The server binds to loopback by default; it is a dashboard transport, not a
// public surface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"appwatch/internal/storage"
	"appwatch/internal/track"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
}

// UsageService is the usage accumulator surface consumed by the API.
type UsageService interface {
	Snapshot() track.UsageSnapshot
	ClearData(ctx context.Context) error
}

// NotificationService polls and summarizes notification counts. Each Summary
// call drives one poll, so the dashboard's fetch cadence is the accounting
// cadence.
type NotificationService interface {
	Summary(ctx context.Context) track.NotificationSummary
}

// SettingsService manages persisted settings and time limits.
type SettingsService interface {
	Get() storage.Settings
	Update(mutate func(*storage.Settings)) storage.Settings
	Limits() []storage.TimeLimit
	SetLimits(limits []storage.TimeLimit) ([]storage.TimeLimit, error)
	AddLimit(limit storage.TimeLimit) ([]storage.TimeLimit, error)
	RemoveLimit(appID string) []storage.TimeLimit
}

// AlertService reports today's fired limit alerts.
type AlertService interface {
	Records() []storage.AlertRecord
}

// AlertStream delivers limit alerts to live consumers.
type AlertStream interface {
	Subscribe() (<-chan track.AlertEvent, func())
}

// Server is the local HTTP API server.
type Server struct {
	config        Config
	usage         UsageService
	notifications NotificationService
	settings      SettingsService
	alerts        AlertService
	stream        AlertStream
	server        *http.Server
	router        *mux.Router
	logger        zerolog.Logger
}

// NewServer creates an API server wired to the tracker services.
func NewServer(cfg Config, usage UsageService, notifications NotificationService, settings SettingsService, alerts AlertService, stream AlertStream, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		config:        cfg,
		usage:         usage,
		notifications: notifications,
		settings:      settings,
		alerts:        alerts,
		stream:        stream,
		router:        router,
		logger:        logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/api/usage", s.handleUsage).Methods("GET")
	s.router.HandleFunc("/api/usage/clear", s.handleUsageClear).Methods("POST")
	s.router.HandleFunc("/api/notifications", s.handleNotifications).Methods("GET")
	s.router.HandleFunc("/api/settings", s.handleGetSettings).Methods("GET")
	s.router.HandleFunc("/api/settings", s.handleUpdateSettings).Methods("PUT")
	s.router.HandleFunc("/api/limits", s.handleGetLimits).Methods("GET")
	s.router.HandleFunc("/api/limits", s.handleReplaceLimits).Methods("PUT")
	s.router.HandleFunc("/api/limits", s.handleAddLimit).Methods("POST")
	s.router.HandleFunc("/api/limits/{appId}", s.handleRemoveLimit).Methods("DELETE")
	s.router.HandleFunc("/api/alerts", s.handleAlerts).Methods("GET")
	s.router.HandleFunc("/api/events", s.handleEvents).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("API server starting")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server failed")
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("API server stopping")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LoggingMiddleware logs each request at debug level.
func LoggingMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
