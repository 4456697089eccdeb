// Package server provides the HTTP server and routing for AlphaTrader.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/config"
	"github.com/alphatrader/alphatrader/internal/events"
	"github.com/alphatrader/alphatrader/internal/modules/agents"
	"github.com/alphatrader/alphatrader/internal/modules/market_hours"
	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
	"github.com/alphatrader/alphatrader/internal/modules/trading"
	"github.com/alphatrader/alphatrader/internal/modules/workspace"
)

// defaultUserID keys workspace persistence for the single-user deployment.
const defaultUserID = "default"

// Config holds server configuration and collaborators.
type Config struct {
	Log       zerolog.Logger
	Cfg       *config.Config
	Market    *marketdata.Service
	Agents    *agents.Manager
	Fills     *trading.FillRepository
	Workspace *workspace.Service
	Bus       *events.Bus
	Health    *trading.MarketHealth
	Calendar  *market_hours.Calendar
}

// Server represents the HTTP server.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	market    *marketdata.Service
	agents    *agents.Manager
	fills     *trading.FillRepository
	workspace *workspace.Service
	bus       *events.Bus
	health    *trading.MarketHealth
	calendar  *market_hours.Calendar
	system    *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Cfg,
		market:    cfg.Market,
		agents:    cfg.Agents,
		fills:     cfg.Fills,
		workspace: cfg.Workspace,
		bus:       cfg.Bus,
		health:    cfg.Health,
		calendar:  cfg.Calendar,
	}
	s.system = NewSystemHandlers(cfg.Log, cfg.Cfg, cfg.Health, cfg.Calendar)

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// SSE stream first: it must not inherit a request timeout
		streamHandler := NewEventsStreamHandler(s.bus, s.log)
		r.Get("/events/stream", streamHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/health", s.handleHealth)

			r.Get("/market", s.handleMarket)
			r.Post("/market/refresh", s.handleMarketRefresh)
			r.Post("/quotes", s.handleQuotes)
			r.Get("/history", s.handleHistory)
			r.Get("/trades", s.handleTrades)

			r.Route("/agents", func(r chi.Router) {
				r.Get("/", s.handleListAgents)
				r.Post("/", s.handleCreateAgent)
				r.Put("/{id}", s.handleUpdateAgent)
				r.Delete("/{id}", s.handleDeleteAgent)
			})

			r.Route("/pools", func(r chi.Router) {
				r.Get("/", s.handleListPools)
				r.Post("/", s.handleCreatePool)
				r.Put("/{id}", s.handleUpdatePool)
				r.Delete("/{id}", s.handleDeletePool)
			})

			r.Get("/workspace/{userID}", s.handleWorkspaceLoad)
			r.Post("/workspace", s.handleWorkspaceSave)

			r.Get("/system/status", s.system.HandleSystemStatus)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
