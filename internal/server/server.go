package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/orim/internal/api/v1"
	"github.com/gosuda/orim/internal/api/ws"
	"github.com/gosuda/orim/internal/config"
	"github.com/gosuda/orim/internal/domain"
	"github.com/gosuda/orim/internal/server/middleware"
)

// Deps are the collaborators the server routes to. Assets may be nil; when
// set, the built frontend is served on all unmatched routes.
type Deps struct {
	Store    v1.DataStore
	Broker   ws.Broker
	Presence ws.PresenceStore
	Agents   v1.AgentRegistry
	Notifier v1.Notifier
	Assets   fs.FS
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	hub        *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the background
// sweepers of the rate limiters.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	hub := ws.NewHub(deps.Broker, deps.Presence, deps.Store, ws.Options{
		IdleTimeout:    cfg.Realtime.IdleTimeout,
		CursorThrottle: cfg.Realtime.CursorThrottle,
		OriginPatterns: originPatterns(cfg.Server.CORSOrigins),
	})

	s := &Server{
		router: router,
		hub:    hub,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	authenticate := middleware.Auth(cfg.Auth.JWTSecret, deps.Store.Profiles())

	// Every API route is authenticated; identities come from the external
	// provider's tokens.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimitRPS*2, cfg.Server.RateLimitBurst*2))
		r.Use(authenticate)
		r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

		apiConfig := huma.DefaultConfig("Orim API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, cfg, deps, hub)
	})

	// WebSocket routes. Browsers cannot set headers on the upgrade request,
	// so Auth also accepts the access_token query parameter.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
		r.Use(authenticate)
		registerWSRoutes(r, hub)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Readiness pings every dependency that can report on itself.
	router.Get("/readyz", readyHandler(map[string]any{"database": deps.Store, "redis": deps.Broker}))

	// Must be registered last so API and WS routes take priority.
	if deps.Assets != nil {
		router.NotFound(spaFileServer(deps.Assets).ServeHTTP)
		log.Info().Msg("serving frontend assets")
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the board hub so other components can publish events.
func (s *Server) Hub() *ws.Hub { return s.hub }

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// originPatterns turns CORS origins into the host patterns the WebSocket
// handshake checks against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if host := hostOf(o); host != "" {
			out = append(out, host)
		}
	}
	return out
}

func defaultBackend(cfg *config.Config) domain.AgentBackend {
	return domain.AgentBackend(cfg.Agent.DefaultBackend)
}

// pinger is implemented by *postgres.Store and *redis.PubSub.
type pinger interface {
	Ping(ctx context.Context) error
}

func readyHandler(deps map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			p, ok := dep.(pinger)
			if !ok {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				log.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(checks)
	}
}
