package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/NinoCoelho/WhatsAppBridge/internal/config"
	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
	"github.com/NinoCoelho/WhatsAppBridge/internal/metrics"
	"github.com/NinoCoelho/WhatsAppBridge/internal/registry"
)

// Deps are the collaborators the HTTP layer exposes.
type Deps struct {
	Key      string
	Registry *registry.Registry
	Conn     Connection
	Client   messaging.Client
	Hub      *Hub
	Store    Pinger
}

type Server struct {
	cfg    *config.Config
	deps   Deps
	router *chi.Mux
	log    zerolog.Logger
	http   *http.Server
}

func NewServer(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "api").Logger(),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))
	if s.cfg.Metrics.Enabled {
		r.Use(MetricsMiddleware)
	}

	subHandler := NewSubscriptionHandler(s.deps.Registry, s.log)
	authHandler := NewAuthHandler(s.deps.Conn, s.deps.Client, s.deps.Key, s.cfg.QR.Size, s.log)
	initHandler := NewInitHandler(s.deps.Conn, s.deps.Client, s.deps.Key, s.cfg.QR.Size, s.log)
	msgHandler := NewMessageHandler(s.deps.Client, s.log)
	statsHandler := NewStatsHandler(s.deps.Conn, s.deps.Store)

	// Probes stay outside the rate limit.
	r.Get("/health", statsHandler.Health)
	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if s.cfg.Security.RateLimit.Enabled {
			r.Use(NewRateLimiter(s.cfg.Security.RateLimit).Middleware)
		}

		r.Get("/status", statsHandler.Status)
		r.Get("/init/{key}", initHandler.Page)
		if s.deps.Hub != nil {
			r.Get("/events/ws", s.deps.Hub.ServeWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.deps.Key))

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", subHandler.Create)
				r.Get("/", subHandler.List)
				r.Delete("/", subHandler.Delete)
			})

			r.Route("/auth", func(r chi.Router) {
				r.Get("/status", authHandler.Status)
				r.Post("/initialize", authHandler.Initialize)
				r.Get("/qrcode", authHandler.QRCode)
				r.Get("/key", authHandler.Key)
				r.Get("/account", authHandler.Account)
				r.Post("/reset", authHandler.ResetRetries)
			})

			r.Post("/messages", msgHandler.Send)
		})
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
