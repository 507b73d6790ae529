// Package api exposes the HTTP surface of the server: auth and
// document routes, the operations feed, and the document WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"coedit/auth"
	"coedit/config"
	"coedit/core"
	"coedit/editor"
	"coedit/hub"
	"coedit/store"
)

// Server is the HTTP server.
type Server struct {
	config  config.ServerConfig
	router  *chi.Mux
	httpSrv *http.Server
	logger  *zap.Logger

	handlers *Handlers
}

// New creates the HTTP server and wires its routes.
func New(cfg config.ServerConfig, st store.Store, ed *editor.Service, h *hub.Hub, au *auth.Service) *Server {
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: core.With(zap.String("component", "api")),
		handlers: &Handlers{
			store:  st,
			editor: ed,
			hub:    h,
			auth:   au,
			logger: core.With(zap.String("component", "handlers")),
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	// No WriteTimeout: WebSocket and SSE connections stay open far
	// longer than any request timeout; the API group applies its own
	// per-request timeout middleware instead.
	s.httpSrv = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger(s.logger))
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.Get("/healthz", h.handleHealthz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/auth/register", h.handleRegister)
			r.Post("/auth/login", h.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/documents", h.handleCreateDocument)
				r.Patch("/documents/{documentID}", h.handlePatchDocument)
			})

			r.Get("/documents/{documentID}", h.handleGetDocument)
			r.Get("/documents/{documentID}/operations", h.handleListOperations)
		})

		// The SSE stream holds the request open; no timeout here.
		r.Get("/documents/{documentID}/stream", h.handleStream)
	})

	s.router.Get("/ws/documents/{documentID}", h.handleWebSocket)
}

// Serve runs the HTTP server until Shutdown.
func (s *Server) Serve() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.config.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight
// requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
