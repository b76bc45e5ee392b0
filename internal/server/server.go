// Package server is the HTTP face of the honeypot: one real route for
// credential capture and a wildcard that swallows everything else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	Router *chi.Mux
	http   *http.Server
	logger *slog.Logger
}

func New(port int, requestTimeout time.Duration, logger *slog.Logger, h *Handler) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "mirage")
	})

	r.Post("/login", h.Login)
	r.Get("/*", h.Get)
	r.Post("/*", h.Mutate)
	r.Put("/*", h.Mutate)
	r.Patch("/*", h.Mutate)
	r.Delete("/*", h.Delete)

	return &Server{
		Router: r,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
