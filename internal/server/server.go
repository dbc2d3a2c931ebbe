// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

// Package server exposes the suggestion service over HTTP: a chi router
// with a huma API carrying the suggest, exemplar, search, score, and embed
// operations.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	videxerr "github.com/videx-dev/videx/pkg/errors"
	"github.com/videx-dev/videx/pkg/health"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps a chi router with a huma API and HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services
}

// New creates a Server with chi router, huma API, health endpoint, and CORS.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, videxerr.New(videxerr.CodeServerStartFailure, "listen address is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("Videx", "0.1.0")
	humaConfig.Info.Description = "Annotation suggestion service with exemplar memory"
	api := humachi.New(r, humaConfig)

	s := &Server{
		router: r,
		api:    api,
		cfg:    cfg,
	}

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		body := HealthBody{Status: "ok"}
		if s.services != nil && s.services.Suggester != nil {
			emb, gen := s.services.Suggester.ProviderHealth()
			body.Embedding = &emb
			body.Generation = &gen
			if !emb.Available || !gen.Available {
				body.Status = "degraded"
			}
		}
		return &HealthResponse{Body: body}, nil
	})

	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return videxerr.Wrapf(err, videxerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server listening", "addr", ln.Addr().String())
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return videxerr.Wrap(err, videxerr.CodeServerShutdownFailure, "shutting down")
	}

	return <-errCh
}

// HealthBody is the JSON body of the health endpoint response. Provider
// metrics appear once services are wired.
type HealthBody struct {
	Status     string          `json:"status" example:"ok" doc:"Health status"`
	Embedding  *health.Metrics `json:"embedding,omitempty" doc:"Embedding provider health"`
	Generation *health.Metrics `json:"generation,omitempty" doc:"Generation provider health"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

// requestLogger tags each request with an id and logs it on completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Debug("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowCredentials := true
	if len(origins) == 0 {
		origins = []string{"*"}
		allowCredentials = false
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
