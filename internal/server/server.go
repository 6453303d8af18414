// Package server exposes the ledger over HTTP. The transport owns shape
// validation and error mapping; all ledger invariants live below it.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/harun/kaiwa/internal/observability"
	"github.com/harun/kaiwa/internal/tracing"
	"github.com/harun/kaiwa/pkg/ledger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wraps the echo instance serving the ledger API.
type Server struct {
	echo    *echo.Echo
	service *ledger.Service
	store   Pinger
}

// New creates and configures the HTTP server.
func New(svc *ledger.Service, store Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		service: svc,
		store:   store,
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(requestLogger())

	// Routes
	e.POST("/v1/sessions", s.createOrGetSession)
	e.POST("/v1/sessions/:session_id/events", s.addEvent)
	e.GET("/v1/sessions/:session_id", s.getSession)
	e.POST("/v1/sessions/:session_id/complete", s.completeSession)

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(observability.MetricsHandler()))

	return s
}

// Start begins serving on the given address and blocks until shutdown.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("HTTP server listening")
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestID assigns each request a short ID, echoes it in the response
// header, and seeds the tracing context with it.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				generated, err := gonanoid.New()
				if err == nil {
					id = generated
				}
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			ctx := tracing.WithRequestID(c.Request().Context(), id)
			ctx = tracing.NewRequestContext(ctx)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// requestLogger logs each request through zerolog and feeds the HTTP
// metrics. The route template, not the raw path, labels the metrics so
// session IDs do not explode cardinality.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			status := c.Response().Status
			duration := time.Since(start)
			observability.ObserveRequest(route, statusClass(status), duration)

			logger := tracing.LoggerFromContext(c.Request().Context(), log.Logger)
			logger.Debug().
				Str("method", c.Request().Method).
				Str("route", route).
				Int("status", status).
				Dur("duration", duration).
				Msg("Request handled")
			return nil
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
