// Package api serves the assistant over HTTP. Each client creates a session
// and receives a bearer token bound to it.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/gitlabassist/internal/assistant"
)

const sweepInterval = 5 * time.Minute

// Server represents the API server
type Server struct {
	echo     *echo.Echo
	port     int
	registry *assistant.Registry
	tokens   *TokenService
}

// NewServer creates a new API server
func NewServer(port int, registry *assistant.Registry, tokens *TokenService) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger())

	server := &Server{
		echo:     e,
		port:     port,
		registry: registry,
		tokens:   tokens,
	}
	server.setupRoutes()
	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"sessions": s.registry.Len(),
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/sessions", s.createSession)

	session := v1.Group("/sessions/:id", RequireSession(s.tokens))
	session.POST("/turns", s.postTurn)
	session.GET("/history", s.getHistory)
	session.DELETE("/history", s.clearHistory)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sweep(ctx)

	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()
	log.Info().Int("port", s.port).Msg("API server listening")

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	err := s.echo.Shutdown(shutdownCtx)
	s.registry.Close()
	return err
}

func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.Sweep()
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			log.Debug().
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}
