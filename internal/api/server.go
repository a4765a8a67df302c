package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/threadrank/internal/service"
	"github.com/threadrank/internal/summarize"
)

// Discussions is the part of service.Service the handlers use.
type Discussions interface {
	FetchAndSave(ctx context.Context, postID int64) (*service.Processed, error)
	Refresh(ctx context.Context, postID int64) (*service.Processed, error)
	Load(ctx context.Context, postID int64) (*service.Processed, error)
	LoadSummary(ctx context.Context, postID int64) (*summarize.Summary, error)
}

// Enqueuer queues background discussion jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, postID int64, summarize bool) (int64, error)
}

// Server represents the API server
type Server struct {
	echo        *echo.Echo
	port        int
	discussions Discussions
	queue       Enqueuer
}

// NewServer creates a new API server. queue may be nil, in which case job
// submission answers 503.
func NewServer(port int, discussions Discussions, queue Enqueuer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:        e,
		port:        port,
		discussions: discussions,
		queue:       queue,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	// Discussion endpoints
	v1.GET("/discussions/:id", s.getDiscussion)
	v1.GET("/discussions/:id/lines", s.getDiscussionLines)
	v1.GET("/discussions/:id/summary", s.getSummary)
	v1.POST("/discussions/:id/jobs", s.createJob)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("Shutting down API server")
	return s.echo.Shutdown(shutdownCtx)
}
