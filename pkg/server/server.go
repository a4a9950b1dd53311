// Package server assembles the HTTP API: the echo instance, middleware,
// and route registration for schedules, runs, and push subscriptions.
package server

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/quadrabot/quadra/pkg/notification"
	"github.com/quadrabot/quadra/pkg/schedule"
)

// Server represents the HTTP API server.
type Server struct {
	echo          *echo.Echo
	manager       schedule.Manager
	worker        *schedule.Worker
	subscriptions *notification.SubscriptionStore
	verbose       bool
}

// New creates a server with all routes registered.
func New(manager schedule.Manager, worker *schedule.Worker, subscriptions *notification.SubscriptionStore, verbose bool) *Server {
	e := echo.New()

	// Disable Echo's default logger and use custom logging
	e.Logger.SetOutput(io.Discard)
	e.HideBanner = true

	e.Use(middleware.Recover())

	s := &Server{
		echo:          e,
		manager:       manager,
		worker:        worker,
		subscriptions: subscriptions,
		verbose:       verbose,
	}

	if verbose {
		e.Use(s.loggingMiddleware())
	}

	s.setupRoutes()
	return s
}

// GetEcho returns the underlying echo instance.
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

// Start begins listening on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// loggingMiddleware returns Echo middleware for request logging.
func (s *Server) loggingMiddleware() echo.MiddlewareFunc {
	return echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log.Printf("Request: %s %s from %s", req.Method, req.URL.Path, req.RemoteAddr)
			return next(c)
		}
	})
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)

	handlers := schedule.NewHandlers(s.manager, s.worker)
	handlers.RegisterRoutes(s.echo)

	g := s.echo.Group("/notifications")
	g.POST("/subscriptions", s.addSubscription)
	g.DELETE("/subscriptions", s.removeSubscription)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type subscriptionRequest struct {
	Endpoint  string            `json:"endpoint"`
	Keys      map[string]string `json:"keys"`
	UserAgent string            `json:"user_agent"`
}

func (s *Server) addSubscription(c echo.Context) error {
	var req subscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint is required")
	}

	sub := notification.Subscription{
		Endpoint:  req.Endpoint,
		Keys:      req.Keys,
		UserAgent: req.UserAgent,
	}
	if err := s.subscriptions.Add(sub); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save subscription")
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "subscribed"})
}

func (s *Server) removeSubscription(c echo.Context) error {
	var req subscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint is required")
	}

	if err := s.subscriptions.Remove(req.Endpoint); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to remove subscription")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unsubscribed"})
}
