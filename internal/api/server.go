package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notemesh/internal/config"
)

// Server represents the HTTP server with all configured routes and middleware.
// Handlers are nil for roles this deployment does not run; their routes are
// simply not registered.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger

	// Handlers
	noteHandler         *NoteHandler
	socialHandler       *SocialHandler
	notificationHandler *NotificationHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config              *config.ServerConfig
	Logger              *slog.Logger
	NoteHandler         *NoteHandler
	SocialHandler       *SocialHandler
	NotificationHandler *NotificationHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           deps.Config.ReadTimeout,
		WriteTimeout:          deps.Config.WriteTimeout,
		IdleTimeout:           deps.Config.IdleTimeout,
		ErrorHandler:          customErrorHandler,
	})

	s := &Server{
		app:                 app,
		config:              deps.Config,
		logger:              deps.Logger,
		noteHandler:         deps.NoteHandler,
		socialHandler:       deps.SocialHandler,
		notificationHandler: deps.NotificationHandler,
	}

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware to handle panics
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	// Logger middleware for request logging
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all API routes for the roles this server hosts.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside the API group)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")

	if s.noteHandler != nil {
		api.Post("/notes", s.noteHandler.Create)
		api.Get("/notes", s.noteHandler.List)
		api.Get("/notes/:noteId", s.noteHandler.GetByID)
		api.Put("/notes/:noteId", s.noteHandler.Update)
		api.Delete("/notes/:noteId", s.noteHandler.Delete)
	}

	if s.socialHandler != nil {
		api.Get("/social/notes/:noteId", s.socialHandler.GetNote)
		api.Post("/social/notes/:noteId/likes", s.socialHandler.Like)
		api.Get("/social/notes/:noteId/likes", s.socialHandler.LikeCount)
		api.Delete("/social/notes/:noteId/likes/:userId", s.socialHandler.Unlike)
		api.Post("/social/notes/:noteId/shares", s.socialHandler.Share)
		api.Get("/social/users/:userId/likes", s.socialHandler.LikesByUser)
	}

	if s.notificationHandler != nil {
		api.Get("/notifications/:userId", s.notificationHandler.ListByUser)
		api.Put("/notifications/:id/read", s.notificationHandler.MarkRead)
	}
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return Success(c, map[string]string{
		"status": "healthy",
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned from handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return Error(c, e.Code, ErrCodeInternalError, e.Message)
	}

	return InternalError(c, fmt.Sprintf("unexpected error: %v", err))
}
