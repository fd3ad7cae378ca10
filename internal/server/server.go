// Package server exposes the HTTP API: auth, agent and document management,
// analytics, and the WebSocket chat endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kestrelworks/docent/internal/auth"
	"github.com/kestrelworks/docent/internal/chat"
	"github.com/kestrelworks/docent/internal/extract"
	"github.com/kestrelworks/docent/internal/ingest"
	"github.com/kestrelworks/docent/internal/llm"
	"github.com/kestrelworks/docent/internal/models"
	"github.com/kestrelworks/docent/internal/vector"
	"gorm.io/gorm"
)

// Server wires the API surface to the core services.
type Server struct {
	db       *gorm.DB
	auth     *auth.Service
	ingestor *ingest.Orchestrator
	engine   chat.Answerer
	sessions *chat.SessionManager
	router   *gin.Engine

	port        int
	idleTimeout time.Duration
}

// Opts holds parameters for creating a Server.
type Opts struct {
	DB       *gorm.DB
	Auth     *auth.Service
	Ingestor *ingest.Orchestrator
	Engine   chat.Answerer
	Sessions *chat.SessionManager

	Port        int           // defaults to 8000
	IdleTimeout time.Duration // WebSocket read deadline, defaults to chat.DefaultIdleTimeout
}

// New creates a Server with all routes registered.
func New(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("server: auth service is required")
	}
	if opts.Ingestor == nil {
		return nil, fmt.Errorf("server: ingestor is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("server: answer engine is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("server: session manager is required")
	}
	port := opts.Port
	if port <= 0 {
		port = 8000
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = chat.DefaultIdleTimeout
	}

	s := &Server{
		db:          opts.DB,
		auth:        opts.Auth,
		ingestor:    opts.Ingestor,
		engine:      opts.Engine,
		sessions:    opts.Sessions,
		port:        port,
		idleTimeout: idle,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	s.router = router
	return s, nil
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.requireAuth)
	{
		authed.GET("/agents", s.handleAgentList)
		authed.POST("/agents", s.handleAgentCreate)
		authed.GET("/agents/:id", s.handleAgentGet)
		authed.PUT("/agents/:id", s.handleAgentUpdate)
		authed.DELETE("/agents/:id", s.handleAgentDelete)

		authed.POST("/documents/upload", s.handleDocumentUpload)
		authed.GET("/documents/agent", s.handleDocumentList)
		authed.DELETE("/documents/:id", s.handleDocumentDelete)

		authed.GET("/analytics/overview", s.handleAnalyticsOverview)
		authed.GET("/analytics/:agent_id", s.handleAnalyticsAgent)
	}

	// The WebSocket endpoint authenticates via query token, not the bearer
	// middleware: browsers cannot set headers on WebSocket dials.
	api.GET("/chat/:agent_id/ws", s.handleChatSocket)
}

// requireAuth resolves the bearer token to an active user and stores it on
// the context.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
		return
	}
	user, err := s.auth.UserFromToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid or expired token"})
		return
	}
	c.Set("user", user)
	c.Next()
}

// currentUser returns the authenticated user set by requireAuth.
func currentUser(c *gin.Context) *models.User {
	return c.MustGet("user").(*models.User)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ingest.ErrAgentNotFound), errors.Is(err, ingest.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, extract.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vector.ErrIndex), errors.Is(err, llm.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error with its mapped status code.
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"detail": err.Error()})
}
