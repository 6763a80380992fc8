package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"mls-delivery/config"
	"mls-delivery/internal/handler"
	"mls-delivery/internal/middleware"
	"mls-delivery/internal/redis"
	"mls-delivery/internal/transport/httpdto"
	"mls-delivery/pkg/database"
	"mls-delivery/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	pool       *pgxpool.Pool
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Users       *handler.UserHandler
	Clients     *handler.ClientHandler
	KeyPackages *handler.KeyPackageHandler
	Groups      *handler.GroupHandler
	Memberships *handler.MembershipHandler
	Messages    *handler.MessageHandler
}

func New(cfg *config.Config, l *logger.Logger, pool *pgxpool.Pool) *Server {
	switch cfg.Server.Environment {
	case ReleaseMode, "production":
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
		pool:   pool,
	}
}

// SetupRoutes installs the middleware chain and the delivery API surface.
// limiter may be nil when redis is not configured.
func (s *Server) SetupRoutes(handlers *Handlers, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	if limiter != nil {
		s.engine.Use(middleware.RateLimitMiddleware(limiter))
	}

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), s.pool); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	v1 := s.engine.Group("/v1")
	if s.config.Auth.JWTSecret != "" {
		v1.Use(middleware.AuthMiddleware(s.config.Auth.JWTSecret))
	}

	users := v1.Group("/users")
	{
		users.POST("", handlers.Users.Create)
		users.GET("/:id", handlers.Users.GetByID)
		users.POST("/:id/deactivate", handlers.Users.Deactivate)
	}

	clients := v1.Group("/clients")
	{
		clients.POST("", handlers.Clients.Register)
		clients.GET("", handlers.Clients.ListByUser)
		clients.GET("/:id", handlers.Clients.GetByID)
	}

	keyPackages := v1.Group("/key-packages")
	{
		keyPackages.POST("", handlers.KeyPackages.Publish)
		keyPackages.GET("", handlers.KeyPackages.ListByClient)
		keyPackages.GET("/:id", handlers.KeyPackages.GetByID)
		keyPackages.POST("/:id/reserve", handlers.KeyPackages.Reserve)
	}

	groups := v1.Group("/groups")
	{
		groups.POST("", handlers.Groups.Create)
		groups.GET("", handlers.Groups.List)
		groups.GET("/:id", handlers.Groups.GetByID)
		groups.POST("/:id/epoch", handlers.Groups.AdvanceEpoch)
		groups.POST("/:id/deactivate", handlers.Groups.Deactivate)
		groups.POST("/:id/members", handlers.Memberships.AddMember)
		groups.GET("/:id/members", handlers.Memberships.ListByGroup)
		groups.GET("/:id/recipients", handlers.Memberships.ActiveRecipients)
	}

	memberships := v1.Group("/memberships")
	{
		memberships.GET("", handlers.Memberships.ListByClient)
		memberships.GET("/:id", handlers.Memberships.GetByID)
		memberships.DELETE("/:id", handlers.Memberships.Remove)
	}

	messages := v1.Group("/messages")
	{
		messages.POST("/proposal", handlers.Messages.StoreProposal)
		messages.POST("/commit", handlers.Messages.StoreCommit)
		messages.POST("/welcome", handlers.Messages.StoreWelcome)
		messages.POST("/read", handlers.Messages.MarkRead)
		messages.GET("", handlers.Messages.Fetch)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.Server.Port)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.Server.Port)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
