package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"mls-delivery/config"
	"mls-delivery/internal/handler"
	"mls-delivery/internal/redis"
	"mls-delivery/internal/repository"
	"mls-delivery/internal/server"
	"mls-delivery/internal/services"
	"mls-delivery/pkg/database"
	"mls-delivery/pkg/logger"
)

func main() {
	// Missing .env is fine; config falls back to real environment variables.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(l)

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		l.Errorf("Failed to connect to database: %v", err)
		log.Fatal(err)
	}
	defer pool.Close()

	if err := database.ApplyMigrations(ctx, pool, "migrations"); err != nil {
		l.Errorf("Failed to apply migrations: %v", err)
		log.Fatal(err)
	}

	userRepo := repository.NewUserRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	keyPackageRepo := repository.NewKeyPackageRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	var (
		notifier services.Notifier
		limiter  *redis.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			l.Warnf("Redis unreachable, continuing without notifications: %v", err)
		} else {
			notifier = redis.NewNotifier(redisClient, l)
			limiter = redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())
		}
	}

	userService := services.NewUserService(userRepo)
	clientService := services.NewClientService(clientRepo, userRepo)
	keyPackageService := services.NewKeyPackageService(keyPackageRepo, clientRepo)
	groupService := services.NewGroupService(groupRepo, clientRepo)
	membershipService := services.NewMembershipService(membershipRepo, groupRepo, clientRepo)
	messageService := services.NewMessageService(messageRepo, groupRepo, membershipRepo, clientRepo, notifier, l)

	handlers := &server.Handlers{
		Users:       handler.NewUserHandler(userService),
		Clients:     handler.NewClientHandler(clientService),
		KeyPackages: handler.NewKeyPackageHandler(keyPackageService),
		Groups:      handler.NewGroupHandler(groupService),
		Memberships: handler.NewMembershipHandler(membershipService),
		Messages:    handler.NewMessageHandler(messageService),
	}

	srv := server.New(cfg, l, pool)
	srv.SetupRoutes(handlers, limiter)

	if err := srv.Start(); err != nil {
		l.Errorf("Server exited with error: %v", err)
	}
}
