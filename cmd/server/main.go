package main

// @title           Polls Service API
// @version         1.0
// @description     Polls, voting and results, with a small chat proxy to a text-generation model
// @host            localhost:8080
// @BasePath        /
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "polls-service/docs"
	"polls-service/internal/adapters/kafka"
	"polls-service/internal/adapters/storage"
	"polls-service/internal/api/routes"
	"polls-service/internal/config"
	"polls-service/internal/database"
	"polls-service/internal/services"
	"polls-service/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting polls server")

	// Initialize Redis connection
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize database connection
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "type", cfg.Database.Type, "error", err)
		os.Exit(1)
	}
	if cfg.Database.Type == "sqlite" {
		// Local runs skip the separate migrate step.
		if err := database.Migrate(db); err != nil {
			slog.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	redisService := services.NewRedisService(redisClient)

	var publisher services.VotePublisher = services.NoopVotePublisher{}
	if cfg.Kafka.Enabled() {
		producer, err := kafka.InitKafkaProducer(cfg.Kafka.Brokers, "polls-service")
		if err != nil {
			slog.Error("Failed to create Kafka producer", "brokers", cfg.Kafka.Brokers, "error", err)
			os.Exit(1)
		}
		publisher = kafka.NewVoteProducer(producer, cfg.Kafka.VoteTopic)
		slog.Info("Vote events enabled", "topic", cfg.Kafka.VoteTopic)
	}
	defer publisher.Close()

	var archiver services.ResultsArchiver = services.NoopArchiver{}
	if cfg.MinIO.Enabled() {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		minioClient, err := storage.NewMinIOClient(initCtx, cfg.MinIO)
		cancel()
		if err != nil {
			slog.Error("Failed to connect to MinIO", "endpoint", cfg.MinIO.Endpoint, "error", err)
			os.Exit(1)
		}
		archiver = minioClient
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(redisService)
	go hub.Run()

	// Initialize router with all dependencies
	router, err := routes.NewRouter(routes.Deps{
		Config:       cfg,
		DB:           db,
		RedisService: redisService,
		Hub:          hub,
		Publisher:    publisher,
		Archiver:     archiver,
	})
	if err != nil {
		slog.Error("Failed to build router", "error", err)
		os.Exit(1)
	}
	router.SetupRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop WebSocket hub
	hub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
