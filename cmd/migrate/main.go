package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"polls-service/internal/config"
	"polls-service/internal/database"
	"polls-service/internal/services"
)

const schemaVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting database migration...", "type", cfg.Database.Type)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	// Migration state is advisory; a missing Redis does not block the schema.
	var redisService *services.RedisService
	if redisClient, err := database.NewRedisConnection(cfg.Redis); err != nil {
		slog.Warn("Redis unavailable, migration state will not be recorded", "error", err)
	} else {
		defer redisClient.Close()
		redisService = services.NewRedisService(redisClient)
	}

	setState := func(status string) {
		if redisService == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisService.SetMigrationState(ctx, schemaVersion, status); err != nil {
			slog.Warn("Failed to record migration state", "status", status, "error", err)
		}
	}

	setState("running")
	slog.Info("Running GORM auto-migration...")
	if err := database.Migrate(db); err != nil {
		setState("failed")
		log.Fatal("Migration failed:", err)
	}
	setState("ready")

	slog.Info("Database migration completed successfully!", "version", schemaVersion)
}
