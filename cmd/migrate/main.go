package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/zfogg/petfinder/internal/config"
	"github.com/zfogg/petfinder/internal/database"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/search"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.LogLevel, "migrate.log"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		migrateDatabase()
		ensureIndices(cfg)
	case "db":
		migrateDatabase()
	case "indices":
		ensureIndices(cfg)
	default:
		fmt.Println("Usage: migrate [up|db|indices]")
		fmt.Println("  up      - Migrate the database and create missing search indices")
		fmt.Println("  db      - Migrate the database only")
		fmt.Println("  indices - Create missing search indices only")
		os.Exit(1)
	}
}

func migrateDatabase() {
	db, err := database.Initialize()
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close()

	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}
}

func ensureIndices(cfg *config.Config) {
	client, err := search.NewClient(search.ClientConfig{
		Addresses:   cfg.Elasticsearch.Addresses,
		Username:    cfg.Elasticsearch.Username,
		Password:    cfg.Elasticsearch.Password,
		MaxRetries:  cfg.Elasticsearch.MaxRetries,
		IndexPrefix: cfg.Search.IndexPrefix,
	})
	if err != nil {
		logger.FatalWithFields("Failed to create search client", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := client.EnsureIndices(ctx); err != nil {
		logger.FatalWithFields("Failed to create search indices", err)
	}
	stale, err := client.CheckIndexVersion(ctx, client.PetsIndex())
	if err != nil {
		logger.FatalWithFields("Failed to check index version", err)
	}
	if stale {
		logger.Log.Warn("Pets index mapping is out of date; run `petfinder rebuild`",
			logger.WithIndex(client.PetsIndex()))
		return
	}
	logger.Log.Info("Search indices ready", zap.String("pets", client.PetsIndex()), zap.String("analytics", client.AnalyticsIndex()))
}
