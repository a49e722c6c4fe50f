package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/zfogg/petfinder/internal/database"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/seed"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), "seed.log"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var seedValue uint64
	if v := os.Getenv("SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			logger.FatalWithFields("Invalid SEED", err)
		}
		seedValue = n
	}

	db, err := database.Initialize()
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close()

	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Failed to migrate database", err)
	}

	ctx := context.Background()
	seeder := seed.NewSeeder(db, seedValue)

	switch command {
	case "dev":
		if err := seeder.SeedDev(ctx); err != nil {
			logger.FatalWithFields("Seeding failed", err)
		}
		logger.Log.Info("Development database seeded")
	case "test":
		if err := seeder.SeedTest(ctx); err != nil {
			logger.FatalWithFields("Seeding failed", err)
		}
		logger.Log.Info("Test database seeded")
	case "clean":
		deleted, err := seeder.Clean(ctx)
		if err != nil {
			logger.FatalWithFields("Clean failed", err)
		}
		logger.Log.Info("Seed data cleaned", zap.Int64("deleted", deleted))
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with 500 generated pets")
		fmt.Println("  test  - Seed a fixed set of five pets for end-to-end tests")
		fmt.Println("  clean - Remove all seeded pets")
		os.Exit(1)
	}
}
