package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/config"
	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/logger"
	"github.com/plumefeed/backend/internal/seed"
)

func main() {
	users := flag.Int("users", 25, "number of users to create")
	posts := flag.Int("posts", 100, "number of pending posts to create")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, "seed.log"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := docstore.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer store.Close(ctx)

	seeder := seed.NewSeeder(store)
	if err := seeder.SeedDev(ctx, *users, *posts); err != nil {
		logger.Log.Fatal("Seeding failed", zap.Error(err))
	}
}
