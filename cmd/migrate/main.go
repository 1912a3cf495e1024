package main

import (
	"context"
	"log"
	"time"

	"quiz-deck/internal/config"
	"quiz-deck/internal/database"
	"quiz-deck/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer l.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch cfg.Store.Driver {
	case "oracle":
		db, err := database.NewSQLXOracleDB(ctx, cfg.Store)
		if err != nil {
			l.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		src, err := database.OracleSource(cfg.Store.MigrationsPath)
		if err != nil {
			l.Fatal("Failed to open migrations", zap.String("path", cfg.Store.MigrationsPath), zap.Error(err))
		}
		applied, err := database.RunMigrations(ctx, db, src)
		if err != nil {
			l.Fatal("Failed to run migrations", zap.Int("applied", applied), zap.Error(err))
		}
	case "mongo":
		client, err := database.NewMongoClient(ctx, cfg.Store)
		if err != nil {
			l.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Disconnect(context.Background())

		if err := database.RunMongoMigrations(client, cfg.Store.Database); err != nil {
			l.Fatal("Failed to run migrations", zap.Error(err))
		}
	default:
		l.Fatal("Unsupported store driver", zap.String("driver", cfg.Store.Driver))
	}
}
