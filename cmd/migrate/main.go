package main

import (
	"context"
	"time"

	migrations "courtsync/internal/migrations/mongo"
	"courtsync/pkg/config"
)

const jobName = "mongo-migration"

const jobTimeout = 2 * time.Minute

func main() {
	cfg := config.Load(jobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cfg.Log.Info("Applying Mongo migrations", "database", cfg.MongoDatabaseName)
	if err := migrations.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName); err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migrations applied")
}
