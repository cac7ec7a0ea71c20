// Package main provides the maintenance worker entry point for the listing
// trust scorer. It sweeps the shared Postgres job queue on an interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/listing-trust/internal/config"
	"github.com/listing-trust/internal/job"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/storage"
	"github.com/listing-trust/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	fmt.Println("Listing Trust Maintenance Worker")
	log.Println("Worker starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Storage.Backend != "postgres" {
		log.Fatalf("The maintenance worker needs STORAGE_BACKEND=postgres, got %q", cfg.Storage.Backend)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithComponent("worker-main")

	// Connect to Postgres
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	var cooldown job.Cooldown = job.NewMemoryCooldown(cfg.Collection.ExpandCooldown, cfg.Collection.CooldownCapacity)
	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		cooldown = storage.NewRedisCooldown(storage.NewCacheService(redis, cfg.Database.Redis.PriceTTL, "listing-trust"), cfg.Collection.ExpandCooldown)
	}

	prices := storage.NewPriceReferenceRepository(postgres)
	queue := job.NewCollectionQueue(storage.NewCollectionJobRepository(postgres), prices, job.QueueConfig{
		MaxAttempts:      cfg.Collection.MaxAttempts,
		AssignTimeout:    cfg.Collection.AssignTimeout,
		RecycleAfter:     cfg.Collection.RecycleAfter,
		LowDataThreshold: cfg.Collection.LowDataThreshold,
		LowDataWindow:    cfg.Collection.LowDataWindow,
	}, job.WithCooldown(cooldown))

	w, err := worker.NewMaintenanceWorker(&worker.Config{
		Queue:    queue,
		Prices:   prices,
		Interval: cfg.Collection.MaintenanceInterval,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create maintenance worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		sweep := w.RunOnce(ctx)
		logger.WithFields(map[string]interface{}{
			"reclaimed": sweep.Reclaimed,
			"cancelled": sweep.Cancelled,
			"stale":     sweep.Stale,
			"errors":    len(sweep.Errors),
		}).Info("Sweep finished")
		if len(sweep.Errors) > 0 {
			os.Exit(1)
		}
		return
	}

	if err := w.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start maintenance worker")
	}
	logger.Info("Maintenance worker running")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Worker forced to shutdown")
	}
	logger.Info("Worker exited")
}
