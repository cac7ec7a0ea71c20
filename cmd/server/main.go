// Package main provides the API server entry point for the listing trust scorer.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/listing-trust/internal/adapter"
	"github.com/listing-trust/internal/api"
	"github.com/listing-trust/internal/config"
	"github.com/listing-trust/internal/engine"
	"github.com/listing-trust/internal/filters"
	"github.com/listing-trust/internal/job"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/pricing"
	"github.com/listing-trust/internal/ratelimit"
	"github.com/listing-trust/internal/service"
	"github.com/listing-trust/internal/storage"
	"github.com/listing-trust/internal/worker"
)

// stores groups the persistence the services run on
type stores struct {
	prices   storage.ReferenceStore
	jobs     job.JobStore
	cooldown job.Cooldown
	recorder service.EventRecorder
	redis    *storage.RedisCache
	checks   map[string]api.HealthCheck
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	fmt.Println("Listing Trust API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":   cfg.Logging.Level,
		"format":  cfg.Logging.Format,
		"storage": cfg.Storage.Backend,
	}).Info("Structured logging initialized")

	st, err := openStores(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}
	defer st.close()

	// Seed reference doubles as the model catalog
	seed := pricing.NewSeedReference(nil)
	if cfg.Pricing.SeedPath != "" {
		seed, err = pricing.LoadSeedFile(cfg.Pricing.SeedPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load seed reference")
		}
	}
	logger.WithField("rows", seed.Len()).Info("Seed reference loaded")

	resolver := pricing.NewResolver(st.prices, seed, pricing.NewThresholds(cfg.Pricing.MinSamplesOverrides))

	deps := filters.Dependencies{
		Catalog:        seed,
		Resolver:       resolver,
		DefaultCountry: cfg.Collection.DefaultCountry,
	}
	if cfg.Registry.BaseURL != "" {
		deps.Registry = adapter.NewRegistryClient(cfg.Registry, registryOptions(cfg, st)...)
	} else {
		logger.Warn("REGISTRY_BASE_URL not set, company registry checks will be skipped")
	}

	filterEngine, err := engine.NewFilterEngine(
		filters.NewDefaultSet(deps),
		engine.WithMaxWorkers(cfg.Engine.MaxWorkers),
		engine.WithFilterTimeout(cfg.Engine.FilterTimeout),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build filter engine")
	}

	queue := job.NewCollectionQueue(st.jobs, st.prices, job.QueueConfig{
		MaxAttempts:      cfg.Collection.MaxAttempts,
		AssignTimeout:    cfg.Collection.AssignTimeout,
		RecycleAfter:     cfg.Collection.RecycleAfter,
		LowDataThreshold: cfg.Collection.LowDataThreshold,
		LowDataWindow:    cfg.Collection.LowDataWindow,
	}, job.WithCooldown(st.cooldown))

	// Initialize services
	trustService := service.NewTrustService(filterEngine, nil, queue, st.recorder, cfg.Collection.DefaultCountry)
	priceService := service.NewPriceService(st.prices, cfg.Pricing.RefreshWindow)
	collectionService := service.NewCollectionService(queue, st.prices, cfg.Collection.BonusJobs, cfg.Collection.DefaultCountry)
	logger.Info("Services initialized")

	serverConfig := api.DefaultServerConfig(cfg.Server.Host, cfg.Server.Port)
	serverConfig.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
	serverConfig.Burst = cfg.RateLimit.Burst

	server := api.NewServer(serverConfig, trustService, priceService, collectionService)
	for name, check := range st.checks {
		server.AddHealthCheck(name, check)
	}

	// The in-process sweeper keeps the memory backend tidy; with Postgres
	// cmd/worker does the same job for every replica.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var sweeper *worker.MaintenanceWorker
	if cfg.Storage.Backend == "memory" {
		sweeper, err = worker.NewMaintenanceWorker(&worker.Config{
			Queue:    queue,
			Prices:   st.prices,
			Interval: cfg.Collection.MaintenanceInterval,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create maintenance worker")
		}
		if err := sweeper.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start maintenance worker")
		}
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"filters": filterEngine.FilterIDs(),
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if sweeper != nil {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Maintenance worker did not stop cleanly")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// openStores connects the configured backend plus the optional Redis cache
// and ClickHouse recorder
func openStores(cfg *config.Config) (*stores, error) {
	logger := logging.GetGlobalLogger()
	st := &stores{checks: make(map[string]api.HealthCheck)}

	switch cfg.Storage.Backend {
	case "postgres":
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		st.closers = append(st.closers, postgres.Close)
		st.checks["postgres"] = postgres.Ping
		st.prices = storage.NewPriceReferenceRepository(postgres)
		st.jobs = storage.NewCollectionJobRepository(postgres)
	default:
		logger.Warn("Using in-memory storage, data is lost on restart")
		st.prices = storage.NewMemoryPriceStore()
		st.jobs = storage.NewMemoryJobStore()
	}

	st.cooldown = job.NewMemoryCooldown(cfg.Collection.ExpandCooldown, cfg.Collection.CooldownCapacity)

	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		st.closers = append(st.closers, func() { _ = redis.Close() })
		st.checks["redis"] = redis.Ping
		st.redis = redis

		cache := storage.NewCacheService(redis, cfg.Database.Redis.PriceTTL, "listing-trust")
		st.prices = storage.NewCachedPriceStore(st.prices, cache)
		st.cooldown = storage.NewRedisCooldown(cache, cfg.Collection.ExpandCooldown)
		logger.Info("Redis price cache and shared cooldown enabled")
	}

	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		st.closers = append(st.closers, func() { _ = clickhouse.Close() })
		st.checks["clickhouse"] = clickhouse.Ping
		st.recorder = storage.NewAnalysisEventRepository(clickhouse)
		logger.Info("Analysis events will be recorded to ClickHouse")
	}

	return st, nil
}

// registryOptions shares the registry quota through Redis when one is set
func registryOptions(cfg *config.Config, st *stores) []adapter.RegistryOption {
	if cfg.Registry.QuotaPerMinute <= 0 {
		return nil
	}
	logger := logging.GetGlobalLogger()
	if st.redis == nil {
		logger.Warn("REGISTRY_QUOTA_PER_MINUTE needs REDIS_ENABLED, registry calls are not capped")
		return nil
	}

	quota, err := ratelimit.NewQuotaTracker(&ratelimit.QuotaConfig{
		Redis: st.redis.Client(),
		Name:  "company-registry",
		Limit: cfg.Registry.QuotaPerMinute,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create registry quota")
	}
	logger.WithField("per_minute", cfg.Registry.QuotaPerMinute).Info("Registry quota enabled")
	return []adapter.RegistryOption{adapter.WithQuota(quota)}
}
