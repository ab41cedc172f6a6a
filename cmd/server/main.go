package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/calcutta-sim/internal/api"
	"github.com/stitts-dev/calcutta-sim/internal/models"
	"github.com/stitts-dev/calcutta-sim/internal/services"
	"github.com/stitts-dev/calcutta-sim/pkg/config"
	"github.com/stitts-dev/calcutta-sim/pkg/database"
	"github.com/stitts-dev/calcutta-sim/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithService("calcutta-sim")
	log.WithFields(logrus.Fields{
		"environment":      cfg.Env,
		"port":             cfg.Port,
		"default_strategy": cfg.DefaultStrategy,
	}).Info("Starting allocation service")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	breakers := services.NewCircuitBreakerService(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout, structuredLogger)
	metrics := services.NewMetrics()

	// The database is optional: without it runs are served but not persisted.
	var (
		db   *database.DB
		repo *services.RunRepository
	)
	if cfg.DatabaseURL != "" {
		db, err = database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			log.WithError(err).Warn("Database unavailable, allocation runs will not be persisted")
		} else {
			defer db.Close()
			if err := models.AutoMigrate(db.DB); err != nil {
				log.Fatalf("Failed to migrate allocation tables: %v", err)
			}
			repo = services.NewRunRepository(db, breakers)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("Redis unavailable, caching in process only until it recovers")
		}
		defer redisClient.Close()
	}

	cacheService, err := services.NewCacheService(redisClient, cfg.LocalCacheSize, breakers)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}
	cacheService.SetMetrics(metrics)

	allocationService, err := services.NewAllocationService(repo, cacheService, metrics, services.AllocationServiceConfig{
		DefaultStrategy: cfg.DefaultStrategy,
		GreedyStep:      cfg.GreedyStep,
		GreedyMaxWork:   cfg.GreedyMaxWork,
		DPMaxStates:     cfg.DPMaxStates,
		Timeout:         cfg.AllocationTimeoutDuration(),
		CacheTTL:        cfg.CacheTTL,
	})
	if err != nil {
		log.Fatalf("Failed to create allocation service: %v", err)
	}

	if repo != nil {
		retention := services.NewRetentionService(repo, metrics, structuredLogger, cfg.RetentionSchedule, cfg.RunRetentionDays)
		if err := retention.Start(); err != nil {
			log.WithError(err).Error("Failed to start run retention")
		}
		defer retention.Stop()
	}

	rateLimiter := services.NewClientRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rateLimiter.Cleanup(30 * time.Minute)
			case <-stopCleanup:
				return
			}
		}
	}()
	defer close(stopCleanup)

	router := api.NewRouter(api.Dependencies{
		Allocation:  allocationService,
		DB:          db,
		Cache:       cacheService,
		Breakers:    breakers,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		CorsOrigins: cfg.CorsOrigins,
		Logger:      structuredLogger,
	})

	// Write timeout leaves headroom over the allocation deadline
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AllocationTimeoutDuration() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Allocation service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down allocation service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Allocation service forced to shutdown: %v", err)
	}

	log.Info("Allocation service exited")
}
