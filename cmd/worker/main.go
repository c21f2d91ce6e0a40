package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nflqb/pipeline/internal/api"
	"nflqb/pipeline/internal/cache"
	"nflqb/pipeline/internal/client"
	"nflqb/pipeline/internal/config"
	"nflqb/pipeline/internal/ingest"
	"nflqb/pipeline/internal/metrics"
	"nflqb/pipeline/internal/pipeline"
	"nflqb/pipeline/internal/repository"
	"nflqb/pipeline/internal/scheduler"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	setupLogger()

	log.Info().Msg("Starting NFL QB defense pipeline worker")

	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Ints("seasons", cfg.SyncSeasons).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	espn := client.NewClient(cfg.ESPNBaseURL, cfg.ESPNTimeout, cfg.ESPNMaxConcurrency)
	log.Info().Str("base_url", cfg.ESPNBaseURL).Msg("ESPN client initialized")

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// The cache is optional. Interface values stay nil when Redis is down.
	var invalidator pipeline.Invalidator
	var viewCache api.Cache
	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     strconv.Itoa(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
	} else {
		defer redisCache.Close()
		invalidator = redisCache
		viewCache = redisCache
		log.Info().Msg("Redis cache connected")
	}

	feed := ingest.NewFeed(espn, cfg.SyncFirstWeek, cfg.SyncLastWeek, cfg.ESPNMaxConcurrency)
	syncer := pipeline.NewSyncer(feed, pipeline.NewDBStore(db), invalidator, pipeline.Options{
		RequireContext:     cfg.RequireOpponentContext,
		NotableMinAttempts: cfg.NotableMinAttempts,
		ParallelSeasons:    cfg.SyncParallelSeasons,
	})

	handler := api.NewHandler(api.NewDBReader(db), viewCache, cfg.CacheTTL())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           api.NewRouter(handler, cfg.EnableMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.APIPort).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
				db.PoolStats()
			case <-ctx.Done():
				return
			}
		}
	}()

	sched := scheduler.NewScheduler(syncer, cfg.SyncSeasons, cfg.SyncCron)

	if cfg.EnableScheduler {
		log.Info().Str("schedule", cfg.SyncCron).Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	if cfg.InitialSyncEnabled {
		go func() {
			log.Info().Msg("Running initial season sync...")
			if sched.RunOnce(ctx) {
				log.Info().Msg("Initial sync finished")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown incomplete")
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}
