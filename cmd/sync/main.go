// Command sync runs the defense snapshot and opponent context pipeline once
// and exits. It is the manual counterpart to the worker's scheduled sync.
//
// Usage:
//
//	sync --season 2024 --season 2023
//	sync --migrate --strict
//	sync --reset --season 2024
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nflqb/pipeline/internal/cache"
	"nflqb/pipeline/internal/client"
	"nflqb/pipeline/internal/config"
	"nflqb/pipeline/internal/ingest"
	"nflqb/pipeline/internal/pipeline"
	"nflqb/pipeline/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		seasons []int
		migrate bool
		strict  bool
		noCache bool
		reset   bool
	)

	root := &cobra.Command{
		Use:           "sync",
		Short:         "Rebuild defense snapshots and quarterback opponent context",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
			if len(seasons) > 0 {
				cfg.SyncSeasons = seasons
			}
			if cmd.Flags().Changed("strict") {
				cfg.RequireOpponentContext = strict
			}
			return run(cmd.Context(), cfg, migrate, reset, !noCache)
		},
	}
	root.Flags().IntSliceVar(&seasons, "season", nil, "Season to sync, repeatable (default SYNC_SEASONS)")
	root.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before syncing")
	root.Flags().BoolVar(&strict, "strict", false, "Fail when a performance has no opponent context")
	root.Flags().BoolVar(&noCache, "no-cache", false, "Skip league view cache invalidation")
	root.Flags().BoolVar(&reset, "reset", false, "Delete the seasons' stored snapshots and performances before syncing")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Sync failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, migrate, reset, useCache bool) error {
	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info().Msg("Validating service health...")
	if err := db.Health(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	if migrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		log.Info().Msg("Schema applied")
	}

	var invalidator pipeline.Invalidator
	if useCache {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable - cached league views may be stale until they expire")
		} else {
			defer redisCache.Close()
			invalidator = redisCache
		}
	}

	if reset {
		for _, season := range cfg.SyncSeasons {
			weeks, err := db.ResetSeason(ctx, season)
			if err != nil {
				return err
			}
			if invalidator == nil {
				continue
			}
			for _, week := range weeks {
				if err := invalidator.InvalidateWeek(ctx, season, week); err != nil {
					log.Warn().Err(err).Int("season", season).Int("week", week).Msg("Failed to invalidate cached week")
				}
			}
		}
	}

	espn := client.NewClient(cfg.ESPNBaseURL, cfg.ESPNTimeout, cfg.ESPNMaxConcurrency)
	feed := ingest.NewFeed(espn, cfg.SyncFirstWeek, cfg.SyncLastWeek, cfg.ESPNMaxConcurrency)
	syncer := pipeline.NewSyncer(feed, pipeline.NewDBStore(db), invalidator, pipeline.Options{
		RequireContext:     cfg.RequireOpponentContext,
		NotableMinAttempts: cfg.NotableMinAttempts,
		ParallelSeasons:    cfg.SyncParallelSeasons,
	})

	results, err := syncer.SyncSeasons(ctx, cfg.SyncSeasons)
	for _, r := range results {
		log.Info().
			Int("season", r.Season).
			Str("sync_run_id", r.RunID).
			Int("games", r.Games).
			Int("weeks", len(r.Weeks)).
			Int("snapshots", r.Snapshots).
			Int("performances", r.Performances).
			Int64("changed", r.Changed).
			Int("context_unavailable", r.ContextUnavailable).
			Int("skipped", r.Skipped).
			Dur("duration", r.Duration).
			Msg("Season synced")
	}
	return err
}
