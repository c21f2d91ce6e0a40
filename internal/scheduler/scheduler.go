package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nflqb/pipeline/internal/pipeline"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Syncer runs the multi-season sync
type Syncer interface {
	SyncSeasons(ctx context.Context, seasons []int) ([]*pipeline.SeasonResult, error)
}

// Scheduler runs the season sync on a cron schedule. The pipeline runs
// twice a week, after Monday and Thursday night games are final.
type Scheduler struct {
	syncer   Syncer
	seasons  []int
	schedule string
	cron     *cron.Cron
	running  sync.Mutex
	stopChan chan struct{}
}

// NewScheduler creates a new scheduler instance
func NewScheduler(syncer Syncer, seasons []int, schedule string) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		seasons:  seasons,
		schedule: schedule,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule season sync: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.schedule).
		Ints("seasons", s.seasons).
		Msg("Season sync scheduled")

	return nil
}

// Stop stops the scheduler and waits for a running sync to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	close(s.stopChan)

	// RunOnce may also be called outside cron (initial sync)
	s.running.Lock()
	s.running.Unlock()

	log.Info().Msg("Scheduler stopped")
}

// RunOnce syncs every configured season. A trigger that fires while a sync
// is still running is skipped; syncs are idempotent so the next run catches up.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.TryLock() {
		log.Warn().Msg("Previous sync still running, skipping")
		return false
	}
	defer s.running.Unlock()

	select {
	case <-s.stopChan:
		return false
	default:
	}

	start := time.Now()
	log.Info().Ints("seasons", s.seasons).Msg("Running scheduled sync...")

	results, err := s.syncer.SyncSeasons(ctx, s.seasons)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled sync finished with errors")
	}

	log.Info().
		Int("seasons_synced", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Scheduled sync complete")

	return true
}
