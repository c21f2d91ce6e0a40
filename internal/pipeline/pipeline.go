// Package pipeline runs "sync season S": fetch the season, fold and rank it
// week by week, persist the snapshots, then freeze each quarterback
// performance's opponent context from the snapshot entering the game.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"nflqb/pipeline/internal/defense"
	"nflqb/pipeline/internal/metrics"
	"nflqb/pipeline/internal/models"
	"nflqb/pipeline/internal/opponent"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options configures a Syncer
type Options struct {
	// RequireContext makes a performance without any usable opponent
	// snapshot an error. The row is still written.
	RequireContext bool
	// NotableMinAttempts is the season attempt threshold for the notable flag
	NotableMinAttempts int
	// ParallelSeasons bounds how many seasons SyncSeasons runs at once
	ParallelSeasons int
}

// SeasonResult summarizes one season sync
type SeasonResult struct {
	Season             int
	RunID              string
	Games              int
	Weeks              []int
	Snapshots          int
	Performances       int
	Changed            int64
	ContextUnavailable int
	Skipped            int
	Duration           time.Duration
}

// Syncer runs season syncs
type Syncer struct {
	feed   Feed
	store  Store
	cache  Invalidator
	joiner *opponent.Joiner
	opts   Options
}

// NewSyncer creates a syncer. cache may be nil.
func NewSyncer(feed Feed, store Store, cache Invalidator, opts Options) *Syncer {
	if opts.NotableMinAttempts <= 0 {
		opts.NotableMinAttempts = DefaultNotableMinAttempts
	}
	if opts.ParallelSeasons < 1 {
		opts.ParallelSeasons = 1
	}
	return &Syncer{
		feed:   feed,
		store:  store,
		cache:  cache,
		joiner: opponent.NewJoiner(store, opts.RequireContext),
		opts:   opts,
	}
}

// seasonRun carries a season between the snapshot and performance phases
type seasonRun struct {
	result *SeasonResult
	lines  []models.QBGameLine
	teams  map[string]bool
	logger zerolog.Logger
	start  time.Time
}

// SyncSeason rebuilds one season end to end. It is safe to call repeatedly;
// identical input converges to identical stored state.
func (s *Syncer) SyncSeason(ctx context.Context, season int) (*SeasonResult, error) {
	run, err := s.buildSnapshots(ctx, season)
	if err != nil {
		metrics.RecordSync("season", "error", 0)
		return nil, err
	}
	return s.writePerformances(ctx, run, true)
}

// SyncSeasons syncs several independent seasons in parallel. All snapshot
// weeks are written before any performance is joined, so a week-1
// performance can fall back to a previous season synced in the same call.
// A failing season does not stop the others; their errors are joined.
func (s *Syncer) SyncSeasons(ctx context.Context, seasons []int) ([]*SeasonResult, error) {
	seasons = uniqueSorted(seasons)
	if len(seasons) == 0 {
		return nil, nil
	}
	latest := seasons[len(seasons)-1]

	runs := make([]*seasonRun, len(seasons))
	errs := make([]error, len(seasons))

	var g errgroup.Group
	g.SetLimit(s.opts.ParallelSeasons)
	for i, season := range seasons {
		i, season := i, season
		g.Go(func() error {
			runs[i], errs[i] = s.buildSnapshots(ctx, season)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]*SeasonResult, len(seasons))
	var joins errgroup.Group
	joins.SetLimit(s.opts.ParallelSeasons)
	for i, run := range runs {
		i, run := i, run
		if run == nil {
			metrics.RecordSync("season", "error", 0)
			continue
		}
		joins.Go(func() error {
			results[i], errs[i] = s.writePerformances(ctx, run, run.result.Season == latest)
			return nil
		})
	}
	_ = joins.Wait()

	var done []*SeasonResult
	for _, r := range results {
		if r != nil {
			done = append(done, r)
		}
	}
	return done, errors.Join(errs...)
}

// buildSnapshots fetches the season, writes its raw records and writes one
// ranked snapshot batch per week in increasing week order
func (s *Syncer) buildSnapshots(ctx context.Context, season int) (*seasonRun, error) {
	run := &seasonRun{
		result: &SeasonResult{Season: season, RunID: uuid.NewString()},
		teams:  make(map[string]bool),
		start:  time.Now(),
	}
	run.logger = log.With().Int("season", season).Str("sync_run_id", run.result.RunID).Logger()
	run.logger.Info().Msg("Season sync started")

	data, err := s.feed.FetchSeason(ctx, season)
	if err != nil {
		metrics.RecordError("pipeline", "fetch")
		return nil, fmt.Errorf("season %d: failed to fetch feed: %w", season, err)
	}
	run.result.Games = data.Games
	run.lines = data.QBLines

	for _, t := range data.Teams {
		run.teams[t.ID] = true
	}
	if err := s.store.UpsertTeams(ctx, data.Teams); err != nil {
		return nil, fmt.Errorf("season %d: %w", season, err)
	}

	states, err := defense.AccumulateSeason(season, data.Records)
	if err != nil {
		metrics.RecordError("pipeline", "data_gap")
		return nil, fmt.Errorf("season %d: %w", season, err)
	}

	if err := s.store.ReplaceDefenseRecords(ctx, season, data.Records, run.result.RunID); err != nil {
		return nil, fmt.Errorf("season %d: %w", season, err)
	}

	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snaps, err := defense.RankWeek(state)
		if err != nil {
			metrics.RecordError("pipeline", "rank_integrity")
			return nil, fmt.Errorf("season %d week %d: %w", season, state.Week, err)
		}
		for i := range snaps {
			snaps[i].SyncRunID = run.result.RunID
		}

		if err := s.store.UpsertSnapshotWeek(ctx, season, state.Week, snaps); err != nil {
			metrics.RecordError("pipeline", "snapshot_write")
			return nil, err
		}
		s.invalidate(ctx, run.logger, season, state.Week)

		run.result.Weeks = append(run.result.Weeks, state.Week)
		run.result.Snapshots += len(snaps)

		run.logger.Info().
			Int("week", state.Week).
			Int("teams", len(snaps)).
			Msg("Week ranked")
	}

	return run, nil
}

// writePerformances upserts quarterbacks and their performances with
// opponent context. Join failures never stop the batch.
func (s *Syncer) writePerformances(ctx context.Context, run *seasonRun, updateNotable bool) (*SeasonResult, error) {
	result := run.result
	season := result.Season

	attempts := SeasonAttempts(run.lines)
	qbIDs := make(map[string]string)

	latest := latestLines(run.lines)
	players := make([]string, 0, len(latest))
	for id := range latest {
		players = append(players, id)
	}
	sort.Strings(players)

	for _, playerID := range players {
		line := latest[playerID]
		qb := line.ToQuarterback()
		qb.IsNotable = attempts[playerID] >= s.opts.NotableMinAttempts
		if err := s.store.UpsertQuarterback(ctx, qb, updateNotable); err != nil {
			return nil, fmt.Errorf("season %d: %w", season, err)
		}
		qbIDs[playerID] = qb.ID
	}

	var joinErrs []error
	perfs := make([]*models.QBPerformance, 0, len(run.lines))
	for _, line := range run.lines {
		if !run.teams[line.OpponentAbbr] {
			run.logger.Warn().
				Str("player", line.Name).
				Str("opponent", line.OpponentAbbr).
				Int("week", line.Week).
				Msg("Skipping performance against unknown team")
			result.Skipped++
			continue
		}

		perf := line.ToPerformance(qbIDs[line.PlayerID])
		perf.SyncRunID = result.RunID

		if err := s.joiner.Join(ctx, perf); err != nil {
			metrics.RecordError("pipeline", "context_join")
			run.logger.Warn().
				Err(err).
				Str("player", line.Name).
				Str("opponent", line.OpponentAbbr).
				Int("week", line.Week).
				Msg("Opponent context unavailable")
			joinErrs = append(joinErrs, fmt.Errorf("season %d week %d %s: %w", season, line.Week, line.Name, err))
		}
		if perf.ContextUnavailable {
			result.ContextUnavailable++
		}
		perfs = append(perfs, perf)
	}

	changed, err := s.store.UpsertPerformances(ctx, perfs)
	if err != nil {
		metrics.RecordSync("season", "error", time.Since(run.start).Seconds())
		return nil, fmt.Errorf("season %d: %w", season, err)
	}
	result.Performances = len(perfs)
	result.Changed = changed
	result.Duration = time.Since(run.start)

	metrics.RecordSeasonWrites(strconv.Itoa(season), result.Snapshots, result.Performances, result.ContextUnavailable)

	status := "success"
	if len(joinErrs) > 0 {
		status = "partial"
	}
	metrics.RecordSync("season", status, result.Duration.Seconds())

	run.logger.Info().
		Int("games", result.Games).
		Int("weeks", len(result.Weeks)).
		Int("snapshots", result.Snapshots).
		Int("performances", result.Performances).
		Int64("changed", result.Changed).
		Int("context_unavailable", result.ContextUnavailable).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("Season sync complete")

	return result, errors.Join(joinErrs...)
}

func (s *Syncer) invalidate(ctx context.Context, logger zerolog.Logger, season, week int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateWeek(ctx, season, week); err != nil {
		logger.Warn().Err(err).Int("week", week).Msg("Failed to invalidate cached week")
	}
}

func uniqueSorted(seasons []int) []int {
	seen := make(map[int]bool, len(seasons))
	out := make([]int, 0, len(seasons))
	for _, s := range seasons {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}
