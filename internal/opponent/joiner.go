// Package opponent attaches the opponent's defensive standing, as it was
// entering a game, to a quarterback performance.
package opponent

import (
	"context"
	"fmt"

	"nflqb/pipeline/internal/metrics"
	"nflqb/pipeline/internal/models"

	"github.com/rs/zerolog/log"
)

// EndOfSeason is larger than any regular-season week; a lookup before it
// returns a season's final snapshot.
const EndOfSeason = 99

// SnapshotReader reads persisted defense snapshots
type SnapshotReader interface {
	// LatestSnapshotBefore returns the team's snapshot with the greatest week
	// strictly less than beforeWeek in season, or nil when none exists.
	LatestSnapshotBefore(ctx context.Context, teamID string, season, beforeWeek int) (*models.DefenseSnapshot, error)
}

// MissingSnapshotError is returned in strict mode when neither a prior-week
// nor a prior-season snapshot exists for the opponent
type MissingSnapshotError struct {
	OpponentID string
	Season     int
	Week       int
}

func (e *MissingSnapshotError) Error() string {
	return fmt.Sprintf("no defense snapshot for opponent %s before season=%d week=%d", e.OpponentID, e.Season, e.Week)
}

// Joiner resolves opponent context for performances
type Joiner struct {
	snapshots      SnapshotReader
	requireContext bool
}

// NewJoiner creates a joiner. With requireContext set, a performance with no
// usable snapshot yields a MissingSnapshotError.
func NewJoiner(snapshots SnapshotReader, requireContext bool) *Joiner {
	return &Joiner{
		snapshots:      snapshots,
		requireContext: requireContext,
	}
}

// Resolve returns the opponent context for a game in (season, week).
//
// The opponent's latest snapshot of the same season with week < week is the
// state entering the game. Week 1 (or any week before the opponent's first
// game) falls back to the previous season's final snapshot. Snapshots from
// the game's own week or later are never read.
func (j *Joiner) Resolve(ctx context.Context, opponentID string, season, week int) (models.OpponentContext, error) {
	snap, err := j.snapshots.LatestSnapshotBefore(ctx, opponentID, season, week)
	if err != nil {
		return models.UnavailableContext(), fmt.Errorf("failed to read prior-week snapshot: %w", err)
	}
	if snap != nil {
		return models.ContextFromSnapshot(snap, models.ContextPriorWeek), nil
	}

	snap, err = j.snapshots.LatestSnapshotBefore(ctx, opponentID, season-1, EndOfSeason)
	if err != nil {
		return models.UnavailableContext(), fmt.Errorf("failed to read prior-season snapshot: %w", err)
	}
	if snap != nil {
		log.Debug().
			Str("opponent", opponentID).
			Int("season", season).
			Int("week", week).
			Int("fallback_week", snap.Week).
			Msg("Using prior-season opponent snapshot")
		metrics.RecordContextFallback()
		return models.ContextFromSnapshot(snap, models.ContextPriorSeason), nil
	}

	if j.requireContext {
		return models.UnavailableContext(), &MissingSnapshotError{OpponentID: opponentID, Season: season, Week: week}
	}
	return models.UnavailableContext(), nil
}

// Join resolves and stores the opponent context on perf. On any error the
// performance is left with null context and flagged unavailable, so it can
// still be persisted and backfilled later.
func (j *Joiner) Join(ctx context.Context, perf *models.QBPerformance) error {
	oppCtx, err := j.Resolve(ctx, perf.OpponentID, perf.Season, perf.Week)
	perf.SetContext(oppCtx)
	return err
}
