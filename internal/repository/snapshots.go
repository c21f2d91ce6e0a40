package repository

import (
	"context"
	"fmt"
	"time"

	"nflqb/pipeline/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const snapshotColumns = `
	id, team_id, season, week,
	pass_yards_allowed, rush_yards_allowed, total_yards_allowed, points_allowed,
	wins, losses, ties,
	pass_def_rank, rush_def_rank, total_def_rank,
	sync_run_id, created_at, updated_at
`

// SnapshotRepository persists weekly defense snapshots
type SnapshotRepository struct {
	db *Database
}

// UpsertWeek writes one week's snapshots for the whole league in a single
// transaction. Rows are keyed by (team_id, season, week). A row is only
// rewritten when its totals, record or ranks differ, so sync_run_id and
// updated_at keep pointing at the run that last changed it. Snapshots are
// never removed here; see ResetSeason.
func (r *SnapshotRepository) UpsertWeek(ctx context.Context, season, week int, snaps []models.DefenseSnapshot) error {
	for _, s := range snaps {
		if s.Season != season || s.Week != week {
			return fmt.Errorf("snapshot for %s is season=%d week=%d, batch is season=%d week=%d",
				s.TeamID, s.Season, s.Week, season, week)
		}
	}

	start := time.Now()
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range snaps {
			batch.Queue(`
				INSERT INTO team_defense_snapshots (
					id, team_id, season, week,
					pass_yards_allowed, rush_yards_allowed, total_yards_allowed, points_allowed,
					wins, losses, ties,
					pass_def_rank, rush_def_rank, total_def_rank,
					sync_run_id
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (team_id, season, week) DO UPDATE SET
					pass_yards_allowed = EXCLUDED.pass_yards_allowed,
					rush_yards_allowed = EXCLUDED.rush_yards_allowed,
					total_yards_allowed = EXCLUDED.total_yards_allowed,
					points_allowed = EXCLUDED.points_allowed,
					wins = EXCLUDED.wins,
					losses = EXCLUDED.losses,
					ties = EXCLUDED.ties,
					pass_def_rank = EXCLUDED.pass_def_rank,
					rush_def_rank = EXCLUDED.rush_def_rank,
					total_def_rank = EXCLUDED.total_def_rank,
					sync_run_id = EXCLUDED.sync_run_id,
					updated_at = NOW()
				WHERE (
					team_defense_snapshots.pass_yards_allowed, team_defense_snapshots.rush_yards_allowed,
					team_defense_snapshots.total_yards_allowed, team_defense_snapshots.points_allowed,
					team_defense_snapshots.wins, team_defense_snapshots.losses, team_defense_snapshots.ties,
					team_defense_snapshots.pass_def_rank, team_defense_snapshots.rush_def_rank,
					team_defense_snapshots.total_def_rank
				) IS DISTINCT FROM (
					EXCLUDED.pass_yards_allowed, EXCLUDED.rush_yards_allowed,
					EXCLUDED.total_yards_allowed, EXCLUDED.points_allowed,
					EXCLUDED.wins, EXCLUDED.losses, EXCLUDED.ties,
					EXCLUDED.pass_def_rank, EXCLUDED.rush_def_rank,
					EXCLUDED.total_def_rank
				)
			`,
				uuid.NewString(), s.TeamID, s.Season, s.Week,
				s.PassYardsAllowed, s.RushYardsAllowed, s.TotalYardsAllowed, s.PointsAllowed,
				s.Wins, s.Losses, s.Ties,
				s.PassDefRank, s.RushDefRank, s.TotalDefRank,
				s.SyncRunID,
			)
		}
		_, err := execBatch(ctx, tx, batch)
		return err
	})

	observe("upsert_week", "team_defense_snapshots", start, err)
	if err != nil {
		return fmt.Errorf("failed to write snapshots for season %d week %d: %w", season, week, err)
	}

	log.Debug().
		Int("season", season).
		Int("week", week).
		Int("teams", len(snaps)).
		Msg("Snapshot week written")

	return nil
}

// LatestSnapshotBefore returns the team's snapshot with the greatest week
// below beforeWeek in season. Returns nil when there is none.
func (r *SnapshotRepository) LatestSnapshotBefore(ctx context.Context, teamID string, season, beforeWeek int) (*models.DefenseSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM team_defense_snapshots
		WHERE team_id = $1 AND season = $2 AND week < $3
		ORDER BY week DESC
		LIMIT 1
	`

	start := time.Now()
	snap, err := scanSnapshot(r.db.Pool.QueryRow(ctx, query, teamID, season, beforeWeek))
	if err == pgx.ErrNoRows {
		observe("latest_before", "team_defense_snapshots", start, nil)
		return nil, nil
	}
	observe("latest_before", "team_defense_snapshots", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot before week %d: %w", beforeWeek, err)
	}

	return snap, nil
}

// GetByTeamWeek returns the snapshot for (teamID, season, week), or nil when absent
func (r *SnapshotRepository) GetByTeamWeek(ctx context.Context, teamID string, season, week int) (*models.DefenseSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM team_defense_snapshots
		WHERE team_id = $1 AND season = $2 AND week = $3
	`

	snap, err := scanSnapshot(r.db.Pool.QueryRow(ctx, query, teamID, season, week))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return snap, nil
}

// ListByWeek returns the full-league view for a week ordered by total defense rank
func (r *SnapshotRepository) ListByWeek(ctx context.Context, season, week int) ([]*models.DefenseSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM team_defense_snapshots
		WHERE season = $1 AND week = $2
		ORDER BY total_def_rank
	`

	rows, err := r.db.Pool.Query(ctx, query, season, week)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.DefenseSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}

// Weeks returns the weeks of season that have snapshots, ascending
func (r *SnapshotRepository) Weeks(ctx context.Context, season int) ([]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT week FROM team_defense_snapshots WHERE season = $1 ORDER BY week
	`, season)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot weeks: %w", err)
	}
	defer rows.Close()

	var weeks []int
	for rows.Next() {
		var w int
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan week: %w", err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

func scanSnapshot(row pgx.Row) (*models.DefenseSnapshot, error) {
	var s models.DefenseSnapshot
	err := row.Scan(
		&s.ID, &s.TeamID, &s.Season, &s.Week,
		&s.PassYardsAllowed, &s.RushYardsAllowed, &s.TotalYardsAllowed, &s.PointsAllowed,
		&s.Wins, &s.Losses, &s.Ties,
		&s.PassDefRank, &s.RushDefRank, &s.TotalDefRank,
		&s.SyncRunID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
