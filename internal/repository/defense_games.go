package repository

import (
	"context"
	"fmt"
	"time"

	"nflqb/pipeline/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// DefenseGameRepository stores the per-game defense records the snapshots are folded from
type DefenseGameRepository struct {
	db *Database
}

// ReplaceSeason makes the stored records for season exactly records, in one transaction
func (r *DefenseGameRepository) ReplaceSeason(ctx context.Context, season int, records []models.DefenseGameRecord, syncRunID string) error {
	start := time.Now()

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM team_game_defense WHERE season = $1`, season); err != nil {
			return fmt.Errorf("failed to clear season records: %w", err)
		}

		batch := &pgx.Batch{}
		for _, rec := range records {
			if rec.Season != season {
				return fmt.Errorf("record for %s belongs to season %d, not %d", rec.TeamID, rec.Season, season)
			}
			batch.Queue(`
				INSERT INTO team_game_defense (
					team_id, season, week, opponent_id,
					pass_yards_allowed, rush_yards_allowed, total_yards_allowed,
					points_allowed, outcome, sync_run_id
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				rec.TeamID, rec.Season, rec.Week, rec.OpponentID,
				rec.PassYardsAllowed, rec.RushYardsAllowed, rec.TotalYardsAllowed,
				rec.PointsAllowed, string(rec.Outcome), syncRunID,
			)
		}
		_, err := execBatch(ctx, tx, batch)
		return err
	})

	observe("replace", "team_game_defense", start, err)
	if err != nil {
		return fmt.Errorf("failed to store defense records for season %d: %w", season, err)
	}

	log.Debug().
		Int("season", season).
		Int("records", len(records)).
		Msg("Defense game records stored")

	return nil
}

// ListBySeason returns a season's records in week then team order
func (r *DefenseGameRepository) ListBySeason(ctx context.Context, season int) ([]models.DefenseGameRecord, error) {
	query := `
		SELECT d.team_id, t.abbreviation, d.season, d.week, d.opponent_id,
		       d.pass_yards_allowed, d.rush_yards_allowed, d.total_yards_allowed,
		       d.points_allowed, d.outcome
		FROM team_game_defense d
		JOIN teams t ON t.id = d.team_id
		WHERE d.season = $1
		ORDER BY d.week, d.team_id
	`

	rows, err := r.db.Pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("failed to list defense records: %w", err)
	}
	defer rows.Close()

	var records []models.DefenseGameRecord
	for rows.Next() {
		var rec models.DefenseGameRecord
		var outcome string
		err := rows.Scan(
			&rec.TeamID, &rec.TeamAbbr, &rec.Season, &rec.Week, &rec.OpponentID,
			&rec.PassYardsAllowed, &rec.RushYardsAllowed, &rec.TotalYardsAllowed,
			&rec.PointsAllowed, &outcome,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan defense record: %w", err)
		}
		rec.Outcome = models.Outcome(outcome)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating defense records: %w", err)
	}

	return records, nil
}
