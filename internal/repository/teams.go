package repository

import (
	"context"
	"fmt"
	"time"

	"nflqb/pipeline/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// TeamRepository handles team database operations
type TeamRepository struct {
	db *Database
}

// Upsert inserts or updates a team. Only the name and abbreviation change on conflict.
func (r *TeamRepository) Upsert(ctx context.Context, team *models.Team) error {
	start := time.Now()

	query := `
		INSERT INTO teams (id, name, abbreviation)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			abbreviation = EXCLUDED.abbreviation,
			updated_at = NOW()
		WHERE (teams.name, teams.abbreviation) IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.abbreviation)
	`

	_, err := r.db.Pool.Exec(ctx, query, team.ID, team.Name, team.Abbreviation)
	observe("upsert", "teams", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert team: %w", err)
	}

	log.Debug().
		Str("team_id", team.ID).
		Str("name", team.Name).
		Msg("Team upserted")

	return nil
}

// UpsertMany upserts every team in one transaction
func (r *TeamRepository) UpsertMany(ctx context.Context, teams []models.Team) error {
	start := time.Now()
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, t := range teams {
			batch.Queue(`
				INSERT INTO teams (id, name, abbreviation)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					abbreviation = EXCLUDED.abbreviation,
					updated_at = NOW()
				WHERE (teams.name, teams.abbreviation) IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.abbreviation)
			`, t.ID, t.Name, t.Abbreviation)
		}
		_, err := execBatch(ctx, tx, batch)
		return err
	})
	observe("upsert", "teams", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert teams: %w", err)
	}
	return nil
}

// GetByID retrieves a team by ID
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	query := `
		SELECT id, name, abbreviation, created_at, updated_at
		FROM teams
		WHERE id = $1
	`

	var team models.Team
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&team.ID, &team.Name, &team.Abbreviation, &team.CreatedAt, &team.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("team not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &team, nil
}

// List retrieves all teams
func (r *TeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	query := `
		SELECT id, name, abbreviation, created_at, updated_at
		FROM teams
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.Abbreviation, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}
