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

// QuarterbackRepository handles quarterback identity rows
type QuarterbackRepository struct {
	db *Database
}

// Upsert inserts or updates a quarterback by external player id and sets qb.ID
// to the stored id. The notable flag and team of an existing row are only
// overwritten when updateNotable is set, i.e. from the most recent season.
func (r *QuarterbackRepository) Upsert(ctx context.Context, qb *models.Quarterback, updateNotable bool) error {
	query := `
		INSERT INTO quarterbacks (id, gsis_id, name, headshot_url, team_id, is_notable)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (gsis_id) DO UPDATE SET
			name = EXCLUDED.name,
			headshot_url = COALESCE(EXCLUDED.headshot_url, quarterbacks.headshot_url),
			team_id = CASE WHEN $7
				THEN COALESCE(EXCLUDED.team_id, quarterbacks.team_id)
				ELSE COALESCE(quarterbacks.team_id, EXCLUDED.team_id) END,
			is_notable = CASE WHEN $7 THEN EXCLUDED.is_notable ELSE quarterbacks.is_notable END,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	start := time.Now()
	err := r.db.Pool.QueryRow(ctx, query,
		uuid.NewString(), qb.GSISID, qb.Name, qb.HeadshotURL, qb.TeamID, qb.IsNotable, updateNotable,
	).Scan(&qb.ID, &qb.CreatedAt, &qb.UpdatedAt)
	observe("upsert", "quarterbacks", start, err)

	if err != nil {
		return fmt.Errorf("failed to upsert quarterback %s: %w", qb.GSISID, err)
	}

	log.Debug().
		Str("qb_id", qb.ID).
		Str("gsis_id", qb.GSISID).
		Str("name", qb.Name).
		Bool("notable", qb.IsNotable).
		Msg("Quarterback upserted")

	return nil
}

// GetByID retrieves a quarterback by ID
func (r *QuarterbackRepository) GetByID(ctx context.Context, id string) (*models.Quarterback, error) {
	query := `
		SELECT id, gsis_id, name, headshot_url, team_id, is_notable, created_at, updated_at
		FROM quarterbacks
		WHERE id = $1
	`

	var qb models.Quarterback
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&qb.ID, &qb.GSISID, &qb.Name, &qb.HeadshotURL, &qb.TeamID, &qb.IsNotable,
		&qb.CreatedAt, &qb.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quarterback: %w", err)
	}

	return &qb, nil
}

// List retrieves quarterbacks by name, optionally only notable ones
func (r *QuarterbackRepository) List(ctx context.Context, notableOnly bool) ([]*models.Quarterback, error) {
	query := `
		SELECT id, gsis_id, name, headshot_url, team_id, is_notable, created_at, updated_at
		FROM quarterbacks
		WHERE is_notable OR NOT $1
		ORDER BY name
	`

	rows, err := r.db.Pool.Query(ctx, query, notableOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarterbacks: %w", err)
	}
	defer rows.Close()

	var qbs []*models.Quarterback
	for rows.Next() {
		var qb models.Quarterback
		err := rows.Scan(
			&qb.ID, &qb.GSISID, &qb.Name, &qb.HeadshotURL, &qb.TeamID, &qb.IsNotable,
			&qb.CreatedAt, &qb.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quarterback: %w", err)
		}
		qbs = append(qbs, &qb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quarterbacks: %w", err)
	}

	return qbs, nil
}
