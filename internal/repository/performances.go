package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nflqb/pipeline/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const performanceColumns = `
	id, qb_id, season, week, opponent_id,
	pass_attempts, completions, pass_yards, pass_tds, interceptions,
	rush_yards, rush_tds, sacks, fumbles,
	opp_pass_def_rank, opp_total_def_rank, opp_win_pct,
	opp_context_season, opp_context_week, context_source, context_unavailable,
	sync_run_id, created_at, updated_at
`

// Rows whose stats and context are unchanged are left untouched, so a
// re-run with identical input rewrites nothing.
const upsertPerformanceSQL = `
	INSERT INTO qb_performances (
		id, qb_id, season, week, opponent_id,
		pass_attempts, completions, pass_yards, pass_tds, interceptions,
		rush_yards, rush_tds, sacks, fumbles,
		opp_pass_def_rank, opp_total_def_rank, opp_win_pct,
		opp_context_season, opp_context_week, context_source, context_unavailable,
		sync_run_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	ON CONFLICT (qb_id, season, week) DO UPDATE SET
		opponent_id = EXCLUDED.opponent_id,
		pass_attempts = EXCLUDED.pass_attempts,
		completions = EXCLUDED.completions,
		pass_yards = EXCLUDED.pass_yards,
		pass_tds = EXCLUDED.pass_tds,
		interceptions = EXCLUDED.interceptions,
		rush_yards = EXCLUDED.rush_yards,
		rush_tds = EXCLUDED.rush_tds,
		sacks = EXCLUDED.sacks,
		fumbles = EXCLUDED.fumbles,
		opp_pass_def_rank = EXCLUDED.opp_pass_def_rank,
		opp_total_def_rank = EXCLUDED.opp_total_def_rank,
		opp_win_pct = EXCLUDED.opp_win_pct,
		opp_context_season = EXCLUDED.opp_context_season,
		opp_context_week = EXCLUDED.opp_context_week,
		context_source = EXCLUDED.context_source,
		context_unavailable = EXCLUDED.context_unavailable,
		sync_run_id = EXCLUDED.sync_run_id,
		updated_at = NOW()
	WHERE (
		qb_performances.opponent_id,
		qb_performances.pass_attempts, qb_performances.completions, qb_performances.pass_yards,
		qb_performances.pass_tds, qb_performances.interceptions,
		qb_performances.rush_yards, qb_performances.rush_tds, qb_performances.sacks, qb_performances.fumbles,
		qb_performances.opp_pass_def_rank, qb_performances.opp_total_def_rank, qb_performances.opp_win_pct,
		qb_performances.opp_context_season, qb_performances.opp_context_week,
		qb_performances.context_source, qb_performances.context_unavailable
	) IS DISTINCT FROM (
		EXCLUDED.opponent_id,
		EXCLUDED.pass_attempts, EXCLUDED.completions, EXCLUDED.pass_yards,
		EXCLUDED.pass_tds, EXCLUDED.interceptions,
		EXCLUDED.rush_yards, EXCLUDED.rush_tds, EXCLUDED.sacks, EXCLUDED.fumbles,
		EXCLUDED.opp_pass_def_rank, EXCLUDED.opp_total_def_rank, EXCLUDED.opp_win_pct,
		EXCLUDED.opp_context_season, EXCLUDED.opp_context_week,
		EXCLUDED.context_source, EXCLUDED.context_unavailable
	)
`

// PerformanceRepository handles quarterback performance rows
type PerformanceRepository struct {
	db *Database
}

// PerformanceFilter narrows a performance listing. Zero values match everything.
type PerformanceFilter struct {
	QBID       string
	Season     int
	OpponentID string
}

// UpsertMany writes performances keyed by (qb_id, season, week) in one
// transaction and returns how many rows were inserted or changed
func (r *PerformanceRepository) UpsertMany(ctx context.Context, perfs []*models.QBPerformance) (int64, error) {
	if len(perfs) == 0 {
		return 0, nil
	}

	start := time.Now()
	var changed int64
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range perfs {
			id := p.ID
			if id == "" {
				id = uuid.NewString()
			}
			batch.Queue(upsertPerformanceSQL,
				id, p.QBID, p.Season, p.Week, p.OpponentID,
				p.PassAttempts, p.Completions, p.PassYards, p.PassTDs, p.Interceptions,
				p.RushYards, p.RushTDs, p.Sacks, p.Fumbles,
				p.Opponent.PassDefRank, p.Opponent.TotalDefRank, p.Opponent.WinPct,
				p.Opponent.SourceSeason, p.Opponent.SourceWeek, string(p.Opponent.Source), p.ContextUnavailable,
				p.SyncRunID,
			)
		}
		var err error
		changed, err = execBatch(ctx, tx, batch)
		return err
	})

	observe("upsert", "qb_performances", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert performances: %w", err)
	}

	log.Debug().
		Int("rows", len(perfs)).
		Int64("changed", changed).
		Msg("Performances upserted")

	return changed, nil
}

// List returns performances matching filter in chronological order
func (r *PerformanceRepository) List(ctx context.Context, filter PerformanceFilter) ([]*models.QBPerformance, error) {
	var conds []string
	var args []any

	if filter.QBID != "" {
		args = append(args, filter.QBID)
		conds = append(conds, fmt.Sprintf("qb_id = $%d", len(args)))
	}
	if filter.Season != 0 {
		args = append(args, filter.Season)
		conds = append(conds, fmt.Sprintf("season = $%d", len(args)))
	}
	if filter.OpponentID != "" {
		args = append(args, filter.OpponentID)
		conds = append(conds, fmt.Sprintf("opponent_id = $%d", len(args)))
	}

	query := `SELECT ` + performanceColumns + ` FROM qb_performances`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY season, week, qb_id`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list performances: %w", err)
	}
	defer rows.Close()

	var perfs []*models.QBPerformance
	for rows.Next() {
		var p models.QBPerformance
		var source string
		err := rows.Scan(
			&p.ID, &p.QBID, &p.Season, &p.Week, &p.OpponentID,
			&p.PassAttempts, &p.Completions, &p.PassYards, &p.PassTDs, &p.Interceptions,
			&p.RushYards, &p.RushTDs, &p.Sacks, &p.Fumbles,
			&p.Opponent.PassDefRank, &p.Opponent.TotalDefRank, &p.Opponent.WinPct,
			&p.Opponent.SourceSeason, &p.Opponent.SourceWeek, &source, &p.ContextUnavailable,
			&p.SyncRunID, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance: %w", err)
		}
		p.Opponent.Source = models.ContextSource(source)
		perfs = append(perfs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performances: %w", err)
	}

	return perfs, nil
}
