package pipeline

import (
	"context"

	"nflqb/pipeline/internal/ingest"
	"nflqb/pipeline/internal/models"
	"nflqb/pipeline/internal/repository"
)

// Feed delivers one season of completed games
type Feed interface {
	FetchSeason(ctx context.Context, season int) (*ingest.SeasonData, error)
}

// Store is the persistence the sync writes to and joins against
type Store interface {
	UpsertTeams(ctx context.Context, teams []models.Team) error
	ReplaceDefenseRecords(ctx context.Context, season int, records []models.DefenseGameRecord, syncRunID string) error
	UpsertSnapshotWeek(ctx context.Context, season, week int, snaps []models.DefenseSnapshot) error
	LatestSnapshotBefore(ctx context.Context, teamID string, season, beforeWeek int) (*models.DefenseSnapshot, error)
	UpsertQuarterback(ctx context.Context, qb *models.Quarterback, updateNotable bool) error
	UpsertPerformances(ctx context.Context, perfs []*models.QBPerformance) (int64, error)
}

// Invalidator drops cached read views of a week after it is rewritten
type Invalidator interface {
	InvalidateWeek(ctx context.Context, season, week int) error
}

// DBStore is the PostgreSQL-backed Store
type DBStore struct {
	db *repository.Database
}

// NewDBStore wraps the repositories of db
func NewDBStore(db *repository.Database) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) UpsertTeams(ctx context.Context, teams []models.Team) error {
	return s.db.Teams.UpsertMany(ctx, teams)
}

func (s *DBStore) ReplaceDefenseRecords(ctx context.Context, season int, records []models.DefenseGameRecord, syncRunID string) error {
	return s.db.DefenseGames.ReplaceSeason(ctx, season, records, syncRunID)
}

func (s *DBStore) UpsertSnapshotWeek(ctx context.Context, season, week int, snaps []models.DefenseSnapshot) error {
	return s.db.Snapshots.UpsertWeek(ctx, season, week, snaps)
}

func (s *DBStore) LatestSnapshotBefore(ctx context.Context, teamID string, season, beforeWeek int) (*models.DefenseSnapshot, error) {
	return s.db.Snapshots.LatestSnapshotBefore(ctx, teamID, season, beforeWeek)
}

func (s *DBStore) UpsertQuarterback(ctx context.Context, qb *models.Quarterback, updateNotable bool) error {
	return s.db.Quarterbacks.Upsert(ctx, qb, updateNotable)
}

func (s *DBStore) UpsertPerformances(ctx context.Context, perfs []*models.QBPerformance) (int64, error) {
	return s.db.Performances.UpsertMany(ctx, perfs)
}
