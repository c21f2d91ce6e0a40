package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"nflqb/pipeline/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

// Database holds the database connection pool and provides access to repositories
type Database struct {
	Pool *pgxpool.Pool

	// Repositories
	Teams        *TeamRepository
	DefenseGames *DefenseGameRepository
	Snapshots    *SnapshotRepository
	Quarterbacks *QuarterbackRepository
	Performances *PerformanceRepository
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDatabase creates a new database connection pool and initializes repositories
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	// Build connection string
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	// Configure connection pool
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// One writer per season plus API readers
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Successfully connected to database")

	return newDatabase(pool), nil
}

func newDatabase(pool *pgxpool.Pool) *Database {
	db := &Database{
		Pool: pool,
	}

	db.Teams = &TeamRepository{db: db}
	db.DefenseGames = &DefenseGameRepository{db: db}
	db.Snapshots = &SnapshotRepository{db: db}
	db.Quarterbacks = &QuarterbackRepository{db: db}
	db.Performances = &PerformanceRepository{db: db}

	return db
}

// Migrate creates the tables the pipeline reads and writes. It is safe to run repeatedly.
func (db *Database) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Msg("Database schema applied")
	return nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns database pool statistics
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	metrics.UpdateDBConnectionStats(stat.AcquiredConns(), stat.IdleConns())
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}

// inTx runs fn in a transaction, committing only if fn succeeds
func (db *Database) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// execBatch sends a batch and returns the total rows affected
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) (int64, error) {
	n := batch.Len()
	br := tx.SendBatch(ctx, batch)

	var affected int64
	for i := 0; i < n; i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return affected, fmt.Errorf("batch statement %d: %w", i, err)
		}
		affected += tag.RowsAffected()
	}

	if err := br.Close(); err != nil {
		return affected, fmt.Errorf("failed to close batch: %w", err)
	}
	return affected, nil
}

// observe records a query's duration and outcome
func observe(operation, table string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDBQuery(operation, table, status, time.Since(start).Seconds())
}

// ResetSeason is the full reset for one season: it deletes the season's
// performances, snapshots and per-game defense records in one transaction
// and returns the snapshot weeks that existed. The sync never calls this.
func (db *Database) ResetSeason(ctx context.Context, season int) ([]int, error) {
	weeks, err := db.Snapshots.Weeks(ctx, season)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = db.inTx(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"qb_performances", "team_defense_snapshots", "team_game_defense"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE season = $1", season); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
	observe("reset_season", "team_defense_snapshots", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to reset season %d: %w", season, err)
	}

	log.Warn().
		Int("season", season).
		Ints("weeks", weeks).
		Msg("Season reset")

	return weeks, nil
}
