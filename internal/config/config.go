package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// ESPN API
	ESPNBaseURL        string        `envconfig:"ESPN_BASE_URL" default:"https://site.api.espn.com/apis/site/v2/sports/football/nfl"`
	ESPNTimeout        time.Duration `envconfig:"ESPN_TIMEOUT" default:"30s"`
	ESPNMaxConcurrency int           `envconfig:"ESPN_MAX_CONCURRENCY" default:"8"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"nflqb"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"nflqb"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Sync
	SyncSeasons            []int `envconfig:"SYNC_SEASONS" default:"2025,2024,2023"`
	SyncFirstWeek          int   `envconfig:"SYNC_FIRST_WEEK" default:"1"`
	SyncLastWeek           int   `envconfig:"SYNC_LAST_WEEK" default:"18"`
	SyncParallelSeasons    int   `envconfig:"SYNC_PARALLEL_SEASONS" default:"3"`
	RequireOpponentContext bool  `envconfig:"REQUIRE_OPPONENT_CONTEXT" default:"false"`
	NotableMinAttempts     int   `envconfig:"NOTABLE_MIN_ATTEMPTS" default:"50"`

	// Scheduler
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	SyncCron           string `envconfig:"SYNC_CRON" default:"0 6 * * 2,5"` // Tuesday and Friday mornings
	InitialSyncEnabled bool   `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`

	// API
	APIPort int `envconfig:"API_PORT" default:"8080"`

	// Caching TTL (in seconds)
	CacheTTLLeagueView int `envconfig:"CACHE_TTL_LEAGUE_VIEW" default:"600"` // 10 minutes

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if len(c.SyncSeasons) == 0 {
		return fmt.Errorf("SYNC_SEASONS must list at least one season")
	}

	if c.SyncFirstWeek < 1 {
		return fmt.Errorf("SYNC_FIRST_WEEK must be at least 1")
	}

	if c.SyncLastWeek < c.SyncFirstWeek {
		return fmt.Errorf("SYNC_LAST_WEEK (%d) must not be before SYNC_FIRST_WEEK (%d)", c.SyncLastWeek, c.SyncFirstWeek)
	}

	if c.SyncParallelSeasons < 1 {
		return fmt.Errorf("SYNC_PARALLEL_SEASONS must be at least 1")
	}

	if c.ESPNMaxConcurrency < 1 {
		return fmt.Errorf("ESPN_MAX_CONCURRENCY must be at least 1")
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// CacheTTL returns the league view cache lifetime
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLLeagueView) * time.Second
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
