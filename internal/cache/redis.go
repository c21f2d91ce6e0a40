package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nflqb/pipeline/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "nflqb"

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RedisCache caches read views as JSON
type RedisCache struct {
	client redis.Cmdable
	close  func() error
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Int("db", cfg.DB).
		Msg("Successfully connected to redis")

	return &RedisCache{client: client, close: client.Close}, nil
}

// NewWithClient wraps an existing client
func NewWithClient(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the underlying connection
func (c *RedisCache) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// LeagueWeekKey is the key of the full-league defense view for a week
func LeagueWeekKey(season, week int) string {
	return fmt.Sprintf("%s:defense:%d:%d", keyPrefix, season, week)
}

// GetJSON decodes the cached value at key into dest. found is false on a miss.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) (found bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("get", time.Since(start).Seconds()) }()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheMiss()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	metrics.RecordCacheHit()
	return true, nil
}

// SetJSON stores value at key as JSON
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("set", time.Since(start).Seconds()) }()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// InvalidateWeek drops the cached league view of a week
func (c *RedisCache) InvalidateWeek(ctx context.Context, season, week int) error {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("del", time.Since(start).Seconds()) }()

	if err := c.client.Del(ctx, LeagueWeekKey(season, week)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate season %d week %d: %w", season, week, err)
	}

	log.Debug().
		Int("season", season).
		Int("week", week).
		Msg("League view invalidated")
	return nil
}
