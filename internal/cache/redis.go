package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/meetsmatch/matchengine/internal/telemetry"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	Instrumented bool          `koanf:"instrumented"`
	KeyPrefix    string        `koanf:"key_prefix"`
	LedgerTTL    time.Duration `koanf:"ledger_ttl"`
	WarmLimit    int           `koanf:"warm_limit"`
}

// DefaultRedisConfig returns the defaults used when no configuration is given
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		PoolSize:  10,
		KeyPrefix: "matchengine:recommended:",
		LedgerTTL: 24 * time.Hour,
		WarmLimit: 1000,
	}
}

// RedisClientInterface is the subset of the Redis client the ledger uses.
// The scripting methods let a redis.Script run against it.
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
	ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd
	Close() error
}

// NewRedisClient connects to Redis and verifies the connection. When
// cfg.Instrumented is set the client carries the OpenTelemetry tracing hook.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation":       "redis_connection",
		"service":         "cache",
		"addr":            cfg.Addr,
		"db":              cfg.DB,
		"pool_size":       cfg.PoolSize,
		"instrumentation": cfg.Instrumented,
	})
	logger.Info("Establishing Redis connection")

	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: 3,
	})
	if cfg.Instrumented {
		telemetry.InstrumentRedisClient(client)
		logger.Debug("OpenTelemetry tracing hook added to Redis client")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connected successfully")
	return client, nil
}
