package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/meetsmatch/matchengine/internal/cache"
	"github.com/meetsmatch/matchengine/internal/database"
	"github.com/meetsmatch/matchengine/internal/matching"
	"github.com/meetsmatch/matchengine/internal/telemetry"
)

// ConfigPathEnvVar overrides the config file location
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: MATCHENGINE_DATABASE__HOST -> database.host
const EnvPrefix = "MATCHENGINE_"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/matchengine/config.yaml",
}

// Config is the full engine configuration
type Config struct {
	Database  database.Config     `koanf:"database"`
	Redis     cache.RedisConfig   `koanf:"redis"`
	Log       telemetry.LogConfig `koanf:"log"`
	Telemetry telemetry.Config    `koanf:"telemetry"`
	Engine    matching.Policy     `koanf:"engine"`
}

func defaultConfig() *Config {
	return &Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			DBName:          "meetsmatch",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis:     cache.DefaultRedisConfig(),
		Log:       *telemetry.DefaultLogConfig(),
		Telemetry: *telemetry.DefaultConfig(),
		Engine:    matching.DefaultPolicy(),
	}
}

// Load reads configuration from defaults, the first config file found and
// MATCHENGINE_ environment variables, in increasing priority
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc maps MATCHENGINE_ENGINE__MATCH_THRESHOLD to
// engine.match_threshold
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.name is required")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is enabled")
		}
		if c.Redis.LedgerTTL <= 0 {
			return fmt.Errorf("redis.ledger_ttl must be positive, got %s", c.Redis.LedgerTTL)
		}
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is enabled")
	}
	return nil
}
