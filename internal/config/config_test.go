package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meetsmatch/matchengine/internal/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, matching.DefaultPolicy(), cfg.Engine)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Redis.LedgerTTL)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  name: matrimony
redis:
  enabled: true
  addr: cache.internal:6379
  ledger_ttl: 2h
log:
  level: debug
  format: text
engine:
  match_threshold: 0.65
  recommendation_exclusion_window: 720h
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "matrimony", cfg.Database.DBName)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Redis.LedgerTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.65, cfg.Engine.MatchThreshold)
	assert.Equal(t, matching.StrongMatchThreshold, cfg.Engine.StrongMatchThreshold)
	assert.Equal(t, 30*24*time.Hour, cfg.Engine.RecommendationExclusionWindow)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
engine:
  discovery_threshold: 0.4
`)
	t.Setenv("MATCHENGINE_DATABASE__HOST", "db.override")
	t.Setenv("MATCHENGINE_ENGINE__DISCOVERY_THRESHOLD", "0.25")
	t.Setenv("MATCHENGINE_ENGINE__SIMILAR_USER_FANOUT", "8")
	t.Setenv("MATCHENGINE_REDIS__LEDGER_TTL", "90m")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, 0.25, cfg.Engine.DiscoveryThreshold)
	assert.Equal(t, 8, cfg.Engine.SimilarUserFanout)
	assert.Equal(t, 90*time.Minute, cfg.Redis.LedgerTTL)
}

func TestLoad_UsesConfigPath(t *testing.T) {
	path := writeConfig(t, "database:\n  name: from_config_path\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from_config_path", cfg.Database.DBName)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"threshold above one", func(c *Config) { c.Engine.MatchThreshold = 1.2 }, "engine: match_threshold"},
		{"negative window", func(c *Config) { c.Engine.RecommendationExclusionWindow = -time.Second }, "recommendation_exclusion_window"},
		{"blend weights", func(c *Config) { c.Engine.CollaborativeBlendWeight = 0.5 }, "blend weights"},
		{"missing host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing db name", func(c *Config) { c.Database.DBName = "" }, "database.name"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"redis without ttl", func(c *Config) { c.Redis.Enabled = true; c.Redis.LedgerTTL = 0 }, "redis.ledger_ttl"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"telemetry endpoint", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.OTLPEndpoint = "" }, "otlp_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "database.host", envTransformFunc("MATCHENGINE_DATABASE__HOST"))
	assert.Equal(t, "engine.match_threshold", envTransformFunc("MATCHENGINE_ENGINE__MATCH_THRESHOLD"))
	assert.Equal(t, "redis.ledger_ttl", envTransformFunc("MATCHENGINE_REDIS__LEDGER_TTL"))
}
