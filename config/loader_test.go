package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Extraction.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Extraction.Model)
	assert.Equal(t, 10*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 8, cfg.Extraction.MaxConcurrent)
	assert.Equal(t, 0.1, cfg.Extraction.Temperature)
	assert.Equal(t, 512, cfg.Extraction.MaxTokens)

	assert.True(t, cfg.Cache.EnableLocal)
	assert.Equal(t, 1000, cfg.Cache.LocalCapacity)
	assert.Equal(t, time.Hour, cfg.Cache.LocalTTL)
	assert.False(t, cfg.Cache.EnableRedis)
	assert.Equal(t, 24*time.Hour, cfg.Cache.RedisTTL)
	assert.Equal(t, "tradecrew:extract:", cfg.Cache.KeyPrefix)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 10, cfg.Redis.PoolSize)

	assert.Equal(t, 3, cfg.Deliberation.MaxRounds)
	assert.Equal(t, 66.0, cfg.Deliberation.ConsensusThreshold)
	assert.Equal(t, 1.0, cfg.Deliberation.DefaultWeight)
	assert.True(t, cfg.Deliberation.EnableEarlyConvergence)
	assert.Equal(t, 30*time.Second, cfg.Deliberation.MediationTimeout)
	assert.Equal(t, 256, cfg.Deliberation.EventBuffer)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoaderLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "gpt-4o-mini", cfg.Extraction.Model)
	assert.Equal(t, 3, cfg.Deliberation.MaxRounds)
}

func TestLoaderLoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
extraction:
  model: "gpt-4.1-mini"
  timeout: 5s
  max_concurrent: 4
  temperature: 0.2

cache:
  local_capacity: 500
  local_ttl: 30m
  enable_redis: true
  redis_ttl: 12h

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

deliberation:
  max_rounds: 5
  consensus_threshold: 75
  default_weight: 0.8

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1-mini", cfg.Extraction.Model)
	assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 4, cfg.Extraction.MaxConcurrent)
	assert.Equal(t, 0.2, cfg.Extraction.Temperature)

	assert.Equal(t, 500, cfg.Cache.LocalCapacity)
	assert.Equal(t, 30*time.Minute, cfg.Cache.LocalTTL)
	assert.True(t, cfg.Cache.EnableRedis)
	assert.Equal(t, 12*time.Hour, cfg.Cache.RedisTTL)
	assert.True(t, cfg.Cache.EnableLocal, "unmentioned fields keep their defaults")

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, 5, cfg.Deliberation.MaxRounds)
	assert.Equal(t, 75.0, cfg.Deliberation.ConsensusThreshold)
	assert.Equal(t, 0.8, cfg.Deliberation.DefaultWeight)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoaderLoadFromEnv(t *testing.T) {
	t.Setenv("TRADECREW_EXTRACTION_MODEL", "gpt-4o")
	t.Setenv("TRADECREW_EXTRACTION_TIMEOUT", "45s")
	t.Setenv("TRADECREW_EXTRACTION_ENABLED", "false")
	t.Setenv("TRADECREW_CACHE_LOCAL_CAPACITY", "250")
	t.Setenv("TRADECREW_REDIS_ADDR", "env-redis:6379")
	t.Setenv("TRADECREW_DELIBERATION_MAX_ROUNDS", "4")
	t.Setenv("TRADECREW_DELIBERATION_CONSENSUS_THRESHOLD", "72.5")
	t.Setenv("TRADECREW_LOG_LEVEL", "warn")
	t.Setenv("TRADECREW_LOG_OUTPUT_PATHS", "stdout, stderr")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Extraction.Model)
	assert.Equal(t, 45*time.Second, cfg.Extraction.Timeout)
	assert.False(t, cfg.Extraction.Enabled)
	assert.Equal(t, 250, cfg.Cache.LocalCapacity)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 4, cfg.Deliberation.MaxRounds)
	assert.Equal(t, 72.5, cfg.Deliberation.ConsensusThreshold)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
}

func TestLoaderEnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
extraction:
  model: "yaml-model"
deliberation:
  max_rounds: 5
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("TRADECREW_EXTRACTION_MODEL", "env-model")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.Extraction.Model, "env wins over YAML")
	assert.Equal(t, 5, cfg.Deliberation.MaxRounds, "YAML values without env overrides stand")
}

func TestLoaderCustomEnvPrefix(t *testing.T) {
	t.Setenv("MYDESK_EXTRACTION_MODEL", "desk-model")

	cfg, err := NewLoader().WithEnvPrefix("MYDESK").Load()
	require.NoError(t, err)
	assert.Equal(t, "desk-model", cfg.Extraction.Model)
}

func TestLoaderValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")

	cfg, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Extraction.Model)
}

func TestLoaderRejectsBadYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("extraction: [not a mapping"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero threshold",
			mutate:  func(c *Config) { c.Deliberation.ConsensusThreshold = 0 },
			wantErr: "consensus_threshold",
		},
		{
			name:    "threshold above 100",
			mutate:  func(c *Config) { c.Deliberation.ConsensusThreshold = 101 },
			wantErr: "consensus_threshold",
		},
		{
			name:    "zero rounds",
			mutate:  func(c *Config) { c.Deliberation.MaxRounds = 0 },
			wantErr: "max_rounds",
		},
		{
			name:    "zero default weight",
			mutate:  func(c *Config) { c.Deliberation.DefaultWeight = 0 },
			wantErr: "default_weight",
		},
		{
			name:    "zero mediation timeout",
			mutate:  func(c *Config) { c.Deliberation.MediationTimeout = 0 },
			wantErr: "mediation_timeout",
		},
		{
			name:    "zero local capacity with local tier on",
			mutate:  func(c *Config) { c.Cache.LocalCapacity = 0 },
			wantErr: "local_capacity",
		},
		{
			name: "zero local capacity with local tier off",
			mutate: func(c *Config) {
				c.Cache.EnableLocal = false
				c.Cache.LocalCapacity = 0
			},
		},
		{
			name:    "zero extraction timeout",
			mutate:  func(c *Config) { c.Extraction.Timeout = 0 },
			wantErr: "extraction timeout",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Extraction.Temperature = 2.5 },
			wantErr: "temperature",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Extraction.MaxConcurrent = -1 },
			wantErr: "max_concurrent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoadPanicsOnBadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("cache: [broken"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
