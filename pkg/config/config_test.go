package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Index.MergeFactor)
	assert.Equal(t, 10000, cfg.Index.MaxFieldLength)
	assert.Equal(t, "contents", cfg.Search.DefaultField)
	assert.Equal(t, 200, cfg.Search.HitsCacheSize)
	assert.Equal(t, 3, cfg.Ingest.RetryAttempts)
	assert.Zero(t, cfg.Server.RateLimit)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  dataDir: /var/lib/segments
  directory: mmap
  mergeFactor: 4
  flushInterval: 1s
search:
  defaultLimit: 20
`), 0o644))
	t.Setenv("SP_INDEX_ANALYZER", "simple")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/segments", cfg.Index.DataDir)
	assert.Equal(t, "mmap", cfg.Index.Directory)
	assert.Equal(t, "simple", cfg.Index.Analyzer)
	assert.Equal(t, 4, cfg.Index.MergeFactor)
	assert.Equal(t, time.Second, cfg.Index.FlushInterval)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 1000, cfg.Search.MaxResults)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"directory", func(c *Config) { c.Index.Directory = "tape" }},
		{"analyzer", func(c *Config) { c.Index.Analyzer = "klingon" }},
		{"merge factor", func(c *Config) { c.Index.MergeFactor = 1 }},
		{"field length", func(c *Config) { c.Index.MaxFieldLength = 0 }},
		{"limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = 5000 }},
		{"operator", func(c *Config) { c.Search.DefaultOperator = "XOR" }},
		{"rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fs", cfg.Index.Directory)
	assert.Equal(t, 5*time.Second, cfg.Ingest.PublishTimeout)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
}
