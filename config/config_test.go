package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/coursecatalog/framework/core"
	"github.com/akriventsev/coursecatalog/framework/projection"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "course-catalog", cfg.Service.Name)
	assert.Equal(t, "inmemory", cfg.Bus.Type)
	assert.Equal(t, []string{"catalog.>"}, cfg.Bus.Subjects)
	assert.Equal(t, "inmemory", cfg.Store.Type)
	assert.Equal(t, projection.ModeIndependent, cfg.DispatcherConfig().Mode)
	assert.Equal(t, 3, cfg.DispatcherConfig().ConflictRetries)
	assert.False(t, cfg.Parking.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Parking.TTL)
	assert.False(t, cfg.TracingConfig().Enabled())
	assert.Equal(t, projection.DefaultPoolConfig(), cfg.PoolConfig())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bus:
  type: kafka
kafka:
  brokers: ["k1:9092", "k2:9092"]
dispatcher:
  mode: atomic
  workers: 4
  conflict_retries: 5
parking:
  enabled: true
  ttl: 1m
`), 0o600))

	t.Setenv("CATALOG_DISPATCHER_WORKERS", "16")
	t.Setenv("CATALOG_STORAGE_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "kafka", cfg.Bus.Type)
	assert.Equal(t, 16, cfg.Dispatcher.Workers)
	assert.Equal(t, projection.ModeAtomic, cfg.DispatcherConfig().Mode)
	assert.True(t, cfg.DispatcherConfig().Parking.Enabled)
	assert.Equal(t, 5, cfg.DispatcherConfig().ConflictRetries)
	assert.Equal(t, time.Minute, cfg.Parking.TTL)
	assert.Equal(t, "https://cdn.example.com", cfg.Storage.PublicBaseURL)

	bus := cfg.BusFactoryConfig(nil, nil)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, bus.Kafka.Brokers)
	assert.Equal(t, "catalog-projector", bus.Kafka.GroupID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bus type", func(c *Config) { c.Bus.Type = "amqp" }},
		{"store type", func(c *Config) { c.Store.Type = "sqlite" }},
		{"mode", func(c *Config) { c.Dispatcher.Mode = "eventual" }},
		{"workers", func(c *Config) { c.Dispatcher.Workers = 0 }},
		{"conflict retries", func(c *Config) { c.Dispatcher.ConflictRetries = -1 }},
		{"subjects", func(c *Config) { c.Bus.Subjects = nil }},
		{"parking bounds", func(c *Config) { c.Parking.Enabled = true; c.Parking.MaxTotal = 0 }},
	}

	t.Chdir(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, core.HasCode(err, core.ErrInvalidConfig))
		})
	}
}
