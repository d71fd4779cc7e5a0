package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-social/types"
)

func TestDefaultsAreValid(t *testing.T) {
	loader := NewLoader()
	config := loader.Defaults()

	require.NoError(t, loader.Validate(config))
	assert.Equal(t, 2*time.Minute, config.Cache.TTL.Count)
	assert.Equal(t, 30*time.Minute, config.Cache.TTL.Avatar)
	assert.Equal(t, 24*time.Hour, config.Monitor.MetricsWindow)
	assert.Equal(t, 1024, config.Monitor.EntrySizeBytes)
	assert.Equal(t, 70.0, config.Monitor.Thresholds.MinHitRate)
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
name: social-test
version: 1.2.3
cache:
  check_period: 10s
  ttl:
    count: 90s
monitor:
  stats_interval: 1m
logger:
  level: debug
  config:
    format: json
`)

	config, err := NewLoader().Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "social-test", config.Name)
	assert.Equal(t, 10*time.Second, config.Cache.CheckPeriod)
	assert.Equal(t, 90*time.Second, config.Cache.TTL.Count)
	assert.Equal(t, 10*time.Minute, config.Cache.TTL.User)
	assert.Equal(t, time.Minute, config.Monitor.StatsInterval)
	assert.Equal(t, 60*time.Minute, config.Monitor.CleanupInterval)
	assert.Equal(t, "debug", config.Logger.Level)
	assert.NotNil(t, config.Logger.Config)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"zero ttl":           "cache:\n  ttl:\n    count: 0s\n",
		"bad port":           "server:\n  http:\n    port: 70000\n",
		"metrics needs path": "metrics:\n  enabled: true\n  path: \"\"\n",
		"file db needs path": "database:\n  in_memory: false\n",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLoader().Parse([]byte(data))
			assert.ErrorIs(t, err, types.ErrConfigValidateFailed)
		})
	}

	_, err := NewLoader().Parse([]byte("cache: [1, 2"))
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)
}

func TestLoadFromFile(t *testing.T) {
	loader := NewLoader()

	_, err := loader.LoadFromFile(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrConfigNotFound)

	_, err = loader.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, types.ErrConfigInvalidPath)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: from-file\n"), 0o600))

	manager, err := NewConfigurationManager(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", manager.GetConfig().Name)

	require.NoError(t, manager.Start())
	assert.True(t, manager.IsRunning())
	require.NoError(t, manager.Stop())
}

func TestStaticManagerValidates(t *testing.T) {
	config := NewLoader().Defaults()
	config.Cron.Timezone = ""

	_, err := NewStaticManager(config)
	assert.ErrorIs(t, err, types.ErrConfigValidateFailed)
}
