package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-social/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.Errorf(types.ErrConfigInvalidPath, "file not found: %s", configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.Parse(data)
}

// Parse decodes YAML over Defaults and validates the result.
func (l *Loader) Parse(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	if err := l.Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *Loader) Validate(config *types.ServiceConfig) error {
	if config == nil {
		return types.ErrConfigIsNil
	}

	if err := l.validator.Struct(config); err != nil {
		return types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:          "sai-social",
		Version:       "dev",
		PublicBaseURL: "http://localhost:8080",
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{
				Host:            "localhost",
				Port:            8080,
				ReadTimeout:     30,
				WriteTimeout:    30,
				IdleTimeout:     120,
				ShutdownTimeout: 10,
				MaxBodySize:     10 * 1024 * 1024,
			},
			CORS: &types.CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-User-ID", "X-Request-ID"},
				MaxAge:         86400,
			},
		},
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		Cache: &types.CacheConfig{
			CheckPeriod: 30 * time.Second,
			TTL: types.CacheTTLConfig{
				User:          10 * time.Minute,
				Post:          5 * time.Minute,
				Count:         2 * time.Minute,
				Avatar:        30 * time.Minute,
				FrequentPosts: 15 * time.Minute,
				Profile:       20 * time.Minute,
				PostMetadata:  5 * time.Minute,
			},
		},
		Monitor: &types.MonitorConfig{
			Enabled:         true,
			StatsInterval:   5 * time.Minute,
			CleanupInterval: 60 * time.Minute,
			MetricsWindow:   24 * time.Hour,
			EntrySizeBytes:  1024,
			Thresholds: types.MonitorThresholdConfig{
				MinHitRate:        70,
				HealthyHitRate:    50,
				MaxResponseTimeMs: 100,
				MaxKeys:           10000,
			},
		},
		Cron: &types.CronConfig{
			Timezone: "UTC",
		},
		Metrics: &types.MetricsConfig{
			Enabled:   false,
			Namespace: "sai_social",
			Path:      "/metrics",
			GoMetrics: true,
		},
		Health: &types.HealthConfig{
			Enabled: true,
		},
		Database: &types.DatabaseConfig{
			InMemory: true,
		},
	}
}
