package types

import (
	"time"
)

type ConfigManager interface {
	LifecycleManager
	GetConfig() *ServiceConfig
}

type ServiceConfig struct {
	Name          string          `yaml:"name" json:"name" validate:"required"`
	Version       string          `yaml:"version" json:"version" validate:"required"`
	PublicBaseURL string          `yaml:"public_base_url" json:"public_base_url" validate:"omitempty,url"`
	Server        *ServerConfig   `yaml:"server" json:"server" validate:"required"`
	Logger        *LoggerConfig   `yaml:"logger" json:"logger" validate:"required"`
	Cache         *CacheConfig    `yaml:"cache" json:"cache" validate:"required"`
	Monitor       *MonitorConfig  `yaml:"monitor" json:"monitor" validate:"required"`
	Cron          *CronConfig     `yaml:"cron" json:"cron" validate:"required"`
	Metrics       *MetricsConfig  `yaml:"metrics" json:"metrics" validate:"required"`
	Health        *HealthConfig   `yaml:"health" json:"health" validate:"required"`
	Database      *DatabaseConfig `yaml:"database" json:"database" validate:"required"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http" validate:"required"`
	CORS *CORSConfig `yaml:"cors" json:"cors"`
}

type HTTPConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodySize     int    `yaml:"max_body_size" json:"max_body_size" validate:"min=0"`
}

type CORSConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins" json:"allowed_origins" validate:"required_if=Enabled true"`
	AllowedMethods   []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers" json:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers" json:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials" json:"allow_credentials"`
	MaxAge           int      `yaml:"max_age" json:"max_age" validate:"min=0"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

// CacheConfig holds the TTL tier of every named container.
type CacheConfig struct {
	CheckPeriod time.Duration  `yaml:"check_period" json:"check_period" validate:"min=0"`
	TTL         CacheTTLConfig `yaml:"ttl" json:"ttl"`
}

type CacheTTLConfig struct {
	User          time.Duration `yaml:"user" json:"user" validate:"gt=0"`
	Post          time.Duration `yaml:"post" json:"post" validate:"gt=0"`
	Count         time.Duration `yaml:"count" json:"count" validate:"gt=0"`
	Avatar        time.Duration `yaml:"avatar" json:"avatar" validate:"gt=0"`
	FrequentPosts time.Duration `yaml:"frequent_posts" json:"frequent_posts" validate:"gt=0"`
	Profile       time.Duration `yaml:"profile" json:"profile" validate:"gt=0"`
	PostMetadata  time.Duration `yaml:"post_metadata" json:"post_metadata" validate:"gt=0"`
}

type MonitorConfig struct {
	Enabled         bool                   `yaml:"enabled" json:"enabled"`
	StatsInterval   time.Duration          `yaml:"stats_interval" json:"stats_interval" validate:"required_if=Enabled true"`
	CleanupInterval time.Duration          `yaml:"cleanup_interval" json:"cleanup_interval" validate:"required_if=Enabled true"`
	MetricsWindow   time.Duration          `yaml:"metrics_window" json:"metrics_window" validate:"gt=0"`
	EntrySizeBytes  int                    `yaml:"entry_size_bytes" json:"entry_size_bytes" validate:"gt=0"`
	Thresholds      MonitorThresholdConfig `yaml:"thresholds" json:"thresholds"`
}

type MonitorThresholdConfig struct {
	MinHitRate        float64 `yaml:"min_hit_rate" json:"min_hit_rate" validate:"min=0,max=100"`
	HealthyHitRate    float64 `yaml:"healthy_hit_rate" json:"healthy_hit_rate" validate:"min=0,max=100"`
	MaxResponseTimeMs float64 `yaml:"max_response_time_ms" json:"max_response_time_ms" validate:"min=0"`
	MaxKeys           int     `yaml:"max_keys" json:"max_keys" validate:"min=0"`
}

type CronConfig struct {
	Timezone   string        `yaml:"timezone" json:"timezone" validate:"required"`
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout" validate:"min=0"`
}

type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled" json:"enabled"`
	Namespace string            `yaml:"namespace" json:"namespace"`
	Subsystem string            `yaml:"subsystem" json:"subsystem"`
	Path      string            `yaml:"path" json:"path" validate:"required_if=Enabled true"`
	Labels    map[string]string `yaml:"labels" json:"labels"`
	GoMetrics bool              `yaml:"go_metrics" json:"go_metrics"`
}

type HealthConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type DatabaseConfig struct {
	Path     string `yaml:"path" json:"path" validate:"required_if=InMemory false"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
}
