package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/storage"
)

// EnvConfigFile names the environment variable holding an optional YAML file
const EnvConfigFile = "FLOWINDEX_CONFIG"

// Config holds all application configuration
type Config struct {
	Index         IndexConfig         `yaml:"index"`
	Server        ServerConfig        `yaml:"server"`
	Cache         CacheConfig         `yaml:"cache"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// IndexConfig holds the workflow directory and index database settings
type IndexConfig struct {
	WorkflowsDir string        `yaml:"workflows_dir"`
	DatabasePath string        `yaml:"database_path"`
	Extension    string        `yaml:"extension"`
	Workers      int           `yaml:"workers"`
	PruneMissing bool          `yaml:"prune_missing"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

// Storage returns the store configuration
func (c IndexConfig) Storage() storage.Config {
	return storage.Config{
		Path:         c.DatabasePath,
		MaxOpenConns: c.MaxOpenConns,
		BusyTimeout:  c.BusyTimeout,
	}
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ReindexRateLimit caps POST /api/reindex per client per minute; 0 disables
	ReindexRateLimit int      `yaml:"reindex_rate_limit"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	Docs             bool     `yaml:"docs"`
}

// Addr returns host:port
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// CacheConfig holds search result cache settings. A RedisURL selects the
// shared Redis cache over the in-process LRU.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Size     int           `yaml:"size"`
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
}

// ScheduleConfig controls background reindexing in serve mode
type ScheduleConfig struct {
	ReindexCron   string        `yaml:"reindex_cron"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	IndexOnStart  bool          `yaml:"index_on_start"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or text

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (c ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(c.LogLevel)
}

// OTel returns the OpenTelemetry configuration
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	store := storage.DefaultConfig()
	return &Config{
		Index: IndexConfig{
			WorkflowsDir: "workflows",
			DatabasePath: store.Path,
			Extension:    ".json",
			Workers:      4,
			PruneMissing: true,
			MaxOpenConns: store.MaxOpenConns,
			BusyTimeout:  store.BusyTimeout,
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             "8000",
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			ReindexRateLimit: 6,
			Docs:             true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    512,
			TTL:     5 * time.Minute,
		},
		Schedule: ScheduleConfig{
			WatchDebounce: 2 * time.Second,
			IndexOnStart:  true,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "flowindex",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path (or $FLOWINDEX_CONFIG when path is empty), then FLOWINDEX_* environment
// variables, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path; absent keys keep their value
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides settings from FLOWINDEX_* environment variables
func (c *Config) applyEnv() {
	c.Index.WorkflowsDir = getEnv("FLOWINDEX_WORKFLOWS_DIR", c.Index.WorkflowsDir)
	c.Index.DatabasePath = getEnv("FLOWINDEX_DATABASE_PATH", c.Index.DatabasePath)
	c.Index.Extension = getEnv("FLOWINDEX_EXTENSION", c.Index.Extension)
	c.Index.Workers = getEnvInt("FLOWINDEX_WORKERS", c.Index.Workers)
	c.Index.PruneMissing = getEnvBool("FLOWINDEX_PRUNE_MISSING", c.Index.PruneMissing)
	c.Index.MaxOpenConns = getEnvInt("FLOWINDEX_DB_MAX_OPEN_CONNS", c.Index.MaxOpenConns)
	c.Index.BusyTimeout = getEnvDuration("FLOWINDEX_DB_BUSY_TIMEOUT", c.Index.BusyTimeout)

	c.Server.Host = getEnv("FLOWINDEX_HOST", c.Server.Host)
	c.Server.Port = getEnv("FLOWINDEX_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("FLOWINDEX_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("FLOWINDEX_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("FLOWINDEX_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("FLOWINDEX_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.ReindexRateLimit = getEnvInt("FLOWINDEX_REINDEX_RATE_LIMIT", c.Server.ReindexRateLimit)
	c.Server.AllowedOrigins = getEnvList("FLOWINDEX_ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.Docs = getEnvBool("FLOWINDEX_DOCS", c.Server.Docs)

	c.Cache.Enabled = getEnvBool("FLOWINDEX_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Size = getEnvInt("FLOWINDEX_CACHE_SIZE", c.Cache.Size)
	c.Cache.TTL = getEnvDuration("FLOWINDEX_CACHE_TTL", c.Cache.TTL)
	c.Cache.RedisURL = getEnv("FLOWINDEX_REDIS_URL", c.Cache.RedisURL)

	c.Schedule.ReindexCron = getEnv("FLOWINDEX_REINDEX_CRON", c.Schedule.ReindexCron)
	c.Schedule.Watch = getEnvBool("FLOWINDEX_WATCH", c.Schedule.Watch)
	c.Schedule.WatchDebounce = getEnvDuration("FLOWINDEX_WATCH_DEBOUNCE", c.Schedule.WatchDebounce)
	c.Schedule.IndexOnStart = getEnvBool("FLOWINDEX_INDEX_ON_START", c.Schedule.IndexOnStart)

	c.Observability.LogLevel = getEnv("FLOWINDEX_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("FLOWINDEX_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsEnabled = getEnvBool("FLOWINDEX_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("FLOWINDEX_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("FLOWINDEX_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("FLOWINDEX_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("FLOWINDEX_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("FLOWINDEX_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.OTelSampleRatio = getEnvFloat("FLOWINDEX_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Index.WorkflowsDir == "" {
		return fmt.Errorf("workflows directory is required")
	}
	if c.Index.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if !strings.HasPrefix(c.Index.Extension, ".") {
		return fmt.Errorf("extension must start with a dot: %q", c.Index.Extension)
	}
	if c.Index.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Index.Workers)
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}
	if c.Server.ReindexRateLimit < 0 {
		return fmt.Errorf("reindex rate limit cannot be negative")
	}

	if c.Cache.Enabled {
		if c.Cache.Size < 1 {
			return fmt.Errorf("cache size must be at least 1 when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache TTL must be positive when the cache is enabled")
		}
	}

	if c.Schedule.ReindexCron != "" {
		if _, err := cron.ParseStandard(c.Schedule.ReindexCron); err != nil {
			return fmt.Errorf("invalid reindex cron %q: %w", c.Schedule.ReindexCron, err)
		}
	}
	if c.Schedule.Watch && c.Schedule.WatchDebounce <= 0 {
		return fmt.Errorf("watch debounce must be positive when watching")
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1]")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable or returns a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
