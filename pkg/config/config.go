// Package config loads application configuration from files and the
// environment via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/nlp"
)

// Config holds every tunable for the engine and its surfaces.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Model      nlp.Config       `mapstructure:"model"`
	Embedding  embedder.Config  `mapstructure:"embedding"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Exclusive  map[string][]string `mapstructure:"exclusive_predicates"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// GraphConfig selects and connects the graph backend.
type GraphConfig struct {
	Driver   string `mapstructure:"driver"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// RetryConfig tunes model-call retries. Durations are in seconds.
type RetryConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	InitialBackoff int `mapstructure:"initial_backoff"`
	MaxBackoff     int `mapstructure:"max_backoff"`
}

// BreakerConfig tunes the provider circuit breaker.
type BreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// CheckpointConfig controls the ingestion checkpoint store.
type CheckpointConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// TelemetryConfig controls the parquet journal.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from the given file (optional), environment
// variables prefixed TEMPOGRAPH_, and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TEMPOGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	overrideWithEnv(cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("graph.driver", "memory")
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.database", "neo4j")

	v.SetDefault("model.model", "gpt-4.1-mini")
	v.SetDefault("model.max_tokens", 2048)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.batch_size", 100)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_backoff", 1)
	v.SetDefault("retry.max_backoff", 60)

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", 60)
	v.SetDefault("breaker.timeout", 30)
	v.SetDefault("breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		v.SetDefault("checkpoint.path", filepath.Join(home, ".tempograph", "checkpoints"))
		v.SetDefault("telemetry.path", filepath.Join(home, ".tempograph", "telemetry"))
	}
}

func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Model.APIKey == "" {
			cfg.Model.APIKey = key
		}
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Graph.Driver = "neo4j"
		cfg.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Graph.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.Graph.Password = pass
	}
}
