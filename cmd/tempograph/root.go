package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tempograph/tempograph"
	"github.com/tempograph/tempograph/pkg/checkpoint"
	"github.com/tempograph/tempograph/pkg/config"
	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/nlp"
	"github.com/tempograph/tempograph/pkg/telemetry"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "tempograph",
		Short: "Tempograph: temporally-aware knowledge graph engine",
		Long: `Tempograph distills episodes of raw content into a knowledge graph whose
facts carry validity intervals. Contradicted facts are invalidated, never
deleted, so the graph can answer what was believed true at any instant.`,
		SilenceUsage: true,
	}
)

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func openDriver(cfg *config.Config) (driver.GraphDriver, error) {
	switch cfg.Graph.Driver {
	case "", "memory":
		return driver.NewMemoryDriver(), nil
	case "neo4j":
		return driver.NewNeo4jDriver(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
	default:
		return nil, fmt.Errorf("unknown graph driver %q", cfg.Graph.Driver)
	}
}

func buildModel(cfg *config.Config, logger *slog.Logger) (nlp.Client, error) {
	base, err := nlp.NewOpenAIClient(cfg.Model)
	if err != nil {
		return nil, err
	}

	var client nlp.Client = base
	if cfg.Breaker.Enabled {
		client = nlp.NewCircuitBreakerClient(client, nlp.BreakerConfig{
			Name:             "model",
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         time.Duration(cfg.Breaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.Breaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.Breaker.ReadyToTripRatio,
		}, logger)
	}
	retry := nlp.DefaultRetryConfig()
	if cfg.Retry.MaxRetries > 0 {
		retry.MaxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.InitialBackoff > 0 {
		retry.InitialDelay = time.Duration(cfg.Retry.InitialBackoff) * time.Second
	}
	if cfg.Retry.MaxBackoff > 0 {
		retry.MaxDelay = time.Duration(cfg.Retry.MaxBackoff) * time.Second
	}
	return nlp.NewRetryClient(client, retry), nil
}

func buildEmbedder(cfg *config.Config) (embedder.Client, error) {
	if cfg.Embedding.APIKey != "" {
		return embedder.NewOpenAIClient(cfg.Embedding)
	}
	// Without an API key, fall back to local embeddings.
	return embedder.NewEmbedEverythingClient(cfg.Embedding)
}

// buildClient assembles a full engine from configuration.
func buildClient(cfg *config.Config, logger *slog.Logger) (*tempograph.Client, error) {
	d, err := openDriver(cfg)
	if err != nil {
		return nil, fmt.Errorf("open graph driver: %w", err)
	}
	model, err := buildModel(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
	}
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	clientCfg := &tempograph.Config{
		ExclusivePredicates: cfg.Exclusive,
	}
	if cfg.Checkpoint.Enabled {
		store, err := checkpoint.Open(checkpoint.Options{
			Path:     cfg.Checkpoint.Path,
			InMemory: cfg.Checkpoint.InMemory,
		})
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		clientCfg.Checkpoints = store
	}
	if cfg.Telemetry.Enabled {
		journal, err := telemetry.NewJournal(cfg.Telemetry.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open telemetry journal: %w", err)
		}
		clientCfg.Journal = journal
	}

	return tempograph.NewClient(d, model, emb, clientCfg, logger)
}
