// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/marquee/config.yaml",
	"/etc/marquee/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{},
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Data: DataConfig{
			UsersPath:        "/data/raw/users.csv",
			ItemsPath:        "/data/raw/items.csv",
			InteractionsPath: "/data/raw/interactions.csv",
			ProcessedDir:     "/data/processed",
			ReportsDir:       "/data/reports",
		},
		Database: DatabaseConfig{
			Path:      "",
			MaxMemory: "1GB",
		},
		Sampling: SamplingConfig{
			Strategy:             "popularity",
			NegativesPerPositive: 4,
			MaxRetriesFactor:     50,
		},
		Features: FeaturesConfig{
			HistoryWindowDays: 30,
			EvalK:             10,
		},
		Split: SplitConfig{
			Strategy:  "time",
			Level:     "group",
			TrainFrac: 0.7,
			ValFrac:   0.15,
			TestFrac:  0.15,
		},
		Training: TrainingConfig{
			Enabled:             true,
			TrainOnStartup:      true,
			TrainInterval:       24 * time.Hour,
			Seed:                42,
			Epochs:              200,
			LearningRate:        0.05,
			L2:                  0.0001,
			EarlyStoppingRounds: 20,
			MaxPairsPerGroup:    64,
		},
		Registry: RegistryConfig{
			Dir:  "/data/models",
			Keep: 5,
		},
		FeatureStore: FeatureStoreConfig{
			Enabled:         true,
			Path:            "/data/features",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
			CacheSize:       10000,
			CacheTTL:        5 * time.Minute,
		},
		Events: EventsConfig{
			Backend: "memory",
			NATSURL: "nats://127.0.0.1:4222",
			Topic:   "ranking.model.published",
		},
	}
}

// Defaults returns the built-in configuration without reading files or
// the environment.
func Defaults() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Raw data
	"data_users_path":        "data.users_path",
	"data_items_path":        "data.items_path",
	"data_interactions_path": "data.interactions_path",
	"data_processed_dir":     "data.processed_dir",
	"data_reports_dir":       "data.reports_dir",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Sampling
	"sampling_strategy":      "sampling.strategy",
	"negatives_per_positive": "sampling.negatives_per_positive",
	"sampling_max_retries":   "sampling.max_retries_factor",
	"sampling_workers":       "sampling.workers",

	// Features
	"history_window_days": "features.history_window_days",
	"eval_k":              "features.eval_k",
	"reference_year":      "features.reference_year",

	// Split
	"split_strategy": "split.strategy",
	"split_level":    "split.level",
	"train_frac":     "split.train_frac",
	"val_frac":       "split.val_frac",
	"test_frac":      "split.test_frac",

	// Training
	"training_enabled":      "training.enabled",
	"train_on_startup":      "training.train_on_startup",
	"train_interval":        "training.train_interval",
	"seed":                  "training.seed",
	"train_epochs":          "training.epochs",
	"train_learning_rate":   "training.learning_rate",
	"train_l2":              "training.l2",
	"early_stopping_rounds": "training.early_stopping_rounds",
	"train_max_pairs":       "training.max_pairs_per_group",

	// Registry
	"model_dir":  "registry.dir",
	"model_keep": "registry.keep",

	// Feature store
	"featurestore_enabled":          "featurestore.enabled",
	"featurestore_path":             "featurestore.path",
	"featurestore_in_memory":        "featurestore.in_memory",
	"featurestore_breaker_failures": "featurestore.breaker_failures",
	"featurestore_breaker_timeout":  "featurestore.breaker_timeout",
	"featurestore_cache_size":       "featurestore.cache_size",
	"featurestore_cache_ttl":        "featurestore.cache_ttl",

	// Events
	"events_backend": "events.backend",
	"nats_url":       "events.nats_url",
	"events_topic":   "events.topic",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unknown variables map to "" and are ignored.
//
//   - HTTP_PORT -> server.port
//   - SAMPLING_STRATEGY -> sampling.strategy
//   - MODEL_DIR -> registry.dir
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
