// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package config loads Marquee configuration with Koanf v2.
//
// Sources are layered, highest priority last:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH or one of DefaultConfigPaths)
//  3. Environment variables listed in envTransformFunc
//
// The loaded Config is validated before it is returned.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Data         DataConfig         `koanf:"data"`
	Database     DatabaseConfig     `koanf:"database"`
	Sampling     SamplingConfig     `koanf:"sampling"`
	Features     FeaturesConfig     `koanf:"features"`
	Split        SplitConfig        `koanf:"split"`
	Training     TrainingConfig     `koanf:"training"`
	Registry     RegistryConfig     `koanf:"registry"`
	FeatureStore FeatureStoreConfig `koanf:"featurestore"`
	Events       EventsConfig       `koanf:"events"`
}

// ServerConfig configures the HTTP ranking API.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Timeout bounds a single ranking request.
	// Default: 10s
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful shutdown of supervised services.
	// Default: 10s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DataConfig locates the raw catalog and interaction exports.
type DataConfig struct {
	UsersPath        string `koanf:"users_path"`
	ItemsPath        string `koanf:"items_path"`
	InteractionsPath string `koanf:"interactions_path"`

	// ProcessedDir receives train/val/test parquet exports. Empty disables export.
	ProcessedDir string `koanf:"processed_dir"`

	// ReportsDir receives metrics.json after each training run. Empty disables the report.
	ReportsDir string `koanf:"reports_dir"`
}

// DatabaseConfig configures the DuckDB instance used to load raw data.
type DatabaseConfig struct {
	// Path is the DuckDB file. Empty runs in memory.
	Path string `koanf:"path"`

	// MaxMemory is passed to DuckDB's memory_limit setting.
	// Default: 1GB
	MaxMemory string `koanf:"max_memory"`

	// Threads is passed to DuckDB's threads setting. 0 keeps DuckDB's default.
	Threads int `koanf:"threads"`
}

// SamplingConfig configures negative sampling.
type SamplingConfig struct {
	// Strategy is uniform or popularity.
	// Default: popularity
	Strategy string `koanf:"strategy"`

	// NegativesPerPositive is the number of sampled negatives per positive event.
	// Default: 4
	NegativesPerPositive int `koanf:"negatives_per_positive"`

	// MaxRetriesFactor caps rejection sampling at factor*n draws per call.
	// Default: 50
	MaxRetriesFactor int `koanf:"max_retries_factor"`

	// Workers bounds per-user sampling parallelism. 0 uses GOMAXPROCS.
	Workers int `koanf:"workers"`
}

// FeaturesConfig configures offline feature engineering and evaluation.
type FeaturesConfig struct {
	// HistoryWindowDays is the aggregate lookback ending at the latest event.
	// Default: 30
	HistoryWindowDays int `koanf:"history_window_days"`

	// EvalK is the cutoff for NDCG@k and MAP@k.
	// Default: 10
	EvalK int `koanf:"eval_k"`

	// ReferenceYear anchors item_age. 0 uses the current year at training time.
	ReferenceYear int `koanf:"reference_year"`
}

// SplitConfig configures the train/validation/test partition.
type SplitConfig struct {
	// Strategy is time or random.
	// Default: time
	Strategy string `koanf:"strategy"`

	// Level is group or row. Group keeps every (user, session) group in one partition.
	// Default: group
	Level string `koanf:"level"`

	TrainFrac float64 `koanf:"train_frac"`
	ValFrac   float64 `koanf:"val_frac"`
	TestFrac  float64 `koanf:"test_frac"`
}

// TrainingConfig configures the ranker fit and the scheduled training service.
type TrainingConfig struct {
	// Enabled schedules training inside the server process.
	Enabled bool `koanf:"enabled"`

	// TrainOnStartup trains once as soon as the service starts.
	// Default: true
	TrainOnStartup bool `koanf:"train_on_startup"`

	// TrainInterval is the retraining period.
	// Default: 24h
	TrainInterval time.Duration `koanf:"train_interval"`

	Seed                int64   `koanf:"seed"`
	Epochs              int     `koanf:"epochs"`
	LearningRate        float64 `koanf:"learning_rate"`
	L2                  float64 `koanf:"l2"`
	EarlyStoppingRounds int     `koanf:"early_stopping_rounds"`

	// MaxPairsPerGroup caps sampled pairs per group per epoch. 0 uses every pair.
	MaxPairsPerGroup int `koanf:"max_pairs_per_group"`
}

// RegistryConfig configures the versioned model registry.
type RegistryConfig struct {
	// Dir holds model artifacts and metadata.
	// Default: /data/models
	Dir string `koanf:"dir"`

	// Keep is the number of versions retained after each save. 0 keeps all.
	// Default: 5
	Keep int `koanf:"keep"`
}

// FeatureStoreConfig configures the BadgerDB aggregate store read at serve time.
type FeatureStoreConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// BreakerFailures is the consecutive lookup failures that open the breaker.
	// Default: 5
	BreakerFailures uint32 `koanf:"breaker_failures"`

	// BreakerTimeout is how long the breaker stays open.
	// Default: 30s
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`

	// CacheSize is the number of aggregates cached in front of BadgerDB. 0 disables it.
	// Default: 10000
	CacheSize int `koanf:"cache_size"`

	// CacheTTL bounds the age of a cached aggregate.
	// Default: 5m
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// EventsConfig configures model lifecycle events.
type EventsConfig struct {
	// Backend is memory (in-process) or nats. The nats backend requires the nats build tag.
	// Default: memory
	Backend string `koanf:"backend"`

	NATSURL string `koanf:"nats_url"`

	// Topic carries model-published events.
	// Default: ranking.model.published
	Topic string `koanf:"topic"`
}
