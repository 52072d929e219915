// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"fmt"
	"math"
	"strings"
)

// fractionTolerance matches the split engine's tolerance.
const fractionTolerance = 1e-6

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validateFeatures(); err != nil {
		return err
	}
	if err := c.validateSplit(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateEvents()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitReqs)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSampling() error {
	if c.Sampling.Strategy != "uniform" && c.Sampling.Strategy != "popularity" {
		return fmt.Errorf("SAMPLING_STRATEGY must be uniform or popularity, got %q", c.Sampling.Strategy)
	}
	if c.Sampling.NegativesPerPositive < 0 {
		return fmt.Errorf("NEGATIVES_PER_POSITIVE must be non-negative, got %d", c.Sampling.NegativesPerPositive)
	}
	if c.Sampling.MaxRetriesFactor < 1 {
		return fmt.Errorf("SAMPLING_MAX_RETRIES must be at least 1, got %d", c.Sampling.MaxRetriesFactor)
	}
	if c.Sampling.Workers < 0 {
		return fmt.Errorf("SAMPLING_WORKERS must be non-negative, got %d", c.Sampling.Workers)
	}
	return nil
}

func (c *Config) validateFeatures() error {
	if c.Features.HistoryWindowDays < 1 {
		return fmt.Errorf("HISTORY_WINDOW_DAYS must be at least 1, got %d", c.Features.HistoryWindowDays)
	}
	if c.Features.EvalK < 1 {
		return fmt.Errorf("EVAL_K must be at least 1, got %d", c.Features.EvalK)
	}
	return nil
}

func (c *Config) validateSplit() error {
	if c.Split.Strategy != "time" && c.Split.Strategy != "random" {
		return fmt.Errorf("SPLIT_STRATEGY must be time or random, got %q", c.Split.Strategy)
	}
	if c.Split.Level != "group" && c.Split.Level != "row" {
		return fmt.Errorf("SPLIT_LEVEL must be group or row, got %q", c.Split.Level)
	}
	if c.Split.TrainFrac < 0 || c.Split.ValFrac < 0 || c.Split.TestFrac < 0 {
		return fmt.Errorf("split fractions must be non-negative")
	}
	sum := c.Split.TrainFrac + c.Split.ValFrac + c.Split.TestFrac
	if math.Abs(sum-1.0) > fractionTolerance {
		return fmt.Errorf("split fractions must sum to 1.0, got %f", sum)
	}
	return nil
}

func (c *Config) validateTraining() error {
	if c.Training.Epochs < 1 {
		return fmt.Errorf("TRAIN_EPOCHS must be at least 1, got %d", c.Training.Epochs)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("TRAIN_LEARNING_RATE must be positive, got %f", c.Training.LearningRate)
	}
	if c.Training.L2 < 0 {
		return fmt.Errorf("TRAIN_L2 must be non-negative, got %f", c.Training.L2)
	}
	if c.Training.EarlyStoppingRounds < 0 {
		return fmt.Errorf("EARLY_STOPPING_ROUNDS must be non-negative, got %d", c.Training.EarlyStoppingRounds)
	}
	if c.Training.Enabled && c.Training.TrainInterval <= 0 {
		return fmt.Errorf("TRAIN_INTERVAL must be positive when training is enabled, got %v", c.Training.TrainInterval)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Registry.Dir == "" {
		return fmt.Errorf("MODEL_DIR is required")
	}
	if c.Registry.Keep < 0 {
		return fmt.Errorf("MODEL_KEEP must be non-negative, got %d", c.Registry.Keep)
	}
	if c.FeatureStore.Enabled && !c.FeatureStore.InMemory && c.FeatureStore.Path == "" {
		return fmt.Errorf("FEATURESTORE_PATH is required when the feature store is enabled on disk")
	}
	if c.FeatureStore.CacheSize < 0 {
		return fmt.Errorf("FEATURESTORE_CACHE_SIZE must be non-negative, got %d", c.FeatureStore.CacheSize)
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "memory":
	case "nats":
		if c.Events.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when EVENTS_BACKEND=nats")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be memory or nats, got %q", c.Events.Backend)
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required")
	}
	return nil
}
