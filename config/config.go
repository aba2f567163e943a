// Copyright 2026 Zein Alasali
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the application configuration from YAML, with
// environment variables (optionally from a .env file) supplying secrets.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zeinalasali/buildquery/ai"
)

// StorageConfig configures the local BadgerDB store.
type StorageConfig struct {
	// Path is the database directory. Empty selects an in-memory store.
	Path string `yaml:"path"`
}

// AIConfig configures the OpenAI-compatible embedding and completion services.
type AIConfig struct {
	Host            string `yaml:"host"`
	EmbeddingHost   string `yaml:"embedding_host,omitempty"`
	CompletionHost  string `yaml:"completion_host,omitempty"`
	EmbeddingModel  string `yaml:"embedding_model"`
	CompletionModel string `yaml:"completion_model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	Dimensions      int    `yaml:"dimensions"`
	MaxInputChars   int    `yaml:"max_input_chars"`
}

// RetryConfig configures provider retry behavior.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
	TimeoutSecs int `yaml:"timeout_secs"`
}

// QueryConfig configures retrieval and answer defaults.
type QueryConfig struct {
	K           int `yaml:"k"`
	TokenBudget int `yaml:"token_budget"`
}

// SyncConfig configures the event synchronizer.
type SyncConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Storage StorageConfig `yaml:"storage"`
	AI      AIConfig      `yaml:"ai"`
	Retry   RetryConfig   `yaml:"retry"`
	Query   QueryConfig   `yaml:"query"`
	Sync    SyncConfig    `yaml:"sync"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadEnv loads environment variables from .env files, if present.
// Missing files are not an error; existing environment wins over file values.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		_ = godotenv.Load(path)
	}
}

// AIConfig builds the provider configuration, resolving the API key from the
// configured environment variable.
func (c *AppConfig) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithHost(c.AI.Host),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithCompletionModel(c.AI.CompletionModel),
		ai.WithDimensions(c.AI.Dimensions),
		ai.WithMaxInputChars(c.AI.MaxInputChars),
	}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.CompletionHost != "" {
		opts = append(opts, ai.WithCompletionHost(c.AI.CompletionHost))
	}
	if key := os.Getenv(c.AI.APIKeyEnv); key != "" {
		opts = append(opts, ai.WithAPIKey(key))
	}
	return ai.NewConfig(opts...)
}

// RetryConfig builds the provider retry configuration.
func (c *AppConfig) RetryConfig() *ai.RetryConfig {
	return &ai.RetryConfig{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		Timeout:     time.Duration(c.Retry.TimeoutSecs) * time.Second,
	}
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "buildquery.db"
	}
	if cfg.AI.Host == "" {
		cfg.AI.Host = "http://localhost:11434/v1"
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "embeddinggemma"
	}
	if cfg.AI.CompletionModel == "" {
		cfg.AI.CompletionModel = "qwen2.5:3b"
	}
	if cfg.AI.APIKeyEnv == "" {
		cfg.AI.APIKeyEnv = "BUILDQUERY_API_KEY"
	}
	if cfg.AI.Dimensions == 0 {
		cfg.AI.Dimensions = 1536
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 8000
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMS == 0 {
		cfg.Retry.BaseDelayMS = 500
	}
	if cfg.Retry.MaxDelayMS == 0 {
		cfg.Retry.MaxDelayMS = 10000
	}
	if cfg.Retry.TimeoutSecs == 0 {
		cfg.Retry.TimeoutSecs = 30
	}
	if cfg.Query.K == 0 {
		cfg.Query.K = 5
	}
	if cfg.Query.TokenBudget == 0 {
		cfg.Query.TokenBudget = 2048
	}
	if cfg.Sync.PoolSize == 0 {
		cfg.Sync.PoolSize = 4
	}
}
