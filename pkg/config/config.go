// Copyright 2025 UMH Systems GmbH
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

// Package config holds the configuration of the grid core and the mock
// catalog server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/constants"
)

type FullConfig struct {
	Grid     GridConfig     `yaml:"grid"`
	API      APIConfig      `yaml:"api"`
	Settings SettingsConfig `yaml:"settings"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`

	MetricsPort int    `yaml:"metricsPort"`
	SentryDSN   string `yaml:"sentryDsn,omitempty"`
}

// GridConfig tunes the batch engine, reorder calls and layout persistence.
type GridConfig struct {
	ChunkSize            int           `yaml:"chunkSize"`
	MaxConcurrentChunks  int           `yaml:"maxConcurrentChunks"`
	MaxRetries           int           `yaml:"maxRetries"`
	RetryInitialInterval time.Duration `yaml:"retryInitialInterval"`
	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	LayoutDebounce       time.Duration `yaml:"layoutDebounce"`
	HistoryLocation      string        `yaml:"historyLocation"`
}

type APIConfig struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"authToken,omitempty"`
}

// SettingsConfig selects the key/value store for column layouts.
type SettingsConfig struct {
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlitePath,omitempty"`
	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       int    `yaml:"redisDb,omitempty"`
	KeyPrefix     string `yaml:"keyPrefix,omitempty"`
}

// ServerConfig configures the mock catalog server. An empty SQLitePath keeps
// the catalog in memory.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	SQLitePath string `yaml:"sqlitePath,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config with every field set to its default.
func Default() FullConfig {
	return FullConfig{
		Grid: GridConfig{
			ChunkSize:            constants.DefaultChunkSize,
			MaxConcurrentChunks:  constants.DefaultMaxConcurrentChunks,
			MaxRetries:           constants.DefaultMaxRetries,
			RetryInitialInterval: constants.DefaultRetryInitialInterval,
			RequestTimeout:       constants.DefaultRequestTimeout,
			LayoutDebounce:       constants.DefaultLayoutDebounce,
			HistoryLocation:      constants.DefaultHistoryLocation,
		},
		API: APIConfig{URL: constants.DefaultAPIURL},
		Settings: SettingsConfig{
			Backend:    constants.DefaultSettingsBackend,
			SQLitePath: constants.DefaultSettingsSQLitePath,
			KeyPrefix:  constants.DefaultRedisKeyPrefix,
		},
		Server:      ServerConfig{Port: constants.DefaultServerPort},
		Logging:     LoggingConfig{Level: "PRODUCTION", Format: "json"},
		MetricsPort: constants.DefaultMetricsPort,
	}
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (FullConfig, error) {
	cfg := Default()

	if len(data) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FullConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadFile reads and parses the config at path. A missing file yields the defaults.
func LoadFile(path string) (FullConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	if err != nil {
		return FullConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Marshal encodes cfg as YAML.
func Marshal(cfg FullConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Validate rejects settings the grid cannot run with.
func (c FullConfig) Validate() error {
	var errs []error

	if c.Grid.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("grid.chunkSize must be positive, got %d", c.Grid.ChunkSize))
	}

	if c.Grid.MaxConcurrentChunks <= 0 {
		errs = append(errs, fmt.Errorf("grid.maxConcurrentChunks must be positive, got %d", c.Grid.MaxConcurrentChunks))
	}

	if c.Grid.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("grid.maxRetries must not be negative, got %d", c.Grid.MaxRetries))
	}

	if c.Grid.RequestTimeout <= 0 {
		errs = append(errs, errors.New("grid.requestTimeout must be positive"))
	}

	switch c.Settings.Backend {
	case constants.SettingsBackendMemory:
	case constants.SettingsBackendSQLite:
		if c.Settings.SQLitePath == "" {
			errs = append(errs, errors.New("settings.sqlitePath is required for the sqlite backend"))
		}
	case constants.SettingsBackendRedis:
		if c.Settings.RedisAddr == "" {
			errs = append(errs, errors.New("settings.redisAddr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown settings backend %q", c.Settings.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	return errors.Join(errs...)
}
