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

package config

import (
	"errors"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/env"
)

// ApplyEnvOverrides overrides cfg with any set environment variable.
//
// Order of precedence (highest to lowest):
//  1. Environment variables (API_URL, AUTH_TOKEN, GRID_*, SETTINGS_*, REDIS_ADDR, ...)
//  2. Config file values
//  3. Defaults
func ApplyEnvOverrides(cfg FullConfig) (FullConfig, error) {
	var errs []error

	str := func(key string, dst *string) {
		v, err := env.GetAsString(key, false, *dst)
		errs = append(errs, err)
		*dst = v
	}

	num := func(key string, dst *int) {
		v, err := env.GetAsInt(key, false, *dst)
		errs = append(errs, err)
		*dst = v
	}

	str("API_URL", &cfg.API.URL)
	str("AUTH_TOKEN", &cfg.API.AuthToken)
	num("GRID_CHUNK_SIZE", &cfg.Grid.ChunkSize)
	num("GRID_MAX_RETRIES", &cfg.Grid.MaxRetries)

	timeout, err := env.GetAsDuration("GRID_REQUEST_TIMEOUT", false, cfg.Grid.RequestTimeout)
	errs = append(errs, err)
	cfg.Grid.RequestTimeout = timeout

	str("SETTINGS_BACKEND", &cfg.Settings.Backend)
	str("SETTINGS_SQLITE_PATH", &cfg.Settings.SQLitePath)
	str("REDIS_ADDR", &cfg.Settings.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Settings.RedisPassword)
	num("SERVER_PORT", &cfg.Server.Port)
	str("SERVER_SQLITE_PATH", &cfg.Server.SQLitePath)
	num("METRICS_PORT", &cfg.MetricsPort)
	str("SENTRY_DSN", &cfg.SentryDSN)
	str("LOGGING_LEVEL", &cfg.Logging.Level)
	str("LOGGING_FORMAT", &cfg.Logging.Format)

	if err := errors.Join(errs...); err != nil {
		return FullConfig{}, err
	}

	return cfg, nil
}

// Load reads the config file at path, applies environment overrides and validates the result.
func Load(path string) (FullConfig, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return FullConfig{}, err
	}

	cfg, err = ApplyEnvOverrides(cfg)
	if err != nil {
		return FullConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return FullConfig{}, err
	}

	return cfg, nil
}
