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

package constants

import "time"

const (
	// DefaultAppVersion is used when the binary is not built with a version tag.
	DefaultAppVersion = "0.0.0-dev"

	DefaultDevelopmentEnvironment = "development"
	DefaultProductionEnvironment  = "production"
)

// Grid sync defaults
const (
	// DefaultChunkSize is the maximum number of items sent in one batch call.
	DefaultChunkSize = 100

	// DefaultMaxConcurrentChunks bounds the number of in-flight batch calls per dispatch.
	DefaultMaxConcurrentChunks = 4

	// DefaultRequestTimeout applies to every remote catalog call.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries for a chunk that failed at the transport level.
	DefaultMaxRetries = 2

	// DefaultRetryInitialInterval is the first backoff interval between chunk retries.
	DefaultRetryInitialInterval = 250 * time.Millisecond

	// DefaultLayoutDebounce coalesces rapid column layout changes into one settings write.
	DefaultLayoutDebounce = 500 * time.Millisecond

	// DefaultHistoryLocation tags history records written by the product grid.
	DefaultHistoryLocation = "products"
)

// Settings backends
const (
	SettingsBackendMemory = "memory"
	SettingsBackendSQLite = "sqlite"
	SettingsBackendRedis  = "redis"

	DefaultSettingsBackend    = SettingsBackendMemory
	DefaultSettingsSQLitePath = "./settings.db"
	DefaultRedisKeyPrefix     = "catalog-grid:settings:"
)

// Server defaults
const (
	DefaultServerPort  = 8085
	DefaultMetricsPort = 8086
	DefaultAPIURL      = "http://localhost:8085/api"
)
