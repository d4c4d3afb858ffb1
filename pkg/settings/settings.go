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

// Package settings is the key/value store behind persisted grid preferences
// such as column layouts. A Store is opened once when a grid is mounted,
// injected into the components that need it, and closed on unmount.
package settings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/config"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/constants"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence/sqlite"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("settings store is closed")

// Store reads and writes named JSON values.
type Store interface {
	// Get decodes the value of name into out. It returns false if the
	// setting has never been written.
	Get(ctx context.Context, name string, out any) (bool, error)
	// Set stores value under name, replacing any previous value.
	Set(ctx context.Context, name string, value any) error
	Close(ctx context.Context) error
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.SettingsConfig, log *zap.SugaredLogger) (Store, error) {
	switch cfg.Backend {
	case "", constants.SettingsBackendMemory:
		return NewDocumentStore(ctx, memory.NewInMemoryStore(), log)
	case constants.SettingsBackendSQLite:
		db, err := sqlite.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings database: %w", err)
		}

		return NewDocumentStore(ctx, db, log)
	case constants.SettingsBackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
		}, log)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

// normalize converts value to the generic JSON form it has after a round trip.
func normalize(value any) (any, error) {
	data, err := safejson.Marshal(value)
	if err != nil {
		return nil, err
	}

	var out any
	if err := safejson.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func decodeInto(value any, out any) error {
	data, err := safejson.Marshal(value)
	if err != nil {
		return err
	}

	return safejson.Unmarshal(data, out)
}
