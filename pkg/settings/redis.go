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

package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/constants"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
)

type RedisOptions struct {
	Addr     string
	Password string
	Prefix   string
	DB       int
}

// RedisStore keeps each setting as a JSON string under Prefix+name, so
// several admin instances share one layout.
type RedisStore struct {
	rdb    *goredis.Client
	log    *zap.SugaredLogger
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, opts RedisOptions, log *zap.SugaredLogger) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreFromClient(rdb, opts.Prefix, log), nil
}

// NewRedisStoreFromClient wraps an existing client. An empty prefix uses the default.
func NewRedisStoreFromClient(rdb *goredis.Client, prefix string, log *zap.SugaredLogger) *RedisStore {
	if log == nil {
		log = logger.For(logger.ComponentSettingsStore)
	}

	if prefix == "" {
		prefix = constants.DefaultRedisKeyPrefix
	}

	return &RedisStore{rdb: rdb, prefix: prefix, log: log}
}

// Key returns the Redis key of setting name.
func (s *RedisStore) Key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) Get(ctx context.Context, name string, out any) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.Key(name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}

	if err != nil {
		if errors.Is(err, goredis.ErrClosed) {
			return false, ErrClosed
		}

		return false, fmt.Errorf("failed to read setting %q: %w", name, err)
	}

	if err := safejson.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode setting %q: %w", name, err)
	}

	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, name string, value any) error {
	raw, err := safejson.Marshal(value)
	if err != nil {
		metrics.RecordSettingsWrite(metrics.ResultFailure)

		return fmt.Errorf("failed to encode setting %q: %w", name, err)
	}

	if err := s.rdb.Set(ctx, s.Key(name), raw, 0).Err(); err != nil {
		metrics.RecordSettingsWrite(metrics.ResultFailure)

		if errors.Is(err, goredis.ErrClosed) {
			return ErrClosed
		}

		return fmt.Errorf("failed to write setting %q: %w", name, err)
	}

	metrics.RecordSettingsWrite(metrics.ResultSuccess)

	return nil
}

func (s *RedisStore) Close(_ context.Context) error {
	err := s.rdb.Close()
	if errors.Is(err, goredis.ErrClosed) {
		return nil
	}

	return err
}
