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
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
)

// Collection holds one document per setting, keyed by setting name.
const Collection = "settings"

// DocumentStore keeps settings in a persistence.Store.
type DocumentStore struct {
	store  persistence.Store
	log    *zap.SugaredLogger
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*DocumentStore)(nil)

// NewDocumentStore takes ownership of store and closes it on Close.
func NewDocumentStore(ctx context.Context, store persistence.Store, log *zap.SugaredLogger) (*DocumentStore, error) {
	if log == nil {
		log = logger.For(logger.ComponentSettingsStore)
	}

	if err := store.CreateCollection(ctx, Collection); err != nil {
		return nil, fmt.Errorf("failed to create settings collection: %w", err)
	}

	return &DocumentStore{store: store, log: log}, nil
}

func (s *DocumentStore) Get(ctx context.Context, name string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	doc, err := s.store.Get(ctx, Collection, name)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to read setting %q: %w", name, err)
	}

	if err := decodeInto(doc["value"], out); err != nil {
		return false, fmt.Errorf("failed to decode setting %q: %w", name, err)
	}

	return true, nil
}

func (s *DocumentStore) Set(ctx context.Context, name string, value any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	v, err := normalize(value)
	if err != nil {
		metrics.RecordSettingsWrite(metrics.ResultFailure)

		return fmt.Errorf("failed to encode setting %q: %w", name, err)
	}

	if err := persistence.Upsert(ctx, s.store, Collection, persistence.Document{"id": name, "value": v}); err != nil {
		metrics.RecordSettingsWrite(metrics.ResultFailure)
		metrics.IncErrorCountAndLog(metrics.ComponentSettingsStore, name, err, s.log)

		return fmt.Errorf("failed to write setting %q: %w", name, err)
	}

	metrics.RecordSettingsWrite(metrics.ResultSuccess)
	s.log.Debugw("Setting written", "name", name)

	return nil
}

func (s *DocumentStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.store.Close(ctx)
}
