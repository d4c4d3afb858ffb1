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

package history

import (
	"context"
	"fmt"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
)

// APISink appends records through the remote catalog's history endpoint.
type APISink struct {
	client catalogapi.Client
}

func NewAPISink(client catalogapi.Client) *APISink {
	return &APISink{client: client}
}

func (s *APISink) Append(ctx context.Context, record *diff.Record) error {
	return s.client.AppendHistory(ctx, record)
}

// Collection is the persistence collection of StoreSink.
const Collection = "history"

const sortKey = "created_at_us"

// StoreSink keeps records in a persistence collection, append-only.
type StoreSink struct {
	store persistence.Store
}

func NewStoreSink(ctx context.Context, store persistence.Store) (*StoreSink, error) {
	if err := store.CreateCollection(ctx, Collection); err != nil {
		return nil, fmt.Errorf("failed to create history collection: %w", err)
	}

	return &StoreSink{store: store}, nil
}

func (s *StoreSink) Append(ctx context.Context, record *diff.Record) error {
	data, err := safejson.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}

	var doc persistence.Document
	if err := safejson.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}

	doc[sortKey] = record.CreatedAt.UnixMicro()

	if _, err := s.store.Insert(ctx, Collection, doc); err != nil {
		return fmt.Errorf("failed to store history record %s: %w", record.ID, err)
	}

	return nil
}

// List returns records matching query, oldest first unless query sorts
// otherwise. A nil query returns every record.
func (s *StoreSink) List(ctx context.Context, query *persistence.Query) ([]*diff.Record, error) {
	if query == nil {
		query = persistence.NewQuery()
	}

	if len(query.SortBy) == 0 {
		// Record ids are time-ordered and break ties within one microsecond.
		query.Sort(sortKey, persistence.Asc).Sort("id", persistence.Asc)
	}

	docs, err := s.store.Find(ctx, Collection, *query)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	out := make([]*diff.Record, 0, len(docs))

	for _, doc := range docs {
		delete(doc, sortKey)

		data, err := safejson.Marshal(doc)
		if err != nil {
			return nil, err
		}

		var rec diff.Record
		if err := safejson.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode history record %s: %w", doc.ID(), err)
		}

		out = append(out, &rec)
	}

	return out, nil
}
