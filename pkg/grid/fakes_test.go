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

package grid_test

import (
	"context"
	"errors"
	"sync"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

type sentBatch struct {
	req    catalogapi.BatchRequest
	parent catalog.RowID
}

// fakeCatalog is an in-process remote catalog with failure injection.
type fakeCatalog struct {
	failIDs      map[catalog.RowID]bool
	transportErr error
	rejectOrder  bool
	// holdOrder, when set, blocks Reorder after it announces itself on
	// orderStarted until holdOrder is closed.
	holdOrder    chan struct{}
	orderStarted chan struct{}
	batches      []sentBatch
	reorders     []catalogapi.ReorderRequest
	nextID       catalog.RowID
	mu           sync.Mutex
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{failIDs: map[catalog.RowID]bool{}, nextID: 1000}
}

func (f *fakeCatalog) BatchProducts(ctx context.Context, req catalogapi.BatchRequest) (*catalogapi.BatchResponse, error) {
	return f.batch(0, req)
}

func (f *fakeCatalog) BatchVariations(ctx context.Context, parent catalog.RowID, req catalogapi.BatchRequest) (*catalogapi.BatchResponse, error) {
	return f.batch(parent, req)
}

func (f *fakeCatalog) batch(parent catalog.RowID, req catalogapi.BatchRequest) (*catalogapi.BatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, sentBatch{parent: parent, req: req})

	if f.transportErr != nil {
		return nil, f.transportErr
	}

	resp := &catalogapi.BatchResponse{Total: len(req.Items)}

	for i, item := range req.Items {
		r := catalogapi.ItemResult{Index: i, ID: item.ID, OK: true}

		if req.Kind == catalogapi.KindCreate {
			f.nextID++
			r.ID = f.nextID
		}

		if f.failIDs[item.ID] {
			r.OK = false
			r.Error = "rejected"
			resp.Errors++
		}

		resp.Items = append(resp.Items, r)
	}

	return resp, nil
}

func (f *fakeCatalog) Reorder(ctx context.Context, req catalogapi.ReorderRequest) (*catalogapi.ReorderResponse, error) {
	f.mu.Lock()
	f.reorders = append(f.reorders, req)
	hold, started := f.holdOrder, f.orderStarted
	f.mu.Unlock()

	if hold != nil {
		started <- struct{}{}
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejectOrder {
		return &catalogapi.ReorderResponse{Success: false, Message: "order locked"}, nil
	}

	return &catalogapi.ReorderResponse{Success: true, UpdatedCount: 4}, nil
}

func (f *fakeCatalog) AppendHistory(context.Context, *diff.Record) error {
	return errors.New("not used")
}

func (f *fakeCatalog) sent() []sentBatch {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]sentBatch(nil), f.batches...)
}

func (f *fakeCatalog) itemIDs() []catalog.RowID {
	var ids []catalog.RowID

	for _, b := range f.sent() {
		for _, item := range b.req.Items {
			ids = append(ids, item.ID)
		}
	}

	return ids
}

// historySink records appended records.
type historySink struct {
	records []*diff.Record
	mu      sync.Mutex
}

func (h *historySink) Append(_ context.Context, r *diff.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, r)

	return nil
}

func (h *historySink) all() []*diff.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]*diff.Record(nil), h.records...)
}

var errTransport = &standarderrors.NetworkError{Op: "batch", StatusCode: 503, Err: errors.New("service unavailable")}
