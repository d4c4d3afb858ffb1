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

package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// List is the ordered set of top-level rows a coordinator works on.
// Implementations must be safe for concurrent use.
type List interface {
	// Order returns the current visible order of top-level rows.
	Order() []catalog.RowID
	// SetOrder replaces the visible order. It fails with
	// standarderrors.ErrOrderChanged when order is no longer a permutation of
	// the visible rows.
	SetOrder(order []catalog.RowID) error
	// Checkpoint returns the full order of top-level rows, hidden rows included.
	Checkpoint() []catalog.RowID
	// Restore puts the full order back to a checkpoint. Rows removed since the
	// checkpoint stay removed; rows added since keep their current neighbors.
	Restore(checkpoint []catalog.RowID)
	// Lookup returns the row with id.
	Lookup(id catalog.RowID) (*catalog.Row, bool)
	// Renumber sets the ordering field of every row in order to its position.
	Renumber(order []catalog.RowID)
}

// ReorderFunc sends an intent to the remote store.
type ReorderFunc func(ctx context.Context, req catalogapi.ReorderRequest) (*catalogapi.ReorderResponse, error)

// Outcome is the result of an accepted reorder.
type Outcome struct {
	Order        []catalog.RowID
	Intent       Intent
	UpdatedCount int
	Applied      bool
}

// Coordinator applies drags optimistically. Reorders are serialized: a
// rollback always restores the order seen by the drag it belongs to.
type Coordinator struct {
	log  *zap.SugaredLogger
	send ReorderFunc
	mu   sync.Mutex
}

func NewCoordinator(send ReorderFunc, log *zap.SugaredLogger) *Coordinator {
	log = logger.OrNop(log)

	return &Coordinator{send: send, log: log}
}

// Reorder moves activeID to overID's position. The list is updated before
// the remote call; on any failure the full order, hidden rows included, is
// restored to its exact pre-drag state even if visibility changed meanwhile,
// and a *standarderrors.ReorderRejectedError is returned. Reorder calls are
// never retried.
func (c *Coordinator) Reorder(ctx context.Context, list List, activeID, overID catalog.RowID) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range []catalog.RowID{activeID, overID} {
		row, ok := list.Lookup(id)
		if !ok {
			return Outcome{}, fmt.Errorf("row %d: %w", id, standarderrors.ErrRowNotFound)
		}

		if row.IsVariation() {
			metrics.RecordReorder(metrics.ResultRejected)

			return Outcome{}, fmt.Errorf("row %d: %w", id, standarderrors.ErrVariationReorder)
		}
	}

	before := list.Order()

	intent, moved, changed, err := Resolve(before, activeID, overID)
	if err != nil {
		return Outcome{}, err
	}

	if !changed {
		metrics.RecordReorder(metrics.ResultSkipped)

		return Outcome{Intent: intent, Order: before}, nil
	}

	checkpoint := list.Checkpoint()

	if err := list.SetOrder(moved); err != nil {
		return Outcome{Intent: intent, Order: before}, err
	}

	c.log.Debugw("Applied reorder optimistically", "intent", intent.String())

	resp, err := c.send(ctx, intent.Request())
	if err == nil && (resp == nil || !resp.Success) {
		msg := "store reported failure"
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}

		err = errors.New(msg)
	}

	if err != nil {
		list.Restore(checkpoint)
		metrics.RecordReorder(metrics.ResultFailure)
		c.log.Warnw("Reorder rejected, restored previous order", "intent", intent.String(), "error", err)

		return Outcome{Intent: intent, Order: list.Order()}, &standarderrors.ReorderRejectedError{DraggedID: int64(activeID), Err: err}
	}

	list.Renumber(moved)
	metrics.RecordReorder(metrics.ResultSuccess)

	return Outcome{Intent: intent, Order: moved, UpdatedCount: resp.UpdatedCount, Applied: true}, nil
}
