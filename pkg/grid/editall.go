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

package grid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/batch"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/notify"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// EnterEditAll puts every visible row and its variations into one edit
// transaction. Rows already editing keep the snapshot taken when their own
// session began.
func (c *Controller) EnterEditAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editAll {
		return standarderrors.ErrEditAllActive
	}

	scope := c.editAllScopeLocked()

	for _, id := range scope {
		if c.stateLocked(id) == StateSaving {
			return fmt.Errorf("row %d: %w", id, standarderrors.ErrRowBusy)
		}
	}

	for _, id := range scope {
		if c.stateLocked(id) == StateEditing {
			continue
		}

		if err := c.fire(id, EventBeginEdit); err != nil {
			return err
		}

		c.snapshots.Capture(c.rows[id])
		c.editable[id] = true
	}

	c.editAll = true
	c.updateEditingGaugeLocked()
	c.log.Infow("Entered edit-all", "rows", len(scope))

	return nil
}

// editAllScopeLocked returns the visible top-level rows followed by their variations.
func (c *Controller) editAllScopeLocked() []catalog.RowID {
	var scope []catalog.RowID

	for _, id := range c.visibleOrderLocked() {
		scope = append(scope, id)
		scope = append(scope, c.children[id]...)
	}

	return scope
}

// CancelEditAll restores every row of the transaction from its snapshot,
// mutated or not, and ends edit-all.
func (c *Controller) CancelEditAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.editAll {
		return standarderrors.ErrNotEditing
	}

	var errs []error

	for _, id := range c.sortedEditableLocked() {
		row := c.rows[id]

		errs = append(errs, c.fire(id, EventCancel))
		c.snapshots.Restore(row)
		c.endSessionLocked(id)
		errs = append(errs, c.fire(id, EventCancelDone))
	}

	c.editAll = false
	c.log.Infow("Cancelled edit-all")

	return errors.Join(errs...)
}

func (c *Controller) sortedEditableLocked() []catalog.RowID {
	ids := make([]catalog.RowID, 0, len(c.editable))
	for id := range c.editable {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// CommitEditAll validates every dirty row, then persists all dirty
// top-level rows in one batch and the dirty variations in one batch per
// parent, all concurrently. Rows the store refused are restored to their
// snapshot individually; every other row is committed. The edit-all session
// ends either way, unless validation failed, in which case nothing is sent.
func (c *Controller) CommitEditAll(ctx context.Context) error {
	c.mu.Lock()

	if !c.editAll {
		c.mu.Unlock()

		return standarderrors.ErrNotEditing
	}

	ids := c.sortedEditableLocked()

	var dirtyRows []*catalog.Row

	for _, id := range ids {
		if c.dirty[id] {
			dirtyRows = append(dirtyRows, c.rows[id])
		}
	}

	if err := catalog.ValidateAll(dirtyRows); err != nil {
		c.mu.Unlock()
		metrics.IncValidationFailure()

		return err
	}

	groups := make(map[catalog.RowID][]catalogapi.BatchItem)
	names := make(map[catalog.RowID]string)

	for _, row := range dirtyRows {
		fields, changes := c.changedFieldsLocked(row)
		if len(changes) == 0 {
			continue
		}

		groups[row.ParentID] = append(groups[row.ParentID], catalogapi.BatchItem{ID: row.ID, Fields: fields})
		names[row.ID] = label(row)
	}

	var errs []error
	for _, id := range ids {
		errs = append(errs, c.fire(id, EventCommit))
	}

	c.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		return err
	}

	outcome := c.syncGroups(ctx, catalogapi.KindUpdate, groups, batch.RestoreFunc(c.restoreFromSnapshot))
	failed := outcome.FailedIDs()

	c.mu.Lock()

	var entities []diff.EntityDiff

	for _, id := range ids {
		if failed[id] {
			c.endSessionLocked(id)
			errs = append(errs, c.fire(id, EventRolledBack))

			continue
		}

		if snap, ok := c.snapshots.Get(id); ok {
			entities = append(entities, diff.Row(snap.Fields(), c.rows[id]))
		}

		c.endSessionLocked(id)
		errs = append(errs, c.fire(id, EventSaveSucceeded))
	}

	c.editAll = false

	var failedNames []string
	for _, f := range outcome.Failed {
		failedNames = append(failedNames, names[catalog.RowID(f.ID)])
	}

	c.mu.Unlock()

	if rec, ok := diff.NewRecord(c.location, diff.ActionPut, entities...); ok {
		_ = c.history.Emit(ctx, rec)
	}

	c.notifier.Notify(notify.ForCounts("save", outcome.TotalProcessed, outcome.TotalErrors, failedNames))

	return errors.Join(append([]error{outcome.Err()}, errs...)...)
}

// syncGroups runs one batch per parent group concurrently and merges the
// outcomes. Group key zero holds top-level rows.
func (c *Controller) syncGroups(ctx context.Context, kind catalogapi.Kind, groups map[catalog.RowID][]catalogapi.BatchItem, restorer batch.Restorer) batch.Outcome {
	var (
		merged batch.Outcome
		mu     sync.Mutex
		g      errgroup.Group
	)

	for parent, items := range groups {
		parent, items := parent, items
		g.Go(func() error {
			outcome, _ := c.engine.Sync(ctx, kind, items, c.send(parent), restorer)

			mu.Lock()
			defer mu.Unlock()

			merged.Succeeded = append(merged.Succeeded, outcome.Succeeded...)
			merged.Failed = append(merged.Failed, outcome.Failed...)
			merged.TotalProcessed += outcome.TotalProcessed
			merged.TotalErrors += outcome.TotalErrors

			return nil
		})
	}

	_ = g.Wait()

	return merged
}
