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
	"slices"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/notify"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/sentry"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// Create adds a new entity under parent (zero for a top-level product) and
// records it with the add action. The row is only added locally once the
// store has assigned its id.
func (c *Controller) Create(ctx context.Context, parent catalog.RowID, fields catalog.Fields) (*catalog.Row, error) {
	c.mu.Lock()

	if parent != 0 {
		p, ok := c.rows[parent]
		if !ok {
			c.mu.Unlock()

			return nil, fmt.Errorf("parent %d: %w", parent, standarderrors.ErrRowNotFound)
		}

		if p.IsVariation() {
			c.mu.Unlock()

			return nil, fmt.Errorf("parent %d is itself a variation", parent)
		}
	}

	c.mu.Unlock()

	row := &catalog.Row{ParentID: parent, Fields: fields.Clone()}
	if parent != 0 {
		row.Depth = 1
	}

	return c.create(ctx, row, 0, diff.ActionAdd)
}

// Duplicate copies a row, places the copy directly after the source and
// records it with the duplicate action. The copy gets a "(copy)" name suffix
// and no SKU, since SKUs are unique in the store.
func (c *Controller) Duplicate(ctx context.Context, id catalog.RowID) (*catalog.Row, error) {
	c.mu.Lock()

	src, ok := c.rows[id]
	if !ok {
		c.mu.Unlock()

		return nil, fmt.Errorf("row %d: %w", id, standarderrors.ErrRowNotFound)
	}

	row := src.Clone()
	c.mu.Unlock()

	row.ID = 0
	delete(row.Fields, catalog.FieldSKU)

	if name, ok := row.Fields[catalog.FieldName].(string); ok && name != "" {
		row.Fields[catalog.FieldName] = name + " (copy)"
	}

	return c.create(ctx, row, id, diff.ActionDuplicate)
}

func (c *Controller) create(ctx context.Context, row *catalog.Row, after catalog.RowID, action diff.Action) (*catalog.Row, error) {
	if err := catalog.Validate(row); err != nil {
		metrics.IncValidationFailure()

		return nil, err
	}

	item := catalogapi.BatchItem{Fields: row.Fields.Clone()}
	op := string(action)

	outcome, err := c.engine.Sync(ctx, catalogapi.KindCreate, []catalogapi.BatchItem{item}, c.send(row.ParentID), nil)
	if err == nil && (len(outcome.Succeeded) != 1 || outcome.Succeeded[0].ID == 0) {
		err = &standarderrors.NetworkError{Op: op, Err: errors.New("store did not return an id")}
	}

	if err != nil {
		c.notifier.Notify(notify.ForCounts(op, 1, 1, []string{label(row)}))

		return nil, err
	}

	row.ID = outcome.Succeeded[0].ID

	c.mu.Lock()
	if after != 0 {
		c.insertAfterLocked(row, after)
	} else {
		c.addRowLocked(row)
	}

	if c.visible != nil && !row.IsVariation() {
		c.visible[row.ID] = true
	}

	out := row.Clone()
	c.mu.Unlock()

	if rec, ok := diff.NewRecord(c.location, action, diff.Full(out)); ok {
		_ = c.history.Emit(ctx, rec)
	}

	c.notifier.Notify(notify.ForCounts(op, 1, 0, nil))

	return out, nil
}

// Delete removes rows from the store and, for the ids the store confirmed,
// from the grid. Deleting a product removes its variations locally. Rows in
// an edit session cannot be deleted. Deletions are not recorded in history.
func (c *Controller) Delete(ctx context.Context, ids []catalog.RowID) error {
	c.mu.Lock()

	groups := make(map[catalog.RowID][]catalogapi.BatchItem)
	names := make(map[catalog.RowID]string)

	for _, id := range ids {
		row, ok := c.rows[id]
		if !ok {
			c.mu.Unlock()

			return fmt.Errorf("row %d: %w", id, standarderrors.ErrRowNotFound)
		}

		if c.editable[id] || c.stateLocked(id) != StateViewing {
			c.mu.Unlock()

			return fmt.Errorf("row %d: %w", id, standarderrors.ErrAlreadyEditing)
		}

		groups[row.ParentID] = append(groups[row.ParentID], catalogapi.BatchItem{ID: id})
		names[id] = label(row)
	}

	c.mu.Unlock()

	outcome := c.syncGroups(ctx, catalogapi.KindDelete, groups, nil)
	failed := outcome.FailedIDs()

	c.mu.Lock()

	var failedNames []string

	for _, id := range ids {
		if failed[id] {
			failedNames = append(failedNames, names[id])

			continue
		}

		c.removeRowLocked(id)
	}

	c.mu.Unlock()

	c.notifier.Notify(notify.ForCounts("delete", outcome.TotalProcessed, outcome.TotalErrors, failedNames))

	return outcome.Err()
}

// Reorder drops the top-level row activeID onto overID's position in the
// visible order. See reorder.Coordinator for the optimistic protocol.
func (c *Controller) Reorder(ctx context.Context, activeID, overID catalog.RowID) error {
	if c.EditAllActive() {
		return standarderrors.ErrEditAllActive
	}

	outcome, err := c.reorderer.Reorder(ctx, rowList{c}, activeID, overID)
	if err != nil {
		var rejected *standarderrors.ReorderRejectedError
		if errors.As(err, &rejected) {
			c.notifier.Notify(notify.Notification{
				Level:     notify.LevelError,
				Operation: "reorder",
				Message:   "reorder: " + rejected.Error(),
				Total:     1,
				Failed:    1,
			})

			var netErr *standarderrors.NetworkError
			if errors.As(err, &netErr) {
				sentry.ReportSyncError(c.log, metrics.ComponentReorderCoordinator, "reorder", err)
			}
		}

		return err
	}

	if outcome.Applied {
		c.log.Debugw("Reorder accepted", "intent", outcome.Intent.String(), "updated", outcome.UpdatedCount)
	}

	return nil
}

// rowList exposes the controller's top-level order to the reorder coordinator.
type rowList struct {
	c *Controller
}

func (l rowList) Order() []catalog.RowID {
	return l.c.VisibleOrder()
}

// SetOrder writes a new visible order back into the full order: the
// positions held by visible rows are refilled in the new sequence, hidden
// rows keep theirs.
func (l rowList) SetOrder(order []catalog.RowID) error {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()

	current := l.c.visibleOrderLocked()
	if len(current) != len(order) {
		return standarderrors.ErrOrderChanged
	}

	pending := make(map[catalog.RowID]bool, len(current))
	for _, id := range current {
		pending[id] = true
	}

	for _, id := range order {
		if !pending[id] {
			return standarderrors.ErrOrderChanged
		}

		delete(pending, id)
	}

	next := 0

	for i, id := range l.c.order {
		if l.c.visible != nil && !l.c.visible[id] {
			continue
		}

		l.c.order[i] = order[next]
		next++
	}

	return nil
}

func (l rowList) Checkpoint() []catalog.RowID {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()

	return slices.Clone(l.c.order)
}

// Restore rebuilds the full order from checkpoint. Rows deleted while the
// reorder was in flight are skipped; rows created meanwhile are placed after
// the row they currently follow.
func (l rowList) Restore(checkpoint []catalog.RowID) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()

	restored := make([]catalog.RowID, 0, len(l.c.order))
	placed := make(map[catalog.RowID]bool, len(l.c.order))

	for _, id := range checkpoint {
		if _, ok := l.c.rows[id]; ok && !placed[id] {
			restored = append(restored, id)
			placed[id] = true
		}
	}

	for i, id := range l.c.order {
		if placed[id] {
			continue
		}

		at := 0
		if i > 0 {
			at = slices.Index(restored, l.c.order[i-1]) + 1
		}

		restored = slices.Insert(restored, at, id)
		placed[id] = true
	}

	l.c.order = restored
}

func (l rowList) Lookup(id catalog.RowID) (*catalog.Row, bool) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()

	row, ok := l.c.rows[id]
	if !ok {
		return nil, false
	}

	return row.Clone(), true
}

// Renumber sets the order field of every top-level row to its position in
// the full order, matching how the store recomputes it. Rows in an edit
// session get the value in their snapshot too, so the server-assigned order
// is neither committed as a user change nor reverted by a cancel.
func (l rowList) Renumber(_ []catalog.RowID) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()

	for i, id := range l.c.order {
		l.c.rows[id].Fields[catalog.FieldMenuOrder] = i
		l.c.snapshots.Amend(id, catalog.FieldMenuOrder, i)
	}
}
