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

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/columns"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/notify"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// BeginEdit opens an edit session on one row and snapshots its fields.
func (c *Controller) BeginEdit(id catalog.RowID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.rows[id]
	if !ok {
		return fmt.Errorf("row %d: %w", id, standarderrors.ErrRowNotFound)
	}

	if c.editAll {
		return standarderrors.ErrEditAllActive
	}

	switch c.stateLocked(id) {
	case StateEditing:
		return fmt.Errorf("row %d: %w", id, standarderrors.ErrAlreadyEditing)
	case StateSaving:
		return fmt.Errorf("row %d: %w", id, standarderrors.ErrRowBusy)
	case StateViewing, StateCancelled:
	}

	if err := c.fire(id, EventBeginEdit); err != nil {
		return err
	}

	c.snapshots.Capture(row)
	c.editable[id] = true
	c.updateEditingGaugeLocked()

	return nil
}

// requireEditingLocked returns the row if it accepts edits.
func (c *Controller) requireEditingLocked(id catalog.RowID) (*catalog.Row, error) {
	row, ok := c.rows[id]
	if !ok {
		return nil, fmt.Errorf("row %d: %w", id, standarderrors.ErrRowNotFound)
	}

	switch c.stateLocked(id) {
	case StateEditing:
		return row, nil
	case StateSaving:
		return nil, fmt.Errorf("row %d: %w", id, standarderrors.ErrRowBusy)
	default:
		return nil, fmt.Errorf("row %d: %w", id, standarderrors.ErrNotEditing)
	}
}

// CancelEdit restores the row to its snapshot and ends its edit session.
// Per-row cancel is not available in edit-all mode.
func (c *Controller) CancelEdit(id catalog.RowID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editAll {
		return standarderrors.ErrEditAllActive
	}

	row, err := c.requireEditingLocked(id)
	if err != nil {
		return err
	}

	if err := c.fire(id, EventCancel); err != nil {
		return err
	}

	c.snapshots.Restore(row)
	c.endSessionLocked(id)

	return c.fire(id, EventCancelDone)
}

func (c *Controller) endSessionLocked(id catalog.RowID) {
	c.snapshots.Drop(id)
	delete(c.editable, id)
	delete(c.dirty, id)
	c.updateEditingGaugeLocked()
}

// ApplyFieldEdit sets one field of a row in an edit session. It reports
// whether the value changed; only a change marks the row dirty.
func (c *Controller) ApplyFieldEdit(id catalog.RowID, field string, value any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, err := c.requireEditingLocked(id)
	if err != nil {
		return false, err
	}

	if current, ok := row.Fields[field]; ok && diff.Equal(current, value) {
		return false, nil
	}

	if _, ok := row.Fields[field]; !ok && value == nil {
		return false, nil
	}

	row.Fields[field] = value
	c.dirty[id] = true

	return true, nil
}

// SetCell parses raw input for a column and applies it as a field edit.
func (c *Controller) SetCell(id catalog.RowID, columnID, raw string) (bool, error) {
	field, value, err := c.columns.Parse(columnID, raw)
	if err != nil {
		if errors.Is(err, columns.ErrReadOnly) || errors.Is(err, standarderrors.ErrUnknownColumn) {
			return false, err
		}

		metrics.IncValidationFailure()

		return false, &standarderrors.ValidationError{Problems: []standarderrors.FieldProblem{{
			RowID: int64(id), Field: columnID, Message: err.Error(),
		}}}
	}

	return c.ApplyFieldEdit(id, field, value)
}

// changedFields returns the fields of row that differ from its snapshot.
// Removed fields are sent as nil.
func (c *Controller) changedFieldsLocked(row *catalog.Row) (catalog.Fields, []diff.FieldChange) {
	snap, ok := c.snapshots.Get(row.ID)
	if !ok {
		return row.Fields.Clone(), diff.Full(row).Changes
	}

	changes := diff.Fields(snap.Fields(), row.Fields)
	out := make(catalog.Fields, len(changes))

	for _, ch := range changes {
		out[ch.Field] = ch.New
	}

	return out.Clone(), changes
}

// CommitEdit validates the row, persists its changes and, once the store has
// confirmed them, records the diff and ends the edit session.
//
// A *standarderrors.ValidationError means nothing was sent. On any
// persistence failure the row stays in editing with its changes intact, so
// the commit can be retried or the edit cancelled.
func (c *Controller) CommitEdit(ctx context.Context, id catalog.RowID) error {
	c.mu.Lock()

	if c.editAll {
		c.mu.Unlock()

		return standarderrors.ErrEditAllActive
	}

	row, err := c.requireEditingLocked(id)
	if err != nil {
		c.mu.Unlock()

		return err
	}

	if err := catalog.Validate(row); err != nil {
		c.mu.Unlock()
		metrics.IncValidationFailure()

		return err
	}

	fields, changes := c.changedFieldsLocked(row)
	parent := row.ParentID
	name := label(row)

	if err := c.fire(id, EventCommit); err != nil {
		c.mu.Unlock()

		return err
	}

	c.mu.Unlock()

	if len(changes) > 0 {
		item := catalogapi.BatchItem{ID: id, Fields: fields}

		// No restorer: a failed single-row commit keeps the user's changes.
		outcome, err := c.engine.Sync(ctx, catalogapi.KindUpdate, []catalogapi.BatchItem{item}, c.send(parent), nil)
		if err != nil {
			c.mu.Lock()
			fireErr := c.fire(id, EventSaveFailed)
			c.mu.Unlock()

			c.notifier.Notify(notify.ForCounts("save", 1, 1, []string{name}))
			c.log.Warnw("Commit failed, row stays in editing", "row", id, "outcome", outcome.String(), "error", err)

			return errors.Join(err, fireErr)
		}
	}

	c.mu.Lock()

	var before catalog.Fields
	if snap, ok := c.snapshots.Get(id); ok {
		before = snap.Fields()
	}

	entity := diff.Row(before, c.rows[id])
	c.endSessionLocked(id)
	fireErr := c.fire(id, EventSaveSucceeded)

	c.mu.Unlock()

	if rec, ok := diff.NewRecord(c.location, diff.ActionPut, entity); ok {
		_ = c.history.Emit(ctx, rec)
	}

	c.notifier.Notify(notify.ForCounts("save", 1, 0, []string{name}))

	return fireErr
}
