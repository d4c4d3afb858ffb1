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
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
)

// RowState is the edit state of one row.
type RowState string

const (
	// StateViewing is the initial state: the row is read-only.
	StateViewing RowState = "viewing"
	// StateEditing means the row has a snapshot and accepts field edits.
	StateEditing RowState = "editing"
	// StateSaving means a commit for the row is in flight. It cannot be cancelled.
	StateSaving RowState = "saving"
	// StateCancelled is passed through while the snapshot is restored.
	StateCancelled RowState = "cancelled"
)

const (
	EventBeginEdit     = "begin_edit"
	EventCommit        = "commit"
	EventSaveSucceeded = "save_succeeded"
	EventSaveFailed    = "save_failed"
	EventRolledBack    = "rolled_back"
	EventCancel        = "cancel"
	EventCancelDone    = "cancel_done"
)

// newRowMachine returns the edit state machine of one row:
//
//	viewing -> editing -> saving -> viewing
//	                   \-> cancelled -> viewing
//	           saving -> editing (failed save, mutations kept)
//	           saving -> viewing (failed save, restored from snapshot)
func newRowMachine(id catalog.RowID, log *zap.SugaredLogger) *fsm.FSM {
	return fsm.NewFSM(
		string(StateViewing),
		fsm.Events{
			{Name: EventBeginEdit, Src: []string{string(StateViewing)}, Dst: string(StateEditing)},

			{Name: EventCommit, Src: []string{string(StateEditing)}, Dst: string(StateSaving)},
			{Name: EventSaveSucceeded, Src: []string{string(StateSaving)}, Dst: string(StateViewing)},
			{Name: EventSaveFailed, Src: []string{string(StateSaving)}, Dst: string(StateEditing)},
			{Name: EventRolledBack, Src: []string{string(StateSaving)}, Dst: string(StateViewing)},

			{Name: EventCancel, Src: []string{string(StateEditing)}, Dst: string(StateCancelled)},
			{Name: EventCancelDone, Src: []string{string(StateCancelled)}, Dst: string(StateViewing)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugw("Row state changed", "row", id, "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// fire sends event to the machine of id. Callers hold c.mu. Transitions
// always complete, so they do not use the caller's context.
func (c *Controller) fire(id catalog.RowID, event string) error {
	m, ok := c.machines[id]
	if !ok {
		return fmt.Errorf("row %d has no state machine", id)
	}

	if err := m.Event(context.Background(), event); err != nil {
		return fmt.Errorf("row %d: %s: %w", id, event, err)
	}

	return nil
}

func (c *Controller) stateLocked(id catalog.RowID) RowState {
	m, ok := c.machines[id]
	if !ok {
		return StateViewing
	}

	return RowState(m.Current())
}
