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

// Package reorder implements drag reordering of top-level rows: a pure
// neighbor-resolution step and a coordinator that applies the move
// optimistically and rolls the whole list back if the store refuses it.
package reorder

import (
	"fmt"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// Intent describes one drag gesture by the dragged row's new neighbors.
// Prev is nil when the row moved to the head of the list, Next when it
// moved to the tail.
type Intent struct {
	Prev    *catalog.RowID
	Next    *catalog.RowID
	Dragged catalog.RowID
}

// Request returns the wire form of the intent.
func (i Intent) Request() catalogapi.ReorderRequest {
	return catalogapi.ReorderRequest{DraggedID: i.Dragged, PrevID: i.Prev, NextID: i.Next}
}

func (i Intent) String() string {
	return fmt.Sprintf("%d between %s and %s", i.Dragged, idOrNone(i.Prev), idOrNone(i.Next))
}

func idOrNone(id *catalog.RowID) string {
	if id == nil {
		return "none"
	}

	return id.String()
}

// Move returns a copy of order with the element at from moved to index to.
// Elements between the two positions shift by one. order is not modified.
func Move[T any](order []T, from, to int) []T {
	out := make([]T, 0, len(order))
	out = append(out, order...)

	if from == to || from < 0 || to < 0 || from >= len(out) || to >= len(out) {
		return out
	}

	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)

	return out
}

// Neighbors returns the ids directly before and after id in order. It
// returns false if id is not in order.
func Neighbors(order []catalog.RowID, id catalog.RowID) (prev, next *catalog.RowID, ok bool) {
	for i, candidate := range order {
		if candidate != id {
			continue
		}

		if i > 0 {
			p := order[i-1]
			prev = &p
		}

		if i < len(order)-1 {
			n := order[i+1]
			next = &n
		}

		return prev, next, true
	}

	return nil, nil, false
}

// Resolve computes the intent of dropping activeID onto overID in the visible
// order. The dragged row takes over's position. The intent depends only on the
// ids adjacent to the dragged row after the move, never on indexes into the
// full dataset. The returned bool is false for a drop onto the row itself,
// which needs no remote call.
func Resolve(order []catalog.RowID, activeID, overID catalog.RowID) (Intent, []catalog.RowID, bool, error) {
	if activeID == overID {
		return Intent{Dragged: activeID}, order, false, nil
	}

	from, to := indexOf(order, activeID), indexOf(order, overID)
	if from < 0 {
		return Intent{}, nil, false, fmt.Errorf("dragged row %d: %w", activeID, standarderrors.ErrRowNotFound)
	}

	if to < 0 {
		return Intent{}, nil, false, fmt.Errorf("drop target %d: %w", overID, standarderrors.ErrRowNotFound)
	}

	moved := Move(order, from, to)
	prev, next, _ := Neighbors(moved, activeID)

	return Intent{Dragged: activeID, Prev: prev, Next: next}, moved, true, nil
}

func indexOf(order []catalog.RowID, id catalog.RowID) int {
	for i, candidate := range order {
		if candidate == id {
			return i
		}
	}

	return -1
}
