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

// Package diff computes field-level changes between a row snapshot and its
// committed state and packages them into history records.
package diff

import (
	"bytes"
	"reflect"
	"sort"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
)

// FieldChange is one changed field of one entity.
type FieldChange struct {
	Old   any    `json:"old"`
	New   any    `json:"new"`
	Field string `json:"field"`
}

// EntityDiff lists the changed fields of one entity.
type EntityDiff struct {
	EntityType catalog.EntityType `json:"entity_type"`
	Changes    []FieldChange      `json:"changes"`
	ID         catalog.RowID      `json:"id"`
	ParentID   catalog.RowID      `json:"parent_id,omitempty"`
}

// IsEmpty returns true if the entity has no changed field.
func (d EntityDiff) IsEmpty() bool {
	return len(d.Changes) == 0
}

// Fields compares before and after field by field. A field counts as changed
// when its serialized value differs, so nested slices and maps are compared by
// value and 10 equals 10.0. A field missing on one side equals an explicit nil.
// Changes are sorted by field name.
func Fields(before, after catalog.Fields) []FieldChange {
	var changes []FieldChange

	seen := make(map[string]struct{}, len(after))

	for field, newVal := range after {
		seen[field] = struct{}{}

		oldVal := before[field]
		if !Equal(oldVal, newVal) {
			changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
		}
	}

	for field, oldVal := range before {
		if _, ok := seen[field]; ok {
			continue
		}

		if !Equal(oldVal, nil) {
			changes = append(changes, FieldChange{Field: field, Old: oldVal, New: nil})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })

	return changes
}

// Equal reports whether a and b serialize to the same JSON.
func Equal(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}

	aj, errA := safejson.Marshal(a)
	bj, errB := safejson.Marshal(b)

	if errA != nil || errB != nil {
		return false
	}

	return bytes.Equal(aj, bj)
}

// Row diffs one row against its snapshot fields.
func Row(before catalog.Fields, after *catalog.Row) EntityDiff {
	return EntityDiff{
		ID:         after.ID,
		ParentID:   after.ParentID,
		EntityType: after.EntityType(),
		Changes:    Fields(before, after.Fields),
	}
}

// Many matches entities of before and after by id and returns the diffs of
// entities with at least one changed field, in the order of after. Entities
// present in only one list are skipped; creation and deletion are recorded by
// the caller with their own action.
func Many(before, after []*catalog.Row) []EntityDiff {
	byID := make(map[catalog.RowID]*catalog.Row, len(before))
	for _, row := range before {
		byID[row.ID] = row
	}

	var out []EntityDiff

	for _, row := range after {
		prev, ok := byID[row.ID]
		if !ok {
			continue
		}

		if d := Row(prev.Fields, row); !d.IsEmpty() {
			out = append(out, d)
		}
	}

	return out
}

// Full describes a newly created entity: every non-nil field is a change from nil.
func Full(row *catalog.Row) EntityDiff {
	return Row(nil, row)
}
