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

// Package snapshot captures immutable copies of row field sets at edit start so
// that cancel and rollback can restore them exactly.
package snapshot

import (
	"sync"
	"time"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
)

// Snapshot is the pre-edit copy of one row. It is never mutated after Capture.
type Snapshot struct {
	takenAt time.Time
	fields  catalog.Fields
	rowID   catalog.RowID
}

// Capture deep-copies row's current fields.
func Capture(row *catalog.Row) *Snapshot {
	return &Snapshot{
		rowID:   row.ID,
		fields:  row.Fields.Clone(),
		takenAt: time.Now(),
	}
}

func (s *Snapshot) RowID() catalog.RowID {
	return s.rowID
}

func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}

// Fields returns a copy of the captured fields.
func (s *Snapshot) Fields() catalog.Fields {
	return s.fields.Clone()
}

// RestoreInto replaces row's fields with a fresh copy of the snapshot.
func (s *Snapshot) RestoreInto(row *catalog.Row) {
	row.Fields = s.fields.Clone()
}

// Store holds at most one snapshot per row. A row has a snapshot exactly while
// it is in an edit session; the grid controller is its only writer.
type Store struct {
	snapshots map[catalog.RowID]*Snapshot
	mu        sync.RWMutex
}

func NewStore() *Store {
	return &Store{snapshots: make(map[catalog.RowID]*Snapshot)}
}

// Capture records row's current state. A row that already has a snapshot
// keeps it; the existing snapshot is returned.
func (s *Store) Capture(row *catalog.Row) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[row.ID]; ok {
		return snap
	}

	snap := Capture(row)
	s.snapshots[row.ID] = snap

	return snap
}

// Amend replaces the snapshot of id with a copy in which field holds value.
// Snapshots handed out earlier are not modified. It reports false if id has
// no snapshot.
func (s *Store) Amend(id catalog.RowID, field string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return false
	}

	fields := snap.fields.Clone()
	fields[field] = value

	s.snapshots[id] = &Snapshot{rowID: id, fields: fields, takenAt: snap.takenAt}

	return true
}

// Get returns the snapshot of id.
func (s *Store) Get(id catalog.RowID) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]

	return snap, ok
}

// Has reports whether id has a snapshot.
func (s *Store) Has(id catalog.RowID) bool {
	_, ok := s.Get(id)

	return ok
}

// Restore copies the snapshot of row back into row. It reports false if row has no snapshot.
func (s *Store) Restore(row *catalog.Row) bool {
	snap, ok := s.Get(row.ID)
	if !ok {
		return false
	}

	snap.RestoreInto(row)

	return true
}

// Drop forgets the snapshot of id.
func (s *Store) Drop(id catalog.RowID) {
	s.mu.Lock()
	delete(s.snapshots, id)
	s.mu.Unlock()
}

// Clear forgets every snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	s.snapshots = make(map[catalog.RowID]*Snapshot)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.snapshots)
}
