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

package diff

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of edit a history record describes.
type Action string

const (
	ActionAdd       Action = "add"
	ActionPut       Action = "put"
	ActionDuplicate Action = "duplicate"
)

// Record is an audit entry. It is only built when at least one entity changed
// and is never mutated afterwards.
type Record struct {
	CreatedAt time.Time    `json:"created_at"`
	ID        string       `json:"id"`
	Location  string       `json:"location"`
	Action    Action       `json:"action"`
	Items     []EntityDiff `json:"items"`
}

// NewRecord builds a record from items, dropping entities without changes.
// It returns false if nothing changed. Record ids sort in creation order.
func NewRecord(location string, action Action, items ...EntityDiff) (*Record, bool) {
	kept := make([]EntityDiff, 0, len(items))

	for _, item := range items {
		if !item.IsEmpty() {
			kept = append(kept, item)
		}
	}

	if len(kept) == 0 {
		return nil, false
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &Record{
		ID:        id.String(),
		Location:  location,
		Action:    action,
		CreatedAt: time.Now().UTC(),
		Items:     kept,
	}, true
}
