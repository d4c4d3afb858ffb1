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

// Package batch turns a list of pending row operations into bounded remote
// calls and reconciles per-item results against local state.
package batch

import (
	"fmt"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
)

// Split partitions items into consecutive slices of at most maxSize elements.
// It is pure: the same input always yields the same partition, and
// concatenating the parts in order reproduces items.
func Split[T any](items []T, maxSize int) ([][]T, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxSize)
	}

	parts := make([][]T, 0, (len(items)+maxSize-1)/maxSize)

	for start := 0; start < len(items); start += maxSize {
		end := min(start+maxSize, len(items))
		parts = append(parts, items[start:end:end])
	}

	return parts, nil
}

// Chunk is one bounded partition of a pending operation list. Offset is the
// index of the chunk's first item in the unchunked list.
type Chunk struct {
	CorrelationID string
	Kind          catalogapi.Kind
	Items         []catalogapi.BatchItem
	Offset        int
}

// Request returns the wire form of the chunk.
func (c Chunk) Request() catalogapi.BatchRequest {
	return catalogapi.BatchRequest{
		CorrelationID: c.CorrelationID,
		Kind:          c.Kind,
		Items:         c.Items,
	}
}

// NewChunks partitions items into chunks of at most maxSize items, all
// tagged with kind and correlationID.
func NewChunks(kind catalogapi.Kind, correlationID string, items []catalogapi.BatchItem, maxSize int) ([]Chunk, error) {
	parts, err := Split(items, maxSize)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(parts))
	offset := 0

	for _, part := range parts {
		chunks = append(chunks, Chunk{
			CorrelationID: correlationID,
			Kind:          kind,
			Items:         part,
			Offset:        offset,
		})
		offset += len(part)
	}

	return chunks, nil
}
