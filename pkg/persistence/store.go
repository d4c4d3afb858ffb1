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

// Package persistence provides a database-agnostic collection/document API.
//
// It backs the settings store, the history store sink and the mock catalog
// server. Backends live in the memory and sqlite subpackages.
package persistence

import (
	"context"
	"errors"
)

// Document represents a JSON-serializable document stored in a collection.
// Every stored document carries its identifier under the "id" key.
//
// Example:
//
//	doc := persistence.Document{
//	    "id":   "42",
//	    "name": "Hoodie",
//	    "tags": []any{"winter"},
//	}
type Document map[string]interface{}

// ID returns the document's "id" field, or "" if it is missing or not a string.
func (d Document) ID() string {
	id, _ := d["id"].(string)

	return id
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}

	return out
}

// Store provides CRUD operations on collections of documents.
//
// All methods are safe for concurrent use. Methods return ErrNotFound when a
// document or collection does not exist and ErrConflict when an insert would
// overwrite an existing id.
type Store interface {
	// CreateCollection creates a collection if it does not exist yet.
	CreateCollection(ctx context.Context, name string) error

	// Insert adds a document and returns its id. Backends generate an id when
	// the document has none.
	Insert(ctx context.Context, collection string, doc Document) (id string, err error)

	// Get retrieves a document by id.
	Get(ctx context.Context, collection string, id string) (Document, error)

	// Update replaces a document entirely.
	Update(ctx context.Context, collection string, id string, doc Document) error

	// Delete removes a document by id.
	Delete(ctx context.Context, collection string, id string) error

	// Find returns the documents matching query. An empty query returns all documents.
	Find(ctx context.Context, collection string, query Query) ([]Document, error)

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}

var (
	// ErrNotFound is returned when a document or collection does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a document with the same id already exists.
	ErrConflict = errors.New("document conflict")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")
)

// Upsert updates the document with doc's id, inserting it if it does not exist yet.
func Upsert(ctx context.Context, store Store, collection string, doc Document) error {
	id := doc.ID()
	if id == "" {
		return errors.New("document must have non-empty 'id' field")
	}

	err := store.Update(ctx, collection, id, doc)
	if errors.Is(err, ErrNotFound) {
		_, err = store.Insert(ctx, collection, doc)
	}

	return err
}
