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

// Package memory provides an in-memory implementation of the persistence.Store interface.
//
// It is used by tests, by the default settings backend and by the mock catalog
// server when no sqlite path is configured. Data does not survive a restart.
//
// # Thread Safety
//
// InMemoryStore uses a sync.RWMutex to protect concurrent access to collections. Read operations
// (Get, Find) acquire read locks, while write operations (Insert, Update, Delete, CreateCollection)
// acquire exclusive write locks.
//
// # Data Isolation
//
// All documents are deep-copied on read and write, so callers can freely mutate
// what they pass in or get back.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
)

// validateContext checks if the provided context is nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}

	return ctx.Err()
}

// InMemoryStore is a thread-safe in-memory document store implementing persistence.Store.
//
// It stores documents in a nested map structure: collections → document IDs → documents.
// Collections are created on first write; reads from a missing collection return
// persistence.ErrNotFound.
type InMemoryStore struct {
	collections map[string]map[string]persistence.Document
	mu          sync.RWMutex
	closed      bool
}

var _ persistence.Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new empty in-memory document store.
//
// Example:
//
//	store := memory.NewInMemoryStore()
//	doc := persistence.Document{"id": "grid.products.columns.order", "value": []any{"name"}}
//	_, err := store.Insert(ctx, "settings", doc) // Creates "settings" collection automatically
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		collections: make(map[string]map[string]persistence.Document),
	}
}

// CreateCollection creates a new empty collection. Creating an existing collection is a no-op.
func (s *InMemoryStore) CreateCollection(ctx context.Context, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrClosed
	}

	if _, exists := s.collections[name]; !exists {
		s.collections[name] = make(map[string]persistence.Document)
	}

	return nil
}

// Insert adds a new document to the specified collection.
//
// A document without an "id" field gets a random UUID. Returns persistence.ErrConflict
// if a document with the same id already exists.
func (s *InMemoryStore) Insert(ctx context.Context, collection string, doc persistence.Document) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	docCopy, err := copyDocument(doc)
	if err != nil {
		return "", err
	}

	id := docCopy.ID()
	if id == "" {
		if raw, present := docCopy["id"]; present && raw != nil {
			return "", errors.New("document 'id' field must be a string")
		}

		id = uuid.NewString()
		docCopy["id"] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", persistence.ErrClosed
	}

	coll := s.collectionLocked(collection)

	if _, exists := coll[id]; exists {
		return "", persistence.ErrConflict
	}

	coll[id] = docCopy

	return id, nil
}

// Get retrieves a document by ID from the specified collection.
func (s *InMemoryStore) Get(ctx context.Context, collection string, id string) (persistence.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, persistence.ErrClosed
	}

	coll, exists := s.collections[collection]
	if !exists {
		return nil, persistence.ErrNotFound
	}

	doc, exists := coll[id]
	if !exists {
		return nil, persistence.ErrNotFound
	}

	return copyDocument(doc)
}

// Update replaces an existing document with a new version. The stored document
// always keeps id as its "id" field.
func (s *InMemoryStore) Update(ctx context.Context, collection string, id string, doc persistence.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	docCopy, err := copyDocument(doc)
	if err != nil {
		return err
	}

	docCopy["id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrClosed
	}

	coll := s.collectionLocked(collection)

	if _, exists := coll[id]; !exists {
		return persistence.ErrNotFound
	}

	coll[id] = docCopy

	return nil
}

// Delete removes a document from the specified collection.
func (s *InMemoryStore) Delete(ctx context.Context, collection string, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrClosed
	}

	coll := s.collectionLocked(collection)

	if _, exists := coll[id]; !exists {
		return persistence.ErrNotFound
	}

	delete(coll, id)

	return nil
}

// Find returns the documents of collection that match query.
//
// Documents are returned in insertion-independent order unless the query sorts.
// A missing collection returns persistence.ErrNotFound.
func (s *InMemoryStore) Find(ctx context.Context, collection string, query persistence.Query) ([]persistence.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()

	if s.closed {
		s.mu.RUnlock()

		return nil, persistence.ErrClosed
	}

	coll, exists := s.collections[collection]
	if !exists {
		s.mu.RUnlock()

		return nil, persistence.ErrNotFound
	}

	docs := make([]persistence.Document, 0, len(coll))

	for _, doc := range coll {
		docCopy, err := copyDocument(doc)
		if err != nil {
			s.mu.RUnlock()

			return nil, err
		}

		docs = append(docs, docCopy)
	}

	s.mu.RUnlock()

	return query.Apply(docs)
}

// Close drops all data. Every later call returns persistence.ErrClosed.
func (s *InMemoryStore) Close(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.collections = nil

	return nil
}

func (s *InMemoryStore) collectionLocked(name string) map[string]persistence.Document {
	coll, exists := s.collections[name]
	if !exists {
		coll = make(map[string]persistence.Document)
		s.collections[name] = coll
	}

	return coll
}

func copyDocument(doc persistence.Document) (persistence.Document, error) {
	if doc == nil {
		return persistence.Document{}, nil
	}

	var out persistence.Document
	if err := deepcopy.Copy(&out, doc); err != nil {
		return nil, err
	}

	return out, nil
}
