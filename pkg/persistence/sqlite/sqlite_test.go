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

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence/sqlite"
)

var _ = Describe("SQLiteStore", func() {
	var (
		dbPath string
		store  persistence.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")

		var err error
		store, err = sqlite.NewSQLiteStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = store.Close(ctx)
	})

	Context("when creating a new store", func() {
		It("should fail with invalid path", func() {
			_, err := sqlite.NewSQLiteStore("/nonexistent/directory/that/does/not/exist/test.db")
			Expect(err).To(HaveOccurred())
		})

		It("should enable WAL mode", func() {
			Expect(store.CreateCollection(ctx, "settings")).To(Succeed())

			_, err := os.Stat(dbPath + "-wal")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject invalid collection names", func() {
			Expect(store.CreateCollection(ctx, "drop table;")).NotTo(Succeed())
			Expect(store.CreateCollection(ctx, "")).NotTo(Succeed())
			Expect(store.CreateCollection(ctx, "_history")).To(Succeed())
		})
	})

	Context("with a collection", func() {
		BeforeEach(func() {
			Expect(store.CreateCollection(ctx, "products")).To(Succeed())
		})

		It("should round-trip documents through JSON", func() {
			id, err := store.Insert(ctx, "products", persistence.Document{"id": "7", "name": "Hoodie", "tags": []any{"winter"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("7"))

			doc, err := store.Get(ctx, "products", "7")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc["name"]).To(Equal("Hoodie"))
			Expect(doc["tags"]).To(Equal([]any{"winter"}))
		})

		It("should return ErrConflict for a duplicate id", func() {
			_, err := store.Insert(ctx, "products", persistence.Document{"id": "7"})
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Insert(ctx, "products", persistence.Document{"id": "7"})
			Expect(err).To(MatchError(persistence.ErrConflict))
		})

		It("should generate ids for documents without one", func() {
			id, err := store.Insert(ctx, "products", persistence.Document{"name": "x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
		})

		It("should return ErrNotFound for missing documents", func() {
			_, err := store.Get(ctx, "products", "missing")
			Expect(err).To(MatchError(persistence.ErrNotFound))
			Expect(store.Update(ctx, "products", "missing", persistence.Document{})).To(MatchError(persistence.ErrNotFound))
			Expect(store.Delete(ctx, "products", "missing")).To(MatchError(persistence.ErrNotFound))
		})

		It("should return ErrNotFound for a collection that was never created", func() {
			_, err := store.Get(ctx, "unknown", "1")
			Expect(err).To(MatchError(persistence.ErrNotFound))

			_, err = store.Find(ctx, "unknown", persistence.Query{})
			Expect(err).To(MatchError(persistence.ErrNotFound))
		})

		It("should update and delete", func() {
			_, err := store.Insert(ctx, "products", persistence.Document{"id": "1", "name": "a"})
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Update(ctx, "products", "1", persistence.Document{"name": "b"})).To(Succeed())

			doc, err := store.Get(ctx, "products", "1")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(Equal(persistence.Document{"id": "1", "name": "b"}))

			Expect(store.Delete(ctx, "products", "1")).To(Succeed())
			_, err = store.Get(ctx, "products", "1")
			Expect(err).To(MatchError(persistence.ErrNotFound))
		})

		It("should filter and sort in Find", func() {
			for i, status := range []string{"publish", "draft", "publish"} {
				_, err := store.Insert(ctx, "products", persistence.Document{"status": status, "menu_order": i})
				Expect(err).NotTo(HaveOccurred())
			}

			docs, err := store.Find(ctx, "products", *persistence.NewQuery().
				Filter("status", persistence.Eq, "publish").
				Sort("menu_order", persistence.Desc))
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0]["menu_order"]).To(BeNumerically("==", 2))
			Expect(docs[1]["menu_order"]).To(BeNumerically("==", 0))
		})

		It("should persist across reopen", func() {
			_, err := store.Insert(ctx, "products", persistence.Document{"id": "p"})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Close(ctx)).To(Succeed())

			store, err = sqlite.NewSQLiteStore(dbPath)
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Get(ctx, "products", "p")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("should refuse calls after Close", func() {
		Expect(store.Close(ctx)).To(Succeed())
		Expect(store.CreateCollection(ctx, "products")).To(MatchError(persistence.ErrClosed))
	})
})
