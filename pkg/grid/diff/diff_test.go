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

package diff_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
)

var _ = Describe("Fields", func() {
	It("returns no changes for field-equal but distinct instances", func() {
		before := catalog.Fields{"name": "A", "attributes": []any{map[string]any{"name": "size"}}}
		after := catalog.Fields{"name": "A", "attributes": []any{map[string]any{"name": "size"}}}

		Expect(diff.Fields(before, after)).To(BeEmpty())
	})

	It("compares by serialized value", func() {
		Expect(diff.Fields(catalog.Fields{"price": 10}, catalog.Fields{"price": 10.0})).To(BeEmpty())
		Expect(diff.Fields(catalog.Fields{"price": "10"}, catalog.Fields{"price": 10})).To(HaveLen(1))
	})

	It("treats a missing field as nil", func() {
		Expect(diff.Fields(catalog.Fields{"sku": nil}, catalog.Fields{})).To(BeEmpty())

		changes := diff.Fields(catalog.Fields{"sku": "X"}, catalog.Fields{})
		Expect(changes).To(Equal([]diff.FieldChange{{Field: "sku", Old: "X", New: nil}}))
	})

	It("reports changed nested values sorted by field", func() {
		before := catalog.Fields{"price": 10, "meta_data": []any{map[string]any{"key": "a", "value": 1}}, "name": "A"}
		after := catalog.Fields{"price": 20, "meta_data": []any{map[string]any{"key": "a", "value": 2}}, "name": "A"}

		changes := diff.Fields(before, after)
		Expect(changes).To(HaveLen(2))
		Expect(changes[0].Field).To(Equal("meta_data"))
		Expect(changes[1]).To(Equal(diff.FieldChange{Field: "price", Old: 10, New: 20}))
	})
})

var _ = Describe("Many", func() {
	It("matches by id and skips unchanged or unmatched entities", func() {
		before := []*catalog.Row{
			catalog.NewProduct(1, catalog.Fields{"name": "A"}),
			catalog.NewProduct(2, catalog.Fields{"name": "B"}),
			catalog.NewVariation(3, 1, catalog.Fields{"regular_price": "5"}),
		}
		after := []*catalog.Row{
			catalog.NewVariation(3, 1, catalog.Fields{"regular_price": "6"}),
			catalog.NewProduct(2, catalog.Fields{"name": "B"}),
			catalog.NewProduct(4, catalog.Fields{"name": "new"}),
			catalog.NewProduct(1, catalog.Fields{"name": "A2"}),
		}

		diffs := diff.Many(before, after)
		Expect(diffs).To(HaveLen(2))
		Expect(diffs[0].ID).To(Equal(catalog.RowID(3)))
		Expect(diffs[0].EntityType).To(Equal(catalog.EntityProductVariation))
		Expect(diffs[0].ParentID).To(Equal(catalog.RowID(1)))
		Expect(diffs[1].ID).To(Equal(catalog.RowID(1)))
	})
})

var _ = Describe("NewRecord", func() {
	It("is not created when nothing changed", func() {
		_, ok := diff.NewRecord("products", diff.ActionPut, diff.EntityDiff{ID: 1})
		Expect(ok).To(BeFalse())
	})

	It("keeps only changed entities", func() {
		full := diff.Full(catalog.NewProduct(9, catalog.Fields{"name": "New"}))

		rec, ok := diff.NewRecord("products", diff.ActionAdd, diff.EntityDiff{ID: 1}, full)
		Expect(ok).To(BeTrue())
		Expect(rec.ID).NotTo(BeEmpty())
		Expect(rec.Action).To(Equal(diff.ActionAdd))
		Expect(rec.Items).To(HaveLen(1))
		Expect(rec.Items[0].Changes).To(Equal([]diff.FieldChange{{Field: "name", Old: nil, New: "New"}}))
	})
})
