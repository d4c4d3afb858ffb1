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

// Package catalog holds the row model shared by the grid core: catalog entities
// (top-level products and their variations) and the local validation rules
// applied before a commit.
package catalog

import (
	"sort"
	"strconv"

	"github.com/tiendc/go-deepcopy"
)

// RowID identifies a catalog entity. Zero is never a valid id.
type RowID int64

func (id RowID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Field names used by the grid core. Columns may carry any other field.
const (
	FieldName         = "name"
	FieldSKU          = "sku"
	FieldStatus       = "status"
	FieldRegularPrice = "regular_price"
	FieldSalePrice    = "sale_price"
	FieldStock        = "stock_quantity"
	FieldMenuOrder    = "menu_order"
	FieldCategories   = "categories"
	FieldImages       = "images"
	FieldDescription  = "description"
	FieldFeatured     = "featured"
	FieldAttributes   = "attributes"
	FieldMetaData     = "meta_data"
)

// EntityType tags history entries.
type EntityType string

const (
	EntityProduct          EntityType = "product"
	EntityProductVariation EntityType = "product_variation"
)

// Fields is the mutable field set of a row.
type Fields map[string]any

// Clone returns a deep copy. Nested slices and maps are not shared with f.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}

	var out Fields
	if err := deepcopy.Copy(&out, f); err != nil {
		// deepcopy only fails on unsupported kinds (channels, funcs) that never
		// appear in decoded catalog data; fall back to a shallow copy.
		out = make(Fields, len(f))
		for k, v := range f {
			out[k] = v
		}
	}

	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Row is one catalog entity: a top-level product (Depth 0) or a variation
// nested one level below its parent.
type Row struct {
	Fields   Fields
	ID       RowID
	ParentID RowID
	Depth    int
}

// NewProduct returns a top-level row.
func NewProduct(id RowID, fields Fields) *Row {
	return &Row{ID: id, Fields: fields}
}

// NewVariation returns a variation row of parent.
func NewVariation(id, parent RowID, fields Fields) *Row {
	return &Row{ID: id, ParentID: parent, Depth: 1, Fields: fields}
}

// IsVariation reports whether the row is nested below a parent.
func (r *Row) IsVariation() bool {
	return r.Depth > 0
}

// EntityType returns the history entity type of the row.
func (r *Row) EntityType() EntityType {
	if r.IsVariation() {
		return EntityProductVariation
	}

	return EntityProduct
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	out := *r
	out.Fields = r.Fields.Clone()

	return &out
}
