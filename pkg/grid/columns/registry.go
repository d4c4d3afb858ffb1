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

package columns

import (
	"fmt"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// Column binds a column id to the row field it shows and its kind.
type Column struct {
	ID    string
	Field string
	Title string
	Kind  Kind
}

// Registry resolves column ids to their definitions and codecs.
type Registry struct {
	byID  map[string]Column
	order []string
}

// NewRegistry returns a registry of cols in the given order. Column ids must
// be unique and every kind must be known.
func NewRegistry(cols ...Column) (*Registry, error) {
	r := &Registry{byID: make(map[string]Column, len(cols))}

	for _, c := range cols {
		if c.ID == "" {
			return nil, fmt.Errorf("column with empty id")
		}

		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.ID)
		}

		if _, err := CodecFor(c.Kind); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.ID, err)
		}

		if c.Field == "" {
			c.Field = c.ID
		}

		r.byID[c.ID] = c
		r.order = append(r.order, c.ID)
	}

	return r, nil
}

// DefaultProductColumns returns the product grid's built-in columns.
func DefaultProductColumns() *Registry {
	r, err := NewRegistry(
		Column{ID: catalog.FieldName, Title: "Name", Kind: KindText},
		Column{ID: catalog.FieldSKU, Title: "SKU", Kind: KindText},
		Column{ID: catalog.FieldStatus, Title: "Status", Kind: KindText},
		Column{ID: catalog.FieldRegularPrice, Title: "Regular price", Kind: KindPrice},
		Column{ID: catalog.FieldSalePrice, Title: "Sale price", Kind: KindPrice},
		Column{ID: catalog.FieldStock, Title: "Stock", Kind: KindText},
		Column{ID: catalog.FieldCategories, Title: "Categories", Kind: KindTaxonomy},
		Column{ID: catalog.FieldImages, Title: "Images", Kind: KindMedia},
		Column{ID: catalog.FieldDescription, Title: "Description", Kind: KindRichText},
		Column{ID: catalog.FieldFeatured, Title: "Featured", Kind: KindBoolean},
		Column{ID: "seo_score", Title: "SEO", Kind: KindComputed},
	)
	if err != nil {
		panic(err)
	}

	return r
}

// IDs returns the column ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]

	return ok
}

// Lookup returns the column with id.
func (r *Registry) Lookup(id string) (Column, error) {
	c, ok := r.byID[id]
	if !ok {
		return Column{}, fmt.Errorf("%q: %w", id, standarderrors.ErrUnknownColumn)
	}

	return c, nil
}

// Parse converts raw cell input for columnID into the field it sets and
// the typed value.
func (r *Registry) Parse(columnID, raw string) (string, any, error) {
	c, err := r.Lookup(columnID)
	if err != nil {
		return "", nil, err
	}

	codec, _ := CodecFor(c.Kind)

	v, err := codec.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("column %q: %w", columnID, err)
	}

	return c.Field, v, nil
}

// Format renders the cell of columnID for row.
func (r *Registry) Format(columnID string, row *catalog.Row) (string, error) {
	c, err := r.Lookup(columnID)
	if err != nil {
		return "", err
	}

	codec, _ := CodecFor(c.Kind)

	return codec.Format(row.Fields[c.Field]), nil
}
