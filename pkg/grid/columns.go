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

package grid

import (
	"errors"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/layout"
)

// ErrNoLayout is returned by column operations on a controller without a layout store.
var ErrNoLayout = errors.New("no column layout store configured")

func (c *Controller) ResizeColumn(column string, width int) error {
	if c.layout == nil {
		return ErrNoLayout
	}

	return c.layout.Resize(column, width)
}

func (c *Controller) ReorderColumns(order []string) error {
	if c.layout == nil {
		return ErrNoLayout
	}

	return c.layout.Reorder(order)
}

func (c *Controller) SetColumnVisibility(column string, visible bool) error {
	if c.layout == nil {
		return ErrNoLayout
	}

	return c.layout.SetVisibility(column, visible)
}

func (c *Controller) PinColumn(column string, side layout.Side) error {
	if c.layout == nil {
		return ErrNoLayout
	}

	return c.layout.Pin(column, side)
}

// Layout returns the current column layout, or the zero State without a layout store.
func (c *Controller) Layout() layout.State {
	if c.layout == nil {
		return layout.State{}
	}

	return c.layout.State()
}
