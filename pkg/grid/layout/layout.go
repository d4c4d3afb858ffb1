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

// Package layout persists a grid's column order, visibility, pinning and
// widths through a settings.Store. Changes apply to the in-memory layout at
// once; writes are debounced so a drag-resize produces a single write.
package layout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/constants"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/settings"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// MinColumnWidth is the narrowest width a column can be resized to.
const MinColumnWidth = 40

// Side is where a column is pinned.
type Side string

const (
	PinNone  Side = ""
	PinLeft  Side = "left"
	PinRight Side = "right"
)

// Pinning lists the pinned columns of each side in display order.
type Pinning struct {
	Left  []string `json:"left"`
	Right []string `json:"right"`
}

// State is a grid's column layout.
type State struct {
	Visibility map[string]bool `json:"visibility"`
	Widths     map[string]int  `json:"widths"`
	Order      []string        `json:"order"`
	Pinning    Pinning         `json:"pinning"`
}

func (s State) clone() State {
	out := State{
		Order:      slices.Clone(s.Order),
		Visibility: make(map[string]bool, len(s.Visibility)),
		Widths:     make(map[string]int, len(s.Widths)),
		Pinning:    Pinning{Left: slices.Clone(s.Pinning.Left), Right: slices.Clone(s.Pinning.Right)},
	}

	for k, v := range s.Visibility {
		out.Visibility[k] = v
	}

	for k, v := range s.Widths {
		out.Widths[k] = v
	}

	return out
}

// part is one independently persisted piece of the layout.
type part string

const (
	partOrder      part = "order"
	partVisibility part = "visibility"
	partPinning    part = "pinning"
	partWidths     part = "widths"
)

var parts = []part{partOrder, partVisibility, partPinning, partWidths}

// Store is the column layout of one grid.
type Store struct {
	settings settings.Store
	log      *zap.SugaredLogger
	known    func(string) bool
	timer    *time.Timer
	pending  map[part]bool
	written  map[part]uint64
	grid     string
	state    State
	debounce time.Duration
	mu       sync.Mutex
	closed   bool
}

// Options configures a Store. Known reports whether a column id exists;
// nil accepts every id.
type Options struct {
	Known    func(string) bool
	Debounce time.Duration
}

// Open loads the persisted layout of grid. Missing parts start empty.
func Open(ctx context.Context, grid string, store settings.Store, opts Options, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = logger.For(logger.ComponentLayoutStore)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = constants.DefaultLayoutDebounce
	}

	if opts.Known == nil {
		opts.Known = func(string) bool { return true }
	}

	s := &Store{
		settings: store,
		log:      log,
		known:    opts.Known,
		grid:     grid,
		debounce: opts.Debounce,
		pending:  make(map[part]bool),
		written:  make(map[part]uint64),
		state:    State{Visibility: map[string]bool{}, Widths: map[string]int{}},
	}

	for _, p := range parts {
		var target any

		switch p {
		case partOrder:
			target = &s.state.Order
		case partVisibility:
			target = &s.state.Visibility
		case partPinning:
			target = &s.state.Pinning
		case partWidths:
			target = &s.state.Widths
		}

		found, err := store.Get(ctx, s.key(p), target)
		if err != nil {
			return nil, fmt.Errorf("failed to load column %s: %w", p, err)
		}

		if found {
			s.written[p] = hashOf(s.valueLocked(p))
		}
	}

	if s.state.Visibility == nil {
		s.state.Visibility = map[string]bool{}
	}

	if s.state.Widths == nil {
		s.state.Widths = map[string]int{}
	}

	return s, nil
}

func (s *Store) key(p part) string {
	return "grid." + s.grid + ".columns." + string(p)
}

// State returns a copy of the current layout.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

// IsVisible reports whether column is shown. Columns default to visible.
func (s *Store) IsVisible(column string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.state.Visibility[column]

	return !ok || v
}

// Resize sets column's width, clamped to MinColumnWidth.
func (s *Store) Resize(column string, width int) error {
	return s.mutate(partWidths, []string{column}, func(st *State) {
		st.Widths[column] = max(width, MinColumnWidth)
	})
}

// Reorder sets the display order of columns.
func (s *Store) Reorder(order []string) error {
	return s.mutate(partOrder, order, func(st *State) {
		st.Order = slices.Clone(order)
	})
}

// SetVisibility shows or hides column.
func (s *Store) SetVisibility(column string, visible bool) error {
	return s.mutate(partVisibility, []string{column}, func(st *State) {
		st.Visibility[column] = visible
	})
}

// Pin moves column to side, or unpins it for PinNone.
func (s *Store) Pin(column string, side Side) error {
	if side != PinNone && side != PinLeft && side != PinRight {
		return fmt.Errorf("invalid pin side %q", side)
	}

	return s.mutate(partPinning, []string{column}, func(st *State) {
		st.Pinning.Left = slices.DeleteFunc(st.Pinning.Left, func(c string) bool { return c == column })
		st.Pinning.Right = slices.DeleteFunc(st.Pinning.Right, func(c string) bool { return c == column })

		switch side {
		case PinLeft:
			st.Pinning.Left = append(st.Pinning.Left, column)
		case PinRight:
			st.Pinning.Right = append(st.Pinning.Right, column)
		case PinNone:
		}
	})
}

func (s *Store) mutate(p part, columns []string, apply func(*State)) error {
	for _, c := range columns {
		if !s.known(c) {
			return fmt.Errorf("%q: %w", c, standarderrors.ErrUnknownColumn)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return settings.ErrClosed
	}

	apply(&s.state)
	s.pending[p] = true

	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.flushInBackground)
	} else {
		s.timer.Reset(s.debounce)
	}

	return nil
}

func (s *Store) flushInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultRequestTimeout)
	defer cancel()

	if err := s.Flush(ctx); err != nil {
		metrics.IncErrorCountAndLog(metrics.ComponentLayoutStore, s.grid, err, s.log)
		s.log.Warnw("Failed to persist column layout", "grid", s.grid, "error", err)
	}
}

// Flush writes every pending part now. Parts whose serialized value did not
// change since the last write are skipped. Every part is attempted; the ones
// that fail stay pending for the next flush.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	type write struct {
		value any
		part  part
		hash  uint64
	}

	var writes []write

	for _, p := range parts {
		if !s.pending[p] {
			continue
		}

		delete(s.pending, p)

		v := s.valueLocked(p)
		h := hashOf(v)

		if prev, ok := s.written[p]; ok && prev == h {
			metrics.RecordSettingsWrite(metrics.ResultSkipped)

			continue
		}

		writes = append(writes, write{part: p, value: v, hash: h})
	}

	s.mu.Unlock()

	var errs []error

	for _, w := range writes {
		err := s.settings.Set(ctx, s.key(w.part), w.value)

		s.mu.Lock()
		if err != nil {
			s.pending[w.part] = true
		} else {
			s.written[w.part] = w.hash
		}
		s.mu.Unlock()

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.key(w.part), err))
		}
	}

	return errors.Join(errs...)
}

// Close flushes pending changes. The settings store itself is not closed.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return err
}

func (s *Store) valueLocked(p part) any {
	st := s.state.clone()

	switch p {
	case partOrder:
		return st.Order
	case partVisibility:
		return st.Visibility
	case partPinning:
		return st.Pinning
	case partWidths:
		return st.Widths
	}

	return nil
}

func hashOf(v any) uint64 {
	data, err := safejson.Marshal(v)
	if err != nil {
		return 0
	}

	return xxhash.Sum64(data)
}
