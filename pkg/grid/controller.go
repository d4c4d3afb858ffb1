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

// Package grid is the edit controller of the catalog grid. It owns the edit
// session (which rows are editable, which are dirty, whether edit-all is
// active), the per-row state machines and the row snapshots, and it
// orchestrates the batch engine, the reorder coordinator, the diff recorder
// and the column layout store.
package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/config"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/constants"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/batch"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/columns"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/layout"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/reorder"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/snapshot"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/history"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/notify"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// Options wires a Controller. Client is required; everything else has a default.
type Options struct {
	Client   catalogapi.Client
	History  history.Sink
	Notifier notify.Notifier
	Layout   *layout.Store
	Columns  *columns.Registry
	Logger   *zap.SugaredLogger

	Location       string
	Batch          batch.Config
	RequestTimeout time.Duration
}

// ApplyConfig copies the grid section of the config into o.
func (o *Options) ApplyConfig(cfg config.GridConfig) {
	o.Batch = batch.Config{
		ChunkSize:            cfg.ChunkSize,
		MaxConcurrentChunks:  cfg.MaxConcurrentChunks,
		MaxRetries:           cfg.MaxRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
	}
	o.RequestTimeout = cfg.RequestTimeout
	o.Location = cfg.HistoryLocation
}

// Controller is the single source of truth for which rows are editable,
// whether edit-all is active, and what every edited row looked like before
// the edit began.
//
// All methods are safe for concurrent use. Remote calls run without holding
// the controller lock; rows stay in their optimistic state meanwhile.
type Controller struct {
	client    catalogapi.Client
	log       *zap.SugaredLogger
	notifier  notify.Notifier
	history   *history.Recorder
	engine    *batch.Engine
	reorderer *reorder.Coordinator
	layout    *layout.Store
	columns   *columns.Registry
	snapshots *snapshot.Store

	rows     map[catalog.RowID]*catalog.Row
	machines map[catalog.RowID]*fsm.FSM
	children map[catalog.RowID][]catalog.RowID
	editable map[catalog.RowID]bool
	dirty    map[catalog.RowID]bool
	visible  map[catalog.RowID]bool

	location string
	order    []catalog.RowID
	timeout  time.Duration
	mu       sync.Mutex
	editAll  bool
}

func New(opts Options) (*Controller, error) {
	if opts.Client == nil {
		return nil, errors.New("catalog client is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.For(logger.ComponentGridController)
	}

	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(log)
	}

	if opts.Columns == nil {
		opts.Columns = columns.DefaultProductColumns()
	}

	if opts.Location == "" {
		opts.Location = constants.DefaultHistoryLocation
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = constants.DefaultRequestTimeout
	}

	c := &Controller{
		client:    opts.Client,
		log:       log,
		notifier:  opts.Notifier,
		history:   history.NewRecorder(opts.History, log.Named(logger.ComponentHistorySink)),
		engine:    batch.NewEngine(opts.Batch, log.Named(logger.ComponentBatchEngine)),
		layout:    opts.Layout,
		columns:   opts.Columns,
		snapshots: snapshot.NewStore(),
		location:  opts.Location,
		timeout:   opts.RequestTimeout,
	}

	c.reorderer = reorder.NewCoordinator(c.sendReorder, log.Named(logger.ComponentReorderCoordinator))
	c.resetLocked()

	metrics.InitErrorCounter(metrics.ComponentGridController, c.location)

	return c, nil
}

func (c *Controller) resetLocked() {
	c.rows = make(map[catalog.RowID]*catalog.Row)
	c.machines = make(map[catalog.RowID]*fsm.FSM)
	c.children = make(map[catalog.RowID][]catalog.RowID)
	c.editable = make(map[catalog.RowID]bool)
	c.dirty = make(map[catalog.RowID]bool)
	c.visible = nil
	c.order = nil
	c.editAll = false
	c.snapshots.Clear()
	metrics.SetEditingRows(0)
}

// Load replaces the dataset. Top-level rows keep their input order;
// variations are attached to their parent in input order. Load is refused
// while any row is being edited.
func (c *Controller) Load(rows []*catalog.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.editable) > 0 {
		return fmt.Errorf("cannot reload while %d rows are being edited: %w", len(c.editable), standarderrors.ErrAlreadyEditing)
	}

	c.resetLocked()

	for _, r := range rows {
		if r.ID == 0 {
			return fmt.Errorf("row without id")
		}

		if _, dup := c.rows[r.ID]; dup {
			return fmt.Errorf("duplicate row %d", r.ID)
		}

		c.addRowLocked(r.Clone())
	}

	for parent := range c.children {
		if p, ok := c.rows[parent]; !ok || p.IsVariation() {
			return fmt.Errorf("variation parent %d: %w", parent, standarderrors.ErrRowNotFound)
		}
	}

	return nil
}

func (c *Controller) addRowLocked(row *catalog.Row) {
	if row.Fields == nil {
		row.Fields = catalog.Fields{}
	}

	c.rows[row.ID] = row
	c.machines[row.ID] = newRowMachine(row.ID, c.log)

	if row.IsVariation() {
		c.children[row.ParentID] = append(c.children[row.ParentID], row.ID)
	} else {
		c.order = append(c.order, row.ID)
	}
}

// insertAfterLocked adds row directly after the row with id after among its siblings.
func (c *Controller) insertAfterLocked(row *catalog.Row, after catalog.RowID) {
	c.rows[row.ID] = row
	c.machines[row.ID] = newRowMachine(row.ID, c.log)

	insert := func(list []catalog.RowID) []catalog.RowID {
		for i, id := range list {
			if id == after {
				out := make([]catalog.RowID, 0, len(list)+1)
				out = append(out, list[:i+1]...)
				out = append(out, row.ID)

				return append(out, list[i+1:]...)
			}
		}

		return append(list, row.ID)
	}

	if row.IsVariation() {
		c.children[row.ParentID] = insert(c.children[row.ParentID])
	} else {
		c.order = insert(c.order)
	}
}

func (c *Controller) removeRowLocked(id catalog.RowID) {
	row, ok := c.rows[id]
	if !ok {
		return
	}

	for _, child := range c.children[id] {
		c.removeRowLocked(child)
	}

	delete(c.children, id)
	delete(c.rows, id)
	delete(c.machines, id)
	delete(c.editable, id)
	delete(c.dirty, id)
	delete(c.visible, id)
	c.snapshots.Drop(id)

	if row.IsVariation() {
		c.children[row.ParentID] = without(c.children[row.ParentID], id)
	} else {
		c.order = without(c.order, id)
	}
}

func without(list []catalog.RowID, id catalog.RowID) []catalog.RowID {
	out := list[:0:0]

	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}

	return out
}

// SetVisible restricts the visible top-level rows to ids, e.g. after a
// filter or page change. The relative order of the dataset is kept. A nil
// slice shows every row.
func (c *Controller) SetVisible(ids []catalog.RowID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ids == nil {
		c.visible = nil

		return nil
	}

	visible := make(map[catalog.RowID]bool, len(ids))

	for _, id := range ids {
		row, ok := c.rows[id]
		if !ok {
			return fmt.Errorf("row %d: %w", id, standarderrors.ErrRowNotFound)
		}

		if row.IsVariation() {
			return fmt.Errorf("row %d is a variation; visibility follows its parent", id)
		}

		visible[id] = true
	}

	c.visible = visible

	return nil
}

func (c *Controller) visibleOrderLocked() []catalog.RowID {
	out := make([]catalog.RowID, 0, len(c.order))

	for _, id := range c.order {
		if c.visible == nil || c.visible[id] {
			out = append(out, id)
		}
	}

	return out
}

// VisibleOrder returns the ids of the visible top-level rows in display order.
func (c *Controller) VisibleOrder() []catalog.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.visibleOrderLocked()
}

// Rows returns copies of every row in display order, each top-level row
// followed by its variations.
func (c *Controller) Rows() []*catalog.Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*catalog.Row, 0, len(c.rows))

	for _, id := range c.order {
		out = append(out, c.rows[id].Clone())

		for _, child := range c.children[id] {
			out = append(out, c.rows[child].Clone())
		}
	}

	return out
}

// Row returns a copy of the row with id.
func (c *Controller) Row(id catalog.RowID) (*catalog.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row, ok := c.rows[id]
	if !ok {
		return nil, false
	}

	return row.Clone(), true
}

// State returns the edit state of id. Unknown rows report StateViewing.
func (c *Controller) State(id catalog.RowID) RowState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stateLocked(id)
}

func (c *Controller) IsEditing(id catalog.RowID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.editable[id]
}

func (c *Controller) IsDirty(id catalog.RowID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dirty[id]
}

// HasSnapshot reports whether id has a pre-edit snapshot. It is true exactly
// while the row is in an edit session.
func (c *Controller) HasSnapshot(id catalog.RowID) bool {
	return c.snapshots.Has(id)
}

func (c *Controller) EditAllActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.editAll
}

// Columns returns the column registry used by SetCell.
func (c *Controller) Columns() *columns.Registry {
	return c.columns
}

// send returns the batch call for rows under parent; zero means top-level rows.
func (c *Controller) send(parent catalog.RowID) batch.SendFunc {
	return func(ctx context.Context, req catalogapi.BatchRequest) (*catalogapi.BatchResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		if parent == 0 {
			return c.client.BatchProducts(ctx, req)
		}

		return c.client.BatchVariations(ctx, parent, req)
	}
}

func (c *Controller) sendReorder(ctx context.Context, req catalogapi.ReorderRequest) (*catalogapi.ReorderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.Reorder(ctx, req)
}

// restoreFromSnapshot is the per-item rollback path of the batch engine.
func (c *Controller) restoreFromSnapshot(id catalog.RowID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if row, ok := c.rows[id]; ok {
		c.snapshots.Restore(row)
		delete(c.dirty, id)
	}
}

// label names a row in notifications.
func label(row *catalog.Row) string {
	if name, ok := row.Fields[catalog.FieldName].(string); ok && name != "" {
		return name
	}

	return "#" + row.ID.String()
}

func (c *Controller) updateEditingGaugeLocked() {
	metrics.SetEditingRows(len(c.editable))
}
