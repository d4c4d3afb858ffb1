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

// Package mockserver is an in-process stand-in for the remote catalog API.
// It serves the batch, reorder and history endpoints over a persistence
// store and can be told to refuse specific items or reorders, which makes
// it the backend of choice for local development and integration tests.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/history"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
)

// Collection holds one document per product or variation.
const Collection = "products"

// Server implements the catalog endpoints used by catalogapi.HTTPClient.
type Server struct {
	store   persistence.Store
	history *history.StoreSink
	log     *zap.SugaredLogger
	failIDs map[catalog.RowID]bool
	token   string
	nextID  catalog.RowID
	mu      sync.Mutex
	reject  bool
}

// New prepares the collections of store. A non-empty token is required as a
// bearer token on every request.
func New(ctx context.Context, store persistence.Store, token string, log *zap.SugaredLogger) (*Server, error) {
	if log == nil {
		log = logger.For(logger.ComponentMockServer)
	}

	if err := store.CreateCollection(ctx, Collection); err != nil {
		return nil, fmt.Errorf("failed to create %s collection: %w", Collection, err)
	}

	sink, err := history.NewStoreSink(ctx, store)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:   store,
		history: sink,
		log:     log,
		failIDs: make(map[catalog.RowID]bool),
		token:   token,
	}

	docs, err := store.Find(ctx, Collection, persistence.Query{})
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}

	for _, doc := range docs {
		if id := docID(doc); id > s.nextID {
			s.nextID = id
		}
	}

	metrics.InitErrorCounter(metrics.ComponentMockServer, Collection)

	return s, nil
}

// FailIDs makes every later batch refuse the items with these ids.
func (s *Server) FailIDs(ids ...catalog.RowID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.failIDs[id] = true
	}
}

// RejectReorder makes reorder answer with success=false while set.
func (s *Server) RejectReorder(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reject = reject
}

// Seed stores rows as they are, ids included.
func (s *Server) Seed(ctx context.Context, rows []*catalog.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if err := persistence.Upsert(ctx, s.store, Collection, toDocument(row)); err != nil {
			return fmt.Errorf("failed to seed row %d: %w", row.ID, err)
		}

		if row.ID > s.nextID {
			s.nextID = row.ID
		}
	}

	return nil
}

// Rows returns every stored row, top-level rows by order field, each followed
// by its variations.
func (s *Server) Rows(ctx context.Context) ([]*catalog.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rowsLocked(ctx)
}

func (s *Server) rowsLocked(ctx context.Context) ([]*catalog.Row, error) {
	docs, err := s.store.Find(ctx, Collection, *persistence.NewQuery().Sort("id_num", persistence.Asc))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var (
		tops     []*catalog.Row
		children = make(map[catalog.RowID][]*catalog.Row)
	)

	for _, doc := range docs {
		row := fromDocument(doc)
		if row.IsVariation() {
			children[row.ParentID] = append(children[row.ParentID], row)
		} else {
			tops = append(tops, row)
		}
	}

	sortByMenuOrder(tops)

	out := make([]*catalog.Row, 0, len(docs))
	for _, top := range tops {
		out = append(out, top)
		out = append(out, children[top.ID]...)
	}

	return out, nil
}

// Router returns the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.authenticate)

	products := router.Group("/products")
	{
		products.GET("", s.listProducts)
		products.POST("/batch", s.productsBatch)
		products.POST("/reorder", s.reorder)
		products.POST("/:id/variations/batch", s.variationsBatch)
	}

	router.GET("/history", s.listHistory)
	router.POST("/history", s.appendHistory)

	return router
}

func (s *Server) authenticate(c *gin.Context) {
	if s.token != "" && c.GetHeader("Authorization") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})

		return
	}

	c.Next()
}

func (s *Server) listProducts(c *gin.Context) {
	rows, err := s.Rows(c.Request.Context())
	if err != nil {
		s.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, rows)
}

func (s *Server) productsBatch(c *gin.Context) {
	s.batch(c, 0)
}

func (s *Server) variationsBatch(c *gin.Context) {
	parent, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || parent <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent id"})

		return
	}

	s.batch(c, catalog.RowID(parent))
}

func (s *Server) batch(c *gin.Context, parent catalog.RowID) {
	var req catalogapi.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	ctx := c.Request.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if parent != 0 {
		doc, err := s.store.Get(ctx, Collection, parent.String())
		if err != nil || fromDocument(doc).IsVariation() {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("product %d not found", parent)})

			return
		}
	}

	resp := catalogapi.BatchResponse{Total: len(req.Items), Items: make([]catalogapi.ItemResult, 0, len(req.Items))}

	for i, item := range req.Items {
		result := catalogapi.ItemResult{Index: i, ID: item.ID, OK: true}

		var err error

		switch {
		case s.failIDs[item.ID]:
			err = errors.New("rejected by store")
		case req.Kind == catalogapi.KindCreate:
			result.ID, err = s.createLocked(ctx, parent, item.Fields)
		case req.Kind == catalogapi.KindUpdate:
			err = s.updateLocked(ctx, parent, item)
		case req.Kind == catalogapi.KindDelete:
			err = s.deleteLocked(ctx, parent, item.ID)
		default:
			err = fmt.Errorf("unknown batch kind %q", req.Kind)
		}

		if err != nil {
			result.OK = false
			result.Error = err.Error()
			resp.Errors++
		}

		resp.Items = append(resp.Items, result)
	}

	s.log.Debugw("Batch handled", "correlation_id", req.CorrelationID, "kind", req.Kind, "parent", parent,
		"total", resp.Total, "errors", resp.Errors)

	c.JSON(http.StatusOK, resp)
}

func (s *Server) createLocked(ctx context.Context, parent catalog.RowID, fields catalog.Fields) (catalog.RowID, error) {
	s.nextID++

	row := catalog.NewProduct(s.nextID, fields.Clone())
	if parent != 0 {
		row = catalog.NewVariation(s.nextID, parent, fields.Clone())
	} else if _, ok := row.Fields[catalog.FieldMenuOrder]; !ok {
		row.Fields[catalog.FieldMenuOrder] = int(s.nextID)
	}

	if _, err := s.store.Insert(ctx, Collection, toDocument(row)); err != nil {
		return 0, err
	}

	return row.ID, nil
}

func (s *Server) updateLocked(ctx context.Context, parent catalog.RowID, item catalogapi.BatchItem) error {
	row, err := s.getLocked(ctx, parent, item.ID)
	if err != nil {
		return err
	}

	for field, value := range item.Fields {
		if value == nil {
			delete(row.Fields, field)

			continue
		}

		row.Fields[field] = value
	}

	return s.store.Update(ctx, Collection, row.ID.String(), toDocument(row))
}

func (s *Server) deleteLocked(ctx context.Context, parent, id catalog.RowID) error {
	if _, err := s.getLocked(ctx, parent, id); err != nil {
		return err
	}

	if parent == 0 {
		variations, err := s.store.Find(ctx, Collection, *persistence.NewQuery().Filter("parent_id", persistence.Eq, int64(id)))
		if err != nil {
			return err
		}

		for _, doc := range variations {
			if err := s.store.Delete(ctx, Collection, doc.ID()); err != nil {
				return err
			}
		}
	}

	return s.store.Delete(ctx, Collection, id.String())
}

// getLocked loads id and checks that it belongs to parent.
func (s *Server) getLocked(ctx context.Context, parent, id catalog.RowID) (*catalog.Row, error) {
	doc, err := s.store.Get(ctx, Collection, id.String())
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, fmt.Errorf("entity %d not found", id)
		}

		return nil, err
	}

	row := fromDocument(doc)
	if row.ParentID != parent {
		return nil, fmt.Errorf("entity %d not found under parent %d", id, parent)
	}

	return row, nil
}

func (s *Server) reorder(c *gin.Context) {
	var req catalogapi.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	ctx := c.Request.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reject {
		c.JSON(http.StatusOK, catalogapi.ReorderResponse{Success: false, Message: "order locked"})

		return
	}

	updated, err := s.reorderLocked(ctx, req)
	if err != nil {
		c.JSON(http.StatusOK, catalogapi.ReorderResponse{Success: false, Message: err.Error()})

		return
	}

	c.JSON(http.StatusOK, catalogapi.ReorderResponse{Success: true, UpdatedCount: updated})
}

// reorderLocked moves the dragged product between its neighbors and
// recomputes the order field of every product as its position.
func (s *Server) reorderLocked(ctx context.Context, req catalogapi.ReorderRequest) (int, error) {
	rows, err := s.rowsLocked(ctx)
	if err != nil {
		return 0, err
	}

	var (
		order   []*catalog.Row
		dragged *catalog.Row
	)

	for _, row := range rows {
		switch {
		case row.IsVariation():
		case row.ID == req.DraggedID:
			dragged = row
		default:
			order = append(order, row)
		}
	}

	if dragged == nil {
		return 0, fmt.Errorf("product %d not found", req.DraggedID)
	}

	index := func(id *catalog.RowID) int {
		if id == nil {
			return -1
		}

		for i, row := range order {
			if row.ID == *id {
				return i
			}
		}

		return -2
	}

	prev, next := index(req.PrevID), index(req.NextID)

	var at int

	switch {
	case prev == -2 || next == -2:
		return 0, errors.New("neighbor not found")
	case prev >= 0:
		at = prev + 1
	case next >= 0:
		at = next
	default:
		return 0, errors.New("no neighbor given")
	}

	order = append(order[:at], append([]*catalog.Row{dragged}, order[at:]...)...)

	updated := 0

	for i, row := range order {
		if current, ok := row.Fields[catalog.FieldMenuOrder]; ok && diff.Equal(current, i) {
			continue
		}

		row.Fields[catalog.FieldMenuOrder] = i

		if err := s.store.Update(ctx, Collection, row.ID.String(), toDocument(row)); err != nil {
			return updated, err
		}

		updated++
	}

	return updated, nil
}

func (s *Server) appendHistory(c *gin.Context) {
	var rec diff.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if err := s.history.Append(c.Request.Context(), &rec); err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

			return
		}

		s.fail(c, err)

		return
	}

	c.Status(http.StatusCreated)
}

func (s *Server) listHistory(c *gin.Context) {
	query := persistence.NewQuery()
	if location := c.Query("location"); location != "" {
		query.Filter("location", persistence.Eq, location)
	}

	records, err := s.history.List(c.Request.Context(), query)
	if err != nil {
		s.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, records)
}

func (s *Server) fail(c *gin.Context, err error) {
	metrics.IncErrorCountAndLog(metrics.ComponentMockServer, Collection, err, s.log)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func toDocument(row *catalog.Row) persistence.Document {
	return persistence.Document{
		"id":        row.ID.String(),
		"id_num":    int64(row.ID),
		"parent_id": int64(row.ParentID),
		"fields":    map[string]any(row.Fields.Clone()),
	}
}

func fromDocument(doc persistence.Document) *catalog.Row {
	id := docID(doc)
	parent := toRowID(doc["parent_id"])

	fields, _ := doc["fields"].(map[string]any)

	if parent != 0 {
		return catalog.NewVariation(id, parent, catalog.Fields(fields).Clone())
	}

	return catalog.NewProduct(id, catalog.Fields(fields).Clone())
}

func docID(doc persistence.Document) catalog.RowID {
	id, _ := strconv.ParseInt(doc.ID(), 10, 64)

	return catalog.RowID(id)
}

// toRowID reads an integer that may have been decoded from JSON as float64.
func toRowID(v any) catalog.RowID {
	switch n := v.(type) {
	case int64:
		return catalog.RowID(n)
	case int:
		return catalog.RowID(n)
	case float64:
		return catalog.RowID(n)
	default:
		return 0
	}
}

func sortByMenuOrder(rows []*catalog.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		oi, oj := toRowID(rows[i].Fields[catalog.FieldMenuOrder]), toRowID(rows[j].Fields[catalog.FieldMenuOrder])
		if oi != oj {
			return oi < oj
		}

		return rows[i].ID < rows[j].ID
	})
}
